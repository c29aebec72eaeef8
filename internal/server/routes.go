// Package server assembles the HTTP router.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tubeaudio/backend/config"
	"github.com/tubeaudio/backend/internal/conversion"
	"github.com/tubeaudio/backend/internal/download"
	"github.com/tubeaudio/backend/internal/middleware"
	"github.com/tubeaudio/backend/internal/ratelimit"
	"github.com/tubeaudio/backend/pkg/response"
)

// Rate limit rules applied per client IP.
var (
	ConvertRule  = ratelimit.Rule{Name: "convert", Limit: config.ConvertRateLimit, Window: config.RateWindow}
	DownloadRule = ratelimit.Rule{Name: "download", Limit: config.DownloadRateLimit, Window: config.RateWindow}
)

// Deps are the handlers and shared services the router is built from.
type Deps struct {
	Conversion     *conversion.Handler
	Download       *download.Handler
	Limiter        ratelimit.Limiter
	AllowedOrigins string
	TrustedProxies []string // nil: rate limit by the TCP peer, ignoring forwarding headers
	Logger         *zap.Logger
}

// NewRouter returns the gin engine serving /convert, /download/:token and /health.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Limiter == nil {
		d.Limiter = ratelimit.NewMemory()
	}

	router := gin.New()
	// Match on the escaped path so "%2F" inside a token reaches the handler and is rejected there.
	router.UseRawPath = true
	router.UnescapePathValues = true
	if err := router.SetTrustedProxies(d.TrustedProxies); err != nil {
		d.Logger.Warn("invalid trusted proxies; forwarding headers ignored", zap.Strings("proxies", d.TrustedProxies), zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(d.AllowedOrigins))
	router.Use(middleware.Logger(d.Logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	router.POST("/convert", middleware.RateLimit(d.Limiter, ConvertRule, d.Logger), d.Conversion.Convert)
	router.GET("/download/:token", middleware.RateLimit(d.Limiter, DownloadRule, d.Logger), d.Download.Download)

	return router
}
