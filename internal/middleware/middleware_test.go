package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tubeaudio/backend/config"
	"github.com/tubeaudio/backend/internal/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/boom", func(c *gin.Context) { c.String(http.StatusInternalServerError, "boom") })
	return r
}

func TestCORSOrigins(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		origin  string
		want    string
	}{
		{"exact match", config.DefaultAllowedOrigins, "http://localhost:3000", "http://localhost:3000"},
		{"port wildcard", config.DefaultAllowedOrigins, "http://localhost:5173", "http://localhost:5173"},
		{"loopback wildcard", config.DefaultAllowedOrigins, "http://127.0.0.1:8080", "http://127.0.0.1:8080"},
		{"wildcard needs a port", config.DefaultAllowedOrigins, "http://localhost:", ""},
		{"wildcard rejects non numeric port", config.DefaultAllowedOrigins, "http://localhost:80.evil.com", ""},
		{"other host", config.DefaultAllowedOrigins, "https://evil.example.com", ""},
		{"scheme matters", config.DefaultAllowedOrigins, "https://localhost:3000", ""},
		{"star", "*", "https://anything.example", "https://anything.example"},
		{"trailing slash in config", "https://app.example.com/", "https://app.example.com", "https://app.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(CORS(tt.allowed))
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newEngine(CORS(config.DefaultAllowedOrigins))
	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newEngine(Logger(zap.New(core)))

	for _, path := range []string{"/ping", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zap.InfoLevel, entries[0].Level)
		assert.Equal(t, "/ping", entries[0].ContextMap()["path"])
		assert.Equal(t, zap.ErrorLevel, entries[1].Level)
		assert.Equal(t, int64(500), entries[1].ContextMap()["status"])
	}
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	rule := ratelimit.Rule{Name: "test", Limit: 2, Window: time.Minute}
	r := newEngine(RateLimit(ratelimit.NewMemory(), rule, nil))

	codes := make([]int, 0, 3)
	remaining := make([]string, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)
		remaining = append(remaining, w.Header().Get("X-RateLimit-Remaining"))
		last = w
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, []string{"1", "0", "0"}, remaining)
	assert.Equal(t, "2", last.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"detail":"Rate limit exceeded: 2 per 1 minute"}`, last.Body.String())
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, ratelimit.Rule, string) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	rule := ratelimit.Rule{Name: "test", Limit: 1, Window: time.Minute}
	r := newEngine(RateLimit(brokenLimiter{}, rule, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Remaining"))
}
