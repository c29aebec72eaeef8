package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tubeaudio/backend/internal/ratelimit"
	"github.com/tubeaudio/backend/pkg/response"
)

// RateLimit returns a middleware limiting each client IP to rule and reporting the remaining quota in
// X-RateLimit-* headers. Limiter errors let the request through.
func RateLimit(limiter ratelimit.Limiter, rule ratelimit.Rule, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		res, err := limiter.Allow(c.Request.Context(), rule, c.ClientIP())
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("rule", rule.Name), zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			response.TooManyRequests(c, "Rate limit exceeded: "+rule.String(), res.RetryAfter)
			c.Abort()
			return
		}
		c.Next()
	}
}
