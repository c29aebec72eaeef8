package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tubeaudio/backend/config"
)

// CORS returns a middleware that sets CORS headers for cross-origin requests.
// allowedOrigins is "*" or a comma-separated list; an entry ending in ":*" matches that scheme and host on any port
// (e.g. "http://localhost:3000,http://localhost:*").
func CORS(allowedOrigins string) gin.HandlerFunc {
	origins := parseOrigins(allowedOrigins)
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && origins.allows(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Expose-Headers", "Content-Disposition, Retry-After, X-RateLimit-Limit, X-RateLimit-Remaining")
			c.Header("Access-Control-Max-Age", "86400")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent) // 204
			return
		}
		c.Next()
	}
}

type originSet struct {
	any     bool
	exact   map[string]bool
	anyPort []string // "scheme://host:" prefixes
}

func parseOrigins(s string) originSet {
	set := originSet{exact: make(map[string]bool)}
	for _, o := range config.SplitOrigins(s) {
		switch {
		case o == "*":
			set.any = true
		case strings.HasSuffix(o, ":*"):
			set.anyPort = append(set.anyPort, strings.TrimSuffix(o, "*"))
		default:
			set.exact[strings.TrimSuffix(o, "/")] = true
		}
	}
	return set
}

func (s originSet) allows(origin string) bool {
	if s.any || s.exact[origin] {
		return true
	}
	for _, prefix := range s.anyPort {
		port, ok := strings.CutPrefix(origin, prefix)
		if ok && port != "" && isDigits(port) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
