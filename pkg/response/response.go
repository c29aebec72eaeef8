package response

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Error is the body of every failed request.
type Error struct {
	Detail string `json:"detail"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, Error{Detail: detail})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, detail string) {
	c.JSON(http.StatusForbidden, Error{Detail: detail})
}

// NotFound sends 404.
func NotFound(c *gin.Context, detail string) {
	c.JSON(http.StatusNotFound, Error{Detail: detail})
}

// TooManyRequests sends 429 with a Retry-After header rounded up to whole seconds.
func TooManyRequests(c *gin.Context, detail string, retryAfter time.Duration) {
	secs := int((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	c.JSON(http.StatusTooManyRequests, Error{Detail: detail})
}

// InsufficientStorage sends 507.
func InsufficientStorage(c *gin.Context, detail string) {
	c.JSON(http.StatusInsufficientStorage, Error{Detail: detail})
}

// Internal sends 500.
func Internal(c *gin.Context, detail string) {
	c.JSON(http.StatusInternalServerError, Error{Detail: detail})
}
