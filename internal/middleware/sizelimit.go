package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultMaxBodySize fits any request the surface accepts.
const DefaultMaxBodySize = 16 << 10

// SizeLimit rejects bodies above limit bytes and caps reads of the rest.
func SizeLimit(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			abortWith(c, http.StatusRequestEntityTooLarge, "Request size exceeds limit")
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
