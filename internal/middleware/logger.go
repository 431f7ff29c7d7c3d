package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/library-admin/pkg/logger"
)

// Logger writes one access log line per request. Bodies are never logged
// since they carry book codes.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"request_id", c.GetString(ContextRequestID),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start).String(),
			"user_agent", c.Request.UserAgent(),
		}

		switch {
		case status >= 500:
			log.ZL.Error().Fields(fields).Msg("Server error")
		case status >= 400:
			log.Warn("Client error", fields...)
		default:
			log.Info("Request processed", fields...)
		}
	}
}
