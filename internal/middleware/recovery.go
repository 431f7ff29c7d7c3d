package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
	"github.com/jwalitptl/library-admin/pkg/logger"
)

// Recovery turns a handler panic into a 500 carrying the request id.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			log.Error(fmt.Errorf("panic: %v", rec), "request panic recovered",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", c.GetString(ContextRequestID),
				"stack", string(debug.Stack()))

			abortWith(c, http.StatusInternalServerError, apperrors.DefaultFallback)
		}()
		c.Next()
	}
}
