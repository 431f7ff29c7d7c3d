package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
	"github.com/jwalitptl/library-admin/pkg/logger"
)

// ErrorResponse is the body of every error the local surface answers with.
type ErrorResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Kind    string      `json:"kind,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
}

func newErrorResponse(code int, message, traceID string) ErrorResponse {
	return ErrorResponse{Status: "error", Code: code, Message: message, TraceID: traceID}
}

// NewErrorResponse maps err onto the status and message the UI shows.
func NewErrorResponse(err error, traceID string) (int, ErrorResponse) {
	status := apperrors.HTTPStatus(err)
	resp := newErrorResponse(status, apperrors.UserMessage(err, ""), traceID)
	if kind := apperrors.KindOf(err); kind != apperrors.KindUnknown {
		resp.Kind = kind.String()
	}
	return status, resp
}

// abortWith stops the chain with a plain error body.
func abortWith(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, newErrorResponse(code, message, c.GetString(ContextRequestID)))
}

// ErrorHandler renders the last error a handler attached with c.Error. Meta
// set on that error becomes the response data.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		traceID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			fields := []interface{}{
				"trace_id", traceID,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			}
			if apperrors.HTTPStatus(e.Err) < http.StatusInternalServerError {
				log.Warn("Request error", append(fields, "error", e.Err.Error())...)
				continue
			}
			log.Error(e.Err, "Request error", fields...)
		}

		if c.Writer.Written() {
			return
		}
		last := c.Errors.Last()
		status, resp := NewErrorResponse(last.Err, traceID)
		resp.Data = last.Meta
		c.JSON(status, resp)
	}
}
