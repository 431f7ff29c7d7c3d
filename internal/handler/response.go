package handler

import (
	"github.com/gin-gonic/gin"
)

type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

// RespondError hands err to the error middleware, which renders it with the
// status its kind maps to.
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// RespondErrorWithData is RespondError with data (field errors, say)
// attached to the body.
func RespondErrorWithData(c *gin.Context, err error, data interface{}) {
	_ = c.Error(err).SetMeta(data)
	c.Abort()
}
