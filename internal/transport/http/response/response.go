package response

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	MsgInternalServer  = "Internal server error"
	MsgNotFound        = "Endpoint not found"
	MsgBodyTooLarge    = "Request body too large"
	MsgInvalidPayload  = "invalid request payload"
	MsgJobsUnavailable = "background document processing is not available"
)

// ErrorBody is the envelope every failed request returns.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, data)
}

func Accepted(c *gin.Context, data interface{}) {
	c.JSON(202, data)
}

func Error(c *gin.Context, httpStatus int, message string) {
	c.AbortWithStatusJSON(httpStatus, ErrorBody{
		Success: false,
		Error:   message,
	})
}

// Timestamp formats now the way every payload reports it.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
