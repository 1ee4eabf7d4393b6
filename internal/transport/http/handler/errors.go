package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docrelay/internal/ai"
	"docrelay/internal/app"
	"docrelay/internal/transport/http/response"
)

// bindJSON decodes the request body and writes the error response itself
// when decoding fails.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.MsgBodyTooLarge)
			return false
		}
		response.Error(c, http.StatusBadRequest, response.MsgInvalidPayload)
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrJobNotFound):
		response.Error(c, http.StatusNotFound, app.ErrJobNotFound.Error())
	case errors.Is(err, app.ErrJobsDisabled):
		response.Error(c, http.StatusServiceUnavailable, response.MsgJobsUnavailable)
	case errors.Is(err, app.ErrRateLimited):
		response.Error(c, http.StatusInternalServerError, app.ErrRateLimited.Error())
	default:
		_ = c.Error(err)
		if msg, ok := inferenceMessage(err); ok {
			response.Error(c, http.StatusInternalServerError, msg)
			return
		}
		response.Error(c, http.StatusInternalServerError, response.MsgInternalServer)
	}
}

var inferenceErrors = []error{
	ai.ErrAuthentication,
	ai.ErrProviderRateLimited,
	ai.ErrInvalidRequest,
	ai.ErrProvider,
}

// inferenceMessage reduces a provider error to its sentinel text so provider
// response bodies never reach the client.
func inferenceMessage(err error) (string, bool) {
	for _, target := range inferenceErrors {
		if errors.Is(err, target) {
			return target.Error(), true
		}
	}
	return "", false
}
