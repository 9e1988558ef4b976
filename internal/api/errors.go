package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"origtext/internal/util"
)

type apiError struct {
	Code    string
	Message string
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, util.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func toAPIError(status int, err error) apiError {
	var ue *util.Error
	hasMsg := errors.As(err, &ue) && ue.Message != ""

	switch {
	case status == http.StatusTooManyRequests:
		return apiError{Code: "OT-API-4029", Message: "Too many requests. Please try again later."}
	case status >= 500:
		msg := "Internal server error. Please retry or check service logs."
		if hasMsg {
			msg = ue.Message
		}
		return apiError{Code: "OT-API-5000", Message: msg}
	case status == http.StatusNotFound:
		msg := "Requested resource was not found."
		if hasMsg {
			msg = ue.Message
		}
		return apiError{Code: "OT-API-4004", Message: msg}
	}

	msg := "Invalid request. Check inputs and retry."
	if hasMsg {
		msg = ue.Message
	} else if err != nil {
		msg = err.Error()
	}
	return apiError{Code: "OT-API-4001", Message: msg}
}

func writeErr(c *gin.Context, status int, err error) {
	e := toAPIError(status, err)
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    e.Code,
			"message": e.Message,
		},
	})
}

// fail maps a service error to its status and logs server-side failures.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= 500 {
		s.log.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	}
	writeErr(c, status, err)
}
