// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"errors"
	"net/http"

	"signup_funnel_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

const msgInternal = "internal server error"

// ErrorResponse is the error body every endpoint returns.
// Code is a stable machine-readable category; Error is for humans.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// Error sends an error response with the given status code and message.
func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Code: codeForStatus(status), Details: details})
}

// OK sends a 200 OK response with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// HandleError writes err as a JSON error response and reports whether it did.
// Typed *apperr.Error values carry their own status; anything else is a 500
// whose message is not exposed to the client.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		status := domainErr.HTTPStatus()
		c.JSON(status, ErrorResponse{
			Error:   domainErr.Message,
			Code:    codeForError(domainErr, status),
			Details: domainErr.Details,
		})
		return true
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgInternal, Code: "internal"})
	return true
}

func codeForError(e *apperr.Error, status int) string {
	switch e.Kind {
	case apperr.KindValidation:
		return "validation_failed"
	case apperr.KindUpstream:
		return "upstream_unavailable"
	case apperr.KindPayment:
		if details, ok := e.Details.(map[string]bool); ok && details["requiresAction"] {
			return "payment_action_required"
		}
		return "payment_declined"
	default:
		return codeForStatus(status)
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusPaymentRequired:
		return "payment_declined"
	case http.StatusBadGateway:
		return "upstream_unavailable"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		if status >= http.StatusInternalServerError {
			return "internal"
		}
		return ""
	}
}
