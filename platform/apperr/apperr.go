// Package apperr provides the typed errors services return; httpkit.HandleError
// turns their Kind into an HTTP status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindValidation indicates invalid input data.
	KindValidation
	// KindConflict indicates a conflict with existing state (e.g., duplicate).
	KindConflict
	// KindInternal indicates an unexpected internal error.
	KindInternal
	// KindUpstream indicates an external collaborator failed or returned an error payload.
	KindUpstream
	// KindPayment indicates the payment provider declined or did not complete a charge.
	KindPayment
)

// Error is a domain error with a typed Kind for HTTP mapping.
// Message is shown to the client; Err stays server-side.
type Error struct {
	Kind    Kind
	Message string
	Err     error       // Underlying error (optional)
	Details interface{} // Additional details for response (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindInternal:
		return http.StatusInternalServerError
	case KindUpstream:
		return http.StatusBadGateway
	case KindPayment:
		return http.StatusPaymentRequired
	default:
		return http.StatusBadRequest
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetails attaches a response body payload, typically field errors.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Convenience constructors for common error types.

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Conflict creates a conflict error (e.g., duplicate resource).
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// Upstream creates a collaborator error wrapping the failed call.
// The caller may re-issue the same request.
func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err, Details: map[string]bool{"retryable": true}}
}

// PaymentDeclined creates a payment error. The payment may be retried with another method.
func PaymentDeclined(message string) *Error {
	return &Error{Kind: KindPayment, Message: message, Details: map[string]bool{"retryable": true}}
}

// PaymentActionRequired creates a payment error for a charge that waits on
// customer authentication. The client completes it and confirms again.
func PaymentActionRequired(message string) *Error {
	return &Error{Kind: KindPayment, Message: message, Details: map[string]bool{"requiresAction": true, "retryable": true}}
}

// GetKind extracts the error kind from an error.
// Returns KindUnknown if the error is not an *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err is an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
