package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure the way the callable surface reports it.
type Kind string

const (
	// InvalidArgument marks missing or malformed request parameters.
	// Always caller-fixable.
	InvalidArgument Kind = "invalid-argument"
	// FailedPrecondition marks requests that are well-formed but
	// semantically invalid, e.g. an out-of-range slot-offer index or an
	// unauthenticated caller.
	FailedPrecondition Kind = "failed-precondition"
	// Unauthenticated marks terminal authentication failures, e.g. a
	// webhook signature mismatch.
	Unauthenticated Kind = "unauthenticated"
	// Internal marks store or payment-processor failures. Not
	// caller-fixable.
	Internal Kind = "internal"
)

// Error carries a Kind alongside a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a fault with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a fault around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err, defaulting to Internal for
// unclassified errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// MessageOf extracts the user-facing message from err.
func MessageOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return "internal server error"
}

// HTTPStatus maps a Kind onto the HTTP status used by the callable
// endpoints.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidArgument:
		return http.StatusUnprocessableEntity
	case FailedPrecondition:
		return http.StatusPreconditionFailed
	case Unauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
