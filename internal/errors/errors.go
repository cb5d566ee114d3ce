package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the discriminant for every failure this service can surface.
// Errors are classified once, at the lowest layer that has enough
// information, and propagated unchanged up to the HTTP boundary.
type Kind string

const (
	KindInvalidModel      Kind = "INVALID_MODEL"
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindAuthError         Kind = "AUTH_ERROR"
	KindRateLimitExceeded Kind = "RATE_LIMIT_EXCEEDED"
	KindQuotaExceeded     Kind = "QUOTA_EXCEEDED"
	KindGenerationFailed  Kind = "GENERATION_FAILED"
	KindNotFound          Kind = "NOT_FOUND"
	KindInternal          Kind = "INTERNAL_ERROR"
)

// Error is the typed error carried through the service layers.
type Error struct {
	Kind    Kind
	Message string

	// RetryAfter is the suggested wait in seconds. Only meaningful for
	// KindRateLimitExceeded.
	RetryAfter int

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a typed error wrapping an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// RateLimited creates a KindRateLimitExceeded error carrying the suggested
// retry-after hint in seconds.
func RateLimited(message string, retryAfter int) *Error {
	return &Error{Kind: KindRateLimitExceeded, Message: message, RetryAfter: retryAfter}
}

// KindOf extracts the kind from err, or KindInternal when err carries no
// classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// RetryAfterOf extracts the retry-after hint from err, or 0.
func RetryAfterOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// HTTPStatus maps a kind to the status code returned at the boundary.
// The switch is exhaustive over the taxonomy; anything unclassified is a 500.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidModel, KindInvalidInput:
		return http.StatusBadRequest
	case KindAuthError:
		return http.StatusUnauthorized
	case KindRateLimitExceeded, KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindGenerationFailed, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// label is the short error field of the response envelope, one per kind.
func label(kind Kind) string {
	switch kind {
	case KindInvalidModel, KindInvalidInput:
		return "Invalid request"
	case KindAuthError:
		return "Authentication failed"
	case KindRateLimitExceeded:
		return "Rate limit exceeded"
	case KindQuotaExceeded:
		return "API quota exceeded"
	case KindGenerationFailed:
		return "Content generation failed"
	case KindNotFound:
		return "Not found"
	default:
		return "Internal server error"
	}
}
