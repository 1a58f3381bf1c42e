// Package apperr defines the closed set of error kinds the HTTP API reports
// and the classifier that turns any handler error into a status code and body.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// Kind is the category of an error. The set is closed: every value maps to
// exactly one status code and public message.
type Kind uint8

const (
	// KindInternal is the zero value and covers every unclassified error.
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindTooManyRequests
)

// String returns the error-kind tag used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindUnauthorized:
		return "UnauthorizedError"
	case KindForbidden:
		return "ForbiddenError"
	case KindNotFound:
		return "NotFoundError"
	case KindConflict:
		return "ConflictError"
	case KindTooManyRequests:
		return "TooManyRequestsError"
	default:
		return "InternalError"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message clients see for an error of this kind.
// Only validation errors expose their own message.
func (k Kind) PublicMessage(own string) string {
	switch k {
	case KindValidation:
		return own
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "Not Found"
	case KindConflict:
		return "Conflict"
	case KindTooManyRequests:
		return "Too Many Requests"
	default:
		return "Internal Server Error"
	}
}

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	stack error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// WithCause attaches the underlying error and returns e.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// StackTrace returns the formatted stack captured when the error was created.
func (e *Error) StackTrace() string {
	if e.stack == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.stack)
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		stack:   pkgerrors.WithStack(errors.New(message)),
	}
}

// Validation creates an error whose message is shown to the client (HTTP 400).
func Validation(message string) *Error {
	return newError(KindValidation, message, nil)
}

// Unauthorized creates an authentication error (HTTP 401).
func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, message, nil)
}

// Forbidden creates an authorization error (HTTP 403).
func Forbidden(message string) *Error {
	return newError(KindForbidden, message, nil)
}

// NotFound creates a missing-resource error (HTTP 404).
func NotFound(message string) *Error {
	return newError(KindNotFound, message, nil)
}

// Conflict creates a resource conflict error (HTTP 409).
func Conflict(message string) *Error {
	return newError(KindConflict, message, nil)
}

// TooManyRequests creates a rate limit error (HTTP 429).
func TooManyRequests(message string) *Error {
	return newError(KindTooManyRequests, message, nil)
}

// Internal wraps an unexpected failure (HTTP 500).
func Internal(message string, cause error) *Error {
	return newError(KindInternal, message, cause)
}

// KindOf returns the kind of the first *Error in err's chain,
// or KindInternal when there is none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// FromStatus converts a framework-level HTTP status into a classified error.
func FromStatus(code int, message string) *Error {
	var kind Kind
	switch code {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		kind = KindValidation
	case http.StatusUnauthorized:
		kind = KindUnauthorized
	case http.StatusForbidden:
		kind = KindForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		kind = KindNotFound
	case http.StatusConflict:
		kind = KindConflict
	case http.StatusTooManyRequests:
		kind = KindTooManyRequests
	default:
		kind = KindInternal
	}
	return newError(kind, message, nil)
}
