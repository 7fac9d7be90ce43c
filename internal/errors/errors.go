// Package errors provides the closed error taxonomy for the voting core,
// with HTTP status mapping and response formatting.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a failure. The set is closed: every error crossing
// the service boundary carries exactly one of these.
type Kind string

const (
	// KindUnauthenticated indicates no caller identity was present (HTTP 401)
	KindUnauthenticated Kind = "unauthenticated"
	// KindInvalidInput indicates malformed or empty input (HTTP 400)
	KindInvalidInput Kind = "invalid_input"
	// KindNotFound indicates the referenced item does not exist (HTTP 404)
	KindNotFound Kind = "not_found"
	// KindAlreadyVoted indicates the caller already has an active vote (HTTP 409)
	KindAlreadyVoted Kind = "already_voted"
	// KindNoActiveVote indicates the caller has no vote to retract (HTTP 409)
	KindNoActiveVote Kind = "no_active_vote"
	// KindStoreUnavailable indicates a transient store failure (HTTP 503)
	KindStoreUnavailable Kind = "store_unavailable"
	// KindInternal indicates an unexpected server-side error (HTTP 500)
	KindInternal Kind = "internal"
)

// Error is a structured error with kind, message, and context fields.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
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

// HTTPStatus returns the HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyVoted, KindNoActiveVote:
		return http.StatusConflict
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Unauthenticated creates a new unauthenticated error (HTTP 401).
func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

// InvalidInput creates a new invalid-input error (HTTP 400).
func InvalidInput(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

// NotFound creates a new not-found error (HTTP 404).
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// AlreadyVoted creates a new already-voted error (HTTP 409).
func AlreadyVoted(message string) *Error {
	return &Error{Kind: KindAlreadyVoted, Message: message}
}

// NoActiveVote creates a new no-active-vote error (HTTP 409).
func NoActiveVote(message string) *Error {
	return &Error{Kind: KindNoActiveVote, Message: message}
}

// StoreUnavailable creates a new store-unavailable error (HTTP 503).
func StoreUnavailable(message string, cause error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: message, Cause: cause}
}

// Internal creates a new internal error (HTTP 500).
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// WithField adds a context field to the error (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON structure sent to clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Kind    Kind           `json:"kind"`
	Context map[string]any `json:"context,omitempty"`
}

// ToResponse converts an Error to an ErrorResponse for JSON serialization.
func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Kind:    e.Kind,
		Context: e.Context,
	}
}

// AsError converts any error into a structured *Error. If err already is
// one, it is returned unchanged; otherwise it is wrapped as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}

	return Internal("internal server error", err)
}

// IsKind reports whether err is a structured error of the given kind.
func IsKind(err error, kind Kind) bool {
	var structured *Error
	if errors.As(err, &structured) {
		return structured.Kind == kind
	}
	return false
}
