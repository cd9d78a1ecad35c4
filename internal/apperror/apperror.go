// Package apperror defines the error taxonomy shared by the platform and the
// client application.
//
// Every error carries a sentinel (so callers can use errors.Is) and a
// human-readable Message that is safe to show to the user verbatim.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAuth marks failures of session operations (bad credentials, network
	// failure, provider rejection).
	ErrAuth = errors.New("auth error")
	// ErrRepository marks failures of snippet list/insert calls.
	ErrRepository = errors.New("repository error")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized means the caller is not (or no longer) authenticated.
// HTTP handlers map this to 401.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// AuthFailed wraps a failed session operation. cause may be nil.
func AuthFailed(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrAuth,
		Message: message,
		Cause:   cause,
	}
}

// RepoFailed wraps a failed snippet list/insert call. cause may be nil.
func RepoFailed(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrRepository,
		Message: message,
		Cause:   cause,
	}
}

// Message returns the user-facing text of err: the Message of the first
// AppError in the chain, or err.Error() otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
