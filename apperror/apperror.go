// Package apperror defines the error taxonomy shared by the dispatcher and
// the transports. Sentinels classify an error; AppError carries the message
// that is safe to show a caller.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrTooLarge       = errors.New("too large")
	ErrThrottled      = errors.New("throttled")
	ErrNotImplemented = errors.New("not implemented")
	ErrAtCapacity     = errors.New("at capacity")
	ErrInternal       = errors.New("internal error")
)

// ThrottledMessage is the fixed text returned to rate-limited callers.
const ThrottledMessage = "Too many requests, please try again later."

// InternalMessage replaces the details of unexpected failures.
const InternalMessage = "An internal error occurred"

type AppError struct {
	Err     error  // classifying sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	cause   error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.cause}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func TooLarge(field string, limit int) *AppError {
	return &AppError{
		Err:     ErrTooLarge,
		Message: fmt.Sprintf("%s exceeds the maximum size of %d bytes", field, limit),
		Field:   field,
	}
}

func Throttled() *AppError {
	return &AppError{
		Err:     ErrThrottled,
		Message: ThrottledMessage,
	}
}

func NotImplemented(feature string) *AppError {
	return &AppError{
		Err:     ErrNotImplemented,
		Message: fmt.Sprintf("%s is not yet implemented", feature),
	}
}

// AtCapacity is returned when every execution slot stayed busy.
func AtCapacity() *AppError {
	return &AppError{
		Err:     ErrAtCapacity,
		Message: "The server is busy, please try again later.",
	}
}

// Internal hides cause behind the generic message. The cause stays
// reachable through errors.Is/As for logging.
func Internal(cause error) *AppError {
	return &AppError{
		Err:     ErrInternal,
		Message: InternalMessage,
		cause:   cause,
	}
}

// Message returns the caller-safe text for err.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return InternalMessage
}

// Kind returns a short machine-readable name for err, used in logs and
// metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrThrottled):
		return "throttled"
	case errors.Is(err, ErrNotImplemented):
		return "not_implemented"
	case errors.Is(err, ErrAtCapacity):
		return "at_capacity"
	default:
		return "internal"
	}
}
