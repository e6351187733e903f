package backend

import (
	"errors"
	"fmt"

	"syncdeck/pkg/shared"
)

type ErrorType string

const (
	ErrorTypeNetwork      ErrorType = "network_error"
	ErrorTypeBackend      ErrorType = "backend_error"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInvalidInput ErrorType = "invalid_input"
	ErrorTypeDecode       ErrorType = "decode_error"
)

type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets callers match not-found errors with errors.Is(err, shared.ErrNotFound).
func (e *Error) Is(target error) bool {
	return target == shared.ErrNotFound && e.Type == ErrorTypeNotFound
}

// IsRetryable reports whether retrying the same call may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var backendErr *Error
	if !errors.As(err, &backendErr) {
		return false
	}

	switch backendErr.Type {
	case ErrorTypeNetwork:
		return true
	case ErrorTypeBackend:
		return backendErr.StatusCode >= 500
	default:
		return false
	}
}
