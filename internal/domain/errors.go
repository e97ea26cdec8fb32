package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidState   = errors.New("illegal state transition")
	ErrIncompleteData = errors.New("order not confirmed yet")
)

// ValidationError reports rejected input. It maps to a 400 at the HTTP
// boundary and is recoverable by the caller correcting the request.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ExternalServiceError wraps a failure from an external collaborator such as
// the payment gateway. Callers get a generic message; the wrapped error
// carries the collaborator detail for logging.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
