package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the governor library

var (
	// ErrDisposed indicates that an operation was attempted on a closed bucket
	ErrDisposed = errors.New("bucket is disposed")

	// ErrInvalidArgument indicates invalid construction or configuration parameters
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCanceled indicates that the caller abandoned a pending operation
	ErrCanceled = errors.New("operation canceled")
)

// ValidationError describes a rejected configuration value.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError without a hint.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a remediation hint and returns the same error for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap lets errors.Is match ErrInvalidArgument.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

// OperationError records which operation of which module failed and why.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// NewOperationError creates an OperationError without extra context.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// WithContext attaches a detail string and returns the same error for chaining.
func (e *OperationError) WithContext(context string) *OperationError {
	e.Context = context
	return e
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// NewCanceledError wraps a context error so that it matches both ErrCanceled
// and the original cause.
func NewCanceledError(module, operation string, cause error) *OperationError {
	return NewOperationError(module, operation, fmt.Errorf("%w: %w", ErrCanceled, cause))
}

// IsTerminal returns true if retrying the same call can never succeed:
// the bucket is gone or the arguments are invalid.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrDisposed) || errors.Is(err, ErrInvalidArgument)
}

// IsCanceled returns true if the error reports an abandoned wait
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
