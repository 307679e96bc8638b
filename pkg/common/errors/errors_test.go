package errors

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCommonErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrDisposed", ErrDisposed, "bucket is disposed"},
		{"ErrInvalidArgument", ErrInvalidArgument, "invalid argument"},
		{"ErrCanceled", ErrCanceled, "operation canceled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "without hint",
			err: &ValidationError{
				Module: "bucket",
				Field:  "capacity",
				Value:  0,
				Reason: "must be positive",
			},
			want: "bucket: invalid capacity=0 (must be positive)",
		},
		{
			name: "with hint",
			err: &ValidationError{
				Module: "bucket",
				Field:  "interval",
				Value:  "0s",
				Reason: "must be positive",
				Hint:   "use at least 1ms",
			},
			want: "bucket: invalid interval=0s (must be positive) - use at least 1ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationError_Unwrap(t *testing.T) {
	verr := NewValidationError("test", "field", 0, "test")

	if !errors.Is(verr, ErrInvalidArgument) {
		t.Error("ValidationError should wrap ErrInvalidArgument")
	}
	if verr.Hint != "" {
		t.Errorf("Hint = %q, want empty string", verr.Hint)
	}

	result := verr.WithHint("hint")
	if result != verr {
		t.Error("WithHint should return the same instance")
	}
}

func TestOperationError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewOperationError("report", "Publish", cause).WithContext("channel governor.ticks")

	want := "report.Publish failed: connection refused (channel governor.ticks)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("OperationError should wrap the cause error")
	}
}

func TestNewCanceledError(t *testing.T) {
	err := NewCanceledError("bucket", "Acquire", context.DeadlineExceeded)

	if !errors.Is(err, ErrCanceled) {
		t.Error("canceled error should match ErrCanceled")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("canceled error should match the context cause")
	}
	if !IsCanceled(err) {
		t.Error("IsCanceled should report true")
	}
	if IsTerminal(err) {
		t.Error("cancellation is not terminal")
	}
	if !strings.Contains(err.Error(), "bucket.Acquire") {
		t.Errorf("message should name the operation, got %q", err.Error())
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"disposed", ErrDisposed, true},
		{"wrapped disposed", NewOperationError("bucket", "Acquire", ErrDisposed), true},
		{"validation", NewValidationError("bucket", "capacity", 0, "must be positive"), true},
		{"canceled", ErrCanceled, false},
		{"random", errors.New("random"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTerminal(tt.err); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation error", &ValidationError{Module: "test", Field: "field", Value: 0, Reason: "test"}, true},
		{"wrapped validation error", &OperationError{Cause: &ValidationError{Module: "test"}}, true},
		{"operation error", &OperationError{Cause: errors.New("test")}, false},
		{"sentinel", ErrInvalidArgument, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidationError(tt.err); got != tt.want {
				t.Errorf("IsValidationError() = %v, want %v", got, tt.want)
			}
		})
	}
}
