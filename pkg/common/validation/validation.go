// Package validation provides common validation utilities for the governor library.
package validation

import (
	"time"

	gferrors "github.com/vnykmshr/governor/pkg/common/errors"
)

// ValidatePositive validates that an integer value is positive (> 0).
// Returns a ValidationError if the value is not positive.
func ValidatePositive(module, field string, value int) error {
	if value <= 0 {
		return gferrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateNonNegative validates that an integer value is non-negative (>= 0).
func ValidateNonNegative(module, field string, value int) error {
	if value < 0 {
		return gferrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 or a positive value")
	}
	return nil
}

// ValidateMinDuration validates that a duration is at least min.
func ValidateMinDuration(module, field string, value, min time.Duration) error {
	if value < min {
		return gferrors.NewValidationError(module, field, value, "too short").
			WithHint("use at least " + min.String())
	}
	return nil
}

// ValidateNotEmpty validates that a string value is not empty.
// Returns a ValidationError if the string is empty.
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return gferrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}
