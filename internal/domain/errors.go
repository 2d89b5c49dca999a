// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// Every more specific validation error below wraps it, so callers can
	// check for the whole family with errors.Is(err, ErrValidation).
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = fmt.Errorf("%w: invalid ID", ErrValidation)

	// ErrEmptyTitle is returned when a task title is empty.
	ErrEmptyTitle = fmt.Errorf("%w: task title cannot be empty", ErrValidation)

	// ErrTitleTooLong is returned when a task title exceeds MaxTitleLength.
	ErrTitleTooLong = fmt.Errorf("%w: task title is too long", ErrValidation)

	// ErrInvalidPriority is returned when a priority is outside [MinPriority, MaxPriority].
	ErrInvalidPriority = fmt.Errorf("%w: task priority out of range", ErrValidation)

	// ErrInvalidStatus is returned when a status value is not one of the known statuses.
	ErrInvalidStatus = fmt.Errorf("%w: invalid task status", ErrValidation)

	// ErrInvalidTransition is returned when a requested status is not a legal
	// next state for the current one.
	ErrInvalidTransition = fmt.Errorf("%w: illegal status transition", ErrValidation)
)

// ValidationError carries the offending field alongside one of the sentinel
// errors above.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ValidationError) Unwrap() error {
	if e.Err == nil {
		return ErrValidation
	}
	return e.Err
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
