// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidEvaluationType is returned for a type tag other than text or audio.
	ErrInvalidEvaluationType = errors.New("invalid evaluation type")

	// ErrInvalidEvaluationStatus is returned when a status is not valid.
	ErrInvalidEvaluationStatus = errors.New("invalid evaluation status")

	// ErrInvalidTransition is returned when a status change would move a
	// record backwards or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInconsistentResult is returned when scores, feedback or error do
	// not agree with the record status.
	ErrInconsistentResult = errors.New("result fields inconsistent with status")

	// ErrScoreOutOfRange is returned when a score falls outside [0, 1].
	ErrScoreOutOfRange = errors.New("score out of range")
)

// ValidationError describes a rejected request field. It is returned
// synchronously to callers and never results in a job or record.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap makes errors.Is(err, ErrValidation) true for every ValidationError.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ErrDependencyUnavailable marks failures of an external collaborator such
// as the grammar checker or the object-store probe.
var ErrDependencyUnavailable = errors.New("dependency unavailable")

// DependencyError reports a failed call to an external collaborator.
// Text evaluations absorb it with fallback scores; audio evaluations
// escalate it as a job failure.
type DependencyError struct {
	Service string
	Err     error
}

// NewDependencyError wraps err as a failure of service.
func NewDependencyError(service string, err error) *DependencyError {
	return &DependencyError{Service: service, Err: err}
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

// Unwrap returns the underlying error.
func (e *DependencyError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDependencyUnavailable) true.
func (e *DependencyError) Is(target error) bool {
	return target == ErrDependencyUnavailable
}
