package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/evaluator/internal/store"
)

// Common service errors. Callers check them with errors.Is and the API
// layer maps them to HTTP status codes.
var (
	// ErrEvaluationNotFound indicates that no evaluation record has the
	// requested id. API layer should map this to HTTP 404 Not Found.
	ErrEvaluationNotFound = errors.New("evaluation not found")
)

// EvaluationServiceError wraps unexpected failures from the evaluation
// service with the operation that failed.
type EvaluationServiceError struct {
	// Operation is the operation that failed (e.g. "submit", "get_record")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for EvaluationServiceError.
func (e *EvaluationServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("evaluation service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("evaluation service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *EvaluationServiceError) Unwrap() error {
	return e.Err
}

// NewEvaluationServiceError creates a new EvaluationServiceError.
// Store not-found errors are translated to ErrEvaluationNotFound.
func NewEvaluationServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEvaluationNotFound) || errors.Is(err, store.ErrEvaluationNotFound) {
		return ErrEvaluationNotFound
	}
	return &EvaluationServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// OrphanedJobError is returned when a job was enqueued but its evaluation
// record could not be created. The job may still run and will find no
// record to update.
type OrphanedJobError struct {
	JobID string
	// Removed reports whether the job was taken back off the queue.
	Removed bool
	Err     error
}

func (e *OrphanedJobError) Error() string {
	return fmt.Sprintf("orphaned job %s (removed=%t): %v", e.JobID, e.Removed, e.Err)
}

func (e *OrphanedJobError) Unwrap() error {
	return e.Err
}
