package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/evaluator/internal/domain"
)

// EvaluationStore persists evaluation records. Status updates are keyed by
// job id and refuse to leave a terminal status: implementations return
// ErrInvalidTransition when the record is already completed or failed, and
// ErrEvaluationNotFound when no record carries the job id.
type EvaluationStore interface {
	// Create saves a new record. A second record for the same job id fails
	// with ErrJobIDExists.
	Create(ctx context.Context, record *domain.EvaluationRecord) error

	// GetByID retrieves a record by its internal id.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EvaluationRecord, error)

	// GetByJobID retrieves the record created for a job.
	GetByJobID(ctx context.Context, jobID string) (*domain.EvaluationRecord, error)

	// MarkProcessing moves the record to processing and counts the attempt.
	MarkProcessing(ctx context.Context, jobID string) error

	// MarkCompleted stores the result and moves the record to completed.
	MarkCompleted(ctx context.Context, jobID string, scores domain.ScoreSet, feedback domain.Feedback) error

	// MarkFailed stores the error and moves the record to failed.
	MarkFailed(ctx context.Context, jobID string, message string) error

	// RecordAttemptError stores the error of a non-final attempt without
	// leaving processing.
	RecordAttemptError(ctx context.Context, jobID string, message string) error

	// Ping reports whether the underlying database is reachable.
	Ping(ctx context.Context) error
}
