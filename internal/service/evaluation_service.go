package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/evaluator/internal/domain"
	"github.com/phrazzld/evaluator/internal/platform/logger"
	"github.com/phrazzld/evaluator/internal/platform/objectstore"
	"github.com/phrazzld/evaluator/internal/queue"
	"github.com/phrazzld/evaluator/internal/redact"
	"github.com/phrazzld/evaluator/internal/store"
)

// QueueStateNotFound is reported for a job the queue no longer holds.
const QueueStateNotFound = "not_found"

// SourceChecker validates an audio source before any durable state exists.
type SourceChecker interface {
	CheckSource(ctx context.Context, rawURL string) objectstore.Check
}

// SubmissionPolicy is the queue and retry policy applied to every job.
type SubmissionPolicy struct {
	QueueName   string
	MaxAttempts int
	BackoffBase time.Duration
}

// Submission identifies an accepted evaluation.
type Submission struct {
	RecordID uuid.UUID `json:"recordId"`
	JobID    string    `json:"jobId"`
}

// JobStatus is the reconciled view of a job and its evaluation record.
type JobStatus struct {
	ID            string                   `json:"id"`
	QueueState    string                   `json:"queueState"`
	Result        json.RawMessage          `json:"result,omitempty"`
	FailureReason string                   `json:"failureReason,omitempty"`
	Record        *domain.EvaluationRecord `json:"record"`
}

// EvaluationService defines evaluation submission and status operations.
type EvaluationService interface {
	// Submit validates req, enqueues its job and creates the pending record.
	// Invalid requests return a *domain.ValidationError and leave no trace.
	Submit(ctx context.Context, req domain.EvaluationRequest) (*Submission, error)

	// GetStatus reconciles queue state and record for jobID. It never fails.
	GetStatus(ctx context.Context, jobID string) *JobStatus

	// GetRecord returns the record with the given internal id.
	GetRecord(ctx context.Context, id uuid.UUID) (*domain.EvaluationRecord, error)
}

type evaluationServiceImpl struct {
	queue   queue.Queue
	records store.EvaluationStore
	sources SourceChecker
	policy  SubmissionPolicy
	logger  *slog.Logger
}

// NewEvaluationService creates an EvaluationService.
func NewEvaluationService(
	q queue.Queue,
	records store.EvaluationStore,
	sources SourceChecker,
	policy SubmissionPolicy,
	logger *slog.Logger,
) (EvaluationService, error) {
	if q == nil {
		return nil, domain.NewValidationError("queue", "cannot be nil")
	}
	if records == nil {
		return nil, domain.NewValidationError("records", "cannot be nil")
	}
	if sources == nil {
		return nil, domain.NewValidationError("sources", "cannot be nil")
	}
	if policy.QueueName == "" {
		return nil, domain.NewValidationError("policy.QueueName", "cannot be empty")
	}
	if policy.MaxAttempts < 1 {
		return nil, domain.NewValidationError("policy.MaxAttempts", "must be at least 1")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &evaluationServiceImpl{
		queue:   q,
		records: records,
		sources: sources,
		policy:  policy,
		logger:  logger.With(slog.String("component", "evaluation_service")),
	}, nil
}

// Submit implements EvaluationService.Submit.
func (s *evaluationServiceImpl) Submit(ctx context.Context, req domain.EvaluationRequest) (*Submission, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := req.Validate(); err != nil {
		log.Debug("evaluation request rejected", slog.String("error", err.Error()))
		return nil, err
	}

	if req.Type == domain.EvaluationTypeAudio {
		if check := s.sources.CheckSource(ctx, req.Audio.SourceURL); !check.OK {
			log.Info("audio source rejected", slog.String("reason", check.Reason))
			return nil, domain.NewValidationError("sourceUrl", check.Reason)
		}
	}

	payload, err := req.Payload()
	if err != nil {
		return nil, NewEvaluationServiceError("submit", "failed to build job payload", err)
	}

	job, err := s.queue.Enqueue(ctx, s.policy.QueueName, req.Type.JobName(), payload, queue.JobOptions{
		MaxAttempts: s.policy.MaxAttempts,
		Backoff:     queue.ExponentialBackoff(s.policy.BackoffBase),
	})
	if err != nil {
		log.Error("failed to enqueue evaluation job",
			slog.String("type", string(req.Type)),
			slog.String("error", redact.Error(err)))
		return nil, NewEvaluationServiceError("submit", "failed to enqueue job", err)
	}

	record, err := domain.NewEvaluationRecord(req.Type, job.ID, payload)
	if err == nil {
		err = s.records.Create(ctx, record)
	}
	if err != nil {
		return nil, s.orphaned(ctx, job.ID, err)
	}

	log.Info("evaluation submitted",
		slog.String("evaluation_id", record.ID.String()),
		slog.String("job_id", job.ID),
		slog.String("type", string(req.Type)))

	return &Submission{RecordID: record.ID, JobID: job.ID}, nil
}

// orphaned handles a job whose record could not be created. It tries to
// take the job back off the queue and reports the window either way.
func (s *evaluationServiceImpl) orphaned(ctx context.Context, jobID string, cause error) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	removed := true
	if err := s.queue.Remove(ctx, s.policy.QueueName, jobID); err != nil {
		removed = false
		log.Error("failed to remove orphaned job",
			slog.String("job_id", jobID),
			slog.String("error", redact.Error(err)))
	}

	log.Error("orphaned job",
		slog.String("job_id", jobID),
		slog.Bool("removed", removed),
		slog.String("error", redact.Error(cause)))

	return &OrphanedJobError{JobID: jobID, Removed: removed, Err: cause}
}

// GetStatus implements EvaluationService.GetStatus.
func (s *evaluationServiceImpl) GetStatus(ctx context.Context, jobID string) *JobStatus {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("job_id", jobID))
	status := &JobStatus{ID: jobID}

	job, err := s.queue.Lookup(ctx, s.policy.QueueName, jobID)
	switch {
	case err != nil:
		log.Warn("queue lookup failed", slog.String("error", redact.Error(err)))
		status.QueueState = string(queue.StateUnknown)
	case job == nil:
		status.QueueState = QueueStateNotFound
	default:
		state := s.queue.State(job)
		status.QueueState = string(state)
		switch state {
		case queue.StateCompleted:
			status.Result = job.ReturnValue
		case queue.StateFailed:
			status.FailureReason = job.FailedReason
		}
	}

	record, err := s.records.GetByJobID(ctx, jobID)
	switch {
	case err == nil:
		status.Record = record
	case errors.Is(err, store.ErrEvaluationNotFound):
	default:
		log.Warn("record lookup failed", slog.String("error", redact.Error(err)))
	}

	return status
}

// GetRecord implements EvaluationService.GetRecord.
func (s *evaluationServiceImpl) GetRecord(ctx context.Context, id uuid.UUID) (*domain.EvaluationRecord, error) {
	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrEvaluationNotFound) {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to get evaluation",
				slog.String("evaluation_id", id.String()),
				slog.String("error", redact.Error(err)))
		}
		return nil, NewEvaluationServiceError("get_record", "failed to get evaluation", err)
	}
	return record, nil
}
