package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"

	"github.com/phrazzld/evaluator/internal/domain"
	"github.com/phrazzld/evaluator/internal/platform/logger"
	"github.com/phrazzld/evaluator/internal/queue"
	"github.com/phrazzld/evaluator/internal/redact"
	"github.com/phrazzld/evaluator/internal/store"
)

// ErrRecordMissing is returned for a job whose evaluation record does not
// exist. Submission writes the record right after enqueueing, so a worker
// can see the job first; the attempt is retried and only the final one
// gives up, which covers jobs orphaned by a failed submission.
var ErrRecordMissing = errors.New("evaluation record missing for job")

// Dispatcher routes jobs to evaluators by job name and keeps the evaluation
// record in step with each attempt. It implements queue.Handler.
type Dispatcher struct {
	records    store.EvaluationStore
	evaluators map[string]Evaluator
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher with no evaluators registered.
func NewDispatcher(records store.EvaluationStore, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		records:    records,
		evaluators: make(map[string]Evaluator),
		logger:     logger.With(slog.String("component", "dispatcher")),
	}
}

var (
	_ queue.Handler        = (*Dispatcher)(nil)
	_ queue.StalledHandler = (*Dispatcher)(nil)
)

// Register routes jobs for evalType to e, replacing any earlier evaluator.
func (d *Dispatcher) Register(evalType domain.EvaluationType, e Evaluator) {
	d.evaluators[evalType.JobName()] = e
}

// JobNames returns the job names this dispatcher handles, sorted.
func (d *Dispatcher) JobNames() []string {
	names := make([]string, 0, len(d.evaluators))
	for name := range d.evaluators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle implements queue.Handler.
func (d *Dispatcher) Handle(ctx context.Context, job *queue.Job) (any, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	evaluator, ok := d.evaluators[job.Name]
	if !ok {
		log.Debug("job type not handled by this worker", slog.String("job_name", job.Name))
		return nil, queue.ErrSkip
	}

	if err := d.records.MarkProcessing(ctx, job.ID); err != nil {
		return d.settled(ctx, job, err)
	}

	result, err := d.evaluate(ctx, evaluator, job)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// The attempt was abandoned, usually because the lease was lost
			// to another consumer; that consumer owns the record now.
			log.Warn("evaluation cancelled", slog.String("error", err.Error()))
			return nil, err
		}
		d.recordFailure(ctx, job, err)
		return nil, err
	}

	err = d.records.MarkCompleted(ctx, job.ID, result.Scores, result.Feedback)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrInvalidTransition):
		log.Warn("record already terminal, keeping stored result")
	default:
		log.Error("failed to store evaluation result", slog.String("error", redact.Error(err)))
		d.recordFailure(ctx, job, err)
		return nil, err
	}

	return result, nil
}

// evaluate runs e, turning a panic into an error so that the failure is
// written to the record like any other.
func (d *Dispatcher) evaluate(ctx context.Context, e Evaluator, job *queue.Job) (result *domain.JobResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.FromContextOrDefault(ctx, d.logger).Error("evaluator panicked",
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			result, err = nil, fmt.Errorf("evaluator panic: %v", p)
		}
	}()
	return e.Evaluate(ctx, job)
}

// HandleStalled implements queue.StalledHandler. The sweep may fail jobs of
// any type, so the record is written whether or not an evaluator is
// registered for the job here.
func (d *Dispatcher) HandleStalled(ctx context.Context, job *queue.Job) {
	log := logger.FromContextOrDefault(ctx, d.logger)
	if evalType, ok := domain.TypeForJobName(job.Name); ok {
		log = log.With(slog.String("evaluation_type", string(evalType)))
	}

	reason := job.FailedReason
	if reason == "" {
		reason = queue.StalledReason
	}
	err := d.records.MarkFailed(ctx, job.ID, reason)
	switch {
	case err == nil:
		log.Warn("evaluation failed after its job stalled")
	case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, store.ErrEvaluationNotFound):
		log.Debug("no open evaluation record for stalled job", slog.String("error", err.Error()))
	default:
		log.Error("failed to record stalled job failure", slog.String("error", redact.Error(err)))
	}
}

// settled decides what to do when the record cannot be moved to processing.
// A terminal record means an earlier delivery already finished the work, so
// its outcome is replayed to the queue instead of running again.
func (d *Dispatcher) settled(ctx context.Context, job *queue.Job, cause error) (any, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	switch {
	case errors.Is(cause, store.ErrEvaluationNotFound):
		missing := fmt.Errorf("%w: %s", ErrRecordMissing, job.ID)
		if !job.IsFinalAttempt() {
			log.Warn("no evaluation record for job yet, retrying")
			return nil, missing
		}
		log.Error("no evaluation record for job")
		return nil, queue.Unrecoverable(missing)

	case errors.Is(cause, store.ErrInvalidTransition):
		record, err := d.records.GetByJobID(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load terminal record: %w", err)
		}
		log.Info("record already terminal, replaying outcome",
			slog.String("status", string(record.Status)))
		if record.Status == domain.EvaluationStatusFailed {
			return nil, queue.Unrecoverable(errors.New(record.Error))
		}
		result := &domain.JobResult{Success: true, Scores: record.Scores}
		if record.Feedback != nil {
			result.Feedback = *record.Feedback
		}
		return result, nil

	default:
		log.Error("failed to mark evaluation processing", slog.String("error", redact.Error(cause)))
		return nil, fmt.Errorf("failed to mark evaluation processing: %w", cause)
	}
}

// recordFailure writes a failed attempt to the record. Attempts that will be
// retried keep the record processing and only store the error; the last
// attempt marks it failed. Write errors are logged, never returned, so that
// the original failure still reaches the queue.
func (d *Dispatcher) recordFailure(ctx context.Context, job *queue.Job, cause error) {
	log := logger.FromContextOrDefault(ctx, d.logger)
	message := redact.Error(cause)

	var err error
	if job.IsFinalAttempt() || queue.IsUnrecoverable(cause) {
		err = d.records.MarkFailed(ctx, job.ID, message)
	} else {
		err = d.records.RecordAttemptError(ctx, job.ID, message)
	}
	if err != nil {
		log.Error("failed to record evaluation failure",
			slog.String("error", redact.Error(err)),
			slog.String("evaluation_error", message))
	}
}
