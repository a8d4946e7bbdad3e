package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/evaluator/internal/domain"
	"github.com/phrazzld/evaluator/internal/platform/logger"
	"github.com/phrazzld/evaluator/internal/store"
)

const evaluationColumns = `id, type, job_id, input, status, scores, feedback, error,
		attempts, last_error, created_at, updated_at`

// openStatuses is the predicate every status update carries so that no
// write ever leaves a terminal status.
const openStatuses = `status IN ('pending', 'processing')`

// PostgresEvaluationStore implements store.EvaluationStore
// using a PostgreSQL database as the storage backend.
type PostgresEvaluationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresEvaluationStore creates a new PostgreSQL implementation of the
// EvaluationStore interface. The caller owns db.
func NewPostgresEvaluationStore(db store.DBTX, logger *slog.Logger) *PostgresEvaluationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresEvaluationStore{
		db:     db,
		logger: logger.With(slog.String("component", "evaluation_store")),
	}
}

var _ store.EvaluationStore = (*PostgresEvaluationStore)(nil)

// Create implements store.EvaluationStore.Create.
func (s *PostgresEvaluationStore) Create(ctx context.Context, record *domain.EvaluationRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := record.Validate(); err != nil {
		log.Warn("evaluation validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_id", record.JobID))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	scores, feedback, err := marshalResult(record.Scores, record.Feedback)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO evaluations (` + evaluationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.Type,
		record.JobID,
		[]byte(record.Input),
		record.Status,
		scores,
		feedback,
		nullString(record.Error),
		record.Attempts,
		nullString(record.LastError),
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("duplicate job id on evaluation create",
				slog.String("job_id", record.JobID))
			return fmt.Errorf("%w: %v", store.ErrJobIDExists, err)
		}
		log.Error("failed to create evaluation",
			slog.String("error", err.Error()),
			slog.String("evaluation_id", record.ID.String()),
			slog.String("job_id", record.JobID))
		return store.NewStoreError("evaluation", "create", "insert failed", MapError(err))
	}

	log.Info("evaluation created",
		slog.String("evaluation_id", record.ID.String()),
		slog.String("job_id", record.JobID),
		slog.String("type", string(record.Type)))
	return nil
}

// GetByID implements store.EvaluationStore.GetByID.
func (s *PostgresEvaluationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.EvaluationRecord, error) {
	query := `SELECT ` + evaluationColumns + ` FROM evaluations WHERE id = $1`
	return s.getOne(ctx, query, id, slog.String("evaluation_id", id.String()))
}

// GetByJobID implements store.EvaluationStore.GetByJobID.
func (s *PostgresEvaluationStore) GetByJobID(ctx context.Context, jobID string) (*domain.EvaluationRecord, error) {
	query := `SELECT ` + evaluationColumns + ` FROM evaluations WHERE job_id = $1`
	return s.getOne(ctx, query, jobID, slog.String("job_id", jobID))
}

func (s *PostgresEvaluationStore) getOne(
	ctx context.Context,
	query string,
	arg any,
	attr slog.Attr,
) (*domain.EvaluationRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	record, err := scanEvaluation(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("evaluation not found", attr)
			return nil, store.ErrEvaluationNotFound
		}
		log.Error("failed to get evaluation", slog.String("error", err.Error()), attr)
		return nil, store.NewStoreError("evaluation", "get", "query failed", MapError(err))
	}
	return record, nil
}

// MarkProcessing implements store.EvaluationStore.MarkProcessing.
func (s *PostgresEvaluationStore) MarkProcessing(ctx context.Context, jobID string) error {
	query := `
		UPDATE evaluations
		SET status = 'processing', attempts = attempts + 1, updated_at = NOW()
		WHERE job_id = $1 AND ` + openStatuses
	return s.update(ctx, "mark_processing", jobID, query, jobID)
}

// MarkCompleted implements store.EvaluationStore.MarkCompleted.
func (s *PostgresEvaluationStore) MarkCompleted(
	ctx context.Context,
	jobID string,
	scores domain.ScoreSet,
	feedback domain.Feedback,
) error {
	if err := scores.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	scoresJSON, feedbackJSON, err := marshalResult(scores, &feedback)
	if err != nil {
		return err
	}

	query := `
		UPDATE evaluations
		SET status = 'completed', scores = $2, feedback = $3, error = NULL, updated_at = NOW()
		WHERE job_id = $1 AND ` + openStatuses
	return s.update(ctx, "mark_completed", jobID, query, jobID, scoresJSON, feedbackJSON)
}

// MarkFailed implements store.EvaluationStore.MarkFailed.
func (s *PostgresEvaluationStore) MarkFailed(ctx context.Context, jobID string, message string) error {
	if message == "" {
		message = "evaluation failed"
	}
	query := `
		UPDATE evaluations
		SET status = 'failed', error = $2, scores = NULL, feedback = NULL, updated_at = NOW()
		WHERE job_id = $1 AND ` + openStatuses
	return s.update(ctx, "mark_failed", jobID, query, jobID, message)
}

// RecordAttemptError implements store.EvaluationStore.RecordAttemptError.
func (s *PostgresEvaluationStore) RecordAttemptError(ctx context.Context, jobID string, message string) error {
	query := `
		UPDATE evaluations
		SET last_error = $2, updated_at = NOW()
		WHERE job_id = $1 AND ` + openStatuses
	return s.update(ctx, "record_attempt_error", jobID, query, jobID, message)
}

// Ping implements store.EvaluationStore.Ping.
func (s *PostgresEvaluationStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("evaluation store unreachable: %w", err)
	}
	return nil
}

// update runs a guarded status update. When nothing matched it tells a
// missing record apart from one that is already terminal.
func (s *PostgresEvaluationStore) update(
	ctx context.Context,
	operation string,
	jobID string,
	query string,
	args ...any,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("job_id", jobID),
		slog.String("operation", operation))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update evaluation", slog.String("error", err.Error()))
		return store.NewStoreError("evaluation", operation, "update failed", MapError(err))
	}

	err = CheckRowsAffected(result, "evaluation")
	if err == nil {
		log.Debug("evaluation updated")
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.NewStoreError("evaluation", operation, "update failed", err)
	}

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM evaluations WHERE job_id = $1`, jobID).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		log.Warn("no evaluation for job")
		return store.ErrEvaluationNotFound
	case err != nil:
		return store.NewStoreError("evaluation", operation, "status lookup failed", MapError(err))
	default:
		log.Warn("evaluation already in terminal status", slog.String("status", status))
		return fmt.Errorf("%w: evaluation is %s", store.ErrInvalidTransition, status)
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row rowScanner) (*domain.EvaluationRecord, error) {
	var (
		record    domain.EvaluationRecord
		evalType  string
		status    string
		input     []byte
		scores    []byte
		feedback  []byte
		errMsg    sql.NullString
		lastError sql.NullString
	)

	if err := row.Scan(
		&record.ID,
		&evalType,
		&record.JobID,
		&input,
		&status,
		&scores,
		&feedback,
		&errMsg,
		&record.Attempts,
		&lastError,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}

	record.Type = domain.EvaluationType(evalType)
	record.Status = domain.EvaluationStatus(status)
	record.Input = json.RawMessage(input)
	record.Error = errMsg.String
	record.LastError = lastError.String

	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &record.Scores); err != nil {
			return nil, fmt.Errorf("failed to decode scores: %w", err)
		}
	}
	if len(feedback) > 0 {
		var fb domain.Feedback
		if err := json.Unmarshal(feedback, &fb); err != nil {
			return nil, fmt.Errorf("failed to decode feedback: %w", err)
		}
		record.Feedback = &fb
	}
	return &record, nil
}

func marshalResult(scores domain.ScoreSet, feedback *domain.Feedback) (scoresJSON, feedbackJSON []byte, err error) {
	if scores != nil {
		if scoresJSON, err = json.Marshal(scores); err != nil {
			return nil, nil, fmt.Errorf("failed to encode scores: %w", err)
		}
	}
	if feedback != nil {
		if feedbackJSON, err = json.Marshal(feedback); err != nil {
			return nil, nil, fmt.Errorf("failed to encode feedback: %w", err)
		}
	}
	return scoresJSON, feedbackJSON, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
