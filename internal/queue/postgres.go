package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/evaluator/internal/platform/logger"
	"github.com/phrazzld/evaluator/internal/platform/postgres"
	"github.com/phrazzld/evaluator/internal/store"
)

const jobColumns = `id, queue, name, payload, state, attempts_made, max_attempts,
		backoff_base_ms, run_at, return_value, failed_reason, locked_by,
		created_at, processed_at, finished_at`

// heldBy is the predicate that every write to an active job carries, so a
// consumer whose lease was taken over cannot overwrite the new holder.
const heldBy = `id = $1 AND state = 'active' AND locked_by = $2`

const defaultPingTimeout = 2 * time.Second

// DB is the database handle PostgresQueue needs. *sql.DB implements it.
type DB interface {
	store.DBTX
	store.TxBeginner
}

// PostgresOptions configures a PostgresQueue.
type PostgresOptions struct {
	// RetainCompleted and RetainFailed bound how many finished jobs of each
	// kind a queue keeps. Older entries are pruned first. A negative value
	// keeps everything.
	RetainCompleted int
	RetainFailed    int

	// PingTimeout bounds Ping. Defaults to two seconds.
	PingTimeout time.Duration
}

// PostgresQueue is a Queue and Broker backed by the jobs table.
type PostgresQueue struct {
	db     DB
	opts   PostgresOptions
	logger *slog.Logger
}

// NewPostgresQueue creates a queue on db. The caller owns db and closes it.
func NewPostgresQueue(db DB, opts PostgresOptions, logger *slog.Logger) *PostgresQueue {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = defaultPingTimeout
	}
	return &PostgresQueue{
		db:     db,
		opts:   opts,
		logger: logger.With(slog.String("component", "queue")),
	}
}

var (
	_ Queue  = (*PostgresQueue)(nil)
	_ Broker = (*PostgresQueue)(nil)
)

// Enqueue implements Queue.Enqueue.
func (q *PostgresQueue) Enqueue(
	ctx context.Context,
	queueName, name string,
	payload any,
	opts JobOptions,
) (*Job, error) {
	log := logger.FromContextOrDefault(ctx, q.logger)

	body, err := marshalJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}
	if body == nil {
		body = []byte("null")
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	query := `
		INSERT INTO jobs (id, queue, name, payload, state, attempts_made,
			max_attempts, backoff_base_ms, run_at, created_at)
		VALUES ($1, $2, $3, $4, 'waiting', 0, $5, $6, NOW(), NOW())
		RETURNING ` + jobColumns

	job, err := scanJob(q.db.QueryRowContext(ctx, query,
		uuid.NewString(),
		queueName,
		name,
		body,
		maxAttempts,
		opts.Backoff.Base.Milliseconds(),
	))
	if err != nil {
		log.Error("failed to enqueue job",
			slog.String("queue", queueName),
			slog.String("job_name", name),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to enqueue %s job: %w", name, postgres.MapError(err))
	}

	log.Info("job enqueued",
		slog.String("queue", queueName),
		slog.String("job_id", job.ID),
		slog.String("job_name", name),
		slog.Int("max_attempts", job.MaxAttempts))
	return job, nil
}

// Lookup implements Queue.Lookup.
func (q *PostgresQueue) Lookup(ctx context.Context, queueName, jobID string) (*Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, nil
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE queue = $1 AND id = $2`
	job, err := scanJob(q.db.QueryRowContext(ctx, query, queueName, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up job %s: %w", jobID, postgres.MapError(err))
	}
	return job, nil
}

// State implements Queue.State.
func (q *PostgresQueue) State(job *Job) State {
	if job == nil {
		return StateUnknown
	}
	return classify(string(job.State))
}

// Remove implements Queue.Remove.
func (q *PostgresQueue) Remove(ctx context.Context, queueName, jobID string) error {
	log := logger.FromContextOrDefault(ctx, q.logger)

	if _, err := uuid.Parse(jobID); err != nil {
		return nil
	}

	result, err := q.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE queue = $1 AND id = $2 AND state <> 'active'`,
		queueName, jobID)
	if err != nil {
		return fmt.Errorf("failed to remove job %s: %w", jobID, postgres.MapError(err))
	}
	err = postgres.CheckRowsAffected(result, "job")
	if err == nil {
		log.Info("job removed", slog.String("queue", queueName), slog.String("job_id", jobID))
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	var state string
	err = q.db.QueryRowContext(ctx,
		`SELECT state FROM jobs WHERE queue = $1 AND id = $2`, queueName, jobID).Scan(&state)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check job %s: %w", jobID, postgres.MapError(err))
	default:
		return fmt.Errorf("%w: %s", ErrJobActive, jobID)
	}
}

// Ping implements Queue.Ping.
func (q *PostgresQueue) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, q.opts.PingTimeout)
	defer cancel()

	if _, err := q.db.ExecContext(ctx, `SELECT 1`); err != nil {
		logger.FromContextOrDefault(ctx, q.logger).Warn("queue ping failed",
			slog.String("error", err.Error()))
		return false
	}
	return true
}

// Claim implements Broker.Claim.
func (q *PostgresQueue) Claim(
	ctx context.Context,
	queueName string,
	names []string,
	consumer string,
	lease time.Duration,
) (*Job, error) {
	if len(names) == 0 {
		return nil, errors.New("claim needs at least one job name")
	}

	args := []any{consumer, lease.Seconds(), queueName}
	placeholders := make([]string, len(names))
	for i, name := range names {
		args = append(args, name)
		placeholders[i] = "$" + strconv.Itoa(len(args))
	}

	query := `
		UPDATE jobs
		SET state = 'active',
			locked_by = $1,
			lock_expires_at = NOW() + make_interval(secs => $2),
			processed_at = NOW()
		WHERE id = (
			SELECT id FROM jobs
			WHERE queue = $3
				AND state IN ('waiting', 'delayed')
				AND run_at <= NOW()
				AND name IN (` + strings.Join(placeholders, ", ") + `)
			ORDER BY run_at, created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	job, err := scanJob(q.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", postgres.MapError(err))
	}
	return job, nil
}

// Complete implements Broker.Complete.
func (q *PostgresQueue) Complete(ctx context.Context, job *Job, returnValue any) error {
	body, err := marshalJSON(returnValue)
	if err != nil {
		return fmt.Errorf("failed to marshal return value: %w", err)
	}

	err = store.RunInTransaction(ctx, q.db, func(ctx context.Context, tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET state = 'completed', return_value = $3, finished_at = NOW(),
				locked_by = NULL, lock_expires_at = NULL
			WHERE `+heldBy,
			job.ID, job.LockedBy, body)
		if err != nil {
			return postgres.MapError(err)
		}
		if err := lockHeld(result, job); err != nil {
			return err
		}
		return q.prune(ctx, tx, job.Queue, StateCompleted, q.opts.RetainCompleted)
	})
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", job.ID, err)
	}

	now := time.Now()
	job.State = StateCompleted
	job.ReturnValue = body
	job.FinishedAt = &now
	job.LockedBy = ""
	return nil
}

// Fail implements Broker.Fail.
func (q *PostgresQueue) Fail(ctx context.Context, job *Job, reason string, retry bool) (State, error) {
	attempts := job.AttemptsMade + 1

	if retry && attempts < job.MaxAttempts {
		delay := job.Backoff.Delay(attempts)
		next := StateWaiting
		if delay > 0 {
			next = StateDelayed
		}

		result, err := q.db.ExecContext(ctx, `
			UPDATE jobs
			SET state = $3, attempts_made = $4, failed_reason = $5,
				run_at = NOW() + make_interval(secs => $6),
				locked_by = NULL, lock_expires_at = NULL
			WHERE `+heldBy,
			job.ID, job.LockedBy, string(next), attempts, reason, delay.Seconds())
		if err != nil {
			return StateUnknown, fmt.Errorf("failed to schedule retry of job %s: %w",
				job.ID, postgres.MapError(err))
		}
		if err := lockHeld(result, job); err != nil {
			return StateUnknown, err
		}

		job.State = next
		job.AttemptsMade = attempts
		job.FailedReason = reason
		job.RunAt = time.Now().Add(delay)
		job.LockedBy = ""
		return next, nil
	}

	err := store.RunInTransaction(ctx, q.db, func(ctx context.Context, tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET state = 'failed', attempts_made = $3, failed_reason = $4,
				finished_at = NOW(), locked_by = NULL, lock_expires_at = NULL
			WHERE `+heldBy,
			job.ID, job.LockedBy, attempts, reason)
		if err != nil {
			return postgres.MapError(err)
		}
		if err := lockHeld(result, job); err != nil {
			return err
		}
		return q.prune(ctx, tx, job.Queue, StateFailed, q.opts.RetainFailed)
	})
	if err != nil {
		return StateUnknown, fmt.Errorf("failed to fail job %s: %w", job.ID, err)
	}

	now := time.Now()
	job.State = StateFailed
	job.AttemptsMade = attempts
	job.FailedReason = reason
	job.FinishedAt = &now
	job.LockedBy = ""
	return StateFailed, nil
}

// Release implements Broker.Release.
func (q *PostgresQueue) Release(ctx context.Context, job *Job) error {
	result, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET state = 'waiting', locked_by = NULL, lock_expires_at = NULL
		WHERE `+heldBy,
		job.ID, job.LockedBy)
	if err != nil {
		return fmt.Errorf("failed to release job %s: %w", job.ID, postgres.MapError(err))
	}
	if err := lockHeld(result, job); err != nil {
		return err
	}

	job.State = StateWaiting
	job.LockedBy = ""
	return nil
}

// Extend implements Broker.Extend.
func (q *PostgresQueue) Extend(ctx context.Context, job *Job, lease time.Duration) error {
	result, err := q.db.ExecContext(ctx, `
		UPDATE jobs
		SET lock_expires_at = NOW() + make_interval(secs => $3)
		WHERE `+heldBy,
		job.ID, job.LockedBy, lease.Seconds())
	if err != nil {
		return fmt.Errorf("failed to extend lease of job %s: %w", job.ID, postgres.MapError(err))
	}
	return lockHeld(result, job)
}

// RequeueStalled implements Broker.RequeueStalled.
func (q *PostgresQueue) RequeueStalled(ctx context.Context, queueName string) (StalledJobs, error) {
	var sweep StalledJobs

	err := store.RunInTransaction(ctx, q.db, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			UPDATE jobs
			SET state = 'failed', attempts_made = attempts_made + 1, failed_reason = $2,
				finished_at = NOW(), locked_by = NULL, lock_expires_at = NULL
			WHERE queue = $1 AND state = 'active' AND lock_expires_at < NOW()
				AND attempts_made + 1 >= max_attempts
			RETURNING `+jobColumns,
			queueName, StalledReason)
		if err != nil {
			return postgres.MapError(err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			job, err := scanJob(rows)
			if err != nil {
				return err
			}
			sweep.Failed = append(sweep.Failed, job)
		}
		if err := rows.Err(); err != nil {
			return postgres.MapError(err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET state = 'waiting', attempts_made = attempts_made + 1, failed_reason = $2,
				locked_by = NULL, lock_expires_at = NULL
			WHERE queue = $1 AND state = 'active' AND lock_expires_at < NOW()`,
			queueName, StalledReason)
		if err != nil {
			return postgres.MapError(err)
		}
		if sweep.Requeued, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if len(sweep.Failed) == 0 {
			return nil
		}
		return q.prune(ctx, tx, queueName, StateFailed, q.opts.RetainFailed)
	})
	if err != nil {
		return StalledJobs{}, fmt.Errorf("failed to requeue stalled jobs: %w", err)
	}

	if sweep.Requeued > 0 || len(sweep.Failed) > 0 {
		logger.FromContextOrDefault(ctx, q.logger).Warn("swept stalled jobs",
			slog.String("queue", queueName),
			slog.Int64("requeued", sweep.Requeued),
			slog.Int("failed", len(sweep.Failed)))
	}
	return sweep, nil
}

// prune deletes the oldest finished jobs in state beyond the newest retain.
func (q *PostgresQueue) prune(ctx context.Context, tx *sql.Tx, queueName string, state State, retain int) error {
	if retain < 0 {
		return nil
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE id IN (
			SELECT id FROM jobs
			WHERE queue = $1 AND state = $2
			ORDER BY finished_at DESC, created_at DESC
			OFFSET $3
		)`,
		queueName, string(state), retain)
	if err != nil {
		return fmt.Errorf("failed to prune %s jobs: %w", state, postgres.MapError(err))
	}

	if n, err := result.RowsAffected(); err == nil && n > 0 {
		logger.FromContextOrDefault(ctx, q.logger).Debug("pruned finished jobs",
			slog.String("queue", queueName),
			slog.String("state", string(state)),
			slog.Int64("count", n))
	}
	return nil
}

func lockHeld(result sql.Result, job *Job) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: job %s", ErrLockLost, job.ID)
	}
	return nil
}

func classify(raw string) State {
	switch s := State(raw); s {
	case StateWaiting, StateActive, StateDelayed, StateCompleted, StateFailed:
		return s
	default:
		return StateUnknown
	}
}

func marshalJSON(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return []byte(t), nil
	case []byte:
		return t, nil
	default:
		return json.Marshal(v)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job          Job
		payload      []byte
		state        string
		backoffMS    int64
		returnValue  []byte
		failedReason sql.NullString
		lockedBy     sql.NullString
		processedAt  sql.NullTime
		finishedAt   sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&job.Queue,
		&job.Name,
		&payload,
		&state,
		&job.AttemptsMade,
		&job.MaxAttempts,
		&backoffMS,
		&job.RunAt,
		&returnValue,
		&failedReason,
		&lockedBy,
		&job.CreatedAt,
		&processedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Payload = payload
	job.State = classify(state)
	job.Backoff = ExponentialBackoff(time.Duration(backoffMS) * time.Millisecond)
	if len(returnValue) > 0 {
		job.ReturnValue = returnValue
	}
	job.FailedReason = failedReason.String
	job.LockedBy = lockedBy.String
	if processedAt.Valid {
		job.ProcessedAt = &processedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}
	return &job, nil
}
