package postgres_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/evaluator/internal/domain"
	"github.com/phrazzld/evaluator/internal/platform/postgres"
	"github.com/phrazzld/evaluator/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var evaluationColumnNames = []string{
	"id", "type", "job_id", "input", "status", "scores", "feedback", "error",
	"attempts", "last_error", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*postgres.PostgresEvaluationStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return postgres.NewPostgresEvaluationStore(db, quiet), mock
}

func TestEvaluationStoreCreate(t *testing.T) {
	t.Parallel()

	rec, err := domain.NewEvaluationRecord(domain.EvaluationTypeText, "job-1", json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)

	t.Run("inserts pending record", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO evaluations`).
			WithArgs(rec.ID, rec.Type, "job-1", []byte(rec.Input), rec.Status,
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 0, sqlmock.AnyArg(),
				rec.CreatedAt, rec.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Create(context.Background(), rec))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate job id", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO evaluations`).WillReturnError(newPgError("23505"))

		err := s.Create(context.Background(), rec)
		assert.ErrorIs(t, err, store.ErrJobIDExists)
		assert.True(t, store.IsDuplicateError(err))
	})

	t.Run("invalid record never reaches the database", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockStore(t)
		bad := *rec
		bad.JobID = ""

		err := s.Create(context.Background(), &bad)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEvaluationStoreGetByJobID(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	id := uuid.New()

	t.Run("completed record", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockStore(t)
		rows := sqlmock.NewRows(evaluationColumnNames).AddRow(
			id.String(), "text", "job-1", []byte(`{"text":"hi"}`), "completed",
			[]byte(`{"grammar":1,"vocabulary":1,"coherence":1,"overall":1}`),
			[]byte(`{"summary":"No issues detected."}`),
			nil, 1, nil, now, now,
		)
		mock.ExpectQuery(`SELECT (.+) FROM evaluations WHERE job_id = \$1`).
			WithArgs("job-1").
			WillReturnRows(rows)

		rec, err := s.GetByJobID(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, id, rec.ID)
		assert.Equal(t, domain.EvaluationStatusCompleted, rec.Status)
		assert.Equal(t, 1.0, rec.Scores[domain.ScoreOverall])
		require.NotNil(t, rec.Feedback)
		assert.Equal(t, "No issues detected.", rec.Feedback.Summary)
		assert.Empty(t, rec.Error)
		require.NoError(t, rec.Validate())
	})

	t.Run("missing record", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT (.+) FROM evaluations WHERE job_id = \$1`).
			WithArgs("job-x").
			WillReturnError(sql.ErrNoRows)

		rec, err := s.GetByJobID(context.Background(), "job-x")
		assert.Nil(t, rec)
		assert.ErrorIs(t, err, store.ErrEvaluationNotFound)
	})

	t.Run("query failure", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT (.+) FROM evaluations WHERE job_id = \$1`).
			WillReturnError(errors.New("connection reset"))

		_, err := s.GetByJobID(context.Background(), "job-1")
		var storeErr *store.StoreError
		assert.ErrorAs(t, err, &storeErr)
		assert.False(t, store.IsNotFoundError(err))
	})
}

func TestEvaluationStoreTransitions(t *testing.T) {
	t.Parallel()

	t.Run("processing counts the attempt", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockStore(t)
		mock.ExpectExec(`UPDATE evaluations\s+SET status = 'processing', attempts = attempts \+ 1`).
			WithArgs("job-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.MarkProcessing(context.Background(), "job-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("completed writes scores and feedback", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockStore(t)
		mock.ExpectExec(`UPDATE evaluations\s+SET status = 'completed'`).
			WithArgs("job-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := s.MarkCompleted(context.Background(), "job-1",
			domain.TextScores(0.9, 0.9, 0.9, 0.9), domain.Feedback{Summary: "ok"})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("completed rejects out-of-range scores", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockStore(t)

		err := s.MarkCompleted(context.Background(), "job-1",
			domain.TextScores(1.5, 0.9, 0.9, 0.9), domain.Feedback{Summary: "ok"})
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("terminal record refuses updates", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockStore(t)
		mock.ExpectExec(`UPDATE evaluations\s+SET status = 'failed'`).
			WithArgs("job-1", "boom").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT status FROM evaluations WHERE job_id = \$1`).
			WithArgs("job-1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))

		err := s.MarkFailed(context.Background(), "job-1", "boom")
		assert.ErrorIs(t, err, store.ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown job", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockStore(t)
		mock.ExpectExec(`UPDATE evaluations`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT status FROM evaluations`).
			WillReturnError(sql.ErrNoRows)

		err := s.MarkProcessing(context.Background(), "job-404")
		assert.ErrorIs(t, err, store.ErrEvaluationNotFound)
	})

	t.Run("attempt error keeps status", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockStore(t)
		mock.ExpectExec(`UPDATE evaluations\s+SET last_error = \$2`).
			WithArgs("job-1", "grammar checker unavailable").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.RecordAttemptError(context.Background(), "job-1", "grammar checker unavailable"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEvaluationStorePing(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT 1`).WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	assert.NoError(t, s.Ping(context.Background()))

	mock.ExpectQuery(`SELECT 1`).WillReturnError(errors.New("down"))
	assert.Error(t, s.Ping(context.Background()))
}
