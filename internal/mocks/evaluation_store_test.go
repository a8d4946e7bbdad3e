package mocks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/phrazzld/evaluator/internal/domain"
	"github.com/phrazzld/evaluator/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEvaluationStoreTransitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryEvaluationStore()
	rec, err := domain.NewEvaluationRecord(domain.EvaluationTypeText, "job-1", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, rec))

	require.NoError(t, s.MarkProcessing(ctx, "job-1"))
	require.NoError(t, s.MarkProcessing(ctx, "job-1"), "redelivery re-enters processing")
	require.NoError(t, s.MarkFailed(ctx, "job-1", "gave up"))

	assert.ErrorIs(t, s.MarkProcessing(ctx, "job-1"), store.ErrInvalidTransition)
	assert.ErrorIs(t, s.MarkCompleted(ctx, "job-1", domain.TextScores(1, 1, 1, 1), domain.Feedback{}),
		store.ErrInvalidTransition)
	assert.ErrorIs(t, s.RecordAttemptError(ctx, "job-1", "late"), store.ErrInvalidTransition)
	assert.ErrorIs(t, s.MarkFailed(ctx, "job-2", "x"), store.ErrEvaluationNotFound)

	got, err := s.GetByJobID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EvaluationStatusFailed, got.Status)
	assert.Equal(t, "gave up", got.Error)
	assert.Equal(t, 2, got.Attempts)
}
