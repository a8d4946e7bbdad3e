package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/phrazzld/evaluator/internal/config"
	"github.com/phrazzld/evaluator/internal/domain"
	"github.com/phrazzld/evaluator/internal/mocks"
	"github.com/phrazzld/evaluator/internal/platform/objectstore"
	"github.com/phrazzld/evaluator/internal/queue"
	"github.com/phrazzld/evaluator/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textJob(payload string) *queue.Job {
	return &queue.Job{
		ID:          "job-text",
		Name:        domain.EvaluationTypeText.JobName(),
		Payload:     json.RawMessage(payload),
		MaxAttempts: 3,
	}
}

func audioJob(payload string) *queue.Job {
	return &queue.Job{
		ID:          "job-audio",
		Name:        domain.EvaluationTypeAudio.JobName(),
		Payload:     json.RawMessage(payload),
		MaxAttempts: 3,
	}
}

func TestTextEvaluator(t *testing.T) {
	t.Parallel()

	t.Run("scores grammar matches", func(t *testing.T) {
		t.Parallel()
		matches := []domain.GrammarMatch{{Message: "Possible typo"}, {Message: "Missing comma"}}
		checker := &mocks.MockGrammarChecker{Matches: matches}
		e := NewTextEvaluator(checker, "", nil)

		text := "This are a sentence with a error in it."
		result, err := e.Evaluate(context.Background(), textJob(`{"text":"`+text+`"}`))
		require.NoError(t, err)

		want := scoring.Score(text, matches)
		assert.True(t, result.Success)
		assert.Equal(t, want.Scores, result.Scores)
		assert.Equal(t, want.Feedback, result.Feedback)
		assert.Equal(t, []string{domain.DefaultLanguage}, checker.Languages)
	})

	t.Run("passes the requested language", func(t *testing.T) {
		t.Parallel()
		checker := &mocks.MockGrammarChecker{}
		e := NewTextEvaluator(checker, "en-GB", nil)

		_, err := e.Evaluate(context.Background(), textJob(`{"text":"Hallo Welt","language":"de-DE"}`))
		require.NoError(t, err)
		_, err = e.Evaluate(context.Background(), textJob(`{"text":"Colour"}`))
		require.NoError(t, err)

		assert.Equal(t, []string{"de-DE", "en-GB"}, checker.Languages)
	})

	t.Run("unreachable checker assigns fallback scores", func(t *testing.T) {
		t.Parallel()
		checker := &mocks.MockGrammarChecker{
			DefaultError: domain.NewDependencyError("grammar checker", errors.New("connection refused")),
		}
		e := NewTextEvaluator(checker, "", nil)

		result, err := e.Evaluate(context.Background(), textJob(`{"text":"Anything at all."}`))
		require.NoError(t, err)
		assert.Equal(t, domain.TextScores(0.8, 0.85, 0.85, 0.83), result.Scores)
		assert.Equal(t, scoring.SummaryFallback, result.Feedback.Summary)
	})

	t.Run("malformed payload is unrecoverable", func(t *testing.T) {
		t.Parallel()
		e := NewTextEvaluator(&mocks.MockGrammarChecker{}, "", nil)

		_, err := e.Evaluate(context.Background(), textJob(`{"text":`))
		assert.True(t, queue.IsUnrecoverable(err))
	})

	t.Run("empty text is unrecoverable", func(t *testing.T) {
		t.Parallel()
		e := NewTextEvaluator(&mocks.MockGrammarChecker{}, "", nil)

		_, err := e.Evaluate(context.Background(), textJob(`{"text":"  "}`))
		assert.True(t, queue.IsUnrecoverable(err))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestAudioEvaluator(t *testing.T) {
	t.Parallel()

	t.Run("valid source gets placeholder scores", func(t *testing.T) {
		t.Parallel()
		e := NewAudioEvaluator(&mocks.MockSourceChecker{}, nil)

		result, err := e.Evaluate(context.Background(), audioJob(`{"sourceUrl":"https://b.s3.amazonaws.com/a.wav"}`))
		require.NoError(t, err)
		assert.Equal(t, domain.AudioScores(0.8, 0.82, 0.9, 0.84), result.Scores)
		assert.Equal(t, AudioSummary, result.Feedback.Summary)
		assert.Equal(t, []string{AudioSuggestion}, result.Feedback.Suggestions)
	})

	t.Run("revalidation failure is retryable", func(t *testing.T) {
		t.Parallel()
		sources := objectstore.NewSourceChecker(config.StorageConfig{BucketAllowlist: "audio"}, nil, nil)
		e := NewAudioEvaluator(sources, nil)

		_, err := e.Evaluate(context.Background(), audioJob(`{"sourceUrl":"https://other.s3.amazonaws.com/a.wav"}`))
		require.ErrorIs(t, err, ErrSourceRejected)
		assert.Contains(t, err.Error(), "s3Url bucket must be audio")
		assert.False(t, queue.IsUnrecoverable(err))
	})

	t.Run("missing source is unrecoverable", func(t *testing.T) {
		t.Parallel()
		e := NewAudioEvaluator(&mocks.MockSourceChecker{}, nil)

		_, err := e.Evaluate(context.Background(), audioJob(`{}`))
		assert.True(t, queue.IsUnrecoverable(err))
	})
}
