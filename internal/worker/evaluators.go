package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/evaluator/internal/domain"
	"github.com/phrazzld/evaluator/internal/platform/languagetool"
	"github.com/phrazzld/evaluator/internal/platform/logger"
	"github.com/phrazzld/evaluator/internal/platform/objectstore"
	"github.com/phrazzld/evaluator/internal/queue"
	"github.com/phrazzld/evaluator/internal/scoring"
)

// Placeholder audio analysis output.
const (
	AudioSummary    = "Good clarity; work on pacing."
	AudioSuggestion = "Reduce filler words."
)

// ErrSourceRejected is returned when an audio source fails revalidation.
var ErrSourceRejected = errors.New("audio source rejected")

// Evaluator analyzes the payload of one job type.
type Evaluator interface {
	Evaluate(ctx context.Context, job *queue.Job) (*domain.JobResult, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, job *queue.Job) (*domain.JobResult, error)

// Evaluate calls f(ctx, job).
func (f EvaluatorFunc) Evaluate(ctx context.Context, job *queue.Job) (*domain.JobResult, error) {
	return f(ctx, job)
}

// SourceChecker revalidates an audio source inside the worker.
type SourceChecker interface {
	CheckSource(ctx context.Context, rawURL string) objectstore.Check
}

// TextEvaluator scores text with the grammar checker, falling back to
// neutral scores when the checker is unavailable.
type TextEvaluator struct {
	checker         languagetool.Checker
	defaultLanguage string
	logger          *slog.Logger
}

// NewTextEvaluator creates a TextEvaluator. An empty defaultLanguage means
// domain.DefaultLanguage.
func NewTextEvaluator(checker languagetool.Checker, defaultLanguage string, logger *slog.Logger) *TextEvaluator {
	if defaultLanguage == "" {
		defaultLanguage = domain.DefaultLanguage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TextEvaluator{
		checker:         checker,
		defaultLanguage: defaultLanguage,
		logger:          logger.With(slog.String("component", "text_evaluator")),
	}
}

// Evaluate implements Evaluator.
func (e *TextEvaluator) Evaluate(ctx context.Context, job *queue.Job) (*domain.JobResult, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	var payload domain.TextPayload
	if err := decodePayload(job, &payload); err != nil {
		return nil, err
	}
	if err := payload.Validate(); err != nil {
		return nil, queue.Unrecoverable(err)
	}

	language := payload.Language
	if language == "" {
		language = e.defaultLanguage
	}

	var result scoring.Result
	matches, err := e.checker.Check(ctx, payload.Text, language)
	if err != nil {
		log.Warn("grammar check unavailable, assigning fallback scores",
			slog.String("language", language),
			slog.String("error", err.Error()))
		result = scoring.Fallback()
	} else {
		result = scoring.Score(payload.Text, matches)
		log.Debug("text scored",
			slog.Int("match_count", len(matches)),
			slog.Float64("overall", result.Scores[domain.ScoreOverall]))
	}

	return &domain.JobResult{Success: true, Scores: result.Scores, Feedback: result.Feedback}, nil
}

// AudioEvaluator revalidates the audio source and returns placeholder
// scores. No speech analysis is performed.
type AudioEvaluator struct {
	sources SourceChecker
	logger  *slog.Logger
}

// NewAudioEvaluator creates an AudioEvaluator.
func NewAudioEvaluator(sources SourceChecker, logger *slog.Logger) *AudioEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioEvaluator{
		sources: sources,
		logger:  logger.With(slog.String("component", "audio_evaluator")),
	}
}

// Evaluate implements Evaluator.
func (e *AudioEvaluator) Evaluate(ctx context.Context, job *queue.Job) (*domain.JobResult, error) {
	var payload domain.AudioPayload
	if err := decodePayload(job, &payload); err != nil {
		return nil, err
	}
	if err := payload.Validate(); err != nil {
		return nil, queue.Unrecoverable(err)
	}

	if check := e.sources.CheckSource(ctx, payload.SourceURL); !check.OK {
		return nil, fmt.Errorf("%w: %s", ErrSourceRejected, check.Reason)
	}

	return &domain.JobResult{
		Success: true,
		Scores:  domain.AudioScores(0.8, 0.82, 0.9, 0.84),
		Feedback: domain.Feedback{
			Summary:     AudioSummary,
			Suggestions: []string{AudioSuggestion},
		},
	}, nil
}

func decodePayload(job *queue.Job, dst any) error {
	if err := json.Unmarshal(job.Payload, dst); err != nil {
		return queue.Unrecoverable(fmt.Errorf("malformed %s payload: %w", job.Name, err))
	}
	return nil
}
