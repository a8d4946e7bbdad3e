// Package scoring turns grammar-checker matches into text evaluation scores.
//
// The heuristic is deterministic and pure: the penalty is the match rate
// per word, floored at a 50-word denominator and capped at 0.5, and each
// sub-score discounts it by a different weight.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/phrazzld/evaluator/internal/domain"
)

const (
	// MaxSuggestions is the number of match messages surfaced as suggestions.
	MaxSuggestions = 5

	minWordDenominator = 50
	maxPenalty         = 0.5

	vocabularyWeight = 0.8
	coherenceWeight  = 0.6
)

// Summary texts.
const (
	SummaryNoIssues = "No issues detected."
	// SummaryFallback is used when the grammar checker could not be reached.
	SummaryFallback = "Automated analysis was unavailable; neutral scores were assigned."
)

// Result is a scored text evaluation.
type Result struct {
	Scores   domain.ScoreSet
	Feedback domain.Feedback
}

// Score computes scores and feedback for text given the checker's matches.
func Score(text string, matches []domain.GrammarMatch) Result {
	wordCount := len(strings.Fields(text))
	if wordCount < 1 {
		wordCount = 1
	}
	matchCount := len(matches)

	penalty := math.Min(maxPenalty, float64(matchCount)/float64(max(minWordDenominator, wordCount)))

	grammar := math.Max(0, 1-penalty)
	vocabulary := math.Max(0, 1-vocabularyWeight*penalty)
	coherence := math.Max(0, 1-coherenceWeight*penalty)
	overall := round2((grammar + vocabulary + coherence) / 3)

	n := min(MaxSuggestions, matchCount)
	suggestions := make([]string, 0, n)
	for _, m := range matches[:n] {
		suggestions = append(suggestions, m.Message)
	}

	return Result{
		Scores: domain.TextScores(round2(grammar), round2(vocabulary), round2(coherence), overall),
		Feedback: domain.Feedback{
			Summary:     summary(matchCount),
			Suggestions: suggestions,
		},
	}
}

// Fallback is the neutral result assigned when automated analysis fails.
func Fallback() Result {
	return Result{
		Scores:   domain.TextScores(0.8, 0.85, 0.85, 0.83),
		Feedback: domain.Feedback{Summary: SummaryFallback, Suggestions: []string{}},
	}
}

func summary(matchCount int) string {
	switch matchCount {
	case 0:
		return SummaryNoIssues
	case 1:
		return "Detected 1 potential issue."
	default:
		return fmt.Sprintf("Detected %d potential issues.", matchCount)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
