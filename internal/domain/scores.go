package domain

import "fmt"

// Score keys. Text results use grammar, vocabulary and coherence; audio
// results use pronunciation, fluency and completeness. Both carry overall.
const (
	ScoreGrammar       = "grammar"
	ScoreVocabulary    = "vocabulary"
	ScoreCoherence     = "coherence"
	ScorePronunciation = "pronunciation"
	ScoreFluency       = "fluency"
	ScoreCompleteness  = "completeness"
	ScoreOverall       = "overall"
)

// ScoreSet holds the four scores of one evaluation, each in [0, 1].
type ScoreSet map[string]float64

// TextScores builds the text flavour of a ScoreSet.
func TextScores(grammar, vocabulary, coherence, overall float64) ScoreSet {
	return ScoreSet{
		ScoreGrammar:    grammar,
		ScoreVocabulary: vocabulary,
		ScoreCoherence:  coherence,
		ScoreOverall:    overall,
	}
}

// AudioScores builds the audio flavour of a ScoreSet.
func AudioScores(pronunciation, fluency, completeness, overall float64) ScoreSet {
	return ScoreSet{
		ScorePronunciation: pronunciation,
		ScoreFluency:       fluency,
		ScoreCompleteness:  completeness,
		ScoreOverall:       overall,
	}
}

// Validate checks that overall is present and every score is within [0, 1].
func (s ScoreSet) Validate() error {
	if _, ok := s[ScoreOverall]; !ok {
		return fmt.Errorf("%w: missing %s", ErrScoreOutOfRange, ScoreOverall)
	}
	for name, v := range s {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%v", ErrScoreOutOfRange, name, v)
		}
	}
	return nil
}
