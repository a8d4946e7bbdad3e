package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/evaluator/internal/domain"
	"github.com/phrazzld/evaluator/internal/platform/objectstore"
)

// MockGrammarChecker implements languagetool.Checker for testing.
type MockGrammarChecker struct {
	CheckFn func(ctx context.Context, text, language string) ([]domain.GrammarMatch, error)

	Matches      []domain.GrammarMatch
	DefaultError error

	mu        sync.Mutex
	Languages []string
}

// Check implements languagetool.Checker.Check
func (m *MockGrammarChecker) Check(ctx context.Context, text, language string) ([]domain.GrammarMatch, error) {
	m.mu.Lock()
	m.Languages = append(m.Languages, language)
	m.mu.Unlock()

	if m.CheckFn != nil {
		return m.CheckFn(ctx, text, language)
	}
	return m.Matches, m.DefaultError
}

// MockSourceChecker implements the audio source check for testing. The zero
// value accepts every URL.
type MockSourceChecker struct {
	CheckSourceFn func(ctx context.Context, rawURL string) objectstore.Check

	mu   sync.Mutex
	URLs []string
}

// CheckSource validates rawURL with CheckSourceFn, accepting it by default.
func (m *MockSourceChecker) CheckSource(ctx context.Context, rawURL string) objectstore.Check {
	m.mu.Lock()
	m.URLs = append(m.URLs, rawURL)
	m.mu.Unlock()

	if m.CheckSourceFn != nil {
		return m.CheckSourceFn(ctx, rawURL)
	}
	return objectstore.Check{OK: true}
}

// CallCount returns how many sources were checked.
func (m *MockSourceChecker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.URLs)
}
