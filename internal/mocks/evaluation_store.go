package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/evaluator/internal/domain"
	"github.com/phrazzld/evaluator/internal/store"
)

// MockEvaluationStore implements store.EvaluationStore for testing. Methods
// without a custom function return DefaultError (and Record for getters).
type MockEvaluationStore struct {
	CreateFn             func(ctx context.Context, record *domain.EvaluationRecord) error
	GetByIDFn            func(ctx context.Context, id uuid.UUID) (*domain.EvaluationRecord, error)
	GetByJobIDFn         func(ctx context.Context, jobID string) (*domain.EvaluationRecord, error)
	MarkProcessingFn     func(ctx context.Context, jobID string) error
	MarkCompletedFn      func(ctx context.Context, jobID string, scores domain.ScoreSet, feedback domain.Feedback) error
	MarkFailedFn         func(ctx context.Context, jobID string, message string) error
	RecordAttemptErrorFn func(ctx context.Context, jobID string, message string) error
	PingFn               func(ctx context.Context) error

	Record       *domain.EvaluationRecord
	DefaultError error

	mu    sync.Mutex
	calls []string
}

var _ store.EvaluationStore = (*MockEvaluationStore)(nil)

func (m *MockEvaluationStore) track(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
}

// Calls returns the names of the methods invoked so far, in order.
func (m *MockEvaluationStore) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Create implements store.EvaluationStore.Create
func (m *MockEvaluationStore) Create(ctx context.Context, record *domain.EvaluationRecord) error {
	m.track("Create")
	if m.CreateFn != nil {
		return m.CreateFn(ctx, record)
	}
	return m.DefaultError
}

// GetByID implements store.EvaluationStore.GetByID
func (m *MockEvaluationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.EvaluationRecord, error) {
	m.track("GetByID")
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return m.Record, m.DefaultError
}

// GetByJobID implements store.EvaluationStore.GetByJobID
func (m *MockEvaluationStore) GetByJobID(ctx context.Context, jobID string) (*domain.EvaluationRecord, error) {
	m.track("GetByJobID")
	if m.GetByJobIDFn != nil {
		return m.GetByJobIDFn(ctx, jobID)
	}
	return m.Record, m.DefaultError
}

// MarkProcessing implements store.EvaluationStore.MarkProcessing
func (m *MockEvaluationStore) MarkProcessing(ctx context.Context, jobID string) error {
	m.track("MarkProcessing")
	if m.MarkProcessingFn != nil {
		return m.MarkProcessingFn(ctx, jobID)
	}
	return m.DefaultError
}

// MarkCompleted implements store.EvaluationStore.MarkCompleted
func (m *MockEvaluationStore) MarkCompleted(
	ctx context.Context,
	jobID string,
	scores domain.ScoreSet,
	feedback domain.Feedback,
) error {
	m.track("MarkCompleted")
	if m.MarkCompletedFn != nil {
		return m.MarkCompletedFn(ctx, jobID, scores, feedback)
	}
	return m.DefaultError
}

// MarkFailed implements store.EvaluationStore.MarkFailed
func (m *MockEvaluationStore) MarkFailed(ctx context.Context, jobID string, message string) error {
	m.track("MarkFailed")
	if m.MarkFailedFn != nil {
		return m.MarkFailedFn(ctx, jobID, message)
	}
	return m.DefaultError
}

// RecordAttemptError implements store.EvaluationStore.RecordAttemptError
func (m *MockEvaluationStore) RecordAttemptError(ctx context.Context, jobID string, message string) error {
	m.track("RecordAttemptError")
	if m.RecordAttemptErrorFn != nil {
		return m.RecordAttemptErrorFn(ctx, jobID, message)
	}
	return m.DefaultError
}

// Ping implements store.EvaluationStore.Ping
func (m *MockEvaluationStore) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return m.DefaultError
}

// MemoryEvaluationStore is an in-memory store.EvaluationStore that enforces
// the same status rules as the PostgreSQL store. It is safe for concurrent
// use.
type MemoryEvaluationStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*domain.EvaluationRecord
	byJobID map[string]uuid.UUID

	// PingErr is returned by Ping.
	PingErr error
}

var _ store.EvaluationStore = (*MemoryEvaluationStore)(nil)

// NewMemoryEvaluationStore creates an empty MemoryEvaluationStore.
func NewMemoryEvaluationStore() *MemoryEvaluationStore {
	return &MemoryEvaluationStore{
		byID:    map[uuid.UUID]*domain.EvaluationRecord{},
		byJobID: map[string]uuid.UUID{},
	}
}

// Create implements store.EvaluationStore.Create
func (s *MemoryEvaluationStore) Create(_ context.Context, record *domain.EvaluationRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byJobID[record.JobID]; ok {
		return store.ErrJobIDExists
	}
	cp := *record
	s.byID[record.ID] = &cp
	s.byJobID[record.JobID] = record.ID
	return nil
}

// GetByID implements store.EvaluationStore.GetByID
func (s *MemoryEvaluationStore) GetByID(_ context.Context, id uuid.UUID) (*domain.EvaluationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, store.ErrEvaluationNotFound
	}
	cp := *rec
	return &cp, nil
}

// GetByJobID implements store.EvaluationStore.GetByJobID
func (s *MemoryEvaluationStore) GetByJobID(_ context.Context, jobID string) (*domain.EvaluationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byJobID[jobID]
	if !ok {
		return nil, store.ErrEvaluationNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

// MarkProcessing implements store.EvaluationStore.MarkProcessing
func (s *MemoryEvaluationStore) MarkProcessing(_ context.Context, jobID string) error {
	return s.update(jobID, domain.EvaluationStatusProcessing, func(rec *domain.EvaluationRecord) {
		rec.Attempts++
	})
}

// MarkCompleted implements store.EvaluationStore.MarkCompleted
func (s *MemoryEvaluationStore) MarkCompleted(
	_ context.Context,
	jobID string,
	scores domain.ScoreSet,
	feedback domain.Feedback,
) error {
	if err := scores.Validate(); err != nil {
		return err
	}
	return s.update(jobID, domain.EvaluationStatusCompleted, func(rec *domain.EvaluationRecord) {
		rec.Scores = scores
		rec.Feedback = &feedback
		rec.Error = ""
	})
}

// MarkFailed implements store.EvaluationStore.MarkFailed
func (s *MemoryEvaluationStore) MarkFailed(_ context.Context, jobID string, message string) error {
	if message == "" {
		message = "evaluation failed"
	}
	return s.update(jobID, domain.EvaluationStatusFailed, func(rec *domain.EvaluationRecord) {
		rec.Error = message
		rec.Scores = nil
		rec.Feedback = nil
	})
}

// RecordAttemptError implements store.EvaluationStore.RecordAttemptError
func (s *MemoryEvaluationStore) RecordAttemptError(_ context.Context, jobID string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.open(jobID)
	if err != nil {
		return err
	}
	rec.LastError = message
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// Ping implements store.EvaluationStore.Ping
func (s *MemoryEvaluationStore) Ping(context.Context) error {
	return s.PingErr
}

func (s *MemoryEvaluationStore) update(jobID string, to domain.EvaluationStatus, apply func(*domain.EvaluationRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byJobID[jobID]
	if !ok {
		return store.ErrEvaluationNotFound
	}
	rec := s.byID[id]
	if !domain.CanTransition(rec.Status, to) {
		return store.ErrInvalidTransition
	}
	apply(rec)
	rec.Status = to
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// open returns the record for jobID if it may still change. Callers hold mu.
func (s *MemoryEvaluationStore) open(jobID string) (*domain.EvaluationRecord, error) {
	id, ok := s.byJobID[jobID]
	if !ok {
		return nil, store.ErrEvaluationNotFound
	}
	rec := s.byID[id]
	if rec.Status.IsTerminal() {
		return nil, store.ErrInvalidTransition
	}
	return rec, nil
}
