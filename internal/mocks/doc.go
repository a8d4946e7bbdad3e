// Package mocks provides shared test doubles for the evaluation record store,
// the job queue and the external collaborators (grammar checker and audio
// source checker).
//
// Store and collaborator mocks use function fields with call tracking:
//
//	records := &mocks.MockEvaluationStore{
//	    GetByJobIDFn: func(ctx context.Context, jobID string) (*domain.EvaluationRecord, error) {
//	        return nil, store.ErrEvaluationNotFound
//	    },
//	}
//
// MemoryEvaluationStore is a working in-memory store that enforces the
// same status transitions as the Postgres implementation. TestifyMockQueue
// is built on testify/mock for expectation-style tests.
package mocks
