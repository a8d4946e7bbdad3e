package mocks

import (
	"context"

	"github.com/phrazzld/evaluator/internal/queue"
	"github.com/stretchr/testify/mock"
)

// TestifyMockQueue is a mock of queue.Queue for use with testify/mock.
type TestifyMockQueue struct {
	mock.Mock
}

var _ queue.Queue = (*TestifyMockQueue)(nil)

// Enqueue is a mock implementation of queue.Queue.Enqueue
func (m *TestifyMockQueue) Enqueue(
	ctx context.Context,
	queueName, name string,
	payload any,
	opts queue.JobOptions,
) (*queue.Job, error) {
	args := m.Called(ctx, queueName, name, payload, opts)
	if job, ok := args.Get(0).(*queue.Job); ok {
		return job, args.Error(1)
	}
	return nil, args.Error(1)
}

// Lookup is a mock implementation of queue.Queue.Lookup
func (m *TestifyMockQueue) Lookup(ctx context.Context, queueName, jobID string) (*queue.Job, error) {
	args := m.Called(ctx, queueName, jobID)
	if job, ok := args.Get(0).(*queue.Job); ok {
		return job, args.Error(1)
	}
	return nil, args.Error(1)
}

// State returns the state recorded on job, or unknown for nil. It is not
// tracked by the mock because it has no side effects.
func (m *TestifyMockQueue) State(job *queue.Job) queue.State {
	if job == nil {
		return queue.StateUnknown
	}
	switch job.State {
	case queue.StateWaiting, queue.StateActive, queue.StateDelayed, queue.StateCompleted, queue.StateFailed:
		return job.State
	default:
		return queue.StateUnknown
	}
}

// Remove is a mock implementation of queue.Queue.Remove
func (m *TestifyMockQueue) Remove(ctx context.Context, queueName, jobID string) error {
	args := m.Called(ctx, queueName, jobID)
	return args.Error(0)
}

// Ping is a mock implementation of queue.Queue.Ping
func (m *TestifyMockQueue) Ping(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}
