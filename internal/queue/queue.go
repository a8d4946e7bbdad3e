package queue

import (
	"context"
	"encoding/json"
	"time"
)

// State is the externally visible state of a job.
type State string

// Job states.
const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateDelayed   State = "delayed"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateUnknown   State = "unknown"
)

// IsFinished reports whether no further attempts will run for a job in s.
func (s State) IsFinished() bool {
	return s == StateCompleted || s == StateFailed
}

// JobOptions is the retry policy attached to a job at enqueue time.
type JobOptions struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int
	Backoff     Backoff
}

// Job is a unit of work held by a queue.
type Job struct {
	ID      string
	Queue   string
	Name    string
	Payload json.RawMessage

	AttemptsMade int
	MaxAttempts  int
	Backoff      Backoff

	// State is the state observed when the job was last read.
	State State

	ReturnValue  json.RawMessage
	FailedReason string

	// LockedBy is the consumer holding the job while it is active.
	LockedBy string

	RunAt       time.Time
	CreatedAt   time.Time
	ProcessedAt *time.Time
	FinishedAt  *time.Time
}

// IsFinalAttempt reports whether the attempt currently running is the last
// one the retry policy allows.
func (j *Job) IsFinalAttempt() bool {
	return j.AttemptsMade+1 >= j.MaxAttempts
}

// Attempt returns the 1-based number of the attempt currently running.
func (j *Job) Attempt() int {
	return j.AttemptsMade + 1
}

// Queue is the producer-side view of the broker. Implementations must be
// safe for concurrent use.
type Queue interface {
	// Enqueue adds a job named name to queueName. payload is marshalled to
	// JSON unless it already is a json.RawMessage.
	Enqueue(ctx context.Context, queueName, name string, payload any, opts JobOptions) (*Job, error)

	// Lookup returns the job with jobID, or (nil, nil) when the queue no
	// longer holds it.
	Lookup(ctx context.Context, queueName, jobID string) (*Job, error)

	// State classifies job. A nil job is StateUnknown.
	State(job *Job) State

	// Remove deletes a job that is not currently active. Removing an absent
	// job is not an error.
	Remove(ctx context.Context, queueName, jobID string) error

	// Ping reports whether the broker is reachable. It never panics.
	Ping(ctx context.Context) bool
}

// Broker is the worker-side view of the broker used by Consumer.
type Broker interface {
	// Claim locks the next runnable job in queueName whose name is one of
	// names and marks it active for consumer until the lease expires.
	// It returns (nil, nil) when nothing is runnable.
	Claim(ctx context.Context, queueName string, names []string, consumer string, lease time.Duration) (*Job, error)

	// Complete finishes an active job successfully and stores returnValue.
	Complete(ctx context.Context, job *Job, returnValue any) error

	// Fail charges an attempt to an active job. When retry is true and
	// attempts remain, the job is delayed according to its backoff;
	// otherwise it becomes failed with reason.
	Fail(ctx context.Context, job *Job, reason string, retry bool) (State, error)

	// Release returns an active job to waiting without charging an attempt.
	Release(ctx context.Context, job *Job) error

	// Extend pushes the lease of an active job forward by lease. It fails
	// with ErrLockLost once job.LockedBy no longer holds the job.
	Extend(ctx context.Context, job *Job, lease time.Duration) error

	// RequeueStalled handles active jobs whose lease has expired. Each is
	// charged an attempt: jobs with attempts left go back to waiting and the
	// rest are failed with StalledReason.
	RequeueStalled(ctx context.Context, queueName string) (StalledJobs, error)
}

// StalledReason is the failure reason stored on jobs whose lease expired.
const StalledReason = "job stalled: lease expired before the attempt finished"

// StalledJobs is the result of one stalled-job sweep.
type StalledJobs struct {
	// Requeued counts jobs returned to waiting.
	Requeued int64
	// Failed holds the jobs that ran out of attempts, as stored after the
	// sweep.
	Failed []*Job
}
