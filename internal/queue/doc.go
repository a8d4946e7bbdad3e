// Package queue provides durable named job queues with retry and backoff.
//
// Producers use the Queue interface to enqueue jobs and inspect their state.
// Workers claim jobs through a Consumer, which dispatches each job to a
// Handler and applies the retry policy the job was enqueued with. The only
// implementation, PostgresQueue, keeps jobs in the jobs table and relies on
// FOR UPDATE SKIP LOCKED claims plus a lease so that each job is processed by
// at most one worker at a time.
//
// Nothing in this package knows about evaluations; the job name is an opaque
// tag that consumers filter on.
package queue
