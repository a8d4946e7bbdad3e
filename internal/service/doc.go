// Package service contains the evaluation use cases that sit between the
// HTTP API and the infrastructure packages.
//
// Submission validates a request, enqueues exactly one job and creates
// exactly one pending evaluation record for it. Status reconciliation merges
// what the queue knows about a job with the durable record so that callers
// see one view, and never fails: missing data is reported as "not_found",
// "unknown" or a null record.
//
// Services receive their collaborators (queue, record store, source
// checker) through constructor injection and depend only on interfaces.
package service
