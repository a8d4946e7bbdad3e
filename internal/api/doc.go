// Package api is the HTTP surface of the evaluator: it decodes and validates
// submissions, maps service errors to status codes and serves the job
// status, record and health endpoints.
package api
