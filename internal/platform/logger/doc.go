// Package logger provides structured logging for the API and worker processes.
//
// Loggers are built once by Setup and then passed explicitly to constructors.
// Request- and job-scoped loggers travel in the context; stores and services
// retrieve them with FromContextOrDefault so that request ids and job ids
// appear on every line emitted while handling that unit of work.
package logger
