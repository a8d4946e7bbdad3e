// Package worker runs evaluation jobs taken from the queue.
//
// A Dispatcher owns the record lifecycle of every job it handles: it marks
// the record processing before any analysis, runs the evaluator registered
// for the job's name and writes the terminal result. Failed attempts that
// will be retried only record their error; the last attempt marks the record
// failed. Jobs whose name has no registered evaluator are released to the
// queue untouched.
package worker
