package queue

import (
	"errors"
)

var (
	// ErrLockLost is returned when a consumer finishes a job it no longer
	// holds, usually because the lease expired and the job was requeued.
	ErrLockLost = errors.New("job lock lost")

	// ErrJobActive is returned when removing a job that a consumer holds.
	ErrJobActive = errors.New("job is active")

	// ErrSkip tells the consumer that a handler does not own a job. The job
	// is released untouched.
	ErrSkip = errors.New("job not handled by this consumer")
)

// UnrecoverableError marks a handler failure that must not be retried.
type UnrecoverableError struct {
	Err error
}

func (e *UnrecoverableError) Error() string {
	return "unrecoverable: " + e.Err.Error()
}

func (e *UnrecoverableError) Unwrap() error {
	return e.Err
}

// Unrecoverable wraps err so that the consumer fails the job without
// scheduling further attempts.
func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &UnrecoverableError{Err: err}
}

// IsUnrecoverable reports whether err was wrapped with Unrecoverable.
func IsUnrecoverable(err error) bool {
	var u *UnrecoverableError
	return errors.As(err, &u)
}
