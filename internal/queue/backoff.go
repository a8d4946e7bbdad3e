package queue

import (
	"time"

	"github.com/cenkalti/backoff"
)

// maxBackoff caps a single retry delay.
const maxBackoff = 24 * time.Hour

// Backoff is an exponential retry delay policy. The n-th retry (after n
// failed attempts) waits Base * 2^(n-1). A zero Base retries immediately.
type Backoff struct {
	Base time.Duration
}

// ExponentialBackoff returns a Backoff with the given base delay.
func ExponentialBackoff(base time.Duration) Backoff {
	return Backoff{Base: base}
}

// Delay returns how long to wait before the next attempt once attemptsMade
// attempts have failed.
func (b Backoff) Delay(attemptsMade int) time.Duration {
	if b.Base <= 0 || attemptsMade <= 0 {
		return 0
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = b.Base
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = maxBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()

	var d time.Duration
	for i := 0; i < attemptsMade; i++ {
		d = exp.NextBackOff()
	}
	return d
}
