// Package throttle spaces outbound requests by a fixed minimum interval.
//
// Design decision: We use golang.org/x/time/rate with a burst of one
// instead of sleeping a fixed time before every request. The first request
// goes out immediately, and each later one waits only for whatever part of
// the interval has not already been spent doing work. The limiter also
// honors context cancellation and deadlines while waiting.
package throttle

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum interval between consecutive Wait calls.
// A nil Throttle or one created with a non-positive interval never waits.
// It is safe for concurrent use.
type Throttle struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// New creates a Throttle with the given minimum interval.
func New(interval time.Duration) *Throttle {
	t := &Throttle{interval: interval}
	if interval > 0 {
		t.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return t
}

// Wait blocks until the next request may be sent or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.limiter == nil {
		return ctx.Err()
	}
	return t.limiter.Wait(ctx)
}

// Interval returns the configured minimum interval.
func (t *Throttle) Interval() time.Duration {
	if t == nil {
		return 0
	}
	return t.interval
}
