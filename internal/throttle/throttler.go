// Package throttle gates user-visible side effects to at most one per interval.
package throttle

import (
	"time"

	"golang.org/x/time/rate"

	"commute/internal/types"
)

// Throttler grants permission at most once per interval. Safe for concurrent use:
// callers racing within the same interval observe exactly one winner.
type Throttler struct {
	interval time.Duration
	limiter  *rate.Limiter
	clock    types.Clock
}

// New returns a Throttler whose first ShouldExecute call succeeds.
func New(interval time.Duration) *Throttler {
	return NewWithClock(interval, types.RealClock{})
}

// NewWithClock is New with an injected clock.
func NewWithClock(interval time.Duration, clock types.Clock) *Throttler {
	return &Throttler{
		interval: interval,
		// A single-token bucket refilled once per interval: the token is only
		// consumed (and the refill window restarted) on a granted call.
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		clock:   clock,
	}
}

// Interval returns the configured gate interval.
func (t *Throttler) Interval() time.Duration {
	return t.interval
}

// ShouldExecute reports whether the caller may perform the gated action now.
func (t *Throttler) ShouldExecute() bool {
	if t.interval <= 0 {
		return true
	}
	return t.limiter.AllowN(t.clock.Now(), 1)
}
