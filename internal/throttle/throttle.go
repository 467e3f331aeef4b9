// Package throttle paces work against an externally rate-limited service.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter blocks until the next unit of work may start. Done marks the end
// of a unit of work.
type Limiter interface {
	Wait(ctx context.Context) error
	Done()
}

// Interval enforces a pause of one interval between the end of one unit of
// work and the start of the next. The first Wait returns immediately, and a
// Wait without a preceding Done is spaced at least interval after the
// previous grant.
type Interval struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	interval time.Duration
}

// NewInterval creates an interval limiter. A non-positive interval never blocks.
func NewInterval(interval time.Duration) *Interval {
	return &Interval{
		limiter:  newBucket(interval),
		interval: interval,
	}
}

func newBucket(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Wait blocks until the next start is allowed or ctx is done.
func (i *Interval) Wait(ctx context.Context) error {
	i.mu.Lock()
	l := i.limiter
	i.mu.Unlock()
	return l.Wait(ctx)
}

// Done restarts the interval: the next Wait returns no earlier than one
// interval after Done, however long the finished work took.
func (i *Interval) Done() {
	if i.interval <= 0 {
		return
	}
	l := newBucket(i.interval)
	l.Allow()

	i.mu.Lock()
	i.limiter = l
	i.mu.Unlock()
}

// Interval returns the configured interval.
func (i *Interval) Interval() time.Duration {
	return i.interval
}

// None never blocks.
type None struct{}

// Wait returns ctx.Err() without blocking.
func (None) Wait(ctx context.Context) error {
	return ctx.Err()
}

// Done does nothing.
func (None) Done() {}
