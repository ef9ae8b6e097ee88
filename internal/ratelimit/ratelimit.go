// Package ratelimit provides the two access policies used against external
// providers: minimum inter-call spacing and bounded concurrency.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Limiter gates access to an external resource. Do blocks until the policy
// admits the call, runs fn, and releases whatever the policy acquired.
type Limiter interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Interval serializes calls and enforces a minimum gap between consecutive
// call starts. The gap applies unconditionally: a failed call still counts
// against the provider's quota, so the next call waits the same amount.
type Interval struct {
	mu     sync.Mutex
	minGap time.Duration
	last   time.Time
}

// NewInterval builds a serialized limiter with the given minimum spacing.
// A non-positive gap disables the wait but keeps calls serialized.
func NewInterval(minGap time.Duration) *Interval {
	return &Interval{minGap: minGap}
}

// Do waits out the remaining gap since the previous call, then runs fn.
// Calls are fully serialized; the gap is measured from call start so slow
// calls do not shrink the spacing below minGap.
func (l *Interval) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.minGap > 0 && !l.last.IsZero() {
		wait := l.minGap - time.Since(l.last)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	l.last = time.Now()
	return fn(ctx)
}

// Pool admits up to n concurrent calls with no spacing requirement.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool builds a limiter admitting at most n concurrent calls. n below one
// is treated as one.
func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(n))}
}

// Do acquires a slot, runs fn, and releases the slot when fn returns.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}
