package reliability

import (
	"context"
	"sync"
	"time"
)

// RateLimiter admits at most maxCalls inside any trailing window. Unlike
// a token bucket it gives the strict any-window guarantee: it keeps the
// timestamps of admitted calls and blocks until the oldest one falls out
// of the window. Calls are never dropped, only delayed.
type RateLimiter struct {
	maxCalls int
	window   time.Duration

	mu    sync.Mutex
	calls []time.Time
}

// NewRateLimiter creates a limiter for maxCalls per window.
func NewRateLimiter(maxCalls int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxCalls: maxCalls,
		window:   window,
		calls:    make([]time.Time, 0, maxCalls),
	}
}

// Acquire blocks until the call is admitted or the context is cancelled.
// Safe for concurrent callers; the wait happens outside the lock.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-l.window)

		// Prune timestamps that have left the window.
		keep := 0
		for keep < len(l.calls) && !l.calls[keep].After(cutoff) {
			keep++
		}
		l.calls = l.calls[keep:]

		if len(l.calls) < l.maxCalls {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}

		wait := l.window - now.Sub(l.calls[0])
		l.mu.Unlock()

		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
