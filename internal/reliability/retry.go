package reliability

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy retries a fallible call with exponential backoff. The delay
// before attempt n is min(BaseDelay*ExponentialBase^n, MaxDelay), with an
// optional jitter that scales the delay by a random factor in [0.5, 1.0].
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
}

// DefaultRetryPolicy: 3 attempts, 1s base, 60s cap, doubling, jittered.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		BaseDelay:       time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// Do invokes fn up to MaxAttempts times, sleeping the backoff delay
// between attempts. Returns nil on the first success, the last error
// unchanged after the final attempt, or ctx.Err() if the context is
// cancelled while waiting.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.ExponentialBase, float64(attempt))
	if max := float64(p.MaxDelay); d > max {
		d = max
	}
	if p.Jitter {
		d *= 0.5 + rand.Float64()*0.5
	}
	return time.Duration(d)
}
