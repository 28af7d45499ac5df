package reliability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     attempts,
		BaseDelay:       time.Millisecond,
		MaxDelay:        10 * time.Millisecond,
		ExponentialBase: 2.0,
	}
}

func TestRetryStopsOnFirstSuccess(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryReturnsLastErrorUnchanged(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
}

func TestRetryContextCancelDuringWait(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Minute, ExponentialBase: 2.0, MaxDelay: time.Minute}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	err := p.Do(ctx, func() error { calls++; return errBoom })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestRetryDelayCappedAtMax(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:     10,
		BaseDelay:       time.Second,
		MaxDelay:        5 * time.Second,
		ExponentialBase: 2.0,
	}
	// 2^9 seconds would be far past the cap.
	assert.Equal(t, 5*time.Second, p.delay(9))
}

func TestRetryJitterStaysInRange(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:     3,
		BaseDelay:       100 * time.Millisecond,
		MaxDelay:        time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
	for i := 0; i < 50; i++ {
		d := p.delay(0)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}
