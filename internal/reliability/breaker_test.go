package reliability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		err := cb.Do(func() error { return errBoom })
		require.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, StateOpen, cb.State())

	calls := 0
	err := cb.Do(func() error { calls++; return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls, "open breaker must not invoke the call")
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	require.Error(t, cb.Do(func() error { return errBoom }))
	require.Error(t, cb.Do(func() error { return errBoom }))
	require.NoError(t, cb.Do(func() error { return nil }))
	require.Error(t, cb.Do(func() error { return errBoom }))
	require.Error(t, cb.Do(func() error { return errBoom }))

	// Still only two consecutive failures, breaker stays closed.
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenSuccessCloses(t *testing.T) {
	cb := NewCircuitBreaker(1, 30*time.Millisecond)

	require.Error(t, cb.Do(func() error { return errBoom }))
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 30*time.Millisecond)

	require.Error(t, cb.Do(func() error { return errBoom }))
	time.Sleep(50 * time.Millisecond)

	require.ErrorIs(t, cb.Do(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Do(func() error { return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
}
