package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionLifecycleHappyPath(t *testing.T) {
	p := &Position{Symbol: "PEPE", State: PositionCreated}

	require.NoError(t, p.Transition(PositionBought))
	require.NoError(t, p.Transition(PositionActive))
	require.NoError(t, p.Transition(PositionClosing))
	require.NoError(t, p.Transition(PositionClosed))
	assert.False(t, p.Live())
}

func TestPositionIllegalTransitions(t *testing.T) {
	cases := []struct {
		from, to PositionState
	}{
		{PositionCreated, PositionActive},
		{PositionCreated, PositionClosed},
		{PositionActive, PositionClosed},
		{PositionActive, PositionFailed},
		{PositionClosed, PositionActive},
		{PositionFailed, PositionCreated},
	}
	for _, tc := range cases {
		p := &Position{State: tc.from}
		err := p.Transition(tc.to)
		require.Error(t, err, "%s → %s should be illegal", tc.from, tc.to)
		assert.Equal(t, tc.from, p.State)
	}
}

func TestPositionFailedFromClosing(t *testing.T) {
	p := &Position{State: PositionClosing}
	require.NoError(t, p.Transition(PositionFailed))
	assert.False(t, p.Live())
}

func TestPnLPercent(t *testing.T) {
	p := &Position{EntryPrice: 2e-6}

	assert.InDelta(t, 100.0, p.PnLPercent(4e-6), 1e-9)
	assert.InDelta(t, -50.0, p.PnLPercent(1e-6), 1e-9)
	assert.InDelta(t, 0.0, p.PnLPercent(2e-6), 1e-9)

	// Entrada inválida nunca divide por cero
	zero := &Position{}
	assert.Equal(t, 0.0, zero.PnLPercent(1.0))
}
