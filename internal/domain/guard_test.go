package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLossGuardAllowsByDefault(t *testing.T) {
	g := &LossGuard{MaxLosses: 3, CooldownDuration: time.Hour}
	assert.True(t, g.Allows())
}

func TestLossGuardCooldownAfterConsecutiveLosses(t *testing.T) {
	g := &LossGuard{MaxLosses: 2, CooldownDuration: time.Hour}

	g.RecordLoss(-0.1)
	assert.True(t, g.Allows())

	g.RecordLoss(-0.1)
	assert.False(t, g.Allows())
	assert.Equal(t, 0, g.ConsecutiveLosses) // counter resets when the pause starts
	assert.Equal(t, "consecutive losses", g.TriggeredReason)
}

func TestLossGuardWinResetsStreak(t *testing.T) {
	g := &LossGuard{MaxLosses: 2, CooldownDuration: time.Hour}

	g.RecordLoss(-0.1)
	g.RecordWin(0.3)
	g.RecordLoss(-0.1)

	assert.True(t, g.Allows())
	assert.InDelta(t, 0.1, g.TotalPnL, 1e-9)
}

func TestLossGuardDrawdownIsPermanent(t *testing.T) {
	g := &LossGuard{MaxLosses: 10, CooldownDuration: time.Minute, MaxDrawdown: -0.5}

	g.RecordLoss(-0.3)
	assert.True(t, g.Allows())

	g.RecordLoss(-0.3)
	assert.False(t, g.Allows())
	assert.True(t, g.Triggered)
	assert.Equal(t, "max drawdown exceeded", g.TriggeredReason)

	// A win never clears the drawdown trigger.
	g.RecordWin(1.0)
	assert.False(t, g.Allows())
}
