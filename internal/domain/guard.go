package domain

import "time"

// LossGuard tracks realized losses and enforces trading pauses. This is
// the financial-risk guard at the orchestrator level, distinct from the
// per-endpoint circuit breakers in the reliability package: it never
// loosens risk parameters, it only stops opening new positions.
type LossGuard struct {
	ConsecutiveLosses int
	MaxLosses         int
	CooldownUntil     time.Time
	CooldownDuration  time.Duration
	TotalPnL          float64
	MaxDrawdown       float64 // negative ETH amount threshold
	Triggered         bool
	TriggeredReason   string
}

// Allows returns true if new positions may be opened.
func (g *LossGuard) Allows() bool {
	if g.Triggered {
		return false
	}
	if time.Now().Before(g.CooldownUntil) {
		return false
	}
	return true
}

// RecordLoss records a negative close and may pause trading.
func (g *LossGuard) RecordLoss(loss float64) {
	g.ConsecutiveLosses++
	g.TotalPnL += loss
	if g.MaxLosses > 0 && g.ConsecutiveLosses >= g.MaxLosses {
		g.CooldownUntil = time.Now().Add(g.CooldownDuration)
		g.ConsecutiveLosses = 0
		g.TriggeredReason = "consecutive losses"
	}
	if g.MaxDrawdown < 0 && g.TotalPnL < g.MaxDrawdown {
		g.Triggered = true
		g.TriggeredReason = "max drawdown exceeded"
	}
}

// RecordWin resets the consecutive loss counter.
func (g *LossGuard) RecordWin(profit float64) {
	g.ConsecutiveLosses = 0
	g.TotalPnL += profit
}
