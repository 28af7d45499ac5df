package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PositionState is the lifecycle state of a position.
//
//	Created → Bought → Active → Closing → {Closed | Failed}
type PositionState string

const (
	// PositionCreated: buy decided, transaction not yet submitted.
	PositionCreated PositionState = "created"
	// PositionBought: buy submitted; waiting for monitoring to start.
	// With auto-sell disabled a position stays here until closed manually.
	PositionBought PositionState = "bought"
	// PositionActive: profit/stop-loss monitoring is running.
	PositionActive PositionState = "active"
	// PositionClosing: a sell has been triggered and is in flight.
	PositionClosing PositionState = "closing"
	// PositionClosed: sell confirmed, P&L realized.
	PositionClosed PositionState = "closed"
	// PositionFailed: the sell could not be submitted or confirmed
	// within policy, even after the emergency path.
	PositionFailed PositionState = "failed"
)

// Close reasons recorded when a position leaves Active.
const (
	CloseReasonProfitTarget = "profit_target"
	CloseReasonStopLoss     = "stop_loss"
	CloseReasonEmergency    = "emergency"
	CloseReasonManual       = "manual"
)

// Position is a live holding of a sniped token. Owned exclusively by the
// position manager; at most one live Position exists per token address.
type Position struct {
	ID           string // UUID
	TokenAddress common.Address
	PairAddress  common.Address
	Symbol       string
	IsToken0     bool // whether the token is token0 in the pair

	// Entry
	EntryPrice  float64  // ETH per token at buy time
	AmountSpent float64  // ETH spent
	TokensHeld  *big.Int // token units bought (best known)
	BuyTxHash   common.Hash
	OpenedAt    time.Time

	// Exit thresholds, fixed at open.
	StopLossPrice     float64
	ProfitTargetPrice float64

	// Exit
	State       PositionState
	SellTxHash  common.Hash
	CloseReason string
	ExitPrice   float64
	RealizedPnL float64 // ETH
	ClosedAt    time.Time
}

// Live reports whether the position still holds tokens.
func (p *Position) Live() bool {
	return p.State != PositionClosed && p.State != PositionFailed
}

// Transition moves the position to a new state, enforcing the legal
// edges of the lifecycle. Illegal transitions return an error and leave
// the position untouched.
func (p *Position) Transition(to PositionState) error {
	legal := map[PositionState][]PositionState{
		PositionCreated: {PositionBought, PositionFailed},
		PositionBought:  {PositionActive, PositionClosing, PositionFailed},
		PositionActive:  {PositionClosing},
		PositionClosing: {PositionClosed, PositionFailed},
	}
	for _, s := range legal[p.State] {
		if s == to {
			p.State = to
			return nil
		}
	}
	return fmt.Errorf("position %s: illegal transition %s → %s", p.Symbol, p.State, to)
}

// PnLPercent returns the unrealized P&L at the given price, in percent
// of the entry price.
func (p *Position) PnLPercent(currentPrice float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (currentPrice - p.EntryPrice) / p.EntryPrice * 100
}
