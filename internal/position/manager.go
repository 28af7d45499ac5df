package position

// manager.go — Position lifecycle supervision.
//
// One goroutine per live position polls the pool price and triggers the
// exit when the profit target or stop loss is crossed. Exits retry the
// normal sell a few times and then escalate to the emergency path. The
// manager owns the one-live-position-per-token invariant and the loss
// guard that pauses new entries after a losing streak.

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alejandrodnm/snipebot/internal/domain"
	"github.com/alejandrodnm/snipebot/internal/ports"
)

// Trader is the slice of the trade engine the manager drives.
type Trader interface {
	Quote(ctx context.Context, amountIn *big.Int, path []common.Address) (*big.Int, error)
	Sell(ctx context.Context, token common.Address, amountTokens *big.Int) (domain.TradeResult, error)
	EmergencySell(ctx context.Context, token common.Address, amountTokens *big.Int) (domain.TradeResult, error)
}

// Config holds the supervision parameters.
type Config struct {
	PollInterval    time.Duration
	ProfitTargetPct float64 // 100 doubles the entry price
	StopLossPct     float64
	MaxPositions    int
	SellRetries     int
	RetryDelay      time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:    30 * time.Second,
		ProfitTargetPct: 100,
		StopLossPct:     30,
		MaxPositions:    3,
		SellRetries:     3,
		RetryDelay:      5 * time.Second,
	}
}

// Manager supervises open positions. Safe for concurrent use.
type Manager struct {
	cfg       Config
	trader    Trader
	store     ports.TradeStore
	notifier  ports.Notifier
	guard     *domain.LossGuard
	stats     *domain.Stats
	baseAsset common.Address

	mu        sync.Mutex
	positions map[common.Address]*domain.Position
	wg        sync.WaitGroup
}

// NewManager wires a manager. store and notifier may be nil.
func NewManager(cfg Config, trader Trader, store ports.TradeStore, notifier ports.Notifier, guard *domain.LossGuard, stats *domain.Stats, baseAsset common.Address) *Manager {
	return &Manager{
		cfg:       cfg,
		trader:    trader,
		store:     store,
		notifier:  notifier,
		guard:     guard,
		stats:     stats,
		baseAsset: baseAsset,
		positions: make(map[common.Address]*domain.Position),
	}
}

// CanOpen reports whether a new position for token is admissible: the
// loss guard allows trading, the token has no live position and a slot
// is free.
func (m *Manager) CanOpen(token common.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.guard.Allows() {
		slog.Warn("loss guard active, skipping entry", "token", token.Hex())
		return false
	}
	if _, exists := m.positions[token]; exists {
		return false
	}
	return len(m.positions) < m.cfg.MaxPositions
}

// Open registers a bought position and starts its monitor. spentEth is
// the ETH spent on the buy; result carries the tokens received.
func (m *Manager) Open(ctx context.Context, cand domain.CandidatePair, symbol string, result domain.TradeResult, spentEth float64) (*domain.Position, error) {
	if result.AmountOut == nil || result.AmountOut.Sign() <= 0 {
		return nil, fmt.Errorf("position.Open: buy returned no tokens")
	}

	tokens := toFloat(result.AmountOut)
	entry := spentEth / tokens

	pos := &domain.Position{
		ID:                uuid.NewString(),
		TokenAddress:      cand.TargetToken,
		PairAddress:       cand.PairAddress,
		Symbol:            symbol,
		IsToken0:          cand.IsTargetToken0,
		EntryPrice:        entry,
		AmountSpent:       spentEth,
		TokensHeld:        new(big.Int).Set(result.AmountOut),
		BuyTxHash:         result.TxHash,
		OpenedAt:          time.Now().UTC(),
		StopLossPrice:     entry * (1 - m.cfg.StopLossPct/100),
		ProfitTargetPrice: entry * (1 + m.cfg.ProfitTargetPct/100),
		State:             domain.PositionCreated,
	}
	if err := pos.Transition(domain.PositionBought); err != nil {
		return nil, err
	}
	if err := pos.Transition(domain.PositionActive); err != nil {
		return nil, err
	}

	// CanOpen ran before the buy; the slot count has to hold again here
	// because concurrent candidates race for the last slot.
	m.mu.Lock()
	if _, exists := m.positions[pos.TokenAddress]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("position.Open: live position already exists for %s", pos.TokenAddress.Hex())
	}
	if len(m.positions) >= m.cfg.MaxPositions {
		m.mu.Unlock()
		return nil, fmt.Errorf("position.Open: all %d slots taken", m.cfg.MaxPositions)
	}
	m.positions[pos.TokenAddress] = pos
	m.mu.Unlock()

	m.recordTrade(ctx, pos)
	m.notify(ctx, fmt.Sprintf("Position opened: %s", symbol), ports.LevelInfo, map[string]any{
		"token":     pos.TokenAddress.Hex(),
		"spent_eth": spentEth,
		"tx":        pos.BuyTxHash.Hex(),
	})

	m.wg.Add(1)
	go m.monitor(ctx, pos)

	slog.Info("position opened",
		"symbol", symbol,
		"token", pos.TokenAddress.Hex(),
		"entry_price", entry,
		"stop_loss", pos.StopLossPrice,
		"profit_target", pos.ProfitTargetPrice,
	)
	return pos, nil
}

// monitor polls the pool until an exit triggers or ctx is cancelled.
// Cancellation leaves the position open on purpose: shutdown must not
// force-sell into a thin pool.
func (m *Manager) monitor(ctx context.Context, pos *domain.Position) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("monitor stopped, position stays open", "symbol", pos.Symbol)
			return
		case <-ticker.C:
			price, err := m.currentPrice(ctx, pos)
			if err != nil {
				slog.Debug("price poll failed", "symbol", pos.Symbol, "err", err)
				continue
			}

			switch {
			case price >= pos.ProfitTargetPrice:
				m.close(ctx, pos, domain.CloseReasonProfitTarget, price)
				return
			case price <= pos.StopLossPrice:
				m.close(ctx, pos, domain.CloseReasonStopLoss, price)
				return
			default:
				slog.Debug("position update",
					"symbol", pos.Symbol,
					"price", price,
					"pnl_pct", pos.PnLPercent(price),
				)
			}
		}
	}
}

// currentPrice values the whole holding through the router quote, so
// the price reflects what the pool would actually pay. The quote comes
// back in wei and the price is ETH per token unit.
func (m *Manager) currentPrice(ctx context.Context, pos *domain.Position) (float64, error) {
	value, err := m.trader.Quote(ctx, pos.TokensHeld, []common.Address{pos.TokenAddress, m.baseAsset})
	if err != nil {
		return 0, err
	}
	tokens := toFloat(pos.TokensHeld)
	if tokens == 0 {
		return 0, fmt.Errorf("position holds no tokens")
	}
	return toFloat(value) / 1e18 / tokens, nil
}

// close sells the position, escalating to the emergency path when the
// normal sell keeps failing.
func (m *Manager) close(ctx context.Context, pos *domain.Position, reason string, price float64) {
	m.mu.Lock()
	err := pos.Transition(domain.PositionClosing)
	m.mu.Unlock()
	if err != nil {
		slog.Error("close aborted", "symbol", pos.Symbol, "err", err)
		return
	}
	slog.Info("closing position", "symbol", pos.Symbol, "reason", reason, "price", price)

	var result domain.TradeResult
	for attempt := 1; attempt <= m.cfg.SellRetries; attempt++ {
		result, err = m.trader.Sell(ctx, pos.TokenAddress, pos.TokensHeld)
		if err == nil && !result.Confirmed {
			// A broadcast sell with no receipt must not close the
			// position: the swap may never mine.
			err = fmt.Errorf("position.close: sell %s unconfirmed", result.TxHash.Hex())
		}
		if err == nil {
			break
		}
		slog.Warn("sell failed", "symbol", pos.Symbol, "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(m.cfg.RetryDelay):
			continue
		}
		break
	}

	if err != nil {
		slog.Error("sell retries exhausted, going to emergency exit", "symbol", pos.Symbol)
		result, err = m.trader.EmergencySell(ctx, pos.TokenAddress, pos.TokensHeld)
		if err == nil && !result.Confirmed {
			err = fmt.Errorf("position.close: emergency sell %s unconfirmed", result.TxHash.Hex())
		}
		if err == nil {
			reason = domain.CloseReasonEmergency
		}
	}

	if err != nil {
		m.finalize(ctx, pos, domain.PositionFailed, reason, price)
		m.notify(ctx, fmt.Sprintf("Position STUCK: %s could not be sold", pos.Symbol),
			ports.LevelCritical, map[string]any{"token": pos.TokenAddress.Hex(), "err": err.Error()})
		return
	}

	m.mu.Lock()
	pos.SellTxHash = result.TxHash
	m.mu.Unlock()
	m.finalize(ctx, pos, domain.PositionClosed, reason, price)
}

// finalize records the terminal state, the realized P&L and feeds the
// loss guard.
func (m *Manager) finalize(ctx context.Context, pos *domain.Position, state domain.PositionState, reason string, price float64) {
	// The manager lock also guards position mutation: Live() copies the
	// structs for the reporter while monitors run.
	m.mu.Lock()
	if err := pos.Transition(state); err != nil {
		slog.Error("finalize transition failed", "symbol", pos.Symbol, "err", err)
	}
	pos.CloseReason = reason
	pos.ExitPrice = price
	pos.RealizedPnL = price*toFloat(pos.TokensHeld) - pos.AmountSpent
	pos.ClosedAt = time.Now().UTC()
	delete(m.positions, pos.TokenAddress)

	if pos.RealizedPnL < 0 {
		m.guard.RecordLoss(pos.RealizedPnL)
	} else {
		m.guard.RecordWin(pos.RealizedPnL)
	}
	m.mu.Unlock()

	m.stats.Update(func(s *domain.Stats) { s.TotalPnL += pos.RealizedPnL })

	status := domain.TradeStatusConfirmed
	if state == domain.PositionFailed {
		status = domain.TradeStatusFailed
	}
	if m.store != nil {
		if err := m.store.UpdateTradeStatus(ctx, pos.ID, status, reason, pos.RealizedPnL); err != nil {
			slog.Warn("trade store update failed", "err", err)
		}
	}

	level := ports.LevelInfo
	if pos.RealizedPnL < 0 {
		level = ports.LevelWarning
	}
	m.notify(ctx, fmt.Sprintf("Position closed: %s (%s)", pos.Symbol, reason), level, map[string]any{
		"token":   pos.TokenAddress.Hex(),
		"pnl_eth": pos.RealizedPnL,
		"tx":      pos.SellTxHash.Hex(),
	})

	slog.Info("position finalized",
		"symbol", pos.Symbol,
		"state", state,
		"reason", reason,
		"pnl_eth", pos.RealizedPnL,
	)
}

// Live returns a snapshot of the open positions.
func (m *Manager) Live() []domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}

// Count returns the number of open positions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.positions)
}

// Wait blocks until every monitor goroutine has returned.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) recordTrade(ctx context.Context, pos *domain.Position) {
	if m.store == nil {
		return
	}
	now := time.Now().UTC()
	rec := domain.TradeRecord{
		ID:           pos.ID,
		TokenAddress: pos.TokenAddress.Hex(),
		Symbol:       pos.Symbol,
		Direction:    domain.DirectionBuy,
		AmountIn:     ethToWei(pos.AmountSpent).String(),
		AmountOut:    pos.TokensHeld.String(),
		Price:        pos.EntryPrice,
		TxHash:       pos.BuyTxHash.Hex(),
		Status:       domain.TradeStatusConfirmed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.store.RecordTrade(ctx, rec); err != nil {
		slog.Warn("trade store insert failed", "err", err)
	}
}

func (m *Manager) notify(ctx context.Context, msg, level string, data map[string]any) {
	if m.notifier == nil {
		return
	}
	m.notifier.Send(ctx, msg, level, data)
}

func toFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func ethToWei(eth float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(eth), big.NewFloat(1e18)).Int(nil)
	return wei
}
