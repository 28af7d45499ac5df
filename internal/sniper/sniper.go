// Package sniper is the application orchestrator. It connects the
// factory watcher to the safety evaluator, the trade engine and the
// position manager, and owns the bot lifecycle.
//
// Pipeline per candidate:
//
//	watcher → evaluate → loss guard / slots → buy → open position
//
// Each candidate is evaluated on its own goroutine, bounded by a
// semaphore. Shutdown is cooperative: cancelling the context stops the
// watcher and the eval workers, monitors park their positions open and
// the trade history stays in storage for the next run.
package sniper

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alejandrodnm/snipebot/internal/domain"
	"github.com/alejandrodnm/snipebot/internal/ports"
)

const (
	defaultReportInterval = 5 * time.Minute
	defaultMaxEvals       = 4
)

// Evaluator decides whether a candidate token is tradeable.
type Evaluator interface {
	Evaluate(ctx context.Context, cand domain.CandidatePair) domain.SafetyAssessment
}

// Buyer executes the entry trade.
type Buyer interface {
	Buy(ctx context.Context, token common.Address, amountWei *big.Int) (domain.TradeResult, error)
}

// PositionBook admits and supervises open positions.
type PositionBook interface {
	CanOpen(token common.Address) bool
	Open(ctx context.Context, cand domain.CandidatePair, symbol string, result domain.TradeResult, spentEth float64) (*domain.Position, error)
	Live() []domain.Position
	Count() int
	Wait()
}

// Reporter prints the periodic status tables.
type Reporter interface {
	PrintPositions(positions []domain.Position)
	PrintStats(snap domain.StatsSnapshot, summary ports.TradeSummary)
}

// Config holds the orchestrator knobs.
type Config struct {
	BuyAmountEth   float64
	MaxConcurrent  int           // parallel candidate evaluations
	ReportInterval time.Duration // 0 disables the reporter
	DryRun         bool
}

// Sniper runs the full pipeline.
type Sniper struct {
	cfg       Config
	eval      Evaluator
	engine    Buyer
	positions PositionBook
	store     ports.TradeStore // nil-safe
	notifier  ports.Notifier   // nil-safe
	reporter  Reporter         // nil-safe
	stats     *domain.Stats

	candidates <-chan domain.CandidatePair
	wg         sync.WaitGroup
}

// New wires the orchestrator. candidates is usually watcher.Candidates().
func New(
	cfg Config,
	candidates <-chan domain.CandidatePair,
	eval Evaluator,
	engine Buyer,
	positions PositionBook,
	store ports.TradeStore,
	notifier ports.Notifier,
	reporter Reporter,
	stats *domain.Stats,
) *Sniper {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxEvals
	}
	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = defaultReportInterval
	}
	return &Sniper{
		cfg:        cfg,
		eval:       eval,
		engine:     engine,
		positions:  positions,
		store:      store,
		notifier:   notifier,
		reporter:   reporter,
		stats:      stats,
		candidates: candidates,
	}
}

// Run consumes candidates until the context is cancelled or the
// candidate channel closes, then waits for in-flight evaluations and
// position monitors to park.
func (s *Sniper) Run(ctx context.Context) error {
	slog.Info("sniper: started",
		"buy_amount_eth", s.cfg.BuyAmountEth,
		"max_concurrent", s.cfg.MaxConcurrent,
		"dry_run", s.cfg.DryRun)
	s.notify(ctx, "Sniper started", ports.LevelInfo, map[string]any{
		"buy_amount_eth": s.cfg.BuyAmountEth,
		"dry_run":        s.cfg.DryRun,
	})

	if s.reporter != nil && s.cfg.ReportInterval > 0 {
		s.wg.Add(1)
		go s.reportLoop(ctx)
	}

	sem := make(chan struct{}, s.cfg.MaxConcurrent)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case cand, ok := <-s.candidates:
			if !ok {
				break loop
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				break loop
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer func() { <-sem }()
				s.handleCandidate(ctx, cand)
			}()
		}
	}

	s.wg.Wait()
	s.positions.Wait()
	slog.Info("sniper: stopped", "open_positions", s.positions.Count())
	s.notify(context.WithoutCancel(ctx), "Sniper stopped", ports.LevelInfo, map[string]any{
		"open_positions": s.positions.Count(),
	})
	return ctx.Err()
}

// handleCandidate runs the evaluate → admit → buy → open sequence for
// one pair. Failures never abort the loop: the pair is logged and
// skipped.
func (s *Sniper) handleCandidate(ctx context.Context, cand domain.CandidatePair) {
	assessment := s.eval.Evaluate(ctx, cand)
	if !assessment.Safe() {
		slog.Debug("sniper: candidate rejected",
			"token", cand.TargetToken.Hex(),
			"reason", assessment.ReasonCode)
		return
	}

	if !s.positions.CanOpen(cand.TargetToken) {
		slog.Info("sniper: no slot for candidate",
			"token", cand.TargetToken.Hex(),
			"symbol", assessment.Token.Symbol,
			"open", s.positions.Count())
		return
	}

	slog.Info("sniper: buying",
		"token", cand.TargetToken.Hex(),
		"symbol", assessment.Token.Symbol,
		"liquidity_eth", fmt.Sprintf("%.2f", assessment.LiquidityEth),
		"confidence", assessment.Confidence)

	result, err := s.engine.Buy(ctx, cand.TargetToken, ethToWei(s.cfg.BuyAmountEth))
	if err != nil {
		slog.Error("sniper: buy failed",
			"token", cand.TargetToken.Hex(), "err", err)
		s.notify(ctx, fmt.Sprintf("Buy failed for %s", assessment.Token.Symbol),
			ports.LevelError, map[string]any{
				"token": cand.TargetToken.Hex(),
				"error": err.Error(),
			})
		return
	}

	if _, err := s.positions.Open(ctx, cand, assessment.Token.Symbol, result, s.cfg.BuyAmountEth); err != nil {
		slog.Error("sniper: open position failed",
			"token", cand.TargetToken.Hex(), "err", err)
	}
}

// reportLoop prints stats and live positions at a fixed cadence.
func (s *Sniper) reportLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.report(ctx)
		}
	}
}

func (s *Sniper) report(ctx context.Context) {
	var summary ports.TradeSummary
	if s.store != nil {
		var err error
		summary, err = s.store.Summary(ctx, time.Time{})
		if err != nil {
			slog.Warn("sniper: trade summary failed", "err", err)
		}
	}
	s.reporter.PrintStats(s.stats.Snapshot(), summary)
	s.reporter.PrintPositions(s.positions.Live())
}

func (s *Sniper) notify(ctx context.Context, msg, level string, data map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Send(ctx, msg, level, data)
}

// ethToWei converts a float ETH amount to wei without losing precision
// on typical trade sizes.
func ethToWei(eth float64) *big.Int {
	wei, _ := new(big.Float).Mul(
		big.NewFloat(eth),
		big.NewFloat(1e18),
	).Int(nil)
	return wei
}
