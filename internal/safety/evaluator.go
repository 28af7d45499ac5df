package safety

// evaluator.go — Token safety evaluation pipeline.
//
// Checks run cheapest-first and short-circuit on a hard failure:
//
//   code presence → bytecode scan → risk API → token probe →
//   liquidity → restrictions → owner holdings
//
// Each check is tri-state. A Fail condemns the token; an Unknown is
// recorded as a signal and lowers the confidence of a safe verdict,
// so a flaky RPC or a down risk API degrades the score instead of
// producing false approvals.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/snipebot/internal/domain"
)

// Config holds the evaluation thresholds.
type Config struct {
	MinLiquidityEth    float64
	MaxOwnerHoldingPct float64 // owner share of supply, percent
	MaxTax             float64 // risk API tax ceiling, fraction
	MinMaxTxEth        float64 // floor for maxTx converted to ETH
	MinMaxWalletEth    float64 // floor for maxWallet converted to ETH
}

// DefaultConfig mirrors the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinLiquidityEth:    1.0,
		MaxOwnerHoldingPct: 15.0,
		MaxTax:             0.10,
		MinMaxTxEth:        1.0,
		MinMaxWalletEth:    10.0,
	}
}

const (
	baseConfidence = 0.8
	minConfidence  = 0.5
)

// Evaluator runs the safety pipeline for candidate pairs.
type Evaluator struct {
	cfg   Config
	conn  ChainReader
	rules RuleSet
	risk  *RiskClient // nil disables the external check
	stats *domain.Stats
}

// NewEvaluator wires the pipeline. risk may be nil.
func NewEvaluator(cfg Config, conn ChainReader, rules RuleSet, risk *RiskClient, stats *domain.Stats) *Evaluator {
	return &Evaluator{cfg: cfg, conn: conn, rules: rules, risk: risk, stats: stats}
}

// Evaluate runs every check against the candidate's target token and
// returns the assessment. It never returns an error: infrastructure
// failures surface as Unknown signals and reduced confidence.
func (e *Evaluator) Evaluate(ctx context.Context, cand domain.CandidatePair) domain.SafetyAssessment {
	a := domain.SafetyAssessment{
		TokenAddress: cand.TargetToken,
		Verdict:      domain.VerdictUnsafe,
		Restrictions: domain.Restrictions{TradingEnabled: domain.CheckUnknown},
	}
	e.stats.Update(func(s *domain.Stats) { s.PairsAnalyzed++ })

	// An address without code is an EOA or an unmined deploy. Nothing
	// else is worth checking.
	// A failed probe is not proof of anything: reject with a reason of
	// its own and low confidence, never as if the address were an EOA.
	code, err := e.conn.CodeAt(ctx, cand.TargetToken)
	if err != nil {
		a.ReasonCode = domain.ReasonProbeFailed
		a.Signals = append(a.Signals, "rpc:code-probe-failed")
		a.Confidence = minConfidence
		return e.reject(a)
	}
	if len(code) == 0 {
		a.ReasonCode = domain.ReasonNoCode
		a.Confidence = 1.0
		return e.reject(a)
	}
	a.HasCode = true

	scan := e.rules.Scan(code)
	a.Signals = append(a.Signals, scan.Signals...)
	if scan.Suspicious {
		a.IsHoneypot = true
		a.ReasonCode = domain.ReasonHoneypot
		a.Confidence = baseConfidence
		e.stats.Update(func(s *domain.Stats) { s.HoneypotsDetected++ })
		return e.reject(a)
	}

	unknowns := 0
	if e.risk != nil {
		report := e.risk.Check(ctx, cand.TargetToken)
		if report.Checked == domain.CheckUnknown {
			unknowns++
			a.Signals = append(a.Signals, "riskapi:unavailable")
		} else if report.Flagged(e.cfg.MaxTax) {
			a.IsHoneypot = true
			a.ReasonCode = domain.ReasonHoneypot
			a.Signals = append(a.Signals, riskSignals(report)...)
			a.Confidence = baseConfidence
			e.stats.Update(func(s *domain.Stats) { s.HoneypotsDetected++ })
			return e.reject(a)
		}
	}

	info, answered := probeToken(ctx, e.conn, cand.TargetToken)
	a.Token = info
	if ok, signal := plausibleToken(info, answered); !ok {
		a.ReasonCode = domain.ReasonHoneypot
		a.Signals = append(a.Signals, signal)
		a.Confidence = baseConfidence
		return e.reject(a)
	}

	baseReserve, tokenReserve, err := pairReserves(ctx, e.conn, cand)
	if err != nil {
		unknowns++
		a.Signals = append(a.Signals, "pair:reserves-unavailable")
		slog.Debug("reserves probe failed", "pair", cand.PairAddress.Hex(), "err", err)
	} else {
		a.LiquidityEth = weiToEth(baseReserve)
		if a.LiquidityEth < e.cfg.MinLiquidityEth {
			a.ReasonCode = domain.ReasonLowLiquidity
			a.Signals = append(a.Signals, fmt.Sprintf("liquidity:%.4f-eth", a.LiquidityEth))
			a.Confidence = baseConfidence
			return e.reject(a)
		}
	}

	a.Restrictions = probeRestrictions(ctx, e.conn, cand.TargetToken)
	if a.Restrictions.TradingEnabled == domain.CheckFail {
		a.ReasonCode = domain.ReasonRestricted
		a.Signals = append(a.Signals, "restriction:trading-disabled")
		a.Confidence = baseConfidence
		return e.reject(a)
	}
	if baseReserve != nil && tokenReserve != nil {
		if v := tokenAmountToEth(a.Restrictions.MaxTx, baseReserve, tokenReserve); a.Restrictions.MaxTx != nil && v < e.cfg.MinMaxTxEth {
			a.ReasonCode = domain.ReasonRestricted
			a.Signals = append(a.Signals, fmt.Sprintf("restriction:max-tx-%.4f-eth", v))
			a.Confidence = baseConfidence
			return e.reject(a)
		}
		if v := tokenAmountToEth(a.Restrictions.MaxWallet, baseReserve, tokenReserve); a.Restrictions.MaxWallet != nil && v < e.cfg.MinMaxWalletEth {
			a.ReasonCode = domain.ReasonRestricted
			a.Signals = append(a.Signals, fmt.Sprintf("restriction:max-wallet-%.4f-eth", v))
			a.Confidence = baseConfidence
			return e.reject(a)
		}
	}

	if pct, ok := ownerHoldings(ctx, e.conn, cand.TargetToken, info.TotalSupply); ok {
		if pct > e.cfg.MaxOwnerHoldingPct {
			a.ReasonCode = domain.ReasonDevHoldings
			a.Signals = append(a.Signals, fmt.Sprintf("owner:holds-%.1f%%", pct))
			a.Confidence = baseConfidence
			return e.reject(a)
		}
	} else {
		unknowns++
		a.Signals = append(a.Signals, "owner:unknown")
	}

	a.Verdict = domain.VerdictSafe
	a.Confidence = baseConfidence - 0.1*float64(unknowns)
	if a.Confidence < minConfidence {
		a.Confidence = minConfidence
	}
	slog.Info("token passed safety checks",
		"token", cand.TargetToken.Hex(),
		"symbol", info.Symbol,
		"liquidity_eth", a.LiquidityEth,
		"confidence", a.Confidence,
	)
	return a
}

func (e *Evaluator) reject(a domain.SafetyAssessment) domain.SafetyAssessment {
	e.stats.Update(func(s *domain.Stats) { s.SafetyRejected++ })
	slog.Info("token rejected",
		"token", a.TokenAddress.Hex(),
		"reason", a.ReasonCode,
		"signals", a.Signals,
	)
	return a
}

func riskSignals(r RiskReport) []string {
	var sigs []string
	if r.IsHoneypot {
		sigs = append(sigs, "riskapi:honeypot")
	}
	if r.CannotSellAll {
		sigs = append(sigs, "riskapi:cannot-sell-all")
	}
	if r.IsBlacklisted {
		sigs = append(sigs, "riskapi:blacklisted")
	}
	if r.TransferPausable {
		sigs = append(sigs, "riskapi:transfer-pausable")
	}
	if r.BuyTax > 0 || r.SellTax > 0 {
		sigs = append(sigs, fmt.Sprintf("riskapi:tax-%.0f%%-%.0f%%", r.BuyTax*100, r.SellTax*100))
	}
	return sigs
}
