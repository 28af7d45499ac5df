package trade

// fees.go — EIP-1559 fee estimation.
//
// Priority fee comes from the 75th percentile of the last 10 blocks'
// rewards, scaled by the aggressiveness multiplier. Max fee leaves room
// for two consecutive base-fee increases: 2*baseFee + priority.

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alejandrodnm/snipebot/internal/domain"
)

const (
	feeHistoryBlocks     = 10
	feeHistoryPercentile = 75.0
)

// 2 gwei, used when fee history is unavailable.
var fallbackPriorityFee = big.NewInt(2_000_000_000)

// FeeSource is the slice of the connector the pricer reads from.
type FeeSource interface {
	FeeHistory(ctx context.Context, blocks uint64, percentiles []float64) (*ethereum.FeeHistory, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// GasPricer computes the fee caps for outgoing transactions.
type GasPricer struct {
	conn       FeeSource
	multiplier float64
}

// NewGasPricer creates a pricer; multiplier scales the priority fee
// (1.0 = pay the observed percentile).
func NewGasPricer(conn FeeSource, multiplier float64) *GasPricer {
	if multiplier <= 0 {
		multiplier = 1.0
	}
	return &GasPricer{conn: conn, multiplier: multiplier}
}

// Suggest returns the fee caps for the next transaction. GasLimit is
// left zero; the engine fills it per call.
func (g *GasPricer) Suggest(ctx context.Context) (domain.GasStrategy, error) {
	header, err := g.conn.HeaderByNumber(ctx, nil)
	if err != nil {
		return domain.GasStrategy{}, err
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}

	priority := g.priorityFee(ctx)
	maxFee := new(big.Int).Mul(baseFee, big.NewInt(2))
	maxFee.Add(maxFee, priority)

	return domain.GasStrategy{
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: priority,
	}, nil
}

// priorityFee averages the percentile rewards over the sampled blocks,
// falling back to 2 gwei when the endpoint has no history.
func (g *GasPricer) priorityFee(ctx context.Context) *big.Int {
	hist, err := g.conn.FeeHistory(ctx, feeHistoryBlocks, []float64{feeHistoryPercentile})
	if err != nil || len(hist.Reward) == 0 {
		slog.Debug("fee history unavailable, using fallback priority fee", "err", err)
		return g.scale(fallbackPriorityFee)
	}

	sum := new(big.Int)
	count := 0
	for _, rewards := range hist.Reward {
		if len(rewards) > 0 && rewards[0] != nil {
			sum.Add(sum, rewards[0])
			count++
		}
	}
	if count == 0 {
		return g.scale(fallbackPriorityFee)
	}
	avg := sum.Quo(sum, big.NewInt(int64(count)))
	if avg.Sign() == 0 {
		return g.scale(fallbackPriorityFee)
	}
	return g.scale(avg)
}

// scale multiplies a fee by the configured multiplier using basis
// points to stay in integer math.
func (g *GasPricer) scale(fee *big.Int) *big.Int {
	bps := big.NewInt(int64(g.multiplier * 10_000))
	out := new(big.Int).Mul(fee, bps)
	return out.Quo(out, big.NewInt(10_000))
}
