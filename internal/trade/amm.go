package trade

// amm.go — Constant-product pool math with the 0.3% fee.

import "math/big"

var (
	feeNumerator   = big.NewInt(997)
	feeDenominator = big.NewInt(1000)
	bpsDenominator = big.NewInt(10_000)
)

// AmountOut computes the exact-in output for a constant-product pool:
//
//	out = in*997*reserveOut / (reserveIn*1000 + in*997)
//
// Returns zero when any input is nil or non-positive.
func AmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn == nil || reserveIn == nil || reserveOut == nil {
		return new(big.Int)
	}
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int)
	}

	inWithFee := new(big.Int).Mul(amountIn, feeNumerator)
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, feeDenominator)
	denominator.Add(denominator, inWithFee)
	return numerator.Quo(numerator, denominator)
}

// MinOut applies the slippage tolerance to an expected output. The
// percentage is handled in basis points so the big.Int arithmetic stays
// exact: 5% on 1000 gives 950.
func MinOut(expected *big.Int, slippagePct float64) *big.Int {
	if expected == nil || expected.Sign() <= 0 {
		return new(big.Int)
	}
	bps := int64(slippagePct * 100)
	if bps < 0 {
		bps = 0
	}
	if bps > 10_000 {
		bps = 10_000
	}
	out := new(big.Int).Mul(expected, big.NewInt(10_000-bps))
	return out.Quo(out, bpsDenominator)
}

// PriceImpact returns the percentage the execution price deviates from
// the spot price for a given trade size.
func PriceImpact(amountIn, reserveIn, reserveOut *big.Int) float64 {
	out := AmountOut(amountIn, reserveIn, reserveOut)
	if out.Sign() == 0 {
		return 0
	}

	// executed = out/in, spot = reserveOut/reserveIn
	executed := new(big.Float).Quo(new(big.Float).SetInt(out), new(big.Float).SetInt(amountIn))
	spot := new(big.Float).Quo(new(big.Float).SetInt(reserveOut), new(big.Float).SetInt(reserveIn))
	if spot.Sign() == 0 {
		return 0
	}

	ratio := new(big.Float).Quo(executed, spot)
	r, _ := ratio.Float64()
	return (1 - r) * 100
}
