package safety

// probe.go — On-chain token probes.
//
// Read-only eth_call probes against the token and its pair: ERC20
// metadata plausibility, pool liquidity, transfer restrictions and
// owner holdings. Probe failures are expected (many tokens omit these
// views) and map to Unknown rather than errors.

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alejandrodnm/snipebot/internal/chain"
	"github.com/alejandrodnm/snipebot/internal/domain"
)

// ChainReader is the read-only slice of the chain connector the
// evaluator needs. Satisfied by *chain.Connector.
type ChainReader interface {
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

var weiPerEth = new(big.Float).SetFloat64(1e18)

// callView runs a read-only ABI call and unpacks the outputs.
func callView(ctx context.Context, conn ChainReader, to common.Address, contractABI abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := conn.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data})
	if err != nil {
		return nil, err
	}
	vals, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return vals, nil
}

// rawUint256Call probes a zero-argument view by selector and decodes a
// single uint256. Used for the restriction views that have no standard
// ABI. Returns ok=false when the call reverts or returns nothing.
func rawUint256Call(ctx context.Context, conn ChainReader, to common.Address, signature string) (*big.Int, bool) {
	sel := crypto.Keccak256([]byte(signature))[:4]
	out, err := conn.CallContract(ctx, ethereum.CallMsg{To: &to, Data: sel})
	if err != nil || len(out) < 32 {
		return nil, false
	}
	return new(big.Int).SetBytes(out[:32]), true
}

// probeToken reads ERC20 metadata. Returns how many of the four probes
// answered; the caller judges plausibility.
func probeToken(ctx context.Context, conn ChainReader, token common.Address) (domain.TokenInfo, int) {
	var info domain.TokenInfo
	answered := 0

	if vals, err := callView(ctx, conn, token, chain.ERC20ABI, "name"); err == nil && len(vals) > 0 {
		if s, ok := vals[0].(string); ok {
			info.Name = s
			answered++
		}
	}
	if vals, err := callView(ctx, conn, token, chain.ERC20ABI, "symbol"); err == nil && len(vals) > 0 {
		if s, ok := vals[0].(string); ok {
			info.Symbol = s
			answered++
		}
	}
	if vals, err := callView(ctx, conn, token, chain.ERC20ABI, "decimals"); err == nil && len(vals) > 0 {
		if d, ok := vals[0].(uint8); ok {
			info.Decimals = d
			answered++
		}
	}
	if vals, err := callView(ctx, conn, token, chain.ERC20ABI, "totalSupply"); err == nil && len(vals) > 0 {
		if ts, ok := vals[0].(*big.Int); ok {
			info.TotalSupply = ts
			answered++
		}
	}
	return info, answered
}

// plausibleToken applies the metadata sanity checks.
func plausibleToken(info domain.TokenInfo, answered int) (bool, string) {
	if answered < 2 {
		return false, fmt.Sprintf("probe:only-%d-of-4-answered", answered)
	}
	if len(info.Symbol) > 10 {
		return false, "probe:symbol-too-long"
	}
	if info.Decimals > 18 {
		return false, "probe:implausible-decimals"
	}
	if info.TotalSupply != nil && info.TotalSupply.Sign() == 0 {
		return false, "probe:zero-supply"
	}
	return true, ""
}

// pairReserves reads getReserves and splits them into base-asset and
// token sides using the pair ordering.
func pairReserves(ctx context.Context, conn ChainReader, cand domain.CandidatePair) (base, token *big.Int, err error) {
	vals, err := callView(ctx, conn, cand.PairAddress, chain.PairABI, "getReserves")
	if err != nil {
		return nil, nil, fmt.Errorf("getReserves: %w", err)
	}
	if len(vals) < 2 {
		return nil, nil, fmt.Errorf("getReserves: short response")
	}
	r0, ok0 := vals[0].(*big.Int)
	r1, ok1 := vals[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, nil, fmt.Errorf("getReserves: unexpected types")
	}
	if cand.IsTargetToken0 {
		return r1, r0, nil
	}
	return r0, r1, nil
}

// weiToEth converts a wei amount to a float ETH value for reporting.
func weiToEth(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEth).Float64()
	return f
}

// tokenAmountToEth converts a token amount to its ETH value at the pool
// price. Returns 0 when the pool has no token reserve.
func tokenAmountToEth(amount, baseReserve, tokenReserve *big.Int) float64 {
	if amount == nil || tokenReserve == nil || tokenReserve.Sign() == 0 {
		return 0
	}
	value := new(big.Int).Mul(amount, baseReserve)
	value.Quo(value, tokenReserve)
	return weiToEth(value)
}

// ownerHoldings returns the owner's share of total supply in percent.
// ok=false when the token has no owner() view or it reverts, which is
// what a renounced or ownerless token looks like.
func ownerHoldings(ctx context.Context, conn ChainReader, token common.Address, totalSupply *big.Int) (float64, bool) {
	if totalSupply == nil || totalSupply.Sign() == 0 {
		return 0, false
	}

	vals, err := callView(ctx, conn, token, chain.ERC20ABI, "owner")
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	owner, ok := vals[0].(common.Address)
	if !ok || owner == (common.Address{}) {
		return 0, false
	}

	vals, err = callView(ctx, conn, token, chain.ERC20ABI, "balanceOf", owner)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	balance, ok := vals[0].(*big.Int)
	if !ok {
		return 0, false
	}

	pct := new(big.Float).Quo(new(big.Float).SetInt(balance), new(big.Float).SetInt(totalSupply))
	pctF, _ := pct.Float64()
	return pctF * 100, true
}

// restriction view signatures, probed in order until one answers.
var (
	maxTxSignatures     = []string{"maxTxAmount()", "_maxTxAmount()", "maxTransactionAmount()"}
	maxWalletSignatures = []string{"maxWalletAmount()", "_maxWalletSize()", "maxWallet()"}
	tradingSignatures   = []string{"tradingOpen()", "tradingEnabled()", "tradingActive()"}
)

// probeRestrictions checks transfer limits and the trading toggle.
func probeRestrictions(ctx context.Context, conn ChainReader, token common.Address) domain.Restrictions {
	res := domain.Restrictions{TradingEnabled: domain.CheckUnknown}

	for _, sig := range maxTxSignatures {
		if v, ok := rawUint256Call(ctx, conn, token, sig); ok {
			res.MaxTx = v
			break
		}
	}
	for _, sig := range maxWalletSignatures {
		if v, ok := rawUint256Call(ctx, conn, token, sig); ok {
			res.MaxWallet = v
			break
		}
	}
	for _, sig := range tradingSignatures {
		if v, ok := rawUint256Call(ctx, conn, token, sig); ok {
			if v.Sign() != 0 {
				res.TradingEnabled = domain.CheckPass
			} else {
				res.TradingEnabled = domain.CheckFail
			}
			break
		}
	}
	return res
}
