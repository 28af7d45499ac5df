package safety

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/snipebot/internal/chain"
	"github.com/alejandrodnm/snipebot/internal/domain"
)

var (
	evalToken = common.HexToAddress("0x5555555555555555555555555555555555555555")
	evalPair  = common.HexToAddress("0x6666666666666666666666666666666666666666")
	evalBase  = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

// mockChain dispatches eth_call by target address and selector.
// Unregistered calls revert, which is how missing views behave.
type mockChain struct {
	code      map[common.Address][]byte
	codeErr   error
	responses map[string][]byte
	viewCalls int
}

func newMockChain() *mockChain {
	return &mockChain{
		code:      make(map[common.Address][]byte),
		responses: make(map[string][]byte),
	}
}

func (m *mockChain) CodeAt(_ context.Context, addr common.Address) ([]byte, error) {
	if m.codeErr != nil {
		return nil, m.codeErr
	}
	return m.code[addr], nil
}

func (m *mockChain) CallContract(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	m.viewCalls++
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("execution reverted")
	}
	key := msg.To.Hex() + hex.EncodeToString(msg.Data[:4])
	if out, ok := m.responses[key]; ok {
		return out, nil
	}
	return nil, errors.New("execution reverted")
}

func (m *mockChain) respond(addr common.Address, signature string, out []byte) {
	sel := crypto.Keccak256([]byte(signature))[:4]
	m.responses[addr.Hex()+hex.EncodeToString(sel)] = out
}

func packOutputs(t *testing.T, method string, vals ...any) []byte {
	t.Helper()
	out, err := chain.ERC20ABI.Methods[method].Outputs.Pack(vals...)
	require.NoError(t, err)
	return out
}

func healthyToken(t *testing.T) *mockChain {
	t.Helper()
	m := newMockChain()
	m.code[evalToken] = []byte{0x60, 0x80, 0x60, 0x40}

	supply := new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1e18))
	m.respond(evalToken, "name()", packOutputs(t, "name", "Test Token"))
	m.respond(evalToken, "symbol()", packOutputs(t, "symbol", "TKN"))
	m.respond(evalToken, "decimals()", packOutputs(t, "decimals", uint8(18)))
	m.respond(evalToken, "totalSupply()", packOutputs(t, "totalSupply", supply))

	// 5 ETH against a million tokens.
	reserves, err := chain.PairABI.Methods["getReserves"].Outputs.Pack(
		supply, new(big.Int).Mul(big.NewInt(5), big.NewInt(1e18)), uint32(0),
	)
	require.NoError(t, err)
	m.respond(evalPair, "getReserves()", reserves)
	return m
}

func evalCandidate() domain.CandidatePair {
	cand, _ := domain.NewCandidate(evalPair, evalToken, evalBase, evalBase, 100)
	return cand
}

func newEvaluator(m *mockChain) *Evaluator {
	return NewEvaluator(DefaultConfig(), m, DefaultRuleSet(), nil, &domain.Stats{})
}

func TestEvaluateNoCodeShortCircuits(t *testing.T) {
	m := newMockChain()
	e := newEvaluator(m)

	a := e.Evaluate(context.Background(), evalCandidate())

	assert.Equal(t, domain.VerdictUnsafe, a.Verdict)
	assert.Equal(t, domain.ReasonNoCode, a.ReasonCode)
	assert.False(t, a.HasCode)
	assert.Zero(t, m.viewCalls, "no further probes after the code check")
}

func TestEvaluateCodeProbeFailure(t *testing.T) {
	// RPC troubles are not evidence of an EOA: distinct reason, low
	// confidence, still counted as a rejection.
	m := newMockChain()
	m.codeErr = errors.New("connection reset")
	stats := &domain.Stats{}
	e := NewEvaluator(DefaultConfig(), m, DefaultRuleSet(), nil, stats)

	a := e.Evaluate(context.Background(), evalCandidate())

	assert.Equal(t, domain.VerdictUnsafe, a.Verdict)
	assert.Equal(t, domain.ReasonProbeFailed, a.ReasonCode)
	assert.NotEqual(t, domain.ReasonNoCode, a.ReasonCode)
	assert.InDelta(t, minConfidence, a.Confidence, 0.001)
	assert.Equal(t, 1, stats.Snapshot().SafetyRejected)
}

func TestEvaluateHoneypotBytecode(t *testing.T) {
	m := newMockChain()
	blacklistSel, _ := hex.DecodeString("3b124fe3")
	m.code[evalToken] = append([]byte{0x60, 0x80}, blacklistSel...)
	e := newEvaluator(m)

	a := e.Evaluate(context.Background(), evalCandidate())

	assert.Equal(t, domain.ReasonHoneypot, a.ReasonCode)
	assert.True(t, a.IsHoneypot)
	assert.Zero(t, m.viewCalls, "bytecode verdict needs no rpc probes")
}

func TestEvaluateSafeToken(t *testing.T) {
	m := healthyToken(t)
	e := newEvaluator(m)

	a := e.Evaluate(context.Background(), evalCandidate())

	require.Equal(t, domain.VerdictSafe, a.Verdict)
	assert.True(t, a.Safe())
	assert.Equal(t, "TKN", a.Token.Symbol)
	assert.InDelta(t, 5.0, a.LiquidityEth, 0.001)
	// owner() reverting counts as one unknown.
	assert.InDelta(t, 0.7, a.Confidence, 0.001)
	assert.Equal(t, domain.CheckUnknown, a.Restrictions.TradingEnabled)
}

func TestEvaluateLowLiquidity(t *testing.T) {
	m := healthyToken(t)
	reserves, err := chain.PairABI.Methods["getReserves"].Outputs.Pack(
		big.NewInt(1e18), big.NewInt(1e17), uint32(0), // 0.1 ETH
	)
	require.NoError(t, err)
	m.respond(evalPair, "getReserves()", reserves)
	e := newEvaluator(m)

	a := e.Evaluate(context.Background(), evalCandidate())

	assert.Equal(t, domain.VerdictUnsafe, a.Verdict)
	assert.Equal(t, domain.ReasonLowLiquidity, a.ReasonCode)
}

func TestEvaluateTradingDisabled(t *testing.T) {
	m := healthyToken(t)
	m.respond(evalToken, "tradingOpen()", make([]byte, 32)) // false
	e := newEvaluator(m)

	a := e.Evaluate(context.Background(), evalCandidate())

	assert.Equal(t, domain.ReasonRestricted, a.ReasonCode)
	assert.Contains(t, a.Signals, "restriction:trading-disabled")
}

func TestEvaluateExcessiveOwnerHoldings(t *testing.T) {
	m := healthyToken(t)
	owner := common.HexToAddress("0x7777777777777777777777777777777777777777")
	m.respond(evalToken, "owner()", packOutputs(t, "owner", owner))

	// Owner holds 20% of supply.
	supply := new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1e18))
	holding := new(big.Int).Div(supply, big.NewInt(5))
	m.respond(evalToken, "balanceOf(address)", packOutputs(t, "balanceOf", holding))

	e := newEvaluator(m)
	a := e.Evaluate(context.Background(), evalCandidate())

	assert.Equal(t, domain.ReasonDevHoldings, a.ReasonCode)
}

func TestEvaluateImplausibleMetadata(t *testing.T) {
	m := healthyToken(t)
	m.respond(evalToken, "symbol()", packOutputs(t, "symbol", "WAYTOOLONGSYMBOL"))
	e := newEvaluator(m)

	a := e.Evaluate(context.Background(), evalCandidate())

	assert.Equal(t, domain.VerdictUnsafe, a.Verdict)
	assert.Contains(t, a.Signals, "probe:symbol-too-long")
}
