package trade

// engine.go — Swap execution through the DEX router.
//
// Buys are ETH→token through the fee-on-transfer router entrypoint,
// sells the reverse. Every normal trade is simulated with eth_call
// before broadcasting; a swap that reverts in simulation never costs
// gas. Emergency sells skip both the simulation and the slippage floor:
// when the pool is being drained any exit beats none.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alejandrodnm/snipebot/internal/chain"
	"github.com/alejandrodnm/snipebot/internal/domain"
)

var (
	// ErrSimulationFailed means the swap reverted in eth_call. Usually a
	// honeypot that slipped through the static checks.
	ErrSimulationFailed = errors.New("trade: swap simulation reverted")

	// ErrTradeReverted means the broadcast transaction failed on-chain.
	ErrTradeReverted = errors.New("trade: transaction reverted")
)

const (
	fallbackGasLimit = uint64(500_000)
	approveGasLimit  = uint64(60_000)
	deadlineWindow   = 300 * time.Second
	confirmTimeout   = 2 * time.Minute
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ChainClient is the read side of the connector the engine uses.
type ChainClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	FeeHistory(ctx context.Context, blocks uint64, percentiles []float64) (*ethereum.FeeHistory, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Signer submits signed transactions. Satisfied by *chain.Wallet.
type Signer interface {
	Address() common.Address
	Send(ctx context.Context, to common.Address, value *big.Int, data []byte, gas domain.GasStrategy) (common.Hash, error)
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Config holds the execution parameters.
type Config struct {
	Router        common.Address
	BaseAsset     common.Address // WETH
	SlippagePct   float64
	GasMultiplier float64
	DryRun        bool
}

// Engine executes buys and sells.
type Engine struct {
	cfg    Config
	conn   ChainClient
	signer Signer
	pricer *GasPricer
	stats  *domain.Stats
}

// NewEngine wires an execution engine.
func NewEngine(cfg Config, conn ChainClient, signer Signer, stats *domain.Stats) *Engine {
	return &Engine{
		cfg:    cfg,
		conn:   conn,
		signer: signer,
		pricer: NewGasPricer(conn, cfg.GasMultiplier),
		stats:  stats,
	}
}

// Quote returns the router's expected output for amountIn along path.
func (e *Engine) Quote(ctx context.Context, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	data, err := chain.RouterABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("trade.Quote: pack: %w", err)
	}
	out, err := e.conn.CallContract(ctx, ethereum.CallMsg{To: &e.cfg.Router, Data: data})
	if err != nil {
		return nil, fmt.Errorf("trade.Quote: call: %w", err)
	}
	vals, err := chain.RouterABI.Unpack("getAmountsOut", out)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("trade.Quote: unpack: %w", err)
	}
	amounts, ok := vals[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, fmt.Errorf("trade.Quote: unexpected response shape")
	}
	return amounts[len(amounts)-1], nil
}

// Buy swaps amountWei of the base asset for token, protected by the
// configured slippage tolerance.
func (e *Engine) Buy(ctx context.Context, token common.Address, amountWei *big.Int) (domain.TradeResult, error) {
	path := []common.Address{e.cfg.BaseAsset, token}

	expected, err := e.Quote(ctx, amountWei, path)
	if err != nil {
		return domain.TradeResult{}, err
	}
	minOut := MinOut(expected, e.cfg.SlippagePct)
	deadline := big.NewInt(time.Now().Add(deadlineWindow).Unix())

	data, err := chain.RouterABI.Pack("swapExactETHForTokensSupportingFeeOnTransferTokens",
		minOut, path, e.signer.Address(), deadline)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("trade.Buy: pack: %w", err)
	}

	e.stats.Update(func(s *domain.Stats) { s.TradesAttempted++ })

	if _, err := e.conn.CallContract(ctx, ethereum.CallMsg{
		From:  e.signer.Address(),
		To:    &e.cfg.Router,
		Value: amountWei,
		Data:  data,
	}); err != nil {
		e.stats.Update(func(s *domain.Stats) { s.TradesFailed++ })
		return domain.TradeResult{}, fmt.Errorf("%w: %v", ErrSimulationFailed, err)
	}

	if e.cfg.DryRun {
		slog.Info("dry-run: buy skipped",
			"token", token.Hex(),
			"amount_in", amountWei,
			"expected_out", expected,
			"min_out", minOut,
		)
		return domain.TradeResult{AmountOut: expected}, nil
	}

	balanceBefore, err := e.tokenBalance(ctx, token)
	if err != nil {
		balanceBefore = new(big.Int)
	}

	result, err := e.submit(ctx, e.cfg.Router, amountWei, data)
	if err != nil {
		return result, err
	}

	if balanceAfter, berr := e.tokenBalance(ctx, token); berr == nil {
		result.AmountOut = new(big.Int).Sub(balanceAfter, balanceBefore)
	} else {
		result.AmountOut = minOut // conservative, the swap cleared at least this
	}

	slog.Info("buy confirmed",
		"token", token.Hex(),
		"tx", result.TxHash.Hex(),
		"amount_in", amountWei,
		"amount_out", result.AmountOut,
	)
	return result, nil
}

// Sell swaps amountTokens of token back to the base asset with the
// configured slippage tolerance.
func (e *Engine) Sell(ctx context.Context, token common.Address, amountTokens *big.Int) (domain.TradeResult, error) {
	path := []common.Address{token, e.cfg.BaseAsset}

	expected, err := e.Quote(ctx, amountTokens, path)
	if err != nil {
		return domain.TradeResult{}, err
	}
	return e.sell(ctx, token, amountTokens, MinOut(expected, e.cfg.SlippagePct), true)
}

// EmergencySell dumps the whole holding with no slippage floor and no
// simulation.
func (e *Engine) EmergencySell(ctx context.Context, token common.Address, amountTokens *big.Int) (domain.TradeResult, error) {
	slog.Warn("emergency sell", "token", token.Hex(), "amount", amountTokens)
	return e.sell(ctx, token, amountTokens, new(big.Int), false)
}

func (e *Engine) sell(ctx context.Context, token common.Address, amountTokens, minOut *big.Int, simulate bool) (domain.TradeResult, error) {
	if err := e.ensureAllowance(ctx, token, amountTokens); err != nil {
		return domain.TradeResult{}, fmt.Errorf("trade.sell: allowance: %w", err)
	}

	path := []common.Address{token, e.cfg.BaseAsset}
	deadline := big.NewInt(time.Now().Add(deadlineWindow).Unix())

	data, err := chain.RouterABI.Pack("swapExactTokensForETHSupportingFeeOnTransferTokens",
		amountTokens, minOut, path, e.signer.Address(), deadline)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("trade.sell: pack: %w", err)
	}

	e.stats.Update(func(s *domain.Stats) { s.TradesAttempted++ })

	if simulate {
		if _, err := e.conn.CallContract(ctx, ethereum.CallMsg{
			From: e.signer.Address(),
			To:   &e.cfg.Router,
			Data: data,
		}); err != nil {
			e.stats.Update(func(s *domain.Stats) { s.TradesFailed++ })
			return domain.TradeResult{}, fmt.Errorf("%w: %v", ErrSimulationFailed, err)
		}
	}

	if e.cfg.DryRun {
		slog.Info("dry-run: sell skipped", "token", token.Hex(), "amount", amountTokens)
		return domain.TradeResult{AmountOut: minOut}, nil
	}

	result, err := e.submit(ctx, e.cfg.Router, nil, data)
	if err != nil {
		return result, err
	}

	slog.Info("sell confirmed", "token", token.Hex(), "tx", result.TxHash.Hex())
	return result, nil
}

// submit estimates gas, prices the fees, broadcasts and waits for the
// receipt.
func (e *Engine) submit(ctx context.Context, to common.Address, value *big.Int, data []byte) (domain.TradeResult, error) {
	gas, err := e.pricer.Suggest(ctx)
	if err != nil {
		e.stats.Update(func(s *domain.Stats) { s.TradesFailed++ })
		return domain.TradeResult{}, fmt.Errorf("trade.submit: fees: %w", err)
	}

	limit, err := e.conn.EstimateGas(ctx, ethereum.CallMsg{
		From:  e.signer.Address(),
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		limit = fallbackGasLimit
		slog.Warn("gas estimate failed, using fallback", "limit", limit, "err", err)
	}
	gas.GasLimit = limit * 12 / 10

	hash, err := e.signer.Send(ctx, to, value, data, gas)
	if err != nil {
		e.stats.Update(func(s *domain.Stats) { s.TradesFailed++ })
		return domain.TradeResult{}, fmt.Errorf("trade.submit: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()

	receipt, err := e.signer.WaitMined(waitCtx, hash)
	if err != nil {
		// Broadcast but unconfirmed. The caller decides whether to treat
		// it as success; we report it unconfirmed.
		slog.Warn("could not confirm trade, tx may still land", "tx", hash.Hex(), "err", err)
		return domain.TradeResult{TxHash: hash}, nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		e.stats.Update(func(s *domain.Stats) { s.TradesFailed++ })
		return domain.TradeResult{TxHash: hash}, fmt.Errorf("%w: %s", ErrTradeReverted, hash.Hex())
	}

	e.stats.Update(func(s *domain.Stats) { s.TradesSucceeded++ })
	return domain.TradeResult{TxHash: hash, Confirmed: true}, nil
}

// ensureAllowance approves the router for the full balance when the
// current allowance does not cover amount.
func (e *Engine) ensureAllowance(ctx context.Context, token common.Address, amount *big.Int) error {
	data, err := chain.ERC20ABI.Pack("allowance", e.signer.Address(), e.cfg.Router)
	if err != nil {
		return err
	}
	out, err := e.conn.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data})
	if err != nil {
		return fmt.Errorf("query allowance: %w", err)
	}
	vals, err := chain.ERC20ABI.Unpack("allowance", out)
	if err != nil || len(vals) == 0 {
		return fmt.Errorf("unpack allowance: %w", err)
	}
	allowance, ok := vals[0].(*big.Int)
	if !ok {
		return fmt.Errorf("unexpected allowance type")
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}

	if e.cfg.DryRun {
		slog.Info("dry-run: approve skipped", "token", token.Hex())
		return nil
	}

	approveData, err := chain.ERC20ABI.Pack("approve", e.cfg.Router, maxUint256)
	if err != nil {
		return err
	}
	gas, err := e.pricer.Suggest(ctx)
	if err != nil {
		return fmt.Errorf("fees: %w", err)
	}
	gas.GasLimit = approveGasLimit

	hash, err := e.signer.Send(ctx, token, nil, approveData, gas)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()
	receipt, err := e.signer.WaitMined(waitCtx, hash)
	if err != nil {
		return fmt.Errorf("approve receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("approve reverted: %s", hash.Hex())
	}

	slog.Info("router approved", "token", token.Hex(), "tx", hash.Hex())
	return nil
}

func (e *Engine) tokenBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	data, err := chain.ERC20ABI.Pack("balanceOf", e.signer.Address())
	if err != nil {
		return nil, err
	}
	out, err := e.conn.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data})
	if err != nil {
		return nil, err
	}
	vals, err := chain.ERC20ABI.Unpack("balanceOf", out)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	bal, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf type")
	}
	return bal, nil
}
