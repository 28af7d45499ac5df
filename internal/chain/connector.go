package chain

// connector.go — Managed JSON-RPC connection with failover.
//
// The Connector owns the ethclient, verifies the chain ID on every
// (re)connect, rate-limits and circuit-breaks all outgoing calls and
// runs a background health loop that reconnects and fails over to
// backup endpoints when the active one degrades.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alejandrodnm/snipebot/internal/reliability"
)

var (
	// ErrChainIDMismatch means the endpoint serves a different network
	// than configured. Not retryable; a trade signed for the wrong chain
	// would be invalid or worse.
	ErrChainIDMismatch = errors.New("chain: endpoint chain id mismatch")

	// ErrAllEndpointsDown is returned when failover exhausts every
	// configured endpoint.
	ErrAllEndpointsDown = errors.New("chain: all rpc endpoints down")
)

const (
	healthFailureLimit   = 3
	reconnectMaxAttempts = 5
	callTimeout          = 15 * time.Second
)

// ConnectorConfig holds the connection parameters.
type ConnectorConfig struct {
	Endpoints      []string // primary first, then backups
	ChainID        int64
	MaxCalls       int           // rate limit: calls per window
	Window         time.Duration // rate limit window
	BreakerFails   int
	BreakerTimeout time.Duration
	Retry          reliability.RetryPolicy
}

// Connector is safe for concurrent use. All RPC traffic funnels through
// do(), which applies the rate limiter and the circuit breaker.
type Connector struct {
	cfg     ConnectorConfig
	chainID *big.Int
	limiter *reliability.RateLimiter
	breaker *reliability.CircuitBreaker

	mu     sync.RWMutex
	client *ethclient.Client
	active int // index into cfg.Endpoints
}

// NewConnector validates the config but does not dial; call Connect.
func NewConnector(cfg ConnectorConfig) (*Connector, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("chain.NewConnector: no rpc endpoints configured")
	}
	if cfg.ChainID <= 0 {
		return nil, fmt.Errorf("chain.NewConnector: invalid chain id %d", cfg.ChainID)
	}
	return &Connector{
		cfg:     cfg,
		chainID: big.NewInt(cfg.ChainID),
		limiter: reliability.NewRateLimiter(cfg.MaxCalls, cfg.Window),
		breaker: reliability.NewCircuitBreaker(cfg.BreakerFails, cfg.BreakerTimeout),
	}, nil
}

// ChainID returns the configured chain id.
func (c *Connector) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// ActiveEndpoint returns the URL currently in use.
func (c *Connector) ActiveEndpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Endpoints[c.active]
}

// Connect dials the active endpoint under the retry policy and verifies
// its chain id. A mismatch aborts immediately; it will never heal.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.RLock()
	url := c.cfg.Endpoints[c.active]
	c.mu.RUnlock()

	var client *ethclient.Client
	err := c.cfg.Retry.Do(ctx, func() error {
		var dialErr error
		client, dialErr = c.dial(ctx, url)
		if errors.Is(dialErr, ErrChainIDMismatch) {
			return dialErr // surfaced below, no point retrying
		}
		return dialErr
	})
	if err != nil {
		return fmt.Errorf("chain.Connect: %s: %w", url, err)
	}

	c.mu.Lock()
	if c.client != nil {
		c.client.Close()
	}
	c.client = client
	c.mu.Unlock()

	slog.Info("chain: connected", "endpoint", url, "chain_id", c.chainID)
	return nil
}

func (c *Connector) dial(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}

	got, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("query chain id: %w", err)
	}
	if got.Cmp(c.chainID) != 0 {
		client.Close()
		return nil, fmt.Errorf("%w: endpoint reports %s, configured %s", ErrChainIDMismatch, got, c.chainID)
	}
	return client, nil
}

// Failover advances through the backup endpoints until one connects.
// Chain-id mismatches skip the endpoint instead of aborting: one bad
// backup should not take the bot down.
func (c *Connector) Failover(ctx context.Context) error {
	c.mu.RLock()
	start := c.active
	c.mu.RUnlock()

	for i := 1; i <= len(c.cfg.Endpoints); i++ {
		next := (start + i) % len(c.cfg.Endpoints)
		url := c.cfg.Endpoints[next]
		slog.Warn("chain: failing over", "endpoint", url)

		client, err := c.dial(ctx, url)
		if err != nil {
			slog.Error("chain: failover endpoint unusable", "endpoint", url, "err", err)
			continue
		}

		c.mu.Lock()
		if c.client != nil {
			c.client.Close()
		}
		c.client = client
		c.active = next
		c.mu.Unlock()

		slog.Info("chain: failover complete", "endpoint", url)
		return nil
	}
	return ErrAllEndpointsDown
}

// RunHealthLoop checks the connection every interval until ctx is
// cancelled. After healthFailureLimit consecutive failures it tries to
// reconnect with backoff, escalating to Failover when the active
// endpoint stays dead.
func (c *Connector) RunHealthLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.healthCheck(ctx); err != nil {
				failures++
				slog.Warn("chain: health check failed", "failures", failures, "err", err)
				if failures >= healthFailureLimit {
					c.recover(ctx)
					failures = 0
				}
				continue
			}
			failures = 0
		}
	}
}

func (c *Connector) healthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := c.BlockNumber(checkCtx)
	return err
}

// recover reconnects to the active endpoint, then fails over if the
// reconnect attempts run out. Backoff grows 10s per attempt, capped at
// one minute.
func (c *Connector) recover(ctx context.Context) {
	for attempt := 1; attempt <= reconnectMaxAttempts; attempt++ {
		if err := c.Connect(ctx); err == nil {
			slog.Info("chain: reconnected", "attempt", attempt)
			return
		} else if errors.Is(err, ErrChainIDMismatch) {
			break
		}

		backoff := time.Duration(10*attempt) * time.Second
		if backoff > time.Minute {
			backoff = time.Minute
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}

	if err := c.Failover(ctx); err != nil {
		slog.Error("chain: recovery failed", "err", err)
	}
}

// do runs an RPC call through the rate limiter and circuit breaker.
func (c *Connector) do(ctx context.Context, fn func(ctx context.Context, cl *ethclient.Client) error) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return err
	}

	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return fmt.Errorf("chain: not connected")
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	return c.breaker.Do(func() error {
		return fn(callCtx, client)
	})
}

// BlockNumber returns the latest block height.
func (c *Connector) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.do(ctx, func(ctx context.Context, cl *ethclient.Client) error {
		var callErr error
		n, callErr = cl.BlockNumber(ctx)
		return callErr
	})
	return n, err
}

// CodeAt returns the deployed bytecode at addr, empty for EOAs.
func (c *Connector) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	var code []byte
	err := c.do(ctx, func(ctx context.Context, cl *ethclient.Client) error {
		var callErr error
		code, callErr = cl.CodeAt(ctx, addr, nil)
		return callErr
	})
	return code, err
}

// CallContract executes a read-only contract call at the latest block.
func (c *Connector) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	var out []byte
	err := c.do(ctx, func(ctx context.Context, cl *ethclient.Client) error {
		var callErr error
		out, callErr = cl.CallContract(ctx, msg, nil)
		return callErr
	})
	return out, err
}

// FilterLogs runs a log filter query.
func (c *Connector) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.do(ctx, func(ctx context.Context, cl *ethclient.Client) error {
		var callErr error
		logs, callErr = cl.FilterLogs(ctx, q)
		return callErr
	})
	return logs, err
}

// BalanceAt returns the wei balance of addr at the latest block.
func (c *Connector) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	var bal *big.Int
	err := c.do(ctx, func(ctx context.Context, cl *ethclient.Client) error {
		var callErr error
		bal, callErr = cl.BalanceAt(ctx, addr, nil)
		return callErr
	})
	return bal, err
}

// PendingNonceAt returns the next nonce including pending transactions.
func (c *Connector) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	var nonce uint64
	err := c.do(ctx, func(ctx context.Context, cl *ethclient.Client) error {
		var callErr error
		nonce, callErr = cl.PendingNonceAt(ctx, addr)
		return callErr
	})
	return nonce, err
}

// EstimateGas estimates gas for msg.
func (c *Connector) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := c.do(ctx, func(ctx context.Context, cl *ethclient.Client) error {
		var callErr error
		gas, callErr = cl.EstimateGas(ctx, msg)
		return callErr
	})
	return gas, err
}

// FeeHistory queries recent base fees and priority fee percentiles.
func (c *Connector) FeeHistory(ctx context.Context, blocks uint64, percentiles []float64) (*ethereum.FeeHistory, error) {
	var hist *ethereum.FeeHistory
	err := c.do(ctx, func(ctx context.Context, cl *ethclient.Client) error {
		var callErr error
		hist, callErr = cl.FeeHistory(ctx, blocks, nil, percentiles)
		return callErr
	})
	return hist, err
}

// HeaderByNumber returns the latest header when number is nil.
func (c *Connector) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var h *types.Header
	err := c.do(ctx, func(ctx context.Context, cl *ethclient.Client) error {
		var callErr error
		h, callErr = cl.HeaderByNumber(ctx, number)
		return callErr
	})
	return h, err
}

// SendTransaction broadcasts a signed transaction.
func (c *Connector) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.do(ctx, func(ctx context.Context, cl *ethclient.Client) error {
		return cl.SendTransaction(ctx, tx)
	})
}

// TransactionReceipt returns the receipt, or an error while unmined.
func (c *Connector) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var r *types.Receipt
	err := c.do(ctx, func(ctx context.Context, cl *ethclient.Client) error {
		var callErr error
		r, callErr = cl.TransactionReceipt(ctx, hash)
		return callErr
	})
	return r, err
}

// Close releases the underlying client.
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}
