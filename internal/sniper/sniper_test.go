package sniper

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/snipebot/internal/domain"
	"github.com/alejandrodnm/snipebot/internal/ports"
)

type mockEval struct {
	mu          sync.Mutex
	assessments map[common.Address]domain.SafetyAssessment
	calls       int
}

func (m *mockEval) Evaluate(_ context.Context, cand domain.CandidatePair) domain.SafetyAssessment {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if a, ok := m.assessments[cand.TargetToken]; ok {
		return a
	}
	return domain.SafetyAssessment{Verdict: domain.VerdictUnsafe, ReasonCode: domain.ReasonNoCode}
}

type mockBuyer struct {
	mu     sync.Mutex
	result domain.TradeResult
	err    error
	bought []*big.Int
}

func (m *mockBuyer) Buy(_ context.Context, _ common.Address, amountWei *big.Int) (domain.TradeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bought = append(m.bought, new(big.Int).Set(amountWei))
	return m.result, m.err
}

func (m *mockBuyer) buys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bought)
}

type mockBook struct {
	mu      sync.Mutex
	full    bool
	opened  []string
	openErr error
}

func (m *mockBook) CanOpen(common.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.full
}

func (m *mockBook) Open(_ context.Context, _ domain.CandidatePair, symbol string, _ domain.TradeResult, _ float64) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, symbol)
	return &domain.Position{Symbol: symbol}, m.openErr
}

func (m *mockBook) Live() []domain.Position { return nil }
func (m *mockBook) Count() int              { return 0 }
func (m *mockBook) Wait()                   {}

func (m *mockBook) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.opened)
}

type mockNotifier struct {
	mu     sync.Mutex
	levels []string
}

func (m *mockNotifier) Send(_ context.Context, _ string, level string, _ map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels = append(m.levels, level)
}

func (m *mockNotifier) count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.levels {
		if l == level {
			n++
		}
	}
	return n
}

func safeAssessment() domain.SafetyAssessment {
	return domain.SafetyAssessment{
		Verdict:    domain.VerdictSafe,
		Confidence: 0.8,
		Token:      domain.TokenInfo{Symbol: "PEPE"},
	}
}

func candidate(token common.Address) domain.CandidatePair {
	return domain.CandidatePair{
		PairAddress: common.HexToAddress("0x1000000000000000000000000000000000000001"),
		TargetToken: token,
	}
}

// runPipeline feeds the candidates through a Sniper and returns once Run exits.
func runPipeline(t *testing.T, s *Sniper, feed chan domain.CandidatePair, cands ...domain.CandidatePair) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for _, c := range cands {
		feed <- c
	}
	close(feed)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("pipeline did not drain in time")
	}
}

func TestSafeCandidateIsBoughtAndOpened(t *testing.T) {
	token := common.HexToAddress("0x2000000000000000000000000000000000000002")
	eval := &mockEval{assessments: map[common.Address]domain.SafetyAssessment{token: safeAssessment()}}
	buyer := &mockBuyer{result: domain.TradeResult{
		TxHash:    common.HexToHash("0xabc"),
		AmountOut: big.NewInt(1_000_000),
		Confirmed: true,
	}}
	book := &mockBook{}
	feed := make(chan domain.CandidatePair, 1)

	s := New(Config{BuyAmountEth: 0.05}, feed, eval, buyer, book, nil, nil, nil, &domain.Stats{})
	runPipeline(t, s, feed, candidate(token))

	require.Equal(t, 1, buyer.buys())
	assert.Equal(t, []string{"PEPE"}, book.opened)
	// 0.05 ETH in wei
	assert.Equal(t, "50000000000000000", buyer.bought[0].String())
}

func TestUnsafeCandidateIsSkipped(t *testing.T) {
	eval := &mockEval{} // every token defaults to Unsafe
	buyer := &mockBuyer{}
	book := &mockBook{}
	feed := make(chan domain.CandidatePair, 1)

	s := New(Config{BuyAmountEth: 0.05}, feed, eval, buyer, book, nil, nil, nil, &domain.Stats{})
	runPipeline(t, s, feed, candidate(common.HexToAddress("0x03")))

	assert.Equal(t, 0, buyer.buys())
	assert.Equal(t, 0, book.openCount())
}

func TestFullBookSkipsBuy(t *testing.T) {
	token := common.HexToAddress("0x04")
	eval := &mockEval{assessments: map[common.Address]domain.SafetyAssessment{token: safeAssessment()}}
	buyer := &mockBuyer{}
	book := &mockBook{full: true}
	feed := make(chan domain.CandidatePair, 1)

	s := New(Config{BuyAmountEth: 0.05}, feed, eval, buyer, book, nil, nil, nil, &domain.Stats{})
	runPipeline(t, s, feed, candidate(token))

	assert.Equal(t, 0, buyer.buys())
}

func TestBuyFailureNotifiesAndContinues(t *testing.T) {
	token := common.HexToAddress("0x05")
	eval := &mockEval{assessments: map[common.Address]domain.SafetyAssessment{token: safeAssessment()}}
	buyer := &mockBuyer{err: errors.New("reverted")}
	book := &mockBook{}
	notifier := &mockNotifier{}
	feed := make(chan domain.CandidatePair, 1)

	s := New(Config{BuyAmountEth: 0.05}, feed, eval, buyer, book, nil, notifier, nil, &domain.Stats{})
	runPipeline(t, s, feed, candidate(token))

	assert.Equal(t, 0, book.openCount())
	// Run also announces start/stop at INFO; only the failure is an ERROR.
	assert.Equal(t, 1, notifier.count(ports.LevelError))
	assert.Zero(t, notifier.count(ports.LevelCritical))
}

func TestConcurrencyBound(t *testing.T) {
	// With MaxConcurrent=2 all 10 candidates still drain.
	eval := &mockEval{}
	buyer := &mockBuyer{}
	book := &mockBook{}
	feed := make(chan domain.CandidatePair, 10)

	var cands []domain.CandidatePair
	for i := 1; i <= 10; i++ {
		cands = append(cands, candidate(common.BigToAddress(big.NewInt(int64(i)))))
	}

	s := New(Config{BuyAmountEth: 0.01, MaxConcurrent: 2}, feed, eval, buyer, book, nil, nil, nil, &domain.Stats{})
	runPipeline(t, s, feed, cands...)

	eval.mu.Lock()
	defer eval.mu.Unlock()
	assert.Equal(t, 10, eval.calls)
}

func TestCancelStopsRun(t *testing.T) {
	feed := make(chan domain.CandidatePair)
	s := New(Config{BuyAmountEth: 0.01}, feed, &mockEval{}, &mockBuyer{}, &mockBook{}, nil, nil, nil, &domain.Stats{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
