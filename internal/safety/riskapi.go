package safety

// riskapi.go — External token-risk API client.
//
// Queries a GoPlus-style token security endpoint. The API is advisory:
// every failure degrades to an Unknown report instead of blocking the
// evaluation, and the caller decides how much weight Unknown carries.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/snipebot/internal/domain"
	"github.com/alejandrodnm/snipebot/internal/reliability"
)

const riskAPITimeout = 10 * time.Second

// RiskReport is the parsed verdict from the external API.
type RiskReport struct {
	Checked          domain.CheckResult
	IsHoneypot       bool
	CannotSellAll    bool
	TransferPausable bool
	IsBlacklisted    bool
	BuyTax           float64 // fraction, 0.05 = 5%
	SellTax          float64
}

// RiskClient talks to the token security API.
type RiskClient struct {
	baseURL    string
	chainID    int64
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *reliability.CircuitBreaker
	retry      reliability.RetryPolicy
}

// NewRiskClient creates a client for the given API base URL.
func NewRiskClient(baseURL string, chainID int64) *RiskClient {
	return &RiskClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		chainID:    chainID,
		httpClient: &http.Client{Timeout: riskAPITimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 2),
		breaker:    reliability.NewCircuitBreaker(5, 30*time.Second),
		retry: reliability.RetryPolicy{
			MaxAttempts:     2,
			BaseDelay:       500 * time.Millisecond,
			MaxDelay:        2 * time.Second,
			ExponentialBase: 2.0,
			Jitter:          true,
		},
	}
}

type riskAPIResponse struct {
	Result map[string]struct {
		IsHoneypot       string `json:"is_honeypot"`
		CannotSellAll    string `json:"cannot_sell_all"`
		TransferPausable string `json:"transfer_pausable"`
		IsBlacklisted    string `json:"is_blacklisted"`
		BuyTax           string `json:"buy_tax"`
		SellTax          string `json:"sell_tax"`
	} `json:"result"`
}

// Check queries the API for token. Never returns an error to the
// caller: on any failure the report comes back with Checked=Unknown.
func (rc *RiskClient) Check(ctx context.Context, token common.Address) RiskReport {
	var report RiskReport

	err := rc.retry.Do(ctx, func() error {
		return rc.breaker.Do(func() error {
			var fetchErr error
			report, fetchErr = rc.fetch(ctx, token)
			return fetchErr
		})
	})
	if err != nil {
		slog.Warn("risk api unavailable, degrading to unknown",
			"token", token.Hex(), "err", err)
		return RiskReport{Checked: domain.CheckUnknown}
	}
	return report
}

func (rc *RiskClient) fetch(ctx context.Context, token common.Address) (RiskReport, error) {
	if err := rc.limiter.Wait(ctx); err != nil {
		return RiskReport{}, err
	}

	url := fmt.Sprintf("%s/api/v1/token_security/%d?contract_addresses=%s",
		rc.baseURL, rc.chainID, token.Hex())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RiskReport{}, fmt.Errorf("safety.riskapi: build request: %w", err)
	}

	resp, err := rc.httpClient.Do(req)
	if err != nil {
		return RiskReport{}, fmt.Errorf("safety.riskapi: request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return RiskReport{}, fmt.Errorf("safety.riskapi: status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed riskAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return RiskReport{}, fmt.Errorf("safety.riskapi: decode: %w", err)
	}

	// Keys come back lowercased.
	entry, ok := parsed.Result[strings.ToLower(token.Hex())]
	if !ok {
		return RiskReport{}, fmt.Errorf("safety.riskapi: token %s not in response", token.Hex())
	}

	return RiskReport{
		Checked:          domain.CheckPass,
		IsHoneypot:       entry.IsHoneypot == "1",
		CannotSellAll:    entry.CannotSellAll == "1",
		TransferPausable: entry.TransferPausable == "1",
		IsBlacklisted:    entry.IsBlacklisted == "1",
		BuyTax:           parseTax(entry.BuyTax),
		SellTax:          parseTax(entry.SellTax),
	}, nil
}

// Flagged reports whether the API verdict alone condemns the token.
func (r RiskReport) Flagged(maxTax float64) bool {
	if r.Checked != domain.CheckPass {
		return false
	}
	if r.IsHoneypot || r.CannotSellAll || r.TransferPausable || r.IsBlacklisted {
		return true
	}
	return r.BuyTax > maxTax || r.SellTax > maxTax
}

func parseTax(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
