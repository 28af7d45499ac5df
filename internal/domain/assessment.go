package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CheckResult is the outcome of a single best-effort safety probe.
// Unknown means the probe itself failed (transport error, missing
// function) — it is NOT the same as Fail, and never blocks on its own.
type CheckResult int

const (
	CheckUnknown CheckResult = iota
	CheckPass
	CheckFail
)

// String implements fmt.Stringer for log output.
func (c CheckResult) String() string {
	switch c {
	case CheckPass:
		return "pass"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Verdict is the final safety decision for a candidate token.
type Verdict string

const (
	VerdictSafe   Verdict = "safe"
	VerdictUnsafe Verdict = "unsafe"
)

// Reason codes attached to an Unsafe verdict. Kept as short stable
// strings so they survive into stats and trade records.
const (
	ReasonNoCode       = "NoCode"
	ReasonProbeFailed  = "ProbeFailed"
	ReasonHoneypot     = "Honeypot detected"
	ReasonLowLiquidity = "InsufficientLiquidity"
	ReasonRestricted   = "TradingRestricted"
	ReasonDevHoldings  = "ExcessiveDevHoldings"
)

// TokenInfo holds the ERC20 introspection results for a candidate.
type TokenInfo struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

// Restrictions captures trading limits probed from the token contract.
// Nil big.Ints mean the contract does not expose the function.
type Restrictions struct {
	MaxTx            *big.Int
	MaxWallet        *big.Int
	TradingEnabled   CheckResult
	BlacklistPresent bool
}

// SafetyAssessment is the read-only result of evaluating a candidate.
// Produced exactly once per pair; the evaluator never writes on-chain.
type SafetyAssessment struct {
	TokenAddress common.Address
	HasCode      bool
	IsHoneypot   bool
	LiquidityEth float64
	Token        TokenInfo
	Restrictions Restrictions

	Verdict    Verdict
	ReasonCode string
	// Confidence in the verdict, 0–1. A clean pass gets the baseline 0.8.
	Confidence float64

	// Signals lists which individual honeypot signals fired, for logging.
	Signals []string
}

// Safe reports whether the verdict allows a buy.
func (a SafetyAssessment) Safe() bool {
	return a.Verdict == VerdictSafe
}
