package safety

// rules.go — Data-driven honeypot heuristics.
//
// A RuleSet is a versioned bundle of bytecode heuristics: known
// suspicious function selectors, regex patterns matched against the
// strings embedded in the bytecode (revert reasons mostly), and size
// thresholds. Keeping the rules as data means new scam patterns ship as
// a RuleSet revision, not a code change.

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// SelectorRule flags a 4-byte function selector found in bytecode.
// Hard rules are damning on their own; soft rules only count as
// signals.
type SelectorRule struct {
	Selector string // 4-byte selector, hex without 0x
	Label    string
	Hard     bool
}

// PatternRule matches against the printable content of the bytecode.
type PatternRule struct {
	Expr  *regexp.Regexp
	Label string
	Hard  bool
}

// RuleSet bundles all bytecode heuristics under a version tag.
type RuleSet struct {
	Version string

	Selectors []SelectorRule
	Patterns  []PatternRule

	// MaxBytecodeBytes flags unusually large contracts.
	MaxBytecodeBytes int

	// MaxSelectorRepeats flags transfer selectors stamped into the
	// bytecode more often than a normal ERC20 would.
	MaxSelectorRepeats int

	// RepeatSelectors are the selectors subject to the repeat check.
	RepeatSelectors []SelectorRule

	// SoftSignalLimit: this many soft signals together fail the scan.
	SoftSignalLimit int
}

// DefaultRuleSet returns the built-in revision of the heuristics.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Version: "2026-01",
		Selectors: []SelectorRule{
			{Selector: "3b124fe3", Label: "selector:isBlacklisted", Hard: true},
			{Selector: "6b7f4e0a", Label: "selector:botBlacklist", Hard: true},
			{Selector: "c9567bf9", Label: "selector:openTrading", Hard: false},
		},
		Patterns: []PatternRule{
			{Expr: regexp.MustCompile(`(?i)(blacklist|bot|sniper)`), Label: "pattern:blacklist", Hard: true},
			{Expr: regexp.MustCompile(`(?i)(tax|fee).{0,50}(9[0-9]|100)`), Label: "pattern:extreme-tax", Hard: true},
			{Expr: regexp.MustCompile(`(?i)(trading|swap).*?(enabled|started|open)`), Label: "pattern:trading-toggle", Hard: false},
			{Expr: regexp.MustCompile(`(?i)onlyOwner.*?transfer`), Label: "pattern:owner-gated-transfer", Hard: true},
		},
		MaxBytecodeBytes:   50_000,
		MaxSelectorRepeats: 2,
		RepeatSelectors: []SelectorRule{
			{Selector: "a9059cbb", Label: "repeat:transfer"},
			{Selector: "23b872dd", Label: "repeat:transferFrom"},
		},
		SoftSignalLimit: 2,
	}
}

// ScanResult is the outcome of a bytecode scan.
type ScanResult struct {
	Suspicious bool
	Signals    []string
}

// Scan applies the rule set to raw deployed bytecode. Selectors are
// matched against the binary, patterns against the printable runs
// (embedded revert strings and metadata).
func (rs RuleSet) Scan(code []byte) ScanResult {
	var res ScanResult
	hard := 0
	soft := 0

	for _, rule := range rs.Selectors {
		sel, err := hex.DecodeString(rule.Selector)
		if err != nil {
			continue
		}
		if countOccurrences(code, sel) > 0 {
			res.Signals = append(res.Signals, rule.Label)
			if rule.Hard {
				hard++
			} else {
				soft++
			}
		}
	}

	printable := printableRuns(code)
	for _, rule := range rs.Patterns {
		if rule.Expr.MatchString(printable) {
			res.Signals = append(res.Signals, rule.Label)
			if rule.Hard {
				hard++
			} else {
				soft++
			}
		}
	}

	if rs.MaxBytecodeBytes > 0 && len(code) > rs.MaxBytecodeBytes {
		res.Signals = append(res.Signals, fmt.Sprintf("bytecode:oversized:%d", len(code)))
		soft++
	}

	for _, rule := range rs.RepeatSelectors {
		sel, err := hex.DecodeString(rule.Selector)
		if err != nil {
			continue
		}
		if n := countOccurrences(code, sel); n > rs.MaxSelectorRepeats {
			res.Signals = append(res.Signals, fmt.Sprintf("%s:%d", rule.Label, n))
			soft++
		}
	}

	res.Suspicious = hard > 0 || soft >= rs.SoftSignalLimit
	return res
}

// countOccurrences counts non-overlapping occurrences of sel in code.
func countOccurrences(code, sel []byte) int {
	if len(sel) == 0 {
		return 0
	}
	count := 0
	for i := 0; i+len(sel) <= len(code); {
		if string(code[i:i+len(sel)]) == string(sel) {
			count++
			i += len(sel)
			continue
		}
		i++
	}
	return count
}

// printableRuns extracts ASCII runs of 4+ characters from bytecode, the
// way revert strings and contract metadata surface in deployed code.
func printableRuns(code []byte) string {
	var sb strings.Builder
	var run []byte
	flush := func() {
		if len(run) >= 4 {
			sb.Write(run)
			sb.WriteByte(' ')
		}
		run = run[:0]
	}
	for _, b := range code {
		if b >= 0x20 && b < 0x7f {
			run = append(run, b)
			continue
		}
		flush()
	}
	flush()
	return sb.String()
}
