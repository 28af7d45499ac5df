package safety

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestScanCleanBytecode(t *testing.T) {
	rs := DefaultRuleSet()

	// Normal ERC20: transfer and transferFrom once each, nothing else.
	code := append(mustHex(t, "a9059cbb"), mustHex(t, "23b872dd")...)
	code = append(code, bytes.Repeat([]byte{0x60, 0x80}, 100)...)

	res := rs.Scan(code)
	assert.False(t, res.Suspicious)
	assert.Empty(t, res.Signals)
}

func TestScanBlacklistSelectorIsHard(t *testing.T) {
	rs := DefaultRuleSet()

	code := append([]byte{0x60, 0x80}, mustHex(t, "3b124fe3")...)
	res := rs.Scan(code)

	assert.True(t, res.Suspicious)
	assert.Contains(t, res.Signals, "selector:isBlacklisted")
}

func TestScanEmbeddedRevertString(t *testing.T) {
	rs := DefaultRuleSet()

	code := append([]byte{0x60, 0x80, 0x00}, []byte("Address is blacklisted")...)
	res := rs.Scan(code)

	assert.True(t, res.Suspicious)
	assert.Contains(t, res.Signals, "pattern:blacklist")
}

func TestScanSingleSoftSignalPasses(t *testing.T) {
	rs := DefaultRuleSet()

	// openTrading selector alone is soft.
	code := append([]byte{0x60, 0x80}, mustHex(t, "c9567bf9")...)
	res := rs.Scan(code)

	assert.False(t, res.Suspicious)
	assert.Contains(t, res.Signals, "selector:openTrading")
}

func TestScanSoftSignalsAccumulate(t *testing.T) {
	rs := DefaultRuleSet()

	// openTrading selector plus transfer stamped three times.
	code := mustHex(t, "c9567bf9")
	for i := 0; i < 3; i++ {
		code = append(code, mustHex(t, "a9059cbb")...)
	}
	res := rs.Scan(code)

	assert.True(t, res.Suspicious)
	assert.Len(t, res.Signals, 2)
}

func TestScanOversizedBytecode(t *testing.T) {
	rs := DefaultRuleSet()
	rs.MaxBytecodeBytes = 100

	res := rs.Scan(bytes.Repeat([]byte{0x00}, 200))
	assert.Contains(t, res.Signals, "bytecode:oversized:200")
	assert.False(t, res.Suspicious, "size alone is a single soft signal")
}

func TestPrintableRunsExtractsStrings(t *testing.T) {
	code := append([]byte{0x01, 0x02}, []byte("TradingNotEnabled")...)
	code = append(code, 0x00, 0xff)
	code = append(code, []byte("ok")...) // too short, dropped

	out := printableRuns(code)
	assert.Contains(t, out, "TradingNotEnabled")
	assert.NotContains(t, out, "ok")
}

func TestCountOccurrences(t *testing.T) {
	code := mustHex(t, "a9059cbb00a9059cbba9059cbb")
	assert.Equal(t, 3, countOccurrences(code, mustHex(t, "a9059cbb")))
	assert.Equal(t, 0, countOccurrences(code, mustHex(t, "deadbeef")))
}
