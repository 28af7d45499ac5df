package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairCreatedTopicMatchesABI(t *testing.T) {
	ev, ok := FactoryABI.Events["PairCreated"]
	require.True(t, ok)
	assert.Equal(t, ev.ID, PairCreatedTopic)
	assert.Equal(t,
		"0x0d3648bd0f6ba80134a33ba9275ac585d9d315f0ad8355cddefde31afa28d0e9",
		PairCreatedTopic.Hex())
}

func TestRouterSwapMethodsExist(t *testing.T) {
	for _, name := range []string{
		"swapExactETHForTokensSupportingFeeOnTransferTokens",
		"swapExactTokensForETHSupportingFeeOnTransferTokens",
		"getAmountsOut",
	} {
		_, ok := RouterABI.Methods[name]
		assert.True(t, ok, "router ABI missing %s", name)
	}
}

func TestERC20Selectors(t *testing.T) {
	// Selectores canónicos, usados también para el escaneo de bytecode.
	cases := map[string][]byte{
		"approve":   {0x09, 0x5e, 0xa7, 0xb3},
		"balanceOf": {0x70, 0xa0, 0x82, 0x31},
		"decimals":  {0x31, 0x3c, 0xe5, 0x67},
	}
	for name, want := range cases {
		m, ok := ERC20ABI.Methods[name]
		require.True(t, ok, name)
		assert.Equal(t, want, m.ID, name)
	}
}
