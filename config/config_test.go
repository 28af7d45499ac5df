package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesNetworkDefaults(t *testing.T) {
	path := writeConfig(t, `
network:
  name: mainnet
  rpc_endpoints: ["https://rpc.example.com"]
trading:
  dry_run: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(1), cfg.Network.ChainID)
	assert.Equal(t, "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f", cfg.Network.Factory)
	assert.Equal(t, "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D", cfg.Network.Router)
	assert.Equal(t, 3, cfg.Watcher.PollSeconds)
	assert.Equal(t, 5.0, cfg.Trading.SlippagePct)
	assert.Equal(t, 30*time.Second, cfg.MonitorInterval())
}

func TestLoadUnknownNetworkNeedsExplicitContracts(t *testing.T) {
	path := writeConfig(t, `
network:
  name: customchain
  rpc_endpoints: ["https://rpc.example.com"]
trading:
  dry_run: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain_id")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestPrivateKeyRequiredOutsideDryRun(t *testing.T) {
	t.Setenv("PRIVATE_KEY", "")
	path := writeConfig(t, `
network:
  name: mainnet
  rpc_endpoints: ["https://rpc.example.com"]
trading:
  dry_run: false
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRIVATE_KEY")
}

func TestPrivateKeyFromEnv(t *testing.T) {
	key := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	t.Setenv("PRIVATE_KEY", key)
	path := writeConfig(t, `
network:
  name: bsc
  rpc_endpoints: ["https://bsc.example.com"]
trading:
  dry_run: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, key, cfg.Wallet.PrivateKey)
	assert.Equal(t, int64(56), cfg.Network.ChainID)
}

func TestEnvOverridesPrependRPC(t *testing.T) {
	t.Setenv("RPC_URL", "wss://primary.example.com")
	path := writeConfig(t, `
network:
  name: mainnet
  rpc_endpoints: ["https://secondary.example.com"]
trading:
  dry_run: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Network.RPCEndpoints, 2)
	assert.Equal(t, "wss://primary.example.com", cfg.Network.RPCEndpoints[0])
}

func TestValidateRejectsBadRanges(t *testing.T) {
	base := `
network:
  name: mainnet
  rpc_endpoints: ["https://rpc.example.com"]
trading:
  dry_run: true
`
	cases := []struct {
		name  string
		extra string
	}{
		{"slippage too high", "  slippage_pct: 80\n"},
		{"stop loss full", "  stop_loss_pct: 100\n"},
		{"buy amount huge", "  buy_amount_eth: 5\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, base+tc.extra))
			require.Error(t, err)
		})
	}
}
