package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Network NetworkConfig `yaml:"network"`
	Wallet  WalletConfig  `yaml:"wallet"`
	Watcher WatcherConfig `yaml:"watcher"`
	Safety  SafetyConfig  `yaml:"safety"`
	Trading TradingConfig `yaml:"trading"`
	Limits  LimitsConfig  `yaml:"limits"`
	Storage StorageConfig `yaml:"storage"`
	Notify  NotifyConfig  `yaml:"notify"`
	Log     LogConfig     `yaml:"log"`
}

// NetworkConfig identifica la red y sus contratos.
type NetworkConfig struct {
	Name          string   `yaml:"name"` // mainnet | bsc | base
	ChainID       int64    `yaml:"chain_id"`
	RPCEndpoints  []string `yaml:"rpc_endpoints"` // el primero es el primario
	Factory       string   `yaml:"factory"`
	Router        string   `yaml:"router"`
	WrappedNative string   `yaml:"wrapped_native"`
}

// WalletConfig contiene la clave. Solo via env: nunca se lee del YAML.
type WalletConfig struct {
	PrivateKey string `yaml:"-"`
}

// WatcherConfig controla el polling de la factory.
type WatcherConfig struct {
	PollSeconds int    `yaml:"poll_seconds"`
	BlockBatch  uint64 `yaml:"block_batch"`
	SeenLimit   int    `yaml:"seen_limit"`
}

// SafetyConfig controla los umbrales de evaluación de tokens.
type SafetyConfig struct {
	MinLiquidityEth    float64 `yaml:"min_liquidity_eth"`
	MaxOwnerHoldingPct float64 `yaml:"max_owner_holding_pct"`
	MaxTaxPct          float64 `yaml:"max_tax_pct"` // sobre 100
	MinMaxTxEth        float64 `yaml:"min_max_tx_eth"`
	MinMaxWalletEth    float64 `yaml:"min_max_wallet_eth"`
	RiskAPIBase        string  `yaml:"risk_api_base"` // vacío desactiva el check externo
}

// TradingConfig controla la ejecución y la gestión de posiciones.
type TradingConfig struct {
	BuyAmountEth         float64 `yaml:"buy_amount_eth"`
	SlippagePct          float64 `yaml:"slippage_pct"`
	GasMultiplier        float64 `yaml:"gas_multiplier"`
	ProfitTargetPct      float64 `yaml:"profit_target_pct"`
	StopLossPct          float64 `yaml:"stop_loss_pct"`
	MaxPositions         int     `yaml:"max_positions"`
	MonitorSeconds       int     `yaml:"monitor_seconds"`
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses"`
	LossCooldownMinutes  int     `yaml:"loss_cooldown_minutes"`
	MaxDrawdownEth       float64 `yaml:"max_drawdown_eth"` // positivo; 0 desactiva
	DryRun               bool    `yaml:"dry_run"`
}

// LimitsConfig controla rate limiting y circuit breaker del RPC.
type LimitsConfig struct {
	RPCMaxCalls      int `yaml:"rpc_max_calls"`
	RPCWindowSeconds int `yaml:"rpc_window_seconds"`
	BreakerFailures  int `yaml:"breaker_failures"`
	BreakerOpenSecs  int `yaml:"breaker_open_seconds"`
	HealthCheckSecs  int `yaml:"health_check_seconds"`
}

// StorageConfig controla dónde se persiste el historial.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// NotifyConfig controla las alertas.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"` // vacío desactiva el webhook
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// knownNetworks mapea nombre de red → defaults de chain id y contratos.
var knownNetworks = map[string]NetworkConfig{
	"mainnet": {
		ChainID:       1,
		Factory:       "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
		Router:        "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
		WrappedNative: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
	},
	"bsc": {
		ChainID:       56,
		Factory:       "0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73",
		Router:        "0x10ED43C718714eb63d5aA57B78B54704E256024E",
		WrappedNative: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c",
	},
	"base": {
		ChainID:       8453,
		Factory:       "0x8909Dc15e40173Ff4699343b6eB8132c65e18eC6",
		Router:        "0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24",
		WrappedNative: "0x4200000000000000000000000000000000000006",
	},
}

// Load carga la configuración desde el archivo YAML y el archivo .env si
// existe. Los valores del env sobreescriben los del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PollInterval devuelve el intervalo de polling del watcher.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Watcher.PollSeconds) * time.Second
}

// MonitorInterval devuelve el intervalo de monitoreo de posiciones.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Trading.MonitorSeconds) * time.Second
}

// RPCWindow devuelve la ventana del rate limiter.
func (c *Config) RPCWindow() time.Duration {
	return time.Duration(c.Limits.RPCWindowSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno.
func applyEnvOverrides(cfg *Config) {
	cfg.Wallet.PrivateKey = os.Getenv("PRIVATE_KEY")
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.Network.RPCEndpoints = append([]string{v}, cfg.Network.RPCEndpoints...)
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	if v := os.Getenv("DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Trading.DryRun = b
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura valores sensatos, completando los contratos desde
// la red conocida cuando no se especifican.
func setDefaults(cfg *Config) {
	if cfg.Network.Name == "" {
		cfg.Network.Name = "mainnet"
	}
	if known, ok := knownNetworks[cfg.Network.Name]; ok {
		if cfg.Network.ChainID == 0 {
			cfg.Network.ChainID = known.ChainID
		}
		if cfg.Network.Factory == "" {
			cfg.Network.Factory = known.Factory
		}
		if cfg.Network.Router == "" {
			cfg.Network.Router = known.Router
		}
		if cfg.Network.WrappedNative == "" {
			cfg.Network.WrappedNative = known.WrappedNative
		}
	}

	if cfg.Watcher.PollSeconds <= 0 {
		cfg.Watcher.PollSeconds = 3
	}
	if cfg.Watcher.BlockBatch == 0 {
		cfg.Watcher.BlockBatch = 500
	}
	if cfg.Watcher.SeenLimit <= 0 {
		cfg.Watcher.SeenLimit = 4096
	}

	if cfg.Safety.MinLiquidityEth <= 0 {
		cfg.Safety.MinLiquidityEth = 1.0
	}
	if cfg.Safety.MaxOwnerHoldingPct <= 0 {
		cfg.Safety.MaxOwnerHoldingPct = 15.0
	}
	if cfg.Safety.MaxTaxPct <= 0 {
		cfg.Safety.MaxTaxPct = 10.0
	}
	if cfg.Safety.MinMaxTxEth <= 0 {
		cfg.Safety.MinMaxTxEth = 1.0
	}
	if cfg.Safety.MinMaxWalletEth <= 0 {
		cfg.Safety.MinMaxWalletEth = 10.0
	}

	if cfg.Trading.BuyAmountEth <= 0 {
		cfg.Trading.BuyAmountEth = 0.05
	}
	if cfg.Trading.SlippagePct <= 0 {
		cfg.Trading.SlippagePct = 5.0
	}
	if cfg.Trading.GasMultiplier <= 0 {
		cfg.Trading.GasMultiplier = 1.1
	}
	if cfg.Trading.ProfitTargetPct <= 0 {
		cfg.Trading.ProfitTargetPct = 100.0
	}
	if cfg.Trading.StopLossPct <= 0 {
		cfg.Trading.StopLossPct = 30.0
	}
	if cfg.Trading.MaxPositions <= 0 {
		cfg.Trading.MaxPositions = 3
	}
	if cfg.Trading.MonitorSeconds <= 0 {
		cfg.Trading.MonitorSeconds = 30
	}
	if cfg.Trading.MaxConsecutiveLosses <= 0 {
		cfg.Trading.MaxConsecutiveLosses = 3
	}
	if cfg.Trading.LossCooldownMinutes <= 0 {
		cfg.Trading.LossCooldownMinutes = 60
	}

	if cfg.Limits.RPCMaxCalls <= 0 {
		cfg.Limits.RPCMaxCalls = 25
	}
	if cfg.Limits.RPCWindowSeconds <= 0 {
		cfg.Limits.RPCWindowSeconds = 1
	}
	if cfg.Limits.BreakerFailures <= 0 {
		cfg.Limits.BreakerFailures = 5
	}
	if cfg.Limits.BreakerOpenSecs <= 0 {
		cfg.Limits.BreakerOpenSecs = 30
	}
	if cfg.Limits.HealthCheckSecs <= 0 {
		cfg.Limits.HealthCheckSecs = 30
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "snipebot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

var (
	addressRe    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	privateKeyRe = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)
)

// Validate comprueba que la configuración sea ejecutable. La clave
// privada solo se exige fuera de dry-run.
func (c *Config) Validate() error {
	if len(c.Network.RPCEndpoints) == 0 {
		return fmt.Errorf("config: no rpc_endpoints (o RPC_URL) configurados")
	}
	if c.Network.ChainID <= 0 {
		return fmt.Errorf("config: chain_id inválido %d (red %q desconocida?)", c.Network.ChainID, c.Network.Name)
	}
	for name, addr := range map[string]string{
		"factory":        c.Network.Factory,
		"router":         c.Network.Router,
		"wrapped_native": c.Network.WrappedNative,
	} {
		if !addressRe.MatchString(addr) {
			return fmt.Errorf("config: %s %q no es una dirección válida", name, addr)
		}
	}

	if !c.Trading.DryRun {
		if c.Wallet.PrivateKey == "" {
			return fmt.Errorf("config: PRIVATE_KEY requerida fuera de dry-run")
		}
		if !privateKeyRe.MatchString(c.Wallet.PrivateKey) {
			return fmt.Errorf("config: PRIVATE_KEY no es una clave hex de 64 caracteres")
		}
	}

	if c.Trading.SlippagePct <= 0 || c.Trading.SlippagePct > 50 {
		return fmt.Errorf("config: slippage_pct %.1f fuera de rango (0, 50]", c.Trading.SlippagePct)
	}
	if c.Trading.StopLossPct <= 0 || c.Trading.StopLossPct >= 100 {
		return fmt.Errorf("config: stop_loss_pct %.1f fuera de rango (0, 100)", c.Trading.StopLossPct)
	}
	if c.Trading.BuyAmountEth > 1 {
		return fmt.Errorf("config: buy_amount_eth %.2f sospechosamente alto (máx 1 ETH)", c.Trading.BuyAmountEth)
	}
	if c.Trading.MaxDrawdownEth < 0 {
		return fmt.Errorf("config: max_drawdown_eth debe ser >= 0")
	}
	return nil
}
