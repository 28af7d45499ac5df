package main

import (
	"context"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alejandrodnm/snipebot/config"
	"github.com/alejandrodnm/snipebot/internal/adapters/notify"
	"github.com/alejandrodnm/snipebot/internal/adapters/storage"
	"github.com/alejandrodnm/snipebot/internal/chain"
	"github.com/alejandrodnm/snipebot/internal/domain"
	"github.com/alejandrodnm/snipebot/internal/ports"
	"github.com/alejandrodnm/snipebot/internal/position"
	"github.com/alejandrodnm/snipebot/internal/reliability"
	"github.com/alejandrodnm/snipebot/internal/safety"
	"github.com/alejandrodnm/snipebot/internal/sniper"
	"github.com/alejandrodnm/snipebot/internal/trade"
	"github.com/alejandrodnm/snipebot/internal/watcher"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "simulate trades, never broadcast")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *dryRun {
		cfg.Trading.DryRun = true
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("snipebot starting",
		"config", *configPath,
		"network", cfg.Network.Name,
		"chain_id", cfg.Network.ChainID,
		"dry_run", cfg.Trading.DryRun,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stats := &domain.Stats{}

	conn, err := chain.NewConnector(chain.ConnectorConfig{
		Endpoints:      cfg.Network.RPCEndpoints,
		ChainID:        cfg.Network.ChainID,
		MaxCalls:       cfg.Limits.RPCMaxCalls,
		Window:         cfg.RPCWindow(),
		BreakerFails:   cfg.Limits.BreakerFailures,
		BreakerTimeout: time.Duration(cfg.Limits.BreakerOpenSecs) * time.Second,
		Retry:          reliability.DefaultRetryPolicy(),
	})
	if err != nil {
		slog.Error("failed to build connector", "err", err)
		os.Exit(1)
	}
	if err := conn.Connect(ctx); err != nil {
		slog.Error("failed to connect", "err", err)
		os.Exit(1)
	}
	defer conn.Close()
	go conn.RunHealthLoop(ctx, time.Duration(cfg.Limits.HealthCheckSecs)*time.Second)

	keyHex := cfg.Wallet.PrivateKey
	if keyHex == "" && cfg.Trading.DryRun {
		// Dry-run sin clave: una efímera sirve, solo se usa para simular.
		key, kerr := crypto.GenerateKey()
		if kerr != nil {
			slog.Error("failed to generate ephemeral key", "err", kerr)
			os.Exit(1)
		}
		keyHex = hex.EncodeToString(crypto.FromECDSA(key))
	}
	wallet, err := chain.NewWallet(conn, keyHex)
	if err != nil {
		slog.Error("failed to load wallet", "err", err)
		os.Exit(1)
	}
	slog.Info("wallet loaded", "address", wallet.Address().Hex())

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	console := notify.NewConsole()
	var notifier ports.Notifier = console
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewMulti(console, notify.NewWebhook(cfg.Notify.WebhookURL))
	}

	baseAsset := common.HexToAddress(cfg.Network.WrappedNative)

	w := watcher.New(watcher.Config{
		Factory:      common.HexToAddress(cfg.Network.Factory),
		BaseAsset:    baseAsset,
		PollInterval: cfg.PollInterval(),
		BlockBatch:   cfg.Watcher.BlockBatch,
		SeenLimit:    cfg.Watcher.SeenLimit,
		BufferSize:   64,
	}, conn, stats)

	var risk *safety.RiskClient
	if cfg.Safety.RiskAPIBase != "" {
		risk = safety.NewRiskClient(cfg.Safety.RiskAPIBase, cfg.Network.ChainID)
	}
	evaluator := safety.NewEvaluator(safety.Config{
		MinLiquidityEth:    cfg.Safety.MinLiquidityEth,
		MaxOwnerHoldingPct: cfg.Safety.MaxOwnerHoldingPct,
		MaxTax:             cfg.Safety.MaxTaxPct / 100,
		MinMaxTxEth:        cfg.Safety.MinMaxTxEth,
		MinMaxWalletEth:    cfg.Safety.MinMaxWalletEth,
	}, conn, safety.DefaultRuleSet(), risk, stats)

	engine := trade.NewEngine(trade.Config{
		Router:        common.HexToAddress(cfg.Network.Router),
		BaseAsset:     baseAsset,
		SlippagePct:   cfg.Trading.SlippagePct,
		GasMultiplier: cfg.Trading.GasMultiplier,
		DryRun:        cfg.Trading.DryRun,
	}, conn, wallet, stats)

	guard := &domain.LossGuard{
		MaxLosses:        cfg.Trading.MaxConsecutiveLosses,
		CooldownDuration: time.Duration(cfg.Trading.LossCooldownMinutes) * time.Minute,
		MaxDrawdown:      -cfg.Trading.MaxDrawdownEth,
	}

	positions := position.NewManager(position.Config{
		PollInterval:    cfg.MonitorInterval(),
		ProfitTargetPct: cfg.Trading.ProfitTargetPct,
		StopLossPct:     cfg.Trading.StopLossPct,
		MaxPositions:    cfg.Trading.MaxPositions,
		SellRetries:     3,
		RetryDelay:      5 * time.Second,
	}, engine, store, notifier, guard, stats, baseAsset)

	bot := sniper.New(sniper.Config{
		BuyAmountEth: cfg.Trading.BuyAmountEth,
		DryRun:       cfg.Trading.DryRun,
	}, w.Candidates(), evaluator, engine, positions, store, notifier, console, stats)

	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("watcher exited", "err", err)
			cancel()
		}
	}()

	if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("sniper exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("snipebot stopped cleanly", "open_positions", positions.Count())
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
