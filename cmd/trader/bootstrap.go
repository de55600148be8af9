package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"factor-trading-bot/internal/broker/alpaca"
	"factor-trading-bot/internal/broker/brokerobs"
	"factor-trading-bot/internal/engine"
	"factor-trading-bot/internal/engine/engineobs"
	"factor-trading-bot/internal/feed/feedobs"
	"factor-trading-bot/internal/feed/lumnis"
	"factor-trading-bot/internal/history"
	"factor-trading-bot/internal/interfaces"
	"factor-trading-bot/internal/logger"
	"factor-trading-bot/internal/risk"
	"factor-trading-bot/internal/signal"
	"factor-trading-bot/internal/store"
	"factor-trading-bot/internal/trace"
	"factor-trading-bot/internal/tradelog"
	"factor-trading-bot/internal/types"

	"github.com/joho/godotenv"
)

// initializeSystem initializes logger and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// loadConfig loads config.yaml and the broker/feed credentials
func loadConfig(ctx context.Context) (*store.Config, *store.Credentials, error) {
	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, nil, err
	}
	creds, err := store.LoadCredentials()
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load credentials", err)
		return nil, nil, err
	}
	return cfg, creds, nil
}

// compressOldLogs compresses old tradelog files if retention is configured
func compressOldLogs(ctx context.Context) {
	v := os.Getenv("TRADER_LOG_RETENTION_DAYS")
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn(ctx, "Ignoring invalid TRADER_LOG_RETENTION_DAYS", "value", v)
		return
	}
	if err := tradelog.CompressOlder(n); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
}

// initializeBroker creates the Alpaca broker wrapped with observability
func initializeBroker(ctx context.Context, cfg *store.Config, creds *store.Credentials) interfaces.Broker {
	brk := alpaca.New(alpaca.Params{
		Paper:   cfg.Paper(),
		BaseURL: cfg.Broker.BaseURL,
		KeyID:   creds.BrokerKeyID,
		Secret:  creds.BrokerSecret,
		Timeout: time.Duration(cfg.Broker.TimeoutSeconds) * time.Second,
	})

	if cfg.Paper() {
		logger.Info(ctx, "Using Alpaca paper trading environment")
	} else {
		logger.Warn(ctx, "Running in LIVE mode - orders use real funds")
	}

	return brokerobs.Wrap(brk)
}

// initializeFeed creates the Lumnis factor feed wrapped with observability
func initializeFeed(cfg *store.Config, creds *store.Credentials) interfaces.FactorFeed {
	feed := lumnis.New(lumnis.Params{
		BaseURL:          cfg.Feed.BaseURL,
		APIKey:           creds.FeedAPIKey,
		Timeout:          time.Duration(cfg.Feed.TimeoutSeconds) * time.Second,
		RequestsPerBurst: cfg.Feed.RequestsPerBurst,
		Refill:           time.Duration(cfg.Feed.RefillMillis) * time.Millisecond,
	})
	return feedobs.Wrap(feed)
}

// discoverAssets intersects the broker catalog with the configured universe
func discoverAssets(ctx context.Context, cfg *store.Config, brk interfaces.Broker) ([]types.Asset, error) {
	catalog, err := brk.TradableAssets(ctx, cfg.AssetClass)
	if err != nil {
		return nil, fmt.Errorf("asset discovery: %w", err)
	}

	assets, missing := engine.SelectAssets(catalog, cfg.Universe)
	if len(missing) > 0 {
		logger.Warn(ctx, "Universe symbols not tradable at broker", "symbols", missing)
	}
	if len(assets) == 0 {
		return nil, errors.New("asset discovery: no tradable assets in universe")
	}

	symbols := make([]string, len(assets))
	for i, a := range assets {
		symbols[i] = a.Symbol
	}
	logger.Info(ctx, "Tradable assets selected", "count", len(assets), "symbols", symbols)
	return assets, nil
}

// warmupHistory backfills every symbol and then applies one live update
func warmupHistory(ctx context.Context, cfg *store.Config, feed interfaces.FactorFeed, assets []types.Asset) (*history.Store, error) {
	hs := history.NewStore(feed, history.Config{
		Venue:         cfg.Venue,
		Timeframe:     cfg.Timeframe,
		Factors:       cfg.Factors,
		BackfillDays:  cfg.History.BackfillDays,
		EndOffsetDays: cfg.History.EndOffsetDays,
		Retention:     cfg.Retention(),
	})

	symbols := make([]string, len(assets))
	for i, a := range assets {
		symbols[i] = a.Symbol
	}

	op := logger.StartOperation(ctx, "history.warmup", "symbols", len(symbols))
	for _, symbol := range symbols {
		if err := hs.Warmup(op.GetContext(), symbol); err != nil {
			op.EndWithError(err)
			return nil, err
		}
	}
	logger.Info(ctx, "History warmup complete", "symbols", len(symbols), "duration", op.End().Round(time.Millisecond).String())

	op = logger.StartOperation(ctx, "history.update", "lookback", cfg.History.WarmupLookback)
	if err := hs.UpdateAll(op.GetContext(), symbols, cfg.History.WarmupLookback); err != nil {
		op.EndWithError(err)
		return nil, err
	}
	logger.Info(ctx, "History update complete", "lookback", cfg.History.WarmupLookback, "duration", op.End().Round(time.Millisecond).String())

	return hs, nil
}

// initializeSignals registers the configured strategy
func initializeSignals(ctx context.Context, cfg *store.Config, source signal.FactorSource) *signal.Engine {
	registry := signal.NewRegistry(
		signal.NewThresholdStrategy(cfg.Strategy, cfg.Signal.Feature, cfg.Signal.Threshold),
	)
	logger.Info(ctx, "Signal strategies registered",
		"strategies", registry.Names(),
		"active", cfg.Strategy,
		"feature", cfg.Signal.Feature,
		"threshold", cfg.Signal.Threshold)

	return signal.NewEngine(source, registry, signal.Config{
		Window:     cfg.Signal.Window,
		MinPeriods: cfg.Signal.MinPeriods,
	})
}

func initializeSizer(cfg *store.Config) *risk.Sizer {
	return risk.NewSizer(risk.Config{
		CashFraction:       cfg.Risk.CashFraction,
		TransactionCost:    cfg.Risk.TransactionCost,
		VolWindow:          cfg.Risk.VolWindow,
		VolFloorMultiple:   cfg.Risk.VolFloorMultiple,
		VolCap:             cfg.Risk.VolCap,
		TakeProfitMultiple: cfg.Risk.TakeProfitMultiple,
		StopLossMultiple:   cfg.Risk.StopLossMultiple,
	})
}

// initializeTracker returns nil when per-asset risk state is disabled
func initializeTracker(cfg *store.Config) *engine.PositionTracker {
	if !cfg.Tracker.Enabled {
		return nil
	}
	return engine.NewPositionTracker()
}

// initializeEngine creates the trading engine wrapped with observability
func initializeEngine(cfg *store.Config, brk interfaces.Broker, hs *history.Store, signals *signal.Engine, executor *engine.OrderExecutor, tracker *engine.PositionTracker, assets []types.Asset) interfaces.Engine {
	eng := engine.New(engine.Config{
		Strategy:      cfg.Strategy,
		CycleLookback: cfg.History.CycleLookback,
	}, brk, hs, signals, initializeSizer(cfg), executor, tracker, assets)

	return engineobs.Wrap(eng)
}

func initializeScheduler(cfg *store.Config, eng interfaces.Engine) *engine.Scheduler {
	return engine.NewScheduler(eng, engine.SystemClock, engine.SchedulerConfig{
		TriggerSecond:       cfg.Scheduler.TriggerSecond,
		MissedPolicy:        cfg.Scheduler.MissedPolicy,
		AbortAlertThreshold: cfg.Scheduler.AbortAlertThreshold,
	})
}

// closeOnShutdown flattens every open position when configured to. It runs on
// a fresh context because the process context is already cancelled.
func closeOnShutdown(cfg *store.Config, executor *engine.OrderExecutor) {
	if !cfg.ClosePositionsOnShutdown {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info(ctx, "Closing all positions before exit")
	for _, err := range executor.CloseAllPositions(ctx) {
		logger.ErrorWithErr(ctx, "Position close failed during shutdown", err)
	}
}
