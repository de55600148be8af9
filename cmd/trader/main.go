package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"factor-trading-bot/internal/engine"
	"factor-trading-bot/internal/logger"
	"factor-trading-bot/internal/metrics"
	"factor-trading-bot/internal/trace"
)

func main() {
	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(); err != nil {
		logger.ErrorWithErr(context.Background(), "Trader exited with error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(sctx)
	}()

	cfg, creds, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	compressOldLogs(ctx)

	brk := initializeBroker(ctx, cfg, creds)
	feed := initializeFeed(cfg, creds)

	assets, err := discoverAssets(ctx, cfg, brk)
	if err != nil {
		return err
	}

	hs, err := warmupHistory(ctx, cfg, feed, assets)
	if err != nil {
		return err
	}

	signals := initializeSignals(ctx, cfg, hs)
	tracker := initializeTracker(cfg)
	executor := engine.NewOrderExecutor(brk, tracker)
	eng := initializeEngine(cfg, brk, hs, signals, executor, tracker, assets)

	if cfg.MetricsAddr != "" {
		srv := metrics.Serve(cfg.MetricsAddr)
		defer srv.Close()
		logger.Info(ctx, "Metrics endpoint listening", "addr", cfg.MetricsAddr)
	}

	logger.Info(ctx, "Trader started",
		"mode", cfg.Mode,
		"timeframe", cfg.Timeframe,
		"assets", len(assets),
		"trigger_second", cfg.Scheduler.TriggerSecond,
		"missed_policy", cfg.Scheduler.MissedPolicy)

	err = initializeScheduler(cfg, eng).Run(ctx)
	logger.Info(context.Background(), "Shutting down...")
	closeOnShutdown(cfg, executor)
	return err
}
