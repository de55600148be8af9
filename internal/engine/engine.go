package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"factor-trading-bot/internal/interfaces"
	"factor-trading-bot/internal/logger"
	"factor-trading-bot/internal/metrics"
	"factor-trading-bot/internal/tradelog"
	"factor-trading-bot/internal/types"
)

type historyStore interface {
	UpdateAll(ctx context.Context, symbols []string, lookback int) error
	Prices(symbol string) (types.Series, bool)
}

type evaluator interface {
	Evaluate(ctx context.Context, symbol, strategyName string) (types.Signal, error)
}

type sizer interface {
	Size(ctx context.Context, asset types.Asset, account types.AccountSnapshot, n int, prices types.Series) (types.SizingDecision, bool, error)
}

type Config struct {
	Strategy      string
	CycleLookback int
}

// Engine runs one decision cycle over a fixed asset list.
type Engine struct {
	cfg      Config
	brk      interfaces.Broker
	history  historyStore
	signals  evaluator
	sizer    sizer
	executor *OrderExecutor
	tracker  *PositionTracker
	assets   []types.Asset
	symbols  []string
	now      func() time.Time
}

func newEngine(cfg Config, brk interfaces.Broker, history historyStore, signals evaluator, sz sizer, executor *OrderExecutor, tracker *PositionTracker, assets []types.Asset) *Engine {
	symbols := make([]string, len(assets))
	for i, a := range assets {
		symbols[i] = a.Symbol
	}
	return &Engine{
		cfg:      cfg,
		brk:      brk,
		history:  history,
		signals:  signals,
		sizer:    sz,
		executor: executor,
		tracker:  tracker,
		assets:   assets,
		symbols:  symbols,
		now:      time.Now,
	}
}

// Cycle reads the account, refreshes history for every asset, then decides
// and acts per asset. Account or feed failures abort the cycle before any
// order is placed; per-asset failures are recorded in the report.
func (e *Engine) Cycle(ctx context.Context) (*types.CycleReport, error) {
	report := &types.CycleReport{Started: e.now().UTC()}

	account, err := e.brk.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch account: %w", err)
	}
	logger.Debug(ctx, "Account snapshot", "cash", account.Cash, "assets", len(e.assets))

	if err := e.history.UpdateAll(ctx, e.symbols, e.cfg.CycleLookback); err != nil {
		return nil, fmt.Errorf("update history: %w", err)
	}

	for _, asset := range e.assets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome := e.step(ctx, asset, account)
		report.Outcomes = append(report.Outcomes, outcome)

		metrics.SignalsTotal.WithLabelValues(asset.Symbol, string(outcome.Action)).Inc()
		_ = tradelog.AppendDecision(tradelog.DecisionEntry{
			Symbol:   asset.Symbol,
			Strategy: e.cfg.Strategy,
			Action:   string(outcome.Action),
			Reason:   outcome.Reason,
		})
	}

	report.Finished = e.now().UTC()
	return report, nil
}

func (e *Engine) step(ctx context.Context, asset types.Asset, account types.AccountSnapshot) types.SymbolOutcome {
	symbol := asset.Symbol
	out := types.SymbolOutcome{Symbol: symbol}

	pos, found, err := e.brk.OpenPosition(ctx, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Position lookup failed", err, "symbol", symbol)
		out.Action, out.Reason = types.ActionError, err.Error()
		return out
	}
	if found {
		logger.Info(ctx, "Position already open, skipping",
			"symbol", symbol,
			"qty", pos.Qty,
			"unrealized_plpc", pos.UnrealizedPLPC)
		e.tracker.Mark(symbol, pos.UnrealizedPLPC)
		out.Action = types.ActionHeldPosition
		return out
	}

	sig, err := e.signals.Evaluate(ctx, symbol, e.cfg.Strategy)
	if err != nil {
		logger.ErrorWithErr(ctx, "Signal evaluation failed", err, "symbol", symbol, "strategy", e.cfg.Strategy)
		out.Action, out.Reason = types.ActionError, err.Error()
		return out
	}
	if sig != types.Buy {
		out.Action = types.ActionNoSignal
		return out
	}

	prices, _ := e.history.Prices(symbol)
	decision, ok, err := e.sizer.Size(ctx, asset, account, len(e.assets), prices)
	if err != nil {
		if errors.Is(err, types.ErrInsufficientHistory) {
			logger.Warn(ctx, "Skipping symbol with insufficient price history", "symbol", symbol, "error", err.Error())
		} else {
			logger.ErrorWithErr(ctx, "Sizing failed", err, "symbol", symbol)
		}
		out.Action, out.Reason = types.ActionError, err.Error()
		return out
	}
	if !ok {
		out.Action = types.ActionBelowMinimum
		return out
	}

	res := e.executor.Submit(ctx, decision)
	if res.Status != types.SubmitAccepted {
		out.Action = types.ActionRejected
		if res.Err != nil {
			out.Reason = res.Err.Error()
		}
		return out
	}
	out.Action = types.ActionSubmitted
	out.Reason = res.Confirmation.OrderID
	return out
}

// Assets returns the tradable universe the engine was built with.
func (e *Engine) Assets() []types.Asset {
	return e.assets
}
