package brokerobs

import (
	"context"

	"factor-trading-bot/internal/interfaces"
	"factor-trading-bot/internal/logger"
	"factor-trading-bot/internal/metrics"
	"factor-trading-bot/internal/trace"
	"factor-trading-bot/internal/types"
)

// observableBroker wraps a Broker with observability (logging, tracing, call counts)
type observableBroker struct {
	broker interfaces.Broker
}

// Compile-time interface check
var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{
		broker: broker,
	}
}

func count(method string, err error) {
	metrics.CallsTotal.WithLabelValues("broker", method, metrics.Result(err)).Inc()
}

func (ob *observableBroker) Account(ctx context.Context) (types.AccountSnapshot, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Account")
	defer span.End()

	acct, err := ob.broker.Account(ctx)
	count("Account", err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account", err)
		return acct, err
	}

	logger.DebugSkip(ctx, 1, "Account fetched", "cash", acct.Cash)
	return acct, nil
}

func (ob *observableBroker) TradableAssets(ctx context.Context, assetClass string) ([]types.Asset, error) {
	ctx, span := trace.StartSpan(ctx, "broker.TradableAssets")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching asset catalog", "asset_class", assetClass)

	assets, err := ob.broker.TradableAssets(ctx, assetClass)
	count("TradableAssets", err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch asset catalog", err, "asset_class", assetClass)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Asset catalog fetched", "asset_class", assetClass, "count", len(assets))
	return assets, nil
}

func (ob *observableBroker) OpenPosition(ctx context.Context, symbol string) (types.Position, bool, error) {
	ctx, span := trace.StartSpan(ctx, "broker.OpenPosition")
	defer span.End()

	pos, found, err := ob.broker.OpenPosition(ctx, symbol)
	count("OpenPosition", err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to look up position", err, "symbol", symbol)
		return pos, false, err
	}

	logger.DebugSkip(ctx, 1, "Position looked up", "symbol", symbol, "found", found, "qty", pos.Qty)
	return pos, found, nil
}

func (ob *observableBroker) AllPositions(ctx context.Context) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.AllPositions")
	defer span.End()

	positions, err := ob.broker.AllPositions(ctx)
	count("AllPositions", err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list positions", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Positions listed", "count", len(positions))
	return positions, nil
}

func (ob *observableBroker) SubmitBracketOrder(ctx context.Context, req types.BracketOrderRequest) (types.OrderConfirmation, error) {
	ctx, span := trace.StartSpan(ctx, "broker.SubmitBracketOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing bracket order",
		"symbol", req.Symbol,
		"side", req.Side,
		"qty", req.Qty,
		"take_profit", req.TakeProfit,
		"stop_loss", req.StopLoss,
		"client_order_id", req.ClientOrderID,
	)

	conf, err := ob.broker.SubmitBracketOrder(ctx, req)
	count("SubmitBracketOrder", err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place bracket order", err,
			"symbol", req.Symbol,
			"side", req.Side,
			"qty", req.Qty,
		)
		return conf, err
	}

	logger.InfoSkip(ctx, 1, "Bracket order placed",
		"symbol", req.Symbol,
		"order_id", conf.OrderID,
		"status", conf.Status,
	)
	return conf, nil
}

func (ob *observableBroker) ClosePosition(ctx context.Context, symbol string) (types.OrderConfirmation, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ClosePosition")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Closing position", "symbol", symbol)

	conf, err := ob.broker.ClosePosition(ctx, symbol)
	count("ClosePosition", err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to close position", err, "symbol", symbol)
		return conf, err
	}

	logger.InfoSkip(ctx, 1, "Position close submitted", "symbol", symbol, "order_id", conf.OrderID)
	return conf, nil
}

func (ob *observableBroker) CloseAllPositions(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "broker.CloseAllPositions")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Closing all positions")

	err := ob.broker.CloseAllPositions(ctx)
	count("CloseAllPositions", err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to close all positions", err)
		return err
	}

	logger.InfoSkip(ctx, 1, "All positions close submitted")
	return nil
}
