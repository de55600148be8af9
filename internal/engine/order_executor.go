package engine

import (
	"context"
	"errors"
	"fmt"

	"factor-trading-bot/internal/interfaces"
	"factor-trading-bot/internal/logger"
	"factor-trading-bot/internal/metrics"
	"factor-trading-bot/internal/tradelog"
	"factor-trading-bot/internal/types"

	"github.com/google/uuid"
)

const timeInForceGTC = "gtc"

// OrderExecutor places and closes bracket orders through the broker.
type OrderExecutor struct {
	broker  interfaces.Broker
	tracker *PositionTracker
}

// NewOrderExecutor creates an executor. tracker may be nil.
func NewOrderExecutor(broker interfaces.Broker, tracker *PositionTracker) *OrderExecutor {
	return &OrderExecutor{
		broker:  broker,
		tracker: tracker,
	}
}

// Submit sends a market entry with take-profit and stop-loss legs. A broker
// failure is reported as a rejected result wrapping ErrOrder.
func (oe *OrderExecutor) Submit(ctx context.Context, d types.SizingDecision) types.SubmitResult {
	req := types.BracketOrderRequest{
		Symbol:        d.Symbol,
		Qty:           d.Qty,
		Side:          d.Side,
		TimeInForce:   timeInForceGTC,
		TakeProfit:    d.TakeProfit,
		StopLoss:      d.StopLoss,
		ClientOrderID: uuid.NewString(),
	}

	entry := tradelog.OrderEntry{
		Symbol:        d.Symbol,
		Side:          string(d.Side),
		ClientOrderID: req.ClientOrderID,
		Qty:           d.Qty,
		Price:         d.Close,
		TakeProfit:    d.TakeProfit,
		StopLoss:      d.StopLoss,
		Volatility:    d.Volatility,
	}

	conf, err := oe.broker.SubmitBracketOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to place bracket order", err,
			"symbol", d.Symbol,
			"qty", d.Qty,
			"price", d.Close,
			"client_order_id", req.ClientOrderID,
		)
		entry.Status = string(types.SubmitRejected)
		entry.Error = err.Error()
		oe.journal(ctx, entry)
		metrics.OrdersTotal.WithLabelValues(d.Symbol, string(d.Side), string(types.SubmitRejected)).Inc()

		return types.SubmitResult{
			Symbol: d.Symbol,
			Status: types.SubmitRejected,
			Err:    fmt.Errorf("%w: submit %s: %v", types.ErrOrder, d.Symbol, err),
		}
	}

	if conf.ClientOrderID == "" {
		conf.ClientOrderID = req.ClientOrderID
	}
	logger.Trade(ctx, d.Symbol, string(d.Side), d.Qty, d.Close, d.TakeProfit, d.StopLoss, conf.OrderID,
		"client_order_id", conf.ClientOrderID,
		"status", conf.Status,
		"volatility", d.Volatility,
	)
	entry.Status = string(types.SubmitAccepted)
	entry.OrderID = conf.OrderID
	oe.journal(ctx, entry)
	metrics.OrdersTotal.WithLabelValues(d.Symbol, string(d.Side), string(types.SubmitAccepted)).Inc()
	oe.tracker.Opened(d)

	return types.SubmitResult{
		Symbol:       d.Symbol,
		Status:       types.SubmitAccepted,
		Confirmation: conf,
	}
}

// ClosePosition liquidates one position.
func (oe *OrderExecutor) ClosePosition(ctx context.Context, symbol string) error {
	conf, err := oe.broker.ClosePosition(ctx, symbol)
	metrics.ClosesTotal.WithLabelValues(symbol, metrics.Result(err)).Inc()
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to close position", err, "symbol", symbol)
		_ = tradelog.AppendClose(tradelog.CloseEntry{Symbol: symbol, Error: err.Error()})
		return fmt.Errorf("%w: close %s: %v", types.ErrOrder, symbol, err)
	}

	logger.Info(ctx, "Position closed", "symbol", symbol, "order_id", conf.OrderID, "status", conf.Status)
	_ = tradelog.AppendClose(tradelog.CloseEntry{Symbol: symbol, OrderID: conf.OrderID})
	oe.tracker.Closed(symbol)
	return nil
}

// CloseAllPositions closes every open position independently and returns one
// error per failed close. If positions cannot be listed it falls back to the
// broker's bulk liquidation.
func (oe *OrderExecutor) CloseAllPositions(ctx context.Context) []error {
	positions, err := oe.broker.AllPositions(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to list positions, requesting bulk close", err)
		if bulkErr := oe.broker.CloseAllPositions(ctx); bulkErr != nil {
			return []error{fmt.Errorf("%w: close all: %v", types.ErrOrder, errors.Join(err, bulkErr))}
		}
		oe.tracker.Reset()
		return nil
	}

	var errs []error
	for _, p := range positions {
		if err := oe.ClosePosition(ctx, p.Symbol); err != nil {
			errs = append(errs, err)
		}
	}
	logger.Info(ctx, "Close all positions finished", "positions", len(positions), "failures", len(errs))
	return errs
}

func (oe *OrderExecutor) journal(ctx context.Context, e tradelog.OrderEntry) {
	if err := tradelog.AppendOrder(e); err != nil {
		logger.Warn(ctx, "Failed to append order journal", "symbol", e.Symbol, "error", err.Error())
	}
}
