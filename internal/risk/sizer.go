package risk

import (
	"context"
	"fmt"
	"math"

	"factor-trading-bot/internal/logger"
	"factor-trading-bot/internal/ta"
	"factor-trading-bot/internal/types"
)

type Config struct {
	CashFraction       float64
	TransactionCost    float64
	VolWindow          int
	VolFloorMultiple   float64
	VolCap             float64
	TakeProfitMultiple float64
	StopLossMultiple   float64
}

// Sizer turns a buy signal into a bracketed order size. It holds no state
// between calls.
type Sizer struct {
	cfg Config
}

func NewSizer(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Budget is the equal-weight cash allocation per tradable asset.
func (s *Sizer) Budget(account types.AccountSnapshot, n int) float64 {
	if n <= 0 {
		return 0
	}
	return s.cfg.CashFraction * account.Cash / float64(n)
}

// VolFloor is the lowest volatility brackets are ever computed from.
func (s *Sizer) VolFloor() float64 {
	return s.cfg.TransactionCost * s.cfg.VolFloorMultiple
}

func (s *Sizer) ClampVol(v float64) float64 {
	return math.Min(math.Max(v, s.VolFloor()), s.cfg.VolCap)
}

// RealizedVol is the sample std of simple returns over the trailing window.
func (s *Sizer) RealizedVol(closes []float64) (float64, error) {
	if len(closes) < s.cfg.VolWindow+1 {
		return 0, fmt.Errorf("%w: need %d closes for volatility, have %d",
			types.ErrInsufficientHistory, s.cfg.VolWindow+1, len(closes))
	}
	returns := ta.PctChange(closes[len(closes)-s.cfg.VolWindow-1:])
	vol := ta.SampleStdDev(returns, len(returns))
	if math.IsNaN(vol) {
		return 0, fmt.Errorf("%w: volatility undefined over last %d returns",
			types.ErrInsufficientHistory, s.cfg.VolWindow)
	}
	return vol, nil
}

// Brackets returns take-profit and stop-loss prices for a long entry at close.
func (s *Sizer) Brackets(close, vol float64) (takeProfit, stopLoss float64) {
	takeProfit = close + s.cfg.TakeProfitMultiple*vol*close
	stopLoss = close - s.cfg.StopLossMultiple*vol*close
	return takeProfit, stopLoss
}

// Size builds the order for one asset. ok is false when the quantity is
// below the asset's minimum order size; that is a skip, not an error.
func (s *Sizer) Size(ctx context.Context, asset types.Asset, account types.AccountSnapshot, n int, prices types.Series) (types.SizingDecision, bool, error) {
	last, found := prices.Last()
	if !found || math.IsNaN(last.Close) || last.Close <= 0 {
		return types.SizingDecision{}, false, fmt.Errorf("%w: no usable close for %s", types.ErrInsufficientHistory, asset.Symbol)
	}

	budget := s.Budget(account, n)
	qty := budget / last.Close
	if qty < asset.MinOrderSize || qty <= 0 {
		logger.Info(ctx, "Order below minimum size",
			"symbol", asset.Symbol,
			"qty", qty,
			"min_order_size", asset.MinOrderSize,
			"budget", budget)
		return types.SizingDecision{}, false, nil
	}

	raw, err := s.RealizedVol(prices.Closes())
	if err != nil {
		return types.SizingDecision{}, false, fmt.Errorf("size %s: %w", asset.Symbol, err)
	}
	vol := s.ClampVol(raw)
	if vol != raw {
		logger.Debug(ctx, "Volatility clamped", "symbol", asset.Symbol, "raw", raw, "clamped", vol)
	}

	tp, sl := s.Brackets(last.Close, vol)
	return types.SizingDecision{
		Symbol:     asset.Symbol,
		Side:       types.SideBuy,
		Qty:        qty,
		Close:      last.Close,
		Volatility: vol,
		TakeProfit: tp,
		StopLoss:   sl,
	}, true, nil
}
