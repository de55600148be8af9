package risk

import (
	"context"
	"testing"
	"time"

	"factor-trading-bot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultSizer() *Sizer {
	return NewSizer(Config{
		CashFraction:       0.9,
		TransactionCost:    0.0015,
		VolWindow:          60,
		VolFloorMultiple:   15,
		VolCap:             0.1,
		TakeProfitMultiple: 2,
		StopLossMultiple:   2,
	})
}

func pricesFrom(closes ...float64) types.Series {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(types.Series, len(closes))
	for i, c := range closes {
		s[i] = types.Bar{Time: t0.Add(time.Duration(i) * time.Minute), Close: c}
	}
	return s
}

// zigzag alternates +step and -step returns around base.
func zigzag(n int, base, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = base
		} else {
			out[i] = base * (1 + step)
		}
	}
	return out
}

func TestClampVol(t *testing.T) {
	s := defaultSizer()
	assert.InDelta(t, 0.0225, s.ClampVol(0.0005), 1e-12)
	assert.Equal(t, 0.1, s.ClampVol(0.5))
	assert.Equal(t, 0.05, s.ClampVol(0.05))
}

func TestBrackets(t *testing.T) {
	tp, sl := defaultSizer().Brackets(100, 0.02)
	assert.InDelta(t, 104, tp, 1e-9)
	assert.InDelta(t, 96, sl, 1e-9)
}

func TestBudgetEqualWeight(t *testing.T) {
	s := defaultSizer()
	assert.InDelta(t, 3000, s.Budget(types.AccountSnapshot{Cash: 10000}, 3), 1e-9)
	assert.Zero(t, s.Budget(types.AccountSnapshot{Cash: 10000}, 0))
}

func TestSizeProducesBracketedDecision(t *testing.T) {
	closes := zigzag(80, 50, 0.001)
	closes[len(closes)-1] = 50

	d, ok, err := defaultSizer().Size(context.Background(),
		types.Asset{Symbol: "BTC/USD", MinOrderSize: 0.0001},
		types.AccountSnapshot{Cash: 10000}, 3, pricesFrom(closes...))

	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 60, d.Qty, 1e-9)
	assert.Equal(t, types.SideBuy, d.Side)
	// realized vol of ~0.1% is clamped up to the floor
	assert.InDelta(t, 0.0225, d.Volatility, 1e-12)
	assert.InDelta(t, 52.25, d.TakeProfit, 1e-9)
	assert.InDelta(t, 47.75, d.StopLoss, 1e-9)
}

func TestSizeBelowMinimumIsSkip(t *testing.T) {
	d, ok, err := defaultSizer().Size(context.Background(),
		types.Asset{Symbol: "BTC/USD", MinOrderSize: 1},
		types.AccountSnapshot{Cash: 100}, 1, pricesFrom(zigzag(80, 60000, 0.01)...))

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, d.Qty)
}

func TestSizeInsufficientHistory(t *testing.T) {
	_, ok, err := defaultSizer().Size(context.Background(),
		types.Asset{Symbol: "BTC/USD"},
		types.AccountSnapshot{Cash: 10000}, 1, pricesFrom(zigzag(30, 100, 0.01)...))
	assert.False(t, ok)
	assert.ErrorIs(t, err, types.ErrInsufficientHistory)

	_, _, err = defaultSizer().Size(context.Background(),
		types.Asset{Symbol: "BTC/USD"},
		types.AccountSnapshot{Cash: 10000}, 1, nil)
	assert.ErrorIs(t, err, types.ErrInsufficientHistory)
}

func TestRealizedVolUsesTrailingWindow(t *testing.T) {
	s := NewSizer(Config{VolWindow: 2})
	// returns over the last three closes are +10% and -10%
	vol, err := s.RealizedVol([]float64{1, 1000, 100, 110, 99})
	require.NoError(t, err)
	assert.InDelta(t, 0.1414213562, vol, 1e-9)
}
