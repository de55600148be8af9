package history

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"factor-trading-bot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(i int) time.Time { return t0.Add(time.Duration(i) * time.Minute) }

func priceBar(i int, close float64) types.Bar {
	return types.Bar{Time: at(i), Open: close, High: close, Low: close, Close: close, Volume: 1}
}

func factorBar(i int, vals map[string]float64) types.Bar {
	b := types.NaNBar(at(i))
	b.Factors = vals
	return b
}

func closes(s types.Series) []float64 { return s.Closes() }

type fakeFeed struct {
	ranges   map[string]types.Series
	windows  map[string]types.Series
	rangeErr error
	priceErr error

	rangeReqs  []types.RangeRequest
	windowReqs []types.WindowRequest
}

func (f *fakeFeed) HistoricalRange(_ context.Context, req types.RangeRequest) (types.Series, error) {
	f.rangeReqs = append(f.rangeReqs, req)
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	return f.ranges[req.Factor], nil
}

func (f *fakeFeed) LiveWindow(_ context.Context, req types.WindowRequest) (types.Series, error) {
	f.windowReqs = append(f.windowReqs, req)
	if req.Factors[0] == PriceFactor {
		if f.priceErr != nil {
			return nil, f.priceErr
		}
		return f.windows[PriceFactor], nil
	}
	return f.windows["factors"], nil
}

func TestMergeSortsAndDedupesKeepingExisting(t *testing.T) {
	existing := types.Series{priceBar(0, 100), priceBar(1, 101), priceBar(2, 102)}
	window := types.Series{priceBar(4, 104), priceBar(2, 999), priceBar(3, 103), priceBar(4, 888)}

	merged := Merge(existing, window)

	require.True(t, Valid(merged))
	assert.Equal(t, []float64{100, 101, 102, 103, 104}, closes(merged))
}

func TestMergeIsIdempotent(t *testing.T) {
	existing := types.Series{priceBar(0, 100), priceBar(1, 101)}
	window := types.Series{priceBar(1, 101), priceBar(2, 102), priceBar(3, 103)}

	once := Merge(existing, window)
	twice := Merge(once, window)

	assert.Equal(t, once, twice)
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	existing := types.Series{factorBar(0, map[string]float64{"a": 1})}
	window := types.Series{factorBar(1, map[string]float64{})}

	merged := Merge(existing, window)
	merged[0].Factors["a"] = 42

	assert.Equal(t, 1.0, existing[0].Factors["a"])
	assert.Equal(t, 1.0, merged[1].Factors["a"], "gap forward-filled from previous bar")
	assert.Empty(t, window[0].Factors)
}

func TestForwardFillLeavesLeadingGaps(t *testing.T) {
	nan := math.NaN()
	s := types.Series{priceBar(0, nan), priceBar(1, 5), priceBar(2, nan)}
	ForwardFill(s)
	assert.True(t, math.IsNaN(s[0].Close))
	assert.Equal(t, 5.0, s[2].Close)
}

func TestJoinColumnsFillsLateFactor(t *testing.T) {
	a := types.Series{
		factorBar(0, map[string]float64{"a": 1}),
		factorBar(1, map[string]float64{"a": 2}),
		factorBar(2, map[string]float64{"a": 3}),
	}
	b := types.Series{
		factorBar(1, map[string]float64{"b": 10}),
		factorBar(1, map[string]float64{"b": 99}),
	}

	joined := JoinColumns(a, b)

	require.Len(t, joined, 3)
	require.True(t, Valid(joined))
	assert.Equal(t, []string{"a", "b"}, joined.FactorNames())
	col := joined.Column("b")
	assert.True(t, math.IsNaN(col[0]))
	assert.Equal(t, 10.0, col[1])
	assert.Equal(t, 10.0, col[2])
}

func TestTrimEvictsOldBars(t *testing.T) {
	s := types.Series{priceBar(0, 1), priceBar(30, 2), priceBar(90, 3)}
	trimmed := Trim(s, time.Hour)
	assert.Equal(t, []float64{2, 3}, closes(trimmed))
	assert.Len(t, Trim(s, 0), 3)
}

func newTestStore(feed *fakeFeed, retention time.Duration) *Store {
	s := NewStore(feed, Config{
		Venue:         "binance",
		Timeframe:     types.TimeframeMinute,
		Factors:       []string{"vpin_500", "ofi"},
		BackfillDays:  80,
		EndOffsetDays: 1.5,
		Retention:     retention,
	})
	s.now = func() time.Time { return time.Date(2024, 5, 10, 6, 0, 0, 0, time.UTC) }
	return s
}

func TestWarmupRequestsBackfillRange(t *testing.T) {
	feed := &fakeFeed{ranges: map[string]types.Series{
		"vpin_500":  {factorBar(0, map[string]float64{"vpin_500": 0.4})},
		"ofi":       {factorBar(1, map[string]float64{"ofi": -1})},
		PriceFactor: {priceBar(0, 100), priceBar(1, 101)},
	}}
	s := newTestStore(feed, 0)

	require.NoError(t, s.Warmup(context.Background(), "BTC/USD"))

	require.Len(t, feed.rangeReqs, 3)
	for _, req := range feed.rangeReqs {
		assert.Equal(t, "BTCUSD", req.Symbol)
		assert.Equal(t, "2024-02-18", req.StartDate)
		assert.Equal(t, "2024-05-08", req.EndDate)
	}
	assert.Equal(t, PriceFactor, feed.rangeReqs[2].Factor)

	factors, ok := s.Factors("BTC/USD")
	require.True(t, ok)
	assert.Len(t, factors, 2)
	assert.Equal(t, 0.4, factors[1].Factors["vpin_500"])

	prices, _ := s.Prices("BTC/USD")
	assert.Equal(t, []float64{100, 101}, closes(prices))
}

func TestWarmupFailureWrapsFeedError(t *testing.T) {
	feed := &fakeFeed{rangeErr: errors.New("503")}
	err := newTestStore(feed, 0).Warmup(context.Background(), "BTC/USD")
	assert.ErrorIs(t, err, types.ErrFeed)
}

func TestUpdateFailedFetchLeavesHistoryUntouched(t *testing.T) {
	feed := &fakeFeed{
		ranges: map[string]types.Series{
			"vpin_500":  {factorBar(0, map[string]float64{"vpin_500": 1})},
			PriceFactor: {priceBar(0, 100)},
		},
		windows: map[string]types.Series{
			"factors": {factorBar(5, map[string]float64{"vpin_500": 3})},
		},
		priceErr: errors.New("timeout"),
	}
	s := newTestStore(feed, 0)
	require.NoError(t, s.Warmup(context.Background(), "BTC/USD"))
	before, _ := s.Factors("BTC/USD")

	err := s.Update(context.Background(), "BTC/USD", 50)
	require.ErrorIs(t, err, types.ErrFeed)

	after, _ := s.Factors("BTC/USD")
	require.Len(t, before, 1)
	assert.Len(t, after, 1)
	prices, _ := s.Prices("BTC/USD")
	assert.Equal(t, []float64{100}, closes(prices))
}

func TestUpdateMergesWindowsAndAppliesRetention(t *testing.T) {
	feed := &fakeFeed{
		ranges: map[string]types.Series{
			PriceFactor: {priceBar(0, 100), priceBar(1, 101)},
		},
		windows: map[string]types.Series{
			"factors":   {factorBar(120, map[string]float64{"vpin_500": 1})},
			PriceFactor: {priceBar(1, 500), priceBar(120, 120)},
		},
	}
	s := newTestStore(feed, time.Hour)
	require.NoError(t, s.Warmup(context.Background(), "BTC/USD"))
	require.NoError(t, s.UpdateAll(context.Background(), []string{"BTC/USD"}, 50))

	prices, _ := s.Prices("BTC/USD")
	assert.Equal(t, []float64{120}, closes(prices))

	require.Len(t, feed.windowReqs, 2)
	assert.Equal(t, 50, feed.windowReqs[0].Lookback)
	assert.Equal(t, []string{"vpin_500", "ofi"}, feed.windowReqs[0].Factors)
	assert.Equal(t, []string{PriceFactor}, feed.windowReqs[1].Factors)
}

func TestUpdateAllStopsAtFirstFailure(t *testing.T) {
	feed := &fakeFeed{priceErr: errors.New("down")}
	s := newTestStore(feed, 0)
	err := s.UpdateAll(context.Background(), []string{"BTC/USD", "ETH/USD"}, 50)
	require.ErrorIs(t, err, types.ErrFeed)
	assert.Len(t, feed.windowReqs, 2)
	_, ok := s.Factors("ETH/USD")
	assert.False(t, ok)
}
