package signal

import (
	"context"
	"math"
	"testing"
	"time"

	"factor-trading-bot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource map[string]types.Series

func (s staticSource) Factors(symbol string) (types.Series, bool) {
	series, ok := s[symbol]
	return series, ok
}

// seriesWithSpike builds n bars of an alternating vpin_500 column whose last
// value is spike.
func seriesWithSpike(n int, spike float64) types.Series {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(types.Series, n)
	for i := range s {
		v := 1.0
		if i%2 == 0 {
			v = -1.0
		}
		if i == n-1 {
			v = spike
		}
		s[i] = types.NaNBar(t0.Add(time.Duration(i) * time.Minute))
		s[i].Factors = map[string]float64{"vpin_500": v, "ofi": float64(i)}
	}
	return s
}

func newEngine(src staticSource) *Engine {
	reg := NewRegistry(NewThresholdStrategy("macd", "vpin_500", 2))
	return NewEngine(src, reg, Config{Window: 10000, MinPeriods: 30})
}

func TestStandardizeProducesColumnPerFactor(t *testing.T) {
	frame := Standardize(seriesWithSpike(40, 1), 10000, 30)
	require.Len(t, frame.Index, 40)
	assert.Contains(t, frame.Columns, "vpin_500")
	assert.Contains(t, frame.Columns, "ofi")
	assert.True(t, math.IsNaN(frame.Columns["ofi"][28]))
	assert.False(t, math.IsNaN(frame.Columns["ofi"][29]))
}

func TestEvaluateBuysAboveThreshold(t *testing.T) {
	e := newEngine(staticSource{
		"BTC/USD": seriesWithSpike(200, 50),
		"ETH/USD": seriesWithSpike(200, 1),
	})

	sig, err := e.Evaluate(context.Background(), "BTC/USD", "macd")
	require.NoError(t, err)
	assert.Equal(t, types.Buy, sig)

	sig, err = e.Evaluate(context.Background(), "ETH/USD", "macd")
	require.NoError(t, err)
	assert.Equal(t, types.NoSignal, sig)
}

func TestEvaluateNoSignalBeforeMinPeriods(t *testing.T) {
	e := newEngine(staticSource{"BTC/USD": seriesWithSpike(10, 50)})
	sig, err := e.Evaluate(context.Background(), "BTC/USD", "macd")
	require.NoError(t, err)
	assert.Equal(t, types.NoSignal, sig)
}

func TestEvaluateUnknownStrategy(t *testing.T) {
	e := newEngine(staticSource{"BTC/USD": seriesWithSpike(50, 1)})
	_, err := e.Evaluate(context.Background(), "BTC/USD", "momentum")
	assert.ErrorIs(t, err, types.ErrUnknownStrategy)
}

func TestEvaluateMissingHistory(t *testing.T) {
	e := newEngine(staticSource{})
	_, err := e.Evaluate(context.Background(), "BTC/USD", "macd")
	assert.ErrorIs(t, err, types.ErrInsufficientHistory)
}

func TestThresholdIsStrict(t *testing.T) {
	s := NewThresholdStrategy("macd", "vpin_500", 2)
	frame := types.FactorFrame{Columns: map[string][]float64{"vpin_500": {0, 2}}}
	sig, v, err := s.Signal(frame)
	require.NoError(t, err)
	assert.Equal(t, types.NoSignal, sig)
	assert.Equal(t, 2.0, v)

	frame.Columns["vpin_500"] = []float64{math.NaN()}
	sig, _, err = s.Signal(frame)
	require.NoError(t, err)
	assert.Equal(t, types.NoSignal, sig)
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry(NewThresholdStrategy("b", "x", 1), NewThresholdStrategy("a", "x", 1))
	assert.Equal(t, []string{"a", "b"}, r.Names())
}
