package types

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFeedSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSD", FeedSymbol("BTC/USD"))
	assert.Equal(t, "ETHUSD", FeedSymbol("ETHUSD"))
}

func TestTimeframeDefaultLookback(t *testing.T) {
	assert.Equal(t, 2880, TimeframeMinute.DefaultLookback())
	assert.Equal(t, 48, TimeframeHour.DefaultLookback())
	assert.False(t, Timeframe("day").Valid())
}

func TestSeriesColumnMissingIsNaN(t *testing.T) {
	now := time.Now().UTC()
	s := Series{
		{Time: now, Factors: map[string]float64{"vpin_500": 1}},
		{Time: now.Add(time.Minute)},
	}
	col := s.Column("vpin_500")
	assert.Equal(t, 1.0, col[0])
	assert.True(t, math.IsNaN(col[1]))
	assert.Equal(t, []string{"vpin_500"}, s.FactorNames())
}

func TestBarCloneDoesNotAlias(t *testing.T) {
	b := Bar{Factors: map[string]float64{"a": 1}}
	c := b.Clone()
	c.Factors["a"] = 2
	assert.Equal(t, 1.0, b.Factors["a"])
}
