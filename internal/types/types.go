package types

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Timeframe is the bar resolution requested from the factor feed.
type Timeframe string

const (
	TimeframeMinute Timeframe = "min"
	TimeframeHour   Timeframe = "hour"
)

// BarDuration returns the wall-clock span of one bar.
func (tf Timeframe) BarDuration() time.Duration {
	if tf == TimeframeHour {
		return time.Hour
	}
	return time.Minute
}

// DefaultLookback is the number of bars covering two days at this timeframe.
func (tf Timeframe) DefaultLookback() int {
	return int((48 * time.Hour) / tf.BarDuration())
}

func (tf Timeframe) Valid() bool {
	return tf == TimeframeMinute || tf == TimeframeHour
}

// FeedSymbol converts a broker symbol ("BTC/USD") to the feed form ("BTCUSD").
func FeedSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type Asset struct {
	Symbol       string
	MinOrderSize float64
}

// Bar is one observation of a series. Missing values are NaN; a factor absent
// from Factors is treated the same as NaN.
type Bar struct {
	Time    time.Time
	Open    float64
	High    float64
	Low     float64
	Close   float64
	Volume  float64
	Factors map[string]float64
}

// NaNBar returns a bar at t with every price field missing.
func NaNBar(t time.Time) Bar {
	nan := math.NaN()
	return Bar{Time: t, Open: nan, High: nan, Low: nan, Close: nan, Volume: nan}
}

// Clone returns a deep copy of the bar.
func (b Bar) Clone() Bar {
	out := b
	if b.Factors != nil {
		out.Factors = make(map[string]float64, len(b.Factors))
		for k, v := range b.Factors {
			out.Factors[k] = v
		}
	}
	return out
}

// Series is an ordered sequence of bars keyed by timestamp.
type Series []Bar

// Last returns the most recent bar.
func (s Series) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Closes extracts the close column.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Column extracts one factor column; missing values are NaN.
func (s Series) Column(name string) []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		v, ok := b.Factors[name]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// FactorNames returns the sorted union of factor columns.
func (s Series) FactorNames() []string {
	seen := map[string]struct{}{}
	var names []string
	for _, b := range s {
		for k := range b.Factors {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// FactorFrame is the standardized, column-oriented view of a factor series.
type FactorFrame struct {
	Index   []time.Time
	Columns map[string][]float64
}

// Latest returns the most recent value of a column.
func (f FactorFrame) Latest(column string) (float64, bool) {
	col, ok := f.Columns[column]
	if !ok || len(col) == 0 {
		return math.NaN(), false
	}
	return col[len(col)-1], true
}

type AccountSnapshot struct {
	Cash float64
}

type Position struct {
	Symbol         string
	Qty            float64
	Side           string
	AvgEntryPrice  float64
	UnrealizedPLPC float64
}

// Signal is the discrete output of a strategy.
type Signal int

const (
	NoSignal Signal = 0
	Buy      Signal = 1
)

// SizingDecision is the only artifact passed from the sizer to the executor.
type SizingDecision struct {
	Symbol     string
	Side       Side
	Qty        float64
	Close      float64
	Volatility float64
	TakeProfit float64
	StopLoss   float64
}

// BracketOrderRequest is a market entry with attached take-profit and
// stop-loss legs.
type BracketOrderRequest struct {
	Symbol        string
	Qty           float64
	Side          Side
	TimeInForce   string
	TakeProfit    float64
	StopLoss      float64
	ClientOrderID string
}

type OrderConfirmation struct {
	OrderID       string `json:"order_id"`
	ClientOrderID string `json:"client_order_id"`
	Status        string `json:"status"`
}

type SubmitStatus string

const (
	SubmitAccepted SubmitStatus = "accepted"
	SubmitRejected SubmitStatus = "rejected"
)

type SubmitResult struct {
	Symbol       string
	Status       SubmitStatus
	Confirmation OrderConfirmation
	Err          error
}

// RiskState is the locally tracked view of one asset's position.
type RiskState struct {
	CurrentReturn float64
	TakeProfit    float64
	StopLoss      float64
	EntryPrice    float64
	Qty           float64
	Side          Side
	Open          bool
}

type CycleAction string

const (
	ActionHeldPosition CycleAction = "HELD_POSITION"
	ActionNoSignal     CycleAction = "NO_SIGNAL"
	ActionBelowMinimum CycleAction = "BELOW_MIN_ORDER_SIZE"
	ActionSubmitted    CycleAction = "SUBMITTED"
	ActionRejected     CycleAction = "REJECTED"
	ActionError        CycleAction = "ERROR"
)

type SymbolOutcome struct {
	Symbol string      `json:"symbol"`
	Action CycleAction `json:"action"`
	Reason string      `json:"reason,omitempty"`
}

type CycleReport struct {
	Started  time.Time       `json:"started"`
	Finished time.Time       `json:"finished"`
	Outcomes []SymbolOutcome `json:"outcomes"`
}

// Count returns how many symbols ended with the given action.
func (r *CycleReport) Count(a CycleAction) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Action == a {
			n++
		}
	}
	return n
}

// RangeRequest asks the feed for one factor over a calendar-day range.
type RangeRequest struct {
	Factor    string
	Venue     string
	Symbol    string // feed form
	Timeframe Timeframe
	StartDate string // YYYY-MM-DD
	EndDate   string // YYYY-MM-DD
}

// WindowRequest asks the feed for the trailing Lookback bars of one or more factors.
type WindowRequest struct {
	Factors   []string
	Venue     string
	Symbol    string // feed form
	Timeframe Timeframe
	Lookback  int
}
