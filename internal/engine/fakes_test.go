package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"factor-trading-bot/internal/types"
)

type fakeBroker struct {
	mu sync.Mutex

	cash       float64
	accountErr error
	positions  map[string]types.Position
	lookupErr  map[string]error
	submitErr  map[string]error
	closeErr   map[string]error
	listErr    error
	bulkErr    error

	submitted  []types.BracketOrderRequest
	closed     []string
	bulkCloses int
}

func newFakeBroker(cash float64) *fakeBroker {
	return &fakeBroker{
		cash:      cash,
		positions: map[string]types.Position{},
		lookupErr: map[string]error{},
		submitErr: map[string]error{},
		closeErr:  map[string]error{},
	}
}

func (b *fakeBroker) Account(context.Context) (types.AccountSnapshot, error) {
	if b.accountErr != nil {
		return types.AccountSnapshot{}, b.accountErr
	}
	return types.AccountSnapshot{Cash: b.cash}, nil
}

func (b *fakeBroker) TradableAssets(context.Context, string) ([]types.Asset, error) {
	return nil, errors.New("not used")
}

func (b *fakeBroker) OpenPosition(_ context.Context, symbol string) (types.Position, bool, error) {
	if err := b.lookupErr[symbol]; err != nil {
		return types.Position{}, false, err
	}
	p, ok := b.positions[symbol]
	return p, ok, nil
}

func (b *fakeBroker) AllPositions(context.Context) ([]types.Position, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	var out []types.Position
	for _, p := range b.positions {
		out = append(out, p)
	}
	return out, nil
}

func (b *fakeBroker) SubmitBracketOrder(_ context.Context, req types.BracketOrderRequest) (types.OrderConfirmation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitted = append(b.submitted, req)
	if err := b.submitErr[req.Symbol]; err != nil {
		return types.OrderConfirmation{}, err
	}
	return types.OrderConfirmation{OrderID: "ord-" + req.Symbol, Status: "accepted"}, nil
}

func (b *fakeBroker) ClosePosition(_ context.Context, symbol string) (types.OrderConfirmation, error) {
	b.closed = append(b.closed, symbol)
	if err := b.closeErr[symbol]; err != nil {
		return types.OrderConfirmation{}, err
	}
	return types.OrderConfirmation{OrderID: "close-" + symbol}, nil
}

func (b *fakeBroker) CloseAllPositions(context.Context) error {
	b.bulkCloses++
	return b.bulkErr
}

type fakeHistory struct {
	updateErr error
	prices    map[string]types.Series
	updates   int
	lookback  int
}

func (h *fakeHistory) UpdateAll(_ context.Context, _ []string, lookback int) error {
	h.updates++
	h.lookback = lookback
	return h.updateErr
}

func (h *fakeHistory) Prices(symbol string) (types.Series, bool) {
	s, ok := h.prices[symbol]
	return s, ok
}

type fakeEvaluator struct {
	signals map[string]types.Signal
	errs    map[string]error
	calls   []string
}

func (f *fakeEvaluator) Evaluate(_ context.Context, symbol, _ string) (types.Signal, error) {
	f.calls = append(f.calls, symbol)
	if err := f.errs[symbol]; err != nil {
		return types.NoSignal, err
	}
	return f.signals[symbol], nil
}

type fakeSizer struct {
	below map[string]bool
	errs  map[string]error
	n     int
}

func (f *fakeSizer) Size(_ context.Context, asset types.Asset, _ types.AccountSnapshot, n int, _ types.Series) (types.SizingDecision, bool, error) {
	f.n = n
	if err := f.errs[asset.Symbol]; err != nil {
		return types.SizingDecision{}, false, err
	}
	if f.below[asset.Symbol] {
		return types.SizingDecision{}, false, nil
	}
	return types.SizingDecision{
		Symbol:     asset.Symbol,
		Side:       types.SideBuy,
		Qty:        1,
		Close:      100,
		Volatility: 0.02,
		TakeProfit: 104,
		StopLoss:   96,
	}, true, nil
}

// fakeClock advances its own time whenever a timer is requested, so a
// scheduler loop runs instantly.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func useTempJournal(t *testing.T) {
	t.Helper()
	t.Setenv("TRADER_LOG_DIR", t.TempDir())
}
