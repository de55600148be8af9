package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"factor-trading-bot/internal/interfaces"
	"factor-trading-bot/internal/logger"
	"factor-trading-bot/internal/types"
)

// PriceFactor is the pseudo-factor name the feed serves OHLCV bars under.
const PriceFactor = "price"

const dateLayout = "2006-01-02"

type Config struct {
	Venue         string
	Timeframe     types.Timeframe
	Factors       []string
	BackfillDays  int
	EndOffsetDays float64
	// Retention bounds each series relative to its newest bar; zero keeps everything.
	Retention time.Duration
}

type entry struct {
	factors types.Series
	prices  types.Series
}

// Store holds per-symbol factor and price history.
type Store struct {
	feed interfaces.FactorFeed
	cfg  Config
	now  func() time.Time

	mu      sync.RWMutex
	symbols map[string]*entry
}

func NewStore(feed interfaces.FactorFeed, cfg Config) *Store {
	return &Store{
		feed:    feed,
		cfg:     cfg,
		now:     time.Now,
		symbols: make(map[string]*entry),
	}
}

// Warmup replaces the symbol's history with a bulk backfill of every
// configured factor and the price series.
func (s *Store) Warmup(ctx context.Context, symbol string) error {
	end := s.now().UTC().Add(-time.Duration(s.cfg.EndOffsetDays * float64(24*time.Hour)))
	start := end.AddDate(0, 0, -s.cfg.BackfillDays)

	req := types.RangeRequest{
		Venue:     s.cfg.Venue,
		Symbol:    types.FeedSymbol(symbol),
		Timeframe: s.cfg.Timeframe,
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
	}

	parts := make([]types.Series, 0, len(s.cfg.Factors))
	for _, factor := range s.cfg.Factors {
		req.Factor = factor
		part, err := s.feed.HistoricalRange(ctx, req)
		if err != nil {
			return fmt.Errorf("%w: backfill %s for %s: %v", types.ErrFeed, factor, symbol, err)
		}
		parts = append(parts, part)
	}

	req.Factor = PriceFactor
	prices, err := s.feed.HistoricalRange(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: backfill prices for %s: %v", types.ErrFeed, symbol, err)
	}

	factors := Trim(JoinColumns(parts...), s.cfg.Retention)
	priceSeries := Merge(nil, prices)
	priceSeries = Trim(priceSeries, s.cfg.Retention)

	s.mu.Lock()
	s.symbols[symbol] = &entry{factors: factors, prices: priceSeries}
	s.mu.Unlock()

	logger.Debug(ctx, "History warmed up",
		"symbol", symbol,
		"start", req.StartDate,
		"end", req.EndDate,
		"factor_bars", len(factors),
		"price_bars", len(priceSeries))
	return nil
}

// Update merges the trailing lookback bars into the symbol's history. Both
// windows are fetched before either merge so a failed fetch leaves the
// stored series untouched.
func (s *Store) Update(ctx context.Context, symbol string, lookback int) error {
	base := types.WindowRequest{
		Venue:     s.cfg.Venue,
		Symbol:    types.FeedSymbol(symbol),
		Timeframe: s.cfg.Timeframe,
		Lookback:  lookback,
	}

	factorReq := base
	factorReq.Factors = s.cfg.Factors
	factorWin, err := s.feed.LiveWindow(ctx, factorReq)
	if err != nil {
		return fmt.Errorf("%w: live factors for %s: %v", types.ErrFeed, symbol, err)
	}

	priceReq := base
	priceReq.Factors = []string{PriceFactor}
	priceWin, err := s.feed.LiveWindow(ctx, priceReq)
	if err != nil {
		return fmt.Errorf("%w: live prices for %s: %v", types.ErrFeed, symbol, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.symbols[symbol]
	if !ok {
		e = &entry{}
		s.symbols[symbol] = e
	}
	e.factors = Trim(Merge(e.factors, factorWin), s.cfg.Retention)
	e.prices = Trim(Merge(e.prices, priceWin), s.cfg.Retention)
	return nil
}

// UpdateAll updates symbols in order and stops at the first failure.
func (s *Store) UpdateAll(ctx context.Context, symbols []string, lookback int) error {
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Update(ctx, symbol, lookback); err != nil {
			return err
		}
	}
	return nil
}

// Factors returns the symbol's factor series. Callers must not modify it;
// merges replace the stored slice rather than writing through it.
func (s *Store) Factors(symbol string) (types.Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.symbols[symbol]
	if !ok {
		return nil, false
	}
	return e.factors, true
}

// Prices returns the symbol's price series under the same contract as Factors.
func (s *Store) Prices(symbol string) (types.Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.symbols[symbol]
	if !ok {
		return nil, false
	}
	return e.prices, true
}

// Symbols lists symbols with stored history.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.symbols))
	for k := range s.symbols {
		out = append(out, k)
	}
	return out
}
