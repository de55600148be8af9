package feedobs

import (
	"context"
	"strings"

	"factor-trading-bot/internal/interfaces"
	"factor-trading-bot/internal/logger"
	"factor-trading-bot/internal/metrics"
	"factor-trading-bot/internal/trace"
	"factor-trading-bot/internal/types"
)

type observableFeed struct {
	feed interfaces.FactorFeed
}

var _ interfaces.FactorFeed = (*observableFeed)(nil)

// Wrap adds tracing, logging and call counts to a FactorFeed.
func Wrap(feed interfaces.FactorFeed) interfaces.FactorFeed {
	return &observableFeed{feed: feed}
}

func (of *observableFeed) HistoricalRange(ctx context.Context, req types.RangeRequest) (types.Series, error) {
	timer := logger.StartOperation(ctx, "feed.HistoricalRange",
		"factor", req.Factor,
		"symbol", req.Symbol,
		"start", req.StartDate,
		"end", req.EndDate)

	s, err := of.feed.HistoricalRange(timer.GetContext(), req)
	metrics.CallsTotal.WithLabelValues("feed", "HistoricalRange", metrics.Result(err)).Inc()
	if err != nil {
		timer.EndWithError(err)
		return nil, err
	}
	timer.End("bars", len(s))
	return s, nil
}

func (of *observableFeed) LiveWindow(ctx context.Context, req types.WindowRequest) (types.Series, error) {
	ctx, span := trace.StartSpan(ctx, "feed.LiveWindow")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching live window",
		"factors", strings.Join(req.Factors, ","),
		"symbol", req.Symbol,
		"lookback", req.Lookback)

	s, err := of.feed.LiveWindow(ctx, req)
	metrics.CallsTotal.WithLabelValues("feed", "LiveWindow", metrics.Result(err)).Inc()
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch live window", err,
			"factors", strings.Join(req.Factors, ","),
			"symbol", req.Symbol)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Live window fetched", "symbol", req.Symbol, "bars", len(s))
	return s, nil
}
