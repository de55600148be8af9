package interfaces

import (
	"context"

	"factor-trading-bot/internal/types"
)

// FactorFeed supplies historical and live factor/price series. Symbols are in
// slash-stripped form ("BTCUSD").
type FactorFeed interface {
	HistoricalRange(ctx context.Context, req types.RangeRequest) (types.Series, error)
	LiveWindow(ctx context.Context, req types.WindowRequest) (types.Series, error)
}
