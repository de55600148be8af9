package interfaces

import (
	"context"

	"factor-trading-bot/internal/types"
)

// Broker is the brokerage capability set the engine consumes. Symbols are in
// slash-delimited form ("BTC/USD").
type Broker interface {
	// Account returns the current cash balance.
	Account(ctx context.Context) (types.AccountSnapshot, error)

	// TradableAssets lists active, tradable assets of one asset class.
	TradableAssets(ctx context.Context, assetClass string) ([]types.Asset, error)

	// OpenPosition returns the open position for symbol. found is false when
	// no position exists; err is reserved for failed lookups.
	OpenPosition(ctx context.Context, symbol string) (pos types.Position, found bool, err error)

	// AllPositions returns every open position.
	AllPositions(ctx context.Context) ([]types.Position, error)

	// SubmitBracketOrder places a market entry with take-profit and stop-loss legs.
	SubmitBracketOrder(ctx context.Context, req types.BracketOrderRequest) (types.OrderConfirmation, error)

	// ClosePosition liquidates the position in symbol.
	ClosePosition(ctx context.Context, symbol string) (types.OrderConfirmation, error)

	// CloseAllPositions liquidates every open position.
	CloseAllPositions(ctx context.Context) error
}
