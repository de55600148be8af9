package interfaces

import (
	"context"

	"factor-trading-bot/internal/types"
)

// Engine runs one decision cycle across the tradable universe. A non-nil
// error means the cycle aborted. Account and feed failures abort before any
// symbol is processed and return a nil report; cancellation between symbols
// returns the outcomes recorded so far together with ctx.Err().
type Engine interface {
	Cycle(ctx context.Context) (*types.CycleReport, error)
}
