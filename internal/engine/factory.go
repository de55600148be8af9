package engine

import (
	"factor-trading-bot/internal/history"
	"factor-trading-bot/internal/interfaces"
	"factor-trading-bot/internal/risk"
	"factor-trading-bot/internal/signal"
	"factor-trading-bot/internal/types"
)

func New(cfg Config, brk interfaces.Broker, hs *history.Store, signals *signal.Engine, sz *risk.Sizer, executor *OrderExecutor, tracker *PositionTracker, assets []types.Asset) interfaces.Engine {
	return newEngine(cfg, brk, hs, signals, sz, executor, tracker, assets)
}
