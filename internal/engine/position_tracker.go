package engine

import (
	"sync"

	"factor-trading-bot/internal/types"
)

// PositionTracker keeps a local risk view per asset. It is updated once when
// a submission is accepted and once when a close succeeds; the broker stays
// the source of truth for whether a position is open. A nil tracker is a
// valid no-op.
type PositionTracker struct {
	mu     sync.RWMutex
	states map[string]*types.RiskState
}

func NewPositionTracker() *PositionTracker {
	return &PositionTracker{
		states: make(map[string]*types.RiskState),
	}
}

// State returns the symbol's risk state, neutral if nothing was recorded.
func (pt *PositionTracker) State(symbol string) types.RiskState {
	if pt == nil {
		return types.RiskState{}
	}
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	if s := pt.states[symbol]; s != nil {
		return *s
	}
	return types.RiskState{}
}

// Opened records an accepted bracket entry.
func (pt *PositionTracker) Opened(d types.SizingDecision) {
	if pt == nil {
		return
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.states[d.Symbol] = &types.RiskState{
		TakeProfit: d.TakeProfit,
		StopLoss:   d.StopLoss,
		EntryPrice: d.Close,
		Qty:        d.Qty,
		Side:       d.Side,
		Open:       true,
	}
}

// Mark refreshes the unrealized return of a tracked open position.
func (pt *PositionTracker) Mark(symbol string, currentReturn float64) {
	if pt == nil {
		return
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if s := pt.states[symbol]; s != nil && s.Open {
		s.CurrentReturn = currentReturn
	}
}

// Closed resets the symbol to neutral.
func (pt *PositionTracker) Closed(symbol string) {
	if pt == nil {
		return
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	delete(pt.states, symbol)
}

func (pt *PositionTracker) Reset() {
	if pt == nil {
		return
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.states = make(map[string]*types.RiskState)
}
