package signal

import (
	"context"
	"fmt"
	"math"
	"time"

	"factor-trading-bot/internal/logger"
	"factor-trading-bot/internal/ta"
	"factor-trading-bot/internal/types"
)

// FactorSource exposes stored factor history by symbol.
type FactorSource interface {
	Factors(symbol string) (types.Series, bool)
}

// Standardize converts every factor column into a rolling z-score over the
// trailing window. Values are NaN until minPeriods observations exist.
func Standardize(s types.Series, window, minPeriods int) types.FactorFrame {
	frame := types.FactorFrame{
		Index:   make([]time.Time, len(s)),
		Columns: make(map[string][]float64),
	}
	for i, b := range s {
		frame.Index[i] = b.Time
	}
	for _, name := range s.FactorNames() {
		frame.Columns[name] = ta.RollingZScore(s.Column(name), window, minPeriods)
	}
	return frame
}

type Config struct {
	Window     int
	MinPeriods int
}

// Engine evaluates named strategies against standardized factor history.
type Engine struct {
	source   FactorSource
	registry *Registry
	cfg      Config
}

func NewEngine(source FactorSource, registry *Registry, cfg Config) *Engine {
	return &Engine{source: source, registry: registry, cfg: cfg}
}

// Evaluate returns the signal of strategyName for symbol's latest bar.
func (e *Engine) Evaluate(ctx context.Context, symbol, strategyName string) (types.Signal, error) {
	strategy, err := e.registry.Lookup(strategyName)
	if err != nil {
		return types.NoSignal, err
	}

	series, ok := e.source.Factors(symbol)
	if !ok || len(series) == 0 {
		return types.NoSignal, fmt.Errorf("%w: no factor history for %s", types.ErrInsufficientHistory, symbol)
	}

	frame := Standardize(series, e.cfg.Window, e.cfg.MinPeriods)
	sig, value, err := strategy.Signal(frame)
	if err != nil {
		return types.NoSignal, fmt.Errorf("strategy %s on %s: %w", strategyName, symbol, err)
	}

	logger.Decision(ctx, symbol, strategyName, int(sig), value, "bars", len(series))
	return sig, nil
}

// ThresholdStrategy buys when the latest standardized value of one feature is
// strictly above a threshold.
type ThresholdStrategy struct {
	name      string
	feature   string
	threshold float64
}

func NewThresholdStrategy(name, feature string, threshold float64) *ThresholdStrategy {
	return &ThresholdStrategy{name: name, feature: feature, threshold: threshold}
}

func (s *ThresholdStrategy) Name() string { return s.name }

func (s *ThresholdStrategy) Signal(frame types.FactorFrame) (types.Signal, float64, error) {
	v, ok := frame.Latest(s.feature)
	if !ok {
		return types.NoSignal, math.NaN(), fmt.Errorf("%w: feature %s not present", types.ErrInsufficientHistory, s.feature)
	}
	if !math.IsNaN(v) && v > s.threshold {
		return types.Buy, v, nil
	}
	return types.NoSignal, v, nil
}
