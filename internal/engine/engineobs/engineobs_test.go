package engineobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"factor-trading-bot/internal/logger"
	"factor-trading-bot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	report *types.CycleReport
	err    error
	calls  int
}

func (s *stubEngine) Cycle(context.Context) (*types.CycleReport, error) {
	s.calls++
	return s.report, s.err
}

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(slog.NewJSONHandler(&buf, nil), false)
	t.Cleanup(func() { logger.SetOutput(slog.Default().Handler(), false) })
	return &buf
}

func TestWrapPassesThrough(t *testing.T) {
	buf := capture(t)
	want := &types.CycleReport{Outcomes: []types.SymbolOutcome{
		{Symbol: "BTC/USD", Action: types.ActionSubmitted},
		{Symbol: "ETH/USD", Action: types.ActionNoSignal},
	}}
	inner := &stubEngine{report: want}

	got, err := Wrap(inner).Cycle(context.Background())
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, 1, inner.calls)
	assert.Contains(t, buf.String(), "Decision cycle completed")
	assert.NotContains(t, buf.String(), "per-symbol errors")
}

func TestWrapWarnsOnPerSymbolErrors(t *testing.T) {
	buf := capture(t)
	report := &types.CycleReport{Outcomes: []types.SymbolOutcome{
		{Symbol: "BTC/USD", Action: types.ActionError, Reason: "timeout"},
	}}

	_, err := Wrap(&stubEngine{report: report}).Cycle(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Decision cycle had per-symbol errors")
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}

func TestWrapPropagatesAbort(t *testing.T) {
	buf := capture(t)
	boom := errors.New("update history: feed error")

	got, err := Wrap(&stubEngine{err: boom}).Cycle(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
	assert.Contains(t, buf.String(), "Decision cycle failed")
}
