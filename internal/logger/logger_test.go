package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, detailed bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}), detailed)
	t.Cleanup(func() { SetOutput(slog.Default().Handler(), false) })
	return &buf
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}

func TestDebugSuppressedWithoutDetailedLogging(t *testing.T) {
	buf := capture(t, false)
	Debug(context.Background(), "hidden")
	assert.Empty(t, buf.String())

	buf = capture(t, true)
	Debug(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "source")
}

func TestRiskEventFields(t *testing.T) {
	buf := capture(t, false)
	Risk(context.Background(), "BTC/USD", "CYCLE_ABORT_ALERT", "consecutive_aborts", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "RISK", rec["type"])
	assert.Equal(t, "BTC/USD", rec["symbol"])
	assert.Equal(t, "WARN", rec["level"])
	assert.EqualValues(t, 3, rec["consecutive_aborts"])
}

func TestErrorWithErrIncludesError(t *testing.T) {
	buf := capture(t, false)
	ErrorWithErr(context.Background(), "submit failed", errors.New("broker down"), "symbol", "ETH/USD")
	assert.Contains(t, buf.String(), "broker down")
	assert.Contains(t, buf.String(), "ETH/USD")
}
