package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendOrderWritesJSONLine(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)

	require.NoError(t, AppendOrder(OrderEntry{Symbol: "BTC/USD", Side: "buy", Status: "accepted", Qty: 0.5, OrderID: "o-1"}))
	require.NoError(t, AppendOrder(OrderEntry{Symbol: "ETH/USD", Side: "buy", Status: "rejected", Error: "insufficient buying power"}))

	b, err := os.ReadFile(dailyFilepath("orders", time.Now()))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)

	var first OrderEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "o-1", first.OrderID)
	assert.NotEmpty(t, first.Time)
	assert.Contains(t, lines[1], "insufficient buying power")
}

func TestCompressOlder(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)

	require.NoError(t, AppendDecision(DecisionEntry{Symbol: "BTC/USD", Strategy: "macd", Action: "NO_SIGNAL"}))
	p := dailyFilepath("decisions", time.Now())
	old := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(p, old, old))

	require.NoError(t, CompressOlder(7))

	_, err := os.Stat(p)
	assert.True(t, os.IsNotExist(err))

	f, err := os.Open(p + ".gz")
	require.NoError(t, err)
	defer f.Close()
	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	body, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Contains(t, string(body), "NO_SIGNAL")
}

func TestCompressOlderKeepsRecentFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)
	require.NoError(t, AppendClose(CloseEntry{Symbol: "BTC/USD"}))

	require.NoError(t, CompressOlder(7))
	_, err := os.Stat(filepath.Join(dir, "closes", time.Now().UTC().Format("2006-01-02")+ext))
	assert.NoError(t, err)
}
