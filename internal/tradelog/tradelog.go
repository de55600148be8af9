// Package tradelog is an append-only JSON-lines journal of orders and cycle
// decisions, one file per UTC day. It is never read back by the trader.
package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const ext = ".jsonl"

var mu sync.Mutex

type OrderEntry struct {
	Time          string  `json:"time"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Status        string  `json:"status"`
	OrderID       string  `json:"order_id,omitempty"`
	ClientOrderID string  `json:"client_order_id"`
	Qty           float64 `json:"qty"`
	Price         float64 `json:"price"`
	TakeProfit    float64 `json:"take_profit"`
	StopLoss      float64 `json:"stop_loss"`
	Volatility    float64 `json:"volatility"`
	Error         string  `json:"error,omitempty"`
}

type DecisionEntry struct {
	Time     string `json:"time"`
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy"`
	Action   string `json:"action"`
	Reason   string `json:"reason,omitempty"`
}

type CloseEntry struct {
	Time    string `json:"time"`
	Symbol  string `json:"symbol"`
	OrderID string `json:"order_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func dailyFilepath(kind string, t time.Time) string {
	return filepath.Join(logDir(), kind, t.UTC().Format("2006-01-02")+ext)
}

func AppendOrder(e OrderEntry) error {
	now := time.Now().UTC()
	e.Time = now.Format(time.RFC3339)
	return appendLine(dailyFilepath("orders", now), e)
}

func AppendDecision(e DecisionEntry) error {
	now := time.Now().UTC()
	e.Time = now.Format(time.RFC3339)
	return appendLine(dailyFilepath("decisions", now), e)
}

func AppendClose(e CloseEntry) error {
	now := time.Now().UTC()
	e.Time = now.Format(time.RFC3339)
	return appendLine(dailyFilepath("closes", now), e)
}

func appendLine(p string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips journal files last modified more than retentionDays
// ago and removes the originals. Per-file failures are skipped.
func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(logDir(), func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ext {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err == nil {
			_ = os.Remove(p)
		}
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	_, copyErr := io.Copy(gw, in)
	closeErr := gw.Close()
	if err := out.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}
