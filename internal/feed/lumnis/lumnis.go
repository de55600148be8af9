package lumnis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"factor-trading-bot/internal/interfaces"
	"factor-trading-bot/internal/types"
)

type Params struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	RequestsPerBurst int
	Refill           time.Duration
}

// Client is a FactorFeed backed by the Lumnis factor REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *RateLimiter
}

var _ interfaces.FactorFeed = (*Client)(nil)

func New(p Params) *Client {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(p.BaseURL, "/"),
		apiKey:     p.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    NewRateLimiter(p.RequestsPerBurst, p.Refill),
	}
}

// frame is a pandas split-orient table.
type frame struct {
	Columns []string          `json:"columns"`
	Index   []json.RawMessage `json:"index"`
	Data    [][]*float64      `json:"data"`
}

func (c *Client) HistoricalRange(ctx context.Context, req types.RangeRequest) (types.Series, error) {
	q := url.Values{}
	q.Set("factor", req.Factor)
	q.Set("exchange", req.Venue)
	q.Set("asset", req.Symbol)
	q.Set("timeframe", string(req.Timeframe))
	q.Set("start", req.StartDate)
	q.Set("end", req.EndDate)
	return c.fetch(ctx, "/historical", q)
}

func (c *Client) LiveWindow(ctx context.Context, req types.WindowRequest) (types.Series, error) {
	q := url.Values{}
	q.Set("factors", strings.Join(req.Factors, ","))
	q.Set("exchange", req.Venue)
	q.Set("asset", req.Symbol)
	q.Set("timeframe", string(req.Timeframe))
	q.Set("lookback", strconv.Itoa(req.Lookback))
	return c.fetch(ctx, "/live", q)
}

func (c *Client) fetch(ctx context.Context, path string, q url.Values) (types.Series, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lumnis %s returned status %d: %s", path, resp.StatusCode, bytes.TrimSpace(data))
	}

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode lumnis %s: %w", path, err)
	}
	return f.toSeries()
}

func (f frame) toSeries() (types.Series, error) {
	if len(f.Index) != len(f.Data) {
		return nil, fmt.Errorf("lumnis frame has %d index entries and %d rows", len(f.Index), len(f.Data))
	}

	out := make(types.Series, 0, len(f.Data))
	for i, row := range f.Data {
		ts, err := parseIndex(f.Index[i])
		if err != nil {
			return nil, err
		}
		bar := types.NaNBar(ts)
		for j, col := range f.Columns {
			v := math.NaN()
			if j < len(row) && row[j] != nil {
				v = *row[j]
			}
			switch col {
			case "open":
				bar.Open = v
			case "high":
				bar.High = v
			case "low":
				bar.Low = v
			case "close":
				bar.Close = v
			case "volume":
				bar.Volume = v
			default:
				if bar.Factors == nil {
					bar.Factors = make(map[string]float64, len(f.Columns))
				}
				bar.Factors[col] = v
			}
		}
		out = append(out, bar)
	}
	return out, nil
}

var indexLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// parseIndex accepts epoch milliseconds or a timestamp string; results are UTC.
func parseIndex(raw json.RawMessage) (time.Time, error) {
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("lumnis index %s: %w", raw, err)
	}
	for _, layout := range indexLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("lumnis index %q: unrecognised timestamp", s)
}
