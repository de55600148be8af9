package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"factor-trading-bot/internal/interfaces"
	"factor-trading-bot/internal/types"

	"github.com/shopspring/decimal"
)

const (
	PaperURL = "https://paper-api.alpaca.markets"
	LiveURL  = "https://api.alpaca.markets"
)

type Params struct {
	Paper   bool
	BaseURL string // overrides the paper/live default when set
	KeyID   string
	Secret  string
	Timeout time.Duration
}

// Alpaca is a Broker backed by the Alpaca trading REST API (v2).
type Alpaca struct {
	baseURL    string
	keyID      string
	secret     string
	httpClient *http.Client

	// symbols maps the slash-stripped form Alpaca reports on positions back
	// to the slash form used by callers.
	mu      sync.RWMutex
	symbols map[string]string
}

// cryptoQuotes are tried longest first when splitting an unknown crypto pair.
var cryptoQuotes = []string{"USDT", "USDC", "USD", "BTC"}

var _ interfaces.Broker = (*Alpaca)(nil)

func New(p Params) *Alpaca {
	base := p.BaseURL
	if base == "" {
		base = LiveURL
		if p.Paper {
			base = PaperURL
		}
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Alpaca{
		baseURL:    strings.TrimRight(base, "/"),
		keyID:      p.KeyID,
		secret:     p.Secret,
		httpClient: &http.Client{Timeout: timeout},
		symbols:    make(map[string]string),
	}
}

// APIError is a non-2xx response from Alpaca.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("alpaca: status %d", e.StatusCode)
	}
	return fmt.Sprintf("alpaca: status %d: %s", e.StatusCode, e.Message)
}

type accountResp struct {
	Cash decimal.Decimal `json:"cash"`
}

type assetResp struct {
	Symbol       string              `json:"symbol"`
	Class        string              `json:"class"`
	Status       string              `json:"status"`
	Tradable     bool                `json:"tradable"`
	MinOrderSize decimal.NullDecimal `json:"min_order_size"`
}

type positionResp struct {
	Symbol         string          `json:"symbol"`
	AssetClass     string          `json:"asset_class"`
	Qty            decimal.Decimal `json:"qty"`
	Side           string          `json:"side"`
	AvgEntryPrice  decimal.Decimal `json:"avg_entry_price"`
	UnrealizedPLPC decimal.Decimal `json:"unrealized_plpc"`
}

type orderResp struct {
	ID            string `json:"id"`
	ClientOrderID string `json:"client_order_id"`
	Status        string `json:"status"`
}

type takeProfitLeg struct {
	LimitPrice decimal.Decimal `json:"limit_price"`
}

type stopLossLeg struct {
	StopPrice decimal.Decimal `json:"stop_price"`
}

type orderReq struct {
	Symbol        string          `json:"symbol"`
	Qty           decimal.Decimal `json:"qty"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	TimeInForce   string          `json:"time_in_force"`
	OrderClass    string          `json:"order_class"`
	TakeProfit    takeProfitLeg   `json:"take_profit"`
	StopLoss      stopLossLeg     `json:"stop_loss"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
}

func (a *Alpaca) Account(ctx context.Context) (types.AccountSnapshot, error) {
	var acct accountResp
	if err := a.do(ctx, http.MethodGet, "/v2/account", nil, &acct); err != nil {
		return types.AccountSnapshot{}, err
	}
	return types.AccountSnapshot{Cash: acct.Cash.InexactFloat64()}, nil
}

func (a *Alpaca) TradableAssets(ctx context.Context, assetClass string) ([]types.Asset, error) {
	q := url.Values{}
	q.Set("status", "active")
	q.Set("asset_class", assetClass)

	var raw []assetResp
	if err := a.do(ctx, http.MethodGet, "/v2/assets?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}

	out := make([]types.Asset, 0, len(raw))
	for _, r := range raw {
		if !r.Tradable || r.Status != "active" {
			continue
		}
		a.remember(r.Symbol)
		asset := types.Asset{Symbol: r.Symbol}
		if r.MinOrderSize.Valid {
			asset.MinOrderSize = r.MinOrderSize.Decimal.InexactFloat64()
		}
		out = append(out, asset)
	}
	return out, nil
}

func (a *Alpaca) OpenPosition(ctx context.Context, symbol string) (types.Position, bool, error) {
	var raw positionResp
	err := a.do(ctx, http.MethodGet, "/v2/positions/"+url.PathEscape(types.FeedSymbol(symbol)), nil, &raw)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return types.Position{}, false, nil
	}
	if err != nil {
		return types.Position{}, false, err
	}
	a.remember(symbol)
	pos := raw.toPosition()
	pos.Symbol = symbol
	return pos, true, nil
}

func (a *Alpaca) AllPositions(ctx context.Context) ([]types.Position, error) {
	var raw []positionResp
	if err := a.do(ctx, http.MethodGet, "/v2/positions", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]types.Position, len(raw))
	for i, r := range raw {
		out[i] = r.toPosition()
		out[i].Symbol = a.brokerSymbol(r.Symbol, r.AssetClass)
	}
	return out, nil
}

func (a *Alpaca) remember(symbol string) {
	a.mu.Lock()
	a.symbols[types.FeedSymbol(symbol)] = symbol
	a.mu.Unlock()
}

// brokerSymbol converts a position symbol ("BTCUSD") to slash form. Symbols
// seen in the catalog or a lookup map exactly; other crypto pairs are split
// on a known quote currency. Equity symbols pass through.
func (a *Alpaca) brokerSymbol(raw, assetClass string) string {
	if strings.Contains(raw, "/") {
		return raw
	}
	a.mu.RLock()
	symbol, ok := a.symbols[raw]
	a.mu.RUnlock()
	if ok {
		return symbol
	}
	if assetClass == "crypto" {
		for _, quote := range cryptoQuotes {
			if len(raw) > len(quote) && strings.HasSuffix(raw, quote) {
				return raw[:len(raw)-len(quote)] + "/" + quote
			}
		}
	}
	return raw
}

func (a *Alpaca) SubmitBracketOrder(ctx context.Context, req types.BracketOrderRequest) (types.OrderConfirmation, error) {
	body := orderReq{
		Symbol:        req.Symbol,
		Qty:           FormatQty(req.Qty),
		Side:          string(req.Side),
		Type:          "market",
		TimeInForce:   req.TimeInForce,
		OrderClass:    "bracket",
		TakeProfit:    takeProfitLeg{LimitPrice: FormatPrice(req.TakeProfit)},
		StopLoss:      stopLossLeg{StopPrice: FormatPrice(req.StopLoss)},
		ClientOrderID: req.ClientOrderID,
	}
	if body.TimeInForce == "" {
		body.TimeInForce = "gtc"
	}

	var raw orderResp
	if err := a.do(ctx, http.MethodPost, "/v2/orders", body, &raw); err != nil {
		return types.OrderConfirmation{}, err
	}
	return raw.toConfirmation(), nil
}

func (a *Alpaca) ClosePosition(ctx context.Context, symbol string) (types.OrderConfirmation, error) {
	var raw orderResp
	if err := a.do(ctx, http.MethodDelete, "/v2/positions/"+url.PathEscape(types.FeedSymbol(symbol)), nil, &raw); err != nil {
		return types.OrderConfirmation{}, err
	}
	return raw.toConfirmation(), nil
}

func (a *Alpaca) CloseAllPositions(ctx context.Context) error {
	return a.do(ctx, http.MethodDelete, "/v2/positions", nil, nil)
}

func (r positionResp) toPosition() types.Position {
	return types.Position{
		Symbol:         r.Symbol,
		Qty:            r.Qty.InexactFloat64(),
		Side:           r.Side,
		AvgEntryPrice:  r.AvgEntryPrice.InexactFloat64(),
		UnrealizedPLPC: r.UnrealizedPLPC.InexactFloat64(),
	}
}

func (r orderResp) toConfirmation() types.OrderConfirmation {
	return types.OrderConfirmation{OrderID: r.ID, ClientOrderID: r.ClientOrderID, Status: r.Status}
}

// FormatQty truncates a quantity to the nine decimal places Alpaca accepts.
func FormatQty(q float64) decimal.Decimal {
	return decimal.NewFromFloat(q).Truncate(9)
}

// FormatPrice rounds to cents for prices of one or more and to six decimals
// below that.
func FormatPrice(p float64) decimal.Decimal {
	d := decimal.NewFromFloat(p)
	if d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return d.Round(2)
	}
	return d.Round(6)
}

func (a *Alpaca) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("APCA-API-KEY-ID", a.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", a.secret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
