package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"exchange-core/pkg/exchanges/common"
)

// Client is the spot REST client for one account on the venue.
type Client struct {
	transport   *Transport
	clock       *TimeSync
	instruments *InstrumentCache
}

func NewClient(cfg TransportConfig, creds Credentials) (*Client, error) {
	tr, err := NewTransport(cfg, creds)
	if err != nil {
		return nil, err
	}
	c := &Client{
		transport:   tr,
		instruments: NewInstrumentCache(),
	}
	c.clock = NewTimeSync(c.fetchServerTime)
	tr.SetClock(c.clock)
	return c, nil
}

func (c *Client) fetchServerTime(ctx context.Context) (time.Time, error) {
	data, err := c.transport.Execute(ctx, Request{Method: http.MethodGet, Path: "/api/v5/public/time"})
	if err != nil {
		return time.Time{}, err
	}
	var rows []struct {
		TS string `json:"ts"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return time.Time{}, fmt.Errorf("decode server time: %w", err)
	}
	if len(rows) == 0 {
		return time.Time{}, fmt.Errorf("server time: empty response")
	}
	ms, err := strconv.ParseInt(rows[0].TS, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse server time %q: %w", rows[0].TS, err)
	}
	return time.UnixMilli(ms), nil
}

// Ping issues the unauthenticated server-time call. Used as the public
// probe during connection testing.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.fetchServerTime(ctx)
	return err
}

// SyncClock measures the venue clock offset used for signing timestamps.
func (c *Client) SyncClock(ctx context.Context) error {
	return c.clock.Sync(ctx)
}

// GetBalance fetches the account's trading balance.
func (c *Client) GetBalance(ctx context.Context) (common.Balance, error) {
	data, err := c.transport.Execute(ctx, Request{
		Method:  http.MethodGet,
		Path:    "/api/v5/account/balance",
		Private: true,
	})
	if err != nil {
		return common.Balance{}, err
	}

	var rows []struct {
		Details []struct {
			Ccy      string `json:"ccy"`
			AvailBal string `json:"availBal"`
			Frozen   string `json:"frozenBal"`
			Eq       string `json:"eq"`
		} `json:"details"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return common.Balance{}, fmt.Errorf("decode balance: %w", err)
	}

	bal := common.Balance{Assets: make(map[string]common.Asset), FetchedAt: time.Now()}
	for _, row := range rows {
		for _, d := range row.Details {
			if d.Ccy == "" {
				continue
			}
			free := parseF(d.AvailBal)
			used := parseF(d.Frozen)
			total := parseF(d.Eq)
			if total == 0 {
				total = free + used
			}
			bal.Assets[d.Ccy] = common.Asset{Free: free, Used: used, Total: total}
		}
	}
	return bal, nil
}

// ResolveInstrument normalizes symbol and checks it against the cached
// instrument listing, loading the listing on first use.
func (c *Client) ResolveInstrument(ctx context.Context, symbol string) (string, error) {
	if !c.instruments.Loaded() {
		list, err := c.Instruments(ctx)
		if err != nil {
			return "", err
		}
		c.instruments.Put(list)
	}
	return c.instruments.Resolve(symbol)
}

// Instruments fetches the venue's spot instrument listing.
func (c *Client) Instruments(ctx context.Context) ([]common.Instrument, error) {
	data, err := c.transport.Execute(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/v5/public/instruments?instType=SPOT",
	})
	if err != nil {
		return nil, err
	}
	var rows []struct {
		InstID   string `json:"instId"`
		BaseCcy  string `json:"baseCcy"`
		QuoteCcy string `json:"quoteCcy"`
		MinSz    string `json:"minSz"`
		State    string `json:"state"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode instruments: %w", err)
	}
	out := make([]common.Instrument, 0, len(rows))
	for _, r := range rows {
		out = append(out, common.Instrument{
			InstID:   r.InstID,
			BaseCcy:  r.BaseCcy,
			QuoteCcy: r.QuoteCcy,
			MinSize:  parseF(r.MinSz),
			State:    r.State,
		})
	}
	return out, nil
}

// GetTicker fetches the latest market snapshot for symbol.
func (c *Client) GetTicker(ctx context.Context, symbol string) (common.Ticker, error) {
	instID, err := c.ResolveInstrument(ctx, symbol)
	if err != nil {
		return common.Ticker{}, err
	}
	data, err := c.transport.Execute(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/v5/market/ticker?instId=" + instID,
	})
	if err != nil {
		return common.Ticker{}, err
	}
	var rows []struct {
		InstID  string `json:"instId"`
		Last    string `json:"last"`
		BidPx   string `json:"bidPx"`
		AskPx   string `json:"askPx"`
		High24h string `json:"high24h"`
		Low24h  string `json:"low24h"`
		Vol24h  string `json:"vol24h"`
		TS      string `json:"ts"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return common.Ticker{}, fmt.Errorf("decode ticker: %w", err)
	}
	if len(rows) == 0 {
		return common.Ticker{}, common.NewSymbolNotFoundError(symbol, nil)
	}
	r := rows[0]
	ms, _ := strconv.ParseInt(r.TS, 10, 64)
	return common.Ticker{
		Symbol:    symbol,
		InstID:    r.InstID,
		Last:      parseF(r.Last),
		Bid:       parseF(r.BidPx),
		Ask:       parseF(r.AskPx),
		High:      parseF(r.High24h),
		Low:       parseF(r.Low24h),
		Volume:    parseF(r.Vol24h),
		Timestamp: time.UnixMilli(ms),
	}, nil
}

// GetCandles fetches up to limit OHLCV candles for symbol at the given bar
// (e.g. "1m", "1H"). Candles are returned oldest first.
func (c *Client) GetCandles(ctx context.Context, symbol, bar string, limit int) ([]common.Candle, error) {
	instID, err := c.ResolveInstrument(ctx, symbol)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/api/v5/market/candles?instId=%s&bar=%s", instID, bar)
	if limit > 0 {
		path += fmt.Sprintf("&limit=%d", limit)
	}
	data, err := c.transport.Execute(ctx, Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	var rows [][]string
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode candles: %w", err)
	}
	// The venue returns newest first.
	out := make([]common.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		if len(r) < 6 {
			continue
		}
		ms, _ := strconv.ParseInt(r[0], 10, 64)
		out = append(out, common.Candle{
			Timestamp: time.UnixMilli(ms),
			Open:      parseF(r[1]),
			High:      parseF(r[2]),
			Low:       parseF(r[3]),
			Close:     parseF(r[4]),
			Volume:    parseF(r[5]),
		})
	}
	return out, nil
}

// PlaceOrder submits a spot order and returns the venue ack.
func (c *Client) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	instID, err := c.ResolveInstrument(ctx, req.Symbol)
	if err != nil {
		return common.OrderResult{}, err
	}

	payload := map[string]string{
		"instId":  instID,
		"tdMode":  "cash",
		"side":    string(req.Side),
		"ordType": string(req.Type),
		"sz":      strconv.FormatFloat(req.Amount, 'f', -1, 64),
	}
	if req.Type == common.OrderTypeLimit {
		payload["px"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
	}
	if req.ClientID != "" {
		payload["clOrdId"] = req.ClientID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return common.OrderResult{}, fmt.Errorf("encode order: %w", err)
	}

	data, err := c.transport.Execute(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/api/v5/trade/order",
		Body:    string(body),
		Private: true,
	})
	if err != nil {
		return common.OrderResult{}, err
	}

	var rows []struct {
		OrdID string `json:"ordId"`
		SCode string `json:"sCode"`
		SMsg  string `json:"sMsg"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return common.OrderResult{}, fmt.Errorf("decode order ack: %w", err)
	}
	if len(rows) == 0 {
		return common.OrderResult{}, fmt.Errorf("order ack: empty response")
	}
	r := rows[0]
	if r.SCode != "" && r.SCode != "0" {
		return common.OrderResult{}, common.ClassifyProviderCode(0, r.SCode, r.SMsg)
	}
	return common.OrderResult{ProviderOrderID: r.OrdID, Status: common.StatusPending}, nil
}

func parseF(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
