package common

import "time"

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType denotes basic order types.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus normalizes venue status into a small set.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusFailed    OrderStatus = "failed"
)

// Asset is the free/used/total breakdown of one currency.
type Asset struct {
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

// Balance maps currency code to its asset breakdown. Simulated is set on
// every balance produced by the fallback generator so fabricated data can
// never pass for a live snapshot.
type Balance struct {
	Assets    map[string]Asset `json:"assets"`
	Simulated bool             `json:"simulated"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// Ticker is a point-in-time market snapshot for one instrument.
type Ticker struct {
	Symbol    string    `json:"symbol"`  // BASE/QUOTE form, e.g. BTC/USDT
	InstID    string    `json:"inst_id"` // venue instrument id, e.g. BTC-USDT
	Last      float64   `json:"last"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
	Simulated bool      `json:"simulated"`
}

// Candle is one OHLCV interval.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Instrument describes one tradable pair from the venue listing.
type Instrument struct {
	InstID    string
	BaseCcy   string
	QuoteCcy  string
	MinSize   float64
	State     string
}

// OrderRequest captures an order intent to be sent to the venue.
type OrderRequest struct {
	Symbol   string
	Side     Side
	Type     OrderType
	Amount   float64
	Price    float64 // required for limit orders
	ClientID string  // optional client order id
}

// OrderResult returns the venue ack.
type OrderResult struct {
	ProviderOrderID string      `json:"provider_order_id"`
	Status          OrderStatus `json:"status"`
	Simulated       bool        `json:"simulated"`
}
