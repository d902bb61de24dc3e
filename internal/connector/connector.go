// Package connector manages per-account venue connections, probing reachability
// and falling back to deterministic simulated data when the venue cannot be
// reached.
package connector

import (
	"context"

	"exchange-core/pkg/exchanges/common"
)

// Mode is the connector lifecycle state.
type Mode string

const (
	ModeDisconnected Mode = "disconnected"
	ModeProbing      Mode = "probing"
	ModeLive         Mode = "live"
	ModeSimulated    Mode = "simulated"
)

// Connector serves market and account data for one (account, network) pair.
type Connector interface {
	// Mode reports the current lifecycle state.
	Mode() Mode

	// Connect probes the venue and settles the connector into Live or
	// Simulated mode. Credential errors surface here; only a connectivity
	// failure on the public probe triggers the simulated fallback.
	Connect(ctx context.Context) error

	FetchBalance(ctx context.Context) (common.Balance, error)
	FetchTicker(ctx context.Context, symbol string) (common.Ticker, error)
	FetchCandles(ctx context.Context, symbol, bar string, limit int) ([]common.Candle, error)
	PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error)
}

// venueClient is the REST surface a live connector needs from the exchange
// client.
type venueClient interface {
	Ping(ctx context.Context) error
	GetBalance(ctx context.Context) (common.Balance, error)
	GetTicker(ctx context.Context, symbol string) (common.Ticker, error)
	GetCandles(ctx context.Context, symbol, bar string, limit int) ([]common.Candle, error)
	PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error)
}
