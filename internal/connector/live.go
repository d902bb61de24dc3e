package connector

import (
	"context"
	"log"
	"sync"

	"exchange-core/pkg/exchanges/common"
)

// Live talks to the venue's REST API for one account. When the public probe
// cannot reach the venue at all, the connector settles into Simulated mode
// and serves fabricated data flagged as such.
type Live struct {
	accountID string
	testnet   bool
	client    venueClient
	sim       *Simulated

	mu   sync.RWMutex
	mode Mode

	// onMode, when set, is called outside the lock after every state change.
	onMode func(from, to Mode)
}

// NewLive builds a connector in the Disconnected state.
func NewLive(accountID string, testnet bool, client venueClient, onMode func(from, to Mode)) *Live {
	return &Live{
		accountID: accountID,
		testnet:   testnet,
		client:    client,
		sim:       NewSimulated(accountID),
		mode:      ModeDisconnected,
		onMode:    onMode,
	}
}

// Mode reports the current lifecycle state.
func (l *Live) Mode() Mode {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mode
}

func (l *Live) setMode(to Mode) {
	l.mu.Lock()
	from := l.mode
	l.mode = to
	l.mu.Unlock()
	if from != to && l.onMode != nil {
		l.onMode(from, to)
	}
}

// Connect runs the two-step probe: an unauthenticated server-time call, then
// a signed balance call to validate credentials. A connectivity failure on
// the public step drops into Simulated mode; any failure on the private step
// (bad key, missing permission, IP restriction) is a hard error and leaves
// the connector Disconnected.
func (l *Live) Connect(ctx context.Context) error {
	l.setMode(ModeProbing)

	if err := l.client.Ping(ctx); err != nil {
		if common.IsKind(err, common.KindNetworkTimeout) {
			log.Printf("connector: account %s: venue unreachable, serving simulated data: %v", l.accountID, err)
			l.setMode(ModeSimulated)
			return nil
		}
		l.setMode(ModeDisconnected)
		return err
	}

	if _, err := l.client.GetBalance(ctx); err != nil {
		l.setMode(ModeDisconnected)
		return err
	}

	l.setMode(ModeLive)
	return nil
}

// ensure connects lazily so data methods work without an explicit Connect.
func (l *Live) ensure(ctx context.Context) error {
	switch l.Mode() {
	case ModeLive, ModeSimulated:
		return nil
	default:
		return l.Connect(ctx)
	}
}

func (l *Live) FetchBalance(ctx context.Context) (common.Balance, error) {
	if err := l.ensure(ctx); err != nil {
		return common.Balance{}, err
	}
	if l.Mode() == ModeSimulated {
		return l.sim.FetchBalance(ctx)
	}
	return l.client.GetBalance(ctx)
}

func (l *Live) FetchTicker(ctx context.Context, symbol string) (common.Ticker, error) {
	if err := l.ensure(ctx); err != nil {
		return common.Ticker{}, err
	}
	if l.Mode() == ModeSimulated {
		return l.sim.FetchTicker(ctx, symbol)
	}
	return l.client.GetTicker(ctx, symbol)
}

func (l *Live) FetchCandles(ctx context.Context, symbol, bar string, limit int) ([]common.Candle, error) {
	if err := l.ensure(ctx); err != nil {
		return nil, err
	}
	if l.Mode() == ModeSimulated {
		return l.sim.FetchCandles(ctx, symbol, bar, limit)
	}
	return l.client.GetCandles(ctx, symbol, bar, limit)
}

// PlaceOrder submits a real order. In Simulated mode order placement is
// refused rather than faked.
func (l *Live) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	if err := l.ensure(ctx); err != nil {
		return common.OrderResult{}, err
	}
	if l.Mode() == ModeSimulated {
		return l.sim.PlaceOrder(ctx, req)
	}
	return l.client.PlaceOrder(ctx, req)
}
