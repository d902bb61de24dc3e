package connector

import (
	"context"
	"testing"

	"exchange-core/pkg/exchanges/common"
)

func TestSimulatedCandlesAreDeterministic(t *testing.T) {
	s := NewSimulated("acct-1")

	a, err := s.FetchCandles(context.Background(), "BTC/USDT", "1H", 50)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	b, err := s.FetchCandles(context.Background(), "BTC/USDT", "1H", 50)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(a) != 50 || len(b) != 50 {
		t.Fatalf("lengths = %d, %d, want 50", len(a), len(b))
	}
	for i := range a {
		if a[i].Close != b[i].Close || a[i].Open != b[i].Open {
			t.Fatalf("candle %d differs between identical requests", i)
		}
	}

	other, err := s.FetchCandles(context.Background(), "ETH/USDT", "1H", 50)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	same := true
	for i := range a {
		if a[i].Close != other[i].Close {
			same = false
			break
		}
	}
	if same {
		t.Error("different symbols should produce different series")
	}
}

func TestSimulatedCandlesAreWellFormed(t *testing.T) {
	s := NewSimulated("acct-1")
	candles, err := s.FetchCandles(context.Background(), "BTC/USDT", "1m", 20)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	for i, c := range candles {
		if c.High < c.Open || c.High < c.Close {
			t.Errorf("candle %d: high %v below open/close", i, c.High)
		}
		if c.Low > c.Open || c.Low > c.Close {
			t.Errorf("candle %d: low %v above open/close", i, c.Low)
		}
		if i > 0 && !candles[i-1].Timestamp.Before(c.Timestamp) {
			t.Errorf("candle %d: timestamps not increasing", i)
		}
	}
}

func TestSimulatedDataIsFlagged(t *testing.T) {
	s := NewSimulated("acct-1")

	bal, _ := s.FetchBalance(context.Background())
	if !bal.Simulated {
		t.Error("balance not flagged simulated")
	}
	tick, _ := s.FetchTicker(context.Background(), "BTC/USDT")
	if !tick.Simulated {
		t.Error("ticker not flagged simulated")
	}
	if tick.Last <= 0 || tick.Bid >= tick.Ask {
		t.Errorf("ticker shape wrong: last=%v bid=%v ask=%v", tick.Last, tick.Bid, tick.Ask)
	}
}

func TestSimulatedRefusesOrders(t *testing.T) {
	s := NewSimulated("acct-1")
	_, err := s.PlaceOrder(context.Background(), common.OrderRequest{
		Symbol: "BTC/USDT",
		Side:   common.SideBuy,
		Type:   common.OrderTypeMarket,
		Amount: 1,
	})
	if !common.IsKind(err, common.KindSimulatedMode) {
		t.Errorf("got %v, want simulated-mode error", err)
	}
}
