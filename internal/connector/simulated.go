package connector

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"exchange-core/pkg/exchanges/common"
)

// Simulated serves deterministic fabricated data when the venue is
// unreachable. Every value it produces carries the Simulated flag so
// downstream consumers can never mistake it for live market data. Order
// placement is refused.
type Simulated struct {
	accountID string
}

func NewSimulated(accountID string) *Simulated {
	return &Simulated{accountID: accountID}
}

func (s *Simulated) Mode() Mode { return ModeSimulated }

func (s *Simulated) Connect(ctx context.Context) error { return nil }

// FetchBalance returns a fixed demo portfolio.
func (s *Simulated) FetchBalance(ctx context.Context) (common.Balance, error) {
	return common.Balance{
		Assets: map[string]common.Asset{
			"USDT": {Free: 10000, Used: 0, Total: 10000},
			"BTC":  {Free: 0.25, Used: 0, Total: 0.25},
			"ETH":  {Free: 2, Used: 0, Total: 2},
		},
		Simulated: true,
		FetchedAt: time.Now(),
	}, nil
}

// FetchTicker derives a stable base price from the symbol and wobbles it
// slowly over time so repeated calls look like a quiet market.
func (s *Simulated) FetchTicker(ctx context.Context, symbol string) (common.Ticker, error) {
	base := basePrice(symbol)
	// One slow cycle roughly every 20 minutes, amplitude 1%.
	phase := float64(time.Now().Unix()) * 2 * math.Pi / 1200
	last := base * (1 + 0.01*math.Sin(phase))
	spread := last * 0.0005

	return common.Ticker{
		Symbol:    symbol,
		InstID:    strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(symbol)), "/", "-"),
		Last:      last,
		Bid:       last - spread,
		Ask:       last + spread,
		High:      base * 1.02,
		Low:       base * 0.98,
		Volume:    1000 + float64(seed(symbol)%9000),
		Timestamp: time.Now(),
		Simulated: true,
	}, nil
}

// FetchCandles generates a reproducible random walk: the same symbol, bar
// and limit always produce the same series.
func (s *Simulated) FetchCandles(ctx context.Context, symbol, bar string, limit int) ([]common.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	step := barDuration(bar)
	rng := rand.New(rand.NewSource(int64(seed(symbol + bar))))

	price := basePrice(symbol)
	start := time.Now().Add(-time.Duration(limit) * step).Truncate(step)

	out := make([]common.Candle, 0, limit)
	for i := 0; i < limit; i++ {
		open := price
		// Walk up to ±0.5% per bar.
		price *= 1 + (rng.Float64()-0.5)*0.01
		high := math.Max(open, price) * (1 + rng.Float64()*0.002)
		low := math.Min(open, price) * (1 - rng.Float64()*0.002)
		out = append(out, common.Candle{
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     price,
			Volume:    10 + rng.Float64()*100,
		})
	}
	return out, nil
}

// PlaceOrder always fails: fabricating order acks would be indistinguishable
// from real fills in the ledger.
func (s *Simulated) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	return common.OrderResult{}, common.NewSimulatedModeError("order placement")
}

func seed(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToUpper(strings.TrimSpace(s))))
	return h.Sum32()
}

// basePrice maps a symbol to a stable pseudo-price in [1000, 60000).
func basePrice(symbol string) float64 {
	return 1000 + float64(seed(symbol)%59000)
}

func barDuration(bar string) time.Duration {
	switch bar {
	case "1m", "":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1H":
		return time.Hour
	case "4H":
		return 4 * time.Hour
	case "1D":
		return 24 * time.Hour
	default:
		return time.Minute
	}
}
