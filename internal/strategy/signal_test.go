package strategy

import (
	"testing"
	"time"

	"exchange-core/pkg/db"
	"exchange-core/pkg/exchanges/common"
)

func candlesFromCloses(closes []float64) []common.Candle {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]common.Candle, len(closes))
	for i, c := range closes {
		out[i] = common.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1,
		}
	}
	return out
}

func TestEvaluateBuyOnLowerBandAboveMA(t *testing.T) {
	// Last 3 closes {120, 120, 105}: mean 115, population std ~7.07, so the
	// lower band at 1 deviation is ~107.9 and the close of 105 breaks it.
	// The 5-candle MA is 101, keeping the close above the trend filter.
	strat := db.Strategy{ID: "s1", Symbol: "BTC/USDT", BBPeriod: 3, BBDeviation: 1, MAPeriod: 5}
	candles := candlesFromCloses([]float64{80, 80, 120, 120, 105})

	ev := Evaluate(strat, candles)
	if ev.Signal != SignalBuy {
		t.Fatalf("signal = %s (%s), want buy", ev.Signal, ev.Reason)
	}
	if ev.Close != 105 {
		t.Errorf("close = %v, want 105", ev.Close)
	}
	if ev.Close > ev.LowerBand {
		t.Errorf("close %v above lower band %v", ev.Close, ev.LowerBand)
	}
	if ev.Close <= ev.MA {
		t.Errorf("close %v not above MA %v", ev.Close, ev.MA)
	}
}

func TestEvaluateMAFilterBlocksBuy(t *testing.T) {
	// Close breaks the lower band but sits below the longer MA, so the
	// trend filter suppresses the buy.
	strat := db.Strategy{ID: "s1", Symbol: "BTC/USDT", BBPeriod: 3, BBDeviation: 1, MAPeriod: 5}
	candles := candlesFromCloses([]float64{100, 101, 102, 101, 100})

	ev := Evaluate(strat, candles)
	if ev.Signal != SignalNone {
		t.Fatalf("signal = %s (%s), want none", ev.Signal, ev.Reason)
	}
	if ev.Close > ev.LowerBand {
		t.Errorf("test setup: close %v should be at or below lower band %v", ev.Close, ev.LowerBand)
	}
}

func TestEvaluateSellOnUpperBand(t *testing.T) {
	strat := db.Strategy{ID: "s1", Symbol: "BTC/USDT", BBPeriod: 3, BBDeviation: 1, MAPeriod: 5}
	candles := candlesFromCloses([]float64{100, 100, 100, 100, 120})

	ev := Evaluate(strat, candles)
	if ev.Signal != SignalSell {
		t.Fatalf("signal = %s (%s), want sell", ev.Signal, ev.Reason)
	}
}

func TestEvaluateFlatSeriesResolvesToSell(t *testing.T) {
	// Zero-width bands put the close on both bands at once; the sell check
	// runs first and wins.
	strat := db.Strategy{ID: "s1", Symbol: "BTC/USDT", BBPeriod: 3, BBDeviation: 2, MAPeriod: 3}
	candles := candlesFromCloses([]float64{100, 100, 100, 100, 100})

	ev := Evaluate(strat, candles)
	if ev.Signal != SignalSell {
		t.Fatalf("signal = %s (%s), want sell", ev.Signal, ev.Reason)
	}
	if ev.UpperBand != ev.LowerBand {
		t.Errorf("flat series should give zero-width bands, got [%v, %v]", ev.LowerBand, ev.UpperBand)
	}
}

func TestEvaluateNoneInsideBands(t *testing.T) {
	strat := db.Strategy{ID: "s1", Symbol: "BTC/USDT", BBPeriod: 3, BBDeviation: 2, MAPeriod: 5}
	candles := candlesFromCloses([]float64{100, 100, 100, 100, 101})

	ev := Evaluate(strat, candles)
	if ev.Signal != SignalNone {
		t.Fatalf("signal = %s (%s), want none", ev.Signal, ev.Reason)
	}
}

func TestEvaluateInsufficientData(t *testing.T) {
	strat := db.Strategy{ID: "s1", Symbol: "BTC/USDT", BBPeriod: 20, BBDeviation: 2, MAPeriod: 50}
	candles := candlesFromCloses([]float64{100, 101, 102})

	ev := Evaluate(strat, candles)
	if ev.Signal != SignalNone {
		t.Fatalf("signal = %s, want none on insufficient data", ev.Signal)
	}
	if ev.Reason == "" {
		t.Error("insufficient data should carry a reason")
	}
	if ev.UpperBand != 0 || ev.MA != 0 {
		t.Error("no indicator values should be reported without enough data")
	}
}
