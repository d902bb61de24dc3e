// Package strategy evaluates indicator rules over candle history and turns
// signals into venue orders.
package strategy

import (
	"fmt"

	"exchange-core/internal/indicators"
	"exchange-core/pkg/db"
	"exchange-core/pkg/exchanges/common"
)

// Signal is the outcome of one rule evaluation.
type Signal string

const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
	SignalNone Signal = "none"
)

// Evaluation carries the signal together with the indicator values that
// produced it, for logging and API responses.
type Evaluation struct {
	StrategyID string  `json:"strategy_id"`
	Symbol     string  `json:"symbol"`
	Signal     Signal  `json:"signal"`
	Close      float64 `json:"close"`
	UpperBand  float64 `json:"upper_band"`
	MiddleBand float64 `json:"middle_band"`
	LowerBand  float64 `json:"lower_band"`
	MA         float64 `json:"ma"`
	Reason     string  `json:"reason"`
}

// Evaluate applies the Bollinger + MA filter rule to candle history, oldest
// first. The sell condition is checked before the buy condition so a
// degenerate flat series (both bands on the close) resolves to Sell.
func Evaluate(strat db.Strategy, candles []common.Candle) Evaluation {
	ev := Evaluation{
		StrategyID: strat.ID,
		Symbol:     strat.Symbol,
		Signal:     SignalNone,
	}

	need := strat.BBPeriod
	if strat.MAPeriod > need {
		need = strat.MAPeriod
	}
	if len(candles) < need {
		ev.Reason = fmt.Sprintf("need %d candles, have %d", need, len(candles))
		return ev
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	upper, middle, lower := indicators.BollingerBands(closes, strat.BBPeriod, strat.BBDeviation)
	ma := indicators.MovingAverage(closes, strat.MAPeriod)
	if len(upper) == 0 || len(ma) == 0 {
		ev.Reason = "insufficient data for indicators"
		return ev
	}

	ev.Close = closes[len(closes)-1]
	ev.UpperBand = upper[len(upper)-1]
	ev.MiddleBand = middle[len(middle)-1]
	ev.LowerBand = lower[len(lower)-1]
	ev.MA = ma[len(ma)-1]

	switch {
	case ev.Close >= ev.UpperBand:
		ev.Signal = SignalSell
		ev.Reason = fmt.Sprintf("close %.2f >= upper band %.2f", ev.Close, ev.UpperBand)
	case ev.Close <= ev.LowerBand && ev.Close > ev.MA:
		ev.Signal = SignalBuy
		ev.Reason = fmt.Sprintf("close %.2f <= lower band %.2f and above MA %.2f", ev.Close, ev.LowerBand, ev.MA)
	default:
		ev.Reason = fmt.Sprintf("close %.2f inside bands [%.2f, %.2f]", ev.Close, ev.LowerBand, ev.UpperBand)
	}
	return ev
}
