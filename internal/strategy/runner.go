package strategy

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"exchange-core/internal/connector"
	"exchange-core/internal/events"
	"exchange-core/pkg/db"
	"exchange-core/pkg/exchanges/common"
)

// ErrStrategyInactive is returned when a disabled strategy is evaluated.
var ErrStrategyInactive = errors.New("strategy is not active")

// connectorSource hands out the connector for an account. Satisfied by
// connector.Registry.
type connectorSource interface {
	GetOrCreate(ctx context.Context, userID, accountID string) (connector.Connector, error)
}

// Runner loads a strategy, evaluates it against fresh candles and executes
// the resulting signal as a market order.
type Runner struct {
	database   *db.Database
	connectors connectorSource
	bus        *events.Bus
}

func NewRunner(database *db.Database, connectors connectorSource, bus *events.Bus) *Runner {
	return &Runner{database: database, connectors: connectors, bus: bus}
}

// Evaluate fetches candle history and applies the strategy rule without
// placing any order.
func (r *Runner) Evaluate(ctx context.Context, userID, strategyID string) (Evaluation, error) {
	strat, conn, err := r.load(ctx, userID, strategyID)
	if err != nil {
		return Evaluation{}, err
	}
	return r.evaluate(ctx, *strat, conn)
}

// Run evaluates the strategy and, on a Buy or Sell signal, places a market
// order and records the intent in the ledger. The recorded intent (nil when
// no signal fired) is returned alongside the evaluation.
func (r *Runner) Run(ctx context.Context, userID, strategyID string) (Evaluation, *db.TradeIntent, error) {
	strat, conn, err := r.load(ctx, userID, strategyID)
	if err != nil {
		return Evaluation{}, nil, err
	}

	ev, err := r.evaluate(ctx, *strat, conn)
	if err != nil {
		return Evaluation{}, nil, err
	}
	if ev.Signal == SignalNone {
		return ev, nil, nil
	}

	side := common.SideBuy
	if ev.Signal == SignalSell {
		side = common.SideSell
	}
	req := common.OrderRequest{
		Symbol:   strat.Symbol,
		Side:     side,
		Type:     common.OrderTypeMarket,
		Amount:   strat.EntryAmount,
		ClientID: uuid.NewString(),
	}

	result, err := conn.PlaceOrder(ctx, req)
	if err != nil {
		log.Printf("strategy: %s: order rejected: %v", strat.ID, err)
		if r.bus != nil {
			r.bus.Publish(events.EventIntentFailed, ev)
		}
		return ev, nil, err
	}

	intent := db.TradeIntent{
		ID:              uuid.NewString(),
		StrategyID:      strat.ID,
		Symbol:          strat.Symbol,
		Side:            string(side),
		Amount:          strat.EntryAmount,
		Price:           ev.Close,
		ProviderOrderID: result.ProviderOrderID,
		Status:          string(result.Status),
		Simulated:       result.Simulated,
	}
	if err := r.database.RecordTrade(ctx, intent); err != nil {
		return ev, nil, fmt.Errorf("record trade intent: %w", err)
	}
	if r.bus != nil {
		r.bus.Publish(events.EventIntentCreated, intent)
	}
	log.Printf("strategy: %s: %s %s x%v, order %s", strat.ID, side, strat.Symbol, strat.EntryAmount, result.ProviderOrderID)
	return ev, &intent, nil
}

func (r *Runner) load(ctx context.Context, userID, strategyID string) (*db.Strategy, connector.Connector, error) {
	strat, err := r.database.GetStrategy(ctx, userID, strategyID)
	if err != nil {
		return nil, nil, fmt.Errorf("load strategy: %w", err)
	}
	if !strat.IsActive {
		return nil, nil, ErrStrategyInactive
	}
	conn, err := r.connectors.GetOrCreate(ctx, userID, strat.AccountID)
	if err != nil {
		return nil, nil, err
	}
	return strat, conn, nil
}

func (r *Runner) evaluate(ctx context.Context, strat db.Strategy, conn connector.Connector) (Evaluation, error) {
	need := strat.BBPeriod
	if strat.MAPeriod > need {
		need = strat.MAPeriod
	}

	candles, err := conn.FetchCandles(ctx, strat.Symbol, strat.Timeframe, need)
	if err != nil {
		return Evaluation{}, err
	}

	ev := Evaluate(strat, candles)
	if r.bus != nil {
		r.bus.Publish(events.EventSignal, ev)
	}
	return ev, nil
}
