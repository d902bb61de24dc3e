package events

// Event enumerates high-level topics inside the engine.
type Event string

const (
	EventSignal        Event = "strategy.signal"
	EventIntentCreated Event = "intent.created"
	EventIntentFailed  Event = "intent.failed"
	EventConnectorMode Event = "connector.mode"
	EventBalanceFetch  Event = "balance.fetched"
)
