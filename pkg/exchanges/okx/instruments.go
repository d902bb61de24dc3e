package okx

import (
	"sort"
	"strings"
	"sync"

	"exchange-core/pkg/exchanges/common"
)

// NormalizeSymbol converts a conventional BASE/QUOTE pair into the venue's
// instrument id form, e.g. BTC/USDT -> BTC-USDT. Already-normalized input
// passes through unchanged.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.ReplaceAll(s, "/", "-")
}

// InstrumentCache holds the venue's spot instrument listing for one client.
// Loaded lazily on first use, kept for the client's lifetime.
type InstrumentCache struct {
	mu     sync.RWMutex
	byID   map[string]common.Instrument
	loaded bool
}

func NewInstrumentCache() *InstrumentCache {
	return &InstrumentCache{byID: make(map[string]common.Instrument)}
}

// Put replaces the cached listing. Rows with a missing instrument id or
// currency leg are dropped; the venue's listing occasionally contains
// half-populated pairs.
func (c *InstrumentCache) Put(list []common.Instrument) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID = make(map[string]common.Instrument, len(list))
	for _, inst := range list {
		if inst.InstID == "" || inst.BaseCcy == "" || inst.QuoteCcy == "" {
			continue
		}
		c.byID[inst.InstID] = inst
	}
	c.loaded = true
}

func (c *InstrumentCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Resolve maps a symbol to a listed instrument id, or fails with a
// symbol-not-found error carrying up to 5 valid alternatives.
func (c *InstrumentCache) Resolve(symbol string) (string, error) {
	norm := NormalizeSymbol(symbol)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.byID[norm]; ok {
		return norm, nil
	}
	return "", common.NewSymbolNotFoundError(symbol, c.suggestLocked(norm))
}

// suggestLocked ranks alternatives: same base currency first, then same
// quote, capped at 5.
func (c *InstrumentCache) suggestLocked(norm string) []string {
	base, quote := norm, ""
	if i := strings.Index(norm, "-"); i > 0 {
		base, quote = norm[:i], norm[i+1:]
	}

	var sameBase, sameQuote []string
	for id, inst := range c.byID {
		switch {
		case inst.BaseCcy == base || strings.HasPrefix(id, base):
			sameBase = append(sameBase, id)
		case quote != "" && inst.QuoteCcy == quote:
			sameQuote = append(sameQuote, id)
		}
	}
	sort.Strings(sameBase)
	sort.Strings(sameQuote)

	out := append(sameBase, sameQuote...)
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}
