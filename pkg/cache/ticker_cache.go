// Package cache provides a sharded TTL cache for market snapshots.
package cache

import (
	"hash/fnv"
	"sync"
	"time"

	"exchange-core/pkg/exchanges/common"
)

const numShards = 16

// TickerCache shards recent tickers by key to keep lock contention low when
// many accounts poll market data at once.
type TickerCache struct {
	shards [numShards]*tickerShard
	ttl    time.Duration
}

type tickerShard struct {
	mu    sync.RWMutex
	items map[string]tickerEntry
}

type tickerEntry struct {
	ticker    common.Ticker
	updatedAt time.Time
}

// NewTickerCache creates a cache whose entries expire after ttl.
func NewTickerCache(ttl time.Duration) *TickerCache {
	c := &TickerCache{ttl: ttl}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &tickerShard{
			items: make(map[string]tickerEntry),
		}
	}
	return c
}

func (c *TickerCache) getShard(key string) *tickerShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Set stores a ticker under key.
func (c *TickerCache) Set(key string, t common.Ticker) {
	shard := c.getShard(key)
	shard.mu.Lock()
	shard.items[key] = tickerEntry{
		ticker:    t,
		updatedAt: time.Now(),
	}
	shard.mu.Unlock()
}

// Get returns the cached ticker if it is still within the TTL.
func (c *TickerCache) Get(key string) (common.Ticker, bool) {
	shard := c.getShard(key)
	shard.mu.RLock()
	entry, ok := shard.items[key]
	shard.mu.RUnlock()
	if !ok || time.Since(entry.updatedAt) > c.ttl {
		return common.Ticker{}, false
	}
	return entry.ticker, true
}

// Delete removes a key from the cache.
func (c *TickerCache) Delete(key string) {
	shard := c.getShard(key)
	shard.mu.Lock()
	delete(shard.items, key)
	shard.mu.Unlock()
}

// Len returns total items across all shards, expired entries included.
func (c *TickerCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.items)
		shard.mu.RUnlock()
	}
	return total
}

// Cleanup removes entries older than the TTL and reports how many it dropped.
func (c *TickerCache) Cleanup() int {
	removed := 0
	cutoff := time.Now().Add(-c.ttl)

	for _, shard := range c.shards {
		shard.mu.Lock()
		for key, entry := range shard.items {
			if entry.updatedAt.Before(cutoff) {
				delete(shard.items, key)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}
