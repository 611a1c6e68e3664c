// Package cache holds in-memory pool and market state keyed by account address.
// Entries live until Clear; nothing is persisted.
package cache

import (
	"sync"

	"solana-pool-sniper/internal/amm"
)

// MarketCache maps market id to the market accounts a swap needs.
type MarketCache struct {
	mu      sync.RWMutex
	markets map[string]*amm.MarketState
}

// NewMarketCache creates an empty market cache.
func NewMarketCache() *MarketCache {
	return &MarketCache{markets: make(map[string]*amm.MarketState)}
}

// Save stores market under id.
func (c *MarketCache) Save(id string, market *amm.MarketState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markets[id] = market
}

// Get returns the market for id.
func (c *MarketCache) Get(id string) (*amm.MarketState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.markets[id]
	return m, ok
}

// Clear drops every entry.
func (c *MarketCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markets = make(map[string]*amm.MarketState)
}

// Len returns the number of cached markets.
func (c *MarketCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.markets)
}

// PoolEntry is a cached pool state.
type PoolEntry struct {
	ID    string
	State *amm.LiquidityStateV4
}

// PoolCache maps pool id to its decoded state.
type PoolCache struct {
	mu    sync.RWMutex
	pools map[string]PoolEntry
}

// NewPoolCache creates an empty pool cache.
func NewPoolCache() *PoolCache {
	return &PoolCache{pools: make(map[string]PoolEntry)}
}

// Save stores state under id.
func (c *PoolCache) Save(id string, state *amm.LiquidityStateV4) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools[id] = PoolEntry{ID: id, State: state}
}

// Get returns the pool entry for id.
func (c *PoolCache) Get(id string) (PoolEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.pools[id]
	return e, ok
}

// Clear drops every entry.
func (c *PoolCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools = make(map[string]PoolEntry)
}

// Len returns the number of cached pools.
func (c *PoolCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pools)
}
