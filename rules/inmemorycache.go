package rules

import (
	"sync"
	"time"
)

// InMemoryRulesCache is a RulesCache held in process memory.
type InMemoryRulesCache struct {
	defs     []*Definition
	cachedAt time.Time
	config   CacheConfig
	mu       sync.RWMutex
	isValid  bool
}

// NewInMemoryRulesCache creates an empty cache.
func NewInMemoryRulesCache(config CacheConfig) *InMemoryRulesCache {
	return &InMemoryRulesCache{config: config}
}

// Get returns a copy of the cached definitions, or nil when the cache is invalid or
// expired.
func (c *InMemoryRulesCache) Get() []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh() {
		return nil
	}

	out := make([]*Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

func (c *InMemoryRulesCache) Set(defs []*Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.defs = make([]*Definition, len(defs))
	copy(c.defs, defs)
	c.cachedAt = time.Now()
	c.isValid = true
}

func (c *InMemoryRulesCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isValid = false
	c.defs = nil
}

func (c *InMemoryRulesCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.fresh()
}

// fresh must be called with mu held.
func (c *InMemoryRulesCache) fresh() bool {
	if !c.isValid {
		return false
	}
	if c.config.TTL > 0 {
		return time.Since(c.cachedAt) <= c.config.TTL
	}
	return true
}
