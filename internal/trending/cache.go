// Package trending fetches trending repositories and packages from the
// GitHub search API and the npm registry.
//
// Both clients share an explicit, injectable Cache instead of module-level
// state: the composition root constructs one and passes it in, so tests can
// inject their own and invalidation is visible at the call sites — entries
// are dropped on fetch errors and on forced refresh.
package trending

import (
	"sync"
	"time"
)

// Cache is a small TTL cache for remote search results.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry

	// now is swapped in tests to step past the TTL.
	now func() time.Time
}

type cacheEntry struct {
	value   any
	expires time.Time
}

// NewCache creates a Cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *Cache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expires: c.now().Add(c.ttl)}
}

// Invalidate drops one entry. Called on fetch errors so a stale success is
// not served after the upstream started failing, and on forced refresh.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
