package modules

import (
	"time"

	"github.com/strataui/strata/internal/core/world"
)

// Activation cache defaults.
const (
	DefaultCacheTTL     = 5 * time.Minute
	DefaultCacheMaxSize = 10
)

type cacheEntry struct {
	instance  world.EntityID
	timestamp time.Time
}

// activationCache remembers module activations by "<name>-<target>" key so a
// repeat route activation inside the TTL window reuses the instance instead
// of reloading. Insert-time eviction drops oldest-timestamp entries first
// until exactly maxSize remain.
type activationCache struct {
	ttl     time.Duration
	maxSize int
	entries map[string]cacheEntry
}

func newActivationCache(ttl time.Duration, maxSize int) *activationCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultCacheMaxSize
	}
	return &activationCache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached instance for key if the entry is still inside the
// TTL window. Expired entries are dropped on lookup.
func (c *activationCache) Get(key string, now time.Time) (world.EntityID, bool) {
	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	if now.Sub(e.timestamp) >= c.ttl {
		delete(c.entries, key)
		return 0, false
	}
	return e.instance, true
}

// Touch refreshes the timestamp of an existing entry.
func (c *activationCache) Touch(key string, now time.Time) {
	if e, ok := c.entries[key]; ok {
		e.timestamp = now
		c.entries[key] = e
	}
}

// Put inserts or replaces an entry, then evicts oldest-first down to maxSize.
func (c *activationCache) Put(key string, instance world.EntityID, now time.Time) {
	c.entries[key] = cacheEntry{instance: instance, timestamp: now}
	for len(c.entries) > c.maxSize {
		c.evictOldest()
	}
}

func (c *activationCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.timestamp.Before(oldest) {
			oldestKey, oldest = k, e.timestamp
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// Remove drops the entry for key, if present.
func (c *activationCache) Remove(key string) {
	delete(c.entries, key)
}

// RemoveInstance drops every entry pointing at the given instance entity.
func (c *activationCache) RemoveInstance(instance world.EntityID) {
	for k, e := range c.entries {
		if e.instance == instance {
			delete(c.entries, k)
		}
	}
}

func (c *activationCache) Len() int {
	return len(c.entries)
}
