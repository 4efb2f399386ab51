/*
Package cache is a tiny TTL cache: expiry is checked on read, there is
no background sweeper. That is enough for the handful of hot keys this
program caches (spot prices, mostly).
*/
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// TTLCache maps string keys to values with per-entry expiry.
// Safe for concurrent use.
type TTLCache struct {
	m sync.Map

	// now is swappable in tests
	now func() time.Time
}

func NewTTLCache() *TTLCache {
	return &TTLCache{now: time.Now}
}

// Get returns the stored value and whether it is still fresh.
// A stale entry is removed on the way out.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	cached, ok := c.m.Load(key)
	if !ok {
		return nil, false
	}
	e := cached.(entry)
	if c.now().After(e.expiresAt) {
		c.m.Delete(key)
		return nil, false
	}
	return e.value, true
}

// Set stores a value for ttl.
func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	c.m.Store(key, entry{value: value, expiresAt: c.now().Add(ttl)})
}

// Clear drops every entry.
func (c *TTLCache) Clear() {
	c.m.Range(func(k, _ interface{}) bool {
		c.m.Delete(k)
		return true
	})
}
