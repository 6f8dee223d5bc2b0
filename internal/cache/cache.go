// Package cache implements a thread-safe, size-bounded TTL cache with
// get-or-compute semantics: concurrent misses for the same key collapse into
// a single underlying load.
package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTL is a bounded key/value cache where entries expire after a fixed
// time-to-live. The zero value is not usable; use New.
type TTL[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	group      singleflight.Group
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// New creates a TTL cache holding at most maxEntries values for ttl each.
func New[V any](maxEntries int, ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		entries:    make(map[string]entry[V]),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// GetOrCompute returns the cached value for key, or runs compute to produce
// and store it. The hit result reports whether the value came from the
// cache. Concurrent callers missing on the same key share one compute call;
// compute errors are not cached.
func (c *TTL[V]) GetOrCompute(key string, compute func() (V, error)) (value V, hit bool, err error) {
	if v, ok := c.lookup(key); ok {
		return v, true, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent caller may have stored the value between the miss
		// and the flight starting.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.put(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return result.(V), false, nil
}

func (c *TTL[V]) lookup(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTL[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
}

// evictLocked first drops expired entries, then the oldest one if the cache
// is still full. Caller holds mu.
func (c *TTL[V]) evictLocked() {
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if first || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.storedAt
			first = false
		}
	}
	delete(c.entries, oldestKey)
}

// Len reports the current number of stored entries, expired or not.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
