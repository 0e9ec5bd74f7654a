// Package cache holds short-lived fetch results in memory.
package cache

import (
	"sync"
	"time"
)

const DefaultTTL = 30 * time.Second

type entry[T any] struct {
	value    T
	cachedAt time.Time
}

// TTL is a keyed cache whose entries expire a fixed duration after they
// were stored. Callers pass the clock in so expiry is deterministic.
type TTL[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry[T]
}

func New[T any](ttl time.Duration) *TTL[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTL[T]{ttl: ttl, entries: make(map[string]entry[T])}
}

// Get returns the value stored under key if it is younger than the TTL.
// Expired entries are evicted.
func (c *TTL[T]) Get(key string, now time.Time) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if now.Sub(e.cachedAt) >= c.ttl {
		delete(c.entries, key)
		var zero T
		return zero, false
	}
	return e.value, true
}

// Put stores value under key as of now.
func (c *TTL[T]) Put(key string, value T, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{value: value, cachedAt: now}
}

// CachedAt reports when key was stored, or nil if absent.
func (c *TTL[T]) CachedAt(key string) *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	t := e.cachedAt
	return &t
}

// Len counts stored entries, expired or not.
func (c *TTL[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
