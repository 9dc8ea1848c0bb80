package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e entry[T]) expiredAt(now time.Time) bool {
	// zero expiresAt never expires
	if e.expiresAt.IsZero() {
		return false
	}
	return now.After(e.expiresAt)
}

// Cache is a keyed store with an optional time-to-live per entry.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	ttl     time.Duration
	now     func() time.Time
}

func New[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *Cache[T]) expiry() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(c.ttl)
}

// Add stores value only if key is absent or expired, and reports whether it did.
func (c *Cache[T]) Add(key string, value T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.entries[key]; exists && !e.expiredAt(c.now()) {
		return false
	}
	c.entries[key] = entry[T]{value: value, expiresAt: c.expiry()}
	return true
}

// DeleteFunc removes every entry whose key matches.
func (c *Cache[T]) DeleteFunc(match func(key string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if match(key) {
			delete(c.entries, key)
		}
	}
}

func (c *Cache[T]) CleanExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if e.expiredAt(now) {
			delete(c.entries, key)
		}
	}
}
