// ABOUTME: Thread-safe generic TTL cache with lazy expiry and size-bounded eviction.
// ABOUTME: Backs the auth result cache and the downstream token cache.

package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry stores a cached value, its expiry, and its position in insertion order.
type entry[V any] struct {
	value     V
	expiresAt time.Time
	element   *list.Element
}

// Cache provides a thread-safe, TTL-based, size-limited cache. Expired entries
// are treated as misses and evicted lazily on lookup; a background goroutine
// also sweeps periodically so idle entries don't accumulate. Uses a
// doubly-linked list to maintain insertion order for O(1) eviction when the
// size limit is hit.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[V]
	order   *list.List // keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool

	// now is replaceable in tests for deterministic expiry.
	now func() time.Time
}

// New creates a cache with the given default TTL and maximum entry count.
// A background goroutine periodically removes expired entries; callers must
// Close the cache when done with it.
func New[V any](ttl time.Duration, maxSize int) *Cache[V] {
	c := &Cache[V]{
		entries: make(map[string]*entry[V]),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go c.sweep()
	return c
}

// Get returns the value for key if present and unexpired. An expired entry is
// removed and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		c.removeLocked(key, e)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the cache's default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetTTL(key, value, c.ttl)
}

// SetTTL stores value under key with an explicit TTL, replacing any existing
// entry. If the cache is at capacity, the oldest entry is evicted.
func (c *Cache[V]) SetTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToBack(e.element)
		return
	}

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	elem := c.order.PushBack(key)
	c.entries[key] = &entry[V]{value: value, expiresAt: expiresAt, element: elem}
}

// Invalidate removes a single entry. Removing an absent key is a no-op.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.removeLocked(key, e)
	}
}

// Len returns the number of entries currently held, including any that have
// expired but not yet been swept.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background sweeper. Safe to call multiple times.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// removeLocked removes an entry from both the map and the order list.
// Must be called with mu held.
func (c *Cache[V]) removeLocked(key string, e *entry[V]) {
	c.order.Remove(e.element)
	delete(c.entries, key)
}

// evictOldestLocked removes the oldest entry. Must be called with mu held.
func (c *Cache[V]) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key := front.Value.(string)
	if e, ok := c.entries[key]; ok {
		c.removeLocked(key, e)
	}
}

// sweep periodically removes expired entries until Close is called.
func (c *Cache[V]) sweep() {
	interval := c.ttl
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired removes all entries whose TTL has elapsed.
func (c *Cache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			c.removeLocked(key, e)
		}
	}
}
