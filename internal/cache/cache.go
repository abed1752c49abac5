package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Cache is an in-memory TTL cache. Concurrent misses for the same key
// share a single load.
type Cache[V any] struct {
	mu       sync.RWMutex
	items    map[string]cacheItem[V]
	ttl      time.Duration
	group    singleflight.Group
	hits     int64
	misses   int64
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

type cacheItem[V any] struct {
	value      V
	expiration time.Time
}

// Stats returns cache statistics
type Stats struct {
	ItemCount int   `json:"item_count"`
	HitCount  int64 `json:"hit_count"`
	MissCount int64 `json:"miss_count"`
}

// New creates a cache with the given TTL and starts the cleanup goroutine
func New[V any](ttl time.Duration) *Cache[V] {
	c := &Cache[V]{
		items:    make(map[string]cacheItem[V]),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	go c.cleanup()

	return c
}

// Get retrieves a value from the cache
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists || c.now().After(item.expiration) {
		c.recordMiss()
		var zero V
		return zero, false
	}

	atomic.AddInt64(&c.hits, 1)
	metrics.Get().IncrementCache(true)
	return item.value, true
}

// Set stores a value with the default TTL
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = cacheItem[V]{
		value:      value,
		expiration: c.now().Add(c.ttl),
	}
}

// GetOrLoad returns the cached value or calls load once and caches its result.
// Errors are not cached.
func (c *Cache[V]) GetOrLoad(key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Outro load pode ter terminado entre o Get e o Do
		if cached, ok := c.peek(key); ok {
			return cached, nil
		}

		loaded, err := load()
		if err != nil {
			return nil, err
		}
		c.Set(key, loaded)
		return loaded, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	return v.(V), nil
}

// Delete removes a value from the cache
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// InvalidatePrefix removes all keys with the given prefix
func (c *Cache[V]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

// Stats returns the current counters
func (c *Cache[V]) Stats() Stats {
	return Stats{
		ItemCount: c.Size(),
		HitCount:  atomic.LoadInt64(&c.hits),
		MissCount: atomic.LoadInt64(&c.misses),
	}
}

// Size returns the number of items in the cache, expired ones included
func (c *Cache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stop stops the cleanup goroutine
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

// peek lê sem contar hit ou miss
func (c *Cache[V]) peek(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || c.now().After(item.expiration) {
		var zero V
		return zero, false
	}
	return item.value, true
}

func (c *Cache[V]) recordMiss() {
	atomic.AddInt64(&c.misses, 1)
	metrics.Get().IncrementCache(false)
}

// cleanup periodically removes expired items
func (c *Cache[V]) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopChan:
			return
		}
	}
}

// removeExpired removes all expired items
func (c *Cache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if now.After(item.expiration) {
			delete(c.items, key)
		}
	}
}
