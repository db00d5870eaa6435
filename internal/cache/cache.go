// Package cache provides an in-memory TTL cache used by the external API
// clients so that one rule run does not hit the same endpoint per rule.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Cache provides in-memory caching with TTL.
type Cache struct {
	mu       sync.RWMutex
	items    map[string]cacheItem
	ttl      time.Duration
	maxItems int
	now      func() time.Time
}

type cacheItem struct {
	value     any
	expiresAt time.Time
}

// Config holds cache configuration.
type Config struct {
	TTL      time.Duration
	MaxItems int
}

// New creates a new cache. Zero values fall back to 10 minutes and 5000 items.
func New(cfg Config) *Cache {
	if cfg.TTL == 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.MaxItems == 0 {
		cfg.MaxItems = 5000
	}
	return &Cache{
		items:    make(map[string]cacheItem),
		ttl:      cfg.TTL,
		maxItems: cfg.MaxItems,
		now:      time.Now,
	}
}

// Get retrieves an item from the cache.
func (c *Cache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || c.now().After(item.expiresAt) {
		return nil, false
	}
	return item.value, true
}

// Set stores an item with the default TTL.
func (c *Cache) Set(key string, value any) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) >= c.maxItems {
		c.evict()
	}
	c.items[key] = cacheItem{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Delete removes an item from the cache.
func (c *Cache) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// DeletePrefix removes all items whose key starts with prefix.
func (c *Cache) DeletePrefix(prefix string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
}

// Clear removes all items from the cache.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]cacheItem)
}

// Len returns the number of items in the cache.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evict drops expired items, then the 10% closest to expiry (lock held).
func (c *Cache) evict() {
	now := c.now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
		}
	}
	if len(c.items) < c.maxItems {
		return
	}

	toRemove := max(c.maxItems/10, 1)
	for toRemove > 0 {
		var oldestKey string
		var oldest time.Time
		for key, item := range c.items {
			if oldestKey == "" || item.expiresAt.Before(oldest) {
				oldestKey, oldest = key, item.expiresAt
			}
		}
		delete(c.items, oldestKey)
		toRemove--
	}
}

// Fetch returns the cached value for key or calls load and caches its result.
// Errors are never cached. A nil cache always calls load.
func Fetch[T any](ctx context.Context, c *Cache, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}
