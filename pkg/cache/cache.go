package cache

import (
	"sync"
	"time"
)

// Store is the cache interface consumed by services. Implementations are
// the in-memory cache below and the Redis client in shared/redis.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
	Del(key string)
}

// Item represents a cached item with expiration
type Item struct {
	Value      string
	Expiration int64
}

// Expired checks if the cache item has expired
func (item Item) Expired() bool {
	if item.Expiration == 0 {
		return false
	}
	return time.Now().UnixNano() > item.Expiration
}

// Cache is a thread-safe in-memory cache with expiration
type Cache struct {
	items           map[string]Item
	mu              sync.RWMutex
	cleanupInterval time.Duration
	maxItems        int
}

// Options configures the in-memory cache
type Options struct {
	CleanupInterval time.Duration
	MaxItems        int
}

// NewCache creates a new in-memory cache
func NewCache(opts Options) *Cache {
	cache := &Cache{
		items:           make(map[string]Item),
		cleanupInterval: opts.CleanupInterval,
		maxItems:        opts.MaxItems,
	}

	if opts.CleanupInterval > 0 {
		go cache.startCleanupTimer()
	}

	return cache
}

// Set adds an item to the cache with the given TTL (0 = no expiration)
func (c *Cache) Set(key, value string, ttl time.Duration) {
	var expiration int64
	if ttl > 0 {
		expiration = time.Now().Add(ttl).UnixNano()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict an arbitrary entry when full rather than grow unbounded
	if c.maxItems > 0 && len(c.items) >= c.maxItems {
		if _, exists := c.items[key]; !exists {
			for k := range c.items {
				delete(c.items, k)
				break
			}
		}
	}

	c.items[key] = Item{Value: value, Expiration: expiration}
}

// Get retrieves an item from the cache
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	item, found := c.items[key]
	c.mu.RUnlock()

	if !found || item.Expired() {
		return "", false
	}
	return item.Value, true
}

// Del removes an item from the cache
func (c *Cache) Del(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *Cache) startCleanupTimer() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.deleteExpired()
	}
}

func (c *Cache) deleteExpired() {
	now := time.Now().UnixNano()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, item := range c.items {
		if item.Expiration > 0 && now > item.Expiration {
			delete(c.items, key)
		}
	}
}
