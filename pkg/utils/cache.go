package utils

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is an in-process TTL cache backed by go-cache.
type Cache struct {
	store *gocache.Cache
}

// NewCache creates a cache whose entries expire after defaultTTL and are
// purged every cleanupInterval.
func NewCache(defaultTTL, cleanupInterval time.Duration) *Cache {
	return &Cache{store: gocache.New(defaultTTL, cleanupInterval)}
}

// Get retrieves a value from the cache.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	return c.store.Get(key)
}

// Set stores a value; ttl 0 uses the default expiration.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.store.Set(key, value, ttl)
}

// Delete removes a value from the cache.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.store.Delete(key)
}

// Items returns all unexpired entries.
func (c *Cache) Items(ctx context.Context) map[string]interface{} {
	items := c.store.Items()
	out := make(map[string]interface{}, len(items))
	for k, item := range items {
		if item.Expired() {
			continue
		}
		out[k] = item.Object
	}
	return out
}
