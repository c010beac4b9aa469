package interfaces

import (
	"context"
	"time"
)

// Cache defines a generic in-process caching interface.
type Cache interface {
	// Get returns the cached value and whether it was present
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value; a zero ttl uses the cache default
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)

	Delete(ctx context.Context, key string)

	// Items returns a snapshot of all unexpired values keyed by cache key
	Items(ctx context.Context) map[string]interface{}
}
