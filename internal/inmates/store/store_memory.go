// Package store caches aggregate lookup results.
package store

import (
	"context"
	"sync"
	"time"

	"inmates/internal/inmates/models"
	"inmates/pkg/platform/sentinel"
)

type cachedResult struct {
	result   models.Result
	storedAt time.Time
}

// InMemoryCache keeps results in process memory with TTL expiration.
// Expired entries are evicted lazily on lookup and on save.
type InMemoryCache struct {
	mu       sync.RWMutex
	results  map[string]cachedResult
	cacheTTL time.Duration
	now      func() time.Time
}

// NewInMemoryCache creates a new in-memory cache with the specified TTL.
func NewInMemoryCache(cacheTTL time.Duration) *InMemoryCache {
	return &InMemoryCache{
		results:  make(map[string]cachedResult),
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Save stores a result under key, replacing any previous entry.
func (c *InMemoryCache) Save(_ context.Context, key string, result models.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, cached := range c.results {
		if now.Sub(cached.storedAt) >= c.cacheTTL {
			delete(c.results, k)
		}
	}
	c.results[key] = cachedResult{result: copyResult(result), storedAt: now}
	return nil
}

// Find retrieves a cached result by key.
// Returns sentinel.ErrNotFound if the key does not exist or has expired past the cache TTL.
func (c *InMemoryCache) Find(_ context.Context, key string) (models.Result, error) {
	c.mu.RLock()
	cached, ok := c.results[key]
	c.mu.RUnlock()
	if !ok {
		return models.Result{}, sentinel.ErrNotFound
	}
	if c.now().Sub(cached.storedAt) >= c.cacheTTL {
		c.mu.Lock()
		if current, still := c.results[key]; still && current.storedAt.Equal(cached.storedAt) {
			delete(c.results, key)
		}
		c.mu.Unlock()
		return models.Result{}, sentinel.ErrNotFound
	}
	return copyResult(cached.result), nil
}

// Len returns the number of entries, expired or not.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}

// copyResult detaches slices and optional fields so callers cannot mutate
// cached state.
func copyResult(r models.Result) models.Result {
	out := models.Result{
		Inmates: make([]models.Inmate, len(r.Inmates)),
		Errors:  make([]models.ProviderError, len(r.Errors)),
	}
	for i, inmate := range r.Inmates {
		inmate.Unit = clonePtr(inmate.Unit)
		inmate.Race = clonePtr(inmate.Race)
		inmate.Sex = clonePtr(inmate.Sex)
		inmate.URL = clonePtr(inmate.URL)
		inmate.Release = clonePtr(inmate.Release)
		out.Inmates[i] = inmate
	}
	copy(out.Errors, r.Errors)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
