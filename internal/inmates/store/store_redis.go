package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"inmates/internal/inmates/models"
	"inmates/pkg/platform/sentinel"
)

const resultKeyPrefix = "inmates:result:"

// RedisCache shares cached results between instances. Entries expire through
// Redis TTLs.
type RedisCache struct {
	client   *redis.Client
	cacheTTL time.Duration
}

// NewRedisCache constructs a Redis-backed result cache.
func NewRedisCache(client *redis.Client, cacheTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:   client,
		cacheTTL: cacheTTL,
	}
}

// Save stores result under key with the cache TTL.
func (c *RedisCache) Save(ctx context.Context, key string, result models.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode cached result: %w", err)
	}
	if err := c.client.Set(ctx, resultKeyPrefix+key, payload, c.cacheTTL).Err(); err != nil {
		return fmt.Errorf("save cached result: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// Find retrieves a cached result by key. Returns sentinel.ErrNotFound on a miss.
func (c *RedisCache) Find(ctx context.Context, key string) (models.Result, error) {
	payload, err := c.client.Get(ctx, resultKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Result{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Result{}, fmt.Errorf("find cached result: %w: %w", sentinel.ErrUnavailable, err)
	}

	var result models.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return models.Result{}, fmt.Errorf("decode cached result: %w", err)
	}
	return result, nil
}
