package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Ping(ctx context.Context) error
	SetEntitlement(ctx context.Context, resourceKey string, ttl time.Duration) error
	HasEntitlement(ctx context.Context, resourceKey string) (bool, error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SetEntitlement caches a paid entitlement so gate checks on free operations
// skip the database. Entitlements are never revoked, so caching positives is
// safe; the TTL only bounds memory.
func (c *RedisCache) SetEntitlement(ctx context.Context, resourceKey string, ttl time.Duration) error {
	return c.client.Set(ctx, EntitlementKey(resourceKey), "1", ttl).Err()
}

func (c *RedisCache) HasEntitlement(ctx context.Context, resourceKey string) (bool, error) {
	err := c.client.Get(ctx, EntitlementKey(resourceKey)).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
