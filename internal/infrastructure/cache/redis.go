package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pricelens/backend/internal/domain"
)

// RedisCache stores aggregation results in Redis so they survive restarts
// and can be shared by several instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewRedisCache connects to the Redis server at rawURL
func NewRedisCache(ctx context.Context, rawURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: failed to connect to Redis: %v", domain.ErrCacheUnavailable, err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// offersKey hashes the normalized query so arbitrary text is a safe key
func offersKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("offers:%x", hash[:12])
}

// Get retrieves offers stored under key
func (c *RedisCache) Get(ctx context.Context, key string) ([]domain.Offer, error) {
	data, err := c.client.Get(ctx, offersKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Invalid data, delete and report a miss
		c.client.Del(ctx, offersKey(key))
		c.misses.Add(1)
		return nil, domain.ErrCacheMiss
	}

	c.hits.Add(1)
	return entry.Offers, nil
}

// Set stores offers under key with the cache TTL
func (c *RedisCache) Set(ctx context.Context, key string, offers []domain.Offer) error {
	data, err := json.Marshal(domain.CacheEntry{
		Key:       key,
		Offers:    offers,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal offers for key %s: %w", key, err)
	}

	if err := c.client.Set(ctx, offersKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%w: failed to set key %s: %v", domain.ErrCacheUnavailable, key, err)
	}
	return nil
}

// Stats reports usage counters and the key count of the current database
func (c *RedisCache) Stats(ctx context.Context) (Stats, error) {
	size, err := c.client.DBSize(ctx).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return Stats{
		Backend: "redis",
		Entries: int(size),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		TTL:     c.ttl.String(),
	}, nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
