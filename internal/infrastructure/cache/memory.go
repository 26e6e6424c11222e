package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

// Stats is a point-in-time view of cache usage
type Stats struct {
	Backend string `json:"backend"`
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	TTL     string `json:"ttl"`
}

// cacheItem represents a single item in the cache with expiration
type cacheItem struct {
	entry      domain.CacheEntry
	expiration time.Time
}

// MemoryCache is a thread-safe in-memory result cache with a fixed TTL.
// Expired entries are evicted when they are read.
type MemoryCache struct {
	data   map[string]cacheItem
	mutex  sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	hits   uint64
	misses uint64
}

// NewMemoryCache creates a new in-memory cache whose entries live for ttl
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		data: make(map[string]cacheItem),
		ttl:  ttl,
		now:  time.Now,
	}
}

// WithClock replaces the time source, for tests
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

// Get returns a copy of the offers stored under key
func (c *MemoryCache) Get(ctx context.Context, key string) ([]domain.Offer, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	item, exists := c.data[key]
	if !exists {
		c.misses++
		return nil, domain.ErrCacheMiss
	}

	if !c.now().Before(item.expiration) {
		delete(c.data, key)
		c.misses++
		return nil, domain.ErrCacheMiss
	}

	c.hits++
	return domain.CloneOffers(item.entry.Offers), nil
}

// Set stores a copy of offers under key
func (c *MemoryCache) Set(ctx context.Context, key string, offers []domain.Offer) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	created := c.now()
	c.data[key] = cacheItem{
		entry: domain.CacheEntry{
			Key:       key,
			Offers:    domain.CloneOffers(offers),
			CreatedAt: created,
		},
		expiration: created.Add(c.ttl),
	}

	return nil
}

// Stats reports usage counters
func (c *MemoryCache) Stats(ctx context.Context) (Stats, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return Stats{
		Backend: "memory",
		Entries: len(c.data),
		Hits:    c.hits,
		Misses:  c.misses,
		TTL:     c.ttl.String(),
	}, nil
}
