package fx

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateCache stores one exchange rate table with a TTL. Get returns
// false when no table is cached or the cached table has expired.
type RateCache interface {
	Get(ctx context.Context) (*Table, bool)
	Set(ctx context.Context, table *Table)
}

// MemoryCache is the process-wide in-memory rate cache. Reads and
// writes are guarded by a mutex; a redundant concurrent fetch is
// tolerated rather than serializing callers.
type MemoryCache struct {
	mu    sync.RWMutex
	table *Table
	now   func() time.Time
}

// NewMemoryCache creates an in-memory rate cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{now: time.Now}
}

// Get implements RateCache
func (c *MemoryCache) Get(_ context.Context) (*Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.table == nil {
		return nil, false
	}
	if c.now().Sub(c.table.FetchedAt) >= c.table.TTL {
		return nil, false
	}
	return c.table, true
}

// Set implements RateCache
func (c *MemoryCache) Set(_ context.Context, table *Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = table
}

const redisRateKey = "fx:rates:usd"

// RedisCache shares the rate table across processes via Redis, so a
// fleet of import workers performs one live fetch per TTL window.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis-backed rate cache
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get implements RateCache
func (c *RedisCache) Get(ctx context.Context) (*Table, bool) {
	data, err := c.client.Get(ctx, redisRateKey).Bytes()
	if err != nil {
		return nil, false
	}
	var table Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, false
	}
	return &table, true
}

// Set implements RateCache
func (c *RedisCache) Set(ctx context.Context, table *Table) {
	data, err := json.Marshal(table)
	if err != nil {
		return
	}
	// Redis expiry enforces the TTL; a best-effort write failure is ignored
	_ = c.client.Set(ctx, redisRateKey, data, table.TTL).Err()
}
