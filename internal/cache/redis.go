package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// namespacePrefix keeps lucidfiles' keys distinct from any other data in a
// shared Redis instance.
const namespacePrefix = "lucidfiles:cache:"

// RedisCache is a Redis-backed cache using native key TTL for expiry,
// grounded on the pipelined Set-with-TTL pattern used for session storage
// elsewhere in the pack. Byte-budget eviction is left to Redis itself
// (maxmemory-policy allkeys-lru) rather than tracked client-side, since the
// store is shared and the client has no cheap way to see total usage.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration

	hits, misses, evictions atomic.Int64
}

// NewRedisCache wraps an existing Redis client. ttl is applied to every Set.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(key string) ([]byte, bool) {
	val, err := c.client.Get(context.Background(), namespacePrefix+key).Bytes()
	if err == redis.Nil {
		c.misses.Add(1)
		return nil, false
	}
	if err != nil {
		// Cache-layer errors are always swallowed; the cache is an
		// optimization, not a dependency.
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return val, true
}

func (c *RedisCache) Set(key string, value []byte) {
	ctx := context.Background()
	pipe := c.client.Pipeline()
	pipe.Set(ctx, namespacePrefix+key, value, c.ttl)
	_, _ = pipe.Exec(ctx)
}

func (c *RedisCache) Clear() {
	ctx := context.Background()
	iter := c.client.Scan(ctx, 0, namespacePrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		c.client.Del(ctx, keys...)
	}
}

func (c *RedisCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{Hits: hits, Misses: misses, Evictions: c.evictions.Load()}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
