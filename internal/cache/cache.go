// Package cache provides bounded, TTL-aware caches for embeddings and
// search results. Both caches share one shape: LRU eviction ordered by
// last access, a per-entry TTL, and an approximate byte budget. Neither
// cache is ever required for correctness — every lookup may be swallowed
// and treated as a miss.
package cache

import "time"

// Entry is one cached value plus the bookkeeping needed for TTL and
// byte-budget eviction.
type Entry struct {
	Key       string
	Value     []byte
	Bytes     int
	ExpiresAt time.Time
}

// Stats summarizes a cache's behavior for the /cache/stats diagnostic
// surface.
type Stats struct {
	Hits         int64
	Misses       int64
	Evictions    int64
	CurrentBytes int64
	MaxBytes     int64
	HitRate      float64
}

// Cache is the shape both the embedding cache and the search-result cache
// implement, whether backed by an in-process LRU or Redis.
type Cache interface {
	// Get returns the cached value for key, or ok=false on a miss
	// (including an expired entry, which is treated as a miss and
	// removed lazily).
	Get(key string) (value []byte, ok bool)
	// Set stores value under key with the cache's configured TTL,
	// evicting older entries if the byte budget would be exceeded.
	Set(key string, value []byte)
	// Clear empties the cache.
	Clear()
	// Stats reports current hit/miss/eviction counters.
	Stats() Stats
	// Close releases any underlying connection (Redis) or resources.
	Close() error
}
