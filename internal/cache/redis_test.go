package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(client, time.Minute)
}

func TestRedisCache_GetSet(t *testing.T) {
	c := newTestRedisCache(t)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss")
	}
	c.Set("k", []byte("value"))
	v, ok := c.Get("k")
	if !ok || string(v) != "value" {
		t.Errorf("Get: got %q, %v", v, ok)
	}
}

func TestRedisCache_Stats(t *testing.T) {
	c := newTestRedisCache(t)
	c.Set("k", []byte("value"))
	c.Get("k")
	c.Get("missing")
	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRedisCache_Clear(t *testing.T) {
	c := newTestRedisCache(t)
	c.Set("k", []byte("value"))
	c.Clear()
	if _, ok := c.Get("k"); ok {
		t.Error("expected cache empty after Clear")
	}
}
