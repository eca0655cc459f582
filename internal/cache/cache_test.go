package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyIsDeterministicAndNamespaced(t *testing.T) {
	a := Key("search", "golang", "25")
	b := Key("search", "golang", "25")
	assert.Equal(t, a, b)
	assert.Contains(t, a, "ws:search:")
}

func TestKeyDiffersByKind(t *testing.T) {
	a := Key("search", "x")
	b := Key("fetch", "x")
	assert.NotEqual(t, a, b)
}

func TestGetSetRoundTripsThroughL1(t *testing.T) {
	c := New(context.Background(), "", time.Minute, 100)
	key := Key("fetch", "https://example.com")
	c.Set(context.Background(), key, []byte("payload"))

	data, ok := c.Get(context.Background(), key)
	assert.True(t, ok)
	assert.Equal(t, []byte("payload"), data)
}

func TestGetMissWhenAbsent(t *testing.T) {
	c := New(context.Background(), "", time.Minute, 100)
	_, ok := c.Get(context.Background(), Key("fetch", "nope"))
	assert.False(t, ok)
}

func TestGetExpiresAfterTTL(t *testing.T) {
	c := New(context.Background(), "", time.Millisecond, 100)
	key := Key("fetch", "https://example.com/ttl")
	c.Set(context.Background(), key, []byte("payload"))
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(context.Background(), key)
	assert.False(t, ok)
}

func TestEvictIfNeededCapsL1Size(t *testing.T) {
	c := New(context.Background(), "", time.Minute, 2)
	c.Set(context.Background(), "a", []byte("1"))
	c.Set(context.Background(), "b", []byte("2"))
	c.Set(context.Background(), "c", []byte("3"))

	count := 0
	c.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	assert.LessOrEqual(t, count, 2)
}

func TestStatsTracksHitsAndMisses(t *testing.T) {
	c := New(context.Background(), "", time.Minute, 100)
	key := Key("fetch", "https://example.com/stats")
	c.Set(context.Background(), key, []byte("payload"))

	c.Get(context.Background(), key)
	c.Get(context.Background(), Key("fetch", "missing"))

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestNilCacheIsSafeNoOp(t *testing.T) {
	var c *Cache
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	c.Set(context.Background(), "k", []byte("v"))
	hits, misses := c.Stats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
}
