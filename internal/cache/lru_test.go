package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newClockedCache(maxSize int, ttl time.Duration) (*LRUCache[int], *clock) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](maxSize, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCacheGetSet(t *testing.T) {
	c, _ := newClockedCache(10, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Size())

	s := c.Stats()
	assert.EqualValues(t, 2, s.Hits)
	assert.EqualValues(t, 1, s.Misses)
}

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newClockedCache(2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.EqualValues(t, 1, c.Stats().Evictions)
}

func TestLRUCacheExpiry(t *testing.T) {
	c, clk := newClockedCache(10, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	clk.t = clk.t.Add(30 * time.Second)
	c.Set("c", 3)

	clk.t = clk.t.Add(45 * time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok)

	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 1, c.Size())
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRUCacheDeleteMany(t *testing.T) {
	c, _ := newClockedCache(10, time.Minute)
	c.Set("summary:1", 1)
	c.Set("status:1", 2)
	c.Set("summary:2", 3)

	c.Delete("summary:1", "status:1", "absent")

	assert.Equal(t, 1, c.Size())
}

func TestLRUCachePurge(t *testing.T) {
	c, _ := newClockedCache(10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Purge()

	assert.Zero(t, c.Size())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestLRUCacheZeroTTLDisables(t *testing.T) {
	c := NewLRUCache[int](10, 0)
	c.Set("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestManagerSweepAndStats(t *testing.T) {
	a, clk := newClockedCache(10, time.Minute)
	a.Set("x", 1)
	clk.t = clk.t.Add(2 * time.Minute)

	m := NewManager()
	m.Register("summary", a)

	assert.Equal(t, 1, m.Sweep())
	stats := m.Stats()
	require.Contains(t, stats, "summary")
	assert.Zero(t, stats["summary"].Size)
}

func TestManagerStopIsIdempotent(t *testing.T) {
	m := NewManager()
	m.StartCleanup(context.Background(), 10*time.Millisecond)
	m.StartCleanup(context.Background(), 10*time.Millisecond)

	m.Stop()
	m.Stop()
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Stop()
}
