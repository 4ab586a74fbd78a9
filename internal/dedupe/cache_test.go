package dedupe_test

import (
	"sync"
	"testing"
	"time"

	"github.com/DeafMist/truthguard/backend/internal/dedupe"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestCacheReturnsRememberedAnalysis(t *testing.T) {
	cache := dedupe.NewCache(10, time.Minute)
	_, ok := cache.Lookup("alpha")
	require.False(t, ok)

	cache.Remember("alpha", "analysis-1")
	id, ok := cache.Lookup("alpha")
	require.True(t, ok)
	require.Equal(t, "analysis-1", id)
}

func TestCacheTTLExpiry(t *testing.T) {
	clk := newClock()
	cache := dedupe.NewCache(10, 20*time.Millisecond, dedupe.WithClock(clk.Now))

	cache.Remember("beta", "analysis-2")
	clk.Advance(25 * time.Millisecond)

	_, ok := cache.Lookup("beta")
	require.False(t, ok)
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	clk := newClock()
	cache := dedupe.NewCache(1, time.Minute, dedupe.WithClock(clk.Now))

	cache.Remember("first", "a")
	clk.Advance(time.Millisecond)
	cache.Remember("second", "b")

	_, ok := cache.Lookup("first")
	require.False(t, ok)
	id, ok := cache.Lookup("second")
	require.True(t, ok)
	require.Equal(t, "b", id)
	require.Equal(t, 1, cache.Len())
}

func TestCacheRememberOverwrites(t *testing.T) {
	clk := newClock()
	cache := dedupe.NewCache(2, time.Minute, dedupe.WithClock(clk.Now))

	cache.Remember("gamma", "old")
	clk.Advance(time.Second)
	cache.Remember("gamma", "new")
	clk.Advance(time.Second)
	cache.Remember("delta", "d")

	id, ok := cache.Lookup("gamma")
	require.True(t, ok)
	require.Equal(t, "new", id)
	require.Equal(t, 2, cache.Len())
}
