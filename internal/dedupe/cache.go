package dedupe

import (
	"sync"
	"time"
)

type entry struct {
	fingerprint string
	ts          time.Time
}

type value struct {
	analysisID string
	ts         time.Time
}

// Cache remembers which analysis was produced for a request fingerprint so
// redelivered or repeated requests can reuse it. Entries expire after ttl and
// the oldest entries are evicted once capacity is exceeded.
type Cache struct {
	mu       sync.Mutex
	items    map[string]value
	order    []entry
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache with the provided capacity and ttl.
func NewCache(capacity int, ttl time.Duration, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &Cache{
		items:    make(map[string]value, capacity),
		order:    make([]entry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the analysis id recorded for fingerprint inside the ttl window.
func (c *Cache) Lookup(fingerprint string) (string, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.items[fingerprint]
	if !ok || now.Sub(v.ts) > c.ttl {
		return "", false
	}
	return v.analysisID, true
}

// Remember records the analysis produced for fingerprint.
func (c *Cache) Remember(fingerprint, analysisID string) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[fingerprint] = value{analysisID: analysisID, ts: now}
	c.order = append(c.order, entry{fingerprint: fingerprint, ts: now})
	c.compact(now)
}

// Len reports the number of live fingerprints.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].ts.Before(cutoff) || c.stale(c.order[0])) {
		oldest := c.order[0]
		c.order = c.order[1:]

		if v, ok := c.items[oldest.fingerprint]; ok && v.ts.Equal(oldest.ts) {
			delete(c.items, oldest.fingerprint)
		}
	}
}

// stale reports whether e was superseded by a later Remember of the same key.
func (c *Cache) stale(e entry) bool {
	v, ok := c.items[e.fingerprint]
	return !ok || !v.ts.Equal(e.ts)
}
