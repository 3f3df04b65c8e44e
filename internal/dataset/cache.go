package dataset

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// QueryCache memoises view results. The table is immutable, so entries never
// expire and the key space is bounded by the filter combinations clients use.
// A nil or disabled cache computes every request.
type QueryCache struct {
	enabled bool
	mu      sync.RWMutex
	entries map[string]any
	group   singleflight.Group
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewQueryCache creates a cache; enabled=false turns it into a pass-through.
func NewQueryCache(enabled bool) *QueryCache {
	return &QueryCache{
		enabled: enabled,
		entries: make(map[string]any),
	}
}

// Enabled reports whether results are memoised.
func (c *QueryCache) Enabled() bool { return c != nil && c.enabled }

// Do returns the cached value for key or computes it. Concurrent callers of
// the same key share one computation. The boolean is true when this call did
// not run compute itself. Errors are never cached.
func (c *QueryCache) Do(ctx context.Context, key string, compute func(context.Context) (any, error)) (any, bool, error) {
	if !c.Enabled() {
		v, err := compute(ctx)
		return v, false, err
	}

	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return v, true, nil
	}

	computed := false
	ch := c.group.DoChan(key, func() (any, error) {
		c.mu.RLock()
		v, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}
		computed = true
		c.misses.Add(1)
		// The computation outlives any single caller.
		v, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = v
		c.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		return res.Val, !computed && res.Err == nil, res.Err
	}
}

// Get returns a cached value without computing.
func (c *QueryCache) Get(key string) (any, bool) {
	if !c.Enabled() {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Stats returns a snapshot of the cache counters.
func (c *QueryCache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return CacheStats{Entries: n, Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Clear drops every entry and resets the counters.
func (c *QueryCache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]any)
	c.mu.Unlock()
	c.hits.Store(0)
	c.misses.Store(0)
}
