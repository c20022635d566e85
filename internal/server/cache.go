package server

import (
	"context"
	"sync"
	"time"

	"github.com/OpenVisualCloud/VDI-Toolkit/internal/store"
)

// cacheEntry holds a cached status row with its timestamp.
type cacheEntry struct {
	row       *store.Row
	timestamp time.Time
}

// StatusCache provides a TTL-based cache of the latest status row per target.
type StatusCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewStatusCache creates a new cache. A ttl of 0 disables caching.
func NewStatusCache(ttl time.Duration) *StatusCache {
	return &StatusCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Latest returns the cached row for target if within TTL, otherwise
// reads it through load. A nil row (no data yet) is cached too.
func (c *StatusCache) Latest(ctx context.Context, target string, load func(context.Context, string) (*store.Row, error)) (*store.Row, error) {
	if c.ttl == 0 {
		return load(ctx, target)
	}

	c.mu.Lock()
	if entry, ok := c.entries[target]; ok && c.now().Sub(entry.timestamp) < c.ttl {
		row := entry.row
		c.mu.Unlock()
		return row, nil
	}
	c.mu.Unlock()

	row, err := load(ctx, target)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[target] = cacheEntry{row: row, timestamp: c.now()}
	c.mu.Unlock()

	return row, nil
}

// Invalidate removes the entry for target.
func (c *StatusCache) Invalidate(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, target)
}

// InvalidateAll clears the entire cache.
func (c *StatusCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
