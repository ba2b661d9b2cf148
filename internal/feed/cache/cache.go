package cache

import (
	"context"
	"sync"
	"time"

	"tokenswap/internal/feed"
)

// Source caches the last successful feed snapshot for a TTL.
// While the snapshot is fresh it is returned without hitting the
// underlying source. When a refresh fails but a previous snapshot
// exists, the stale snapshot is returned rather than failing entirely.
type Source struct {
	S   feed.Source
	TTL time.Duration

	mu        sync.RWMutex
	records   []feed.Record
	fetchedAt time.Time
}

func (c *Source) Name() string { return c.S.Name() }

// Fetch returns the cached snapshot when valid, otherwise refreshes it.
func (c *Source) Fetch(ctx context.Context) ([]feed.Record, error) {
	if c.TTL <= 0 {
		return c.S.Fetch(ctx)
	}

	now := time.Now()

	c.mu.RLock()
	if !c.fetchedAt.IsZero() && now.Before(c.fetchedAt.Add(c.TTL)) {
		records := c.records
		c.mu.RUnlock()
		return records, nil
	}
	c.mu.RUnlock()

	fresh, err := c.S.Fetch(ctx)
	if err != nil {
		// Serve stale data over nothing if we ever fetched successfully.
		c.mu.RLock()
		records := c.records
		stale := !c.fetchedAt.IsZero()
		c.mu.RUnlock()
		if stale {
			return records, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.records = fresh
	c.fetchedAt = now
	c.mu.Unlock()
	return fresh, nil
}

// Invalidate drops the cached snapshot so the next Fetch refreshes.
func (c *Source) Invalidate() {
	c.mu.Lock()
	c.records = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}
