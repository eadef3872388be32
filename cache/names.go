// Package cache provides the process-local, time-boxed cache of user display
// names used by the chat read path and the checkout pipeline.
package cache

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

// FetchFunc loads a user's display name and role from the backing stores.
type FetchFunc func(ctx context.Context, userID string) (name, role string, err error)

type entry struct {
	name     string
	role     string
	cachedAt time.Time
}

// NameCache maps userId to a display name with TTL-driven eviction: lazy on
// read plus a periodic background sweep. Lookups never fail; a fetch error
// yields a synthetic fallback name so callers always get something to show.
// No capacity bound beyond the TTL; the key space is the user count.
type NameCache struct {
	mu      sync.Mutex
	entries map[string]entry

	fetch FetchFunc
	ttl   time.Duration

	stop chan struct{}
	once sync.Once

	// now is swappable in tests.
	now func() time.Time
}

func New(fetch FetchFunc, ttl, sweepInterval time.Duration) *NameCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	c := &NameCache{
		entries: make(map[string]entry),
		fetch:   fetch,
		ttl:     ttl,
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	go c.sweep(sweepInterval)
	return c
}

// Resolve returns the cached name when fresh, refetching otherwise.
func (c *NameCache) Resolve(ctx context.Context, userID string) string {
	c.mu.Lock()
	if e, ok := c.entries[userID]; ok && c.now().Sub(e.cachedAt) < c.ttl {
		c.mu.Unlock()
		return e.name
	}
	c.mu.Unlock()

	name, role, err := c.fetch(ctx, userID)
	if err != nil || name == "" {
		if err != nil {
			log.Printf("name cache: fetch failed for %s: %v", userID, err)
		}
		name = fallbackName(userID)
	}

	c.mu.Lock()
	c.entries[userID] = entry{name: name, role: role, cachedAt: c.now()}
	c.mu.Unlock()
	return name
}

// ResolveMany batch-resolves ids into a userId -> name map.
func (c *NameCache) ResolveMany(ctx context.Context, userIDs []string) map[string]string {
	out := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if _, done := out[id]; done {
			continue
		}
		out[id] = c.Resolve(ctx, id)
	}
	return out
}

// Clear drops every entry. Exposed through the admin clear-cache endpoint.
func (c *NameCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len reports the current entry count.
func (c *NameCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop terminates the background sweeper.
func (c *NameCache) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// sweep evicts expired entries on a timer, independent of access pattern.
func (c *NameCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *NameCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if c.now().Sub(e.cachedAt) >= c.ttl {
			delete(c.entries, id)
		}
	}
}

func fallbackName(userID string) string {
	if len(userID) > 6 {
		return "User " + userID[len(userID)-6:]
	}
	return "User " + userID
}
