package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// countingFetch records how many times each id was loaded.
type countingFetch struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func newCountingFetch() *countingFetch {
	return &countingFetch{calls: map[string]int{}}
}

func (c *countingFetch) fetch(_ context.Context, userID string) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[userID]++
	if c.err != nil {
		return "", "", c.err
	}
	return "Display " + userID, "customer", nil
}

func (c *countingFetch) count(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[userID]
}

func newTestCache(f FetchFunc) (*NameCache, *time.Time) {
	c := New(f, 5*time.Minute, time.Hour)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestResolveCachesWithinTTL(t *testing.T) {
	fetch := newCountingFetch()
	c, now := newTestCache(fetch.fetch)
	defer c.Stop()

	ctx := context.Background()
	if got := c.Resolve(ctx, "u1"); got != "Display u1" {
		t.Fatalf("Resolve = %q", got)
	}

	// Repeated lookups inside the TTL must not hit the store again.
	*now = now.Add(4 * time.Minute)
	for i := 0; i < 5; i++ {
		if got := c.Resolve(ctx, "u1"); got != "Display u1" {
			t.Fatalf("Resolve = %q", got)
		}
	}
	if n := fetch.count("u1"); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
}

func TestResolveRefreshesAfterExpiry(t *testing.T) {
	fetch := newCountingFetch()
	c, now := newTestCache(fetch.fetch)
	defer c.Stop()

	ctx := context.Background()
	c.Resolve(ctx, "u1")

	*now = now.Add(5*time.Minute + time.Second)
	c.Resolve(ctx, "u1")

	if n := fetch.count("u1"); n != 2 {
		t.Errorf("fetch calls = %d, want 2 (expired entry refetched)", n)
	}
}

func TestResolveFallbackOnFetchFailure(t *testing.T) {
	fetch := newCountingFetch()
	fetch.err = errors.New("store down")
	c, _ := newTestCache(fetch.fetch)
	defer c.Stop()

	got := c.Resolve(context.Background(), "abcdef123456")
	if got != "User 123456" {
		t.Errorf("Resolve = %q, want synthetic fallback", got)
	}
}

func TestResolveMany(t *testing.T) {
	fetch := newCountingFetch()
	c, _ := newTestCache(fetch.fetch)
	defer c.Stop()

	out := c.ResolveMany(context.Background(), []string{"u1", "u2", "u1"})
	if len(out) != 2 {
		t.Fatalf("entries = %d, want 2", len(out))
	}
	if out["u1"] != "Display u1" || out["u2"] != "Display u2" {
		t.Errorf("unexpected map: %v", out)
	}
	if n := fetch.count("u1"); n != 1 {
		t.Errorf("duplicate id fetched %d times, want 1", n)
	}
}

func TestClear(t *testing.T) {
	fetch := newCountingFetch()
	c, _ := newTestCache(fetch.fetch)
	defer c.Stop()

	ctx := context.Background()
	c.Resolve(ctx, "u1")
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", c.Len())
	}

	c.Resolve(ctx, "u1")
	if n := fetch.count("u1"); n != 2 {
		t.Errorf("fetch calls = %d, want 2 after clear", n)
	}
}

func TestSweepEvictsExpired(t *testing.T) {
	fetch := newCountingFetch()
	c, now := newTestCache(fetch.fetch)
	defer c.Stop()

	ctx := context.Background()
	c.Resolve(ctx, "u1")
	c.Resolve(ctx, "u2")

	*now = now.Add(3 * time.Minute)
	c.Resolve(ctx, "u3")

	*now = now.Add(3 * time.Minute) // u1/u2 now past TTL, u3 still fresh
	c.evictExpired()

	if c.Len() != 1 {
		t.Errorf("Len = %d after sweep, want 1", c.Len())
	}
}
