// Package memcache is an in-process cache.Store for local runs and tests.
// Entries are dropped lazily on access and by Sweep.
package memcache

import (
	"context"
	"sync"
	"time"

	"github.com/BearBump/trackgen/internal/cache"
)

type entry struct {
	value     string
	expiresAt time.Time
}

type Cache struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

var _ cache.Store = (*Cache)(nil)

func New() *Cache {
	return &Cache{m: make(map[string]entry), now: time.Now}
}

// WithClock replaces the time source; used by tests to expire entries.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, cache.Unavailable(err, "memcache get")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.live(key)
	return e.value, ok, nil
}

func (c *Cache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return cache.Unavailable(err, "memcache set")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *Cache) SetIfAbsentWithTTL(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, cache.Unavailable(err, "memcache setnx")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.live(key); ok {
		return false, nil
	}
	c.m[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	return true, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.m {
		if !now.Before(e.expiresAt) {
			delete(c.m, k)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Sweep()
		}
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// caller holds mu
func (c *Cache) live(key string) (entry, bool) {
	e, ok := c.m[key]
	if !ok {
		return entry{}, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.m, key)
		return entry{}, false
	}
	return e, true
}
