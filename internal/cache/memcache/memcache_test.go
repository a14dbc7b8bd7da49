package memcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BearBump/trackgen/internal/cache"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestCache_SetGetExpire(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New().WithClock(clk.Now)
	ctx := context.Background()

	require.NoError(t, c.SetWithTTL(ctx, "k", "v", time.Minute))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	clk.Advance(time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestCache_SetIfAbsent(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New().WithClock(clk.Now)
	ctx := context.Background()

	ok, err := c.SetIfAbsentWithTTL(ctx, "k", "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.SetIfAbsentWithTTL(ctx, "k", "b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	clk.Advance(2 * time.Minute)
	ok, err = c.SetIfAbsentWithTTL(ctx, "k", "c", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	v, _, _ := c.Get(ctx, "k")
	require.Equal(t, "c", v)
}

func TestCache_SetIfAbsent_Concurrent(t *testing.T) {
	c := New()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := c.SetIfAbsentWithTTL(context.Background(), "k", "v", time.Minute); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), winners.Load())
}

func TestCache_Sweep(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New().WithClock(clk.Now)
	ctx := context.Background()

	require.NoError(t, c.SetWithTTL(ctx, "short", "v", time.Second))
	require.NoError(t, c.SetWithTTL(ctx, "long", "v", time.Hour))
	clk.Advance(time.Minute)

	require.Equal(t, 1, c.Sweep())
	require.Equal(t, 1, c.Len())
}

func TestCache_CanceledContext(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrUnavailable)
	require.ErrorIs(t, err, context.Canceled)
}
