package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func assertWindowBehaviour(t *testing.T, l Limiter, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "s")
		require.NoError(t, err)
		assert.True(t, ok, "call %d", i+1)
		clock.Advance(10 * time.Second)
	}

	ok, err := l.Allow(ctx, "s")
	require.NoError(t, err)
	assert.False(t, ok, "4th call within the window")

	other, err := l.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, other, "sessions are independent")

	// 61s after the first call: only the first timestamp has aged out
	clock.Advance(31 * time.Second)
	ok, err = l.Allow(ctx, "s")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(ctx, "s")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLimiter_Window(t *testing.T) {
	clock := newClock()
	l := NewMemoryLimiterWithClock(3, 60*time.Second, clock.Now)
	assertWindowBehaviour(t, l, clock)
	assert.Equal(t, 2, l.Sessions(context.Background()))
}

func TestMemoryLimiter_RejectedAttemptsAreNotRecorded(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	l := NewMemoryLimiterWithClock(1, time.Minute, clock.Now)

	ok, _ := l.Allow(ctx, "s")
	require.True(t, ok)

	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Second)
		ok, _ = l.Allow(ctx, "s")
		assert.False(t, ok)
	}

	// had rejections been recorded, the session would still be blocked
	clock.Advance(10 * time.Second)
	ok, _ = l.Allow(ctx, "s")
	assert.True(t, ok)
}

func TestMemoryLimiter_Defaults(t *testing.T) {
	l := NewMemoryLimiter(0, 0)
	assert.Equal(t, DefaultMaxRequests, l.maxRequests)
	assert.Equal(t, DefaultWindow, l.window)
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(50, time.Hour)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow(ctx, "shared"); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 50, allowed.Load())
}

func TestRedisLimiter_Window(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	defer client.Close()

	clock := newClock()
	l := NewRedisLimiter(client, "test", 3, 60*time.Second)
	l.now = clock.Now

	assertWindowBehaviour(t, l, clock)
	assert.Equal(t, 2, l.Sessions(context.Background()))
	assert.True(t, mr.Exists("test:ratelimit:s"))
}
