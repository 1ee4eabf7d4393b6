package cache

import (
	"context"
	"sync"
	"time"

	"docrelay/internal/model"
)

type memoryEntry struct {
	payload model.DocumentAnswer
	created time.Time
}

// MemoryResponseCache is a process-local ResponseCache. Expired entries are
// never returned and are purged by Sweep, which Put runs after every write.
type MemoryResponseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryResponseCache(ttl time.Duration) *MemoryResponseCache {
	return NewMemoryResponseCacheWithClock(ttl, time.Now)
}

func NewMemoryResponseCacheWithClock(ttl time.Duration, now func() time.Time) *MemoryResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryResponseCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryResponseCache) Get(_ context.Context, key string) (*model.DocumentAnswer, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || c.now().Sub(entry.created) >= c.ttl {
		return nil, false, nil
	}
	payload := entry.payload
	return &payload, true, nil
}

func (c *MemoryResponseCache) Put(ctx context.Context, key string, payload *model.DocumentAnswer) error {
	if payload == nil {
		return nil
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{payload: *payload, created: c.now()}
	c.mu.Unlock()

	_, err := c.Sweep(ctx)
	return err
}

func (c *MemoryResponseCache) Sweep(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.created) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (c *MemoryResponseCache) Len(_ context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
