package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docrelay/internal/model"
)

// RedisResponseCache stores answers as JSON with a Redis expiry, so the
// server evicts stale entries itself.
type RedisResponseCache struct {
	client *redisv9.Client
	prefix string
	ttl    time.Duration
}

func NewRedisResponseCache(client *redisv9.Client, prefix string, ttl time.Duration) *RedisResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "docrelay"
	}
	return &RedisResponseCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisResponseCache) Get(ctx context.Context, key string) (*model.DocumentAnswer, bool, error) {
	raw, err := c.client.Get(ctx, c.answerKey(key)).Result()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get answer failed: %w", err)
	}

	var payload model.DocumentAnswer
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached answer failed: %w", err)
	}
	return &payload, true, nil
}

func (c *RedisResponseCache) Put(ctx context.Context, key string, payload *model.DocumentAnswer) error {
	if payload == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal answer cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.answerKey(key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set answer failed: %w", err)
	}
	return nil
}

// Sweep is a no-op; Redis expires keys on its own.
func (c *RedisResponseCache) Sweep(context.Context) (int, error) {
	return 0, nil
}

func (c *RedisResponseCache) Len(ctx context.Context) int {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.answerKey("*"), 200).Result()
		if err != nil {
			return total
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			return total
		}
	}
}

func (c *RedisResponseCache) answerKey(key string) string {
	return fmt.Sprintf("%s:answer:%s", c.prefix, key)
}
