package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
)

// RedisLimiter applies the MemoryLimiter algorithm to a sorted set per
// session so several instances share one budget.
type RedisLimiter struct {
	client      *redisv9.Client
	prefix      string
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

func NewRedisLimiter(client *redisv9.Client, prefix string, maxRequests int, window time.Duration) *RedisLimiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if prefix == "" {
		prefix = "docrelay"
	}
	return &RedisLimiter{
		client:      client,
		prefix:      prefix,
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// allowScript prunes, counts, and records in one round trip so concurrent
// callers cannot both take the last slot.
var allowScript = redisv9.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[2]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

func (l *RedisLimiter) Allow(ctx context.Context, sessionID string) (bool, error) {
	now := l.now()
	cutoff := now.Add(-l.window).UnixMilli()
	res, err := allowScript.Run(ctx, l.client, []string{l.sessionKey(sessionID)},
		strconv.FormatInt(cutoff, 10),
		l.maxRequests,
		now.UnixMilli(),
		uuid.NewString(),
		l.window.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis rate limit check failed: %w", err)
	}
	return res == 1, nil
}

func (l *RedisLimiter) Sessions(ctx context.Context) int {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := l.client.Scan(ctx, cursor, l.sessionKey("*"), 200).Result()
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

func (l *RedisLimiter) sessionKey(sessionID string) string {
	return fmt.Sprintf("%s:ratelimit:%s", l.prefix, sessionID)
}
