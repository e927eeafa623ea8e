package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the counter, starts the window on the first
// hit and returns {count, pttl}. A key left without a TTL gets one again.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisLimiter shares windows across instances through Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	clock  Clock
}

// Check implements Limiter.
func (l *RedisLimiter) Check(ctx context.Context, key string, window time.Duration, max int) (Result, error) {
	vals, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("rate limit script returned %d values", len(vals))
	}

	now := l.clock()
	resetAt := now.Add(time.Duration(vals[1]) * time.Millisecond)
	res := decide(int(vals[0]), max, resetAt, now)
	recordDecision(string(DriverRedis), res.Allowed)
	return res, nil
}

// Close closes the underlying client.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
