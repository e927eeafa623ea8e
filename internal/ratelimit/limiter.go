// Package ratelimit implements fixed-window request counting keyed by user
// and client address.
//
// A window opens on the first hit for a key and lasts for the configured
// duration; the counter then resets entirely. Two stores are available: an
// in-process map for single instances and Redis for shared counters.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidConfig = errors.New("invalid rate limit configuration")
	ErrInvalidDriver = errors.New("invalid rate limit driver")
)

// Driver selects the counter store.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverRedis  Driver = "redis"
)

// Result is the outcome of a single Check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfterSeconds is set only when Allowed is false and is at least 1.
	RetryAfterSeconds int
	ResetAt           time.Time
}

// Limiter counts hits for key within a fixed window of length window.
type Limiter interface {
	Check(ctx context.Context, key string, window time.Duration, max int) (Result, error)
}

// Key builds the counter key for a generation request.
func Key(userID, clientIP string) string {
	return "ai:" + userID + ":" + clientIP
}

// SetHeaders writes the X-RateLimit-* headers for res.
func SetHeaders(h http.Header, res Result) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
}

// Clock returns the current time.
type Clock func() time.Time

type config struct {
	clock       Clock
	redisClient *redis.Client
	keyPrefix   string
}

// Option configures New.
type Option func(*config)

// WithClock injects the time source.
func WithClock(clock Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithRedisClient sets the client used by the redis driver.
func WithRedisClient(client *redis.Client) Option {
	return func(c *config) {
		c.redisClient = client
	}
}

// WithKeyPrefix namespaces redis keys.
func WithKeyPrefix(prefix string) Option {
	return func(c *config) {
		c.keyPrefix = prefix
	}
}

// New creates a Limiter for driver.
// For DriverRedis, requires WithRedisClient option.
func New(driver Driver, opts ...Option) (Limiter, error) {
	cfg := &config{clock: time.Now, keyPrefix: "ratelimit:"}
	for _, opt := range opts {
		opt(cfg)
	}

	switch driver {
	case DriverMemory:
		return NewMemoryLimiter(cfg.clock), nil
	case DriverRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &RedisLimiter{
			client: cfg.redisClient,
			prefix: cfg.keyPrefix,
			clock:  cfg.clock,
		}, nil
	default:
		return nil, ErrInvalidDriver
	}
}

// decide turns a window count into a Result.
func decide(count, max int, resetAt, now time.Time) Result {
	res := Result{
		Allowed: count <= max,
		Limit:   max,
		ResetAt: resetAt,
	}
	if remaining := max - count; remaining > 0 {
		res.Remaining = remaining
	}
	if !res.Allowed {
		res.RetryAfterSeconds = retryAfter(resetAt.Sub(now))
	}
	return res
}

func retryAfter(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
