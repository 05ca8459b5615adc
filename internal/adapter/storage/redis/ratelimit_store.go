package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// hitScript increments a window counter, starting the window on the first hit,
// and returns the count together with the window's remaining TTL in ms.
var hitScript = goredis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// RateLimitStore keeps per-key request counters in Redis.
type RateLimitStore struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

// NewRateLimitStore creates a new Redis-backed rate limit store.
func NewRateLimitStore(client *goredis.Client) *RateLimitStore {
	return &RateLimitStore{
		client: client,
		prefix: "lts:ratelimit:",
		now:    time.Now,
	}
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// Allow counts one request against key. The window opens on the first request
// and lasts for window; counting and expiry happen atomically in one script.
func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error) {
	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}

	vals, err := hitScript.Run(ctx, s.client, []string{s.prefix + key}, windowMs).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis rate limit hit: %w", err)
	}
	if len(vals) != 2 {
		return nil, fmt.Errorf("redis rate limit hit: unexpected reply %v", vals)
	}
	count, ttl := vals[0], vals[1]

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return &RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   s.now().Add(time.Duration(ttl) * time.Millisecond).Unix(),
	}, nil
}
