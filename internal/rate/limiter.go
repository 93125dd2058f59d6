package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_per_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])

if tokens == nil or ts == nil then
  tokens = capacity
  ts = now_ms
end

local elapsed = now_ms - ts
if elapsed > 0 then
  tokens = tokens + elapsed * refill_per_ms
  if tokens > capacity then
    tokens = capacity
  end
  ts = now_ms
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HMSET", key, "tokens", tostring(tokens), "ts", tostring(ts))
redis.call("PEXPIRE", key, ttl_ms)

return allowed
`

var tokenBucketLua = redis.NewScript(tokenBucketScript)

// BucketConfig tunes a [TokenBucket].
type BucketConfig struct {
	Capacity        int
	RefillPerSecond float64
}

// TokenBucket is a per-subject token bucket replenishing continuously at
// the configured rate. The bucket state is a Redis hash updated by a single
// Lua compare-and-set, so concurrent callers across instances never
// over-spend the budget.
type TokenBucket struct {
	redis  redis.UniversalClient
	prefix string
	config BucketConfig
}

// NewTokenBucket creates a [TokenBucket] namespaced under prefix.
func NewTokenBucket(redisClient redis.UniversalClient, prefix string, cfg BucketConfig) *TokenBucket {
	return &TokenBucket{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
	}
}

// Allow takes one token from the subject's bucket, reporting whether the
// request is within budget.
func (b *TokenBucket) Allow(ctx context.Context, subject string) (bool, error) {
	return b.AllowAt(ctx, subject, time.Now())
}

// AllowAt is [TokenBucket.Allow] with a caller-supplied clock. The
// timestamp travels to the script so the bucket needs no Redis-side time
// source.
func (b *TokenBucket) AllowAt(ctx context.Context, subject string, now time.Time) (bool, error) {
	refillPerMS := b.config.RefillPerSecond / 1000.0

	// Keep the key alive just long enough for an idle bucket to refill.
	ttl := time.Duration(float64(b.config.Capacity)/b.config.RefillPerSecond*2) * time.Second
	if ttl < time.Second {
		ttl = time.Second
	}

	result, err := tokenBucketLua.Run(
		ctx,
		b.redis,
		[]string{b.prefix + ":" + subject},
		b.config.Capacity,
		strconv.FormatFloat(refillPerMS, 'f', -1, 64),
		now.UnixMilli(),
		ttl.Milliseconds(),
	).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	allowed, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("%w: invalid bucket script response", ErrRedisUnavailable)
	}

	return allowed == 1, nil
}

// FixedWindow is a per-key fixed-window counter: INCR, with the TTL set on
// the first hit of the window.
type FixedWindow struct {
	redis  redis.UniversalClient
	limit  int
	window time.Duration
}

// NewFixedWindow creates a [FixedWindow] allowing limit hits per window.
func NewFixedWindow(redisClient redis.UniversalClient, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		redis:  redisClient,
		limit:  limit,
		window: window,
	}
}

// Allow counts one hit against key, returning [ErrRateLimited] once the
// window budget is spent.
func (w *FixedWindow) Allow(ctx context.Context, key string) error {
	count, err := w.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := w.redis.Expire(ctx, key, w.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(w.limit) {
		return ErrRateLimited
	}

	return nil
}
