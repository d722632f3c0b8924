package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript keeps one sorted-set member per accepted hit, scored by
// its timestamp in milliseconds. Returns {allowed, count, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then
  oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// RedisSlidingWindowLimiter shares counters across API instances.
type RedisSlidingWindowLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisSlidingWindowLimiter(client redis.UniversalClient, prefix string) *RedisSlidingWindowLimiter {
	if prefix == "" {
		prefix = "globetrotter"
	}
	return &RedisSlidingWindowLimiter{client: client, prefix: prefix, now: time.Now}
}

func (l *RedisSlidingWindowLimiter) Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	policy = normalizePolicy(policy)
	now := l.now()
	nowMS := now.UnixMilli()
	windowMS := policy.Window.Milliseconds()
	member := strconv.FormatInt(nowMS, 10) + "-" + uuid.NewString()

	res, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.prefix + ":ratelimit:" + key},
		nowMS, windowMS, policy.Limit, member,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("redis rate limit: unexpected reply length %d", len(res))
	}

	allowed, count, oldestMS := res[0] == 1, int(res[1]), res[2]
	resetAt := time.UnixMilli(oldestMS + windowMS)
	if allowed {
		return Decision{Allowed: true, Remaining: policy.Limit - count, ResetAt: resetAt}, nil
	}
	return Decision{
		Allowed:    false,
		RetryAfter: max(resetAt.Sub(now), time.Second),
		ResetAt:    resetAt,
	}, nil
}
