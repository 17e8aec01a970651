package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a sliding window request limiter for upstream calls, shared
// through Redis so that concurrent runs draw from one budget. Each member of
// the sorted set is one request scored by its timestamp in milliseconds.
type RateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	window      time.Duration
	pollEvery   time.Duration
}

// Removes expired entries, then admits the request if the window has room.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, math.floor(window / 1000) + 1)
    return 1
end
return 0
`)

func NewRateLimiter(redisClient *redis.Client, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
		window:      time.Second,
		pollEvery:   50 * time.Millisecond,
	}
}

func rlKey(upstream string) string {
	return fmt.Sprintf("leadsync:rl:%s", upstream)
}

// Allow reports whether one more request to upstream fits in the current
// window. A limit <= 0 disables limiting. Redis errors fail open.
func (rl *RateLimiter) Allow(ctx context.Context, upstream string, limit int) bool {
	if limit <= 0 {
		return true
	}

	now := time.Now()
	member := fmt.Sprintf("%d:%d", now.UnixMilli(), now.UnixNano()%100000)

	result, err := rl.script.Run(ctx, rl.redisClient, []string{rlKey(upstream)},
		now.UnixMilli(), rl.window.Milliseconds(), limit, member,
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "error", err, "upstream", upstream)
		return true
	}

	if result == 0 {
		rl.logger.Debug("rate limited", "upstream", upstream, "limit", limit)
		return false
	}
	return true
}

// Wait blocks until a request to upstream is admitted or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, upstream string, limit int) error {
	for {
		if rl.Allow(ctx, upstream, limit) {
			return nil
		}

		timer := time.NewTimer(rl.pollEvery)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
