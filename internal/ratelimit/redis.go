package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/callsim/callsim/internal/logger"
)

// Redis implements the sliding window on a shared sorted set per identifier:
// drop entries older than the window, count the rest, record this attempt.
// If redis is unreachable the check fails open.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedis(client *redis.Client, limit int, window time.Duration) *Redis {
	return &Redis{client: client, limit: limit, window: window}
}

func (r *Redis) Allow(ctx context.Context, identifier string) (bool, int, error) {
	key := "ratelimit:" + identifier
	now := time.Now()
	windowStart := now.Add(-r.window)

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)
	member := strconv.FormatInt(now.UnixNano(), 10)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, key, r.window)

	if _, err := pipe.Exec(ctx); err != nil {
		logger.L.WithError(err).Warn("rate limit check failed, allowing request")
		return true, r.limit, err
	}

	count := int(countCmd.Val())
	allowed := count < r.limit
	remaining := r.limit - count - 1
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining, nil
}
