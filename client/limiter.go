package client

import (
	"context"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// Limiter gates outgoing provider requests. Allow blocks until the
// request may proceed or the context is cancelled.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// RedisLimiter rate-limits requests through a shared Redis instance so
// the per-key budget holds across processes.
type RedisLimiter struct {
	rl    *redis_rate.Limiter
	limit redis_rate.Limit
}

// NewRedisLimiter creates a limiter allowing rps requests per second.
func NewRedisLimiter(rdb redis.UniversalClient, rps int) *RedisLimiter {
	return &RedisLimiter{
		rl:    redis_rate.NewLimiter(rdb),
		limit: redis_rate.PerSecond(rps),
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	for {
		res, err := l.rl.Allow(ctx, key, l.limit)
		if err != nil {
			return err
		}
		if res.Allowed > 0 {
			return nil
		}

		wait := res.RetryAfter
		if wait <= 0 {
			wait = 50 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
