package tonconnect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage persists connection state in Redis. Keys expire after
// TTL so abandoned sessions clean themselves up; TTL zero keeps them
// forever.
type RedisStorage struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisStorage(rdb redis.UniversalClient, ttl time.Duration) *RedisStorage {
	return &RedisStorage{rdb: rdb, ttl: ttl}
}

func (s *RedisStorage) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrStorageKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStorage) Remove(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// SweepPending deletes connection records that never completed the
// handshake and whose session is older than maxAge. Returns the number
// of removed records.
func (s *RedisStorage) SweepPending(ctx context.Context, maxAge time.Duration) (int, error) {
	var removed int
	iter := s.rdb.Scan(ctx, 0, "tonconnect:*:"+keyConnection, 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.rdb.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("redis get %s: %w", key, err)
		}
		if !pendingExpired(raw, maxAge) {
			continue
		}
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			return removed, fmt.Errorf("redis del %s: %w", key, err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan: %w", err)
	}
	return removed, nil
}

// pendingExpired reports whether a stored connection is a pending
// handshake older than maxAge. Completed connections carry a connect
// event and are never swept.
func pendingExpired(raw string, maxAge time.Duration) bool {
	conn, err := parseConnection(raw)
	if err != nil {
		// Unparseable records are stale by definition.
		return true
	}
	if len(conn.ConnectEvent) > 0 {
		return false
	}
	if conn.UpdatedAt == 0 {
		return false
	}
	return time.Since(time.Unix(conn.UpdatedAt, 0)) > maxAge
}
