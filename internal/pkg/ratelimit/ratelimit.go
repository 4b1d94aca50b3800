// Package ratelimit implements a fixed-window request limiter on Redis.
// Counters are shared across processes, so the limit holds even when the
// service runs more than one replica.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether a request identified by a key is allowed.
type Limiter interface {
	// Allow reports whether one more request under key fits inside the
	// window's limit.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Remaining returns the number of requests left in the current window.
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)

	// Reset clears the counter for a key.
	Reset(ctx context.Context, key string, window time.Duration) error
}

// RedisLimiter counts requests with INCR + EXPIRE on window-aligned keys.
type RedisLimiter struct {
	client   *redis.Client
	logger   *zap.Logger
	fallback bool // fail-open when redis is unavailable
}

// NewRedisLimiter creates a limiter. With fallback enabled, requests are
// allowed when Redis cannot be reached instead of being rejected.
func NewRedisLimiter(client *redis.Client, logger *zap.Logger, fallback bool) *RedisLimiter {
	return &RedisLimiter{
		client:   client,
		logger:   logger,
		fallback: fallback,
	}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	bucketKey := l.bucketKey(key, time.Now(), window)

	pipe := l.client.Pipeline()
	incrCmd := pipe.Incr(ctx, bucketKey)
	pipe.Expire(ctx, bucketKey, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("rate limit check failed",
			zap.String("key", bucketKey),
			zap.Error(err),
		)
		if l.fallback {
			return true, nil
		}
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := incrCmd.Val()
	allowed := count <= int64(limit)
	if !allowed {
		l.logger.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", limit),
		)
	}
	return allowed, nil
}

// Remaining implements Limiter.
func (l *RedisLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	bucketKey := l.bucketKey(key, time.Now(), window)
	count, err := l.client.Get(ctx, bucketKey).Int64()
	if err != nil {
		if err == redis.Nil {
			return limit, nil
		}
		return 0, fmt.Errorf("failed to get remaining tokens: %w", err)
	}
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset implements Limiter.
func (l *RedisLimiter) Reset(ctx context.Context, key string, window time.Duration) error {
	now := time.Now()
	keys := []string{
		l.bucketKey(key, now, window),
		l.bucketKey(key, now.Add(-window), window),
	}
	if err := l.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit for key %s: %w", key, err)
	}
	return nil
}

// bucketKey aligns the counter key to the window so counters roll over
// automatically.
func (l *RedisLimiter) bucketKey(key string, now time.Time, window time.Duration) string {
	bucket := now.UnixMilli() / window.Milliseconds()
	return fmt.Sprintf("ratelimit:%s:%d", key, bucket)
}
