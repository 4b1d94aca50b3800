package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/koinonia-app/QueueChat/internal/errs"
)

// CachingProvider decorates a Provider with a Redis read-through cache.
// Profiles change rarely, so a short TTL keeps member lists cheap without
// hammering the identity service on every GetChatMembers call. Cache
// failures degrade to the inner provider, never to an error.
type CachingProvider struct {
	inner  Provider
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachingProvider 创建带 Redis 缓存的身份提供者
func NewCachingProvider(inner Provider, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachingProvider {
	return &CachingProvider{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(userID uint) string {
	return fmt.Sprintf("identity:profile:%d", userID)
}

// Resolve implements Provider.
func (p *CachingProvider) Resolve(ctx context.Context, userID uint) (*Profile, error) {
	if cached, err := p.client.Get(ctx, cacheKey(userID)).Result(); err == nil {
		var profile Profile
		if err := json.Unmarshal([]byte(cached), &profile); err == nil {
			return &profile, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		p.logger.Warn("identity cache read failed",
			zap.Uint("user_id", userID),
			zap.Error(err),
		)
	}

	profile, err := p.inner.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	if bytes, err := json.Marshal(profile); err == nil {
		if err := p.client.Set(ctx, cacheKey(profile.ID), bytes, p.ttl).Err(); err != nil {
			p.logger.Warn("identity cache write failed",
				zap.Uint("user_id", userID),
				zap.Error(err),
			)
		}
	}
	return profile, nil
}

// ResolveBatch implements Provider. Unknown users are skipped.
func (p *CachingProvider) ResolveBatch(ctx context.Context, userIDs []uint) ([]Profile, error) {
	out := make([]Profile, 0, len(userIDs))
	for _, id := range userIDs {
		profile, err := p.Resolve(ctx, id)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *profile)
	}
	return out, nil
}
