package identity

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/koinonia-app/QueueChat/internal/errs"
)

// countingProvider counts how often the inner provider is hit.
type countingProvider struct {
	inner Provider
	calls int64
}

func (c *countingProvider) Resolve(ctx context.Context, userID uint) (*Profile, error) {
	atomic.AddInt64(&c.calls, 1)
	return c.inner.Resolve(ctx, userID)
}

func (c *countingProvider) ResolveBatch(ctx context.Context, userIDs []uint) ([]Profile, error) {
	atomic.AddInt64(&c.calls, 1)
	return c.inner.ResolveBatch(ctx, userIDs)
}

func setupCachingProvider(t *testing.T) (*CachingProvider, *countingProvider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	inner := &countingProvider{inner: NewStaticProvider(
		Profile{ID: 1, DisplayName: "Ruth", AvatarURL: "https://cdn.example.com/1.png"},
		Profile{ID: 2, DisplayName: "Esther"},
	)}
	return NewCachingProvider(inner, client, time.Minute, zap.NewNop()), inner, mr
}

func TestCachingProviderResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("second resolve is served from cache", func(t *testing.T) {
		provider, inner, _ := setupCachingProvider(t)

		first, err := provider.Resolve(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Ruth", first.DisplayName)
		assert.EqualValues(t, 1, atomic.LoadInt64(&inner.calls))

		second, err := provider.Resolve(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.EqualValues(t, 1, atomic.LoadInt64(&inner.calls), "cache hit must not touch the inner provider")
	})

	t.Run("unknown user", func(t *testing.T) {
		provider, _, _ := setupCachingProvider(t)
		_, err := provider.Resolve(ctx, 99)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("expired entry falls back to the inner provider", func(t *testing.T) {
		provider, inner, mr := setupCachingProvider(t)

		_, err := provider.Resolve(ctx, 1)
		require.NoError(t, err)
		mr.FastForward(2 * time.Minute)

		_, err = provider.Resolve(ctx, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 2, atomic.LoadInt64(&inner.calls))
	})

	t.Run("cache outage degrades to the inner provider", func(t *testing.T) {
		provider, inner, mr := setupCachingProvider(t)
		mr.Close()

		profile, err := provider.Resolve(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Ruth", profile.DisplayName)
		assert.EqualValues(t, 1, atomic.LoadInt64(&inner.calls))
	})
}

func TestCachingProviderResolveBatch(t *testing.T) {
	ctx := context.Background()
	provider, _, _ := setupCachingProvider(t)

	profiles, err := provider.ResolveBatch(ctx, []uint{1, 99, 2})
	require.NoError(t, err)
	require.Len(t, profiles, 2, "unknown users are skipped")
	assert.Equal(t, "Ruth", profiles[0].DisplayName)
	assert.Equal(t, "Esther", profiles[1].DisplayName)
}

func TestStaticProvider(t *testing.T) {
	ctx := context.Background()
	provider := NewStaticProvider()
	provider.Put(Profile{ID: 7, DisplayName: "Naomi"})

	profile, err := provider.Resolve(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Naomi", profile.DisplayName)

	_, err = provider.Resolve(ctx, 8)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
