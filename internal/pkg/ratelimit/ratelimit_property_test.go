package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestProperty_ExactlyLimitRequestsPass(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewRedisLimiter(client, zap.NewNop(), false)
	ctx := context.Background()
	window := time.Hour

	properties := gopter.NewProperties(nil)
	keySeq := 0

	properties.Property("a fresh key admits exactly limit requests", prop.ForAll(
		func(limit int, attempts int) bool {
			keySeq++
			key := fmt.Sprintf("prop:%d", keySeq)

			allowed := 0
			for i := 0; i < attempts; i++ {
				ok, err := limiter.Allow(ctx, key, limit, window)
				if err != nil {
					return false
				}
				if ok {
					allowed++
				}
			}

			if attempts <= limit {
				return allowed == attempts
			}
			return allowed == limit
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
