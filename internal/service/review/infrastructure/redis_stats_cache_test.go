package infrastructure

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/pkg/config"
	"marketplace/internal/pkg/redis"
	"marketplace/internal/service/review/domain"
)

// 需要真实 Redis：REDIS_ADDR=localhost:6379 go test ./...
func newCache(t *testing.T) *RedisStatsCache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client, err := redis.NewClient(context.Background(), config.RedisConfig{Addr: addr, DB: 15})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cache, err := NewRedisStatsCache(client, time.Minute)
	require.NoError(t, err)
	return cache
}

func TestRedisStatsCacheKeepsNewestVersion(t *testing.T) {
	cache := newCache(t)
	ctx := context.Background()
	id := "test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { cache.client.GetClient().Del(ctx, productRatingKey(id)) })

	_, ok, err := cache.ProductRating(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	newer := domain.NewRatingStats([5]int64{0, 0, 0, 0, 2}, t0.Add(time.Minute))
	older := domain.NewRatingStats([5]int64{1, 0, 0, 0, 0}, t0)
	require.NoError(t, cache.StoreProductRating(ctx, id, newer))
	require.NoError(t, cache.StoreProductRating(ctx, id, older))

	got, ok, err := cache.ProductRating(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5.0, got.AverageRating)
	assert.Equal(t, int64(2), got.TotalReviews)
}
