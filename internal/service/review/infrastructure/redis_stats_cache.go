package infrastructure

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"marketplace/internal/pkg/redis"
	"marketplace/internal/service/review/domain"
)

const storeStatsScriptName = "store_stats"

// storeStatsScript 只有当新版本不旧于已缓存版本时才写入，避免并发重算时旧结果覆盖新结果。
// KEYS[1] = 缓存键, ARGV[1] = 版本 (ComputedAt 纳秒), ARGV[2] = JSON, ARGV[3] = TTL 毫秒
const storeStatsScript = `
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'payload', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`

// RedisStatsCache 是 port.StatsCache 的 Redis 实现
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStatsCache(client *redis.Client, ttl time.Duration) (*RedisStatsCache, error) {
	if err := client.LoadScriptFromContent(storeStatsScriptName, storeStatsScript); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisStatsCache{client: client, ttl: ttl}, nil
}

func productRatingKey(productID string) string { return "stats:product-rating:" + productID }
func sellerCreditKey(sellerID string) string   { return "stats:seller-credit:" + sellerID }

func (c *RedisStatsCache) ProductRating(ctx context.Context, productID string) (domain.RatingStats, bool, error) {
	var stats domain.RatingStats
	ok, err := c.load(ctx, productRatingKey(productID), &stats)
	return stats, ok, err
}

func (c *RedisStatsCache) StoreProductRating(ctx context.Context, productID string, stats domain.RatingStats) error {
	return c.store(ctx, productRatingKey(productID), stats.ComputedAt, stats)
}

func (c *RedisStatsCache) SellerCredit(ctx context.Context, sellerID string) (domain.CreditStats, bool, error) {
	var stats domain.CreditStats
	ok, err := c.load(ctx, sellerCreditKey(sellerID), &stats)
	return stats, ok, err
}

func (c *RedisStatsCache) StoreSellerCredit(ctx context.Context, sellerID string, stats domain.CreditStats) error {
	return c.store(ctx, sellerCreditKey(sellerID), stats.ComputedAt, stats)
}

func (c *RedisStatsCache) load(ctx context.Context, key string, dst any) (bool, error) {
	payload, err := c.client.GetClient().HGet(ctx, key, "payload").Bytes()
	if err != nil {
		if stderrors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, errors.Wrapf(err, "read cache %s", key)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return false, errors.Wrapf(err, "decode cache %s", key)
	}
	return true, nil
}

func (c *RedisStatsCache) store(ctx context.Context, key string, version time.Time, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode stats")
	}
	_, err = c.client.RunScript(ctx, storeStatsScriptName, []string{key},
		version.UnixNano(), payload, c.ttl.Milliseconds())
	return errors.Wrapf(err, "write cache %s", key)
}
