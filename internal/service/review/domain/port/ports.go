package port

import (
	"context"
	"time"

	"marketplace/internal/service/review/domain"
)

// PurchaseHistory 把订单存储当作购买记录的查询源
type PurchaseHistory interface {
	CountCompleted(ctx context.Context, buyerID, sellerID string) (int64, error)
	CountCompletedByBuyers(ctx context.Context, sellerID string, buyerIDs []string) (map[string]int64, error)
}

// SellerDirectory 解析卖家展示名称
type SellerDirectory interface {
	DisplayNames(ctx context.Context, sellerIDs []string) (map[string]string, error)
}

// StatsWriter 把重算结果写回商品与卖家的反规范化字段
type StatsWriter interface {
	WriteProductRating(ctx context.Context, productID string, stats domain.RatingStats) error
	WriteSellerRating(ctx context.Context, sellerID string, stats domain.RatingStats) error
	WriteSellerCredit(ctx context.Context, sellerID string, stats domain.CreditStats) error
}

// StatsCache 统计结果的读缓存。写入按 ComputedAt 比较，旧结果不会覆盖新结果。
type StatsCache interface {
	ProductRating(ctx context.Context, productID string) (domain.RatingStats, bool, error)
	StoreProductRating(ctx context.Context, productID string, stats domain.RatingStats) error
	SellerCredit(ctx context.Context, sellerID string) (domain.CreditStats, bool, error)
	StoreSellerCredit(ctx context.Context, sellerID string, stats domain.CreditStats) error
}

// ReviewWindowPolicy 决定待评价的有效期
type ReviewWindowPolicy interface {
	ReviewWindow(ctx context.Context, sellerID string, itemCount int, total int64) time.Duration
}

// ReminderNotifier 把待评价提醒投递给通知渠道
type ReminderNotifier interface {
	NotifyPending(ctx context.Context, items []*domain.PendingReview) error
}
