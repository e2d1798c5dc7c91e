// Package domain 定义售后评价子系统：待评价、评价、店铺信用以及派生统计。
package domain

import (
	"time"

	"marketplace/internal/pkg/errs"
)

// CompletedLine 已完成订单中的一行，只保留生成待评价需要的字段
type CompletedLine struct {
	ProductID string
	Title     string
}

// CompletedOrder 是订单上下文传入的已完成订单视图
type CompletedOrder struct {
	Code        string
	BuyerID     string
	SellerID    string
	Total       int64
	ItemCount   int
	CompletedAt time.Time
	Lines       []CompletedLine
}

// PendingReview 邀请买家评价一件已购商品。每个 (订单, 买家, 商品) 至多一条。
type PendingReview struct {
	ID             string
	OrderCode      string
	BuyerID        string
	SellerID       string
	ProductID      string
	ProductTitle   string
	OrderTotal     int64
	ReminderCount  int
	LastRemindedAt *time.Time
	CreatedAt      time.Time
	ExpiresAt      time.Time

	// SellerDisplayName 查询时解析，不落库
	SellerDisplayName string
}

// NewPendingReviews 为订单的每一行生成一条待评价。newID 由调用方提供以便测试。
func NewPendingReviews(order CompletedOrder, window time.Duration, now time.Time, newID func() string) ([]*PendingReview, error) {
	if order.Code == "" || order.BuyerID == "" || order.SellerID == "" {
		return nil, errs.Validation("completed order must carry code, buyer and seller")
	}
	if window <= 0 {
		return nil, errs.Validation("review window must be positive")
	}

	now = now.UTC()
	out := make([]*PendingReview, 0, len(order.Lines))
	seen := make(map[string]struct{}, len(order.Lines))
	for _, line := range order.Lines {
		if _, dup := seen[line.ProductID]; dup || line.ProductID == "" {
			continue
		}
		seen[line.ProductID] = struct{}{}
		out = append(out, &PendingReview{
			ID:           newID(),
			OrderCode:    order.Code,
			BuyerID:      order.BuyerID,
			SellerID:     order.SellerID,
			ProductID:    line.ProductID,
			ProductTitle: line.Title,
			OrderTotal:   order.Total,
			CreatedAt:    now,
			ExpiresAt:    now.Add(window),
		})
	}
	return out, nil
}

func (p *PendingReview) IsExpired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}
