package adapter

import (
	"context"
	"time"

	"marketplace/internal/service/order/domain"
	reviewapp "marketplace/internal/service/review/application"
	reviewdomain "marketplace/internal/service/review/domain"
)

// PendingReviewAdapter 实现了 port.PendingReviewMaterializer，
// 把已完成订单交给评价上下文生成待评价记录
type PendingReviewAdapter struct {
	pending *reviewapp.PendingReviewService
}

func NewPendingReviewAdapter(pending *reviewapp.PendingReviewService) *PendingReviewAdapter {
	return &PendingReviewAdapter{pending: pending}
}

func (a *PendingReviewAdapter) Materialize(ctx context.Context, order *domain.Order) (int, error) {
	return a.pending.Materialize(ctx, toCompletedOrder(order))
}

func toCompletedOrder(o *domain.Order) reviewdomain.CompletedOrder {
	completedAt := time.Now().UTC()
	if o.CompletedAt != nil {
		completedAt = *o.CompletedAt
	}
	lines := make([]reviewdomain.CompletedLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, reviewdomain.CompletedLine{ProductID: it.ProductID, Title: it.Title})
	}
	return reviewdomain.CompletedOrder{
		Code:        o.Code,
		BuyerID:     o.BuyerID,
		SellerID:    o.SellerID,
		Total:       o.Totals.Total,
		ItemCount:   o.ItemCount(),
		CompletedAt: completedAt,
		Lines:       lines,
	}
}
