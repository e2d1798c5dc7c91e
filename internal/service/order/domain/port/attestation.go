package port

import (
	"context"

	"marketplace/internal/service/order/domain"
)

// PendingReviewMaterializer 在订单完成后为每个订单行生成待评价记录。
// 实现必须是幂等的：对同一订单重复调用不会产生重复记录。
type PendingReviewMaterializer interface {
	Materialize(ctx context.Context, order *domain.Order) (int, error)
}
