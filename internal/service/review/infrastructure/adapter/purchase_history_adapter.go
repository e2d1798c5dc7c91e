package adapter

import (
	"context"

	orderdomain "marketplace/internal/service/order/domain"
)

// PurchaseHistoryAdapter 实现了 port.PurchaseHistory。
// 购买记录直接来自订单存储，评价侧不保存任何副本。
type PurchaseHistoryAdapter struct {
	orders orderdomain.OrderRepository
}

func NewPurchaseHistoryAdapter(orders orderdomain.OrderRepository) *PurchaseHistoryAdapter {
	return &PurchaseHistoryAdapter{orders: orders}
}

func (a *PurchaseHistoryAdapter) CountCompleted(ctx context.Context, buyerID, sellerID string) (int64, error) {
	return a.orders.CountCompleted(ctx, buyerID, sellerID)
}

func (a *PurchaseHistoryAdapter) CountCompletedByBuyers(ctx context.Context, sellerID string, buyerIDs []string) (map[string]int64, error) {
	return a.orders.CountCompletedByBuyers(ctx, sellerID, buyerIDs)
}
