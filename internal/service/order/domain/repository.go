// internal/service/order/domain/repository.go
package domain

import (
	"context"
	"time"

	"marketplace/internal/pkg/pagination"
)

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
//
// 所有状态迁移都是单条件更新：只有当前状态仍满足 TransitionRule 时才写入，
// 返回值 bool 表示本次写入是否生效，未生效不是错误。
type OrderRepository interface {
	// Create 持久化新订单及其订单行。订单号冲突返回 errs.ErrDuplicate。
	Create(ctx context.Context, order *Order) error

	// FindByCode 未找到返回 errs.ErrNotFound
	FindByCode(ctx context.Context, code string) (*Order, error)

	Transition(ctx context.Context, code string, to Status, now time.Time, reason string) (bool, error)

	// ExpirePending 仅当订单仍是 pending 且已过期时取消
	ExpirePending(ctx context.Context, code string, now time.Time) (bool, error)

	// ReservePayment 仅在 pending 且支付轴为 pending 时把支付轴置为 reserved
	ReservePayment(ctx context.Context, code string, now time.Time) (bool, error)

	// FindExpiredPending 返回已过期但仍为 pending 的订单，按过期时间升序
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*Order, error)

	// ActiveForSeller 返回卖家 pending(未过期)/completed 的订单，最新在前
	ActiveForSeller(ctx context.Context, sellerID string, now time.Time, page pagination.Pagination) (pagination.Result[*Order], error)

	// BuyerHistory 返回买家全部订单，最新在前
	BuyerHistory(ctx context.Context, buyerID string, page pagination.Pagination) (pagination.Result[*Order], error)

	// CountCompleted 统计买家在卖家处已完成的订单数，是购买记录的唯一事实来源
	CountCompleted(ctx context.Context, buyerID, sellerID string) (int64, error)

	// CountCompletedByBuyers 批量版本，用于评价列表的信任标识
	CountCompletedByBuyers(ctx context.Context, sellerID string, buyerIDs []string) (map[string]int64, error)
}
