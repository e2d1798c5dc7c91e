package infrastructure

import (
	"context"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"marketplace/internal/pkg/database"
	"marketplace/internal/pkg/errs"
	"marketplace/internal/pkg/pagination"
	"marketplace/internal/service/order/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现。
// 状态迁移全部是单条 UPDATE ... WHERE status ...，通过 RowsAffected 判断是否抢到了这次迁移。
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository 创建一个新的 GORM 仓储实例
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	model, err := FromDomainOrder(order)
	if err != nil {
		return err
	}
	// 订单与订单行在 GORM 默认事务中一起写入
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return errs.Duplicate("order code %s already exists", order.Code)
		}
		return pkgerrors.Wrapf(err, "create order %s", order.Code)
	}
	return nil
}

func (r *GormOrderRepository) FindByCode(ctx context.Context, code string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("code = ?", code).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("order %s", code)
		}
		return nil, pkgerrors.Wrapf(err, "find order %s", code)
	}
	return ToDomainOrder(&model)
}

func (r *GormOrderRepository) Transition(ctx context.Context, code string, to domain.Status, now time.Time, reason string) (bool, error) {
	rule, ok := domain.RuleFor(to)
	if !ok {
		return false, errs.Validation("unknown target status %q", to)
	}

	var (
		parts []string
		args  []any
	)
	if len(rule.From) > 0 {
		parts = append(parts, "status IN ?")
		args = append(args, statusStrings(rule.From))
	}
	if len(rule.UnexpiredFrom) > 0 {
		parts = append(parts, "(status IN ? AND expires_at > ?)")
		args = append(args, statusStrings(rule.UnexpiredFrom), now)
	}
	cond := "(" + strings.Join(parts, " OR ") + ")"

	return r.conditionalUpdate(ctx, code, transitionUpdates(to, now, reason), cond, args...)
}

func (r *GormOrderRepository) ExpirePending(ctx context.Context, code string, now time.Time) (bool, error) {
	return r.conditionalUpdate(ctx, code,
		transitionUpdates(domain.StatusCancelled, now, "reservation expired"),
		"status = ? AND expires_at <= ?", string(domain.StatusPending), now)
}

func (r *GormOrderRepository) ReservePayment(ctx context.Context, code string, now time.Time) (bool, error) {
	updates := map[string]any{
		"payment_status": string(domain.PaymentReserved),
		"updated_at":     now,
	}
	return r.conditionalUpdate(ctx, code, updates,
		"status = ? AND payment_status = ? AND expires_at > ?",
		string(domain.StatusPending), string(domain.PaymentPending), now)
}

// conditionalUpdate 执行一次带前置条件的更新，前置条件不满足时返回 false 而不是错误
func (r *GormOrderRepository) conditionalUpdate(ctx context.Context, code string, updates map[string]any, cond string, args ...any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("code = ?", code).
		Where(cond, args...).
		Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrapf(res.Error, "update order %s", code)
	}
	return res.RowsAffected == 1, nil
}

// transitionUpdates 与 domain.Order.Transition 保持一致的列更新
func transitionUpdates(to domain.Status, now time.Time, reason string) map[string]any {
	updates := map[string]any{
		"status":     string(to),
		"updated_at": now,
	}
	switch to {
	case domain.StatusConfirmed:
		updates["payment_status"] = string(domain.PaymentPaid)
		updates["delivery_status"] = string(domain.DeliveryProcessing)
		updates["confirmed_at"] = now
	case domain.StatusCompleted:
		updates["payment_status"] = string(domain.PaymentPaid)
		updates["delivery_status"] = string(domain.DeliveryDelivered)
		updates["completed_at"] = now
	case domain.StatusCancelled:
		// CASE 只引用 payment_status 自身，不受 MySQL 从左到右赋值顺序影响
		updates["payment_status"] = gorm.Expr(
			"CASE payment_status WHEN ? THEN ? WHEN ? THEN ? ELSE payment_status END",
			string(domain.PaymentPaid), string(domain.PaymentAfterCancel(domain.PaymentPaid)),
			string(domain.PaymentReserved), string(domain.PaymentAfterCancel(domain.PaymentReserved)),
		)
		updates["delivery_status"] = string(domain.DeliveryFailed)
		updates["cancelled_at"] = now
		updates["cancel_reason"] = reason
	case domain.StatusRefunded:
		updates["payment_status"] = string(domain.PaymentRefunded)
		updates["refunded_at"] = now
	}
	return updates
}

// FindExpiredPending 只返回订单头，不加载订单行
func (r *GormOrderRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", string(domain.StatusPending), now).
		Order("expires_at").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "find expired pending orders")
	}
	return toDomainOrders(models)
}

func (r *GormOrderRepository) ActiveForSeller(ctx context.Context, sellerID string, now time.Time, page pagination.Pagination) (pagination.Result[*domain.Order], error) {
	return r.paginate(ctx, page, func(db *gorm.DB) *gorm.DB {
		return db.Where("seller_id = ?", sellerID).
			Where("(status = ? OR (status = ? AND expires_at > ?))",
				string(domain.StatusCompleted), string(domain.StatusPending), now)
	})
}

func (r *GormOrderRepository) BuyerHistory(ctx context.Context, buyerID string, page pagination.Pagination) (pagination.Result[*domain.Order], error) {
	return r.paginate(ctx, page, func(db *gorm.DB) *gorm.DB {
		return db.Where("buyer_id = ?", buyerID)
	})
}

func (r *GormOrderRepository) paginate(ctx context.Context, page pagination.Pagination, scope func(*gorm.DB) *gorm.DB) (pagination.Result[*domain.Order], error) {
	result := pagination.Result[*domain.Order]{Page: page.Page, Limit: page.Limit}

	if err := r.db.WithContext(ctx).Model(&OrderModel{}).Scopes(scope).Count(&result.Total).Error; err != nil {
		return result, pkgerrors.Wrap(err, "count orders")
	}

	var models []OrderModel
	err := r.db.WithContext(ctx).
		Scopes(scope).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("created_at DESC").
		Order("id DESC").
		Offset(page.Offset).
		Limit(page.Limit).
		Find(&models).Error
	if err != nil {
		return result, pkgerrors.Wrap(err, "list orders")
	}

	items, err := toDomainOrders(models)
	if err != nil {
		return result, err
	}
	result.Items = items
	return result, nil
}

func (r *GormOrderRepository) CountCompleted(ctx context.Context, buyerID, sellerID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("buyer_id = ? AND seller_id = ? AND status = ?", buyerID, sellerID, string(domain.StatusCompleted)).
		Count(&n).Error
	if err != nil {
		return 0, pkgerrors.Wrap(err, "count completed orders")
	}
	return n, nil
}

func (r *GormOrderRepository) CountCompletedByBuyers(ctx context.Context, sellerID string, buyerIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(buyerIDs))
	if len(buyerIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		BuyerID string
		Cnt     int64
	}
	err := r.db.WithContext(ctx).Model(&OrderModel{}).
		Select("buyer_id, COUNT(*) AS cnt").
		Where("seller_id = ? AND status = ? AND buyer_id IN ?", sellerID, string(domain.StatusCompleted), buyerIDs).
		Group("buyer_id").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "count completed orders by buyer")
	}
	for _, row := range rows {
		counts[row.BuyerID] = row.Cnt
	}
	return counts, nil
}

func toDomainOrders(models []OrderModel) ([]*domain.Order, error) {
	out := make([]*domain.Order, 0, len(models))
	for i := range models {
		o, err := ToDomainOrder(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
