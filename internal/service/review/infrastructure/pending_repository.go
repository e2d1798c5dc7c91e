package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketplace/internal/service/review/domain"
)

// GormPendingReviewRepository 是 domain.PendingReviewRepository 的 GORM 实现
type GormPendingReviewRepository struct {
	db *gorm.DB
}

func NewGormPendingReviewRepository(db *gorm.DB) *GormPendingReviewRepository {
	return &GormPendingReviewRepository{db: db}
}

// CreateMany 使用 ON CONFLICT DO NOTHING 批量插入：重复的行被跳过，其余的照常写入
func (r *GormPendingReviewRepository) CreateMany(ctx context.Context, items []*domain.PendingReview) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	models := make([]*PendingReviewModel, 0, len(items))
	for _, p := range items {
		models = append(models, fromDomainPending(p))
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models)
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "insert pending reviews for order %s", items[0].OrderCode)
	}
	return int(res.RowsAffected), nil
}

func (r *GormPendingReviewRepository) FindForBuyer(ctx context.Context, buyerID string, now time.Time) ([]*domain.PendingReview, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("buyer_id = ? AND expires_at > ?", buyerID, now).
			Order("created_at DESC").Order("id DESC")
	})
}

func (r *GormPendingReviewRepository) FindForOrder(ctx context.Context, orderCode, buyerID string, now time.Time) ([]*domain.PendingReview, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("order_code = ? AND buyer_id = ? AND expires_at > ?", orderCode, buyerID, now).
			Order("product_id")
	})
}

func (r *GormPendingReviewRepository) find(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]*domain.PendingReview, error) {
	var models []PendingReviewModel
	if err := r.db.WithContext(ctx).Scopes(scope).Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "find pending reviews")
	}
	out := make([]*domain.PendingReview, 0, len(models))
	for i := range models {
		out = append(out, toDomainPending(&models[i]))
	}
	return out, nil
}

func (r *GormPendingReviewRepository) HasForBuyer(ctx context.Context, buyerID string, now time.Time) (bool, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&PendingReviewModel{}).
		Where("buyer_id = ? AND expires_at > ?", buyerID, now).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return false, errors.Wrap(err, "check pending reviews")
	}
	return len(ids) > 0, nil
}

// Delete 删除一条已消费的待评价，记录不存在时是 no-op
func (r *GormPendingReviewRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&PendingReviewModel{}).Error; err != nil {
		return errors.Wrapf(err, "delete pending review %s", id)
	}
	return nil
}

// DeleteExpired 分批删除过期记录。先查 id 再按 id 删除，删除语句仍带过期条件。
func (r *GormPendingReviewRepository) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&PendingReviewModel{}).
		Where("expires_at <= ?", now).
		Order("expires_at").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, errors.Wrap(err, "find expired pending reviews")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := r.db.WithContext(ctx).
		Where("id IN ? AND expires_at <= ?", ids, now).
		Delete(&PendingReviewModel{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "delete expired pending reviews")
	}
	return res.RowsAffected, nil
}

func (r *GormPendingReviewRepository) ListDueReminders(ctx context.Context, now, remindedBefore time.Time, limit int) ([]*domain.PendingReview, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("expires_at > ?", now).
			Where("(last_reminded_at IS NULL OR last_reminded_at <= ?)", remindedBefore).
			Order("created_at").Order("id").
			Limit(limit)
	})
}

// MarkReminded 原子地递增提醒次数
func (r *GormPendingReviewRepository) MarkReminded(ctx context.Context, ids []string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&PendingReviewModel{}).
		Where("id IN ? AND expires_at > ?", ids, now).
		Updates(map[string]any{
			"reminder_count":   gorm.Expr("reminder_count + 1"),
			"last_reminded_at": now,
		})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "mark pending reviews reminded")
	}
	return res.RowsAffected, nil
}
