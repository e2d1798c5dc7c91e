package infrastructure

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"marketplace/internal/pkg/database"
	"marketplace/internal/pkg/errs"
	"marketplace/internal/pkg/pagination"
	"marketplace/internal/service/review/domain"
)

type GormReviewRepository struct {
	db *gorm.DB
}

func NewGormReviewRepository(db *gorm.DB) *GormReviewRepository {
	return &GormReviewRepository{db: db}
}

// Create 插入评价。dedupe_key 冲突说明并发请求已经写入，转换为 errs.ErrDuplicate。
func (r *GormReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	model, err := fromDomainReview(review)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return errs.Duplicate("already reviewed")
		}
		return errors.Wrapf(err, "create review %s", review.DedupeKey)
	}
	return nil
}

func (r *GormReviewRepository) ExistsByDedupeKey(ctx context.Context, key string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&ReviewModel{}).Where("dedupe_key = ?", key).Count(&n).Error; err != nil {
		return false, errors.Wrap(err, "check existing review")
	}
	return n > 0, nil
}

func (r *GormReviewRepository) ExistingDedupeKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	found := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return found, nil
	}
	var existing []string
	if err := r.db.WithContext(ctx).Model(&ReviewModel{}).
		Where("dedupe_key IN ?", keys).
		Pluck("dedupe_key", &existing).Error; err != nil {
		return nil, errors.Wrap(err, "list existing reviews")
	}
	for _, k := range existing {
		found[k] = true
	}
	return found, nil
}

func (r *GormReviewRepository) FindByID(ctx context.Context, id string) (*domain.Review, error) {
	var m ReviewModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("review %s", id)
		}
		return nil, errors.Wrapf(err, "find review %s", id)
	}
	return toDomainReview(&m)
}

func (r *GormReviewRepository) ListForProduct(ctx context.Context, productID string, q domain.ReviewQuery) (pagination.Result[*domain.Review], error) {
	return r.list(ctx, q, func(db *gorm.DB) *gorm.DB {
		return db.Where("type = ? AND product_id = ? AND status = ?",
			string(domain.ReviewTypeProduct), productID, string(domain.ReviewActive))
	})
}

func (r *GormReviewRepository) ListForSeller(ctx context.Context, sellerID string, q domain.ReviewQuery) (pagination.Result[*domain.Review], error) {
	return r.list(ctx, q, func(db *gorm.DB) *gorm.DB {
		return db.Where("type = ? AND seller_id = ? AND status = ?",
			string(domain.ReviewTypeSeller), sellerID, string(domain.ReviewActive))
	})
}

func (r *GormReviewRepository) list(ctx context.Context, q domain.ReviewQuery, scope func(*gorm.DB) *gorm.DB) (pagination.Result[*domain.Review], error) {
	result := pagination.Result[*domain.Review]{Page: q.Page.Page, Limit: q.Page.Limit}
	if err := r.db.WithContext(ctx).Model(&ReviewModel{}).Scopes(scope).Count(&result.Total).Error; err != nil {
		return result, errors.Wrap(err, "count reviews")
	}

	var models []ReviewModel
	err := r.db.WithContext(ctx).
		Scopes(scope, sortScope(q.Sort)).
		Offset(q.Page.Offset).
		Limit(q.Page.Limit).
		Find(&models).Error
	if err != nil {
		return result, errors.Wrap(err, "list reviews")
	}

	result.Items = make([]*domain.Review, 0, len(models))
	for i := range models {
		review, err := toDomainReview(&models[i])
		if err != nil {
			return result, err
		}
		result.Items = append(result.Items, review)
	}
	return result, nil
}

func sortScope(sort domain.ReviewSort) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch sort {
		case domain.SortOldest:
			return db.Order("created_at ASC").Order("id ASC")
		case domain.SortHighest:
			return db.Order("rating DESC").Order("created_at DESC").Order("id DESC")
		case domain.SortLowest:
			return db.Order("rating ASC").Order("created_at DESC").Order("id DESC")
		default:
			return db.Order("created_at DESC").Order("id DESC")
		}
	}
}

// SetStatus 审核状态变化时返回 true，状态本来就相同时返回 false
func (r *GormReviewRepository) SetStatus(ctx context.Context, id string, status domain.ReviewStatus, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&ReviewModel{}).
		Where("id = ? AND status <> ?", id, string(status)).
		Updates(map[string]any{"status": string(status), "updated_at": now})
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "set status of review %s", id)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *GormReviewRepository) ProductDistribution(ctx context.Context, productID string) ([5]int64, error) {
	return r.distribution(ctx, "type = ? AND product_id = ? AND status = ?",
		string(domain.ReviewTypeProduct), productID, string(domain.ReviewActive))
}

func (r *GormReviewRepository) SellerDistribution(ctx context.Context, sellerID string) ([5]int64, error) {
	return r.distribution(ctx, "type = ? AND seller_id = ? AND status = ?",
		string(domain.ReviewTypeSeller), sellerID, string(domain.ReviewActive))
}

func (r *GormReviewRepository) distribution(ctx context.Context, cond string, args ...any) ([5]int64, error) {
	var (
		dist [5]int64
		rows []struct {
			Rating int
			Cnt    int64
		}
	)
	err := r.db.WithContext(ctx).Model(&ReviewModel{}).
		Select("rating, COUNT(*) AS cnt").
		Where(cond, args...).
		Group("rating").
		Scan(&rows).Error
	if err != nil {
		return dist, errors.Wrap(err, "aggregate ratings")
	}
	for _, row := range rows {
		if row.Rating >= domain.MinRating && row.Rating <= domain.MaxRating {
			dist[row.Rating-1] = row.Cnt
		}
	}
	return dist, nil
}

func (r *GormReviewRepository) ReviewedProductIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&ReviewModel{}).
		Where("type = ?", string(domain.ReviewTypeProduct)).
		Distinct("product_id").
		Pluck("product_id", &ids).Error
	return ids, errors.Wrap(err, "list reviewed products")
}

func (r *GormReviewRepository) ReviewedSellerIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&ReviewModel{}).
		Where("type = ?", string(domain.ReviewTypeSeller)).
		Distinct("seller_id").
		Pluck("seller_id", &ids).Error
	return ids, errors.Wrap(err, "list reviewed sellers")
}
