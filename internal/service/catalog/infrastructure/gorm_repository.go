package infrastructure

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"marketplace/internal/pkg/database"
	"marketplace/internal/pkg/errs"
	"marketplace/internal/service/catalog/domain"
)

type GormCatalogRepository struct {
	db *gorm.DB
}

func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

func (r *GormCatalogRepository) CreateSeller(ctx context.Context, s *domain.Seller) error {
	m := &SellerModel{ID: s.ID, DisplayName: s.DisplayName, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return errs.Duplicate("seller %s already exists", s.ID)
		}
		return pkgerrors.Wrapf(err, "create seller %s", s.ID)
	}
	return nil
}

func (r *GormCatalogRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	m := &ProductModel{
		ID: p.ID, SellerID: p.SellerID, Title: p.Title, Price: p.Price,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return errs.Duplicate("product %s already exists", p.ID)
		}
		return pkgerrors.Wrapf(err, "create product %s", p.ID)
	}
	return nil
}

func (r *GormCatalogRepository) FindSeller(ctx context.Context, id string) (*domain.Seller, error) {
	var m SellerModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("seller %s", id)
		}
		return nil, pkgerrors.Wrapf(err, "find seller %s", id)
	}
	return toDomainSeller(&m), nil
}

func (r *GormCatalogRepository) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	var m ProductModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("product %s", id)
		}
		return nil, pkgerrors.Wrapf(err, "find product %s", id)
	}
	return toDomainProduct(&m), nil
}

func (r *GormCatalogRepository) FindProducts(ctx context.Context, ids []string) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []ProductModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "find products")
	}
	out := make([]*domain.Product, 0, len(models))
	for i := range models {
		out = append(out, toDomainProduct(&models[i]))
	}
	return out, nil
}

func (r *GormCatalogRepository) DisplayNames(ctx context.Context, sellerIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(sellerIDs))
	if len(sellerIDs) == 0 {
		return names, nil
	}
	var rows []struct {
		ID          string
		DisplayName string
	}
	err := r.db.WithContext(ctx).Model(&SellerModel{}).
		Select("id, display_name").
		Where("id IN ?", sellerIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load seller display names")
	}
	for _, row := range rows {
		names[row.ID] = row.DisplayName
	}
	return names, nil
}

func (r *GormCatalogRepository) UpdatePrice(ctx context.Context, productID string, price int64, now time.Time) error {
	return r.update(ctx, &ProductModel{}, "product", productID, map[string]any{"price": price, "updated_at": now})
}

func (r *GormCatalogRepository) UpdateProductRating(ctx context.Context, productID string, rating domain.RatingSummary, now time.Time) error {
	return r.update(ctx, &ProductModel{}, "product", productID, ratingColumns(rating, now))
}

func (r *GormCatalogRepository) UpdateSellerRating(ctx context.Context, sellerID string, rating domain.RatingSummary, now time.Time) error {
	return r.update(ctx, &SellerModel{}, "seller", sellerID, ratingColumns(rating, now))
}

func (r *GormCatalogRepository) UpdateSellerCredit(ctx context.Context, sellerID string, credit domain.CreditSummary, now time.Time) error {
	return r.update(ctx, &SellerModel{}, "seller", sellerID, map[string]any{
		"credit_positive":   credit.Positive,
		"credit_negative":   credit.Negative,
		"credit_percentage": credit.Percentage,
		"updated_at":        now,
	})
}

// update 单行覆盖写，行不存在时返回 NotFound
func (r *GormCatalogRepository) update(ctx context.Context, model any, kind, id string, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrapf(res.Error, "update %s %s", kind, id)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// MySQL 对值未变化的行返回 0，需要再确认一次行是否存在
	var n int64
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return pkgerrors.Wrapf(err, "check %s %s", kind, id)
	}
	if n == 0 {
		return errs.NotFound("%s %s", kind, id)
	}
	return nil
}
