package infrastructure

import (
	"context"
	stderrors "errors"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketplace/internal/pkg/errs"
	"marketplace/internal/service/review/domain"
)

type GormCreditRepository struct {
	db *gorm.DB
}

func NewGormCreditRepository(db *gorm.DB) *GormCreditRepository {
	return &GormCreditRepository{db: db}
}

// Upsert 单条 INSERT ... ON CONFLICT DO UPDATE，并发提交时同一对买家卖家仍只有一行
func (r *GormCreditRepository) Upsert(ctx context.Context, credit *domain.StoreCredit) (*domain.StoreCredit, error) {
	m := &StoreCreditModel{
		ID:         credit.ID,
		BuyerID:    credit.BuyerID,
		SellerID:   credit.SellerID,
		CreditType: string(credit.CreditType),
		CreatedAt:  credit.CreatedAt,
		UpdatedAt:  credit.UpdatedAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "buyer_id"}, {Name: "seller_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"credit_type", "updated_at"}),
		}).
		Create(m).Error
	if err != nil {
		return nil, errors.Wrapf(err, "upsert store credit %s->%s", credit.BuyerID, credit.SellerID)
	}
	return r.Find(ctx, credit.BuyerID, credit.SellerID)
}

func (r *GormCreditRepository) Find(ctx context.Context, buyerID, sellerID string) (*domain.StoreCredit, error) {
	var m StoreCreditModel
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND seller_id = ?", buyerID, sellerID).
		First(&m).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("store credit %s->%s", buyerID, sellerID)
		}
		return nil, errors.Wrap(err, "find store credit")
	}
	return toDomainCredit(&m), nil
}

func (r *GormCreditRepository) CountForSeller(ctx context.Context, sellerID string) (int64, int64, error) {
	var rows []struct {
		CreditType string
		Cnt        int64
	}
	err := r.db.WithContext(ctx).Model(&StoreCreditModel{}).
		Select("credit_type, COUNT(*) AS cnt").
		Where("seller_id = ?", sellerID).
		Group("credit_type").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, errors.Wrap(err, "count store credits")
	}

	var positive, negative int64
	for _, row := range rows {
		switch domain.CreditType(row.CreditType) {
		case domain.CreditPositive:
			positive = row.Cnt
		case domain.CreditNegative:
			negative = row.Cnt
		}
	}
	return positive, negative, nil
}

func (r *GormCreditRepository) CreditedSellerIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&StoreCreditModel{}).
		Distinct("seller_id").
		Pluck("seller_id", &ids).Error
	return ids, errors.Wrap(err, "list credited sellers")
}
