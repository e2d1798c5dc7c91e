package domain

import (
	"context"
	"time"

	"marketplace/internal/pkg/pagination"
)

// PendingReviewRepository 待评价存储。所有查询都按 expires_at > now 过滤掉已过期的记录。
type PendingReviewRepository interface {
	// CreateMany 批量插入并忽略唯一键冲突，返回实际插入的条数
	CreateMany(ctx context.Context, items []*PendingReview) (int, error)
	FindForBuyer(ctx context.Context, buyerID string, now time.Time) ([]*PendingReview, error)
	FindForOrder(ctx context.Context, orderCode, buyerID string, now time.Time) ([]*PendingReview, error)
	HasForBuyer(ctx context.Context, buyerID string, now time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
	// ListDueReminders 返回未过期、且从未提醒或上次提醒早于 remindedBefore 的记录
	ListDueReminders(ctx context.Context, now, remindedBefore time.Time, limit int) ([]*PendingReview, error)
	MarkReminded(ctx context.Context, ids []string, now time.Time) (int64, error)
}

type ReviewSort string

const (
	SortNewest  ReviewSort = "newest"
	SortOldest  ReviewSort = "oldest"
	SortHighest ReviewSort = "highest"
	SortLowest  ReviewSort = "lowest"
)

type ReviewQuery struct {
	Page pagination.Pagination
	Sort ReviewSort
}

type ReviewRepository interface {
	// Create 唯一键冲突时返回 errs.ErrDuplicate
	Create(ctx context.Context, review *Review) error
	ExistsByDedupeKey(ctx context.Context, key string) (bool, error)
	// ExistingDedupeKeys 返回 keys 中已经存在评价的子集
	ExistingDedupeKeys(ctx context.Context, keys []string) (map[string]bool, error)
	FindByID(ctx context.Context, id string) (*Review, error)
	ListForProduct(ctx context.Context, productID string, q ReviewQuery) (pagination.Result[*Review], error)
	ListForSeller(ctx context.Context, sellerID string, q ReviewQuery) (pagination.Result[*Review], error)
	SetStatus(ctx context.Context, id string, status ReviewStatus, now time.Time) (bool, error)

	// ProductDistribution 统计商品的有效评价在各星级的数量
	ProductDistribution(ctx context.Context, productID string) ([5]int64, error)
	SellerDistribution(ctx context.Context, sellerID string) ([5]int64, error)
	ReviewedProductIDs(ctx context.Context) ([]string, error)
	ReviewedSellerIDs(ctx context.Context) ([]string, error)
}

type CreditRepository interface {
	// Upsert 以 (buyer_id, seller_id) 为键，存在则覆盖 credit_type
	Upsert(ctx context.Context, credit *StoreCredit) (*StoreCredit, error)
	Find(ctx context.Context, buyerID, sellerID string) (*StoreCredit, error)
	CountForSeller(ctx context.Context, sellerID string) (positive, negative int64, err error)
	CreditedSellerIDs(ctx context.Context) ([]string, error)
}
