package infrastructure

import (
	"time"

	"gorm.io/datatypes"
)

// PendingReviewModel 对应 pending_reviews 表。
// uk_pending_order_buyer_product 保证重复完成订单不会生成重复记录。
type PendingReviewModel struct {
	ID             string `gorm:"primaryKey;size:36"`
	OrderCode      string `gorm:"size:40;not null;uniqueIndex:uk_pending_order_buyer_product,priority:1"`
	BuyerID        string `gorm:"size:64;not null;uniqueIndex:uk_pending_order_buyer_product,priority:2;index:idx_pending_buyer_expires,priority:1"`
	ProductID      string `gorm:"size:64;not null;uniqueIndex:uk_pending_order_buyer_product,priority:3"`
	SellerID       string `gorm:"size:64;not null"`
	ProductTitle   string `gorm:"size:255;not null"`
	OrderTotal     int64  `gorm:"not null"`
	ReminderCount  int    `gorm:"not null;default:0"`
	LastRemindedAt *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	ExpiresAt      time.Time `gorm:"not null;index:idx_pending_buyer_expires,priority:2;index:idx_pending_expires"`
}

func (PendingReviewModel) TableName() string {
	return "pending_reviews"
}

// ReviewModel 对应 reviews 表。dedupe_key 唯一索引是防止重复评价的最终防线。
type ReviewModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	Type      string `gorm:"size:16;not null;index:idx_reviews_product,priority:1;index:idx_reviews_seller,priority:1"`
	OrderCode string `gorm:"size:40"`
	ProductID string `gorm:"size:64;index:idx_reviews_product,priority:2"`
	BuyerID   string `gorm:"size:64;not null"`
	SellerID  string `gorm:"size:64;not null;index:idx_reviews_seller,priority:2"`
	Rating    int    `gorm:"not null"`
	Comment   string `gorm:"size:4000;not null"`
	Buyer     datatypes.JSON
	Status    string    `gorm:"size:16;not null;index:idx_reviews_product,priority:3;index:idx_reviews_seller,priority:3"`
	DedupeKey string    `gorm:"size:200;not null;uniqueIndex:uk_reviews_dedupe"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

func (ReviewModel) TableName() string {
	return "reviews"
}

// StoreCreditModel 对应 store_credits 表，(buyer_id, seller_id) 唯一
type StoreCreditModel struct {
	ID         string `gorm:"primaryKey;size:36"`
	BuyerID    string `gorm:"size:64;not null;uniqueIndex:uk_credits_buyer_seller,priority:1"`
	SellerID   string `gorm:"size:64;not null;uniqueIndex:uk_credits_buyer_seller,priority:2;index:idx_credits_seller_type,priority:1"`
	CreditType string `gorm:"size:16;not null;index:idx_credits_seller_type,priority:2"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (StoreCreditModel) TableName() string {
	return "store_credits"
}

func Models() []any {
	return []any{&PendingReviewModel{}, &ReviewModel{}, &StoreCreditModel{}}
}
