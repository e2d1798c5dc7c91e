// Package domain 定义商品目录：卖家、商品及其反规范化的统计字段。
// 统计字段只是评价与信用记录的派生缓存，随时可以重建。
package domain

import (
	"context"
	"strings"
	"time"

	"marketplace/internal/pkg/errs"
)

// RatingSummary 评分汇总，Distribution[i] 是 i+1 星的数量
type RatingSummary struct {
	Average      float64
	Total        int64
	Distribution [5]int64
}

// CreditSummary 卖家信用汇总
type CreditSummary struct {
	Positive   int64
	Negative   int64
	Percentage float64
}

type Seller struct {
	ID          string
	DisplayName string
	Rating      RatingSummary
	Credit      CreditSummary
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Product struct {
	ID        string
	SellerID  string
	Title     string
	Price     int64
	Rating    RatingSummary
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewSeller(id, displayName string, now time.Time) (*Seller, error) {
	id, displayName = strings.TrimSpace(id), strings.TrimSpace(displayName)
	if id == "" || displayName == "" {
		return nil, errs.Validation("seller id and display name are required")
	}
	now = now.UTC()
	return &Seller{ID: id, DisplayName: displayName, CreatedAt: now, UpdatedAt: now}, nil
}

func NewProduct(id, sellerID, title string, price int64, now time.Time) (*Product, error) {
	id, title = strings.TrimSpace(id), strings.TrimSpace(title)
	if id == "" || sellerID == "" || title == "" {
		return nil, errs.Validation("product id, seller id and title are required")
	}
	if err := ValidatePrice(price); err != nil {
		return nil, err
	}
	now = now.UTC()
	return &Product{ID: id, SellerID: sellerID, Title: title, Price: price, CreatedAt: now, UpdatedAt: now}, nil
}

// ValidatePrice 价格以平台币计，允许免费商品
func ValidatePrice(price int64) error {
	if price < 0 {
		return errs.Validation("price must not be negative")
	}
	return nil
}

type Repository interface {
	CreateSeller(ctx context.Context, seller *Seller) error
	CreateProduct(ctx context.Context, product *Product) error
	FindSeller(ctx context.Context, id string) (*Seller, error)
	FindProduct(ctx context.Context, id string) (*Product, error)
	// FindProducts 不存在的 id 直接忽略
	FindProducts(ctx context.Context, ids []string) ([]*Product, error)
	DisplayNames(ctx context.Context, sellerIDs []string) (map[string]string, error)

	UpdatePrice(ctx context.Context, productID string, price int64, now time.Time) error
	UpdateProductRating(ctx context.Context, productID string, rating RatingSummary, now time.Time) error
	UpdateSellerRating(ctx context.Context, sellerID string, rating RatingSummary, now time.Time) error
	UpdateSellerCredit(ctx context.Context, sellerID string, credit CreditSummary, now time.Time) error
}
