package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"marketplace/internal/pkg/errs"
)

type ReviewType string

const (
	ReviewTypeProduct ReviewType = "product"
	ReviewTypeSeller  ReviewType = "seller"
)

type ReviewStatus string

const (
	ReviewActive  ReviewStatus = "active"
	ReviewRemoved ReviewStatus = "removed"
)

const (
	MinRating        = 1
	MaxRating        = 5
	MinCommentLength = 10
	MaxCommentLength = 1000
)

// BuyerInfo 提交时的买家展示信息快照
type BuyerInfo struct {
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Review 评价创建后不可修改，只有审核状态可以变化
type Review struct {
	ID        string
	Type      ReviewType
	OrderCode string // 店铺评价为空
	ProductID string // 店铺评价为空
	BuyerID   string
	SellerID  string
	Rating    int
	Comment   string
	Buyer     BuyerInfo
	Status    ReviewStatus
	DedupeKey string
	CreatedAt time.Time
	UpdatedAt time.Time

	// PurchaseCount 读取时计算：该买家在此卖家的已完成订单数
	PurchaseCount int64
}

// ProductDedupeKey 商品评价的唯一键，同一订单中的不同商品可以分别评价
func ProductDedupeKey(orderCode, buyerID, productID string) string {
	return "product:" + orderCode + ":" + buyerID + ":" + productID
}

func SellerDedupeKey(buyerID, sellerID string) string {
	return "seller:" + buyerID + ":" + sellerID
}

// ValidateContent 校验评分与评论，返回去掉首尾空白的评论
func ValidateContent(rating int, comment string) (string, error) {
	if rating < MinRating || rating > MaxRating {
		return "", errs.Validation("rating must be an integer between %d and %d", MinRating, MaxRating)
	}
	comment = strings.TrimSpace(comment)
	n := utf8.RuneCountInString(comment)
	if n < MinCommentLength || n > MaxCommentLength {
		return "", errs.Validation("comment must be between %d and %d characters", MinCommentLength, MaxCommentLength)
	}
	return comment, nil
}

// NewProductReview 由待评价记录生成商品评价
func NewProductReview(id string, pending *PendingReview, rating int, comment string, buyer BuyerInfo, now time.Time) (*Review, error) {
	comment, err := ValidateContent(rating, comment)
	if err != nil {
		return nil, err
	}
	now = now.UTC()
	return &Review{
		ID:        id,
		Type:      ReviewTypeProduct,
		OrderCode: pending.OrderCode,
		ProductID: pending.ProductID,
		BuyerID:   pending.BuyerID,
		SellerID:  pending.SellerID,
		Rating:    rating,
		Comment:   comment,
		Buyer:     buyer,
		Status:    ReviewActive,
		DedupeKey: ProductDedupeKey(pending.OrderCode, pending.BuyerID, pending.ProductID),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func NewSellerReview(id, buyerID, sellerID string, rating int, comment string, buyer BuyerInfo, now time.Time) (*Review, error) {
	if buyerID == "" || sellerID == "" {
		return nil, errs.Validation("buyer and seller are required")
	}
	comment, err := ValidateContent(rating, comment)
	if err != nil {
		return nil, err
	}
	now = now.UTC()
	return &Review{
		ID:        id,
		Type:      ReviewTypeSeller,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Rating:    rating,
		Comment:   comment,
		Buyer:     buyer,
		Status:    ReviewActive,
		DedupeKey: SellerDedupeKey(buyerID, sellerID),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func ParseReviewStatus(s string) (ReviewStatus, error) {
	switch ReviewStatus(s) {
	case ReviewActive, ReviewRemoved:
		return ReviewStatus(s), nil
	}
	return "", errs.Validation("unknown review status %q", s)
}
