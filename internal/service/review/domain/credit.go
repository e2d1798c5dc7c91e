package domain

import (
	"time"

	"marketplace/internal/pkg/errs"
)

type CreditType string

const (
	CreditPositive CreditType = "positive"
	CreditNegative CreditType = "negative"
)

func ParseCreditType(s string) (CreditType, error) {
	switch CreditType(s) {
	case CreditPositive, CreditNegative:
		return CreditType(s), nil
	}
	return "", errs.Validation("credit type must be positive or negative, got %q", s)
}

// StoreCredit 买家对卖家当前的信用评价，每对 (买家, 卖家) 只保留一条，不记录历史
type StoreCredit struct {
	ID         string
	BuyerID    string
	SellerID   string
	CreditType CreditType
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewStoreCredit(id, buyerID, sellerID string, creditType CreditType, now time.Time) (*StoreCredit, error) {
	if buyerID == "" || sellerID == "" {
		return nil, errs.Validation("buyer and seller are required")
	}
	if buyerID == sellerID {
		return nil, errs.Validation("sellers cannot rate their own store")
	}
	if _, err := ParseCreditType(string(creditType)); err != nil {
		return nil, err
	}
	now = now.UTC()
	return &StoreCredit{
		ID:         id,
		BuyerID:    buyerID,
		SellerID:   sellerID,
		CreditType: creditType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
