package infrastructure

import (
	"encoding/json"

	"github.com/pkg/errors"

	"marketplace/internal/service/review/domain"
)

func fromDomainPending(p *domain.PendingReview) *PendingReviewModel {
	return &PendingReviewModel{
		ID:             p.ID,
		OrderCode:      p.OrderCode,
		BuyerID:        p.BuyerID,
		ProductID:      p.ProductID,
		SellerID:       p.SellerID,
		ProductTitle:   p.ProductTitle,
		OrderTotal:     p.OrderTotal,
		ReminderCount:  p.ReminderCount,
		LastRemindedAt: p.LastRemindedAt,
		CreatedAt:      p.CreatedAt,
		ExpiresAt:      p.ExpiresAt,
	}
}

func toDomainPending(m *PendingReviewModel) *domain.PendingReview {
	p := &domain.PendingReview{
		ID:            m.ID,
		OrderCode:     m.OrderCode,
		BuyerID:       m.BuyerID,
		SellerID:      m.SellerID,
		ProductID:     m.ProductID,
		ProductTitle:  m.ProductTitle,
		OrderTotal:    m.OrderTotal,
		ReminderCount: m.ReminderCount,
		CreatedAt:     m.CreatedAt.UTC(),
		ExpiresAt:     m.ExpiresAt.UTC(),
	}
	if m.LastRemindedAt != nil {
		t := m.LastRemindedAt.UTC()
		p.LastRemindedAt = &t
	}
	return p
}

func fromDomainReview(r *domain.Review) (*ReviewModel, error) {
	buyer, err := json.Marshal(r.Buyer)
	if err != nil {
		return nil, errors.Wrap(err, "marshal buyer info")
	}
	return &ReviewModel{
		ID:        r.ID,
		Type:      string(r.Type),
		OrderCode: r.OrderCode,
		ProductID: r.ProductID,
		BuyerID:   r.BuyerID,
		SellerID:  r.SellerID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		Buyer:     buyer,
		Status:    string(r.Status),
		DedupeKey: r.DedupeKey,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func toDomainReview(m *ReviewModel) (*domain.Review, error) {
	r := &domain.Review{
		ID:        m.ID,
		Type:      domain.ReviewType(m.Type),
		OrderCode: m.OrderCode,
		ProductID: m.ProductID,
		BuyerID:   m.BuyerID,
		SellerID:  m.SellerID,
		Rating:    m.Rating,
		Comment:   m.Comment,
		Status:    domain.ReviewStatus(m.Status),
		DedupeKey: m.DedupeKey,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	if len(m.Buyer) > 0 {
		if err := json.Unmarshal(m.Buyer, &r.Buyer); err != nil {
			return nil, errors.Wrapf(err, "decode buyer info of review %s", m.ID)
		}
	}
	return r, nil
}

func toDomainCredit(m *StoreCreditModel) *domain.StoreCredit {
	return &domain.StoreCredit{
		ID:         m.ID,
		BuyerID:    m.BuyerID,
		SellerID:   m.SellerID,
		CreditType: domain.CreditType(m.CreditType),
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}
