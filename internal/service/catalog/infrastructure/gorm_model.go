package infrastructure

import (
	"time"

	"marketplace/internal/service/catalog/domain"
)

// SellerModel 对应 sellers 表。rating_* 与 credit_* 列由聚合重算写入。
type SellerModel struct {
	ID               string  `gorm:"primaryKey;size:64"`
	DisplayName      string  `gorm:"size:128;not null"`
	RatingAverage    float64 `gorm:"not null;default:0"`
	RatingTotal      int64   `gorm:"not null;default:0"`
	Rating1          int64   `gorm:"column:rating_1;not null;default:0"`
	Rating2          int64   `gorm:"column:rating_2;not null;default:0"`
	Rating3          int64   `gorm:"column:rating_3;not null;default:0"`
	Rating4          int64   `gorm:"column:rating_4;not null;default:0"`
	Rating5          int64   `gorm:"column:rating_5;not null;default:0"`
	CreditPositive   int64   `gorm:"not null;default:0"`
	CreditNegative   int64   `gorm:"not null;default:0"`
	CreditPercentage float64 `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (SellerModel) TableName() string {
	return "sellers"
}

// ProductModel 对应 products 表，price 是实时价格，订单只在下单时读取一次
type ProductModel struct {
	ID            string  `gorm:"primaryKey;size:64"`
	SellerID      string  `gorm:"size:64;not null;index:idx_products_seller"`
	Title         string  `gorm:"size:255;not null"`
	Price         int64   `gorm:"not null"`
	RatingAverage float64 `gorm:"not null;default:0"`
	RatingTotal   int64   `gorm:"not null;default:0"`
	Rating1       int64   `gorm:"column:rating_1;not null;default:0"`
	Rating2       int64   `gorm:"column:rating_2;not null;default:0"`
	Rating3       int64   `gorm:"column:rating_3;not null;default:0"`
	Rating4       int64   `gorm:"column:rating_4;not null;default:0"`
	Rating5       int64   `gorm:"column:rating_5;not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (ProductModel) TableName() string {
	return "products"
}

func Models() []any {
	return []any{&SellerModel{}, &ProductModel{}}
}

func toDomainSeller(m *SellerModel) *domain.Seller {
	return &domain.Seller{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		Rating: domain.RatingSummary{
			Average:      m.RatingAverage,
			Total:        m.RatingTotal,
			Distribution: [5]int64{m.Rating1, m.Rating2, m.Rating3, m.Rating4, m.Rating5},
		},
		Credit: domain.CreditSummary{
			Positive:   m.CreditPositive,
			Negative:   m.CreditNegative,
			Percentage: m.CreditPercentage,
		},
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func toDomainProduct(m *ProductModel) *domain.Product {
	return &domain.Product{
		ID:       m.ID,
		SellerID: m.SellerID,
		Title:    m.Title,
		Price:    m.Price,
		Rating: domain.RatingSummary{
			Average:      m.RatingAverage,
			Total:        m.RatingTotal,
			Distribution: [5]int64{m.Rating1, m.Rating2, m.Rating3, m.Rating4, m.Rating5},
		},
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// ratingColumns 评分汇总对应的列更新
func ratingColumns(r domain.RatingSummary, now time.Time) map[string]any {
	return map[string]any{
		"rating_average": r.Average,
		"rating_total":   r.Total,
		"rating_1":       r.Distribution[0],
		"rating_2":       r.Distribution[1],
		"rating_3":       r.Distribution[2],
		"rating_4":       r.Distribution[3],
		"rating_5":       r.Distribution[4],
		"updated_at":     now,
	}
}
