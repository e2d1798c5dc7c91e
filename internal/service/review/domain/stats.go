package domain

import (
	"math"
	"time"
)

// RatingStats 商品或店铺评价的派生统计
type RatingStats struct {
	AverageRating float64   `json:"averageRating"`
	TotalReviews  int64     `json:"totalReviews"`
	Distribution  [5]int64  `json:"distribution"`
	ComputedAt    time.Time `json:"computedAt"`
}

// CreditStats 店铺信用的派生统计
type CreditStats struct {
	PositiveCount      int64     `json:"positiveCount"`
	NegativeCount      int64     `json:"negativeCount"`
	Total              int64     `json:"total"`
	PositivePercentage float64   `json:"positivePercentage"`
	ComputedAt         time.Time `json:"computedAt"`
}

// NewRatingStats 由各星级数量计算平均分，保留两位小数
func NewRatingStats(distribution [5]int64, at time.Time) RatingStats {
	var total, sum int64
	for i, n := range distribution {
		total += n
		sum += int64(i+1) * n
	}
	stats := RatingStats{TotalReviews: total, Distribution: distribution, ComputedAt: at.UTC()}
	if total > 0 {
		stats.AverageRating = round2(float64(sum) / float64(total))
	}
	return stats
}

// NewCreditStats 总数为 0 时百分比为 0
func NewCreditStats(positive, negative int64, at time.Time) CreditStats {
	stats := CreditStats{
		PositiveCount: positive,
		NegativeCount: negative,
		Total:         positive + negative,
		ComputedAt:    at.UTC(),
	}
	if stats.Total > 0 {
		stats.PositivePercentage = round2(float64(positive) * 100 / float64(stats.Total))
	}
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
