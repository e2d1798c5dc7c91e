package adapter

import (
	"context"

	catalogapp "marketplace/internal/service/catalog/application"
	catalogdomain "marketplace/internal/service/catalog/domain"
	"marketplace/internal/service/review/domain"
)

// CatalogAdapter 同时实现 port.SellerDirectory 与 port.StatsWriter：
// 卖家名称从商品目录读取，重算后的统计写回商品与卖家的反规范化字段
type CatalogAdapter struct {
	catalog *catalogapp.CatalogService
}

func NewCatalogAdapter(catalog *catalogapp.CatalogService) *CatalogAdapter {
	return &CatalogAdapter{catalog: catalog}
}

func (a *CatalogAdapter) DisplayNames(ctx context.Context, sellerIDs []string) (map[string]string, error) {
	return a.catalog.DisplayNames(ctx, sellerIDs)
}

func (a *CatalogAdapter) WriteProductRating(ctx context.Context, productID string, stats domain.RatingStats) error {
	return a.catalog.UpdateProductRating(ctx, productID, toRatingSummary(stats))
}

func (a *CatalogAdapter) WriteSellerRating(ctx context.Context, sellerID string, stats domain.RatingStats) error {
	return a.catalog.UpdateSellerRating(ctx, sellerID, toRatingSummary(stats))
}

func (a *CatalogAdapter) WriteSellerCredit(ctx context.Context, sellerID string, stats domain.CreditStats) error {
	return a.catalog.UpdateSellerCredit(ctx, sellerID, catalogdomain.CreditSummary{
		Positive:   stats.PositiveCount,
		Negative:   stats.NegativeCount,
		Percentage: stats.PositivePercentage,
	})
}

func toRatingSummary(stats domain.RatingStats) catalogdomain.RatingSummary {
	return catalogdomain.RatingSummary{
		Average:      stats.AverageRating,
		Total:        stats.TotalReviews,
		Distribution: stats.Distribution,
	}
}
