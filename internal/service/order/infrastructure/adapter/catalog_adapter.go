package adapter

import (
	"context"

	catalogapp "marketplace/internal/service/catalog/application"
	"marketplace/internal/service/order/domain"
)

// CatalogAdapter 实现了 port.ProductCatalog，把商品目录的实时数据转换为订单的价格快照
type CatalogAdapter struct {
	catalog *catalogapp.CatalogService
}

func NewCatalogAdapter(catalog *catalogapp.CatalogService) *CatalogAdapter {
	return &CatalogAdapter{catalog: catalog}
}

func (a *CatalogAdapter) Snapshot(ctx context.Context, productIDs []string) (map[string]domain.ProductSnapshot, error) {
	products, err := a.catalog.Products(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.ProductSnapshot, len(products))
	for id, p := range products {
		out[id] = domain.ProductSnapshot{
			ProductID: p.ID,
			SellerID:  p.SellerID,
			Title:     p.Title,
			UnitPrice: p.Price,
		}
	}
	return out, nil
}
