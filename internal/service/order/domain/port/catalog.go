package port

import (
	"context"

	"marketplace/internal/service/order/domain"
)

// ProductCatalog 是商品目录的出站端口，只用于下单时拍摄价格快照。
type ProductCatalog interface {
	// Snapshot 返回给定商品的当前价格与标题，不存在的商品不出现在结果中。
	Snapshot(ctx context.Context, productIDs []string) (map[string]domain.ProductSnapshot, error)
}
