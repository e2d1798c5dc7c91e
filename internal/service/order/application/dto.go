// internal/service/order/application/dto.go
package application

import (
	"marketplace/internal/service/order/application/saga"
	"marketplace/internal/service/order/domain"
)

// CreateOrderRequest 是创建订单用例的输入数据
type CreateOrderRequest struct {
	BuyerID  string
	SellerID string
	Items    []domain.CartItem
	Discount int64
	Metadata domain.Metadata
}

func (req *CreateOrderRequest) toCheckout() saga.CheckoutRequest {
	items := make([]domain.CartItem, len(req.Items))
	copy(items, req.Items)
	return saga.CheckoutRequest{
		BuyerID:  req.BuyerID,
		SellerID: req.SellerID,
		Items:    items,
		Discount: req.Discount,
		Metadata: req.Metadata,
	}
}
