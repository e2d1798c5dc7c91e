package saga

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"marketplace/internal/pkg/errs"
	"marketplace/internal/service/order/domain"
)

// ValidateCartHandler 在访问任何外部依赖之前拒绝空购物车和非法数量
type ValidateCartHandler struct {
	NextHandler
}

func (h *ValidateCartHandler) Handle(orderCtx *OrderContext) error {
	_, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ValidateCart")
	defer span.End()

	req := orderCtx.Request
	span.SetAttributes(
		attribute.String("buyer.id", req.BuyerID),
		attribute.String("seller.id", req.SellerID),
		attribute.Int("cart.lines", len(req.Items)),
	)

	if req.BuyerID == "" || req.SellerID == "" {
		err := errs.Validation("buyer and seller are required")
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if req.BuyerID == req.SellerID {
		err := errs.Validation("buyer cannot purchase from own store")
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := domain.ValidateCart(req.Items); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := req.Metadata.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return h.executeNext(orderCtx)
}
