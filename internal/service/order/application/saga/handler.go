package saga

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"marketplace/internal/service/order/domain"
	"marketplace/internal/service/order/domain/port"
)

// CheckoutRequest 是下单流程的输入
type CheckoutRequest struct {
	BuyerID  string
	SellerID string
	Items    []domain.CartItem
	Discount int64
	Metadata domain.Metadata
}

// OrderContext 在下单责任链中传递上下文数据。
// 所有外部依赖都是端口接口。
type OrderContext struct {
	Ctx     context.Context
	Tracer  trace.Tracer
	Now     time.Time
	Request CheckoutRequest

	// 由链上的步骤逐步填充
	Snapshots map[string]domain.ProductSnapshot
	Order     *domain.Order

	// 依赖出站端口 (Interfaces)
	Repo      domain.OrderRepository
	Catalog   port.ProductCatalog
	Policy    port.ExpiryPolicy
	Publisher port.EventPublisher

	NewCode         func(now time.Time) string
	MaxCodeAttempts int
}

type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}
