package saga

import (
	"marketplace/internal/pkg/logger"
	"marketplace/internal/service/order/domain"
)

// NotificationHandler 是链的最后一步，发布 order.created 事件。
// 发布失败不影响下单结果，只记录错误。
type NotificationHandler struct {
	NextHandler
}

func (h *NotificationHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Notification")
	defer span.End()

	if orderCtx.Publisher != nil {
		event := domain.NewOrderEvent(orderCtx.Order, orderCtx.Now)
		if err := orderCtx.Publisher.Publish(ctx, event); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("order_code", orderCtx.Order.Code).Msg("Failed to publish order created event")
			span.RecordError(err)
		}
	}

	span.AddEvent("Order created event published (or attempted).")
	return h.executeNext(orderCtx)
}
