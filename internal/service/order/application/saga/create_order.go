package saga

import (
	stderrors "errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"marketplace/internal/pkg/errs"
	"marketplace/internal/pkg/logger"
)

// CreateOrderHandler 负责持久化订单。订单号冲突时换一个号重试。
type CreateOrderHandler struct {
	NextHandler
}

func (h *CreateOrderHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.CreateOrder")
	defer span.End()

	attempts := orderCtx.MaxCodeAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			orderCtx.Order.Code = orderCtx.NewCode(orderCtx.Now)
		}
		err = orderCtx.Repo.Create(ctx, orderCtx.Order)
		if err == nil {
			break
		}
		if !stderrors.Is(err, errs.ErrDuplicate) {
			break
		}
		logger.Ctx(ctx).Warn().Str("order_code", orderCtx.Order.Code).Msg("Order code collision, regenerating")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist order")
		return err
	}

	span.SetAttributes(attribute.String("order.code", orderCtx.Order.Code))
	span.AddEvent("Pending order saved to DB.")
	return h.executeNext(orderCtx)
}
