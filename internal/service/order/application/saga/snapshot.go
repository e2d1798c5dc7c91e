package saga

import (
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/codes"

	"marketplace/internal/service/order/domain"
)

// SnapshotHandler 读取商品当前价格并构造订单实体。
// 之后订单只引用这份快照，商品改价不影响已存在的订单。
type SnapshotHandler struct {
	NextHandler
}

func (h *SnapshotHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Snapshot")
	defer span.End()

	ids := make([]string, 0, len(orderCtx.Request.Items))
	for _, it := range orderCtx.Request.Items {
		ids = append(ids, it.ProductID)
	}

	snapshots, err := orderCtx.Catalog.Snapshot(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog lookup failed")
		return errors.Wrap(err, "snapshot product prices")
	}
	orderCtx.Snapshots = snapshots

	req := orderCtx.Request
	order, err := domain.NewOrder(domain.NewOrderParams{
		Code:      orderCtx.NewCode(orderCtx.Now),
		BuyerID:   req.BuyerID,
		SellerID:  req.SellerID,
		Items:     req.Items,
		Snapshots: snapshots,
		Discount:  req.Discount,
		Metadata:  req.Metadata,
		Now:       orderCtx.Now,
		Window: func(itemCount int, total int64) time.Duration {
			return orderCtx.Policy.ReservationWindow(ctx, req.SellerID, itemCount, total)
		},
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	orderCtx.Order = order
	span.AddEvent("Price snapshot taken.")

	return h.executeNext(orderCtx)
}
