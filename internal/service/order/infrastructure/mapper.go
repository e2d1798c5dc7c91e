package infrastructure

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"

	"marketplace/internal/service/order/domain"
)

// ToDomainOrder 将数据库模型转换为领域模型
func ToDomainOrder(model *OrderModel) (*domain.Order, error) {
	if model == nil {
		return nil, nil
	}
	meta, err := domain.ParseMetadata(model.Metadata)
	if err != nil {
		return nil, errors.Wrapf(err, "decode metadata of order %s", model.Code)
	}

	items := make([]domain.LineItem, 0, len(model.Items))
	for _, it := range model.Items {
		items = append(items, domain.LineItem{
			ProductID: it.ProductID,
			Title:     it.Title,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal,
		})
	}

	return &domain.Order{
		Code:           model.Code,
		BuyerID:        model.BuyerID,
		SellerID:       model.SellerID,
		Items:          items,
		Totals:         domain.Totals{Subtotal: model.Subtotal, Discount: model.Discount, Total: model.Total},
		Metadata:       meta,
		Status:         domain.Status(model.Status),
		PaymentStatus:  domain.PaymentStatus(model.PaymentStatus),
		DeliveryStatus: domain.DeliveryStatus(model.DeliveryStatus),
		CancelReason:   model.CancelReason,
		CreatedAt:      model.CreatedAt.UTC(),
		UpdatedAt:      model.UpdatedAt.UTC(),
		ExpiresAt:      model.ExpiresAt.UTC(),
		ConfirmedAt:    utcPtr(model.ConfirmedAt),
		CompletedAt:    utcPtr(model.CompletedAt),
		CancelledAt:    utcPtr(model.CancelledAt),
		RefundedAt:     utcPtr(model.RefundedAt),
	}, nil
}

// FromDomainOrder 将领域模型转换为数据库模型 (用于插入)
func FromDomainOrder(o *domain.Order) (*OrderModel, error) {
	var meta datatypes.JSON
	if o.Metadata.Kind != domain.MetadataNone {
		raw, err := json.Marshal(o.Metadata)
		if err != nil {
			return nil, errors.Wrap(err, "encode order metadata")
		}
		meta = raw
	}

	items := make([]OrderItemModel, 0, len(o.Items))
	for i, it := range o.Items {
		items = append(items, OrderItemModel{
			OrderCode: o.Code,
			Position:  i,
			ProductID: it.ProductID,
			Title:     it.Title,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal,
		})
	}

	return &OrderModel{
		Code:           o.Code,
		BuyerID:        o.BuyerID,
		SellerID:       o.SellerID,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		DeliveryStatus: string(o.DeliveryStatus),
		Subtotal:       o.Totals.Subtotal,
		Discount:       o.Totals.Discount,
		Total:          o.Totals.Total,
		Metadata:       meta,
		CancelReason:   o.CancelReason,
		ExpiresAt:      o.ExpiresAt,
		ConfirmedAt:    o.ConfirmedAt,
		CompletedAt:    o.CompletedAt,
		CancelledAt:    o.CancelledAt,
		RefundedAt:     o.RefundedAt,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
		Items:          items,
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
