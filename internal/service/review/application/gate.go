package application

import (
	"context"

	"github.com/pkg/errors"

	"marketplace/internal/pkg/errs"
	"marketplace/internal/service/review/domain/port"
)

// PurchaseGate 是店铺评价与店铺信用共用的唯一购买记录判断
type PurchaseGate struct {
	history port.PurchaseHistory
}

func NewPurchaseGate(history port.PurchaseHistory) *PurchaseGate {
	return &PurchaseGate{history: history}
}

// HasPurchasedFromSeller 买家与卖家之间至少有一笔已完成订单
func (g *PurchaseGate) HasPurchasedFromSeller(ctx context.Context, buyerID, sellerID string) (bool, error) {
	n, err := g.history.CountCompleted(ctx, buyerID, sellerID)
	if err != nil {
		return false, errors.Wrap(err, "query purchase history")
	}
	return n > 0, nil
}

// Require 未购买时返回 errs.ErrUnauthorized
func (g *PurchaseGate) Require(ctx context.Context, buyerID, sellerID string) error {
	ok, err := g.HasPurchasedFromSeller(ctx, buyerID, sellerID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Unauthorized("must purchase before reviewing")
	}
	return nil
}
