// internal/service/order/domain/order.go
package domain

import (
	"time"

	"marketplace/internal/pkg/errs"
)

// CartItem 是结账时购物车中的一行
type CartItem struct {
	ProductID string
	Quantity  int
}

// ProductSnapshot 是下单瞬间从商品目录读取的价格与标题
type ProductSnapshot struct {
	ProductID string
	SellerID  string
	Title     string
	UnitPrice int64
}

// LineItem 订单行。价格在创建时拷贝，之后不再读取商品的实时价格。
type LineItem struct {
	ProductID string
	Title     string
	UnitPrice int64
	Quantity  int
	LineTotal int64
}

// Totals 以平台币计价，创建时计算一次
type Totals struct {
	Subtotal int64
	Discount int64
	Total    int64
}

// Order 是订单聚合的根实体
type Order struct {
	Code     string
	BuyerID  string
	SellerID string
	Items    []LineItem
	Totals   Totals
	Metadata Metadata

	Status         Status
	PaymentStatus  PaymentStatus
	DeliveryStatus DeliveryStatus
	CancelReason   string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
	ConfirmedAt *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	RefundedAt  *time.Time
}

// NewOrderParams 创建订单所需的全部输入
type NewOrderParams struct {
	Code      string
	BuyerID   string
	SellerID  string
	Items     []CartItem
	Snapshots map[string]ProductSnapshot
	Discount  int64
	Metadata  Metadata
	Now       time.Time
	// Window 根据件数与总额返回预留窗口，可以按卖家策略变化
	Window func(itemCount int, total int64) time.Duration
}

// ValidateCart 校验购物车本身，不依赖商品目录
func ValidateCart(items []CartItem) error {
	if len(items) == 0 {
		return errs.InvalidCart("cart is empty")
	}
	for _, it := range items {
		if it.ProductID == "" {
			return errs.InvalidCart("cart item without product id")
		}
		if it.Quantity <= 0 {
			return errs.InvalidCart("quantity of product %s must be positive", it.ProductID)
		}
	}
	return nil
}

// 工厂函数: NewOrder 基于价格快照创建一个 pending 订单。
// 同一商品出现多次时合并为一行，行的顺序以首次出现为准。
func NewOrder(p NewOrderParams) (*Order, error) {
	if p.Code == "" || p.BuyerID == "" || p.SellerID == "" {
		return nil, errs.Validation("order code, buyer and seller are required")
	}
	if p.Window == nil {
		return nil, errs.Validation("reservation window is required")
	}
	if err := ValidateCart(p.Items); err != nil {
		return nil, err
	}
	if err := p.Metadata.Validate(); err != nil {
		return nil, err
	}

	var (
		lines    []LineItem
		position = make(map[string]int)
		subtotal int64
	)
	for _, it := range p.Items {
		snap, ok := p.Snapshots[it.ProductID]
		if !ok {
			return nil, errs.InvalidCart("product %s is not available", it.ProductID)
		}
		if snap.SellerID != p.SellerID {
			return nil, errs.InvalidCart("product %s does not belong to seller %s", it.ProductID, p.SellerID)
		}
		if snap.UnitPrice < 0 {
			return nil, errs.InvalidCart("product %s has a negative price", it.ProductID)
		}

		if idx, seen := position[it.ProductID]; seen {
			lines[idx].Quantity += it.Quantity
			lines[idx].LineTotal = lines[idx].UnitPrice * int64(lines[idx].Quantity)
		} else {
			position[it.ProductID] = len(lines)
			lines = append(lines, LineItem{
				ProductID: snap.ProductID,
				Title:     snap.Title,
				UnitPrice: snap.UnitPrice,
				Quantity:  it.Quantity,
				LineTotal: snap.UnitPrice * int64(it.Quantity),
			})
		}
		subtotal += snap.UnitPrice * int64(it.Quantity)
	}

	if p.Discount < 0 || p.Discount > subtotal {
		return nil, errs.Validation("discount must be between 0 and subtotal %d", subtotal)
	}

	itemCount := 0
	for _, l := range lines {
		itemCount += l.Quantity
	}
	window := p.Window(itemCount, subtotal-p.Discount)
	if window <= 0 {
		return nil, errs.Validation("reservation window must be positive")
	}

	now := p.Now.UTC()
	return &Order{
		Code:           p.Code,
		BuyerID:        p.BuyerID,
		SellerID:       p.SellerID,
		Items:          lines,
		Totals:         Totals{Subtotal: subtotal, Discount: p.Discount, Total: subtotal - p.Discount},
		Metadata:       p.Metadata,
		Status:         StatusPending, // 初始状态
		PaymentStatus:  PaymentPending,
		DeliveryStatus: DeliveryPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(window),
	}, nil
}

// IsExpired 预留窗口已过且仍未确认
func (o *Order) IsExpired(now time.Time) bool {
	return o.Status == StatusPending && !o.ExpiresAt.After(now)
}

// CanTransitionTo 检查状态机是否允许迁移到 to
func (o *Order) CanTransitionTo(to Status, now time.Time) error {
	rule, ok := RuleFor(to)
	if !ok {
		return errs.Validation("unknown target status %q", to)
	}
	if contains(rule.From, o.Status) {
		return nil
	}
	if contains(rule.UnexpiredFrom, o.Status) {
		if o.ExpiresAt.After(now) {
			return nil
		}
		return errs.Conflict("order %s reservation expired at %s", o.Code, o.ExpiresAt.Format(time.RFC3339))
	}
	return errs.Conflict("order %s cannot move from %s to %s", o.Code, o.Status, to)
}

// Transition 在内存中执行一次状态迁移，并同步支付轴与交付轴
func (o *Order) Transition(to Status, now time.Time, reason string) error {
	if err := o.CanTransitionTo(to, now); err != nil {
		return err
	}
	now = now.UTC()
	switch to {
	case StatusConfirmed:
		o.PaymentStatus = PaymentPaid
		o.DeliveryStatus = DeliveryProcessing
		o.ConfirmedAt = &now
	case StatusCompleted:
		o.PaymentStatus = PaymentPaid
		o.DeliveryStatus = DeliveryDelivered
		o.CompletedAt = &now
	case StatusCancelled:
		o.PaymentStatus = PaymentAfterCancel(o.PaymentStatus)
		o.DeliveryStatus = DeliveryFailed
		o.CancelledAt = &now
		o.CancelReason = reason
	case StatusRefunded:
		o.PaymentStatus = PaymentRefunded
		o.RefundedAt = &now
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

// PaymentAfterCancel 取消时支付轴的去向：已付款退款，预留释放
func PaymentAfterCancel(p PaymentStatus) PaymentStatus {
	switch p {
	case PaymentPaid:
		return PaymentRefunded
	case PaymentReserved:
		return PaymentPending
	default:
		return p
	}
}

// ItemCount 订单中的商品总件数
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}
