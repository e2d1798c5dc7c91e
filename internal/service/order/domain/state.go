// internal/service/order/domain/state.go
package domain

// Status 定义了订单的主生命周期状态
type Status string

const (
	StatusPending   Status = "pending"   // 已下单，处于结账预留窗口内
	StatusConfirmed Status = "confirmed" // 账本已扣款确认
	StatusCompleted Status = "completed" // 交付完成（终态-成功）
	StatusCancelled Status = "cancelled" // 用户/卖家取消或预留超时（终态-失败）
	StatusRefunded  Status = "refunded"  // 完成后退款（终态-冲正）
)

// PaymentStatus 支付轴，不驱动主状态机，但必须与之一致
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentReserved PaymentStatus = "reserved"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// DeliveryStatus 交付轴
type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "pending"
	DeliveryProcessing DeliveryStatus = "processing"
	DeliveryDelivered  DeliveryStatus = "delivered"
	DeliveryFailed     DeliveryStatus = "failed"
)

// IsTerminal 终态订单不会再发生主状态变化（refunded 之外的 completed 仍可退款）
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusRefunded
}

// TransitionRule 描述进入某个状态的前置条件。
// 存储层据此拼出条件更新语句，领域对象据此做内存校验，两边共用同一张表。
type TransitionRule struct {
	From []Status
	// UnexpiredFrom 中的状态只有在预留窗口未过期时才允许迁移
	UnexpiredFrom []Status
}

var transitions = map[Status]TransitionRule{
	StatusConfirmed: {UnexpiredFrom: []Status{StatusPending}},
	StatusCompleted: {From: []Status{StatusConfirmed}, UnexpiredFrom: []Status{StatusPending}},
	StatusCancelled: {From: []Status{StatusPending, StatusConfirmed}},
	StatusRefunded:  {From: []Status{StatusCompleted}},
}

// RuleFor 返回进入 to 状态的规则
func RuleFor(to Status) (TransitionRule, bool) {
	r, ok := transitions[to]
	return r, ok
}

func contains(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
