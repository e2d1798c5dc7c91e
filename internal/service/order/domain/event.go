// internal/service/order/domain/event.go
package domain

import "time"

// EventType 订单领域事件的类型标签，也是 Kafka 消息头 event-type 的取值
type EventType string

const (
	EventOrderCreated   EventType = "order.created"
	EventOrderConfirmed EventType = "order.confirmed"
	EventOrderCompleted EventType = "order.completed"
	EventOrderCancelled EventType = "order.cancelled"
	EventOrderRefunded  EventType = "order.refunded"
)

var statusEvents = map[Status]EventType{
	StatusPending:   EventOrderCreated,
	StatusConfirmed: EventOrderConfirmed,
	StatusCompleted: EventOrderCompleted,
	StatusCancelled: EventOrderCancelled,
	StatusRefunded:  EventOrderRefunded,
}

// OrderEvent 是订单状态变化后对外发布的事件
type OrderEvent struct {
	Type          EventType     `json:"type"`
	OrderCode     string        `json:"orderCode"`
	BuyerID       string        `json:"buyerId"`
	SellerID      string        `json:"sellerId"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Total         int64         `json:"total"`
	ExpiresAt     time.Time     `json:"expiresAt"`
	Reason        string        `json:"reason,omitempty"`
	OccurredAt    time.Time     `json:"occurredAt"`
}

// NewOrderEvent 根据订单当前状态构造事件
func NewOrderEvent(o *Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          statusEvents[o.Status],
		OrderCode:     o.Code,
		BuyerID:       o.BuyerID,
		SellerID:      o.SellerID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Totals.Total,
		ExpiresAt:     o.ExpiresAt,
		Reason:        o.CancelReason,
		OccurredAt:    at.UTC(),
	}
}

// SettlementOutcome 外部账本回报的结算结果
type SettlementOutcome string

const (
	SettlementReserved SettlementOutcome = "reserved"
	SettlementPaid     SettlementOutcome = "paid"
	SettlementFailed   SettlementOutcome = "failed"
	SettlementRefunded SettlementOutcome = "refunded"
)

// SettlementResult 是账本服务发到 settlement 主题的消息体
type SettlementResult struct {
	OrderCode  string            `json:"orderCode"`
	Outcome    SettlementOutcome `json:"outcome"`
	Reason     string            `json:"reason,omitempty"`
	LedgerTxID string            `json:"ledgerTxId,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}
