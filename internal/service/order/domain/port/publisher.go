package port

import (
	"context"

	"marketplace/internal/service/order/domain"
)

// EventPublisher 发布订单领域事件
type EventPublisher interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}
