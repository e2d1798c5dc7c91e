package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"marketplace/internal/pkg/mq"
	"marketplace/internal/service/order/domain"
)

// HeaderEventType 标识消息体的事件类型，消费方可以不解析 JSON 就完成路由
const HeaderEventType = "event-type"

// EventKafkaAdapter 实现了 port.EventPublisher 接口。
// 以订单号作为消息 key，同一订单的事件进入同一分区，保证顺序。
type EventKafkaAdapter struct {
	writer mq.MessageWriter
}

// NewEventKafkaAdapter 创建一个新的订单事件生产者适配器。
func NewEventKafkaAdapter(writer mq.MessageWriter) *EventKafkaAdapter {
	return &EventKafkaAdapter{writer: writer}
}

func (a *EventKafkaAdapter) Publish(ctx context.Context, event domain.OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal order event")
	}

	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	err = mq.ProduceMessage(ctx, a.writer, []byte(event.OrderCode), body,
		kafka.Header{Key: HeaderEventType, Value: []byte(event.Type)})
	return errors.Wrapf(err, "publish %s for order %s", event.Type, event.OrderCode)
}
