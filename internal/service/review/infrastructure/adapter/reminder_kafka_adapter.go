package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"marketplace/internal/pkg/mq"
	"marketplace/internal/service/review/domain"
)

// ReviewReminder 是发往通知主题的提醒消息，由通知服务渲染并推送给买家
type ReviewReminder struct {
	PendingID     string    `json:"pendingId"`
	BuyerID       string    `json:"buyerId"`
	OrderCode     string    `json:"orderCode"`
	ProductID     string    `json:"productId"`
	ProductTitle  string    `json:"productTitle"`
	ReminderCount int       `json:"reminderCount"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// ReminderKafkaAdapter 实现了 port.ReminderNotifier
type ReminderKafkaAdapter struct {
	writer mq.MessageWriter
}

func NewReminderKafkaAdapter(writer mq.MessageWriter) *ReminderKafkaAdapter {
	return &ReminderKafkaAdapter{writer: writer}
}

// NotifyPending 以买家 id 作为 key，同一买家的提醒落在同一分区
func (a *ReminderKafkaAdapter) NotifyPending(ctx context.Context, items []*domain.PendingReview) error {
	msgs := make([]kafka.Message, 0, len(items))
	for _, p := range items {
		body, err := json.Marshal(ReviewReminder{
			PendingID:     p.ID,
			BuyerID:       p.BuyerID,
			OrderCode:     p.OrderCode,
			ProductID:     p.ProductID,
			ProductTitle:  p.ProductTitle,
			ReminderCount: p.ReminderCount + 1,
			ExpiresAt:     p.ExpiresAt,
		})
		if err != nil {
			return errors.Wrapf(err, "encode reminder %s", p.ID)
		}
		msg := kafka.Message{Key: []byte(p.BuyerID), Value: body, Time: time.Now().UTC()}
		mq.InjectTraceContext(ctx, &msg.Headers)
		msgs = append(msgs, msg)
	}
	if err := a.writer.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrap(err, "publish review reminders")
	}
	return nil
}
