package adapter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/pkg/mq"
	"marketplace/internal/service/order/domain"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestEventKafkaAdapterPublish(t *testing.T) {
	w := &captureWriter{}
	event := domain.OrderEvent{
		Type:       domain.EventOrderCompleted,
		OrderCode:  "ORD-1",
		BuyerID:    "B",
		SellerID:   "S",
		Status:     domain.StatusCompleted,
		Total:      250,
		OccurredAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}

	require.NoError(t, NewEventKafkaAdapter(w).Publish(context.Background(), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "ORD-1", string(msg.Key))
	assert.Equal(t, string(domain.EventOrderCompleted), mq.HeaderValue(msg.Headers, HeaderEventType))

	var decoded domain.OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.OrderCode, decoded.OrderCode)
	assert.Equal(t, event.Total, decoded.Total)
	assert.True(t, event.OccurredAt.Equal(decoded.OccurredAt))
}
