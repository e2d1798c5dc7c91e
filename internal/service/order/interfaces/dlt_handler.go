package interfaces

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/mq"
)

// DltConsumer 监听死信主题并记录日志，供人工排查
type DltConsumer struct {
	reader mq.MessageReader
	topic  string
}

func NewDltConsumer(reader mq.MessageReader, topic string) *DltConsumer {
	return &DltConsumer{reader: reader, topic: topic}
}

func (a *DltConsumer) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("✅ DLT consumer started")
	for {
		msg, err := a.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Str("topic", a.topic).Msg("🛑 DLT consumer shutting down")
				return nil
			}
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		logDeadLetter(ctx, msg)

		// 死信记录日志即视为处理完成
		if err := a.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit dead letter")
		}
	}
}

func logDeadLetter(ctx context.Context, msg kafka.Message) {
	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", mq.HeaderValue(msg.Headers, mq.HeaderOriginalTopic)).
		Str("original_partition", mq.HeaderValue(msg.Headers, mq.HeaderOriginalPartition)).
		Str("original_offset", mq.HeaderValue(msg.Headers, mq.HeaderOriginalOffset)).
		Str("exception_fqcn", mq.HeaderValue(msg.Headers, mq.HeaderExceptionFqcn)).
		Str("exception_message", mq.HeaderValue(msg.Headers, mq.HeaderExceptionMessage)).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("🚨 CRITICAL: Dead letter message received")
}
