package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"marketplace/internal/pkg/errs"
	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/metrics"
	"marketplace/internal/pkg/mq"
	"marketplace/internal/service/order/domain"
)

// SettlementOrders 是结算消费者驱动的订单用例，由 OrderApplicationService 实现
type SettlementOrders interface {
	ReservePayment(ctx context.Context, code string) (*domain.Order, error)
	ConfirmOrder(ctx context.Context, code string) (*domain.Order, error)
	CancelOrder(ctx context.Context, code, reason string) (*domain.Order, error)
	RefundOrder(ctx context.Context, code string) (*domain.Order, error)
}

// SettlementConsumer 消费账本服务发出的结算结果并推进订单状态。
// 业务错误是永久性的，记录后直接提交；基础设施错误投递到死信主题后再提交。
// 死信也写不进去时停在这条消息上重试，后面的消息不会被取出。
type SettlementConsumer struct {
	reader       mq.MessageReader
	orders       SettlementOrders
	failures     *mq.FailureHandler
	metrics      *metrics.Metrics
	retryBackoff time.Duration
}

func NewSettlementConsumer(reader mq.MessageReader, orders SettlementOrders, failures *mq.FailureHandler, m *metrics.Metrics) *SettlementConsumer {
	if m == nil {
		m = metrics.New(nil)
	}
	return &SettlementConsumer{
		reader:       reader,
		orders:       orders,
		failures:     failures,
		metrics:      m,
		retryBackoff: time.Second,
	}
}

// Run 是一个 bootstrap.Worker，ctx 取消时返回
func (c *SettlementConsumer) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Msg("✅ Settlement consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Msg("🛑 Settlement consumer shutting down")
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Msg("Could not fetch settlement message, retrying")
			select {
			case <-time.After(c.retryBackoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		if !c.handleUntilDone(ctx, msg) {
			logger.Ctx(ctx).Info().Int64("offset", msg.Offset).Msg("🛑 Settlement consumer shutting down with message unresolved")
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit settlement message")
		}
	}
}

// handleUntilDone 在同一条消息上重试，直到可以提交或 ctx 取消。
// 提交 offset 对分区是累计的，越过未解决的消息去提交后面的 offset 等于把它一起确认掉。
func (c *SettlementConsumer) handleUntilDone(ctx context.Context, msg kafka.Message) bool {
	msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)
	for {
		err := c.Handle(msgCtx, msg)
		if err == nil {
			return true
		}
		logger.Ctx(ctx).Error().Err(err).
			Str("topic", msg.Topic).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("Settlement message unresolved, retrying")
		select {
		case <-time.After(c.retryBackoff):
		case <-ctx.Done():
			return false
		}
	}
}

// Handle 处理一条消息。返回 nil 表示可以提交 offset。
func (c *SettlementConsumer) Handle(ctx context.Context, msg kafka.Message) error {
	var result domain.SettlementResult
	if err := json.Unmarshal(msg.Value, &result); err != nil {
		c.metrics.SettlementMessages.WithLabelValues("malformed").Inc()
		return c.deadLetter(ctx, msg, errors.Wrap(err, "decode settlement result"))
	}

	ctx = logger.WithContext(ctx, map[string]string{
		"order_code": result.OrderCode,
		"outcome":    string(result.Outcome),
	})
	err := c.apply(ctx, result)
	switch {
	case err == nil:
		c.metrics.SettlementMessages.WithLabelValues(string(result.Outcome)).Inc()
		logger.Ctx(ctx).Info().Str("ledger_tx", result.LedgerTxID).Msg("Settlement applied")
		return nil
	case errs.IsDomain(err):
		c.metrics.SettlementMessages.WithLabelValues("rejected").Inc()
		logger.Ctx(ctx).Warn().Err(err).Msg("Settlement rejected by order state, skipping")
		return nil
	default:
		c.metrics.SettlementMessages.WithLabelValues("failed").Inc()
		return c.deadLetter(ctx, msg, err)
	}
}

func (c *SettlementConsumer) apply(ctx context.Context, r domain.SettlementResult) error {
	if r.OrderCode == "" {
		return errs.Validation("settlement result without order code")
	}
	var err error
	switch r.Outcome {
	case domain.SettlementReserved:
		_, err = c.orders.ReservePayment(ctx, r.OrderCode)
	case domain.SettlementPaid:
		_, err = c.orders.ConfirmOrder(ctx, r.OrderCode)
	case domain.SettlementFailed:
		reason := r.Reason
		if reason == "" {
			reason = "payment failed"
		}
		_, err = c.orders.CancelOrder(ctx, r.OrderCode, reason)
	case domain.SettlementRefunded:
		_, err = c.orders.RefundOrder(ctx, r.OrderCode)
	default:
		err = errs.Validation("unknown settlement outcome %q", r.Outcome)
	}
	return err
}

func (c *SettlementConsumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) error {
	if c.failures == nil {
		logger.Ctx(ctx).Error().Err(cause).Int64("offset", msg.Offset).Msg("Settlement message dropped, no dead letter topic configured")
		return nil
	}
	return c.failures.Handle(ctx, msg, cause)
}
