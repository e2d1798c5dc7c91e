// internal/service/order/application/service.go
package application

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketplace/internal/pkg/errs"
	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/metrics"
	"marketplace/internal/pkg/pagination"
	"marketplace/internal/service/order/application/saga"
	"marketplace/internal/service/order/domain"
	"marketplace/internal/service/order/domain/port"
)

// OrderApplicationService 编排订单生命周期：下单、确认、完成、取消、退款与过期扫描。
// 它本身无状态，并发安全完全依赖仓储的条件更新。
type OrderApplicationService struct {
	orderRepo    domain.OrderRepository
	catalog      port.ProductCatalog
	materializer port.PendingReviewMaterializer
	publisher    port.EventPublisher
	policy       port.ExpiryPolicy
	metrics      *metrics.Metrics
	tracer       trace.Tracer

	now               func() time.Time
	newCode           func(now time.Time) string
	maxCodeAttempts   int
	sweepBatchSize    int
	processingTimeout time.Duration
}

type Option func(*OrderApplicationService)

// WithClock 替换时间源，测试中用于构造过期场景
func WithClock(now func() time.Time) Option {
	return func(s *OrderApplicationService) { s.now = now }
}

func WithCodeGenerator(gen func(now time.Time) string) Option {
	return func(s *OrderApplicationService) { s.newCode = gen }
}

func WithMaxCodeAttempts(n int) Option {
	return func(s *OrderApplicationService) { s.maxCodeAttempts = n }
}

func WithSweepBatchSize(n int) Option {
	return func(s *OrderApplicationService) { s.sweepBatchSize = n }
}

func WithProcessingTimeout(d time.Duration) Option {
	return func(s *OrderApplicationService) { s.processingTimeout = d }
}

func NewOrderApplicationService(
	orderRepo domain.OrderRepository,
	catalog port.ProductCatalog,
	materializer port.PendingReviewMaterializer,
	publisher port.EventPublisher,
	policy port.ExpiryPolicy,
	m *metrics.Metrics,
	tracer trace.Tracer,
	opts ...Option,
) *OrderApplicationService {
	s := &OrderApplicationService{
		orderRepo:         orderRepo,
		catalog:           catalog,
		materializer:      materializer,
		publisher:         publisher,
		policy:            policy,
		metrics:           m,
		tracer:            tracer,
		now:               func() time.Time { return time.Now().UTC() },
		newCode:           NewOrderCode,
		maxCodeAttempts:   5,
		sweepBatchSize:    500,
		processingTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	return s
}

// NewOrderCode 生成形如 ORD-20260501-4F3A9C1B2D 的订单号
func NewOrderCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:10]
	return "ORD-" + now.UTC().Format("20060102") + "-" + suffix
}

// CreateFromCart 基于购物车快照创建 pending 订单
func (s *OrderApplicationService) CreateFromCart(ctx context.Context, req *CreateOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateFromCart")
	defer span.End()

	processingCtx, cancel := context.WithTimeout(ctx, s.processingTimeout)
	defer cancel()

	orderCtx := &saga.OrderContext{
		Ctx:             processingCtx,
		Tracer:          s.tracer,
		Now:             s.now(),
		Request:         req.toCheckout(),
		Repo:            s.orderRepo,
		Catalog:         s.catalog,
		Policy:          s.policy,
		Publisher:       s.publisher,
		NewCode:         s.newCode,
		MaxCodeAttempts: s.maxCodeAttempts,
	}

	if err := s.buildChain().Handle(orderCtx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order creation failed")
		logger.Ctx(ctx).Warn().Err(err).Str("buyer_id", req.BuyerID).Str("seller_id", req.SellerID).Msg("Order creation rejected")
		return nil, err
	}

	s.metrics.OrdersCreated.Inc()
	order := orderCtx.Order
	span.SetAttributes(attribute.String("order.code", order.Code), attribute.Int64("order.total", order.Totals.Total))
	logger.Ctx(ctx).Info().
		Str("order_code", order.Code).
		Int64("total", order.Totals.Total).
		Time("expires_at", order.ExpiresAt).
		Msg("Order created and pending")
	return order, nil
}

func (s *OrderApplicationService) buildChain() saga.Handler {
	chain := new(saga.ValidateCartHandler)
	chain.
		SetNext(new(saga.SnapshotHandler)).
		SetNext(new(saga.CreateOrderHandler)).
		SetNext(new(saga.NotificationHandler))
	return chain
}

// ConfirmOrder 账本扣款成功后调用：pending(未过期) → confirmed
func (s *OrderApplicationService) ConfirmOrder(ctx context.Context, code string) (*domain.Order, error) {
	return s.transition(ctx, "app.ConfirmOrder", code, domain.StatusConfirmed, "")
}

// CancelOrder pending/confirmed → cancelled。已付款的订单支付轴转为 refunded。
func (s *OrderApplicationService) CancelOrder(ctx context.Context, code, reason string) (*domain.Order, error) {
	return s.transition(ctx, "app.CancelOrder", code, domain.StatusCancelled, reason)
}

// RefundOrder completed → refunded
func (s *OrderApplicationService) RefundOrder(ctx context.Context, code string) (*domain.Order, error) {
	return s.transition(ctx, "app.RefundOrder", code, domain.StatusRefunded, "")
}

// CompleteOrder confirmed → completed（或未过期的 pending 直接完成），然后为每个订单行生成待评价记录。
// 对已完成的订单重复调用会再次执行幂等的生成步骤并返回成功，因此生成失败时调用方可以直接重试。
func (s *OrderApplicationService) CompleteOrder(ctx context.Context, code string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CompleteOrder", trace.WithAttributes(attribute.String("order.code", code)))
	defer span.End()

	order, err := s.transitionIn(ctx, code, domain.StatusCompleted, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete order failed")
		return nil, err
	}

	created, err := s.materializer.Materialize(ctx, order)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pending review materialization failed")
		logger.Ctx(ctx).Error().Err(err).Str("order_code", code).Msg("Order completed but pending reviews were not materialized; retry CompleteOrder")
		return nil, errors.Wrapf(err, "materialize pending reviews for order %s", code)
	}

	s.metrics.PendingMaterialize.Add(float64(created))
	span.SetAttributes(attribute.Int("pending_reviews.created", created))
	logger.Ctx(ctx).Info().Str("order_code", code).Int("pending_reviews_created", created).Msg("Order completed")
	return order, nil
}

// ReservePayment 账本预留了余额：仅更新支付轴
func (s *OrderApplicationService) ReservePayment(ctx context.Context, code string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.ReservePayment", trace.WithAttributes(attribute.String("order.code", code)))
	defer span.End()

	ok, err := s.orderRepo.ReservePayment(ctx, code, s.now())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	order, err := s.orderRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !ok && order.PaymentStatus != domain.PaymentReserved {
		return nil, errs.Conflict("order %s cannot reserve payment in status %s/%s", code, order.Status, order.PaymentStatus)
	}
	return order, nil
}

func (s *OrderApplicationService) transition(ctx context.Context, spanName, code string, to domain.Status, reason string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, spanName, trace.WithAttributes(attribute.String("order.code", code)))
	defer span.End()

	order, err := s.transitionIn(ctx, code, to, reason)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return order, nil
}

// transitionIn 执行一次条件迁移。
// 条件不满足时重新读取订单判断原因：已处于目标状态视为幂等成功；过期的 pending 顺手取消；其余情况返回冲突。
func (s *OrderApplicationService) transitionIn(ctx context.Context, code string, to domain.Status, reason string) (*domain.Order, error) {
	now := s.now()
	ok, err := s.orderRepo.Transition(ctx, code, to, now, reason)
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if ok {
		s.metrics.OrderTransitions.WithLabelValues(string(to)).Inc()
		s.publish(ctx, order, now)
		return order, nil
	}

	if order.Status == to {
		logger.Ctx(ctx).Debug().Str("order_code", code).Str("status", string(to)).Msg("Order already in target status")
		return order, nil
	}
	if order.IsExpired(now) {
		if _, err := s.expire(ctx, order, now); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("order_code", code).Msg("Failed to cancel expired order")
		}
		return nil, errs.Conflict("order %s reservation expired, order is cancelled", code)
	}
	return nil, errs.Conflict("order %s cannot move from %s to %s", code, order.Status, to)
}

// expire 条件取消一张过期订单，未抢到时是静默的 no-op
func (s *OrderApplicationService) expire(ctx context.Context, order *domain.Order, now time.Time) (bool, error) {
	ok, err := s.orderRepo.ExpirePending(ctx, order.Code, now)
	if err != nil || !ok {
		return false, err
	}
	s.metrics.OrderTransitions.WithLabelValues(string(domain.StatusCancelled)).Inc()
	if err := order.Transition(domain.StatusCancelled, now, "reservation expired"); err == nil {
		s.publish(ctx, order, now)
	}
	return true, nil
}

func (s *OrderApplicationService) publish(ctx context.Context, order *domain.Order, at time.Time) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, domain.NewOrderEvent(order, at)); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_code", order.Code).Str("status", string(order.Status)).Msg("Failed to publish order event")
	}
}

// SweepExpiredOrders 取消所有已过期的 pending 订单，返回本次成功取消的数量。
// 单个订单失败或被并发请求抢先不会中断扫描。
func (s *OrderApplicationService) SweepExpiredOrders(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "app.SweepExpiredOrders")
	defer span.End()

	start := time.Now()
	now := s.now()
	cancelled := 0
	// 失败的订单仍是 pending，会继续出现在查询结果里；多取同样数量并跳过它们
	failed := make(map[string]struct{})

	for {
		limit := s.sweepBatchSize + len(failed)
		batch, err := s.orderRepo.FindExpiredPending(ctx, now, limit)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "find expired orders failed")
			s.metrics.ObserveSweep(start, cancelled)
			return cancelled, err
		}

		attempted := 0
		for _, order := range batch {
			if _, skip := failed[order.Code]; skip {
				continue
			}
			if ctx.Err() != nil {
				s.metrics.ObserveSweep(start, cancelled)
				return cancelled, ctx.Err()
			}
			attempted++
			ok, err := s.expire(ctx, order, now)
			if err != nil {
				failed[order.Code] = struct{}{}
				logger.Ctx(ctx).Error().Err(err).Str("order_code", order.Code).Msg("Failed to expire order, continuing sweep")
				continue
			}
			if ok {
				cancelled++
			}
		}

		// 批次未满说明已经扫完；没有新的候选则说明只剩失败的订单
		if len(batch) < limit || attempted == 0 {
			break
		}
	}

	s.metrics.ObserveSweep(start, cancelled)
	span.SetAttributes(attribute.Int("orders.cancelled", cancelled), attribute.Int("orders.failed", len(failed)))
	if cancelled > 0 || len(failed) > 0 {
		logger.Ctx(ctx).Info().Int("cancelled", cancelled).Int("failed", len(failed)).Msg("Expired orders swept")
	}
	return cancelled, nil
}

// GetOrder 按订单号读取
func (s *OrderApplicationService) GetOrder(ctx context.Context, code string) (*domain.Order, error) {
	return s.orderRepo.FindByCode(ctx, code)
}

// ActiveOrdersForSeller 卖家当前需要处理的订单（未过期的 pending 与 completed）
func (s *OrderApplicationService) ActiveOrdersForSeller(ctx context.Context, sellerID string, page pagination.Pagination) (pagination.Result[*domain.Order], error) {
	if sellerID == "" {
		return pagination.Result[*domain.Order]{}, errs.Validation("seller id is required")
	}
	return s.orderRepo.ActiveForSeller(ctx, sellerID, s.now(), page)
}

// BuyerOrderHistory 买家的订单历史，最新在前
func (s *OrderApplicationService) BuyerOrderHistory(ctx context.Context, buyerID string, page pagination.Pagination) (pagination.Result[*domain.Order], error) {
	if buyerID == "" {
		return pagination.Result[*domain.Order]{}, errs.Validation("buyer id is required")
	}
	return s.orderRepo.BuyerHistory(ctx, buyerID, page)
}

// FindExpiredPending 返回等待扫描的过期订单
func (s *OrderApplicationService) FindExpiredPending(ctx context.Context, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = s.sweepBatchSize
	}
	return s.orderRepo.FindExpiredPending(ctx, s.now(), limit)
}
