package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketplace/internal/pkg/errs"
	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/metrics"
	"marketplace/internal/service/review/domain"
	"marketplace/internal/service/review/domain/port"
)

// PendingReviewService 管理待评价记录的生成、查询、提醒与过期清理
type PendingReviewService struct {
	repo       domain.PendingReviewRepository
	reviews    domain.ReviewRepository
	directory  port.SellerDirectory
	policy     port.ReviewWindowPolicy
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	sweepBatch int
	opts       options
}

func NewPendingReviewService(
	repo domain.PendingReviewRepository,
	reviews domain.ReviewRepository,
	directory port.SellerDirectory,
	policy port.ReviewWindowPolicy,
	m *metrics.Metrics,
	tracer trace.Tracer,
	sweepBatch int,
	opts ...Option,
) *PendingReviewService {
	if sweepBatch <= 0 {
		sweepBatch = 500
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &PendingReviewService{
		repo:       repo,
		reviews:    reviews,
		directory:  directory,
		policy:     policy,
		metrics:    m,
		tracer:     tracer,
		sweepBatch: sweepBatch,
		opts:       buildOptions(opts),
	}
}

// Materialize 为已完成订单的每一行生成待评价，重复调用只会插入缺失的行。
// 已经评价过的行不再生成；有效期从订单完成时刻起算，因此重试不会延长窗口。
func (s *PendingReviewService) Materialize(ctx context.Context, order domain.CompletedOrder) (int, error) {
	ctx, span := s.tracer.Start(ctx, "pending.Materialize", trace.WithAttributes(attribute.String("order.code", order.Code)))
	defer span.End()

	start := order.CompletedAt
	if start.IsZero() {
		start = s.opts.now()
	}
	window := s.policy.ReviewWindow(ctx, order.SellerID, order.ItemCount, order.Total)

	items, err := domain.NewPendingReviews(order, window, start, s.opts.newID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	lines := len(items)
	if items, err = s.withoutReviewed(ctx, items); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "check reviewed lines failed")
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}
	created, err := s.repo.CreateMany(ctx, items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert pending reviews failed")
		return 0, err
	}

	span.SetAttributes(attribute.Int("pending.lines", lines), attribute.Int("pending.created", created))
	logger.Ctx(ctx).Debug().
		Str("order_code", order.Code).
		Int("lines", lines).
		Int("created", created).
		Msg("Pending reviews materialized")
	return created, nil
}

// withoutReviewed 去掉已经有评价的行。评价写入后待评价即被删除，唯一键无法阻止重试把它重新插入。
func (s *PendingReviewService) withoutReviewed(ctx context.Context, items []*domain.PendingReview) ([]*domain.PendingReview, error) {
	if s.reviews == nil {
		return items, nil
	}
	keys := make([]string, 0, len(items))
	for _, p := range items {
		keys = append(keys, domain.ProductDedupeKey(p.OrderCode, p.BuyerID, p.ProductID))
	}
	reviewed, err := s.reviews.ExistingDedupeKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for i, p := range items {
		if !reviewed[keys[i]] {
			out = append(out, p)
		}
	}
	return out, nil
}

// FindPendingForBuyer 返回买家未过期的待评价，最新在前，并解析卖家名称
func (s *PendingReviewService) FindPendingForBuyer(ctx context.Context, buyerID string) ([]*domain.PendingReview, error) {
	if buyerID == "" {
		return nil, errs.Validation("buyer id is required")
	}
	items, err := s.repo.FindForBuyer(ctx, buyerID, s.opts.now())
	if err != nil {
		return nil, err
	}
	if len(items) == 0 || s.directory == nil {
		return items, nil
	}

	sellerIDs := make([]string, 0, len(items))
	for _, p := range items {
		sellerIDs = append(sellerIDs, p.SellerID)
	}
	names, err := s.directory.DisplayNames(ctx, sellerIDs)
	if err != nil {
		// 名称只用于展示，查不到时仍返回列表
		logger.Ctx(ctx).Warn().Err(err).Str("buyer_id", buyerID).Msg("Failed to resolve seller display names")
		return items, nil
	}
	for _, p := range items {
		p.SellerDisplayName = names[p.SellerID]
	}
	return items, nil
}

// HasPendingReviews 登录后是否需要提示买家去评价
func (s *PendingReviewService) HasPendingReviews(ctx context.Context, buyerID string) (bool, error) {
	if buyerID == "" {
		return false, errs.Validation("buyer id is required")
	}
	return s.repo.HasForBuyer(ctx, buyerID, s.opts.now())
}

// SweepExpired 分批删除过期的待评价，返回删除总数
func (s *PendingReviewService) SweepExpired(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "pending.SweepExpired")
	defer span.End()

	now := s.opts.now()
	var total int64
	for {
		n, err := s.repo.DeleteExpired(ctx, now, s.sweepBatch)
		if err != nil {
			span.RecordError(err)
			s.metrics.PendingExpired.Add(float64(total))
			return total, err
		}
		total += n
		if n < int64(s.sweepBatch) || ctx.Err() != nil {
			break
		}
	}

	s.metrics.PendingExpired.Add(float64(total))
	span.SetAttributes(attribute.Int64("pending.deleted", total))
	if total > 0 {
		logger.Ctx(ctx).Info().Int64("deleted", total).Msg("Expired pending reviews swept")
	}
	return total, ctx.Err()
}

// DueReminders 返回需要提醒的待评价：从未提醒过，或距上次提醒已超过 interval
func (s *PendingReviewService) DueReminders(ctx context.Context, interval time.Duration, limit int) ([]*domain.PendingReview, error) {
	if interval <= 0 {
		return nil, errs.Validation("reminder interval must be positive")
	}
	if limit <= 0 {
		limit = s.sweepBatch
	}
	now := s.opts.now()
	return s.repo.ListDueReminders(ctx, now, now.Add(-interval), limit)
}

// RemindDue 投递一批到期提醒并递增提醒计数。通知失败时不计数，下一轮会再次选中。
func (s *PendingReviewService) RemindDue(ctx context.Context, notifier port.ReminderNotifier, interval time.Duration, limit int) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "pending.RemindDue")
	defer span.End()

	due, err := s.DueReminders(ctx, interval, limit)
	if err != nil || len(due) == 0 {
		return 0, err
	}
	if err := notifier.NotifyPending(ctx, due); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "notify pending reviews failed")
		return 0, err
	}

	ids := make([]string, 0, len(due))
	for _, p := range due {
		ids = append(ids, p.ID)
	}
	n, err := s.MarkReminded(ctx, ids)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("pending.reminded", n))
	logger.Ctx(ctx).Info().Int64("reminded", n).Msg("Pending review reminders sent")
	return n, nil
}

// MarkReminded 通知发出后调用，递增提醒计数
func (s *PendingReviewService) MarkReminded(ctx context.Context, ids []string) (int64, error) {
	return s.repo.MarkReminded(ctx, ids, s.opts.now())
}
