package application

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketplace/internal/pkg/errs"
	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/metrics"
	"marketplace/internal/pkg/pagination"
	"marketplace/internal/service/review/domain"
	"marketplace/internal/service/review/domain/port"
)

// ReviewService 把待评价转换为永久评价，并提供店铺评价与评价查询。
// 重复评价的最终防线是 reviews.dedupe_key 唯一索引，提交前的存在性检查只是提前返回。
type ReviewService struct {
	pending domain.PendingReviewRepository
	reviews domain.ReviewRepository
	gate    *PurchaseGate
	history port.PurchaseHistory
	recalc  *Recalculator
	metrics *metrics.Metrics
	tracer  trace.Tracer
	opts    options
}

func NewReviewService(
	pending domain.PendingReviewRepository,
	reviews domain.ReviewRepository,
	gate *PurchaseGate,
	history port.PurchaseHistory,
	recalc *Recalculator,
	m *metrics.Metrics,
	tracer trace.Tracer,
	opts ...Option,
) *ReviewService {
	if m == nil {
		m = metrics.New(nil)
	}
	return &ReviewService{
		pending: pending,
		reviews: reviews,
		gate:    gate,
		history: history,
		recalc:  recalc,
		metrics: m,
		tracer:  tracer,
		opts:    buildOptions(opts),
	}
}

// SubmitProductReview 消费一条待评价并生成商品评价
func (s *ReviewService) SubmitProductReview(ctx context.Context, req ProductReviewRequest) (*domain.Review, error) {
	ctx, span := s.tracer.Start(ctx, "review.SubmitProductReview", trace.WithAttributes(
		attribute.String("order.code", req.OrderCode),
		attribute.String("product.id", req.ProductID),
	))
	defer span.End()

	if req.OrderCode == "" || req.BuyerID == "" {
		return nil, errs.Validation("order code and buyer id are required")
	}
	if _, err := domain.ValidateContent(req.Rating, req.Comment); err != nil {
		return nil, err
	}

	now := s.opts.now()
	pending, err := s.findPending(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	key := domain.ProductDedupeKey(pending.OrderCode, pending.BuyerID, pending.ProductID)
	if err := s.ensureNotReviewed(ctx, key, domain.ReviewTypeProduct); err != nil {
		s.dropConsumed(ctx, pending, err)
		return nil, err
	}

	review, err := domain.NewProductReview(s.opts.newID(), pending, req.Rating, req.Comment, req.Buyer, now)
	if err != nil {
		return nil, err
	}
	if err := s.create(ctx, review); err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.dropConsumed(ctx, pending, err)
		return nil, err
	}

	if err := s.pending.Delete(ctx, pending.ID); err != nil {
		// 评价已经写入；残留的待评价再次提交会得到 Duplicate，并最终过期清理
		logger.Ctx(ctx).Error().Err(err).Str("pending_id", pending.ID).Msg("Failed to delete consumed pending review")
	}
	s.recalc.refresh(ctx, targetProduct, review.ProductID)

	logger.Ctx(ctx).Info().
		Str("review_id", review.ID).
		Str("order_code", review.OrderCode).
		Str("product_id", review.ProductID).
		Int("rating", review.Rating).
		Msg("Product review submitted")
	return review, nil
}

// findPending 定位 (订单, 买家, 商品) 的待评价。
// 待评价不存在但评价已存在时返回 Duplicate，让重复提交统一表现为“已评价”。
func (s *ReviewService) findPending(ctx context.Context, req ProductReviewRequest) (*domain.PendingReview, error) {
	items, err := s.pending.FindForOrder(ctx, req.OrderCode, req.BuyerID, s.opts.now())
	if err != nil {
		return nil, err
	}

	if req.ProductID == "" {
		switch len(items) {
		case 0:
			return nil, errs.NotFound("no pending review")
		case 1:
			return items[0], nil
		default:
			return nil, errs.Validation("order %s has %d products awaiting review, product id is required", req.OrderCode, len(items))
		}
	}

	for _, p := range items {
		if p.ProductID == req.ProductID {
			return p, nil
		}
	}
	exists, err := s.reviews.ExistsByDedupeKey(ctx, domain.ProductDedupeKey(req.OrderCode, req.BuyerID, req.ProductID))
	if err != nil {
		return nil, err
	}
	if exists {
		s.metrics.ReviewsDuplicate.WithLabelValues(string(domain.ReviewTypeProduct)).Inc()
		return nil, errs.Duplicate("already reviewed")
	}
	return nil, errs.NotFound("no pending review")
}

// dropConsumed 评价已存在时，对应的待评价只是残留，删除后不再出现在买家列表里
func (s *ReviewService) dropConsumed(ctx context.Context, pending *domain.PendingReview, err error) {
	if !errors.Is(err, errs.ErrDuplicate) {
		return
	}
	if err := s.pending.Delete(ctx, pending.ID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("pending_id", pending.ID).Msg("Failed to delete leftover pending review")
	}
}

// SubmitStoreReview 店铺评价只要求买家在该店铺有已完成订单
func (s *ReviewService) SubmitStoreReview(ctx context.Context, req StoreReviewRequest) (*domain.Review, error) {
	ctx, span := s.tracer.Start(ctx, "review.SubmitStoreReview", trace.WithAttributes(attribute.String("seller.id", req.SellerID)))
	defer span.End()

	review, err := domain.NewSellerReview(s.opts.newID(), req.BuyerID, req.SellerID, req.Rating, req.Comment, req.Buyer, s.opts.now())
	if err != nil {
		return nil, err
	}
	if req.BuyerID == req.SellerID {
		return nil, errs.Validation("sellers cannot review their own store")
	}
	if err := s.gate.Require(ctx, req.BuyerID, req.SellerID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := s.ensureNotReviewed(ctx, review.DedupeKey, domain.ReviewTypeSeller); err != nil {
		return nil, err
	}
	if err := s.create(ctx, review); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.recalc.refresh(ctx, targetSeller, review.SellerID)
	logger.Ctx(ctx).Info().Str("review_id", review.ID).Str("seller_id", review.SellerID).Int("rating", review.Rating).Msg("Store review submitted")
	return review, nil
}

func (s *ReviewService) ensureNotReviewed(ctx context.Context, key string, typ domain.ReviewType) error {
	exists, err := s.reviews.ExistsByDedupeKey(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		s.metrics.ReviewsDuplicate.WithLabelValues(string(typ)).Inc()
		return errs.Duplicate("already reviewed")
	}
	return nil
}

func (s *ReviewService) create(ctx context.Context, review *domain.Review) error {
	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, errs.ErrDuplicate) {
			s.metrics.ReviewsDuplicate.WithLabelValues(string(review.Type)).Inc()
		}
		return err
	}
	s.metrics.ReviewsSubmitted.WithLabelValues(string(review.Type)).Inc()
	return nil
}

// GetProductReviews 商品的有效评价，附带买家在该店铺的已完成订单数
func (s *ReviewService) GetProductReviews(ctx context.Context, productID string, req ListReviewsRequest) (pagination.Result[*domain.Review], error) {
	if productID == "" {
		return pagination.Result[*domain.Review]{}, errs.Validation("product id is required")
	}
	q, err := req.toQuery()
	if err != nil {
		return pagination.Result[*domain.Review]{}, err
	}
	result, err := s.reviews.ListForProduct(ctx, productID, q)
	if err != nil {
		return result, err
	}
	s.enrich(ctx, result.Items)
	return result, nil
}

// GetSellerReviews 店铺评价列表
func (s *ReviewService) GetSellerReviews(ctx context.Context, sellerID string, req ListReviewsRequest) (pagination.Result[*domain.Review], error) {
	if sellerID == "" {
		return pagination.Result[*domain.Review]{}, errs.Validation("seller id is required")
	}
	q, err := req.toQuery()
	if err != nil {
		return pagination.Result[*domain.Review]{}, err
	}
	result, err := s.reviews.ListForSeller(ctx, sellerID, q)
	if err != nil {
		return result, err
	}
	s.enrich(ctx, result.Items)
	return result, nil
}

// enrich 在读取时计算购买次数，不落库
func (s *ReviewService) enrich(ctx context.Context, reviews []*domain.Review) {
	if s.history == nil || len(reviews) == 0 {
		return
	}
	bySeller := make(map[string][]string)
	for _, r := range reviews {
		bySeller[r.SellerID] = append(bySeller[r.SellerID], r.BuyerID)
	}
	counts := make(map[string]map[string]int64, len(bySeller))
	for sellerID, buyers := range bySeller {
		c, err := s.history.CountCompletedByBuyers(ctx, sellerID, buyers)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("seller_id", sellerID).Msg("Failed to load purchase counts for reviews")
			continue
		}
		counts[sellerID] = c
	}
	for _, r := range reviews {
		r.PurchaseCount = counts[r.SellerID][r.BuyerID]
	}
}

// SetReviewStatus 审核：隐藏或恢复一条评价，然后重算对应的统计
func (s *ReviewService) SetReviewStatus(ctx context.Context, reviewID, status string) (*domain.Review, error) {
	ctx, span := s.tracer.Start(ctx, "review.SetReviewStatus", trace.WithAttributes(attribute.String("review.id", reviewID)))
	defer span.End()

	st, err := domain.ParseReviewStatus(status)
	if err != nil {
		return nil, err
	}
	changed, err := s.reviews.SetStatus(ctx, reviewID, st, s.opts.now())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	review, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if changed {
		if review.Type == domain.ReviewTypeProduct {
			s.recalc.refresh(ctx, targetProduct, review.ProductID)
		} else {
			s.recalc.refresh(ctx, targetSeller, review.SellerID)
		}
		logger.Ctx(ctx).Info().Str("review_id", reviewID).Str("status", status).Msg("Review moderation status changed")
	}
	return review, nil
}
