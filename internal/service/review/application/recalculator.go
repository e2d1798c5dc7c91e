package application

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/metrics"
	"marketplace/internal/service/review/domain"
	"marketplace/internal/service/review/domain/port"
)

const (
	targetProduct      = "product"
	targetSeller       = "seller"
	targetSellerCredit = "seller_credit"
)

// Recalculator 从评价与信用记录重新计算派生统计。
// 每次计算都是对源数据的完整扫描，重复执行结果相同，可以在任意时刻重建。
type Recalculator struct {
	reviews     domain.ReviewRepository
	credits     domain.CreditRepository
	writer      port.StatsWriter
	cache       port.StatsCache
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	concurrency int
	opts        options
}

// NewRecalculator cache 可以为 nil
func NewRecalculator(
	reviews domain.ReviewRepository,
	credits domain.CreditRepository,
	writer port.StatsWriter,
	cache port.StatsCache,
	m *metrics.Metrics,
	tracer trace.Tracer,
	concurrency int,
	opts ...Option,
) *Recalculator {
	if concurrency <= 0 {
		concurrency = 4
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Recalculator{
		reviews:     reviews,
		credits:     credits,
		writer:      writer,
		cache:       cache,
		metrics:     m,
		tracer:      tracer,
		concurrency: concurrency,
		opts:        buildOptions(opts),
	}
}

// RecalculateProduct 重算商品评分并写回商品目录与缓存
func (r *Recalculator) RecalculateProduct(ctx context.Context, productID string) (domain.RatingStats, error) {
	ctx, span := r.tracer.Start(ctx, "recalc.Product", trace.WithAttributes(attribute.String("product.id", productID)))
	defer span.End()

	stats, err := r.productStats(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return stats, err
	}
	if err := r.writer.WriteProductRating(ctx, productID, stats); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write product rating failed")
		return stats, err
	}
	r.cacheProduct(ctx, productID, stats)
	return stats, nil
}

// RecalculateSeller 重算店铺评价的评分
func (r *Recalculator) RecalculateSeller(ctx context.Context, sellerID string) (domain.RatingStats, error) {
	ctx, span := r.tracer.Start(ctx, "recalc.Seller", trace.WithAttributes(attribute.String("seller.id", sellerID)))
	defer span.End()

	readAt := r.opts.now()
	dist, err := r.reviews.SellerDistribution(ctx, sellerID)
	if err != nil {
		span.RecordError(err)
		return domain.RatingStats{}, err
	}
	stats := domain.NewRatingStats(dist, readAt)
	if err := r.writer.WriteSellerRating(ctx, sellerID, stats); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write seller rating failed")
		return stats, err
	}
	return stats, nil
}

// RecalculateSellerCredit 重算店铺信用
func (r *Recalculator) RecalculateSellerCredit(ctx context.Context, sellerID string) (domain.CreditStats, error) {
	ctx, span := r.tracer.Start(ctx, "recalc.SellerCredit", trace.WithAttributes(attribute.String("seller.id", sellerID)))
	defer span.End()

	stats, err := r.creditStats(ctx, sellerID)
	if err != nil {
		span.RecordError(err)
		return stats, err
	}
	if err := r.writer.WriteSellerCredit(ctx, sellerID, stats); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write seller credit failed")
		return stats, err
	}
	r.cacheCredit(ctx, sellerID, stats)
	return stats, nil
}

// GetProductRatingStats 先读缓存，未命中时从评价记录计算
func (r *Recalculator) GetProductRatingStats(ctx context.Context, productID string) (domain.RatingStats, error) {
	if r.cache != nil {
		stats, ok, err := r.cache.ProductRating(ctx, productID)
		if err == nil && ok {
			return stats, nil
		}
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("product_id", productID).Msg("Stats cache read failed, computing from source")
		}
	}
	stats, err := r.productStats(ctx, productID)
	if err != nil {
		return stats, err
	}
	r.cacheProduct(ctx, productID, stats)
	return stats, nil
}

func (r *Recalculator) GetStoreCreditStats(ctx context.Context, sellerID string) (domain.CreditStats, error) {
	if r.cache != nil {
		stats, ok, err := r.cache.SellerCredit(ctx, sellerID)
		if err == nil && ok {
			return stats, nil
		}
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("seller_id", sellerID).Msg("Stats cache read failed, computing from source")
		}
	}
	stats, err := r.creditStats(ctx, sellerID)
	if err != nil {
		return stats, err
	}
	r.cacheCredit(ctx, sellerID, stats)
	return stats, nil
}

// RebuildAll 全量重建所有出现过评价或信用记录的商品与卖家。
// 单个目标失败只计数，不影响其余目标。
func (r *Recalculator) RebuildAll(ctx context.Context) (RebuildReport, error) {
	ctx, span := r.tracer.Start(ctx, "recalc.RebuildAll")
	defer span.End()

	var report RebuildReport
	productIDs, err := r.reviews.ReviewedProductIDs(ctx)
	if err != nil {
		span.RecordError(err)
		return report, err
	}
	reviewedSellers, err := r.reviews.ReviewedSellerIDs(ctx)
	if err != nil {
		span.RecordError(err)
		return report, err
	}
	creditedSellers, err := r.credits.CreditedSellerIDs(ctx)
	if err != nil {
		span.RecordError(err)
		return report, err
	}

	var failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)

	run := func(target, id string, fn func(context.Context, string) error) {
		g.Go(func() error {
			if err := fn(ctx, id); err != nil {
				failed.Add(1)
				r.metrics.RecalcFailures.WithLabelValues(target).Inc()
				logger.Ctx(ctx).Error().Err(err).Str("target", target).Str("id", id).Msg("Rebuild target failed")
			}
			return nil
		})
	}

	for _, id := range productIDs {
		run(targetProduct, id, func(ctx context.Context, id string) error {
			_, err := r.RecalculateProduct(ctx, id)
			return err
		})
	}
	for _, id := range reviewedSellers {
		run(targetSeller, id, func(ctx context.Context, id string) error {
			_, err := r.RecalculateSeller(ctx, id)
			return err
		})
	}
	for _, id := range creditedSellers {
		run(targetSellerCredit, id, func(ctx context.Context, id string) error {
			_, err := r.RecalculateSellerCredit(ctx, id)
			return err
		})
	}
	_ = g.Wait()

	report.Products = len(productIDs)
	report.Sellers = len(union(reviewedSellers, creditedSellers))
	report.Failed = int(failed.Load())
	span.SetAttributes(
		attribute.Int("rebuild.products", report.Products),
		attribute.Int("rebuild.sellers", report.Sellers),
		attribute.Int("rebuild.failed", report.Failed),
	)
	logger.Ctx(ctx).Info().
		Int("products", report.Products).
		Int("sellers", report.Sellers).
		Int("failed", report.Failed).
		Msg("Aggregate rebuild finished")
	return report, ctx.Err()
}

// productStats 与 creditStats 在读取之前取时间戳作为版本：
// 读到旧数据的慢计算版本也更旧，缓存的比较写入不会让它覆盖新结果
func (r *Recalculator) productStats(ctx context.Context, productID string) (domain.RatingStats, error) {
	readAt := r.opts.now()
	dist, err := r.reviews.ProductDistribution(ctx, productID)
	if err != nil {
		return domain.RatingStats{}, err
	}
	return domain.NewRatingStats(dist, readAt), nil
}

func (r *Recalculator) creditStats(ctx context.Context, sellerID string) (domain.CreditStats, error) {
	readAt := r.opts.now()
	positive, negative, err := r.credits.CountForSeller(ctx, sellerID)
	if err != nil {
		return domain.CreditStats{}, err
	}
	return domain.NewCreditStats(positive, negative, readAt), nil
}

func (r *Recalculator) cacheProduct(ctx context.Context, productID string, stats domain.RatingStats) {
	if r.cache == nil {
		return
	}
	if err := r.cache.StoreProductRating(ctx, productID, stats); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("product_id", productID).Msg("Failed to cache product rating")
	}
}

func (r *Recalculator) cacheCredit(ctx context.Context, sellerID string, stats domain.CreditStats) {
	if r.cache == nil {
		return
	}
	if err := r.cache.StoreSellerCredit(ctx, sellerID, stats); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("seller_id", sellerID).Msg("Failed to cache seller credit")
	}
}

// refresh 是写路径上的尽力而为重算：失败只记录日志和指标，不影响已提交的写入
func (r *Recalculator) refresh(ctx context.Context, target, id string) {
	if r == nil {
		return
	}
	var err error
	switch target {
	case targetProduct:
		_, err = r.RecalculateProduct(ctx, id)
	case targetSeller:
		_, err = r.RecalculateSeller(ctx, id)
	case targetSellerCredit:
		_, err = r.RecalculateSellerCredit(ctx, id)
	}
	if err != nil {
		r.metrics.RecalcFailures.WithLabelValues(target).Inc()
		logger.Ctx(ctx).Error().Err(err).Str("target", target).Str("id", id).Msg("Aggregate recalculation failed, will heal on next rebuild")
	}
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
