package application

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketplace/internal/pkg/errs"
	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/metrics"
	"marketplace/internal/service/review/domain"
)

// CreditService 管理店铺信用。每对 (买家, 卖家) 只有一条当前信号，可以被覆盖。
type CreditService struct {
	credits domain.CreditRepository
	gate    *PurchaseGate
	recalc  *Recalculator
	metrics *metrics.Metrics
	tracer  trace.Tracer
	opts    options
}

func NewCreditService(
	credits domain.CreditRepository,
	gate *PurchaseGate,
	recalc *Recalculator,
	m *metrics.Metrics,
	tracer trace.Tracer,
	opts ...Option,
) *CreditService {
	if m == nil {
		m = metrics.New(nil)
	}
	return &CreditService{
		credits: credits,
		gate:    gate,
		recalc:  recalc,
		metrics: m,
		tracer:  tracer,
		opts:    buildOptions(opts),
	}
}

// SubmitStoreCredit 创建或翻转买家对卖家的信用信号
func (s *CreditService) SubmitStoreCredit(ctx context.Context, buyerID, sellerID, creditType string) (*domain.StoreCredit, error) {
	ctx, span := s.tracer.Start(ctx, "credit.SubmitStoreCredit", trace.WithAttributes(
		attribute.String("seller.id", sellerID),
		attribute.String("credit.type", creditType),
	))
	defer span.End()

	ct, err := domain.ParseCreditType(creditType)
	if err != nil {
		return nil, err
	}
	credit, err := domain.NewStoreCredit(s.opts.newID(), buyerID, sellerID, ct, s.opts.now())
	if err != nil {
		return nil, err
	}
	if err := s.gate.Require(ctx, buyerID, sellerID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	saved, err := s.credits.Upsert(ctx, credit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert store credit failed")
		return nil, err
	}

	s.metrics.CreditsSubmitted.WithLabelValues(string(ct)).Inc()
	s.recalc.refresh(ctx, targetSellerCredit, sellerID)
	logger.Ctx(ctx).Info().Str("seller_id", sellerID).Str("credit_type", string(ct)).Msg("Store credit saved")
	return saved, nil
}

// GetCredit 买家对卖家当前的信号
func (s *CreditService) GetCredit(ctx context.Context, buyerID, sellerID string) (*domain.StoreCredit, error) {
	return s.credits.Find(ctx, buyerID, sellerID)
}

// GetCreditStats 直接从信用记录统计，不经过缓存
func (s *CreditService) GetCreditStats(ctx context.Context, sellerID string) (domain.CreditStats, error) {
	if sellerID == "" {
		return domain.CreditStats{}, errs.Validation("seller id is required")
	}
	positive, negative, err := s.credits.CountForSeller(ctx, sellerID)
	if err != nil {
		return domain.CreditStats{}, err
	}
	return domain.NewCreditStats(positive, negative, s.opts.now()), nil
}
