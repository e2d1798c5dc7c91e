package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketplace/internal/pkg/logger"
	"marketplace/internal/service/catalog/domain"
)

// CatalogService 管理卖家与商品，并向其他上下文提供价格快照、卖家名称和统计写入
type CatalogService struct {
	repo   domain.Repository
	tracer trace.Tracer
	now    func() time.Time
}

func NewCatalogService(repo domain.Repository, tracer trace.Tracer) *CatalogService {
	return &CatalogService{
		repo:   repo,
		tracer: tracer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *CatalogService) RegisterSeller(ctx context.Context, id, displayName string) (*domain.Seller, error) {
	seller, err := domain.NewSeller(id, displayName, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateSeller(ctx, seller); err != nil {
		return nil, err
	}
	return seller, nil
}

func (s *CatalogService) ListProduct(ctx context.Context, id, sellerID, title string, price int64) (*domain.Product, error) {
	if _, err := s.repo.FindSeller(ctx, sellerID); err != nil {
		return nil, err
	}
	product, err := domain.NewProduct(id, sellerID, title, price, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// UpdatePrice 修改实时价格，已创建的订单不受影响
func (s *CatalogService) UpdatePrice(ctx context.Context, productID string, price int64) error {
	ctx, span := s.tracer.Start(ctx, "catalog.UpdatePrice", trace.WithAttributes(attribute.String("product.id", productID)))
	defer span.End()

	if err := domain.ValidatePrice(price); err != nil {
		return err
	}
	if err := s.repo.UpdatePrice(ctx, productID, price, s.now()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update price failed")
		return err
	}
	logger.Ctx(ctx).Info().Str("product_id", productID).Int64("price", price).Msg("Product price updated")
	return nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.FindProduct(ctx, id)
}

func (s *CatalogService) GetSeller(ctx context.Context, id string) (*domain.Seller, error) {
	return s.repo.FindSeller(ctx, id)
}

// Products 批量读取商品当前状态，不存在的 id 不出现在结果中
func (s *CatalogService) Products(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.Products")
	defer span.End()

	products, err := s.repo.FindProducts(ctx, dedupe(ids))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := make(map[string]*domain.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (s *CatalogService) DisplayNames(ctx context.Context, sellerIDs []string) (map[string]string, error) {
	return s.repo.DisplayNames(ctx, dedupe(sellerIDs))
}

func (s *CatalogService) UpdateProductRating(ctx context.Context, productID string, rating domain.RatingSummary) error {
	return s.repo.UpdateProductRating(ctx, productID, rating, s.now())
}

func (s *CatalogService) UpdateSellerRating(ctx context.Context, sellerID string, rating domain.RatingSummary) error {
	return s.repo.UpdateSellerRating(ctx, sellerID, rating, s.now())
}

func (s *CatalogService) UpdateSellerCredit(ctx context.Context, sellerID string, credit domain.CreditSummary) error {
	return s.repo.UpdateSellerCredit(ctx, sellerID, credit, s.now())
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
