package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"marketplace/internal/pkg/errs"
	"marketplace/internal/pkg/metrics"
	"marketplace/internal/pkg/policy"
	catalogapp "marketplace/internal/service/catalog/application"
	cataloginfra "marketplace/internal/service/catalog/infrastructure"
	orderapp "marketplace/internal/service/order/application"
	"marketplace/internal/service/order/domain"
	orderinfra "marketplace/internal/service/order/infrastructure"
	reviewapp "marketplace/internal/service/review/application"
	reviewinfra "marketplace/internal/service/review/infrastructure"
	reviewadapter "marketplace/internal/service/review/infrastructure/adapter"
	"marketplace/internal/testutil"
)

type stack struct {
	catalog *catalogapp.CatalogService
	orders  *orderapp.OrderApplicationService
	pending *reviewapp.PendingReviewService
	reviews *reviewapp.ReviewService
	credits *reviewapp.CreditService
}

// newStack 按 cmd/order-service 的方式装配三个上下文，共用一个内存库
func newStack(t *testing.T) *stack {
	t.Helper()
	models := append(append(cataloginfra.Models(), orderinfra.Models()...), reviewinfra.Models()...)
	db := testutil.NewDB(t, models...)
	tracer := noop.NewTracerProvider().Tracer("test")
	m := metrics.New(prometheus.NewRegistry())

	expiry, err := policy.NewExpiryPolicy(2*time.Minute, 30*24*time.Hour, "", "")
	require.NoError(t, err)

	catalog := catalogapp.NewCatalogService(cataloginfra.NewGormCatalogRepository(db), tracer)
	orderRepo := orderinfra.NewGormOrderRepository(db)
	reviewCatalog := reviewadapter.NewCatalogAdapter(catalog)
	history := reviewadapter.NewPurchaseHistoryAdapter(orderRepo)
	pendingRepo := reviewinfra.NewGormPendingReviewRepository(db)
	reviewRepo := reviewinfra.NewGormReviewRepository(db)
	creditRepo := reviewinfra.NewGormCreditRepository(db)

	gate := reviewapp.NewPurchaseGate(history)
	recalc := reviewapp.NewRecalculator(reviewRepo, creditRepo, reviewCatalog, nil, m, tracer, 2)
	pending := reviewapp.NewPendingReviewService(pendingRepo, reviewRepo, reviewCatalog, expiry, m, tracer, 100)

	s := &stack{
		catalog: catalog,
		pending: pending,
		reviews: reviewapp.NewReviewService(pendingRepo, reviewRepo, gate, history, recalc, m, tracer),
		credits: reviewapp.NewCreditService(creditRepo, gate, recalc, m, tracer),
		orders: orderapp.NewOrderApplicationService(orderRepo, NewCatalogAdapter(catalog),
			NewPendingReviewAdapter(pending), nil, expiry, m, tracer),
	}

	ctx := context.Background()
	_, err = catalog.RegisterSeller(ctx, "S", "Pixel Studio")
	require.NoError(t, err)
	_, err = catalog.ListProduct(ctx, "P", "S", "Preset pack", 100)
	require.NoError(t, err)
	_, err = catalog.ListProduct(ctx, "Q", "S", "Brush set", 50)
	require.NoError(t, err)
	return s
}

func TestCheckoutToReviewFlow(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	order, err := s.orders.CreateFromCart(ctx, &orderapp.CreateOrderRequest{
		BuyerID:  "B",
		SellerID: "S",
		Items:    []domain.CartItem{{ProductID: "P", Quantity: 2}, {ProductID: "Q", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(250), order.Totals.Total)

	// 未完成的订单不构成购买记录
	_, err = s.credits.SubmitStoreCredit(ctx, "B", "S", "positive")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = s.orders.ConfirmOrder(ctx, order.Code)
	require.NoError(t, err)
	_, err = s.orders.CompleteOrder(ctx, order.Code)
	require.NoError(t, err)
	// 重试完成不会产生新的待评价
	_, err = s.orders.CompleteOrder(ctx, order.Code)
	require.NoError(t, err)

	items, err := s.pending.FindPendingForBuyer(ctx, "B")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Pixel Studio", items[0].SellerDisplayName)

	_, err = s.reviews.SubmitProductReview(ctx, reviewapp.ProductReviewRequest{
		OrderCode: order.Code, BuyerID: "B", ProductID: "P", Rating: 4,
		Comment: "Exactly as described, works in every editor I tried.",
	})
	require.NoError(t, err)

	items, err = s.pending.FindPendingForBuyer(ctx, "B")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Q", items[0].ProductID)

	product, err := s.catalog.GetProduct(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, 4.0, product.Rating.Average)
	assert.Equal(t, int64(1), product.Rating.Total)
	assert.Equal(t, int64(1), product.Rating.Distribution[3])

	_, err = s.credits.SubmitStoreCredit(ctx, "B", "S", "positive")
	require.NoError(t, err)
	seller, err := s.catalog.GetSeller(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seller.Credit.Positive)
	assert.Equal(t, 100.0, seller.Credit.Percentage)

	page, err := s.reviews.GetProductReviews(ctx, "P", reviewapp.ListReviewsRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Items[0].PurchaseCount)
}

func TestCompleteRetryAfterReviewKeepsLineConsumed(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	order, err := s.orders.CreateFromCart(ctx, &orderapp.CreateOrderRequest{
		BuyerID:  "B",
		SellerID: "S",
		Items:    []domain.CartItem{{ProductID: "P", Quantity: 1}, {ProductID: "Q", Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = s.orders.CompleteOrder(ctx, order.Code)
	require.NoError(t, err)

	_, err = s.reviews.SubmitProductReview(ctx, reviewapp.ProductReviewRequest{
		OrderCode: order.Code, BuyerID: "B", ProductID: "P", Rating: 5,
		Comment: "Loaded straight into my editor, no issues.",
	})
	require.NoError(t, err)

	// 评价之后重试完成，已消费的行不能重新出现
	_, err = s.orders.CompleteOrder(ctx, order.Code)
	require.NoError(t, err)

	items, err := s.pending.FindPendingForBuyer(ctx, "B")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Q", items[0].ProductID)
}
