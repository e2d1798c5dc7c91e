package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/pkg/errs"
	"marketplace/internal/pkg/pagination"
	"marketplace/internal/service/review/domain"
	"marketplace/internal/testutil"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func idGen() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%03d", n)
	}
}

func completed(code string) domain.CompletedOrder {
	return domain.CompletedOrder{
		Code: code, BuyerID: "B", SellerID: "S", Total: 250, ItemCount: 3, CompletedAt: t0,
		Lines: []domain.CompletedLine{{ProductID: "P", Title: "Preset pack"}, {ProductID: "Q", Title: "Brush set"}},
	}
}

func TestPendingCreateManyIgnoresDuplicates(t *testing.T) {
	db := testutil.NewDB(t, Models()...)
	repo := NewGormPendingReviewRepository(db)
	ctx := context.Background()
	next := idGen()

	items, err := domain.NewPendingReviews(completed("ORD-1"), 30*24*time.Hour, t0, next)
	require.NoError(t, err)
	n, err := repo.CreateMany(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// 重复完成：新 id，同样的 (订单, 买家, 商品)
	again, err := domain.NewPendingReviews(completed("ORD-1"), 30*24*time.Hour, t0.Add(time.Minute), next)
	require.NoError(t, err)
	n, err = repo.CreateMany(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// 部分重复：只有新的一行被写入
	mixed := append(again[:1:1], &domain.PendingReview{
		ID: next(), OrderCode: "ORD-1", BuyerID: "B", SellerID: "S", ProductID: "R",
		ProductTitle: "Late line", OrderTotal: 250, CreatedAt: t0, ExpiresAt: t0.Add(time.Hour),
	})
	n, err = repo.CreateMany(ctx, mixed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var count int64
	require.NoError(t, db.Model(&PendingReviewModel{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestPendingQueriesAndExpiry(t *testing.T) {
	repo := NewGormPendingReviewRepository(testutil.NewDB(t, Models()...))
	ctx := context.Background()
	next := idGen()

	old, _ := domain.NewPendingReviews(completed("ORD-1"), time.Hour, t0, next)
	fresh, _ := domain.NewPendingReviews(completed("ORD-2"), 30*24*time.Hour, t0.Add(time.Minute), next)
	_, err := repo.CreateMany(ctx, old)
	require.NoError(t, err)
	_, err = repo.CreateMany(ctx, fresh)
	require.NoError(t, err)

	now := t0.Add(2 * time.Hour)
	list, err := repo.FindForBuyer(ctx, "B", now)
	require.NoError(t, err)
	require.Len(t, list, 2, "expired records are filtered passively")
	assert.Equal(t, "ORD-2", list[0].OrderCode)

	forOrder, err := repo.FindForOrder(ctx, "ORD-1", "B", now)
	require.NoError(t, err)
	assert.Empty(t, forOrder)
	forOrder, err = repo.FindForOrder(ctx, "ORD-2", "B", now)
	require.NoError(t, err)
	require.Len(t, forOrder, 2)
	assert.Equal(t, "P", forOrder[0].ProductID)

	has, err := repo.HasForBuyer(ctx, "B", now)
	require.NoError(t, err)
	assert.True(t, has)
	has, err = repo.HasForBuyer(ctx, "nobody", now)
	require.NoError(t, err)
	assert.False(t, has)

	deleted, err := repo.DeleteExpired(ctx, now, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	deleted, err = repo.DeleteExpired(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	deleted, err = repo.DeleteExpired(ctx, now, 10)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	require.NoError(t, repo.Delete(ctx, forOrder[0].ID))
	require.NoError(t, repo.Delete(ctx, forOrder[0].ID), "deleting twice is a no-op")
	list, err = repo.FindForBuyer(ctx, "B", now)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPendingReminders(t *testing.T) {
	repo := NewGormPendingReviewRepository(testutil.NewDB(t, Models()...))
	ctx := context.Background()
	items, _ := domain.NewPendingReviews(completed("ORD-1"), 30*24*time.Hour, t0, idGen())
	_, err := repo.CreateMany(ctx, items)
	require.NoError(t, err)

	now := t0.Add(24 * time.Hour)
	due, err := repo.ListDueReminders(ctx, now, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 2)

	reminded := due[0].ID
	n, err := repo.MarkReminded(ctx, []string{reminded}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	due, err = repo.ListDueReminders(ctx, now, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1, "reminded records wait for the next interval")
	assert.NotEqual(t, reminded, due[0].ID)

	later := now.Add(48 * time.Hour)
	due, err = repo.ListDueReminders(ctx, later, later.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	for _, p := range due {
		if p.ID == reminded {
			assert.Equal(t, 1, p.ReminderCount)
			require.NotNil(t, p.LastRemindedAt)
		} else {
			assert.Zero(t, p.ReminderCount)
		}
	}
}

func newReview(t *testing.T, id, product string, rating int, at time.Time) *domain.Review {
	t.Helper()
	r, err := domain.NewProductReview(id, &domain.PendingReview{
		OrderCode: "ORD-" + id, BuyerID: "B", SellerID: "S", ProductID: product,
	}, rating, "really solid purchase", domain.BuyerInfo{DisplayName: "Bee"}, at)
	require.NoError(t, err)
	return r
}

func TestReviewCreateIsUniquePerDedupeKey(t *testing.T) {
	repo := NewGormReviewRepository(testutil.NewDB(t, Models()...))
	ctx := context.Background()

	r := newReview(t, "r1", "P", 5, t0)
	require.NoError(t, repo.Create(ctx, r))

	dup := *r
	dup.ID = "r2"
	err := repo.Create(ctx, &dup)
	assert.True(t, errors.Is(err, errs.ErrDuplicate))

	exists, err := repo.ExistsByDedupeKey(ctx, r.DedupeKey)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := repo.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Bee", got.Buyer.DisplayName)
	assert.Equal(t, domain.ReviewActive, got.Status)
}

func TestReviewListingAndDistribution(t *testing.T) {
	repo := NewGormReviewRepository(testutil.NewDB(t, Models()...))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newReview(t, "r1", "P", 5, t0)))
	require.NoError(t, repo.Create(ctx, newReview(t, "r2", "P", 3, t0.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, newReview(t, "r3", "P", 4, t0.Add(2*time.Minute))))
	require.NoError(t, repo.Create(ctx, newReview(t, "r4", "Q", 1, t0)))
	seller, err := domain.NewSellerReview("s1", "B", "S", 4, "fast and friendly seller", domain.BuyerInfo{}, t0)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, seller))

	newest, err := repo.ListForProduct(ctx, "P", domain.ReviewQuery{Page: pagination.New(1, 2)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), newest.Total)
	require.Len(t, newest.Items, 2)
	assert.Equal(t, "r3", newest.Items[0].ID)

	highest, err := repo.ListForProduct(ctx, "P", domain.ReviewQuery{Page: pagination.New(1, 10), Sort: domain.SortHighest})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 4, 3}, []int{highest.Items[0].Rating, highest.Items[1].Rating, highest.Items[2].Rating})

	changed, err := repo.SetStatus(ctx, "r2", domain.ReviewRemoved, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = repo.SetStatus(ctx, "r2", domain.ReviewRemoved, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	_, err = repo.SetStatus(ctx, "missing", domain.ReviewRemoved, t0)
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	dist, err := repo.ProductDistribution(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, [5]int64{0, 0, 0, 1, 1}, dist, "removed reviews are excluded")

	dist, err = repo.SellerDistribution(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, [5]int64{0, 0, 0, 1, 0}, dist)

	sellerReviews, err := repo.ListForSeller(ctx, "S", domain.ReviewQuery{Page: pagination.New(1, 10)})
	require.NoError(t, err)
	require.Len(t, sellerReviews.Items, 1)
	assert.Equal(t, domain.ReviewTypeSeller, sellerReviews.Items[0].Type)

	products, err := repo.ReviewedProductIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"P", "Q"}, products)
	sellers, err := repo.ReviewedSellerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"S"}, sellers)
}

func TestCreditUpsertFlipsSignal(t *testing.T) {
	db := testutil.NewDB(t, Models()...)
	repo := NewGormCreditRepository(db)
	ctx := context.Background()

	pos, err := domain.NewStoreCredit("c1", "B", "S", domain.CreditPositive, t0)
	require.NoError(t, err)
	saved, err := repo.Upsert(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, domain.CreditPositive, saved.CreditType)

	neg, err := domain.NewStoreCredit("c2", "B", "S", domain.CreditNegative, t0.Add(time.Hour))
	require.NoError(t, err)
	saved, err = repo.Upsert(ctx, neg)
	require.NoError(t, err)
	assert.Equal(t, domain.CreditNegative, saved.CreditType)
	assert.Equal(t, "c1", saved.ID, "the original row is updated in place")

	var count int64
	require.NoError(t, db.Model(&StoreCreditModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	other, _ := domain.NewStoreCredit("c3", "B2", "S", domain.CreditPositive, t0)
	_, err = repo.Upsert(ctx, other)
	require.NoError(t, err)

	p, n, err := repo.CountForSeller(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p)
	assert.Equal(t, int64(1), n)

	sellers, err := repo.CreditedSellerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"S"}, sellers)

	_, err = repo.Find(ctx, "B", "nobody")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}
