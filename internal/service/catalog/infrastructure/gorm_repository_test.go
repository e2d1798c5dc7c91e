package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/pkg/errs"
	"marketplace/internal/service/catalog/domain"
	"marketplace/internal/testutil"
)

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T) *GormCatalogRepository {
	t.Helper()
	repo := NewGormCatalogRepository(testutil.NewDB(t, Models()...))
	ctx := context.Background()

	s, err := domain.NewSeller("S", "Sora Studio", now)
	require.NoError(t, err)
	require.NoError(t, repo.CreateSeller(ctx, s))
	for _, p := range []struct {
		id    string
		price int64
	}{{"P", 100}, {"Q", 50}} {
		prod, err := domain.NewProduct(p.id, "S", "item "+p.id, p.price, now)
		require.NoError(t, err)
		require.NoError(t, repo.CreateProduct(ctx, prod))
	}
	return repo
}

func TestCatalogCreateAndFind(t *testing.T) {
	repo := seed(t)
	ctx := context.Background()

	p, err := repo.FindProduct(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Price)
	assert.Equal(t, "S", p.SellerID)

	products, err := repo.FindProducts(ctx, []string{"P", "Q", "missing"})
	require.NoError(t, err)
	assert.Len(t, products, 2)

	_, err = repo.FindProduct(ctx, "missing")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	s, _ := domain.NewSeller("S", "dup", now)
	assert.True(t, errors.Is(repo.CreateSeller(ctx, s), errs.ErrDuplicate))

	names, err := repo.DisplayNames(ctx, []string{"S", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"S": "Sora Studio"}, names)
}

func TestCatalogUpdates(t *testing.T) {
	repo := seed(t)
	ctx := context.Background()
	later := now.Add(time.Hour)

	require.NoError(t, repo.UpdatePrice(ctx, "P", 120, later))
	p, err := repo.FindProduct(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, int64(120), p.Price)

	rating := domain.RatingSummary{Average: 4.5, Total: 2, Distribution: [5]int64{0, 0, 0, 1, 1}}
	require.NoError(t, repo.UpdateProductRating(ctx, "P", rating, later))
	require.NoError(t, repo.UpdateProductRating(ctx, "P", rating, later), "rewriting identical stats is fine")
	p, err = repo.FindProduct(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, rating, p.Rating)

	require.NoError(t, repo.UpdateSellerRating(ctx, "S", rating, later))
	credit := domain.CreditSummary{Positive: 3, Negative: 1, Percentage: 75}
	require.NoError(t, repo.UpdateSellerCredit(ctx, "S", credit, later))
	s, err := repo.FindSeller(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, rating, s.Rating)
	assert.Equal(t, credit, s.Credit)

	err = repo.UpdateSellerCredit(ctx, "ghost", credit, later)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}
