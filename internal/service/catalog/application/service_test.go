package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"marketplace/internal/pkg/errs"
	"marketplace/internal/service/catalog/infrastructure"
	"marketplace/internal/testutil"
)

func newService(t *testing.T) *CatalogService {
	t.Helper()
	repo := infrastructure.NewGormCatalogRepository(testutil.NewDB(t, infrastructure.Models()...))
	return NewCatalogService(repo, noop.NewTracerProvider().Tracer("test"))
}

func TestCatalogService(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.RegisterSeller(ctx, "S", "Sora Studio")
	require.NoError(t, err)
	_, err = svc.ListProduct(ctx, "P", "S", "Preset pack", 100)
	require.NoError(t, err)

	_, err = svc.ListProduct(ctx, "X", "nobody", "Orphan", 10)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	_, err = svc.ListProduct(ctx, "N", "S", "Negative", -1)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	products, err := svc.Products(ctx, []string{"P", "P", "", "missing"})
	require.NoError(t, err)
	require.Contains(t, products, "P")
	assert.Len(t, products, 1)

	require.NoError(t, svc.UpdatePrice(ctx, "P", 130))
	p, err := svc.GetProduct(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, int64(130), p.Price)

	assert.True(t, errors.Is(svc.UpdatePrice(ctx, "P", -5), errs.ErrValidation))
	assert.True(t, errors.Is(svc.UpdatePrice(ctx, "missing", 5), errs.ErrNotFound))

	names, err := svc.DisplayNames(ctx, []string{"S", "S"})
	require.NoError(t, err)
	assert.Equal(t, "Sora Studio", names["S"])
}
