package service

import (
	"context"
	"storefront/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProduct(t *testing.T) {
	store := newMemStore()
	store.addVariant(1, "100", 5)
	svc := NewCatalogService(store)

	p, err := svc.GetProduct(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.ID)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, 5, p.Variants[0].Stock)

	for _, ref := range []string{"999", "abc", "", "-1"} {
		_, err := svc.GetProduct(context.Background(), ref)
		assert.ErrorIs(t, err, domain.ErrProductNotFound, ref)
	}
}

func TestResolveMalformedSkipsStore(t *testing.T) {
	store := newMemStore()
	r := NewVariantResolver(store)

	for _, ref := range []domain.VariantRef{"x1", "1.5", "0", " "} {
		_, err := r.Resolve(context.Background(), ref)
		assert.ErrorIs(t, err, domain.ErrVariantNotFound)
	}
	assert.Zero(t, store.resolveCalls)

	_, err := r.Resolve(context.Background(), "42")
	assert.ErrorIs(t, err, domain.ErrVariantNotFound)
	assert.Equal(t, 1, store.resolveCalls)
}
