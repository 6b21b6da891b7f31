package service

import (
	"context"
	"storefront/internal/domain"
	"storefront/internal/repo"
	"strconv"
	"strings"
)

type VariantResolver interface {
	Resolve(ctx context.Context, ref domain.VariantRef) (*domain.VariantWithPrice, error)
}

type variantResolver struct {
	catalog repo.CatalogRepo
}

func NewVariantResolver(catalog repo.CatalogRepo) VariantResolver {
	return &variantResolver{catalog: catalog}
}

// Resolve accepts any client supplied reference. References that are not a
// positive integer resolve to ErrVariantNotFound without touching the store.
func (r *variantResolver) Resolve(ctx context.Context, ref domain.VariantRef) (*domain.VariantWithPrice, error) {
	id, ok := parseID(string(ref))
	if !ok {
		return nil, domain.ErrVariantNotFound
	}
	v, err := r.catalog.ResolveVariant(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, domain.ErrVariantNotFound
	}
	return v, nil
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
