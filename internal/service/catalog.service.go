package service

import (
	"context"
	"storefront/internal/domain"
	"storefront/internal/repo"
)

type CatalogService interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, ref string) (*domain.ProductDetail, error)
}

type catalogService struct {
	catalog repo.CatalogRepo
}

func NewCatalogService(catalog repo.CatalogRepo) CatalogService {
	return &catalogService{catalog: catalog}
}

func (s *catalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.catalog.ListProducts(ctx)
}

func (s *catalogService) GetProduct(ctx context.Context, ref string) (*domain.ProductDetail, error) {
	id, ok := parseID(ref)
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	p, err := s.catalog.FindProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}
	variants, err := s.catalog.ListVariants(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.ProductDetail{Product: *p, Variants: variants}, nil
}
