package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"storefront/internal/domain"
)

type CatalogRepo interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	// FindProduct returns nil, nil when no product has that id.
	FindProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListVariants(ctx context.Context, productID int64) ([]domain.Variant, error)
	// ResolveVariant joins a variant with its product's current price.
	// It returns nil, nil when no variant has that id.
	ResolveVariant(ctx context.Context, id int64) (*domain.VariantWithPrice, error)
}

type catalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) CatalogRepo {
	return &catalogRepo{db: db}
}

func (r *catalogRepo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, description, price, image FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Image); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *catalogRepo) FindProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, price, image FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Image)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product %d: %w", id, err)
	}
	return &p, nil
}

func (r *catalogRepo) ListVariants(ctx context.Context, productID int64) ([]domain.Variant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, color, size, stock FROM variants WHERE product_id = $1 ORDER BY id`, productID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	variants := []domain.Variant{}
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Color, &v.Size, &v.Stock); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (r *catalogRepo) ResolveVariant(ctx context.Context, id int64) (*domain.VariantWithPrice, error) {
	var v domain.VariantWithPrice
	err := r.db.QueryRowContext(ctx, `
		SELECT v.id, v.product_id, v.color, v.size, v.stock, p.price
		FROM variants v
		JOIN products p ON v.product_id = p.id
		WHERE v.id = $1
	`, id).Scan(&v.ID, &v.ProductID, &v.Color, &v.Size, &v.Stock, &v.UnitPrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve variant %d: %w", id, err)
	}
	return &v, nil
}
