package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// SeedVariant inserts a product with a single variant and returns the
// variant id. Used by the simulator and integration tests.
func SeedVariant(ctx context.Context, db *sql.DB, title string, price decimal.Decimal, stock int) (productID, variantID int64, err error) {
	err = db.QueryRowContext(ctx,
		`INSERT INTO products (title, description, price, image) VALUES ($1, $2, $3, $4) RETURNING id`,
		title, title+" (seeded)", price, "",
	).Scan(&productID)
	if err != nil {
		return 0, 0, fmt.Errorf("seed product: %w", err)
	}
	err = db.QueryRowContext(ctx,
		`INSERT INTO variants (product_id, color, size, stock) VALUES ($1, $2, $3, $4) RETURNING id`,
		productID, "black", "M", stock,
	).Scan(&variantID)
	if err != nil {
		return 0, 0, fmt.Errorf("seed variant: %w", err)
	}
	return productID, variantID, nil
}
