package repo

import (
	"context"
	"fmt"
)

// InventoryRepo is the only writer of variant stock.
type InventoryRepo interface {
	// Decrement takes quantity units from the variant if at least that many
	// remain at the moment of the write. It reports false when they do not.
	Decrement(ctx context.Context, tx DBTX, variantID int64, quantity int) (bool, error)
}

type inventoryRepo struct{}

func NewInventoryRepo() InventoryRepo {
	return &inventoryRepo{}
}

func (r *inventoryRepo) Decrement(ctx context.Context, tx DBTX, variantID int64, quantity int) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE variants SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
		variantID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock of variant %d: %w", variantID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement stock of variant %d: %w", variantID, err)
	}
	return n == 1, nil
}
