package service

import (
	"storefront/internal/domain"
)

// CheckStock rejects a non-positive quantity as a malformed request and a
// quantity above the variant's stock as insufficient.
func CheckStock(v *domain.VariantWithPrice, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if quantity > v.Stock {
		return domain.ErrInsufficientStock
	}
	return nil
}
