package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
}

type Variant struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Stock     int    `json:"stock"`
}

// ProductDetail is a product together with every purchasable variant of it.
type ProductDetail struct {
	Product
	Variants []Variant `json:"variants"`
}

// VariantWithPrice is a variant joined with its owning product's current
// unit price.
type VariantWithPrice struct {
	Variant
	UnitPrice decimal.Decimal
}
