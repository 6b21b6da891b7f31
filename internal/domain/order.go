package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	// OrderPlaced is attached to every order at creation. It says nothing
	// about payment, which is never authorized.
	OrderPlaced OrderStatus = "order placed"
)

type Order struct {
	ID          uuid.UUID
	OrderNumber string
	Buyer       BuyerDetails
	Card        StoredCard
	TotalPrice  decimal.Decimal
	Status      OrderStatus
	CreatedAt   time.Time
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	VariantID int64
	Quantity  int
	// UnitPrice is the product price frozen at purchase time.
	UnitPrice decimal.Decimal
	CreatedAt time.Time
}

// Subtotal returns UnitPrice × Quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
