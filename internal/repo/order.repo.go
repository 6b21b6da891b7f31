package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"storefront/internal/domain"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateOrderNumber is returned when an order number is already taken.
var ErrDuplicateOrderNumber = errors.New("order number already exists")

const uniqueViolation = "23505"

// OrderRepo is the order ledger. It only ever appends.
type OrderRepo interface {
	CreateOrder(ctx context.Context, tx DBTX, order *domain.Order) (uuid.UUID, error)
	AddItem(ctx context.Context, tx DBTX, item *domain.OrderItem) (uuid.UUID, error)
	// FindOrphaned lists orders older than olderThan that have no line item.
	FindOrphaned(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error)
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

func (r *orderRepo) CreateOrder(ctx context.Context, tx DBTX, order *domain.Order) (uuid.UUID, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	b := order.Buyer
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, user_name, user_email, user_phone,
			user_address, user_city, user_state, user_zip,
			card_token, card_last4, card_expiry,
			total_price, txn_status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		order.ID, order.OrderNumber, b.FullName, b.Email, b.Phone,
		b.Address, b.City, b.State, b.Zip,
		order.Card.Token, order.Card.Last4, order.Card.Expiry,
		order.TotalPrice, order.Status, order.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "orders_order_number_key" {
			return uuid.Nil, ErrDuplicateOrderNumber
		}
		return uuid.Nil, fmt.Errorf("insert order: %w", err)
	}
	return order.ID, nil
}

func (r *orderRepo) AddItem(ctx context.Context, tx DBTX, item *domain.OrderItem) (uuid.UUID, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO order_items (id, order_id, variant_id, quantity, price, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.OrderID, item.VariantID, item.Quantity, item.UnitPrice, item.CreatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert order item: %w", err)
	}
	return item.ID, nil
}

func (r *orderRepo) FindOrphaned(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.order_number, o.total_price, o.txn_status, o.created_at
		FROM orders o
		WHERE o.created_at < $1
		AND NOT EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id)
		ORDER BY o.created_at
		LIMIT $2
	`, time.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("find orphaned orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.TotalPrice, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan orphaned order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
