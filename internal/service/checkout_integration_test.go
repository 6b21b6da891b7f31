package service

import (
	"context"
	"database/sql"
	"errors"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/repo"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func postgresCheckout(t *testing.T) (*sql.DB, CheckoutService) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("shop"),
		postgres.WithUsername("app"),
		postgres.WithPassword("secret"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := database.NewPostgres(ctx, config.Database{URL: dsn, MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLifetime: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db))

	svc := NewCheckoutService(CheckoutDeps{
		Tx:          repo.NewTransactor(db),
		Resolver:    NewVariantResolver(repo.NewCatalogRepo(db)),
		Orders:      repo.NewOrderRepo(db),
		Inventory:   repo.NewInventoryRepo(),
		Outbox:      repo.NewOutboxRepo(db),
		OutboxTopic: "order.placed",
		Tokens:      NewTokenGenerator(nil),
		Vault:       payment.NewCardVault("test-secret"),
	})
	return db, svc
}

func queryInt(t *testing.T, db *sql.DB, q string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), q, args...).Scan(&n))
	return n
}

func TestPostgresCheckout(t *testing.T) {
	db, svc := postgresCheckout(t)
	ctx := context.Background()

	t.Run("scenario", func(t *testing.T) {
		_, vid, err := database.SeedVariant(ctx, db, "Hoodie", decimal.NewFromInt(100), 5)
		require.NoError(t, err)
		ref := domain.VariantRef(strconv.FormatInt(vid, 10))

		conf, err := svc.Checkout(ctx, domain.CheckoutRequest{VariantRef: ref, Quantity: 3})
		require.NoError(t, err)
		assert.Regexp(t, orderNumberPattern, conf.OrderNumber)

		var total decimal.Decimal
		require.NoError(t, db.QueryRowContext(ctx, `SELECT total_price FROM orders WHERE id = $1`, conf.OrderID).Scan(&total))
		assert.True(t, total.Equal(decimal.NewFromInt(300)), total.String())
		assert.Equal(t, 1, queryInt(t, db, `SELECT count(*) FROM order_items WHERE order_id = $1`, conf.OrderID))
		assert.Equal(t, 2, queryInt(t, db, `SELECT stock FROM variants WHERE id = $1`, vid))
		assert.Equal(t, 1, queryInt(t, db, `SELECT count(*) FROM outbox WHERE key = $1`, conf.OrderID.String()))

		before := queryInt(t, db, `SELECT count(*) FROM orders`)
		_, err = svc.Checkout(ctx, domain.CheckoutRequest{VariantRef: ref, Quantity: 3})
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Equal(t, before, queryInt(t, db, `SELECT count(*) FROM orders`))
	})

	t.Run("concurrent checkouts", func(t *testing.T) {
		_, vid, err := database.SeedVariant(ctx, db, "Cap", decimal.RequireFromString("12.50"), 5)
		require.NoError(t, err)
		ref := domain.VariantRef(strconv.FormatInt(vid, 10))

		const n = 12
		var wg sync.WaitGroup
		results := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = svc.Checkout(ctx, domain.CheckoutRequest{VariantRef: ref, Quantity: 3})
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, err := range results {
			if err == nil {
				ok++
				continue
			}
			assert.True(t, errors.Is(err, domain.ErrInsufficientStock), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, 2, queryInt(t, db, `SELECT stock FROM variants WHERE id = $1`, vid))
		assert.Equal(t, 3, queryInt(t, db, `SELECT coalesce(sum(quantity), 0) FROM order_items WHERE variant_id = $1`, vid))
		assert.Zero(t, queryInt(t, db, `
			SELECT count(*) FROM orders o
			WHERE NOT EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id)`))
	})
}
