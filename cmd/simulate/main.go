package main

import (
	"context"
	"flag"
	"fmt"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/repo"
	"storefront/internal/service"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	buyers := flag.Int("buyers", 10, "number of concurrent checkouts")
	quantity := flag.Int("quantity", 3, "units per checkout")
	stock := flag.Int("stock", 5, "starting stock of the variant")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg.DB)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	_, variantID, err := database.SeedVariant(ctx, db, fmt.Sprintf("Sim tee %d", time.Now().Unix()), decimal.NewFromInt(100), *stock)
	if err != nil {
		logger.Fatal("seed", zap.Error(err))
	}

	checkout := service.NewCheckoutService(service.CheckoutDeps{
		Tx:        repo.NewTransactor(db),
		Resolver:  service.NewVariantResolver(repo.NewCatalogRepo(db)),
		Orders:    repo.NewOrderRepo(db),
		Inventory: repo.NewInventoryRepo(),
		Tokens:    service.NewTokenGenerator(nil),
		Vault:     payment.NewCardVault(cfg.CardVaultSecret),
		Logger:    zap.NewNop(),
	})

	fmt.Printf("--- STARTING SIMULATION (%d BUYERS x %d UNITS, STOCK %d) ---\n", *buyers, *quantity, *stock)

	ref := domain.VariantRef(strconv.FormatInt(variantID, 10))
	results := make([]string, *buyers)
	var wg sync.WaitGroup
	for i := 0; i < *buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conf, err := checkout.Checkout(ctx, domain.CheckoutRequest{
				VariantRef: ref,
				Quantity:   *quantity,
				Buyer:      domain.BuyerDetails{FullName: fmt.Sprintf("buyer-%d", i+1)},
			})
			if err != nil {
				results[i] = fmt.Sprintf("FAILED (%s)", domain.KindOf(err))
				return
			}
			results[i] = "SUCCESS " + conf.OrderNumber
		}(i)
	}
	wg.Wait()

	sold := 0
	for i, r := range results {
		fmt.Printf("[%d] %s\n", i+1, r)
		if r[0] == 'S' {
			sold += *quantity
		}
	}

	var remaining int
	if err := db.QueryRowContext(ctx, `SELECT stock FROM variants WHERE id = $1`, variantID).Scan(&remaining); err != nil {
		logger.Fatal("read stock", zap.Error(err))
	}
	fmt.Println("---------------------------------------------------")
	fmt.Printf("sold %d units, %d remaining (started with %d)\n", sold, remaining, *stock)
	if remaining < 0 || sold+remaining != *stock {
		fmt.Println("INVARIANT VIOLATED: stock was oversold")
	}
}
