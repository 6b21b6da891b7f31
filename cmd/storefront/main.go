package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/infrastructure/events"
	"storefront/internal/infrastructure/idempotency"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/metrics"
	"storefront/internal/repo"
	"storefront/internal/server"
	"storefront/internal/service"
	"storefront/internal/worker"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	logger := newLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.DB)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewDBStatsCollector(db, "storefront"))
	m := metrics.New(reg)

	catalogRepo := repo.NewCatalogRepo(db)
	orderRepo := repo.NewOrderRepo(db)
	outboxRepo := repo.NewOutboxRepo(db)

	checkout := service.NewCheckoutService(service.CheckoutDeps{
		Tx:          repo.NewTransactor(db),
		Resolver:    service.NewVariantResolver(catalogRepo),
		Orders:      orderRepo,
		Inventory:   repo.NewInventoryRepo(),
		Outbox:      outboxRepo,
		OutboxTopic: cfg.OrderPlacedTopic,
		Tokens:      service.NewTokenGenerator(nil),
		Vault:       payment.NewCardVault(cfg.CardVaultSecret),
		Metrics:     m,
		Logger:      logger.Named("checkout"),
	})

	deps := server.Deps{
		Catalog:        service.NewCatalogService(catalogRepo),
		Checkout:       checkout,
		Health:         func(ctx context.Context) map[string]string { return database.Health(ctx, db) },
		Metrics:        m,
		Gatherer:       reg,
		Logger:         logger.Named("http"),
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}
	if cfg.RedisAddr != "" {
		rdb := idempotency.NewRedisClient(cfg.RedisAddr)
		defer rdb.Close()
		deps.Idempotency = idempotency.NewRedisStore(rdb)
	}

	var workers sync.WaitGroup
	startWorkers(ctx, &workers, cfg, db, orderRepo, outboxRepo, m, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	workers.Wait()
}

func startWorkers(
	ctx context.Context,
	wg *sync.WaitGroup,
	cfg config.Config,
	db *sql.DB,
	orderRepo repo.OrderRepo,
	outboxRepo repo.OutboxRepo,
	m *metrics.Metrics,
	logger *zap.Logger,
) {
	auditor := worker.NewOrphanAuditor(orderRepo, m, logger.Named("auditor"), cfg.AuditInterval, cfg.AuditGrace)
	wg.Add(1)
	go func() {
		defer wg.Done()
		auditor.Run(ctx)
	}()

	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("KAFKA_BROKERS not set, outbox relay disabled")
		return
	}
	publisher := events.NewKafkaPublisher(cfg.KafkaBrokers)
	relay := worker.NewOutboxRelay(outboxRepo, publisher, m, logger.Named("outbox"), cfg.OutboxInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		relay.Run(ctx)
		if err := publisher.Close(); err != nil {
			logger.Error("close kafka publisher", zap.Error(err))
		}
	}()
}

func newLogger(env string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "dev" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger.With(zap.String("service", "storefront"))
}
