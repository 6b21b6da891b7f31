package server

import (
	"context"
	"net/http"
	"storefront/internal/infrastructure/idempotency"
	"storefront/internal/metrics"
	"storefront/internal/service"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Deps struct {
	Catalog  service.CatalogService
	Checkout service.CheckoutService
	// Idempotency is optional; without it the Idempotency-Key header is ignored.
	Idempotency    idempotency.Store
	Health         func(ctx context.Context) map[string]string
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Logger         *zap.Logger
	AllowedOrigins []string
}

type handler struct {
	catalog  service.CatalogService
	checkout service.CheckoutService
	idem     idempotency.Store
	log      *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(d.Logger, d.Metrics))
	r.Use(cors.New(corsConfig(d.AllowedOrigins)))

	h := &handler{
		catalog:  d.Catalog,
		checkout: d.Checkout,
		idem:     d.Idempotency,
		log:      d.Logger,
	}

	r.GET("/catalog", h.listProducts)
	r.GET("/catalog/:id", h.getProduct)
	r.POST("/checkout", h.placeOrder)

	// Paths used by the original storefront client.
	api := r.Group("/api")
	api.GET("/products", h.listProducts)
	api.GET("/product/:id", h.getProduct)
	api.POST("/buy", h.placeOrder)

	if d.Health != nil {
		r.GET("/health", func(c *gin.Context) {
			stats := d.Health(c.Request.Context())
			status := http.StatusOK
			if stats["status"] != "up" {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, stats)
		})
	}
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(d.Gatherer)))
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", idempotency.Header},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func requestLogger(log *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.ObserveRequest(route, status, latency)
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
