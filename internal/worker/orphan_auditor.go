package worker

import (
	"context"
	"storefront/internal/metrics"
	"storefront/internal/repo"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const auditBatch = 100

// OrphanAuditor periodically looks for orders that have no line item and
// reports each one once. It never repairs or deletes anything; orders are
// append-only.
type OrphanAuditor struct {
	orderRepo repo.OrderRepo
	metrics   *metrics.Metrics
	log       *zap.Logger
	interval  time.Duration
	grace     time.Duration

	mu       sync.Mutex
	reported map[uuid.UUID]struct{}
}

func NewOrphanAuditor(
	orderRepo repo.OrderRepo,
	m *metrics.Metrics,
	log *zap.Logger,
	interval time.Duration,
	grace time.Duration,
) *OrphanAuditor {
	return &OrphanAuditor{
		orderRepo: orderRepo,
		metrics:   m,
		log:       log,
		interval:  interval,
		grace:     grace,
		reported:  make(map[uuid.UUID]struct{}),
	}
}

func (a *OrphanAuditor) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.log.Info("orphan auditor started", zap.Duration("interval", a.interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.process(ctx); err != nil {
				a.log.Error("orphan audit failed", zap.Error(err))
			}
		}
	}
}

// process reports orphaned orders not seen before and returns how many were
// newly reported.
func (a *OrphanAuditor) process(ctx context.Context) (int, error) {
	orphans, err := a.orderRepo.FindOrphaned(ctx, a.grace, auditBatch)
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, o := range orphans {
		if _, seen := a.reported[o.ID]; seen {
			continue
		}
		a.reported[o.ID] = struct{}{}
		n++
		a.metrics.OrphanedOrder("audit")
		a.log.Warn("OrphanedOrderWarning",
			zap.String("order_id", o.ID.String()),
			zap.String("order_number", o.OrderNumber),
			zap.String("total_price", o.TotalPrice.StringFixed(2)),
			zap.Time("created_at", o.CreatedAt),
			zap.String("reason", "order has no line item"),
		)
	}
	return n, nil
}
