package worker

import (
	"context"
	"storefront/internal/domain"
	"storefront/internal/infrastructure/events"
	"storefront/internal/metrics"
	"storefront/internal/repo"
	"time"

	"go.uber.org/zap"
)

const relayBatch = 100

// OutboxRelay publishes pending outbox rows and marks them sent. Delivery is
// at least once: a crash between publish and mark re-sends the row.
type OutboxRelay struct {
	outbox    repo.OutboxRepo
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
	interval  time.Duration
}

func NewOutboxRelay(outbox repo.OutboxRepo, publisher events.Publisher, m *metrics.Metrics, log *zap.Logger, interval time.Duration) *OutboxRelay {
	return &OutboxRelay{
		outbox:    outbox,
		publisher: publisher,
		metrics:   m,
		log:       log,
		interval:  interval,
	}
}

func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("outbox relay started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.process(ctx); err != nil {
				r.log.Error("outbox relay failed", zap.Error(err))
			}
		}
	}
}

// process publishes one batch in id order and stops at the first publish
// failure so events for the same order keep their order.
func (r *OutboxRelay) process(ctx context.Context) (int, error) {
	pending, err := r.outbox.FetchPending(ctx, relayBatch)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, ev := range pending {
		headers := map[string]string{
			"x-event-id":   ev.EventID.String(),
			"x-event-type": domain.EventOrderPlaced,
		}
		if err := r.publisher.Publish(ctx, ev.Topic, ev.Key, ev.Payload, headers); err != nil {
			return sent, err
		}
		if err := r.outbox.MarkSent(ctx, ev.ID); err != nil {
			return sent, err
		}
		sent++
		r.metrics.OutboxSent()
	}
	return sent, nil
}
