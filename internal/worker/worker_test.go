package worker

import (
	"context"
	"errors"
	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/repo"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeOrders struct {
	repo.OrderRepo
	orphans []domain.Order
	err     error
}

func (f *fakeOrders) FindOrphaned(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	return f.orphans, f.err
}

func TestOrphanAuditorReportsOnce(t *testing.T) {
	orders := &fakeOrders{orphans: []domain.Order{
		{ID: uuid.New(), OrderNumber: "ORD-000000000001", TotalPrice: decimal.NewFromInt(300)},
		{ID: uuid.New(), OrderNumber: "ORD-000000000002", TotalPrice: decimal.NewFromInt(100)},
	}}
	core, logs := observer.New(zap.WarnLevel)
	m := metrics.New(prometheus.NewRegistry())
	a := NewOrphanAuditor(orders, m, zap.New(core), time.Minute, time.Minute)

	n, err := a.process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = a.process(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, 2, logs.FilterMessage("OrphanedOrderWarning").Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrphanedOrders.WithLabelValues("audit")))
}

func TestOrphanAuditorError(t *testing.T) {
	a := NewOrphanAuditor(&fakeOrders{err: errors.New("timeout")}, nil, zap.NewNop(), time.Minute, time.Minute)
	_, err := a.process(context.Background())
	require.Error(t, err)
}

type fakeOutbox struct {
	pending []domain.OutboxEvent
	sent    []int64
}

func (f *fakeOutbox) Insert(ctx context.Context, tx repo.DBTX, event *domain.OutboxEvent) error {
	return nil
}

func (f *fakeOutbox) FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	return f.pending, nil
}

func (f *fakeOutbox) MarkSent(ctx context.Context, id int64) error {
	f.sent = append(f.sent, id)
	return nil
}

type fakePublisher struct {
	failOn  string
	keys    []string
	headers []map[string]string
}

func (p *fakePublisher) Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	if key == p.failOn {
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, key)
	p.headers = append(p.headers, headers)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func TestOutboxRelayMarksPublishedOnly(t *testing.T) {
	outbox := &fakeOutbox{pending: []domain.OutboxEvent{
		{ID: 1, EventID: uuid.New(), Topic: "order.placed", Key: "a"},
		{ID: 2, EventID: uuid.New(), Topic: "order.placed", Key: "b"},
		{ID: 3, EventID: uuid.New(), Topic: "order.placed", Key: "c"},
	}}
	pub := &fakePublisher{failOn: "b"}
	m := metrics.New(prometheus.NewRegistry())
	r := NewOutboxRelay(outbox, pub, m, zap.NewNop(), time.Second)

	sent, err := r.process(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []int64{1}, outbox.sent)
	assert.Equal(t, []string{"a"}, pub.keys)
	assert.Equal(t, domain.EventOrderPlaced, pub.headers[0]["x-event-type"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxPublished))

	pub.failOn = ""
	outbox.sent = nil
	sent, err = r.process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, []int64{1, 2, 3}, outbox.sent)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a := NewOrphanAuditor(&fakeOrders{}, nil, zap.NewNop(), 5*time.Millisecond, time.Minute)
	go func() {
		a.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("auditor did not stop")
	}
}
