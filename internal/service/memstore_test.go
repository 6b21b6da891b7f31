package service

import (
	"context"
	"database/sql"
	"errors"
	"storefront/internal/domain"
	"storefront/internal/repo"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore implements the catalog, ledger, inventory, outbox and transactor
// contracts in memory. Writes made inside WithinTx become visible on commit;
// stock decrements apply immediately and are undone on rollback, mirroring
// a row-level conditional UPDATE.
type memStore struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	variants map[int64]*domain.VariantWithPrice
	orders   []domain.Order
	items    []domain.OrderItem
	outbox   []domain.OutboxEvent
	numbers  map[string]bool

	resolveCalls int
	resolveErr   error
	// resolveBarrier, when set, holds every resolve until all callers arrived.
	resolveBarrier *sync.WaitGroup

	failCreate     error
	failAddItem    error
	failDecrement  error
	failOutbox     error
	failCommit     error
	brokenRollback error
	collisions     int
}

type memTx struct {
	orders      []domain.Order
	items       []domain.OrderItem
	outbox      []domain.OutboxEvent
	decremented map[int64]int
}

func (*memTx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("memTx: no sql")
}

func (*memTx) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("memTx: no sql")
}

func (*memTx) QueryRowContext(context.Context, string, ...any) *sql.Row { return nil }

func newMemStore() *memStore {
	return &memStore{
		products: map[int64]domain.Product{},
		variants: map[int64]*domain.VariantWithPrice{},
		numbers:  map[string]bool{},
	}
}

func (m *memStore) addVariant(id int64, price string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pid := id * 100
	m.products[pid] = domain.Product{ID: pid, Title: "Tee", Price: decimal.RequireFromString(price)}
	m.variants[id] = &domain.VariantWithPrice{
		Variant:   domain.Variant{ID: id, ProductID: pid, Color: "red", Size: "M", Stock: stock},
		UnitPrice: decimal.RequireFromString(price),
	}
}

func (m *memStore) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.variants[id].Stock
}

func (m *memStore) counts() (orders, items int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders), len(m.items)
}

// catalog

func (m *memStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Product{}
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) FindProduct(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) ListVariants(ctx context.Context, productID int64) ([]domain.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Variant{}
	for _, v := range m.variants {
		if v.ProductID == productID {
			out = append(out, v.Variant)
		}
	}
	return out, nil
}

func (m *memStore) ResolveVariant(ctx context.Context, id int64) (*domain.VariantWithPrice, error) {
	m.mu.Lock()
	m.resolveCalls++
	if m.resolveErr != nil {
		m.mu.Unlock()
		return nil, m.resolveErr
	}
	v, ok := m.variants[id]
	var cp domain.VariantWithPrice
	if ok {
		cp = *v
	}
	barrier := m.resolveBarrier
	m.mu.Unlock()

	if barrier != nil {
		barrier.Done()
		barrier.Wait()
	}
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

// ledger

func (m *memStore) CreateOrder(ctx context.Context, tx repo.DBTX, order *domain.Order) (uuid.UUID, error) {
	if m.failCreate != nil {
		return uuid.Nil, m.failCreate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collisions > 0 {
		m.collisions--
		return uuid.Nil, repo.ErrDuplicateOrderNumber
	}
	if m.numbers[order.OrderNumber] {
		return uuid.Nil, repo.ErrDuplicateOrderNumber
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	t := tx.(*memTx)
	t.orders = append(t.orders, *order)
	return order.ID, nil
}

func (m *memStore) AddItem(ctx context.Context, tx repo.DBTX, item *domain.OrderItem) (uuid.UUID, error) {
	if m.failAddItem != nil {
		return uuid.Nil, m.failAddItem
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	t := tx.(*memTx)
	t.items = append(t.items, *item)
	return item.ID, nil
}

func (m *memStore) FindOrphaned(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	has := map[uuid.UUID]bool{}
	for _, it := range m.items {
		has[it.OrderID] = true
	}
	var out []domain.Order
	for _, o := range m.orders {
		if !has[o.ID] && len(out) < limit {
			out = append(out, o)
		}
	}
	return out, nil
}

// inventory

func (m *memStore) Decrement(ctx context.Context, tx repo.DBTX, variantID int64, quantity int) (bool, error) {
	if m.failDecrement != nil {
		return false, m.failDecrement
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.variants[variantID]
	if !ok || v.Stock < quantity {
		return false, nil
	}
	v.Stock -= quantity
	tx.(*memTx).decremented[variantID] += quantity
	return true, nil
}

// outbox

func (m *memStore) Insert(ctx context.Context, tx repo.DBTX, event *domain.OutboxEvent) error {
	if m.failOutbox != nil {
		return m.failOutbox
	}
	t := tx.(*memTx)
	t.outbox = append(t.outbox, *event)
	return nil
}

func (m *memStore) FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OutboxEvent(nil), m.outbox...), nil
}

func (m *memStore) MarkSent(ctx context.Context, id int64) error { return nil }

// transactor

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repo.DBTX) error) error {
	tx := &memTx{decremented: map[int64]int{}}
	if err := fn(ctx, tx); err != nil {
		if m.brokenRollback != nil {
			m.apply(tx)
			return &repo.RollbackError{Err: err, Rollback: m.brokenRollback}
		}
		m.undo(tx)
		return err
	}
	if m.failCommit != nil {
		m.undo(tx)
		return &repo.CommitError{Err: m.failCommit}
	}
	m.apply(tx)
	return nil
}

func (m *memStore) apply(tx *memTx) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range tx.orders {
		m.numbers[o.OrderNumber] = true
	}
	m.orders = append(m.orders, tx.orders...)
	m.items = append(m.items, tx.items...)
	m.outbox = append(m.outbox, tx.outbox...)
}

func (m *memStore) undo(tx *memTx) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, q := range tx.decremented {
		m.variants[id].Stock += q
	}
}
