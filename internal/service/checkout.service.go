package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"storefront/internal/domain"
	"storefront/internal/infrastructure/payment"
	"storefront/internal/metrics"
	"storefront/internal/repo"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxOrderNumberAttempts bounds retries after an order number collision.
const maxOrderNumberAttempts = 3

type CheckoutService interface {
	Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.Confirmation, error)
}

type CheckoutDeps struct {
	Tx        repo.Transactor
	Resolver  VariantResolver
	Orders    repo.OrderRepo
	Inventory repo.InventoryRepo
	// Outbox is optional. When set, an OrderPlaced event is written in the
	// checkout transaction.
	Outbox      repo.OutboxRepo
	OutboxTopic string
	Tokens      TokenGenerator
	Vault       payment.CardVault
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	Now         func() time.Time
}

type checkoutService struct {
	CheckoutDeps
}

func NewCheckoutService(deps CheckoutDeps) CheckoutService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &checkoutService{CheckoutDeps: deps}
}

// Checkout runs Received -> VariantResolved -> StockChecked, then records the
// order, its line item and the stock decrement in a single transaction.
func (s *checkoutService) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.Confirmation, error) {
	if req.VariantRef == "" || req.Quantity == 0 {
		return nil, s.fail(domain.StateReceived, domain.KindRequestShape, domain.ErrMissingFields)
	}

	variant, err := s.Resolver.Resolve(ctx, req.VariantRef)
	if err != nil {
		kind := domain.KindPersistence
		if errors.Is(err, domain.ErrVariantNotFound) {
			kind = domain.KindNotFound
		}
		return nil, s.fail(domain.StateReceived, kind, err)
	}

	if err := CheckStock(variant, req.Quantity); err != nil {
		return nil, s.fail(domain.StateVariantResolved, domain.KindOf(err), err)
	}

	total := variant.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))
	card := s.Vault.Tokenize(req.Payment)

	for attempt := 1; ; attempt++ {
		number, err := s.Tokens.Generate()
		if err != nil {
			return nil, s.fail(domain.StateStockChecked, domain.KindPersistence, err)
		}

		conf, step, err := s.place(ctx, variant, req, number, total, card)
		if err == nil {
			s.Metrics.CheckoutOutcome(string(domain.StateCompleted))
			s.Logger.Info("order placed",
				zap.String("order_id", conf.OrderID.String()),
				zap.String("order_number", conf.OrderNumber),
				zap.Int64("variant_id", variant.ID),
				zap.Int("quantity", req.Quantity),
				zap.String("total_price", total.StringFixed(2)),
			)
			return conf, nil
		}
		if errors.Is(err, repo.ErrDuplicateOrderNumber) && attempt < maxOrderNumberAttempts {
			s.Logger.Warn("order number collision, retrying", zap.String("order_number", number), zap.Int("attempt", attempt))
			continue
		}
		kind := domain.KindPersistence
		if errors.Is(err, domain.ErrInsufficientStock) {
			kind = domain.KindInsufficientStock
		}
		return nil, s.fail(step, kind, err)
	}
}

func (s *checkoutService) place(
	ctx context.Context,
	variant *domain.VariantWithPrice,
	req domain.CheckoutRequest,
	number string,
	total decimal.Decimal,
	card domain.StoredCard,
) (*domain.Confirmation, domain.CheckoutState, error) {
	order := &domain.Order{
		OrderNumber: number,
		Buyer:       req.Buyer,
		Card:        card,
		TotalPrice:  total,
		Status:      domain.OrderPlaced,
		CreatedAt:   s.Now(),
	}

	step := domain.StateStockChecked
	err := s.Tx.WithinTx(ctx, func(ctx context.Context, tx repo.DBTX) error {
		if _, err := s.Orders.CreateOrder(ctx, tx, order); err != nil {
			return err
		}
		step = domain.StateOrderRecorded

		item := &domain.OrderItem{
			OrderID:   order.ID,
			VariantID: variant.ID,
			Quantity:  req.Quantity,
			UnitPrice: variant.UnitPrice,
			CreatedAt: order.CreatedAt,
		}
		if _, err := s.Orders.AddItem(ctx, tx, item); err != nil {
			return err
		}
		step = domain.StateItemRecorded

		ok, err := s.Inventory.Decrement(ctx, tx, variant.ID, req.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			// Another checkout took the stock after our check.
			return domain.ErrInsufficientStock
		}
		step = domain.StateStockAdjusted

		if s.Outbox == nil {
			return nil
		}
		event, err := s.orderPlacedEvent(order, item)
		if err != nil {
			return err
		}
		return s.Outbox.Insert(ctx, tx, event)
	})
	if err != nil {
		if step != domain.StateStockChecked {
			s.reportOrphan(order, step, err)
		}
		return nil, step, err
	}
	return &domain.Confirmation{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		TxnStatus:   order.Status,
	}, domain.StateCompleted, nil
}

// reportOrphan logs an OrphanedOrderWarning when the transaction could not be
// cleanly undone, so the order may exist without its item or stock
// adjustment. A clean rollback leaves nothing behind and is not reported.
func (s *checkoutService) reportOrphan(order *domain.Order, step domain.CheckoutState, err error) {
	var rbErr *repo.RollbackError
	var commitErr *repo.CommitError
	var reason string
	switch {
	case errors.As(err, &rbErr):
		reason = "rollback failed"
	case errors.As(err, &commitErr):
		reason = "commit outcome unknown"
	default:
		return
	}
	s.Metrics.OrphanedOrder("checkout")
	s.Logger.Warn("OrphanedOrderWarning",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("last_state", string(step)),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func (s *checkoutService) fail(step domain.CheckoutState, kind domain.ErrorKind, err error) error {
	s.Metrics.CheckoutOutcome(string(kind))
	if kind == domain.KindPersistence {
		s.Logger.Error("checkout failed", zap.String("last_state", string(step)), zap.Error(err))
	} else {
		s.Logger.Info("checkout rejected", zap.String("last_state", string(step)), zap.String("kind", string(kind)), zap.Error(err))
	}
	return &domain.CheckoutError{Kind: kind, Step: step, Err: err}
}

func (s *checkoutService) orderPlacedEvent(order *domain.Order, item *domain.OrderItem) (*domain.OutboxEvent, error) {
	eventID := uuid.New()
	payload, err := json.Marshal(domain.OrderPlacedPayload{
		EventID:     eventID,
		EventType:   domain.EventOrderPlaced,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		VariantID:   item.VariantID,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		TotalPrice:  order.TotalPrice,
		OccurredAt:  order.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode order placed event: %w", err)
	}
	return &domain.OutboxEvent{
		EventID: eventID,
		Topic:   s.OutboxTopic,
		Key:     order.ID.String(),
		Payload: payload,
	}, nil
}
