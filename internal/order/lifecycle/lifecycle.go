// Package lifecycle orchestrates order creation and the status state machine.
// It validates input, prices the cart from the catalog, reserves a short code
// with a bounded retry loop, delegates atomic persistence to the store and
// fans change signals out on the notification bus.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/nazeru/canteen-orders-go/internal/catalog"
	"github.com/nazeru/canteen-orders-go/internal/order/domain"
	"github.com/nazeru/canteen-orders-go/internal/order/store"
	"github.com/nazeru/canteen-orders-go/pkg/contracts"
	"github.com/nazeru/canteen-orders-go/pkg/logging"
	"github.com/nazeru/canteen-orders-go/pkg/metrics"
)

// shortCodeAttempts bounds the regenerate-and-retry loop on short-code
// collisions before the request fails with a PersistenceError.
const shortCodeAttempts = 5

// Store is the persistence contract the manager drives.
type Store interface {
	Create(ctx context.Context, in store.CreateOrder) (*domain.Order, error)
	GetByID(ctx context.Context, id domain.OrderID) (*domain.Order, error)
	GetStatus(ctx context.Context, id domain.OrderID) (domain.OrderStatus, error)
	ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id domain.OrderID, from, to domain.OrderStatus) error
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
}

// Publisher is the bus write side. Publish must never block or fail.
type Publisher interface {
	Publish(evt contracts.Event)
}

// CodeGenerator produces candidate short codes.
type CodeGenerator interface {
	Next() string
}

type Manager struct {
	store   Store
	catalog catalog.Reader
	codes   CodeGenerator
	bus     Publisher
	logger  *log.Entry
}

func NewManager(st Store, cat catalog.Reader, codes CodeGenerator, pub Publisher, logger *log.Entry) *Manager {
	return &Manager{store: st, catalog: cat, codes: codes, bus: pub, logger: logger}
}

type RequestedItem struct {
	MenuItemID domain.MenuItemID `json:"menu_item_id"`
	Quantity   int32             `json:"quantity"`
}

type PlaceOrderInput struct {
	StudentID      string
	IdempotencyKey string
	Items          []RequestedItem
}

// OrderSummary is the checkout result handed back to the client.
type OrderSummary struct {
	OrderID    domain.OrderID     `json:"order_id"`
	ShortCode  string             `json:"short_code"`
	TotalCents int64              `json:"total_cents"`
	Status     domain.OrderStatus `json:"status"`
	Replayed   bool               `json:"replayed,omitempty"`
}

// PlaceOrder validates the cart, prices it server-side from the catalog and
// persists the order atomically. The total never trusts client-supplied
// prices. On success an order_created event goes out on the bus.
func (m *Manager) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*OrderSummary, error) {
	if in.StudentID == "" {
		return nil, &domain.ValidationError{Reason: "student id is required"}
	}
	if len(in.Items) == 0 {
		return nil, &domain.ValidationError{Reason: "order must contain at least one item"}
	}

	var total int64
	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, req := range in.Items {
		if req.Quantity < 1 {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("quantity for item %d must be >= 1", req.MenuItemID)}
		}
		it, err := m.catalog.GetItem(ctx, req.MenuItemID)
		if err != nil {
			if errors.Is(err, catalog.ErrItemNotFound) {
				return nil, &domain.ValidationError{Reason: fmt.Sprintf("unknown menu item %d", req.MenuItemID)}
			}
			return nil, &domain.PersistenceError{Op: "resolve menu item", Err: err}
		}
		if !it.Available {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("menu item %q is unavailable", it.Name)}
		}
		total += it.PriceCents * int64(req.Quantity)
		items = append(items, domain.OrderItem{MenuItemID: req.MenuItemID, Quantity: req.Quantity})
	}

	if in.IdempotencyKey != "" {
		if existing, err := m.store.FindByIdempotencyKey(ctx, in.IdempotencyKey); err == nil {
			return &OrderSummary{
				OrderID:    existing.ID,
				ShortCode:  existing.ShortCode,
				TotalCents: existing.TotalCents,
				Status:     existing.Status,
				Replayed:   true,
			}, nil
		}
	}

	order, err := m.createWithRetry(ctx, in, items)
	if err != nil {
		// A concurrent replay of the same key lost the race to the first
		// writer; hand back what that writer stored.
		if errors.Is(err, domain.ErrIdempotencyReplay) && in.IdempotencyKey != "" {
			if existing, qerr := m.store.FindByIdempotencyKey(ctx, in.IdempotencyKey); qerr == nil {
				return &OrderSummary{
					OrderID:    existing.ID,
					ShortCode:  existing.ShortCode,
					TotalCents: existing.TotalCents,
					Status:     existing.Status,
					Replayed:   true,
				}, nil
			}
		}
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	m.logger.WithFields(log.Fields{
		logging.FieldOrderID:   order.ID,
		logging.FieldShortCode: order.ShortCode,
		logging.FieldStep:      "place_order",
	}).Info("order created")

	m.bus.Publish(contracts.NewOrderCreated(int64(order.ID), order.ShortCode))

	return &OrderSummary{
		OrderID:    order.ID,
		ShortCode:  order.ShortCode,
		TotalCents: total,
		Status:     order.Status,
	}, nil
}

func (m *Manager) createWithRetry(ctx context.Context, in PlaceOrderInput, items []domain.OrderItem) (*domain.Order, error) {
	var lastErr error
	for attempt := 0; attempt < shortCodeAttempts; attempt++ {
		order, err := m.store.Create(ctx, store.CreateOrder{
			StudentID:      in.StudentID,
			ShortCode:      m.codes.Next(),
			IdempotencyKey: in.IdempotencyKey,
			Items:          items,
		})
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, domain.ErrShortCodeTaken) {
			return nil, err
		}
		lastErr = err
		m.logger.WithField(logging.FieldStep, "short_code_retry").
			WithField("attempt", attempt+1).Warn("short code collision, regenerating")
	}
	return nil, &domain.PersistenceError{Op: "reserve short code", Err: lastErr}
}

// Transition moves an order to newStatus, enforcing the state machine before
// touching the store. The conditional update inside the store settles races;
// a second call with the same terminal target fails rather than being
// silently accepted.
func (m *Manager) Transition(ctx context.Context, id domain.OrderID, newStatus domain.OrderStatus) error {
	current, err := m.store.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanTransition(current, newStatus) {
		metrics.StatusTransitions.WithLabelValues(string(newStatus), "rejected").Inc()
		return &domain.InvalidTransitionError{From: current, To: newStatus}
	}

	if err := m.store.UpdateStatus(ctx, id, current, newStatus); err != nil {
		metrics.StatusTransitions.WithLabelValues(string(newStatus), "rejected").Inc()
		return err
	}

	metrics.StatusTransitions.WithLabelValues(string(newStatus), "applied").Inc()
	m.logger.WithFields(log.Fields{
		logging.FieldOrderID: id,
		logging.FieldStatus:  string(newStatus),
		logging.FieldStep:    "transition",
	}).Info("order status changed")

	m.bus.Publish(contracts.NewOrderUpdated(int64(id), string(newStatus)))
	return nil
}

// Cancel is shorthand for a transition to Cancelled. A student cancel is only
// legal while the order is Pending, which the general transition rule already
// enforces.
func (m *Manager) Cancel(ctx context.Context, id domain.OrderID) error {
	return m.Transition(ctx, id, domain.StatusCancelled)
}

// Get exposes the store read for API handlers.
func (m *Manager) Get(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return m.store.GetByID(ctx, id)
}

// ListByStatus exposes the status listing for API handlers.
func (m *Manager) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	return m.store.ListByStatus(ctx, status)
}
