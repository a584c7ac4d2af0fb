// Package store owns the persisted order and order_items rows. All
// cross-request concurrency control lives in the database: the transaction
// spanning header and item inserts, the unique constraint on short_code, and
// the conditional status update that arbitrates racing transitions.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nazeru/canteen-orders-go/internal/order/domain"
)

type PGStore struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

type CreateOrder struct {
	StudentID      string
	ShortCode      string
	IdempotencyKey string
	Items          []domain.OrderItem
}

// Create writes the order header, every line item and, when present, the
// idempotency key in a single transaction. Either all rows land or none do,
// so a reader can never observe an order without items.
func (s *PGStore) Create(ctx context.Context, in CreateOrder) (*domain.Order, error) {
	if len(in.Items) == 0 {
		return nil, &domain.ValidationError{Reason: "order must contain at least one item"}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "begin create order", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	order := &domain.Order{
		ShortCode: in.ShortCode,
		StudentID: in.StudentID,
		Status:    domain.StatusPending,
		Items:     in.Items,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO orders(short_code, student_id, status)
		 VALUES($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		in.ShortCode, in.StudentID, string(domain.StatusPending),
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "short_code") {
			return nil, domain.ErrShortCodeTaken
		}
		return nil, &domain.PersistenceError{Op: "insert order header", Err: err}
	}

	for _, it := range in.Items {
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_items(order_id, menu_item_id, quantity) VALUES($1, $2, $3)`,
			int64(order.ID), int64(it.MenuItemID), it.Quantity,
		); err != nil {
			return nil, &domain.PersistenceError{Op: "insert order item", Err: err}
		}
	}

	if in.IdempotencyKey != "" {
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_idempotency(idempotency_key, order_id) VALUES($1, $2)`,
			in.IdempotencyKey, int64(order.ID),
		); err != nil {
			if isUniqueViolation(err, "idempotency") {
				return nil, domain.ErrIdempotencyReplay
			}
			return nil, &domain.PersistenceError{Op: "insert idempotency key", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err, "short_code") {
			return nil, domain.ErrShortCodeTaken
		}
		return nil, &domain.PersistenceError{Op: "commit create order", Err: err}
	}
	return order, nil
}

// GetByID loads the order header and its items joined to the catalog for
// display name and current unit price. The total reflects live catalog prices.
func (s *PGStore) GetByID(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	var order domain.Order
	err := s.pool.QueryRow(ctx,
		`SELECT id, short_code, student_id, status, created_at, updated_at
		 FROM orders WHERE id=$1`, int64(id),
	).Scan(&order.ID, &order.ShortCode, &order.StudentID, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{OrderID: id}
		}
		return nil, &domain.PersistenceError{Op: "query order", Err: err}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT oi.menu_item_id, oi.quantity, mi.name, mi.price_cents
		 FROM order_items oi
		 JOIN menu_items mi ON oi.menu_item_id = mi.id
		 WHERE oi.order_id=$1
		 ORDER BY oi.id`, int64(id))
	if err != nil {
		return nil, &domain.PersistenceError{Op: "query order items", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.MenuItemID, &it.Quantity, &it.Name, &it.PriceCents); err != nil {
			return nil, &domain.PersistenceError{Op: "scan order item", Err: err}
		}
		order.Items = append(order.Items, it)
		order.TotalCents += it.PriceCents * int64(it.Quantity)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "iterate order items", Err: err}
	}
	return &order, nil
}

// GetStatus reads the current status without loading items.
func (s *PGStore) GetStatus(ctx context.Context, id domain.OrderID) (domain.OrderStatus, error) {
	var status domain.OrderStatus
	err := s.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, int64(id)).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", &domain.NotFoundError{OrderID: id}
		}
		return "", &domain.PersistenceError{Op: "query order status", Err: err}
	}
	return status, nil
}

// ListByStatus returns order headers most-recent-first; paging is the
// caller's concern.
func (s *PGStore) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, short_code, student_id, status, created_at, updated_at
		 FROM orders WHERE status=$1 ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list orders by status", Err: err}
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.ShortCode, &o.StudentID, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, &domain.PersistenceError{Op: "scan order", Err: err}
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "iterate orders", Err: err}
	}
	return out, nil
}

// UpdateStatus applies the transition only when the stored status still equals
// from. Racing callers resolve here: the loser updates zero rows and gets an
// InvalidTransitionError carrying the status the winner left behind.
func (s *PGStore) UpdateStatus(ctx context.Context, id domain.OrderID, from, to domain.OrderStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`,
		int64(id), string(from), string(to))
	if err != nil {
		return &domain.PersistenceError{Op: "update order status", Err: err}
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	current, err := s.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	return &domain.InvalidTransitionError{From: current, To: to}
}

// FindByIdempotencyKey returns the order recorded for a previously seen
// checkout key, or a NotFoundError when the key is new.
func (s *PGStore) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT order_id FROM order_idempotency WHERE idempotency_key=$1`, key).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{}
		}
		return nil, &domain.PersistenceError{Op: "query idempotency key", Err: err}
	}
	return s.GetByID(ctx, domain.OrderID(id))
}

// isUniqueViolation reports whether err is a Postgres unique-constraint hit
// on a constraint whose name contains hint.
func isUniqueViolation(err error, hint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, hint)
	}
	return false
}
