// Package catalog is the read-only boundary to the menu. Menu CRUD lives
// elsewhere; the order engine only resolves ids to price and availability.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nazeru/canteen-orders-go/internal/order/domain"
)

var ErrItemNotFound = errors.New("menu item not found")

type Item struct {
	ID         domain.MenuItemID
	Name       string
	PriceCents int64
	Available  bool
}

// Reader resolves menu items at order time. The catalog remains the source of
// truth for price; order items store no price snapshot.
type Reader interface {
	GetItem(ctx context.Context, id domain.MenuItemID) (Item, error)
}

type PGReader struct {
	pool *pgxpool.Pool
}

func NewPGReader(pool *pgxpool.Pool) *PGReader {
	return &PGReader{pool: pool}
}

func (r *PGReader) GetItem(ctx context.Context, id domain.MenuItemID) (Item, error) {
	var it Item
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, price_cents, available FROM menu_items WHERE id=$1`, int64(id),
	).Scan(&it.ID, &it.Name, &it.PriceCents, &it.Available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, fmt.Errorf("query menu item %d: %w", id, err)
	}
	return it, nil
}
