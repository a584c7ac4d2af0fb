package domain

import (
	"fmt"
	"time"
)

type OrderID int64
type MenuItemID int64

type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusCompleted OrderStatus = "Completed"
	StatusCancelled OrderStatus = "Cancelled"
)

// ParseStatus maps the wire representation onto a known status.
func ParseStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case StatusPending, StatusCompleted, StatusCancelled:
		return OrderStatus(s), nil
	}
	return "", &ValidationError{Reason: fmt.Sprintf("unknown order status %q", s)}
}

// Terminal reports whether no further transition may leave the status.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition implements the order state machine. Pending is the only
// non-terminal state; it may move to Completed or Cancelled and nowhere else.
func CanTransition(from, to OrderStatus) bool {
	return from == StatusPending && (to == StatusCompleted || to == StatusCancelled)
}

type OrderItem struct {
	MenuItemID MenuItemID `json:"menu_item_id"`
	Quantity   int32      `json:"quantity"`

	// Name and PriceCents are filled from the catalog join on reads.
	Name       string `json:"name,omitempty"`
	PriceCents int64  `json:"price_cents,omitempty"`
}

type Order struct {
	ID        OrderID     `json:"id"`
	ShortCode string      `json:"short_code"`
	StudentID string      `json:"student_id"`
	Status    OrderStatus `json:"status"`
	Items     []OrderItem `json:"items,omitempty"`

	// TotalCents is derived from catalog prices, in minimal currency units.
	TotalCents int64 `json:"total_cents"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
