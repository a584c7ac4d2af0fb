package contracts

import (
	"time"

	"github.com/google/uuid"
)

// Event is the refresh signal fanned out after an order mutation. It carries
// just enough to trigger a client-side refetch, never full order state;
// consumers re-query the store for authoritative data.
type Event struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	OrderID   int64     `json:"order_id"`
	ShortCode string    `json:"short_code,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	EventOrderCreated = "order_created"
	EventOrderUpdated = "order_updated"
)

func NewOrderCreated(orderID int64, shortCode string) Event {
	return Event{
		EventID:   uuid.NewString(),
		Type:      EventOrderCreated,
		OrderID:   orderID,
		ShortCode: shortCode,
		CreatedAt: time.Now().UTC(),
	}
}

func NewOrderUpdated(orderID int64, status string) Event {
	return Event{
		EventID:   uuid.NewString(),
		Type:      EventOrderUpdated,
		OrderID:   orderID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
}
