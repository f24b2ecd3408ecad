// Package notify delivers order status events to downstream consumers.
// Delivery is fire-and-forget from the order's point of view: a failed
// dispatch is logged and never affects the committed transition.
package notify

import (
	"context"
	"time"

	"commerce_backend/internal/models"
)

// OrderEvent is published after an order reaches fulfilled or completed.
type OrderEvent struct {
	RestaurantID   int64              `json:"restaurant_id"`
	OrderID        int64              `json:"order_id"`
	OrderNumber    string             `json:"order_number"`
	PreviousStatus models.OrderStatus `json:"previous_status"`
	Status         models.OrderStatus `json:"status"`
	TotalCents     int64              `json:"total_cents"`
	ActorID        *int64             `json:"actor_id,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

type Dispatcher interface {
	Dispatch(ctx context.Context, event OrderEvent) error
	Close() error
}
