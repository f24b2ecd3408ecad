package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogDispatcher writes events to the process log. Used when no broker is configured.
type LogDispatcher struct{}

func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{}
}

func (d *LogDispatcher) Dispatch(_ context.Context, event OrderEvent) error {
	log.Info().
		Int64("restaurant_id", event.RestaurantID).
		Int64("order_id", event.OrderID).
		Str("order_number", event.OrderNumber).
		Str("previous_status", string(event.PreviousStatus)).
		Str("status", string(event.Status)).
		Msg("Order status event")
	return nil
}

func (d *LogDispatcher) Close() error { return nil }
