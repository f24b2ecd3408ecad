package services

import (
	"commerce_backend/internal/models"
	"errors"
	"fmt"
)

// ErrIllegalTransition is matched by every IllegalTransitionError.
var ErrIllegalTransition = errors.New("illegal order status transition")

// orderTransitions lists the legal targets per status. Statuses missing from the
// table, and the payment statuses, accept no transitions.
var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:   {models.OrderFulfilled, models.OrderCompleted, models.OrderCancelled},
	models.OrderFulfilled: {models.OrderCompleted, models.OrderCancelled},
	models.OrderCompleted: nil,
	models.OrderCancelled: nil,
}

// IllegalTransitionError is returned synchronously, before any side effect.
type IllegalTransitionError struct {
	OrderID int64
	From    models.OrderStatus
	To      models.OrderStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s: order %d cannot move from %s to %s", ErrIllegalTransition, e.OrderID, e.From, e.To)
}

func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to models.OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the legal targets from a status.
func AllowedTransitions(from models.OrderStatus) []models.OrderStatus {
	return append([]models.OrderStatus(nil), orderTransitions[from]...)
}

// notifies reports whether reaching the status fires the order event dispatcher.
func notifies(status models.OrderStatus) bool {
	return status == models.OrderFulfilled || status == models.OrderCompleted
}
