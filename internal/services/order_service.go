package services

import (
	"commerce_backend/internal/models"
	"commerce_backend/internal/notify"
	"commerce_backend/internal/repositories"
	"commerce_backend/pkg/utils"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Custom Errors
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidOrderStatus = errors.New("invalid order status")
	ErrAlreadyRefunded    = errors.New("order has already been refunded")
)

// dispatchTimeout bounds a single fire-and-forget event delivery.
const dispatchTimeout = 10 * time.Second

// --- Data Transfer Objects (DTOs) ---

// CreateOrderItemRequest is one requested line.
type CreateOrderItemRequest struct {
	ItemID          int64                  `json:"item_id" binding:"required,gt=0"`
	Quantity        int                    `json:"quantity" binding:"required,gt=0"`
	SelectedOptions models.SelectedOptions `json:"selected_options"`
}

// CreateOrderRequest is used for creating a new order.
type CreateOrderRequest struct {
	Notes *string                  `json:"notes"`
	Items []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// UpdateOrderStatusRequest is used for updating the status of an order.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,order_status"`
}

// --- End of DTOs ---

// --- OrderService Interface ---
type OrderService interface {
	CreateOrder(ctx context.Context, restaurantID int64, req CreateOrderRequest, actorID *int64) (*models.Order, error)
	GetOrder(ctx context.Context, restaurantID, orderID int64) (*models.Order, error)
	ListOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error)
	TransitionOrder(ctx context.Context, restaurantID, orderID int64, req UpdateOrderStatusRequest, actorID *int64) (*models.Order, error)
	RefundOrder(ctx context.Context, restaurantID, orderID int64, actorID *int64) (*models.Order, error)
}

// --- orderService Implementation ---
type orderService struct {
	store       repositories.Store
	reservation ReservationService
	dispatcher  notify.Dispatcher
}

// NewOrderService creates a new instance of OrderService. dispatcher may be nil.
func NewOrderService(store repositories.Store, reservation ReservationService, dispatcher notify.Dispatcher) OrderService {
	return &orderService{
		store:       store,
		reservation: reservation,
		dispatcher:  dispatcher,
	}
}

// --- Method Implementations ---

func (s *orderService) CreateOrder(ctx context.Context, restaurantID int64, req CreateOrderRequest, actorID *int64) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: an order needs at least one item", ErrValidation)
	}

	order := &models.Order{
		RestaurantID: restaurantID,
		OrderNumber:  newOrderNumber(),
		Status:       models.OrderPending,
		ActorID:      actorID,
		Notes:        req.Notes,
		Items:        make([]models.OrderItem, 0, len(req.Items)),
	}
	for _, itemReq := range req.Items {
		order.Items = append(order.Items, models.OrderItem{
			ItemID:          itemReq.ItemID,
			Quantity:        itemReq.Quantity,
			SelectedOptions: itemReq.SelectedOptions,
		})
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()

	if err := s.reservation.Reserve(uow, order); err != nil {
		utils.LogWarn("Order rejected", map[string]interface{}{
			"restaurant_id": restaurantID, "order_number": order.OrderNumber, "reason": err.Error(),
		})
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order transaction: %w", err)
	}

	utils.LogInfo("Order placed", map[string]interface{}{
		"restaurant_id": restaurantID, "order_id": order.ID, "order_number": order.OrderNumber,
		"lines": len(order.Items), "total_cents": order.TotalCents,
	})
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, restaurantID, orderID int64) (*models.Order, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()

	order, err := uow.GetOrder(restaurantID, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order by ID from repository: %w", err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error) {
	if filters.Status != nil && *filters.Status != "" && !models.IsValidOrderStatus(*filters.Status) {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidOrderStatus, *filters.Status)
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 {
		filters.PageSize = 10
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()

	orders, totalCount, err := uow.ListOrders(filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get orders: %w", err)
	}
	return orders, totalCount, nil
}

func (s *orderService) TransitionOrder(ctx context.Context, restaurantID, orderID int64, req UpdateOrderStatusRequest, actorID *int64) (*models.Order, error) {
	if !models.IsValidOrderStatus(req.Status) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOrderStatus, req.Status)
	}
	target := models.OrderStatus(req.Status)

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()

	order, err := uow.LockOrder(restaurantID, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to fetch order for status update: %w", err)
	}
	previous := order.Status
	if !CanTransition(previous, target) {
		return nil, &IllegalTransitionError{OrderID: orderID, From: previous, To: target}
	}

	// A refunded order already gave its stock back.
	if target == models.OrderCancelled && order.RefundedAt == nil {
		if err := s.reservation.Restore(uow, order, order.OrderNumber, actorID); err != nil {
			return nil, fmt.Errorf("failed to restore inventory for order %s: %w", order.OrderNumber, err)
		}
	}

	now := time.Now()
	if err := uow.UpdateOrderStatus(orderID, target, now); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to update order status in repository: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction for order status update: %w", err)
	}
	order.Status = target
	order.UpdatedAt = now

	utils.LogInfo("Order status changed", map[string]interface{}{
		"restaurant_id": restaurantID, "order_id": orderID, "from": previous, "to": target,
	})
	if notifies(target) {
		s.dispatch(notify.OrderEvent{
			RestaurantID:   restaurantID,
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			PreviousStatus: previous,
			Status:         target,
			TotalCents:     order.TotalCents,
			ActorID:        actorID,
			OccurredAt:     now,
		})
	}
	return order, nil
}

// RefundOrder reverses a payment: stock comes back unless cancellation already
// returned it, and the sales counters are reversed. Status is left unchanged.
func (s *orderService) RefundOrder(ctx context.Context, restaurantID, orderID int64, actorID *int64) (*models.Order, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()

	order, err := uow.LockOrder(restaurantID, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to fetch order for refund: %w", err)
	}
	if order.RefundedAt != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRefunded, order.OrderNumber)
	}

	if order.Status != models.OrderCancelled {
		if err := s.reservation.Restore(uow, order, "refund "+order.OrderNumber, actorID); err != nil {
			return nil, fmt.Errorf("failed to restore inventory for refund of %s: %w", order.OrderNumber, err)
		}
	}
	if err := s.reservation.ReverseSales(uow, order); err != nil {
		return nil, err
	}
	now := time.Now()
	if err := uow.MarkRefunded(orderID, now); err != nil {
		return nil, fmt.Errorf("failed to mark order refunded: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit refund: %w", err)
	}
	order.RefundedAt = &now
	order.UpdatedAt = now

	utils.LogInfo("Order refunded", map[string]interface{}{
		"restaurant_id": restaurantID, "order_id": orderID, "total_cents": order.TotalCents,
	})
	return order, nil
}

func (s *orderService) dispatch(event notify.OrderEvent) {
	if s.dispatcher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := s.dispatcher.Dispatch(ctx, event); err != nil {
			utils.LogError(err, "OrderService: dispatching order event")
		}
	}()
}

func newOrderNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(id[:12])
}
