package repositories

import (
	"commerce_backend/internal/models"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq" // For pq.Error
)

type orderRepository struct {
	executor SQLExecutor
}

// NewOrderRepository creates an OrderRepository bound to a connection or transaction.
func NewOrderRepository(executor SQLExecutor) OrderRepository {
	return &orderRepository{executor: executor}
}

// --- Order Methods ---

func (r *orderRepository) CreateOrder(order *models.Order) error {
	query := `INSERT INTO orders
	            (restaurant_id, order_number, status, total_cents, actor_id, notes, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id`

	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}

	var actorID sql.NullInt64
	if order.ActorID != nil {
		actorID = sql.NullInt64{Int64: *order.ActorID, Valid: true}
	}

	err := r.executor.QueryRow(query,
		order.RestaurantID, order.OrderNumber, order.Status, order.TotalCents, actorID, order.Notes,
		order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: order number %s (constraint: %s)", ErrDuplicateKey, order.OrderNumber, pqErr.Constraint)
		}
		return fmt.Errorf("%w: creating order: %v", ErrDatabaseError, err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if err := r.createOrderItem(item, order.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

const orderColumns = `id, restaurant_id, order_number, status, total_cents, actor_id, notes, refunded_at, created_at, updated_at`

func scanOrder(s scanner, o *models.Order, extra ...interface{}) error {
	var actorID sql.NullInt64
	var refundedAt sql.NullTime
	dest := []interface{}{&o.ID, &o.RestaurantID, &o.OrderNumber, &o.Status, &o.TotalCents, &actorID, &o.Notes, &refundedAt, &o.CreatedAt, &o.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	if actorID.Valid {
		o.ActorID = &actorID.Int64
	}
	if refundedAt.Valid {
		o.RefundedAt = &refundedAt.Time
	}
	return nil
}

func (r *orderRepository) GetOrder(restaurantID, orderID int64) (*models.Order, error) {
	return r.getOrder(`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND restaurant_id = $2`, restaurantID, orderID)
}

// LockOrder serializes concurrent transitions on the same order.
func (r *orderRepository) LockOrder(restaurantID, orderID int64) (*models.Order, error) {
	return r.getOrder(`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND restaurant_id = $2 FOR UPDATE`, restaurantID, orderID)
}

func (r *orderRepository) getOrder(query string, restaurantID, orderID int64) (*models.Order, error) {
	order := &models.Order{}
	if err := scanOrder(r.executor.QueryRow(query, orderID, restaurantID), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting order by ID %d: %v", ErrDatabaseError, orderID, err)
	}
	items, err := r.getOrderItems(order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) ListOrders(filters models.OrderFilters) ([]models.Order, int, error) {
	orders := []models.Order{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + orderColumns + `, COUNT(*) OVER() AS total_count FROM orders`)

	conditions := []string{"restaurant_id = $1"}
	args := []interface{}{filters.RestaurantID}
	argCounter := 2

	if filters.Status != nil && *filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argCounter))
		args = append(args, *filters.Status)
		argCounter++
	}
	if filters.Date != nil && *filters.Date != "" {
		parsedDate, err := time.Parse("2006-01-02", *filters.Date)
		if err == nil {
			startOfDay := time.Date(parsedDate.Year(), parsedDate.Month(), parsedDate.Day(), 0, 0, 0, 0, parsedDate.Location())
			conditions = append(conditions, fmt.Sprintf("created_at >= $%d AND created_at < $%d", argCounter, argCounter+1))
			args = append(args, startOfDay, startOfDay.AddDate(0, 0, 1))
			argCounter += 2
		}
	}

	queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")

	if filters.PageSize > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argCounter))
		args = append(args, filters.PageSize)
		argCounter++
		if filters.Page > 0 {
			queryBuilder.WriteString(fmt.Sprintf(" OFFSET $%d", argCounter))
			args = append(args, (filters.Page-1)*filters.PageSize)
		}
	}

	rows, err := r.executor.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: querying orders: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var o models.Order
		if err := scanOrder(rows, &o, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning order: %v", ErrDatabaseError, err)
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating order rows: %v", ErrDatabaseError, err)
	}
	return orders, totalCount, nil
}

func (r *orderRepository) UpdateOrderStatus(orderID int64, status models.OrderStatus, updatedAt time.Time) error {
	query := `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.executor.Exec(query, status, updatedAt, orderID)
	if err != nil {
		return fmt.Errorf("%w: updating order status for ID %d: %v", ErrDatabaseError, orderID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: getting rows affected for order status update ID %d: %v", ErrDatabaseError, orderID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepository) MarkRefunded(orderID int64, at time.Time) error {
	result, err := r.executor.Exec(`UPDATE orders SET refunded_at = $1, updated_at = $1 WHERE id = $2`, at, orderID)
	if err != nil {
		return fmt.Errorf("%w: marking order %d refunded: %v", ErrDatabaseError, orderID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- OrderItem Methods ---

func (r *orderRepository) createOrderItem(item *models.OrderItem, createdAt time.Time) error {
	query := `INSERT INTO order_items
	            (order_id, item_id, item_name, quantity, price_cents, selected_options, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id`
	item.CreatedAt = createdAt

	err := r.executor.QueryRow(query,
		item.OrderID, item.ItemID, item.ItemName, item.Quantity, item.PriceCents, item.SelectedOptions, item.CreatedAt,
	).Scan(&item.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return fmt.Errorf("%w: creating order item (constraint: %s): %v", ErrDatabaseError, pqErr.Constraint, err)
		}
		return fmt.Errorf("%w: creating order item: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *orderRepository) getOrderItems(orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	query := `SELECT id, order_id, item_id, item_name, quantity, price_cents, selected_options, created_at
	          FROM order_items
	          WHERE order_id = $1
	          ORDER BY id`

	rows, err := r.executor.Query(query, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying order items for order ID %d: %v", ErrDatabaseError, orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ItemID, &item.ItemName, &item.Quantity, &item.PriceCents,
			&item.SelectedOptions, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scanning order item for order ID %d: %v", ErrDatabaseError, orderID, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating order item rows for order ID %d: %v", ErrDatabaseError, orderID, err)
	}
	return items, nil
}
