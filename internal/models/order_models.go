package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// OrderStatus values. Only pending, fulfilled, completed and cancelled take part in
// inventory transitions; paid and refunded belong to the payment side.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderFulfilled OrderStatus = "fulfilled"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderPaid      OrderStatus = "paid"
	OrderRefunded  OrderStatus = "refunded"
)

// IsValidOrderStatus reports whether s is one of the known statuses.
func IsValidOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case OrderPending, OrderFulfilled, OrderCompleted, OrderCancelled, OrderPaid, OrderRefunded:
		return true
	}
	return false
}

// SelectedOptions maps an option group ID to the chosen option IDs.
// Stored as JSONB on order_items.
type SelectedOptions map[int64][]int64

// Value implements driver.Valuer.
func (s SelectedOptions) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *SelectedOptions) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = SelectedOptions{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into SelectedOptions", src)
	}
	out := SelectedOptions{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decoding selected options: %w", err)
	}
	*s = out
	return nil
}

// Order represents a wholesale order placed against a restaurant's catalog
type Order struct {
	ID           int64       `json:"id" db:"id"`
	RestaurantID int64       `json:"restaurant_id" db:"restaurant_id"`
	OrderNumber  string      `json:"order_number" db:"order_number"`
	Status       OrderStatus `json:"status" db:"status"`
	TotalCents   int64       `json:"total_cents" db:"total_cents"`
	ActorID      *int64      `json:"actor_id,omitempty" db:"actor_id"`
	Notes        *string     `json:"notes,omitempty" db:"notes"`
	RefundedAt   *time.Time  `json:"refunded_at,omitempty" db:"refunded_at"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
	Items        []OrderItem `json:"items"`
}

// OrderItem is a line item; PriceCents is the unit price snapshotted at order time.
type OrderItem struct {
	ID              int64           `json:"id" db:"id"`
	OrderID         int64           `json:"order_id" db:"order_id"`
	ItemID          int64           `json:"item_id" db:"item_id"`
	ItemName        string          `json:"item_name" db:"item_name"`
	Quantity        int             `json:"quantity" db:"quantity"`
	PriceCents      int64           `json:"price_cents" db:"price_cents"`
	SelectedOptions SelectedOptions `json:"selected_options" db:"selected_options"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// LineTotalCents is quantity times the snapshotted unit price.
func (oi OrderItem) LineTotalCents() int64 {
	return int64(oi.Quantity) * oi.PriceCents
}

// ComputeTotal returns the sum of every line total.
func (o *Order) ComputeTotal() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.LineTotalCents()
	}
	return total
}

// OrderFilters defines the available filters for querying orders.
// This struct is used by both the service and repository layers.
type OrderFilters struct {
	RestaurantID int64   `form:"-"`
	Status       *string `form:"status"`
	Date         *string `form:"date"` // Expected format YYYY-MM-DD
	Page         int     `form:"page"`
	PageSize     int     `form:"page_size"`
}
