package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntityType names the kind of stock-bearing row a ledger mutation targets.
type EntityType string

const (
	EntityItem    EntityType = "item"
	EntityOption  EntityType = "option"
	EntityVariant EntityType = "variant"
)

// EntityRef identifies a ledger entity within its type.
type EntityRef struct {
	Type EntityType `json:"type"`
	ID   int64      `json:"id"`
}

func (r EntityRef) String() string {
	return string(r.Type) + ":" + strconv.FormatInt(r.ID, 10)
}

// Less orders refs by type, then ID. Locks are always taken in this order.
func (r EntityRef) Less(other EntityRef) bool {
	if r.Type != other.Type {
		return r.Type < other.Type
	}
	return r.ID < other.ID
}

// ParseEntityType validates a user supplied entity type.
func ParseEntityType(s string) (EntityType, error) {
	switch t := EntityType(strings.ToLower(strings.TrimSpace(s))); t {
	case EntityItem, EntityOption, EntityVariant:
		return t, nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// StockStatus is the derived availability summary stored next to the quantities.
type StockStatus string

const (
	StockUnlimited  StockStatus = "unlimited"
	StockOutOfStock StockStatus = "out_of_stock"
	StockLow        StockStatus = "low_stock"
	StockIn         StockStatus = "in_stock"
)

// StockLevel holds the quantity fields shared by every ledger entity.
// All quantity fields are nil while tracking is disabled.
type StockLevel struct {
	StockQuantity     *int        `json:"stock_quantity" db:"stock_quantity"`
	DamagedQuantity   *int        `json:"damaged_quantity" db:"damaged_quantity"`
	LowStockThreshold *int        `json:"low_stock_threshold" db:"low_stock_threshold"`
	StockStatus       StockStatus `json:"stock_status" db:"stock_status"`
}

// Quantity returns the stock quantity, treating nil as zero.
func (l *StockLevel) Quantity() int {
	if l.StockQuantity == nil {
		return 0
	}
	return *l.StockQuantity
}

// Damaged returns the damaged quantity, treating nil as zero.
func (l *StockLevel) Damaged() int {
	if l.DamagedQuantity == nil {
		return 0
	}
	return *l.DamagedQuantity
}

// AvailableQuantity is never stored; it is always derived from the two counters.
func (l *StockLevel) AvailableQuantity() int {
	if avail := l.Quantity() - l.Damaged(); avail > 0 {
		return avail
	}
	return 0
}

// Clear nulls every quantity field (tracking disabled or reset).
func (l *StockLevel) Clear() {
	l.StockQuantity = nil
	l.DamagedQuantity = nil
	l.LowStockThreshold = nil
	l.StockStatus = StockUnlimited
}

// LedgerEntity is the capability set shared by items, options and variants.
type LedgerEntity interface {
	Ref() EntityRef
	Label() string
	Level() *StockLevel
	TracksStock() bool
	AllowsOversell() bool
	Tenant() int64
}

// AuditType classifies a stock audit row.
type AuditType string

const (
	AuditRestock          AuditType = "restock"
	AuditDamaged          AuditType = "damaged"
	AuditManualAdjustment AuditType = "manual_adjustment"
	AuditOrderPlaced      AuditType = "order_placed"
	AuditOrderCancelled   AuditType = "order_cancelled"
	AuditStatusChange     AuditType = "status_change"
)

// IsValidAuditType reports whether s names a known audit type.
func IsValidAuditType(s string) bool {
	switch AuditType(s) {
	case AuditRestock, AuditDamaged, AuditManualAdjustment, AuditOrderPlaced, AuditOrderCancelled, AuditStatusChange:
		return true
	}
	return false
}

// StockAudit is an append-only record of one quantity change. Never updated or deleted.
type StockAudit struct {
	ID               int64     `json:"id" db:"id"`
	RestaurantID     int64     `json:"restaurant_id" db:"restaurant_id"`
	Entity           EntityRef `json:"entity"`
	AuditType        AuditType `json:"audit_type" db:"audit_type"`
	QuantityChange   int       `json:"quantity_change" db:"quantity_change"`
	PreviousQuantity int       `json:"previous_quantity" db:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity" db:"new_quantity"`
	Reason           *string   `json:"reason,omitempty" db:"reason"`
	ActorID          *int64    `json:"actor_id,omitempty" db:"actor_id"`
	OrderID          *int64    `json:"order_id,omitempty" db:"order_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// AuditFilters narrows an audit trail query.
type AuditFilters struct {
	RestaurantID int64
	EntityType   *EntityType
	EntityID     *int64
	AuditType    *AuditType
	OrderID      *int64
	Page         int
	PageSize     int
}

// IntPtr is a small helper for optional quantity fields.
func IntPtr(v int) *int {
	return &v
}
