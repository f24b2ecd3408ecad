package repositories

import (
	"context"
	"time"

	"commerce_backend/internal/models"
)

// Store opens units of work. Every call is scoped by an explicit restaurant ID.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Close() error
}

// UnitOfWork groups repository calls into one atomic unit. Callers follow the
// Begin / defer Rollback / Commit pattern; Rollback after Commit is a no-op.
type UnitOfWork interface {
	CatalogRepository
	LedgerRepository
	OrderRepository
	Commit() error
	Rollback() error
}

// CatalogRepository covers items, option groups, options and variants.
type CatalogRepository interface {
	CreateItem(item *models.CatalogItem) error
	GetItem(restaurantID, itemID int64) (*models.CatalogItem, error) // Includes groups and options
	ListItems(restaurantID int64, status *models.StockStatus, page, pageSize int) ([]models.CatalogItem, int, error)
	UpdateItemTracking(item *models.CatalogItem) error // Flags and stock level; caller holds the item lock
	CreateOptionGroup(restaurantID int64, group *models.OptionGroup) error
	SetGroupTracking(restaurantID, groupID int64, enabled bool) error
	CreateOption(option *models.Option) error
	CreateVariant(variant *models.ItemVariant) error
	GetVariantByKey(restaurantID, itemID int64, key string) (*models.ItemVariant, error)
	ListVariants(restaurantID, itemID int64) ([]models.ItemVariant, error)
}

// LedgerRepository persists stock levels and their append-only audit trail.
type LedgerRepository interface {
	// LockEntity takes the entity's row lock for the rest of the unit of work and
	// returns its current state.
	LockEntity(restaurantID int64, ref models.EntityRef) (models.LedgerEntity, error)
	SaveStockLevel(entity models.LedgerEntity) error
	AppendAudit(audit *models.StockAudit) error
	AddSalesCounters(restaurantID int64, ref models.EntityRef, quantity int, revenueCents int64) error
	ListAudits(filters models.AuditFilters) ([]models.StockAudit, int, error)
}

// OrderRepository defines the order-related operations.
type OrderRepository interface {
	CreateOrder(order *models.Order) error // Inserts the order and its items
	GetOrder(restaurantID, orderID int64) (*models.Order, error)
	LockOrder(restaurantID, orderID int64) (*models.Order, error)
	UpdateOrderStatus(orderID int64, status models.OrderStatus, updatedAt time.Time) error
	MarkRefunded(orderID int64, at time.Time) error
	ListOrders(filters models.OrderFilters) ([]models.Order, int, error)
}
