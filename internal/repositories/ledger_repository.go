package repositories

import (
	"commerce_backend/internal/models"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type ledgerRepository struct {
	executor SQLExecutor
}

// NewLedgerRepository creates a LedgerRepository bound to a connection or transaction.
// Row locks taken by LockEntity only mean something when executor is a *sql.Tx.
func NewLedgerRepository(executor SQLExecutor) LedgerRepository {
	return &ledgerRepository{executor: executor}
}

const optionColumns = `o.id, o.group_id, o.item_id, o.restaurant_id, o.name, o.position, o.additional_price_cents,
	o.available, o.stock_quantity, o.damaged_quantity, o.low_stock_threshold, o.stock_status,
	o.total_ordered, o.total_revenue_cents, o.created_at, o.updated_at`

// scanOption expects optionColumns followed by the owning group's tracking flag.
func scanOption(s scanner, o *models.Option) error {
	var qty, damaged, threshold sql.NullInt64
	if err := s.Scan(&o.ID, &o.GroupID, &o.ItemID, &o.RestaurantID, &o.Name, &o.Position, &o.AdditionalPriceCents,
		&o.Available, &qty, &damaged, &threshold, &o.StockStatus,
		&o.TotalOrdered, &o.TotalRevenueCents, &o.CreatedAt, &o.UpdatedAt, &o.GroupTracked); err != nil {
		return err
	}
	o.StockQuantity = nullIntPtr(qty)
	o.DamagedQuantity = nullIntPtr(damaged)
	o.LowStockThreshold = nullIntPtr(threshold)
	return nil
}

// ledgerTables maps an entity type to its stock table, audit table and audit FK column.
var ledgerTables = map[models.EntityType]struct {
	stock, audit, column string
}{
	models.EntityItem:    {stock: "catalog_items", audit: "item_stock_audits", column: "item_id"},
	models.EntityOption:  {stock: "options", audit: "option_stock_audits", column: "option_id"},
	models.EntityVariant: {stock: "item_variants", audit: "variant_stock_audits", column: "variant_id"},
}

func (r *ledgerRepository) LockEntity(restaurantID int64, ref models.EntityRef) (models.LedgerEntity, error) {
	var (
		entity models.LedgerEntity
		err    error
	)
	switch ref.Type {
	case models.EntityItem:
		item := &models.CatalogItem{}
		err = scanItem(r.executor.QueryRow(`SELECT `+itemColumns+` FROM catalog_items
		                                    WHERE id = $1 AND restaurant_id = $2 FOR UPDATE`, ref.ID, restaurantID), item)
		entity = item
	case models.EntityOption:
		opt := &models.Option{}
		err = scanOption(r.executor.QueryRow(`SELECT `+optionColumns+`, g.enable_inventory_tracking
		                                      FROM options o JOIN option_groups g ON o.group_id = g.id
		                                      WHERE o.id = $1 AND o.restaurant_id = $2 FOR UPDATE OF o`, ref.ID, restaurantID), opt)
		entity = opt
	case models.EntityVariant:
		v := &models.ItemVariant{}
		err = scanVariant(r.executor.QueryRow(`SELECT `+variantColumns+` FROM item_variants
		                                       WHERE id = $1 AND restaurant_id = $2 FOR UPDATE`, ref.ID, restaurantID), v)
		entity = v
	default:
		return nil, fmt.Errorf("unknown ledger entity type %q", ref.Type)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: locking %s: %v", ErrDatabaseError, ref, err)
	}
	return entity, nil
}

func (r *ledgerRepository) SaveStockLevel(entity models.LedgerEntity) error {
	ref := entity.Ref()
	tables, ok := ledgerTables[ref.Type]
	if !ok {
		return fmt.Errorf("unknown ledger entity type %q", ref.Type)
	}
	lvl := entity.Level()
	query := fmt.Sprintf(`UPDATE %s SET stock_quantity = $1, damaged_quantity = $2, low_stock_threshold = $3,
	                        stock_status = $4, updated_at = $5
	                      WHERE id = $6 AND restaurant_id = $7`, tables.stock)
	result, err := r.executor.Exec(query,
		intPtrArg(lvl.StockQuantity), intPtrArg(lvl.DamagedQuantity), intPtrArg(lvl.LowStockThreshold),
		lvl.StockStatus, time.Now(), ref.ID, entity.Tenant(),
	)
	if err != nil {
		return fmt.Errorf("%w: saving stock level for %s: %v", ErrDatabaseError, ref, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ledgerRepository) AppendAudit(audit *models.StockAudit) error {
	tables, ok := ledgerTables[audit.Entity.Type]
	if !ok {
		return fmt.Errorf("unknown ledger entity type %q", audit.Entity.Type)
	}
	query := fmt.Sprintf(`INSERT INTO %s
	          (restaurant_id, %s, audit_type, quantity_change, previous_quantity, new_quantity, reason, actor_id, order_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING id`, tables.audit, tables.column)
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	var actorID, orderID sql.NullInt64
	if audit.ActorID != nil {
		actorID = sql.NullInt64{Int64: *audit.ActorID, Valid: true}
	}
	if audit.OrderID != nil {
		orderID = sql.NullInt64{Int64: *audit.OrderID, Valid: true}
	}

	err := r.executor.QueryRow(query,
		audit.RestaurantID, audit.Entity.ID, audit.AuditType, audit.QuantityChange, audit.PreviousQuantity, audit.NewQuantity,
		audit.Reason, actorID, orderID, audit.CreatedAt,
	).Scan(&audit.ID)
	if err != nil {
		return fmt.Errorf("%w: appending %s audit for %s: %v", ErrDatabaseError, audit.AuditType, audit.Entity, err)
	}
	return nil
}

func (r *ledgerRepository) AddSalesCounters(restaurantID int64, ref models.EntityRef, quantity int, revenueCents int64) error {
	if ref.Type == models.EntityItem {
		return fmt.Errorf("sales counters are not kept for %s", ref)
	}
	tables, ok := ledgerTables[ref.Type]
	if !ok {
		return fmt.Errorf("unknown ledger entity type %q", ref.Type)
	}
	query := fmt.Sprintf(`UPDATE %s SET total_ordered = total_ordered + $1, total_revenue_cents = total_revenue_cents + $2
	                      WHERE id = $3 AND restaurant_id = $4`, tables.stock)
	result, err := r.executor.Exec(query, quantity, revenueCents, ref.ID, restaurantID)
	if err != nil {
		return fmt.Errorf("%w: updating sales counters for %s: %v", ErrDatabaseError, ref, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ledgerRepository) ListAudits(filters models.AuditFilters) ([]models.StockAudit, int, error) {
	audits := []models.StockAudit{}
	totalCount := 0

	var unions []string
	for _, t := range []models.EntityType{models.EntityItem, models.EntityOption, models.EntityVariant} {
		if filters.EntityType != nil && *filters.EntityType != t {
			continue
		}
		tables := ledgerTables[t]
		unions = append(unions, fmt.Sprintf(`SELECT id, restaurant_id, '%s' AS entity_type, %s AS entity_id, audit_type,
		        quantity_change, previous_quantity, new_quantity, reason, actor_id, order_id, created_at FROM %s`,
			t, tables.column, tables.audit))
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT a.*, COUNT(*) OVER() AS total_count FROM (`)
	queryBuilder.WriteString(strings.Join(unions, " UNION ALL "))
	queryBuilder.WriteString(`) a`)

	conditions := []string{"a.restaurant_id = $1"}
	args := []interface{}{filters.RestaurantID}
	argCount := 2

	if filters.EntityID != nil {
		conditions = append(conditions, fmt.Sprintf("a.entity_id = $%d", argCount))
		args = append(args, *filters.EntityID)
		argCount++
	}
	if filters.AuditType != nil {
		conditions = append(conditions, fmt.Sprintf("a.audit_type = $%d", argCount))
		args = append(args, string(*filters.AuditType))
		argCount++
	}
	if filters.OrderID != nil {
		conditions = append(conditions, fmt.Sprintf("a.order_id = $%d", argCount))
		args = append(args, *filters.OrderID)
		argCount++
	}

	queryBuilder.WriteString(" WHERE ")
	queryBuilder.WriteString(strings.Join(conditions, " AND "))
	queryBuilder.WriteString(" ORDER BY a.created_at DESC, a.id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1))
	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)

	rows, err := r.executor.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: listing stock audits: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.StockAudit
		var entityType string
		var actorID, orderID sql.NullInt64
		if err := rows.Scan(
			&a.ID, &a.RestaurantID, &entityType, &a.Entity.ID, &a.AuditType,
			&a.QuantityChange, &a.PreviousQuantity, &a.NewQuantity, &a.Reason, &actorID, &orderID, &a.CreatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning stock audit: %v", ErrDatabaseError, err)
		}
		a.Entity.Type = models.EntityType(entityType)
		if actorID.Valid {
			a.ActorID = &actorID.Int64
		}
		if orderID.Valid {
			a.OrderID = &orderID.Int64
		}
		audits = append(audits, a)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating stock audits: %v", ErrDatabaseError, err)
	}
	return audits, totalCount, nil
}
