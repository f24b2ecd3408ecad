package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"commerce_backend/internal/models"

	"github.com/lib/pq"
)

type catalogRepository struct {
	executor SQLExecutor
}

// NewCatalogRepository creates a CatalogRepository bound to a connection or transaction.
func NewCatalogRepository(executor SQLExecutor) CatalogRepository {
	return &catalogRepository{executor: executor}
}

const itemColumns = `id, restaurant_id, name, price_cents, available, track_inventory, track_variants,
	allow_sale_with_no_stock, stock_quantity, damaged_quantity, low_stock_threshold, stock_status,
	created_at, updated_at`

func scanItem(s scanner, item *models.CatalogItem, extra ...interface{}) error {
	var qty, damaged, threshold sql.NullInt64
	dest := []interface{}{
		&item.ID, &item.RestaurantID, &item.Name, &item.PriceCents, &item.Available, &item.TrackInventory, &item.TrackVariants,
		&item.AllowSaleWithNoStock, &qty, &damaged, &threshold, &item.StockStatus,
		&item.CreatedAt, &item.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	item.StockQuantity = nullIntPtr(qty)
	item.DamagedQuantity = nullIntPtr(damaged)
	item.LowStockThreshold = nullIntPtr(threshold)
	return nil
}

func (r *catalogRepository) CreateItem(item *models.CatalogItem) error {
	query := `INSERT INTO catalog_items
	          (restaurant_id, name, price_cents, available, track_inventory, track_variants, allow_sale_with_no_stock,
	           stock_quantity, damaged_quantity, low_stock_threshold, stock_status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	          RETURNING id`
	currentTime := time.Now()
	item.CreatedAt, item.UpdatedAt = currentTime, currentTime

	err := r.executor.QueryRow(query,
		item.RestaurantID, item.Name, item.PriceCents, item.Available, item.TrackInventory, item.TrackVariants, item.AllowSaleWithNoStock,
		intPtrArg(item.StockQuantity), intPtrArg(item.DamagedQuantity), intPtrArg(item.LowStockThreshold), item.StockStatus,
		currentTime, currentTime,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("%w: creating catalog item: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *catalogRepository) GetItem(restaurantID, itemID int64) (*models.CatalogItem, error) {
	item := &models.CatalogItem{}
	query := `SELECT ` + itemColumns + ` FROM catalog_items WHERE id = $1 AND restaurant_id = $2`
	if err := scanItem(r.executor.QueryRow(query, itemID, restaurantID), item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting catalog item by ID %d: %v", ErrDatabaseError, itemID, err)
	}

	groups, err := r.loadGroups(item.ID)
	if err != nil {
		return nil, err
	}
	item.OptionGroups = groups
	return item, nil
}

func (r *catalogRepository) loadGroups(itemID int64) ([]models.OptionGroup, error) {
	groups := []models.OptionGroup{}
	rows, err := r.executor.Query(`SELECT id, item_id, name, position, min_select, max_select, required,
	                                      enable_inventory_tracking, created_at, updated_at
	                               FROM option_groups WHERE item_id = $1 ORDER BY position, id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying option groups for item %d: %v", ErrDatabaseError, itemID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var g models.OptionGroup
		if err := rows.Scan(&g.ID, &g.ItemID, &g.Name, &g.Position, &g.MinSelect, &g.MaxSelect, &g.Required,
			&g.EnableInventoryTracking, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning option group: %v", ErrDatabaseError, err)
		}
		groups = append(groups, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating option groups: %v", ErrDatabaseError, err)
	}

	optRows, err := r.executor.Query(`SELECT `+optionColumns+`, g.enable_inventory_tracking
	                                  FROM options o JOIN option_groups g ON o.group_id = g.id
	                                  WHERE o.item_id = $1 ORDER BY o.position, o.id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying options for item %d: %v", ErrDatabaseError, itemID, err)
	}
	defer optRows.Close()
	for optRows.Next() {
		var o models.Option
		if err := scanOption(optRows, &o); err != nil {
			return nil, fmt.Errorf("%w: scanning option: %v", ErrDatabaseError, err)
		}
		for i := range groups {
			if groups[i].ID == o.GroupID {
				groups[i].Options = append(groups[i].Options, o)
			}
		}
	}
	if err = optRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating options: %v", ErrDatabaseError, err)
	}
	return groups, nil
}

func (r *catalogRepository) ListItems(restaurantID int64, status *models.StockStatus, page, pageSize int) ([]models.CatalogItem, int, error) {
	items := []models.CatalogItem{}
	totalCount := 0
	query := `SELECT ` + itemColumns + `, COUNT(*) OVER() AS total_count
	          FROM catalog_items
	          WHERE restaurant_id = $1 AND ($2::text IS NULL OR stock_status = $2)
	          ORDER BY name, id
	          LIMIT $3 OFFSET $4`
	var statusArg sql.NullString
	if status != nil {
		statusArg = sql.NullString{String: string(*status), Valid: true}
	}
	rows, err := r.executor.Query(query, restaurantID, statusArg, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: listing catalog items: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.CatalogItem
		if err := scanItem(rows, &item, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning catalog item: %v", ErrDatabaseError, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating catalog items: %v", ErrDatabaseError, err)
	}
	return items, totalCount, nil
}

func (r *catalogRepository) UpdateItemTracking(item *models.CatalogItem) error {
	query := `UPDATE catalog_items SET
	            track_inventory = $1, track_variants = $2, allow_sale_with_no_stock = $3,
	            stock_quantity = $4, damaged_quantity = $5, low_stock_threshold = $6, stock_status = $7,
	            updated_at = $8
	          WHERE id = $9 AND restaurant_id = $10`
	item.UpdatedAt = time.Now()
	result, err := r.executor.Exec(query,
		item.TrackInventory, item.TrackVariants, item.AllowSaleWithNoStock,
		intPtrArg(item.StockQuantity), intPtrArg(item.DamagedQuantity), intPtrArg(item.LowStockThreshold), item.StockStatus,
		item.UpdatedAt, item.ID, item.RestaurantID,
	)
	if err != nil {
		return fmt.Errorf("%w: updating tracking for item ID %d: %v", ErrDatabaseError, item.ID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *catalogRepository) CreateOptionGroup(restaurantID int64, group *models.OptionGroup) error {
	query := `INSERT INTO option_groups
	          (restaurant_id, item_id, name, position, min_select, max_select, required, enable_inventory_tracking, created_at, updated_at)
	          SELECT $1, ci.id, $3, $4, $5, $6, $7, $8, $9, $9 FROM catalog_items ci WHERE ci.id = $2 AND ci.restaurant_id = $1
	          RETURNING id`
	currentTime := time.Now()
	group.CreatedAt, group.UpdatedAt = currentTime, currentTime
	err := r.executor.QueryRow(query,
		restaurantID, group.ItemID, group.Name, group.Position, group.MinSelect, group.MaxSelect, group.Required,
		group.EnableInventoryTracking, currentTime,
	).Scan(&group.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: item %d already has a tracking option group (constraint: %s)", ErrDuplicateKey, group.ItemID, pqErr.Constraint)
		}
		return fmt.Errorf("%w: creating option group: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *catalogRepository) SetGroupTracking(restaurantID, groupID int64, enabled bool) error {
	result, err := r.executor.Exec(`UPDATE option_groups SET enable_inventory_tracking = $1, updated_at = $2
	                                WHERE id = $3 AND restaurant_id = $4`, enabled, time.Now(), groupID, restaurantID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: another option group already tracks inventory (constraint: %s)", ErrDuplicateKey, pqErr.Constraint)
		}
		return fmt.Errorf("%w: updating tracking for option group %d: %v", ErrDatabaseError, groupID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *catalogRepository) CreateOption(option *models.Option) error {
	query := `INSERT INTO options
	          (restaurant_id, item_id, group_id, name, position, additional_price_cents, available,
	           stock_quantity, damaged_quantity, low_stock_threshold, stock_status, created_at, updated_at)
	          SELECT $1, g.item_id, g.id, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11
	          FROM option_groups g WHERE g.id = $2 AND g.restaurant_id = $1
	          RETURNING id, item_id`
	currentTime := time.Now()
	option.CreatedAt, option.UpdatedAt = currentTime, currentTime
	err := r.executor.QueryRow(query,
		option.RestaurantID, option.GroupID, option.Name, option.Position, option.AdditionalPriceCents, option.Available,
		intPtrArg(option.StockQuantity), intPtrArg(option.DamagedQuantity), intPtrArg(option.LowStockThreshold), option.StockStatus,
		currentTime,
	).Scan(&option.ID, &option.ItemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: creating option: %v", ErrDatabaseError, err)
	}
	return nil
}

const variantColumns = `id, item_id, restaurant_id, variant_key, name, active, stock_quantity, damaged_quantity,
	low_stock_threshold, stock_status, total_ordered, total_revenue_cents, created_at, updated_at`

func scanVariant(s scanner, v *models.ItemVariant) error {
	var qty, damaged, threshold sql.NullInt64
	if err := s.Scan(&v.ID, &v.ItemID, &v.RestaurantID, &v.VariantKey, &v.Name, &v.Active, &qty, &damaged,
		&threshold, &v.StockStatus, &v.TotalOrdered, &v.TotalRevenueCents, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return err
	}
	v.StockQuantity = nullIntPtr(qty)
	v.DamagedQuantity = nullIntPtr(damaged)
	v.LowStockThreshold = nullIntPtr(threshold)
	return nil
}

func (r *catalogRepository) CreateVariant(variant *models.ItemVariant) error {
	query := `INSERT INTO item_variants
	          (restaurant_id, item_id, variant_key, name, active, stock_quantity, damaged_quantity, low_stock_threshold,
	           stock_status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	          RETURNING id`
	currentTime := time.Now()
	variant.CreatedAt, variant.UpdatedAt = currentTime, currentTime
	err := r.executor.QueryRow(query,
		variant.RestaurantID, variant.ItemID, variant.VariantKey, variant.Name, variant.Active,
		intPtrArg(variant.StockQuantity), intPtrArg(variant.DamagedQuantity), intPtrArg(variant.LowStockThreshold),
		variant.StockStatus, currentTime,
	).Scan(&variant.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: variant key %q on item %d (constraint: %s)", ErrDuplicateKey, variant.VariantKey, variant.ItemID, pqErr.Constraint)
		}
		return fmt.Errorf("%w: creating item variant: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *catalogRepository) GetVariantByKey(restaurantID, itemID int64, key string) (*models.ItemVariant, error) {
	v := &models.ItemVariant{}
	query := `SELECT ` + variantColumns + ` FROM item_variants WHERE item_id = $1 AND restaurant_id = $2 AND variant_key = $3`
	if err := scanVariant(r.executor.QueryRow(query, itemID, restaurantID, key), v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting variant %q for item %d: %v", ErrDatabaseError, key, itemID, err)
	}
	return v, nil
}

func (r *catalogRepository) ListVariants(restaurantID, itemID int64) ([]models.ItemVariant, error) {
	variants := []models.ItemVariant{}
	rows, err := r.executor.Query(`SELECT `+variantColumns+` FROM item_variants
	                               WHERE item_id = $1 AND restaurant_id = $2 ORDER BY variant_key`, itemID, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing variants for item %d: %v", ErrDatabaseError, itemID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var v models.ItemVariant
		if err := scanVariant(rows, &v); err != nil {
			return nil, fmt.Errorf("%w: scanning variant: %v", ErrDatabaseError, err)
		}
		variants = append(variants, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating variants: %v", ErrDatabaseError, err)
	}
	return variants, nil
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	val := int(n.Int64)
	return &val
}

func intPtrArg(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
