package services

import (
	"commerce_backend/internal/models"
	"commerce_backend/internal/repositories"
	"commerce_backend/internal/stock"
	"commerce_backend/pkg/utils"
	"context"
	"errors"
	"fmt"
	"strings"
)

// --- Custom Service Errors for the Catalog ---
var (
	ErrOptionGroupNotFound   = errors.New("option group not found")
	ErrTrackingGroupConflict = errors.New("item already tracks inventory elsewhere")
)

// --- Item DTOs ---
type CreateItemRequest struct {
	Name                 string `json:"name" binding:"required"`
	PriceCents           int64  `json:"price_cents" binding:"gte=0"`
	Available            *bool  `json:"available"` // Defaults to true
	TrackInventory       bool   `json:"track_inventory"`
	AllowSaleWithNoStock bool   `json:"allow_sale_with_no_stock"`
	InitialStock         int    `json:"initial_stock" binding:"gte=0"`
	LowStockThreshold    *int   `json:"low_stock_threshold" binding:"omitempty,gte=0"`
}

// --- Option DTOs ---
type CreateOptionGroupRequest struct {
	Name                    string `json:"name" binding:"required"`
	Position                int    `json:"position"`
	MinSelect               int    `json:"min_select" binding:"gte=0"`
	MaxSelect               int    `json:"max_select" binding:"gte=0"`
	Required                bool   `json:"required"`
	EnableInventoryTracking bool   `json:"enable_inventory_tracking"`
}

type CreateOptionRequest struct {
	Name                 string `json:"name" binding:"required"`
	Position             int    `json:"position"`
	AdditionalPriceCents int64  `json:"additional_price_cents" binding:"gte=0"`
	Available            *bool  `json:"available"` // Defaults to true
	InitialStock         int    `json:"initial_stock" binding:"gte=0"` // Only used when the group tracks inventory
	LowStockThreshold    *int   `json:"low_stock_threshold" binding:"omitempty,gte=0"`
}

// ConfigureTrackingRequest switches an item between tracking modes.
// Every switch is a fresh start: existing quantities are discarded.
type ConfigureTrackingRequest struct {
	Mode                 string `json:"mode" binding:"required,oneof=untracked item option variant"`
	GroupID              *int64 `json:"group_id"` // Required for mode=option
	InitialStock         int    `json:"initial_stock" binding:"gte=0"`
	LowStockThreshold    *int   `json:"low_stock_threshold" binding:"omitempty,gte=0"`
	AllowSaleWithNoStock bool   `json:"allow_sale_with_no_stock"` // Item mode only
}

// --- Variant DTOs ---
type CreateVariantRequest struct {
	SelectedOptions   models.SelectedOptions `json:"selected_options" binding:"required"`
	InitialStock      int                    `json:"initial_stock" binding:"gte=0"`
	LowStockThreshold *int                   `json:"low_stock_threshold" binding:"omitempty,gte=0"`
	Active            *bool                  `json:"active"` // Defaults to true
}

// --- CatalogService Interface ---
type CatalogService interface {
	CreateItem(ctx context.Context, restaurantID int64, req CreateItemRequest, actorID *int64) (*models.CatalogItem, error)
	GetItem(ctx context.Context, restaurantID, itemID int64) (*models.CatalogItem, error)
	ListItems(ctx context.Context, restaurantID int64, status *models.StockStatus, page, pageSize int) ([]models.CatalogItem, int, error)

	CreateOptionGroup(ctx context.Context, restaurantID, itemID int64, req CreateOptionGroupRequest) (*models.OptionGroup, error)
	CreateOption(ctx context.Context, restaurantID, groupID int64, req CreateOptionRequest, actorID *int64) (*models.Option, error)

	ConfigureTracking(ctx context.Context, restaurantID, itemID int64, req ConfigureTrackingRequest, actorID *int64) (*models.CatalogItem, error)

	CreateVariant(ctx context.Context, restaurantID, itemID int64, req CreateVariantRequest, actorID *int64) (*models.ItemVariant, error)
	ListVariants(ctx context.Context, restaurantID, itemID int64) ([]models.ItemVariant, error)
}

// --- catalogService Implementation ---
type catalogService struct {
	store repositories.Store
}

func NewCatalogService(store repositories.Store) CatalogService {
	return &catalogService{store: store}
}

func boolOr(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}

// recordOpening writes the restock row for a freshly tracked entity's opening quantity.
func recordOpening(uow repositories.UnitOfWork, entity models.LedgerEntity, actorID *int64) error {
	opening := entity.Level().Quantity()
	if opening == 0 {
		return nil
	}
	reason := "opening stock"
	audit := &models.StockAudit{
		RestaurantID:     entity.Tenant(),
		Entity:           entity.Ref(),
		AuditType:        models.AuditRestock,
		QuantityChange:   opening,
		PreviousQuantity: 0,
		NewQuantity:      opening,
		Reason:           &reason,
		ActorID:          actorID,
	}
	if err := uow.AppendAudit(audit); err != nil {
		return fmt.Errorf("failed to record opening stock for %s: %w", entity.Ref(), err)
	}
	return nil
}

func (s *catalogService) CreateItem(ctx context.Context, restaurantID int64, req CreateItemRequest, actorID *int64) (*models.CatalogItem, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: item name cannot be empty", ErrValidation)
	}
	if req.PriceCents < 0 || req.InitialStock < 0 {
		return nil, fmt.Errorf("%w: price and initial stock cannot be negative", ErrValidation)
	}

	item := &models.CatalogItem{
		RestaurantID:         restaurantID,
		Name:                 strings.TrimSpace(req.Name),
		PriceCents:           req.PriceCents,
		Available:            boolOr(req.Available, true),
		TrackInventory:       req.TrackInventory,
		AllowSaleWithNoStock: req.AllowSaleWithNoStock,
	}
	if item.TrackInventory {
		stock.StartTracking(item, req.InitialStock, req.LowStockThreshold)
	} else {
		item.Clear()
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()

	if err := uow.CreateItem(item); err != nil {
		return nil, fmt.Errorf("failed to create catalog item: %w", err)
	}
	if item.TrackInventory {
		if err := recordOpening(uow, item, actorID); err != nil {
			return nil, err
		}
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit catalog item: %w", err)
	}
	item.OptionGroups = []models.OptionGroup{}
	return item, nil
}

func (s *catalogService) GetItem(ctx context.Context, restaurantID, itemID int64) (*models.CatalogItem, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()
	return getItem(uow, restaurantID, itemID)
}

func getItem(uow repositories.UnitOfWork, restaurantID, itemID int64) (*models.CatalogItem, error) {
	item, err := uow.GetItem(restaurantID, itemID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get catalog item: %w", err)
	}
	return item, nil
}

func (s *catalogService) ListItems(ctx context.Context, restaurantID int64, status *models.StockStatus, page, pageSize int) ([]models.CatalogItem, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()

	items, total, err := uow.ListItems(restaurantID, status, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list catalog items: %w", err)
	}
	return items, total, nil
}

func (s *catalogService) CreateOptionGroup(ctx context.Context, restaurantID, itemID int64, req CreateOptionGroupRequest) (*models.OptionGroup, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: option group name cannot be empty", ErrValidation)
	}
	if req.MaxSelect > 0 && req.MinSelect > req.MaxSelect {
		return nil, fmt.Errorf("%w: min_select %d exceeds max_select %d", ErrValidation, req.MinSelect, req.MaxSelect)
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()

	// The item lock serializes tracking changes on the item.
	if _, err := lockItem(uow, restaurantID, itemID); err != nil {
		return nil, err
	}
	item, err := getItem(uow, restaurantID, itemID)
	if err != nil {
		return nil, err
	}
	if req.EnableInventoryTracking {
		if mode := stock.ResolveMode(item); mode.Kind != stock.Untracked {
			return nil, fmt.Errorf("%w: %s is tracked at %s level", ErrTrackingGroupConflict, item.Name, mode.Kind)
		}
	}

	group := &models.OptionGroup{
		ItemID:                  itemID,
		Name:                    strings.TrimSpace(req.Name),
		Position:                req.Position,
		MinSelect:               req.MinSelect,
		MaxSelect:               req.MaxSelect,
		Required:                req.Required,
		EnableInventoryTracking: req.EnableInventoryTracking,
	}
	if err := uow.CreateOptionGroup(restaurantID, group); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %v", ErrTrackingGroupConflict, err)
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to create option group: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit option group: %w", err)
	}
	group.Options = []models.Option{}
	return group, nil
}

func lockItem(uow repositories.UnitOfWork, restaurantID, itemID int64) (*models.CatalogItem, error) {
	entity, err := uow.LockEntity(restaurantID, models.EntityRef{Type: models.EntityItem, ID: itemID})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to lock catalog item %d: %w", itemID, err)
	}
	return entity.(*models.CatalogItem), nil
}

func (s *catalogService) CreateOption(ctx context.Context, restaurantID, groupID int64, req CreateOptionRequest, actorID *int64) (*models.Option, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: option name cannot be empty", ErrValidation)
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()

	option := &models.Option{
		GroupID:              groupID,
		RestaurantID:         restaurantID,
		Name:                 strings.TrimSpace(req.Name),
		Position:             req.Position,
		AdditionalPriceCents: req.AdditionalPriceCents,
		Available:            boolOr(req.Available, true),
	}
	option.Clear()
	if err := uow.CreateOption(option); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOptionGroupNotFound
		}
		return nil, fmt.Errorf("failed to create option: %w", err)
	}

	// Options added to a tracking group start tracked with their own opening stock.
	item, err := getItem(uow, restaurantID, option.ItemID)
	if err != nil {
		return nil, err
	}
	if g := item.FindGroup(groupID); g != nil && g.EnableInventoryTracking {
		entity, err := lockEntity(uow, restaurantID, option.Ref())
		if err != nil {
			return nil, err
		}
		stock.StartTracking(entity, req.InitialStock, req.LowStockThreshold)
		if err := uow.SaveStockLevel(entity); err != nil {
			return nil, fmt.Errorf("failed to save opening stock for option %d: %w", option.ID, err)
		}
		if err := recordOpening(uow, entity, actorID); err != nil {
			return nil, err
		}
		option = entity.(*models.Option)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit option: %w", err)
	}
	return option, nil
}

// ConfigureTracking resets the item to a fresh start, then enables the requested
// mode. Discarded quantities are recorded as status_change audit rows.
func (s *catalogService) ConfigureTracking(ctx context.Context, restaurantID, itemID int64, req ConfigureTrackingRequest, actorID *int64) (*models.CatalogItem, error) {
	mode, err := stock.ParseModeKind(req.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.InitialStock < 0 {
		return nil, fmt.Errorf("%w: initial stock cannot be negative", ErrValidation)
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()

	locked, err := lockItem(uow, restaurantID, itemID)
	if err != nil {
		return nil, err
	}
	item, err := getItem(uow, restaurantID, itemID)
	if err != nil {
		return nil, err
	}
	item.StockLevel = locked.StockLevel
	if err := lockOptions(uow, item); err != nil {
		return nil, err
	}

	var group *models.OptionGroup
	switch mode {
	case stock.OptionLevel:
		if req.GroupID == nil {
			return nil, fmt.Errorf("%w: group_id is required for option-level tracking", ErrValidation)
		}
		if group = item.FindGroup(*req.GroupID); group == nil {
			return nil, ErrOptionGroupNotFound
		}
	case stock.VariantLevel:
		if len(item.OptionGroups) == 0 {
			return nil, fmt.Errorf("%w: variant tracking needs at least one option group", ErrValidation)
		}
	}

	reason := fmt.Sprintf("tracking changed to %s", mode)
	if err := s.resetTracking(uow, item, reason, actorID); err != nil {
		return nil, err
	}

	switch mode {
	case stock.ItemLevel:
		item.TrackInventory = true
		item.AllowSaleWithNoStock = req.AllowSaleWithNoStock
		stock.StartTracking(item, req.InitialStock, req.LowStockThreshold)
	case stock.VariantLevel:
		item.TrackVariants = true
	case stock.OptionLevel:
		if err := uow.SetGroupTracking(restaurantID, group.ID, true); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				return nil, fmt.Errorf("%w: %v", ErrTrackingGroupConflict, err)
			}
			return nil, fmt.Errorf("failed to enable tracking on option group %d: %w", group.ID, err)
		}
		group.EnableInventoryTracking = true
		for i := range group.Options {
			entity, err := lockEntity(uow, restaurantID, group.Options[i].Ref())
			if err != nil {
				return nil, err
			}
			stock.StartTracking(entity, req.InitialStock, req.LowStockThreshold)
			if err := uow.SaveStockLevel(entity); err != nil {
				return nil, fmt.Errorf("failed to start tracking option %d: %w", group.Options[i].ID, err)
			}
			if err := recordOpening(uow, entity, actorID); err != nil {
				return nil, err
			}
			group.Options[i] = *entity.(*models.Option)
		}
	}

	if err := uow.UpdateItemTracking(item); err != nil {
		return nil, fmt.Errorf("failed to update item tracking: %w", err)
	}
	if mode == stock.ItemLevel {
		if err := recordOpening(uow, item, actorID); err != nil {
			return nil, err
		}
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tracking change: %w", err)
	}

	utils.LogInfo("Item tracking configured", map[string]interface{}{
		"restaurant_id": restaurantID, "item_id": itemID, "mode": mode.String(),
	})
	return item, nil
}

// lockOptions takes every option lock of the item in canonical order.
func lockOptions(uow repositories.UnitOfWork, item *models.CatalogItem) error {
	refs := make(map[models.EntityRef]int)
	for _, g := range item.OptionGroups {
		for i := range g.Options {
			refs[g.Options[i].Ref()]++
		}
	}
	for _, ref := range sortedRefs(refs) {
		if _, err := lockEntity(uow, item.RestaurantID, ref); err != nil {
			return err
		}
	}
	return nil
}

// resetTracking clears every tracking flag on the item and nulls the quantities of
// the item and all its options, auditing each quantity that is thrown away.
// Caller holds the item lock.
func (s *catalogService) resetTracking(uow repositories.UnitOfWork, item *models.CatalogItem, reason string, actorID *int64) error {
	if err := discardLevel(uow, item, reason, actorID); err != nil {
		return err
	}
	item.TrackInventory = false
	item.TrackVariants = false
	item.AllowSaleWithNoStock = false
	item.Clear()

	for gi := range item.OptionGroups {
		g := &item.OptionGroups[gi]
		if g.EnableInventoryTracking {
			if err := uow.SetGroupTracking(item.RestaurantID, g.ID, false); err != nil {
				return fmt.Errorf("failed to disable tracking on option group %d: %w", g.ID, err)
			}
			g.EnableInventoryTracking = false
		}
		for oi := range g.Options {
			if g.Options[oi].StockQuantity == nil && g.Options[oi].DamagedQuantity == nil {
				continue
			}
			entity, err := lockEntity(uow, item.RestaurantID, g.Options[oi].Ref())
			if err != nil {
				return err
			}
			if err := discardLevel(uow, entity, reason, actorID); err != nil {
				return err
			}
			entity.Level().Clear()
			if err := uow.SaveStockLevel(entity); err != nil {
				return fmt.Errorf("failed to clear stock for option %d: %w", g.Options[oi].ID, err)
			}
			opt := entity.(*models.Option)
			opt.GroupTracked = false
			g.Options[oi] = *opt
		}
	}
	return nil
}

// discardLevel audits a non-zero quantity that a tracking change is about to drop.
func discardLevel(uow repositories.UnitOfWork, entity models.LedgerEntity, reason string, actorID *int64) error {
	lvl := entity.Level()
	if lvl.StockQuantity == nil || *lvl.StockQuantity == 0 {
		return nil
	}
	audit := &models.StockAudit{
		RestaurantID:     entity.Tenant(),
		Entity:           entity.Ref(),
		AuditType:        models.AuditStatusChange,
		QuantityChange:   -*lvl.StockQuantity,
		PreviousQuantity: *lvl.StockQuantity,
		NewQuantity:      0,
		Reason:           &reason,
		ActorID:          actorID,
	}
	if err := uow.AppendAudit(audit); err != nil {
		return fmt.Errorf("failed to record tracking reset for %s: %w", entity.Ref(), err)
	}
	return nil
}

func (s *catalogService) CreateVariant(ctx context.Context, restaurantID, itemID int64, req CreateVariantRequest, actorID *int64) (*models.ItemVariant, error) {
	if len(req.SelectedOptions) == 0 {
		return nil, fmt.Errorf("%w: a variant needs at least one selected option", ErrValidation)
	}
	if req.InitialStock < 0 {
		return nil, fmt.Errorf("%w: initial stock cannot be negative", ErrValidation)
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()

	item, err := getItem(uow, restaurantID, itemID)
	if err != nil {
		return nil, err
	}
	for groupID, optionIDs := range req.SelectedOptions {
		g := item.FindGroup(groupID)
		if g == nil {
			return nil, &stock.InvalidSelectionError{ItemName: item.Name, Detail: fmt.Sprintf("option group %d does not belong to this item", groupID)}
		}
		for _, optionID := range optionIDs {
			if g.FindOption(optionID) == nil {
				return nil, &stock.InvalidSelectionError{ItemName: item.Name, Detail: fmt.Sprintf("option %d is not part of %q", optionID, g.Name)}
			}
		}
	}

	key := stock.EncodeVariantKey(req.SelectedOptions)
	name, err := stock.VariantName(item, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	variant := &models.ItemVariant{
		ItemID:       itemID,
		RestaurantID: restaurantID,
		VariantKey:   key,
		Name:         name,
		Active:       boolOr(req.Active, true),
	}
	stock.StartTracking(variant, req.InitialStock, req.LowStockThreshold)

	if err := uow.CreateVariant(variant); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, &stock.DuplicateVariantKeyError{ItemID: itemID, Key: key}
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to create variant: %w", err)
	}
	if err := recordOpening(uow, variant, actorID); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit variant: %w", err)
	}
	return variant, nil
}

func (s *catalogService) ListVariants(ctx context.Context, restaurantID, itemID int64) ([]models.ItemVariant, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()

	if _, err := getItem(uow, restaurantID, itemID); err != nil {
		return nil, err
	}
	variants, err := uow.ListVariants(restaurantID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	return variants, nil
}
