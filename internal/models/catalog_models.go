package models

import "time"

// CatalogItem represents a sellable product of a restaurant's wholesale catalog
type CatalogItem struct {
	ID                   int64  `json:"id" db:"id"`
	RestaurantID         int64  `json:"restaurant_id" db:"restaurant_id"`
	Name                 string `json:"name" db:"name" binding:"required"`
	PriceCents           int64  `json:"price_cents" db:"price_cents" binding:"gte=0"`
	Available            bool   `json:"available" db:"available"`
	TrackInventory       bool   `json:"track_inventory" db:"track_inventory"`
	TrackVariants        bool   `json:"track_variants" db:"track_variants"`
	AllowSaleWithNoStock bool   `json:"allow_sale_with_no_stock" db:"allow_sale_with_no_stock"`
	StockLevel
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
	OptionGroups []OptionGroup `json:"option_groups,omitempty"` // Loaded with the item, ordered by position
}

// OptionGroup is a named set of related choices on an item (e.g. "Size")
type OptionGroup struct {
	ID                      int64     `json:"id" db:"id"`
	ItemID                  int64     `json:"item_id" db:"item_id"`
	Name                    string    `json:"name" db:"name" binding:"required"`
	Position                int       `json:"position" db:"position"`
	MinSelect               int       `json:"min_select" db:"min_select"`
	MaxSelect               int       `json:"max_select" db:"max_select"` // 0 means no upper bound
	Required                bool      `json:"required" db:"required"`
	EnableInventoryTracking bool      `json:"enable_inventory_tracking" db:"enable_inventory_tracking"`
	CreatedAt               time.Time `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time `json:"updated_at" db:"updated_at"`
	Options                 []Option  `json:"options,omitempty"`
}

// Option is one selectable value within an OptionGroup
type Option struct {
	ID                   int64  `json:"id" db:"id"`
	GroupID              int64  `json:"group_id" db:"group_id"`
	ItemID               int64  `json:"item_id" db:"item_id"`
	RestaurantID         int64  `json:"restaurant_id" db:"restaurant_id"`
	Name                 string `json:"name" db:"name" binding:"required"`
	Position             int    `json:"position" db:"position"`
	AdditionalPriceCents int64  `json:"additional_price_cents" db:"additional_price_cents"`
	Available            bool   `json:"available" db:"available"`
	StockLevel
	// Sales counters track demand whether or not stock is tracked.
	TotalOrdered      int       `json:"total_ordered" db:"total_ordered"`
	TotalRevenueCents int64     `json:"total_revenue_cents" db:"total_revenue_cents"`
	GroupTracked      bool      `json:"-" db:"-"` // Copied from the owning group when loaded
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// ItemVariant is the materialized stock row for one combination of option selections
type ItemVariant struct {
	ID           int64  `json:"id" db:"id"`
	ItemID       int64  `json:"item_id" db:"item_id"`
	RestaurantID int64  `json:"restaurant_id" db:"restaurant_id"`
	VariantKey   string `json:"variant_key" db:"variant_key"`
	Name         string `json:"name" db:"name"`
	Active       bool   `json:"active" db:"active"`
	StockLevel
	TotalOrdered      int       `json:"total_ordered" db:"total_ordered"`
	TotalRevenueCents int64     `json:"total_revenue_cents" db:"total_revenue_cents"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// FindGroup returns the option group with the given ID, or nil.
func (i *CatalogItem) FindGroup(groupID int64) *OptionGroup {
	for idx := range i.OptionGroups {
		if i.OptionGroups[idx].ID == groupID {
			return &i.OptionGroups[idx]
		}
	}
	return nil
}

// FindOption returns the option with the given ID inside the group, or nil.
func (g *OptionGroup) FindOption(optionID int64) *Option {
	for idx := range g.Options {
		if g.Options[idx].ID == optionID {
			return &g.Options[idx]
		}
	}
	return nil
}

// Ref, Label, Level, TracksStock and AllowsOversell make CatalogItem, Option and
// ItemVariant interchangeable ledger entities.

func (i *CatalogItem) Ref() EntityRef { return EntityRef{Type: EntityItem, ID: i.ID} }
func (i *CatalogItem) Label() string { return i.Name }
func (i *CatalogItem) Level() *StockLevel { return &i.StockLevel }
func (i *CatalogItem) TracksStock() bool { return i.TrackInventory }
func (i *CatalogItem) AllowsOversell() bool { return i.AllowSaleWithNoStock }
func (i *CatalogItem) Tenant() int64 { return i.RestaurantID }

func (o *Option) Ref() EntityRef { return EntityRef{Type: EntityOption, ID: o.ID} }
func (o *Option) Label() string { return o.Name }
func (o *Option) Level() *StockLevel { return &o.StockLevel }
func (o *Option) TracksStock() bool { return o.GroupTracked }
func (o *Option) AllowsOversell() bool { return false }
func (o *Option) Tenant() int64 { return o.RestaurantID }

func (v *ItemVariant) Ref() EntityRef { return EntityRef{Type: EntityVariant, ID: v.ID} }
func (v *ItemVariant) Label() string { return v.Name }
func (v *ItemVariant) Level() *StockLevel { return &v.StockLevel }
func (v *ItemVariant) TracksStock() bool { return true }
func (v *ItemVariant) AllowsOversell() bool { return false }
func (v *ItemVariant) Tenant() int64 { return v.RestaurantID }
