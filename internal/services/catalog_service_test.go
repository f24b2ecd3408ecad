package services

import (
	"context"
	"testing"

	"commerce_backend/internal/models"
	"commerce_backend/internal/stock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateItemRecordsOpeningStock(t *testing.T) {
	f := newFixture(t)
	item := f.trackedItem(t, "Cheddar", 800, 12, 4)
	assert.Equal(t, 12, item.Quantity())
	assert.Equal(t, models.StockIn, item.StockStatus)

	audits := f.audits(t, models.AuditFilters{EntityID: &item.ID})
	require.Len(t, audits, 1)
	assert.Equal(t, models.AuditRestock, audits[0].AuditType)
	assert.Equal(t, 12, audits[0].NewQuantity)

	untracked, err := f.catalog.CreateItem(context.Background(), restaurant, CreateItemRequest{Name: "Delivery", PriceCents: 500}, f.actor)
	require.NoError(t, err)
	assert.Nil(t, untracked.StockQuantity)
	assert.Equal(t, models.StockUnlimited, untracked.StockStatus)

	_, err = f.catalog.CreateItem(context.Background(), restaurant, CreateItemRequest{Name: "  "}, f.actor)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListItemsByStockStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.trackedItem(t, "Apples", 100, 50, 5)
	low := f.trackedItem(t, "Pears", 100, 3, 5)
	f.trackedItem(t, "Plums", 100, 0, 5)

	status := models.StockLow
	items, total, err := f.catalog.ListItems(ctx, restaurant, &status, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, low.ID, items[0].ID)

	out := models.StockOutOfStock
	_, total, err = f.catalog.ListItems(ctx, restaurant, &out, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	all, total, err := f.catalog.ListItems(ctx, restaurant, nil, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 2)
}

func TestOnlyOneTrackingMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.trackedItem(t, "Jacket", 5000, 5, 1)

	_, err := f.catalog.CreateOptionGroup(ctx, restaurant, item.ID, CreateOptionGroupRequest{Name: "Size", EnableInventoryTracking: true})
	assert.ErrorIs(t, err, ErrTrackingGroupConflict)

	shirt, size, _ := f.sizedShirt(t, true)
	_, err = f.catalog.CreateOptionGroup(ctx, restaurant, shirt.ID, CreateOptionGroupRequest{Name: "Colour", EnableInventoryTracking: true})
	assert.ErrorIs(t, err, ErrTrackingGroupConflict)

	colour, err := f.catalog.CreateOptionGroup(ctx, restaurant, shirt.ID, CreateOptionGroupRequest{Name: "Colour", Position: 1})
	require.NoError(t, err)
	assert.False(t, colour.EnableInventoryTracking)
	assert.Equal(t, stock.OptionLevel, stock.ResolveMode(f.item(t, shirt.ID)).Kind)
	assert.Equal(t, size.ID, stock.ResolveMode(f.item(t, shirt.ID)).Group.ID)

	_, err = f.catalog.CreateOptionGroup(ctx, restaurant, 999, CreateOptionGroupRequest{Name: "Size"})
	assert.ErrorIs(t, err, ErrItemNotFound)
	_, err = f.catalog.CreateOptionGroup(ctx, restaurant, shirt.ID, CreateOptionGroupRequest{Name: "Bad", MinSelect: 3, MaxSelect: 1})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.catalog.CreateOption(ctx, restaurant, 999, CreateOptionRequest{Name: "Orphan"}, f.actor)
	assert.ErrorIs(t, err, ErrOptionGroupNotFound)
}

func TestOptionLevelReservation(t *testing.T) {
	f := newFixture(t)
	item, size, opts := f.sizedShirt(t, true)
	small := opts[0]
	assert.Equal(t, 5, small.Quantity())

	_, err := f.order(t, line(item.ID, 1, nil))
	assert.ErrorIs(t, err, stock.ErrMissingRequiredSelection)

	_, err = f.order(t, line(item.ID, 6, models.SelectedOptions{size.ID: {small.ID}}))
	assert.ErrorIs(t, err, stock.ErrInsufficientStock)

	_, err = f.order(t, line(item.ID, 5, models.SelectedOptions{size.ID: {small.ID}}))
	require.NoError(t, err)

	got := f.item(t, item.ID)
	assert.Nil(t, got.StockQuantity, "item quantity is not used in option mode")
	assert.Equal(t, 0, got.OptionGroups[0].Options[0].Quantity())
	assert.Equal(t, models.StockOutOfStock, got.OptionGroups[0].Options[0].StockStatus)
	assert.Equal(t, 5, got.OptionGroups[0].Options[1].Quantity())
}

func TestVariantLevelReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, size, opts := f.sizedShirt(t, false)
	colour, err := f.catalog.CreateOptionGroup(ctx, restaurant, item.ID, CreateOptionGroupRequest{Name: "Colour", Position: 1, MaxSelect: 1})
	require.NoError(t, err)
	red, err := f.catalog.CreateOption(ctx, restaurant, colour.ID, CreateOptionRequest{Name: "Red"}, f.actor)
	require.NoError(t, err)

	_, err = f.catalog.ConfigureTracking(ctx, restaurant, item.ID, ConfigureTrackingRequest{Mode: "variant"}, f.actor)
	require.NoError(t, err)

	selection := models.SelectedOptions{colour.ID: {red.ID}, size.ID: {opts[1].ID}}
	variant, err := f.catalog.CreateVariant(ctx, restaurant, item.ID, CreateVariantRequest{SelectedOptions: selection, InitialStock: 3}, f.actor)
	require.NoError(t, err)
	assert.Equal(t, "Large / Red", variant.Name)
	assert.Equal(t, stock.EncodeVariantKey(selection), variant.VariantKey)
	assert.Equal(t, 3, variant.Quantity())

	// Same selection in a different order maps onto the same key.
	_, err = f.catalog.CreateVariant(ctx, restaurant, item.ID, CreateVariantRequest{
		SelectedOptions: models.SelectedOptions{size.ID: {opts[1].ID}, colour.ID: {red.ID}},
	}, f.actor)
	require.ErrorIs(t, err, stock.ErrDuplicateVariantKey)

	_, err = f.catalog.CreateVariant(ctx, restaurant, item.ID, CreateVariantRequest{
		SelectedOptions: models.SelectedOptions{size.ID: {red.ID}},
	}, f.actor)
	assert.ErrorIs(t, err, stock.ErrInvalidSelection)

	o, err := f.order(t, line(item.ID, 2, selection))
	require.NoError(t, err)
	assert.Equal(t, int64(2*(1500+200)), o.TotalCents)

	// Small / Red has no variant row, so it cannot be sold.
	_, err = f.order(t, line(item.ID, 1, models.SelectedOptions{size.ID: {opts[0].ID}, colour.ID: {red.ID}}))
	assert.ErrorIs(t, err, stock.ErrUnavailableOption)

	_, err = f.order(t, line(item.ID, 2, selection))
	assert.ErrorIs(t, err, stock.ErrInsufficientStock)

	variants, err := f.catalog.ListVariants(ctx, restaurant, item.ID)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, 1, variants[0].Quantity())
	assert.Equal(t, 2, variants[0].TotalOrdered)

	_, err = f.transition(t, o.ID, models.OrderCancelled)
	require.NoError(t, err)
	variants, err = f.catalog.ListVariants(ctx, restaurant, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, variants[0].Quantity())
}

func TestInactiveVariantIsUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, size, opts := f.sizedShirt(t, false)
	_, err := f.catalog.ConfigureTracking(ctx, restaurant, item.ID, ConfigureTrackingRequest{Mode: "variant"}, f.actor)
	require.NoError(t, err)

	inactive := false
	selection := models.SelectedOptions{size.ID: {opts[0].ID}}
	_, err = f.catalog.CreateVariant(ctx, restaurant, item.ID, CreateVariantRequest{SelectedOptions: selection, InitialStock: 10, Active: &inactive}, f.actor)
	require.NoError(t, err)

	_, err = f.order(t, line(item.ID, 1, selection))
	assert.ErrorIs(t, err, stock.ErrUnavailableOption)
}

func TestConfigureTrackingIsAFreshStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, size, _ := f.sizedShirt(t, false)

	// untracked -> item
	got, err := f.catalog.ConfigureTracking(ctx, restaurant, item.ID, ConfigureTrackingRequest{Mode: "item", InitialStock: 10}, f.actor)
	require.NoError(t, err)
	assert.True(t, got.TrackInventory)
	assert.Equal(t, 10, got.Quantity())

	// item -> option: the item's ten units are discarded and audited.
	got, err = f.catalog.ConfigureTracking(ctx, restaurant, item.ID, ConfigureTrackingRequest{Mode: "option", GroupID: &size.ID, InitialStock: 4}, f.actor)
	require.NoError(t, err)
	assert.False(t, got.TrackInventory)
	assert.Nil(t, got.StockQuantity)
	assert.Equal(t, models.StockUnlimited, got.StockStatus)

	reloaded := f.item(t, item.ID)
	mode := stock.ResolveMode(reloaded)
	require.Equal(t, stock.OptionLevel, mode.Kind)
	for _, o := range mode.Group.Options {
		assert.Equal(t, 4, o.Quantity())
	}

	statusChange := models.AuditStatusChange
	resets := f.audits(t, models.AuditFilters{EntityID: &item.ID, AuditType: &statusChange})
	require.Len(t, resets, 1)
	assert.Equal(t, -10, resets[0].QuantityChange)
	assert.Equal(t, 0, resets[0].NewQuantity)

	// option -> untracked clears every option.
	got, err = f.catalog.ConfigureTracking(ctx, restaurant, item.ID, ConfigureTrackingRequest{Mode: "untracked"}, f.actor)
	require.NoError(t, err)
	assert.Equal(t, stock.Untracked, stock.ResolveMode(got).Kind)
	reloaded = f.item(t, item.ID)
	for _, o := range reloaded.OptionGroups[0].Options {
		assert.Nil(t, o.StockQuantity)
		assert.Equal(t, models.StockUnlimited, o.StockStatus)
	}
	optionType := models.EntityOption
	assert.Len(t, f.audits(t, models.AuditFilters{EntityType: &optionType, AuditType: &statusChange}), 2)

	// Untracked items sell without limit.
	_, err = f.order(t, line(item.ID, 1000, models.SelectedOptions{size.ID: {reloaded.OptionGroups[0].Options[0].ID}}))
	assert.NoError(t, err)
}

func TestConfigureTrackingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.trackedItem(t, "Lamp", 2000, 3, 1)

	_, err := f.catalog.ConfigureTracking(ctx, restaurant, item.ID, ConfigureTrackingRequest{Mode: "shelf"}, f.actor)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.catalog.ConfigureTracking(ctx, restaurant, item.ID, ConfigureTrackingRequest{Mode: "option"}, f.actor)
	assert.ErrorIs(t, err, ErrValidation)
	missing := int64(999)
	_, err = f.catalog.ConfigureTracking(ctx, restaurant, item.ID, ConfigureTrackingRequest{Mode: "option", GroupID: &missing}, f.actor)
	assert.ErrorIs(t, err, ErrOptionGroupNotFound)
	_, err = f.catalog.ConfigureTracking(ctx, restaurant, item.ID, ConfigureTrackingRequest{Mode: "variant"}, f.actor)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.catalog.ConfigureTracking(ctx, restaurant, 999, ConfigureTrackingRequest{Mode: "item"}, f.actor)
	assert.ErrorIs(t, err, ErrItemNotFound)

	assert.Equal(t, 3, f.item(t, item.ID).Quantity(), "failed reconfiguration leaves stock untouched")
}
