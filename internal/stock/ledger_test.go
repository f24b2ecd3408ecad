package stock

import (
	"testing"

	"commerce_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackedItem(qty, damaged int) *models.CatalogItem {
	item := &models.CatalogItem{ID: 3, Name: "Rice 10kg", TrackInventory: true}
	item.StockQuantity = models.IntPtr(qty)
	item.DamagedQuantity = models.IntPtr(damaged)
	item.LowStockThreshold = models.IntPtr(5)
	Refresh(item)
	return item
}

func TestCheckAvailable(t *testing.T) {
	item := trackedItem(10, 2)
	assert.NoError(t, CheckAvailable(item, 8))

	err := CheckAvailable(item, 9)
	require.ErrorIs(t, err, ErrInsufficientStock)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 8, insufficient.Available)
	assert.Equal(t, 9, insufficient.Requested)
	assert.Contains(t, err.Error(), "Requested: 9, Available: 8")

	item.AllowSaleWithNoStock = true
	assert.NoError(t, CheckAvailable(item, 100))

	untracked := &models.CatalogItem{Name: "Service fee"}
	assert.NoError(t, CheckAvailable(untracked, 1000))
}

func TestApplyDelta(t *testing.T) {
	item := trackedItem(10, 2)
	m, err := ApplyDelta(item, -4)
	require.NoError(t, err)
	assert.Equal(t, Mutation{Previous: 10, New: 6, Change: -4}, m)
	assert.Equal(t, models.StockLow, item.StockStatus)

	m, err = ApplyDelta(item, 4)
	require.NoError(t, err)
	assert.Equal(t, 10, m.New)
	assert.Equal(t, models.StockIn, item.StockStatus)
}

func TestApplyDeltaNegativeGuard(t *testing.T) {
	item := trackedItem(3, 0)
	_, err := ApplyDelta(item, -4)
	assert.ErrorIs(t, err, ErrNegativeStock)
	assert.Equal(t, 3, item.Quantity(), "entity untouched on failure")

	item.AllowSaleWithNoStock = true
	m, err := ApplyDelta(item, -4)
	require.NoError(t, err)
	assert.Equal(t, -1, m.New)
	assert.Equal(t, models.StockOutOfStock, item.StockStatus)
}

func TestApplyDeltaKeepsDamagedCovered(t *testing.T) {
	item := trackedItem(10, 5)
	_, err := ApplyDelta(item, -8)
	require.ErrorIs(t, err, ErrDamagedExceedsStock)
	assert.Equal(t, 10, item.Quantity(), "entity untouched on failure")
	assert.Equal(t, 5, item.Damaged())

	m, err := ApplyDelta(item, -5)
	require.NoError(t, err)
	assert.Equal(t, 5, m.New)
	assert.Equal(t, 0, item.AvailableQuantity())
	assert.Equal(t, models.StockOutOfStock, item.StockStatus)

	// Restocks are never blocked by the damaged counter.
	_, err = ApplyDelta(item, 1)
	assert.NoError(t, err)
}

func TestApplyDeltaRequiresTracking(t *testing.T) {
	item := &models.CatalogItem{Name: "Gift wrap"}
	_, err := ApplyDelta(item, 1)
	assert.ErrorIs(t, err, ErrTrackingDisabled)
}

func TestMarkDamaged(t *testing.T) {
	item := trackedItem(10, 0)
	m, err := MarkDamaged(item, 2)
	require.NoError(t, err)
	assert.Equal(t, Mutation{Previous: 0, New: 2, Change: 2}, m)
	assert.Equal(t, 10, item.Quantity())
	assert.Equal(t, 8, item.AvailableQuantity())

	_, err = MarkDamaged(item, 9)
	assert.ErrorIs(t, err, ErrDamagedExceedsStock)
	_, err = MarkDamaged(item, 0)
	assert.Error(t, err)
}

func TestStartTracking(t *testing.T) {
	opt := &models.Option{ID: 5, Name: "Large", GroupTracked: true}
	StartTracking(opt, 12, nil)
	assert.Equal(t, 12, opt.Quantity())
	assert.Equal(t, 0, opt.Damaged())
	assert.Equal(t, models.StockIn, opt.StockStatus)
}
