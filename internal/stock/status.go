// Package stock holds the inventory rules shared by every store: status derivation,
// variant key encoding, tracking-mode resolution and ledger arithmetic.
package stock

import "commerce_backend/internal/models"

// DefaultLowStockThreshold applies when an entity has no threshold of its own.
const DefaultLowStockThreshold = 10

// DeriveStatus computes the stock status from the raw counters.
func DeriveStatus(quantity, damaged int, threshold *int, trackingEnabled bool) models.StockStatus {
	if !trackingEnabled {
		return models.StockUnlimited
	}
	available := quantity - damaged
	if available <= 0 {
		return models.StockOutOfStock
	}
	limit := DefaultLowStockThreshold
	if threshold != nil {
		limit = *threshold
	}
	if available <= limit {
		return models.StockLow
	}
	return models.StockIn
}

// Refresh recomputes and stores the derived status on the entity.
func Refresh(e models.LedgerEntity) models.StockStatus {
	lvl := e.Level()
	lvl.StockStatus = DeriveStatus(lvl.Quantity(), lvl.Damaged(), lvl.LowStockThreshold, e.TracksStock())
	return lvl.StockStatus
}
