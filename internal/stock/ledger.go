package stock

import (
	"fmt"

	"commerce_backend/internal/models"
)

// Mutation is the before/after of one counter change, copied onto the audit row.
type Mutation struct {
	Previous int
	New      int
	Change   int
}

// CheckAvailable verifies requested units can be taken from the entity.
// Entities that allow overselling always pass.
func CheckAvailable(e models.LedgerEntity, requested int) error {
	if !e.TracksStock() || e.AllowsOversell() {
		return nil
	}
	if avail := e.Level().AvailableQuantity(); avail < requested {
		return &InsufficientStockError{Entity: e.Ref(), Name: e.Label(), Requested: requested, Available: avail}
	}
	return nil
}

// ApplyDelta moves the stock quantity by delta and refreshes the derived status.
// The entity is only modified when the guard passes.
func ApplyDelta(e models.LedgerEntity, delta int) (Mutation, error) {
	if !e.TracksStock() {
		return Mutation{}, fmt.Errorf("%w: %s", ErrTrackingDisabled, e.Ref())
	}
	lvl := e.Level()
	current := lvl.Quantity()
	proposed := current + delta
	if proposed < 0 && !e.AllowsOversell() {
		return Mutation{}, &NegativeStockError{Entity: e.Ref(), Current: current, Delta: delta, Proposed: proposed}
	}
	// Removals may not leave fewer units on hand than are marked damaged.
	if delta < 0 && proposed < lvl.Damaged() && !e.AllowsOversell() {
		return Mutation{}, fmt.Errorf("%w: %s would hold %d with %d damaged",
			ErrDamagedExceedsStock, e.Ref(), proposed, lvl.Damaged())
	}
	lvl.StockQuantity = models.IntPtr(proposed)
	if lvl.DamagedQuantity == nil {
		lvl.DamagedQuantity = models.IntPtr(0)
	}
	Refresh(e)
	return Mutation{Previous: current, New: proposed, Change: delta}, nil
}

// MarkDamaged raises the damaged counter without touching the stock quantity.
func MarkDamaged(e models.LedgerEntity, quantity int) (Mutation, error) {
	if quantity <= 0 {
		return Mutation{}, fmt.Errorf("damaged quantity must be positive, got %d", quantity)
	}
	if !e.TracksStock() {
		return Mutation{}, fmt.Errorf("%w: %s", ErrTrackingDisabled, e.Ref())
	}
	lvl := e.Level()
	current := lvl.Damaged()
	proposed := current + quantity
	if proposed > lvl.Quantity() {
		return Mutation{}, fmt.Errorf("%w: %s has %d in stock, %d would be damaged",
			ErrDamagedExceedsStock, e.Ref(), lvl.Quantity(), proposed)
	}
	lvl.DamagedQuantity = models.IntPtr(proposed)
	if lvl.StockQuantity == nil {
		lvl.StockQuantity = models.IntPtr(0)
	}
	Refresh(e)
	return Mutation{Previous: current, New: proposed, Change: quantity}, nil
}

// StartTracking gives a freshly tracked entity its opening counters.
func StartTracking(e models.LedgerEntity, initial int, threshold *int) {
	lvl := e.Level()
	lvl.StockQuantity = models.IntPtr(initial)
	lvl.DamagedQuantity = models.IntPtr(0)
	lvl.LowStockThreshold = threshold
	Refresh(e)
}
