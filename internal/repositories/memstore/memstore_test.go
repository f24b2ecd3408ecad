package memstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"commerce_backend/internal/models"
	"commerce_backend/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTrackedItem(t *testing.T, s *Store, qty int) *models.CatalogItem {
	t.Helper()
	uow, err := s.Begin(context.Background())
	require.NoError(t, err)
	item := &models.CatalogItem{
		RestaurantID:   1,
		Name:           "Flour 25kg",
		PriceCents:     2500,
		Available:      true,
		TrackInventory: true,
		StockLevel: models.StockLevel{
			StockQuantity:   models.IntPtr(qty),
			DamagedQuantity: models.IntPtr(0),
			StockStatus:     models.StockIn,
		},
	}
	require.NoError(t, uow.CreateItem(item))
	require.NoError(t, uow.Commit())
	return item
}

func TestRollbackUndoesWrites(t *testing.T) {
	s := New()
	item := seedTrackedItem(t, s, 10)
	ctx := context.Background()

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	e, err := uow.LockEntity(1, item.Ref())
	require.NoError(t, err)
	e.Level().StockQuantity = models.IntPtr(3)
	require.NoError(t, uow.SaveStockLevel(e))
	require.NoError(t, uow.AppendAudit(&models.StockAudit{RestaurantID: 1, Entity: item.Ref(), AuditType: models.AuditManualAdjustment, QuantityChange: -7, PreviousQuantity: 10, NewQuantity: 3}))
	require.NoError(t, uow.Rollback())

	check, err := s.Begin(ctx)
	require.NoError(t, err)
	defer check.Rollback()
	got, err := check.GetItem(1, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Quantity())
	audits, total, err := check.ListAudits(models.AuditFilters{RestaurantID: 1, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, audits)
	assert.Zero(t, total)
}

func TestSaveStockLevelRequiresLock(t *testing.T) {
	s := New()
	item := seedTrackedItem(t, s, 5)

	uow, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer uow.Rollback()
	got, err := uow.GetItem(1, item.ID)
	require.NoError(t, err)
	err = uow.SaveStockLevel(got)
	assert.ErrorIs(t, err, repositories.ErrNotLocked)
}

func TestCommitTwiceAndRollbackAfterCommit(t *testing.T) {
	s := New()
	uow, err := s.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, uow.Commit())
	assert.ErrorIs(t, uow.Commit(), sql.ErrTxDone)
	assert.NoError(t, uow.Rollback())
	_, err = uow.GetItem(1, 1)
	assert.ErrorIs(t, err, sql.ErrTxDone)
}

func TestEntityLockBlocksUntilRelease(t *testing.T) {
	s := New()
	item := seedTrackedItem(t, s, 5)
	ctx := context.Background()

	first, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = first.LockEntity(1, item.Ref())
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := s.Begin(ctx)
		if err != nil {
			return
		}
		defer second.Rollback()
		if _, err := second.LockEntity(1, item.Ref()); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second unit of work acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, first.Commit())
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was not released on commit")
	}
}

func TestLockHonoursContext(t *testing.T) {
	s := New()
	item := seedTrackedItem(t, s, 5)

	holder, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer holder.Rollback()
	_, err = holder.LockEntity(1, item.Ref())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	waiter, err := s.Begin(ctx)
	require.NoError(t, err)
	defer waiter.Rollback()
	_, err = waiter.LockEntity(1, item.Ref())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTenantScoping(t *testing.T) {
	s := New()
	item := seedTrackedItem(t, s, 5)

	uow, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer uow.Rollback()
	_, err = uow.GetItem(2, item.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = uow.LockEntity(2, item.Ref())
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestCatalogConstraints(t *testing.T) {
	s := New()
	item := seedTrackedItem(t, s, 0)
	uow, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer uow.Rollback()

	size := &models.OptionGroup{ItemID: item.ID, Name: "Size", EnableInventoryTracking: true}
	require.NoError(t, uow.CreateOptionGroup(1, size))
	colour := &models.OptionGroup{ItemID: item.ID, Name: "Colour", EnableInventoryTracking: true, Position: 1}
	assert.ErrorIs(t, uow.CreateOptionGroup(1, colour), repositories.ErrDuplicateKey)

	colour.EnableInventoryTracking = false
	require.NoError(t, uow.CreateOptionGroup(1, colour))
	assert.ErrorIs(t, uow.SetGroupTracking(1, colour.ID, true), repositories.ErrDuplicateKey)
	require.NoError(t, uow.SetGroupTracking(1, size.ID, false))
	require.NoError(t, uow.SetGroupTracking(1, colour.ID, true))

	small := &models.Option{GroupID: size.ID, RestaurantID: 1, Name: "Small", Available: true}
	require.NoError(t, uow.CreateOption(small))
	assert.Equal(t, item.ID, small.ItemID)

	v := &models.ItemVariant{ItemID: item.ID, RestaurantID: 1, VariantKey: "1:2", Name: "Small", Active: true}
	require.NoError(t, uow.CreateVariant(v))
	dup := &models.ItemVariant{ItemID: item.ID, RestaurantID: 1, VariantKey: "1:2", Name: "Small", Active: true}
	assert.ErrorIs(t, uow.CreateVariant(dup), repositories.ErrDuplicateKey)

	got, err := uow.GetItem(1, item.ID)
	require.NoError(t, err)
	require.Len(t, got.OptionGroups, 2)
	assert.Equal(t, "Size", got.OptionGroups[0].Name)
	require.Len(t, got.OptionGroups[0].Options, 1)
	assert.False(t, got.OptionGroups[0].Options[0].GroupTracked)
	assert.True(t, got.OptionGroups[1].EnableInventoryTracking)
}

func TestReadsAreCopies(t *testing.T) {
	s := New()
	item := seedTrackedItem(t, s, 5)
	uow, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer uow.Rollback()

	got, err := uow.GetItem(1, item.ID)
	require.NoError(t, err)
	*got.StockQuantity = 99

	again, err := uow.GetItem(1, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, again.Quantity())
}

func TestListAuditsFiltersAndPages(t *testing.T) {
	s := New()
	item := seedTrackedItem(t, s, 5)
	uow, err := s.Begin(context.Background())
	require.NoError(t, err)

	orderID := int64(42)
	base := time.Now()
	for i := 0; i < 5; i++ {
		a := &models.StockAudit{
			RestaurantID: 1, Entity: item.Ref(), AuditType: models.AuditRestock,
			QuantityChange: 1, PreviousQuantity: i, NewQuantity: i + 1,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if i == 4 {
			a.AuditType = models.AuditOrderPlaced
			a.OrderID = &orderID
		}
		require.NoError(t, uow.AppendAudit(a))
	}
	require.NoError(t, uow.Commit())

	read, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer read.Rollback()

	page, total, err := read.ListAudits(models.AuditFilters{RestaurantID: 1, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, 5, page[0].NewQuantity, "newest first")

	byOrder, total, err := read.ListAudits(models.AuditFilters{RestaurantID: 1, OrderID: &orderID, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.AuditOrderPlaced, byOrder[0].AuditType)

	other, total, err := read.ListAudits(models.AuditFilters{RestaurantID: 2, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, other)
	assert.Zero(t, total)
}
