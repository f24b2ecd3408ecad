package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"commerce_backend/internal/models"
	"commerce_backend/internal/repositories"
	"commerce_backend/internal/repositories/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errAuditWrite = errors.New("audit table unavailable")

// faultyStore wraps the in-memory store to fail audit writes or to serve a
// stale item snapshot, as a concurrent writer would leave it.
type faultyStore struct {
	*memstore.Store

	mu         sync.Mutex
	failAudits bool
	staleItems map[int64]*models.CatalogItem
}

func (s *faultyStore) Begin(ctx context.Context) (repositories.UnitOfWork, error) {
	uow, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyUnit{UnitOfWork: uow, store: s}, nil
}

func (s *faultyStore) setFailAudits(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAudits = fail
}

type faultyUnit struct {
	repositories.UnitOfWork
	store *faultyStore
}

func (u *faultyUnit) AppendAudit(audit *models.StockAudit) error {
	u.store.mu.Lock()
	fail := u.store.failAudits
	u.store.mu.Unlock()
	if fail {
		return errAuditWrite
	}
	return u.UnitOfWork.AppendAudit(audit)
}

func (u *faultyUnit) GetItem(restaurantID, itemID int64) (*models.CatalogItem, error) {
	u.store.mu.Lock()
	stale, ok := u.store.staleItems[itemID]
	u.store.mu.Unlock()
	if ok {
		return stale, nil
	}
	return u.UnitOfWork.GetItem(restaurantID, itemID)
}

// newFaultyFixture reads back through the plain store while the ledger and
// order services write through the faulty one.
func newFaultyFixture(t *testing.T) (*fixture, *faultyStore) {
	t.Helper()
	f := newFixture(t)
	faulty := &faultyStore{Store: f.store, staleItems: map[int64]*models.CatalogItem{}}
	f.ledger = NewLedgerService(faulty)
	f.orders = NewOrderService(faulty, NewReservationService(), f.dispatcher)
	return f, faulty
}

func TestAuditFailureRollsBackReservation(t *testing.T) {
	f, faulty := newFaultyFixture(t)
	ctx := context.Background()
	item, group, opts := f.sizedShirt(t, true)
	before := f.item(t, item.ID)

	faulty.setFailAudits(true)
	_, err := f.order(t, line(item.ID, 2, models.SelectedOptions{group.ID: {opts[1].ID}}))
	require.ErrorIs(t, err, errAuditWrite)

	after := f.item(t, item.ID)
	large := after.OptionGroups[0].Options[1]
	assert.Equal(t, 5, large.Quantity())
	assert.Equal(t, before.OptionGroups[0].Options[1].StockStatus, large.StockStatus)
	assert.Zero(t, large.TotalOrdered)
	assert.Zero(t, large.TotalRevenueCents)

	orders, total, err := f.orders.ListOrders(ctx, models.OrderFilters{RestaurantID: restaurant, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
}

func TestAuditFailureRollsBackAdjustment(t *testing.T) {
	f, faulty := newFaultyFixture(t)
	ctx := context.Background()
	item := f.trackedItem(t, "Salt", 90, 4, 5)

	faulty.setFailAudits(true)
	_, err := f.ledger.ApplyDelta(ctx, restaurant, StockAdjustmentRequest{
		EntityType: "item", EntityID: item.ID, Delta: 20, AuditType: "restock",
	}, f.actor)
	require.ErrorIs(t, err, errAuditWrite)

	got := f.item(t, item.ID)
	assert.Equal(t, 4, got.Quantity())
	assert.Equal(t, models.StockLow, got.StockStatus)

	faulty.setFailAudits(false)
	assert.Len(t, f.audits(t, models.AuditFilters{EntityID: &item.ID}), 1, "only the opening stock row")
}

func TestReserveSkipsTargetsThatStoppedTracking(t *testing.T) {
	f, faulty := newFaultyFixture(t)
	ctx := context.Background()
	item, group, opts := f.sizedShirt(t, true)
	// The order reads the item as it was before tracking was switched off.
	faulty.staleItems[item.ID] = f.item(t, item.ID)

	_, err := f.catalog.ConfigureTracking(ctx, restaurant, item.ID, ConfigureTrackingRequest{Mode: "untracked"}, f.actor)
	require.NoError(t, err)

	placed, err := f.order(t, line(item.ID, 3, models.SelectedOptions{group.ID: {opts[0].ID}}))
	require.NoError(t, err)

	small := f.item(t, item.ID).OptionGroups[0].Options[0]
	assert.Nil(t, small.StockQuantity)
	assert.Equal(t, models.StockUnlimited, small.StockStatus)
	assert.Equal(t, 3, small.TotalOrdered)

	orderAudit := models.AuditOrderPlaced
	assert.Empty(t, f.audits(t, models.AuditFilters{OrderID: &placed.ID, AuditType: &orderAudit}))
}
