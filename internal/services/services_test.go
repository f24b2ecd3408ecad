package services

import (
	"context"
	"testing"
	"time"

	"commerce_backend/internal/models"
	"commerce_backend/internal/notify"
	"commerce_backend/internal/repositories/memstore"

	"github.com/stretchr/testify/require"
)

const restaurant = int64(1)

// recordingDispatcher hands every event to a buffered channel.
type recordingDispatcher struct {
	events chan notify.OrderEvent
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{events: make(chan notify.OrderEvent, 16)}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event notify.OrderEvent) error {
	d.events <- event
	return nil
}

func (d *recordingDispatcher) Close() error { return nil }

type fixture struct {
	store      *memstore.Store
	catalog    CatalogService
	ledger     LedgerService
	orders     OrderService
	dispatcher *recordingDispatcher
	actor      *int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	dispatcher := newRecordingDispatcher()
	actor := int64(77)
	return &fixture{
		store:      store,
		catalog:    NewCatalogService(store),
		ledger:     NewLedgerService(store),
		orders:     NewOrderService(store, NewReservationService(), dispatcher),
		dispatcher: dispatcher,
		actor:      &actor,
	}
}

func (f *fixture) trackedItem(t *testing.T, name string, priceCents int64, initial, threshold int) *models.CatalogItem {
	t.Helper()
	item, err := f.catalog.CreateItem(context.Background(), restaurant, CreateItemRequest{
		Name:              name,
		PriceCents:        priceCents,
		TrackInventory:    true,
		InitialStock:      initial,
		LowStockThreshold: &threshold,
	}, f.actor)
	require.NoError(t, err)
	return item
}

func (f *fixture) item(t *testing.T, itemID int64) *models.CatalogItem {
	t.Helper()
	item, err := f.catalog.GetItem(context.Background(), restaurant, itemID)
	require.NoError(t, err)
	return item
}

func (f *fixture) order(t *testing.T, lines ...CreateOrderItemRequest) (*models.Order, error) {
	t.Helper()
	return f.orders.CreateOrder(context.Background(), restaurant, CreateOrderRequest{Items: lines}, f.actor)
}

func (f *fixture) transition(t *testing.T, orderID int64, status models.OrderStatus) (*models.Order, error) {
	t.Helper()
	return f.orders.TransitionOrder(context.Background(), restaurant, orderID, UpdateOrderStatusRequest{Status: string(status)}, f.actor)
}

func (f *fixture) audits(t *testing.T, filters models.AuditFilters) []models.StockAudit {
	t.Helper()
	filters.RestaurantID = restaurant
	filters.PageSize = 1000
	audits, _, err := f.ledger.ListAudits(context.Background(), filters)
	require.NoError(t, err)
	return audits
}

func line(itemID int64, quantity int, selected models.SelectedOptions) CreateOrderItemRequest {
	return CreateOrderItemRequest{ItemID: itemID, Quantity: quantity, SelectedOptions: selected}
}

// awaitEvent waits for one dispatched event.
func (d *recordingDispatcher) awaitEvent(t *testing.T) notify.OrderEvent {
	t.Helper()
	select {
	case e := <-d.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no order event dispatched")
		return notify.OrderEvent{}
	}
}

// sizedShirt creates an item with a Size group holding Small and Large.
func (f *fixture) sizedShirt(t *testing.T, tracked bool) (*models.CatalogItem, *models.OptionGroup, []*models.Option) {
	t.Helper()
	ctx := context.Background()
	item, err := f.catalog.CreateItem(ctx, restaurant, CreateItemRequest{Name: "Shirt", PriceCents: 1500}, f.actor)
	require.NoError(t, err)
	group, err := f.catalog.CreateOptionGroup(ctx, restaurant, item.ID, CreateOptionGroupRequest{
		Name: "Size", MaxSelect: 1, Required: true, EnableInventoryTracking: tracked,
	})
	require.NoError(t, err)

	var opts []*models.Option
	for i, name := range []string{"Small", "Large"} {
		opt, err := f.catalog.CreateOption(ctx, restaurant, group.ID, CreateOptionRequest{
			Name: name, Position: i, AdditionalPriceCents: int64(i * 200), InitialStock: 5,
		}, f.actor)
		require.NoError(t, err)
		opts = append(opts, opt)
	}
	return item, group, opts
}
