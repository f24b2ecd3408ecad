package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"commerce_backend/internal/models"
	"commerce_backend/internal/stock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestReserveRejectCancelScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.trackedItem(t, "Flour 25kg", 1000, 10, 5)
	assert.Equal(t, models.StockIn, item.StockStatus)

	_, err := f.ledger.MarkDamaged(ctx, restaurant, DamageRequest{EntityType: "item", EntityID: item.ID, Quantity: 2}, f.actor)
	require.NoError(t, err)
	got := f.item(t, item.ID)
	assert.Equal(t, 8, got.AvailableQuantity())
	assert.Equal(t, models.StockIn, got.StockStatus)

	first, err := f.order(t, line(item.ID, 4, nil))
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, first.Status)
	assert.Equal(t, int64(4000), first.TotalCents)
	assert.Equal(t, "Flour 25kg", first.Items[0].ItemName)
	assert.Equal(t, int64(1000), first.Items[0].PriceCents)

	got = f.item(t, item.ID)
	assert.Equal(t, 6, got.Quantity())
	assert.Equal(t, 2, got.Damaged())
	assert.Equal(t, 4, got.AvailableQuantity())
	assert.Equal(t, models.StockLow, got.StockStatus, "four available is at or below the threshold of five")

	_, err = f.order(t, line(item.ID, 5, nil))
	require.ErrorIs(t, err, stock.ErrInsufficientStock)
	var insufficient *stock.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 5, insufficient.Requested)
	assert.Equal(t, 4, insufficient.Available)
	assert.Equal(t, 6, f.item(t, item.ID).Quantity(), "rejected order leaves stock untouched")

	cancelled, err := f.transition(t, first.ID, models.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)

	got = f.item(t, item.ID)
	assert.Equal(t, 10, got.Quantity())
	assert.Equal(t, 8, got.AvailableQuantity())
	assert.Equal(t, models.StockIn, got.StockStatus)

	placedType, cancelledType := models.AuditOrderPlaced, models.AuditOrderCancelled
	placed := f.audits(t, models.AuditFilters{EntityID: &item.ID, AuditType: &placedType})
	require.Len(t, placed, 1)
	assert.Equal(t, -4, placed[0].QuantityChange)
	assert.Equal(t, 10, placed[0].PreviousQuantity)
	assert.Equal(t, 6, placed[0].NewQuantity)
	require.NotNil(t, placed[0].OrderID)
	assert.Equal(t, first.ID, *placed[0].OrderID)
	require.NotNil(t, placed[0].Reason)
	assert.Equal(t, first.OrderNumber, *placed[0].Reason)
	assert.Equal(t, f.actor, placed[0].ActorID)

	returned := f.audits(t, models.AuditFilters{EntityID: &item.ID, AuditType: &cancelledType})
	require.Len(t, returned, 1)
	assert.Equal(t, 4, returned[0].QuantityChange)
	assert.Equal(t, 10, returned[0].NewQuantity)
}

func TestReserveAndCancelConserveStock(t *testing.T) {
	f := newFixture(t)
	item := f.trackedItem(t, "Sugar", 250, 20, 3)

	var orders []*models.Order
	for _, qty := range []int{1, 2, 3, 5} {
		o, err := f.order(t, line(item.ID, qty, nil))
		require.NoError(t, err)
		orders = append(orders, o)
	}
	assert.Equal(t, 9, f.item(t, item.ID).Quantity())

	for _, o := range orders {
		_, err := f.transition(t, o.ID, models.OrderCancelled)
		require.NoError(t, err)
	}
	assert.Equal(t, 20, f.item(t, item.ID).Quantity())

	// Every audit row chains onto the previous one and the deltas net to zero.
	audits := f.audits(t, models.AuditFilters{EntityID: &item.ID})
	sum := 0
	for _, a := range audits {
		assert.Equal(t, a.PreviousQuantity+a.QuantityChange, a.NewQuantity)
		if a.AuditType != models.AuditRestock {
			sum += a.QuantityChange
		}
	}
	assert.Zero(t, sum)
}

func TestMultiLineOrderIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plenty := f.trackedItem(t, "Oil 5L", 900, 10, 2)
	scarce := f.trackedItem(t, "Saffron", 5000, 1, 0)

	_, err := f.order(t, line(plenty.ID, 3, nil), line(scarce.ID, 2, nil))
	require.ErrorIs(t, err, stock.ErrInsufficientStock)
	assert.Equal(t, 10, f.item(t, plenty.ID).Quantity())
	assert.Equal(t, 1, f.item(t, scarce.ID).Quantity())

	orders, total, err := f.orders.ListOrders(ctx, models.OrderFilters{RestaurantID: restaurant})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Zero(t, total)

	placedType := models.AuditOrderPlaced
	assert.Empty(t, f.audits(t, models.AuditFilters{AuditType: &placedType}))

	// Lines for the same item are checked against their combined amount.
	_, err = f.order(t, line(plenty.ID, 6, nil), line(plenty.ID, 6, nil))
	require.ErrorIs(t, err, stock.ErrInsufficientStock)
	assert.Equal(t, 10, f.item(t, plenty.ID).Quantity())
}

func TestOrderRejectsUnknownAndUnavailableItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.order(t, line(999, 1, nil))
	assert.ErrorIs(t, err, ErrItemNotFound)

	unavailable := false
	item, err := f.catalog.CreateItem(ctx, restaurant, CreateItemRequest{Name: "Seasonal", PriceCents: 100, Available: &unavailable}, f.actor)
	require.NoError(t, err)
	_, err = f.order(t, line(item.ID, 1, nil))
	assert.ErrorIs(t, err, ErrItemUnavailable)

	_, err = f.orders.CreateOrder(ctx, restaurant, CreateOrderRequest{}, f.actor)
	assert.ErrorIs(t, err, ErrValidation)

	// Another restaurant cannot order this restaurant's items.
	_, err = f.orders.CreateOrder(ctx, 2, CreateOrderRequest{Items: []CreateOrderItemRequest{line(item.ID, 1, nil)}}, f.actor)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestOversellAllowedItem(t *testing.T) {
	f := newFixture(t)
	item, err := f.catalog.CreateItem(context.Background(), restaurant, CreateItemRequest{
		Name: "Bread", PriceCents: 300, TrackInventory: true, AllowSaleWithNoStock: true, InitialStock: 1,
	}, f.actor)
	require.NoError(t, err)

	_, err = f.order(t, line(item.ID, 3, nil))
	require.NoError(t, err)
	got := f.item(t, item.ID)
	assert.Equal(t, -2, got.Quantity())
	assert.Equal(t, models.StockOutOfStock, got.StockStatus)

	placedType := models.AuditOrderPlaced
	assert.Len(t, f.audits(t, models.AuditFilters{EntityID: &item.ID, AuditType: &placedType}), 1)
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	f := newFixture(t)
	const available, perOrder, workers = 10, 3, 8
	item := f.trackedItem(t, "Coffee beans", 1200, available, 2)

	var placed atomic.Int32
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := f.order(t, line(item.ID, perOrder, nil))
			if errors.Is(err, stock.ErrInsufficientStock) {
				return nil
			}
			if err != nil {
				return err
			}
			placed.Add(1)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(available/perOrder), placed.Load())
	assert.Equal(t, available-perOrder*(available/perOrder), f.item(t, item.ID).Quantity())
}

func TestCrossedMultiLineOrdersDoNotDeadlock(t *testing.T) {
	f := newFixture(t)
	a := f.trackedItem(t, "Tea", 400, 50, 5)
	b := f.trackedItem(t, "Honey", 700, 50, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		lines := []CreateOrderItemRequest{line(a.ID, 1, nil), line(b.ID, 1, nil)}
		if i%2 == 1 {
			lines[0], lines[1] = lines[1], lines[0]
		}
		g.Go(func() error {
			_, err := f.orders.CreateOrder(ctx, restaurant, CreateOrderRequest{Items: lines}, f.actor)
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 30, f.item(t, a.ID).Quantity())
	assert.Equal(t, 30, f.item(t, b.ID).Quantity())
}

func TestOrderTransitions(t *testing.T) {
	f := newFixture(t)
	item := f.trackedItem(t, "Salt", 100, 10, 2)

	o, err := f.order(t, line(item.ID, 2, nil))
	require.NoError(t, err)

	fulfilled, err := f.transition(t, o.ID, models.OrderFulfilled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderFulfilled, fulfilled.Status)
	event := f.dispatcher.awaitEvent(t)
	assert.Equal(t, o.ID, event.OrderID)
	assert.Equal(t, models.OrderPending, event.PreviousStatus)
	assert.Equal(t, models.OrderFulfilled, event.Status)
	assert.Equal(t, int64(200), event.TotalCents)

	_, err = f.transition(t, o.ID, models.OrderCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, f.dispatcher.awaitEvent(t).Status)

	_, err = f.transition(t, o.ID, models.OrderCancelled)
	require.ErrorIs(t, err, ErrIllegalTransition)
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, models.OrderCompleted, illegal.From)
	assert.Equal(t, models.OrderCancelled, illegal.To)
	assert.Equal(t, 8, f.item(t, item.ID).Quantity(), "illegal transition has no side effect")

	other, err := f.order(t, line(item.ID, 1, nil))
	require.NoError(t, err)
	_, err = f.transition(t, other.ID, models.OrderPaid)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	_, err = f.transition(t, other.ID, "shipped")
	assert.ErrorIs(t, err, ErrInvalidOrderStatus)
	_, err = f.transition(t, 12345, models.OrderCancelled)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	// Cancelling from fulfilled still returns stock, and never dispatches.
	_, err = f.transition(t, other.ID, models.OrderFulfilled)
	require.NoError(t, err)
	f.dispatcher.awaitEvent(t)
	_, err = f.transition(t, other.ID, models.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, 8, f.item(t, item.ID).Quantity())
	_, err = f.transition(t, other.ID, models.OrderPending)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	select {
	case e := <-f.dispatcher.events:
		t.Fatalf("unexpected event for %s", e.Status)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRefundRestoresStockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.trackedItem(t, "Pasta", 350, 10, 2)

	o, err := f.order(t, line(item.ID, 4, nil))
	require.NoError(t, err)
	_, err = f.transition(t, o.ID, models.OrderFulfilled)
	require.NoError(t, err)

	refunded, err := f.orders.RefundOrder(ctx, restaurant, o.ID, f.actor)
	require.NoError(t, err)
	require.NotNil(t, refunded.RefundedAt)
	assert.Equal(t, models.OrderFulfilled, refunded.Status)
	assert.Equal(t, 10, f.item(t, item.ID).Quantity())

	_, err = f.orders.RefundOrder(ctx, restaurant, o.ID, f.actor)
	assert.ErrorIs(t, err, ErrAlreadyRefunded)

	// Cancelling a refunded order does not return the stock a second time.
	_, err = f.transition(t, o.ID, models.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, 10, f.item(t, item.ID).Quantity())
}

func TestRefundAfterCancelOnlyReversesSales(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, _, opts := f.sizedShirt(t, true)
	large := opts[1]

	o, err := f.order(t, line(item.ID, 2, models.SelectedOptions{large.GroupID: {large.ID}}))
	require.NoError(t, err)
	assert.Equal(t, int64(2*(1500+200)), o.TotalCents)

	got := f.item(t, item.ID).OptionGroups[0].Options[1]
	assert.Equal(t, 3, got.Quantity())
	assert.Equal(t, 2, got.TotalOrdered)
	assert.Equal(t, int64(3400), got.TotalRevenueCents)

	_, err = f.transition(t, o.ID, models.OrderCancelled)
	require.NoError(t, err)
	_, err = f.orders.RefundOrder(ctx, restaurant, o.ID, f.actor)
	require.NoError(t, err)

	got = f.item(t, item.ID).OptionGroups[0].Options[1]
	assert.Equal(t, 5, got.Quantity())
	assert.Zero(t, got.TotalOrdered)
	assert.Zero(t, got.TotalRevenueCents)
}

func TestListOrdersFiltersAndPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.trackedItem(t, "Beans", 100, 100, 2)

	for i := 0; i < 5; i++ {
		_, err := f.order(t, line(item.ID, 1, nil))
		require.NoError(t, err)
	}
	first, _, err := f.orders.ListOrders(ctx, models.OrderFilters{RestaurantID: restaurant, Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	_, err = f.transition(t, first[0].ID, models.OrderCancelled)
	require.NoError(t, err)

	cancelled := string(models.OrderCancelled)
	orders, total, err := f.orders.ListOrders(ctx, models.OrderFilters{RestaurantID: restaurant, Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, first[0].ID, orders[0].ID)

	_, total, err = f.orders.ListOrders(ctx, models.OrderFilters{RestaurantID: restaurant, Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	bogus := "lost"
	_, _, err = f.orders.ListOrders(ctx, models.OrderFilters{RestaurantID: restaurant, Status: &bogus})
	assert.ErrorIs(t, err, ErrInvalidOrderStatus)

	got, err := f.orders.GetOrder(ctx, restaurant, first[1].ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	_, err = f.orders.GetOrder(ctx, 2, first[1].ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderNumbersAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := newOrderNumber()
		assert.Regexp(t, `^ORD-[0-9A-F]{12}$`, n)
		assert.False(t, seen[n])
		seen[n] = true
	}
}
