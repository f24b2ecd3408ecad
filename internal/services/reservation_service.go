package services

import (
	"commerce_backend/internal/models"
	"commerce_backend/internal/repositories"
	"commerce_backend/internal/stock"
	"errors"
	"fmt"
	"sort"
)

var (
	ErrItemNotFound    = errors.New("catalog item not found")
	ErrItemUnavailable = errors.New("catalog item is not available for sale")
)

// auditPageSize bounds each read of an order's reservation audits.
const auditPageSize = 200

// ReservationService takes and gives back stock for orders. Every method runs
// inside the caller's unit of work; nothing is visible until the caller commits.
type ReservationService interface {
	// Reserve prices every line, inserts the order row and takes stock for all
	// lines. Any error leaves the unit of work to be rolled back as a whole.
	Reserve(uow repositories.UnitOfWork, order *models.Order) error
	// Restore puts back exactly what Reserve took for the order, with
	// order_cancelled audit rows carrying reason.
	Restore(uow repositories.UnitOfWork, order *models.Order, reason string, actorID *int64) error
	// ReverseSales undoes the sales counters Reserve incremented.
	ReverseSales(uow repositories.UnitOfWork, order *models.Order) error
}

type reservationService struct{}

func NewReservationService() ReservationService {
	return &reservationService{}
}

// lineTarget is one ledger entity touched by one order line.
type lineTarget struct {
	ref    models.EntityRef
	amount int
}

func (s *reservationService) Reserve(uow repositories.UnitOfWork, order *models.Order) error {
	var targets []lineTarget
	var salesRefs [][]models.EntityRef // Per line: options and variant whose counters move

	for i := range order.Items {
		line := &order.Items[i]
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for item ID %d must be positive", ErrValidation, line.ItemID)
		}
		item, err := uow.GetItem(order.RestaurantID, line.ItemID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: item ID %d", ErrItemNotFound, line.ItemID)
			}
			return fmt.Errorf("failed to fetch catalog item %d: %w", line.ItemID, err)
		}
		if !item.Available {
			return fmt.Errorf("%w: %s", ErrItemUnavailable, item.Name)
		}
		if line.SelectedOptions == nil {
			line.SelectedOptions = models.SelectedOptions{}
		}
		price, err := stock.ValidateSelection(item, line.SelectedOptions)
		if err != nil {
			return err
		}
		line.ItemName = item.Name
		line.PriceCents = price

		_, resolved, err := stock.ResolveTargets(item, line.SelectedOptions)
		if err != nil {
			return err
		}
		var lineSales []models.EntityRef
		for _, t := range resolved {
			ref := t.Ref
			if ref.Type == models.EntityVariant {
				variant, err := variantForKey(uow, item, t.VariantKey)
				if err != nil {
					return err
				}
				ref = variant.Ref()
				lineSales = append(lineSales, ref)
			}
			targets = append(targets, lineTarget{ref: ref, amount: line.Quantity})
		}
		// Option counters track demand, so they move whether or not the group tracks stock.
		for _, optionIDs := range line.SelectedOptions {
			for _, optionID := range optionIDs {
				lineSales = append(lineSales, models.EntityRef{Type: models.EntityOption, ID: optionID})
			}
		}
		salesRefs = append(salesRefs, lineSales)
	}

	order.TotalCents = order.ComputeTotal()
	if err := uow.CreateOrder(order); err != nil {
		return fmt.Errorf("failed to create order record: %w", err)
	}

	locked, err := lockAll(uow, order.RestaurantID, targets)
	if err != nil {
		return err
	}

	requested := make(map[models.EntityRef]int)
	for _, t := range targets {
		requested[t.ref] += t.amount
	}
	for _, ref := range sortedRefs(requested) {
		if err := stock.CheckAvailable(locked[ref], requested[ref]); err != nil {
			return err
		}
	}

	reason := order.OrderNumber
	for _, t := range targets {
		entity := locked[t.ref]
		// Tracking may have been switched off between the item read and the lock.
		if !entity.TracksStock() {
			continue
		}
		if _, err := applyLedgerDelta(uow, entity, -t.amount, models.AuditOrderPlaced, &reason, order.ActorID, &order.ID); err != nil {
			return err
		}
	}
	for i, refs := range salesRefs {
		line := order.Items[i]
		for _, ref := range refs {
			if err := uow.AddSalesCounters(order.RestaurantID, ref, line.Quantity, line.LineTotalCents()); err != nil {
				return fmt.Errorf("failed to update sales counters for %s: %w", ref, err)
			}
		}
	}
	return nil
}

// variantForKey finds the active variant row for a key. A combination with no
// stock row cannot be sold while the item tracks variants.
func variantForKey(uow repositories.UnitOfWork, item *models.CatalogItem, key string) (*models.ItemVariant, error) {
	variant, err := uow.GetVariantByKey(item.RestaurantID, item.ID, key)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			name, _ := stock.VariantName(item, key)
			return nil, &stock.UnavailableOptionError{ItemName: item.Name, OptionName: name}
		}
		return nil, fmt.Errorf("failed to fetch variant %q of item %d: %w", key, item.ID, err)
	}
	if !variant.Active {
		return nil, &stock.UnavailableOptionError{ItemName: item.Name, OptionID: variant.ID, OptionName: variant.Name}
	}
	return variant, nil
}

// lockAll takes every distinct target's lock in canonical order so that
// concurrent multi-line orders cannot deadlock.
func lockAll(uow repositories.UnitOfWork, restaurantID int64, targets []lineTarget) (map[models.EntityRef]models.LedgerEntity, error) {
	distinct := make(map[models.EntityRef]int)
	for _, t := range targets {
		distinct[t.ref]++
	}
	locked := make(map[models.EntityRef]models.LedgerEntity, len(distinct))
	for _, ref := range sortedRefs(distinct) {
		entity, err := lockEntity(uow, restaurantID, ref)
		if err != nil {
			return nil, err
		}
		locked[ref] = entity
	}
	return locked, nil
}

func sortedRefs(set map[models.EntityRef]int) []models.EntityRef {
	refs := make([]models.EntityRef, 0, len(set))
	for ref := range set {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	return refs
}

// placedAudits reads every order_placed row recorded for the order.
func placedAudits(uow repositories.UnitOfWork, order *models.Order) ([]models.StockAudit, error) {
	auditType := models.AuditOrderPlaced
	filters := models.AuditFilters{
		RestaurantID: order.RestaurantID,
		OrderID:      &order.ID,
		AuditType:    &auditType,
		PageSize:     auditPageSize,
	}
	var all []models.StockAudit
	for page := 1; ; page++ {
		filters.Page = page
		audits, total, err := uow.ListAudits(filters)
		if err != nil {
			return nil, fmt.Errorf("failed to read reservation audits for order %d: %w", order.ID, err)
		}
		all = append(all, audits...)
		if len(audits) == 0 || len(all) >= total {
			return all, nil
		}
	}
}

// Restore replays the order's order_placed rows in reverse, so it returns the
// same entities and amounts even if the item's tracking mode changed since.
// Entities that no longer track stock are skipped.
func (s *reservationService) Restore(uow repositories.UnitOfWork, order *models.Order, reason string, actorID *int64) error {
	audits, err := placedAudits(uow, order)
	if err != nil {
		return err
	}
	targets := make([]lineTarget, 0, len(audits))
	for _, a := range audits {
		targets = append(targets, lineTarget{ref: a.Entity, amount: -a.QuantityChange})
	}
	locked, err := lockAll(uow, order.RestaurantID, targets)
	if err != nil {
		return err
	}

	for _, t := range targets {
		entity := locked[t.ref]
		if !entity.TracksStock() {
			continue
		}
		if _, err := applyLedgerDelta(uow, entity, t.amount, models.AuditOrderCancelled, &reason, actorID, &order.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *reservationService) ReverseSales(uow repositories.UnitOfWork, order *models.Order) error {
	audits, err := placedAudits(uow, order)
	if err != nil {
		return err
	}
	reservedVariants := make(map[int64]bool)
	for _, a := range audits {
		if a.Entity.Type == models.EntityVariant {
			reservedVariants[a.Entity.ID] = true
		}
	}

	for _, line := range order.Items {
		revenue := line.LineTotalCents()
		for _, optionIDs := range line.SelectedOptions {
			for _, optionID := range optionIDs {
				ref := models.EntityRef{Type: models.EntityOption, ID: optionID}
				if err := uow.AddSalesCounters(order.RestaurantID, ref, -line.Quantity, -revenue); err != nil {
					return fmt.Errorf("failed to reverse sales counters for %s: %w", ref, err)
				}
			}
		}
		if len(reservedVariants) == 0 {
			continue
		}
		variant, err := uow.GetVariantByKey(order.RestaurantID, line.ItemID, stock.EncodeVariantKey(line.SelectedOptions))
		if errors.Is(err, repositories.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to fetch variant for order line %d: %w", line.ID, err)
		}
		if reservedVariants[variant.ID] {
			if err := uow.AddSalesCounters(order.RestaurantID, variant.Ref(), -line.Quantity, -revenue); err != nil {
				return fmt.Errorf("failed to reverse sales counters for %s: %w", variant.Ref(), err)
			}
		}
	}
	return nil
}
