// Package memstore is an in-process repositories.Store. Units of work take
// per-entity locks that block until released by Commit or Rollback, and undo
// their own writes on Rollback.
//
// Rows that are not locked can be read while another unit of work is still
// writing them. Stock levels are only ever written under a lock, so quantity
// checks never see a half-applied reservation.
package memstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"commerce_backend/internal/models"
	"commerce_backend/internal/repositories"
)

// Store keeps every table in maps guarded by mu. Entity locks live in locks and
// are independent of mu.
type Store struct {
	mu       sync.Mutex
	lastID   int64
	items    map[int64]*models.CatalogItem // OptionGroups not populated
	groups   map[int64]*models.OptionGroup // Options not populated
	options  map[int64]*models.Option
	variants map[int64]*models.ItemVariant
	orders   map[int64]*models.Order
	audits   []models.StockAudit

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

// New returns an empty store.
func New() *Store {
	return &Store{
		items:    make(map[int64]*models.CatalogItem),
		groups:   make(map[int64]*models.OptionGroup),
		options:  make(map[int64]*models.Option),
		variants: make(map[int64]*models.ItemVariant),
		orders:   make(map[int64]*models.Order),
		locks:    make(map[string]chan struct{}),
	}
}

var _ repositories.Store = (*Store)(nil)

func (s *Store) Begin(ctx context.Context) (repositories.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &unitOfWork{store: s, ctx: ctx, held: make(map[string]bool)}, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) nextID() int64 {
	s.lastID++
	return s.lastID
}

func (s *Store) lockChan(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

type unitOfWork struct {
	store *Store
	ctx   context.Context
	held  map[string]bool
	order []string // Keys in acquisition order
	undo  []func()
	done  bool
}

var _ repositories.UnitOfWork = (*unitOfWork)(nil)

// acquire blocks until the key's lock is free or the context ends.
// Re-acquiring a key already held by this unit of work is a no-op.
func (u *unitOfWork) acquire(key string) error {
	if u.held[key] {
		return nil
	}
	ch := u.store.lockChan(key)
	select {
	case ch <- struct{}{}:
	case <-u.ctx.Done():
		return u.ctx.Err()
	}
	u.held[key] = true
	u.order = append(u.order, key)
	return nil
}

func (u *unitOfWork) release() {
	for i := len(u.order) - 1; i >= 0; i-- {
		<-u.store.lockChan(u.order[i])
	}
	u.held = nil
	u.order = nil
}

func (u *unitOfWork) active() error {
	if u.done {
		return sql.ErrTxDone
	}
	return nil
}

func (u *unitOfWork) Commit() error {
	if u.done {
		return sql.ErrTxDone
	}
	u.done = true
	u.undo = nil
	u.release()
	return nil
}

func (u *unitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	u.store.mu.Lock()
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.store.mu.Unlock()
	u.undo = nil
	u.release()
	return nil
}

func entityKey(ref models.EntityRef) string { return ref.String() }

func orderKey(orderID int64) string { return fmt.Sprintf("order:%d", orderID) }

// --- Catalog ---

func (u *unitOfWork) CreateItem(item *models.CatalogItem) error {
	if err := u.active(); err != nil {
		return err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	item.ID = s.nextID()
	item.CreatedAt, item.UpdatedAt = now, now
	stored := copyItem(item)
	stored.OptionGroups = nil
	s.items[item.ID] = stored
	id := item.ID
	u.undo = append(u.undo, func() { delete(s.items, id) })
	return nil
}

func (u *unitOfWork) GetItem(restaurantID, itemID int64) (*models.CatalogItem, error) {
	if err := u.active(); err != nil {
		return nil, err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.items[itemID]
	if !ok || stored.RestaurantID != restaurantID {
		return nil, repositories.ErrNotFound
	}
	item := copyItem(stored)
	item.OptionGroups = s.groupsFor(itemID)
	return item, nil
}

// groupsFor assembles the item's groups and options ordered by position. Caller holds mu.
func (s *Store) groupsFor(itemID int64) []models.OptionGroup {
	groups := []models.OptionGroup{}
	for _, g := range s.groups {
		if g.ItemID == itemID {
			gc := *g
			gc.Options = nil
			groups = append(groups, gc)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Position != groups[j].Position {
			return groups[i].Position < groups[j].Position
		}
		return groups[i].ID < groups[j].ID
	})
	for gi := range groups {
		for _, o := range s.options {
			if o.GroupID == groups[gi].ID {
				oc := copyOption(o)
				oc.GroupTracked = groups[gi].EnableInventoryTracking
				groups[gi].Options = append(groups[gi].Options, *oc)
			}
		}
		opts := groups[gi].Options
		sort.Slice(opts, func(i, j int) bool {
			if opts[i].Position != opts[j].Position {
				return opts[i].Position < opts[j].Position
			}
			return opts[i].ID < opts[j].ID
		})
	}
	return groups
}

func (u *unitOfWork) ListItems(restaurantID int64, status *models.StockStatus, page, pageSize int) ([]models.CatalogItem, int, error) {
	if err := u.active(); err != nil {
		return nil, 0, err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []models.CatalogItem{}
	for _, it := range s.items {
		if it.RestaurantID != restaurantID {
			continue
		}
		if status != nil && it.StockStatus != *status {
			continue
		}
		matched = append(matched, *copyItem(it))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})
	return paginate(matched, page, pageSize), len(matched), nil
}

func (u *unitOfWork) UpdateItemTracking(item *models.CatalogItem) error {
	if err := u.active(); err != nil {
		return err
	}
	if !u.held[entityKey(item.Ref())] {
		return fmt.Errorf("%w: %s", repositories.ErrNotLocked, item.Ref())
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.items[item.ID]
	if !ok || stored.RestaurantID != item.RestaurantID {
		return repositories.ErrNotFound
	}
	prev := *copyItem(stored)
	item.UpdatedAt = time.Now()
	stored.TrackInventory = item.TrackInventory
	stored.TrackVariants = item.TrackVariants
	stored.AllowSaleWithNoStock = item.AllowSaleWithNoStock
	stored.StockLevel = copyLevel(item.StockLevel)
	stored.UpdatedAt = item.UpdatedAt
	u.undo = append(u.undo, func() { *stored = prev })
	return nil
}

func (u *unitOfWork) CreateOptionGroup(restaurantID int64, group *models.OptionGroup) error {
	if err := u.active(); err != nil {
		return err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[group.ItemID]
	if !ok || item.RestaurantID != restaurantID {
		return repositories.ErrNotFound
	}
	if group.EnableInventoryTracking && s.trackedGroup(group.ItemID, 0) != nil {
		return fmt.Errorf("%w: item %d already has a tracking option group", repositories.ErrDuplicateKey, group.ItemID)
	}
	now := time.Now()
	group.ID = s.nextID()
	group.CreatedAt, group.UpdatedAt = now, now
	stored := *group
	stored.Options = nil
	s.groups[group.ID] = &stored
	id := group.ID
	u.undo = append(u.undo, func() { delete(s.groups, id) })
	return nil
}

// trackedGroup returns the item's tracking group other than exceptID. Caller holds mu.
func (s *Store) trackedGroup(itemID, exceptID int64) *models.OptionGroup {
	for _, g := range s.groups {
		if g.ItemID == itemID && g.ID != exceptID && g.EnableInventoryTracking {
			return g
		}
	}
	return nil
}

func (u *unitOfWork) SetGroupTracking(restaurantID, groupID int64, enabled bool) error {
	if err := u.active(); err != nil {
		return err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok || s.items[g.ItemID] == nil || s.items[g.ItemID].RestaurantID != restaurantID {
		return repositories.ErrNotFound
	}
	if enabled && s.trackedGroup(g.ItemID, groupID) != nil {
		return fmt.Errorf("%w: another option group already tracks inventory", repositories.ErrDuplicateKey)
	}
	prev := *g
	g.EnableInventoryTracking = enabled
	g.UpdatedAt = time.Now()
	u.undo = append(u.undo, func() { *g = prev })
	return nil
}

func (u *unitOfWork) CreateOption(option *models.Option) error {
	if err := u.active(); err != nil {
		return err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[option.GroupID]
	if !ok || s.items[g.ItemID] == nil || s.items[g.ItemID].RestaurantID != option.RestaurantID {
		return repositories.ErrNotFound
	}
	now := time.Now()
	option.ID = s.nextID()
	option.ItemID = g.ItemID
	option.CreatedAt, option.UpdatedAt = now, now
	s.options[option.ID] = copyOption(option)
	id := option.ID
	u.undo = append(u.undo, func() { delete(s.options, id) })
	return nil
}

func (u *unitOfWork) CreateVariant(variant *models.ItemVariant) error {
	if err := u.active(); err != nil {
		return err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[variant.ItemID]
	if !ok || item.RestaurantID != variant.RestaurantID {
		return repositories.ErrNotFound
	}
	for _, v := range s.variants {
		if v.ItemID == variant.ItemID && v.VariantKey == variant.VariantKey {
			return fmt.Errorf("%w: variant key %q on item %d", repositories.ErrDuplicateKey, variant.VariantKey, variant.ItemID)
		}
	}
	now := time.Now()
	variant.ID = s.nextID()
	variant.CreatedAt, variant.UpdatedAt = now, now
	s.variants[variant.ID] = copyVariant(variant)
	id := variant.ID
	u.undo = append(u.undo, func() { delete(s.variants, id) })
	return nil
}

func (u *unitOfWork) GetVariantByKey(restaurantID, itemID int64, key string) (*models.ItemVariant, error) {
	if err := u.active(); err != nil {
		return nil, err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.variants {
		if v.ItemID == itemID && v.RestaurantID == restaurantID && v.VariantKey == key {
			return copyVariant(v), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (u *unitOfWork) ListVariants(restaurantID, itemID int64) ([]models.ItemVariant, error) {
	if err := u.active(); err != nil {
		return nil, err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.ItemVariant{}
	for _, v := range s.variants {
		if v.ItemID == itemID && v.RestaurantID == restaurantID {
			out = append(out, *copyVariant(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariantKey < out[j].VariantKey })
	return out, nil
}

// --- Ledger ---

func (u *unitOfWork) LockEntity(restaurantID int64, ref models.EntityRef) (models.LedgerEntity, error) {
	if err := u.active(); err != nil {
		return nil, err
	}
	if _, err := u.peekEntity(restaurantID, ref); err != nil {
		return nil, err
	}
	if err := u.acquire(entityKey(ref)); err != nil {
		return nil, err
	}
	return u.peekEntity(restaurantID, ref)
}

// peekEntity returns a copy of the entity's current state.
func (u *unitOfWork) peekEntity(restaurantID int64, ref models.EntityRef) (models.LedgerEntity, error) {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ref.Type {
	case models.EntityItem:
		if it, ok := s.items[ref.ID]; ok && it.RestaurantID == restaurantID {
			return copyItem(it), nil
		}
	case models.EntityOption:
		if o, ok := s.options[ref.ID]; ok && o.RestaurantID == restaurantID {
			oc := copyOption(o)
			if g := s.groups[o.GroupID]; g != nil {
				oc.GroupTracked = g.EnableInventoryTracking
			}
			return oc, nil
		}
	case models.EntityVariant:
		if v, ok := s.variants[ref.ID]; ok && v.RestaurantID == restaurantID {
			return copyVariant(v), nil
		}
	default:
		return nil, fmt.Errorf("unknown ledger entity type %q", ref.Type)
	}
	return nil, repositories.ErrNotFound
}

func (u *unitOfWork) SaveStockLevel(entity models.LedgerEntity) error {
	if err := u.active(); err != nil {
		return err
	}
	ref := entity.Ref()
	if !u.held[entityKey(ref)] {
		return fmt.Errorf("%w: %s", repositories.ErrNotLocked, ref)
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var target *models.StockLevel
	var updatedAt *time.Time
	switch ref.Type {
	case models.EntityItem:
		if it, ok := s.items[ref.ID]; ok {
			target, updatedAt = &it.StockLevel, &it.UpdatedAt
		}
	case models.EntityOption:
		if o, ok := s.options[ref.ID]; ok {
			target, updatedAt = &o.StockLevel, &o.UpdatedAt
		}
	case models.EntityVariant:
		if v, ok := s.variants[ref.ID]; ok {
			target, updatedAt = &v.StockLevel, &v.UpdatedAt
		}
	}
	if target == nil {
		return repositories.ErrNotFound
	}
	prevLevel, prevUpdated := copyLevel(*target), *updatedAt
	*target = copyLevel(*entity.Level())
	*updatedAt = time.Now()
	u.undo = append(u.undo, func() {
		*target = prevLevel
		*updatedAt = prevUpdated
	})
	return nil
}

func (u *unitOfWork) AppendAudit(audit *models.StockAudit) error {
	if err := u.active(); err != nil {
		return err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}
	audit.ID = s.nextID()
	s.audits = append(s.audits, copyAudit(*audit))
	id := audit.ID
	u.undo = append(u.undo, func() {
		for i := range s.audits {
			if s.audits[i].ID == id {
				s.audits = append(s.audits[:i], s.audits[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (u *unitOfWork) AddSalesCounters(restaurantID int64, ref models.EntityRef, quantity int, revenueCents int64) error {
	if err := u.active(); err != nil {
		return err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var ordered *int
	var revenue *int64
	switch ref.Type {
	case models.EntityOption:
		if o, ok := s.options[ref.ID]; ok && o.RestaurantID == restaurantID {
			ordered, revenue = &o.TotalOrdered, &o.TotalRevenueCents
		}
	case models.EntityVariant:
		if v, ok := s.variants[ref.ID]; ok && v.RestaurantID == restaurantID {
			ordered, revenue = &v.TotalOrdered, &v.TotalRevenueCents
		}
	default:
		return fmt.Errorf("sales counters are not kept for %s", ref)
	}
	if ordered == nil {
		return repositories.ErrNotFound
	}
	*ordered += quantity
	*revenue += revenueCents
	u.undo = append(u.undo, func() {
		*ordered -= quantity
		*revenue -= revenueCents
	})
	return nil
}

func (u *unitOfWork) ListAudits(filters models.AuditFilters) ([]models.StockAudit, int, error) {
	if err := u.active(); err != nil {
		return nil, 0, err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []models.StockAudit{}
	for _, a := range s.audits {
		if a.RestaurantID != filters.RestaurantID {
			continue
		}
		if filters.EntityType != nil && a.Entity.Type != *filters.EntityType {
			continue
		}
		if filters.EntityID != nil && a.Entity.ID != *filters.EntityID {
			continue
		}
		if filters.AuditType != nil && a.AuditType != *filters.AuditType {
			continue
		}
		if filters.OrderID != nil && (a.OrderID == nil || *a.OrderID != *filters.OrderID) {
			continue
		}
		matched = append(matched, copyAudit(a))
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, filters.Page, filters.PageSize), len(matched), nil
}

// --- Orders ---

func (u *unitOfWork) CreateOrder(order *models.Order) error {
	if err := u.active(); err != nil {
		return err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.OrderNumber == order.OrderNumber {
			return fmt.Errorf("%w: order number %s", repositories.ErrDuplicateKey, order.OrderNumber)
		}
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	order.ID = s.nextID()
	for i := range order.Items {
		order.Items[i].ID = s.nextID()
		order.Items[i].OrderID = order.ID
		order.Items[i].CreatedAt = order.CreatedAt
	}
	s.orders[order.ID] = copyOrder(order)
	id := order.ID
	u.undo = append(u.undo, func() { delete(s.orders, id) })
	return nil
}

func (u *unitOfWork) GetOrder(restaurantID, orderID int64) (*models.Order, error) {
	if err := u.active(); err != nil {
		return nil, err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.RestaurantID != restaurantID {
		return nil, repositories.ErrNotFound
	}
	return copyOrder(o), nil
}

func (u *unitOfWork) LockOrder(restaurantID, orderID int64) (*models.Order, error) {
	if _, err := u.GetOrder(restaurantID, orderID); err != nil {
		return nil, err
	}
	if err := u.acquire(orderKey(orderID)); err != nil {
		return nil, err
	}
	return u.GetOrder(restaurantID, orderID)
}

func (u *unitOfWork) UpdateOrderStatus(orderID int64, status models.OrderStatus, updatedAt time.Time) error {
	return u.mutateOrder(orderID, func(o *models.Order) {
		o.Status = status
		o.UpdatedAt = updatedAt
	})
}

func (u *unitOfWork) MarkRefunded(orderID int64, at time.Time) error {
	return u.mutateOrder(orderID, func(o *models.Order) {
		o.RefundedAt = &at
		o.UpdatedAt = at
	})
}

func (u *unitOfWork) mutateOrder(orderID int64, apply func(o *models.Order)) error {
	if err := u.active(); err != nil {
		return err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return repositories.ErrNotFound
	}
	prev := copyOrder(o)
	apply(o)
	u.undo = append(u.undo, func() { *o = *prev })
	return nil
}

func (u *unitOfWork) ListOrders(filters models.OrderFilters) ([]models.Order, int, error) {
	if err := u.active(); err != nil {
		return nil, 0, err
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var day *time.Time
	if filters.Date != nil && *filters.Date != "" {
		if parsed, err := time.Parse("2006-01-02", *filters.Date); err == nil {
			day = &parsed
		}
	}

	matched := []models.Order{}
	for _, o := range s.orders {
		if o.RestaurantID != filters.RestaurantID {
			continue
		}
		if filters.Status != nil && *filters.Status != "" && string(o.Status) != *filters.Status {
			continue
		}
		if day != nil {
			y, m, d := o.CreatedAt.Date()
			if y != day.Year() || m != day.Month() || d != day.Day() {
				continue
			}
		}
		oc := copyOrder(o)
		oc.Items = nil
		matched = append(matched, *oc)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	if filters.PageSize <= 0 {
		return matched, len(matched), nil
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	return paginate(matched, page, filters.PageSize), len(matched), nil
}

func paginate[T any](rows []T, page, pageSize int) []T {
	if page <= 0 || pageSize <= 0 {
		return rows
	}
	start := (page - 1) * pageSize
	if start >= len(rows) {
		return []T{}
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
