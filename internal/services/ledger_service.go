package services

import (
	"commerce_backend/internal/models"
	"commerce_backend/internal/repositories"
	"commerce_backend/internal/stock"
	"commerce_backend/pkg/utils"
	"context"
	"errors"
	"fmt"
)

// --- Custom Service Errors for the Stock Ledger ---
var (
	ErrValidation     = errors.New("validation error")
	ErrEntityNotFound = errors.New("stock entity not found")
)

// --- Stock DTOs ---

// StockAdjustmentRequest is the admin restock / manual adjustment payload.
type StockAdjustmentRequest struct {
	EntityType string  `json:"entity_type" binding:"required,oneof=item option variant"`
	EntityID   int64   `json:"entity_id" binding:"required,gt=0"`
	Delta      int     `json:"delta" binding:"required"`
	AuditType  string  `json:"audit_type" binding:"required,audit_type"`
	Reason     *string `json:"reason"`
}

// DamageRequest marks units as damaged without removing them from stock.
type DamageRequest struct {
	EntityType string  `json:"entity_type" binding:"required,oneof=item option variant"`
	EntityID   int64   `json:"entity_id" binding:"required,gt=0"`
	Quantity   int     `json:"quantity" binding:"required,gt=0"`
	Reason     *string `json:"reason"`
}

// --- LedgerService Interface ---
type LedgerService interface {
	ApplyDelta(ctx context.Context, restaurantID int64, req StockAdjustmentRequest, actorID *int64) (*models.StockAudit, error)
	MarkDamaged(ctx context.Context, restaurantID int64, req DamageRequest, actorID *int64) (*models.StockAudit, error)
	ListAudits(ctx context.Context, filters models.AuditFilters) ([]models.StockAudit, int, error)
}

type ledgerService struct {
	store repositories.Store
}

func NewLedgerService(store repositories.Store) LedgerService {
	return &ledgerService{store: store}
}

func (s *ledgerService) ApplyDelta(ctx context.Context, restaurantID int64, req StockAdjustmentRequest, actorID *int64) (*models.StockAudit, error) {
	ref, err := parseRef(req.EntityType, req.EntityID)
	if err != nil {
		return nil, err
	}
	auditType := models.AuditType(req.AuditType)
	switch auditType {
	case models.AuditRestock:
		if req.Delta <= 0 {
			return nil, fmt.Errorf("%w: restock delta must be positive", ErrValidation)
		}
	case models.AuditManualAdjustment:
		if req.Delta == 0 {
			return nil, fmt.Errorf("%w: adjustment delta cannot be zero", ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: audit type %q cannot be applied manually", ErrValidation, req.AuditType)
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()

	entity, err := lockEntity(uow, restaurantID, ref)
	if err != nil {
		return nil, err
	}
	audit, err := applyLedgerDelta(uow, entity, req.Delta, auditType, req.Reason, actorID, nil)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stock adjustment: %w", err)
	}

	utils.LogInfo("Stock adjusted", map[string]interface{}{
		"restaurant_id": restaurantID, "entity": ref.String(), "audit_type": auditType,
		"previous": audit.PreviousQuantity, "new": audit.NewQuantity,
	})
	return audit, nil
}

func (s *ledgerService) MarkDamaged(ctx context.Context, restaurantID int64, req DamageRequest, actorID *int64) (*models.StockAudit, error) {
	ref, err := parseRef(req.EntityType, req.EntityID)
	if err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: damaged quantity must be positive", ErrValidation)
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()

	entity, err := lockEntity(uow, restaurantID, ref)
	if err != nil {
		return nil, err
	}
	mutation, err := stock.MarkDamaged(entity, req.Quantity)
	if err != nil {
		return nil, err
	}
	if err := uow.SaveStockLevel(entity); err != nil {
		return nil, fmt.Errorf("failed to save damaged quantity for %s: %w", ref, err)
	}
	// Damaged rows record the damaged counter, not the stock quantity.
	audit := &models.StockAudit{
		RestaurantID:     restaurantID,
		Entity:           ref,
		AuditType:        models.AuditDamaged,
		QuantityChange:   mutation.Change,
		PreviousQuantity: mutation.Previous,
		NewQuantity:      mutation.New,
		Reason:           req.Reason,
		ActorID:          actorID,
	}
	if err := uow.AppendAudit(audit); err != nil {
		return nil, fmt.Errorf("failed to record damage audit for %s: %w", ref, err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit damage marking: %w", err)
	}
	return audit, nil
}

func (s *ledgerService) ListAudits(ctx context.Context, filters models.AuditFilters) ([]models.StockAudit, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 {
		filters.PageSize = 20
	}
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to start unit of work: %w", err)
	}
	defer uow.Rollback()

	audits, total, err := uow.ListAudits(filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list stock audits: %w", err)
	}
	return audits, total, nil
}

func parseRef(entityType string, entityID int64) (models.EntityRef, error) {
	t, err := models.ParseEntityType(entityType)
	if err != nil {
		return models.EntityRef{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if entityID <= 0 {
		return models.EntityRef{}, fmt.Errorf("%w: entity id must be positive", ErrValidation)
	}
	return models.EntityRef{Type: t, ID: entityID}, nil
}

func lockEntity(uow repositories.UnitOfWork, restaurantID int64, ref models.EntityRef) (models.LedgerEntity, error) {
	entity, err := uow.LockEntity(restaurantID, ref)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, ref)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", ref, err)
	}
	return entity, nil
}

// applyLedgerDelta is the single write path for stock quantities: it moves the
// locked entity by delta, persists the level with its refreshed status and appends
// the audit row, all inside uow.
func applyLedgerDelta(uow repositories.UnitOfWork, entity models.LedgerEntity, delta int, auditType models.AuditType,
	reason *string, actorID, orderID *int64) (*models.StockAudit, error) {
	mutation, err := stock.ApplyDelta(entity, delta)
	if err != nil {
		return nil, err
	}
	if err := uow.SaveStockLevel(entity); err != nil {
		return nil, fmt.Errorf("failed to save stock level for %s: %w", entity.Ref(), err)
	}
	audit := &models.StockAudit{
		RestaurantID:     entity.Tenant(),
		Entity:           entity.Ref(),
		AuditType:        auditType,
		QuantityChange:   mutation.Change,
		PreviousQuantity: mutation.Previous,
		NewQuantity:      mutation.New,
		Reason:           reason,
		ActorID:          actorID,
		OrderID:          orderID,
	}
	if err := uow.AppendAudit(audit); err != nil {
		return nil, fmt.Errorf("failed to record %s audit for %s: %w", auditType, entity.Ref(), err)
	}
	return audit, nil
}
