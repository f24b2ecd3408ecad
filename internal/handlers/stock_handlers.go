package handlers

import (
	"net/http"
	"strconv"

	"commerce_backend/internal/middleware"
	"commerce_backend/internal/models"
	"commerce_backend/internal/services"
	"commerce_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// StockHandler exposes the admin side of the stock ledger.
type StockHandler struct {
	ledgerService services.LedgerService
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(ls services.LedgerService) *StockHandler {
	return &StockHandler{ledgerService: ls}
}

// AdjustStock handles POST /stock/adjustments (restock or manual adjustment).
func (h *StockHandler) AdjustStock(c *gin.Context) {
	var req services.StockAdjustmentRequest
	if !bindJSON(c, "AdjustStock", &req) {
		return
	}
	audit, err := h.ledgerService.ApplyDelta(c.Request.Context(), middleware.RestaurantID(c), req, middleware.ActorID(c))
	if err != nil {
		respondServiceError(c, "AdjustStock", err)
		return
	}
	c.JSON(http.StatusCreated, audit)
}

// MarkDamaged handles POST /stock/damages
func (h *StockHandler) MarkDamaged(c *gin.Context) {
	var req services.DamageRequest
	if !bindJSON(c, "MarkDamaged", &req) {
		return
	}
	audit, err := h.ledgerService.MarkDamaged(c.Request.Context(), middleware.RestaurantID(c), req, middleware.ActorID(c))
	if err != nil {
		respondServiceError(c, "MarkDamaged", err)
		return
	}
	c.JSON(http.StatusCreated, audit)
}

// ListAudits handles GET /stock/audits with entity_type, entity_id, audit_type and order_id filters.
func (h *StockHandler) ListAudits(c *gin.Context) {
	filters := models.AuditFilters{RestaurantID: middleware.RestaurantID(c)}

	if raw := c.Query("entity_type"); raw != "" {
		t, err := models.ParseEntityType(raw)
		if err != nil {
			utils.RespondValidationFailed(c, err.Error())
			return
		}
		filters.EntityType = &t
	}
	if raw := c.Query("entity_id"); raw != "" {
		id, err := utils.ParseID(raw)
		if err != nil {
			utils.RespondValidationFailed(c, "entity_id: "+err.Error())
			return
		}
		filters.EntityID = &id
	}
	if raw := c.Query("audit_type"); raw != "" {
		if !models.IsValidAuditType(raw) {
			utils.RespondValidationFailed(c, "unknown audit_type "+strconv.Quote(raw))
			return
		}
		t := models.AuditType(raw)
		filters.AuditType = &t
	}
	if raw := c.Query("order_id"); raw != "" {
		id, err := utils.ParseID(raw)
		if err != nil {
			utils.RespondValidationFailed(c, "order_id: "+err.Error())
			return
		}
		filters.OrderID = &id
	}
	page, pageSize, ok := pagination(c, 20)
	if !ok {
		return
	}
	filters.Page, filters.PageSize = page, pageSize

	audits, total, err := h.ledgerService.ListAudits(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, "ListAudits", err)
		return
	}
	if audits == nil {
		audits = []models.StockAudit{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      audits,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
