package handlers

import (
	"net/http"

	"commerce_backend/internal/middleware"
	"commerce_backend/internal/models"
	"commerce_backend/internal/services"
	"commerce_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// CatalogHandler holds the catalog service.
type CatalogHandler struct {
	catalogService services.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(cs services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: cs}
}

// CreateItem handles POST /items
func (h *CatalogHandler) CreateItem(c *gin.Context) {
	var req services.CreateItemRequest
	if !bindJSON(c, "CreateItem", &req) {
		return
	}
	item, err := h.catalogService.CreateItem(c.Request.Context(), middleware.RestaurantID(c), req, middleware.ActorID(c))
	if err != nil {
		respondServiceError(c, "CreateItem", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// GetItem handles GET /items/:itemID
func (h *CatalogHandler) GetItem(c *gin.Context) {
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}
	item, err := h.catalogService.GetItem(c.Request.Context(), middleware.RestaurantID(c), itemID)
	if err != nil {
		respondServiceError(c, "GetItem", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ListItems handles GET /items, optionally filtered by stock_status.
func (h *CatalogHandler) ListItems(c *gin.Context) {
	var status *models.StockStatus
	if raw := c.Query("stock_status"); raw != "" {
		s := models.StockStatus(raw)
		switch s {
		case models.StockUnlimited, models.StockOutOfStock, models.StockLow, models.StockIn:
			status = &s
		default:
			utils.RespondValidationFailed(c, "unknown stock_status "+raw)
			return
		}
	}
	page, pageSize, ok := pagination(c, 10)
	if !ok {
		return
	}

	items, total, err := h.catalogService.ListItems(c.Request.Context(), middleware.RestaurantID(c), status, page, pageSize)
	if err != nil {
		respondServiceError(c, "ListItems", err)
		return
	}
	if items == nil {
		items = []models.CatalogItem{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// CreateOptionGroup handles POST /items/:itemID/option-groups
func (h *CatalogHandler) CreateOptionGroup(c *gin.Context) {
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}
	var req services.CreateOptionGroupRequest
	if !bindJSON(c, "CreateOptionGroup", &req) {
		return
	}
	group, err := h.catalogService.CreateOptionGroup(c.Request.Context(), middleware.RestaurantID(c), itemID, req)
	if err != nil {
		respondServiceError(c, "CreateOptionGroup", err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

// CreateOption handles POST /option-groups/:groupID/options
func (h *CatalogHandler) CreateOption(c *gin.Context) {
	groupID, ok := pathID(c, "groupID")
	if !ok {
		return
	}
	var req services.CreateOptionRequest
	if !bindJSON(c, "CreateOption", &req) {
		return
	}
	option, err := h.catalogService.CreateOption(c.Request.Context(), middleware.RestaurantID(c), groupID, req, middleware.ActorID(c))
	if err != nil {
		respondServiceError(c, "CreateOption", err)
		return
	}
	c.JSON(http.StatusCreated, option)
}

// ConfigureTracking handles PUT /items/:itemID/tracking
func (h *CatalogHandler) ConfigureTracking(c *gin.Context) {
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}
	var req services.ConfigureTrackingRequest
	if !bindJSON(c, "ConfigureTracking", &req) {
		return
	}
	item, err := h.catalogService.ConfigureTracking(c.Request.Context(), middleware.RestaurantID(c), itemID, req, middleware.ActorID(c))
	if err != nil {
		respondServiceError(c, "ConfigureTracking", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// CreateVariant handles POST /items/:itemID/variants
func (h *CatalogHandler) CreateVariant(c *gin.Context) {
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}
	var req services.CreateVariantRequest
	if !bindJSON(c, "CreateVariant", &req) {
		return
	}
	variant, err := h.catalogService.CreateVariant(c.Request.Context(), middleware.RestaurantID(c), itemID, req, middleware.ActorID(c))
	if err != nil {
		respondServiceError(c, "CreateVariant", err)
		return
	}
	c.JSON(http.StatusCreated, variant)
}

// ListVariants handles GET /items/:itemID/variants
func (h *CatalogHandler) ListVariants(c *gin.Context) {
	itemID, ok := pathID(c, "itemID")
	if !ok {
		return
	}
	variants, err := h.catalogService.ListVariants(c.Request.Context(), middleware.RestaurantID(c), itemID)
	if err != nil {
		respondServiceError(c, "ListVariants", err)
		return
	}
	if variants == nil {
		variants = []models.ItemVariant{}
	}
	c.JSON(http.StatusOK, gin.H{"data": variants})
}
