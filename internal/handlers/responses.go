package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"commerce_backend/internal/services"
	"commerce_backend/internal/stock"
	"commerce_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// errorMapping pairs a sentinel with the response it produces. Checked in order.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var serviceErrors = []errorMapping{
	{stock.ErrInsufficientStock, http.StatusConflict, utils.ErrCodeInsufficientStock, "Insufficient stock."},
	{stock.ErrMissingRequiredSelection, http.StatusBadRequest, utils.ErrCodeMissingRequiredSelection, "A required option was not selected."},
	{stock.ErrUnavailableOption, http.StatusConflict, utils.ErrCodeUnavailableOption, "A selected option is unavailable."},
	{services.ErrItemUnavailable, http.StatusConflict, utils.ErrCodeUnavailableOption, "Item is not available for sale."},
	{stock.ErrInvalidSelection, http.StatusBadRequest, utils.ErrCodeInvalidSelection, "Invalid option selection."},
	{stock.ErrDuplicateVariantKey, http.StatusConflict, utils.ErrCodeDuplicateVariantKey, "A variant already exists for this selection."},
	{stock.ErrNegativeStock, http.StatusConflict, utils.ErrCodeInsufficientStock, "Stock cannot go below zero."},
	{stock.ErrDamagedExceedsStock, http.StatusBadRequest, utils.ErrCodeValidationFailed, "Damaged quantity cannot exceed stock."},
	{stock.ErrTrackingDisabled, http.StatusConflict, utils.ErrCodeTrackingDisabled, "Inventory tracking is disabled for this entity."},
	{services.ErrTrackingGroupConflict, http.StatusConflict, utils.ErrCodeTrackingConflict, "Item already tracks inventory elsewhere."},
	{services.ErrIllegalTransition, http.StatusConflict, utils.ErrCodeIllegalTransition, "Order status transition is not allowed."},
	{services.ErrAlreadyRefunded, http.StatusConflict, utils.ErrCodeAlreadyRefunded, "Order has already been refunded."},
	{services.ErrInvalidOrderStatus, http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid order status provided."},
	{services.ErrValidation, http.StatusBadRequest, utils.ErrCodeValidationFailed, "Input validation failed."},
	{services.ErrItemNotFound, http.StatusNotFound, utils.ErrCodeNotFound, "Catalog item not found."},
	{services.ErrOptionGroupNotFound, http.StatusNotFound, utils.ErrCodeNotFound, "Option group not found."},
	{services.ErrEntityNotFound, http.StatusNotFound, utils.ErrCodeNotFound, "Stock entity not found."},
	{services.ErrOrderNotFound, http.StatusNotFound, utils.ErrCodeNotFound, "Order not found."},
}

// respondServiceError logs err and writes the matching API error.
// Unknown errors become a 500 without leaking internals.
func respondServiceError(c *gin.Context, op string, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				utils.LogError(err, op)
			} else {
				utils.LogDebug(op+": request rejected", map[string]interface{}{"error": err.Error()})
			}
			utils.RespondWithError(c, utils.NewAPIError(m.status, m.code, m.message, err.Error()))
			return
		}
	}
	utils.LogError(err, op)
	utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Internal server error.", "Internal error"))
}

// pathID parses a positive path parameter, answering 400 when it is malformed.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := utils.ParseID(c.Param(name))
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid "+name+" format.", err.Error()))
		return 0, false
	}
	return id, true
}

// pagination reads page and page_size, defaulting to 1 and defaultSize.
func pagination(c *gin.Context, defaultSize int) (int, int, bool) {
	page, pageSize := 1, defaultSize
	if pageStr := c.Query("page"); pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p <= 0 {
			utils.RespondValidationFailed(c, "page must be a positive integer")
			return 0, 0, false
		}
		page = p
	}
	if sizeStr := c.Query("page_size"); sizeStr != "" {
		s, err := strconv.Atoi(sizeStr)
		if err != nil || s <= 0 {
			utils.RespondValidationFailed(c, "page_size must be a positive integer")
			return 0, 0, false
		}
		pageSize = s
	}
	return page, pageSize, true
}

func bindJSON(c *gin.Context, op string, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.LogDebug(op+": failed to bind JSON", map[string]interface{}{"error": err.Error()})
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload.", err.Error()))
		return false
	}
	return true
}
