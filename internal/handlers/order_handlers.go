package handlers

import (
	"net/http"
	"time"

	"commerce_backend/internal/middleware"
	"commerce_backend/internal/models"
	"commerce_backend/internal/services"
	"commerce_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// OrderHandler holds the order service.
type OrderHandler struct {
	orderService services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(os services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: os}
}

// orderResponse adds the display total next to the minor-unit amount.
type orderResponse struct {
	*models.Order
	Total string `json:"total"`
}

func newOrderResponse(o *models.Order) orderResponse {
	return orderResponse{Order: o, Total: utils.FormatCents(o.TotalCents)}
}

// CreateOrder handles the creation of a new order with its items
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req services.CreateOrderRequest
	if !bindJSON(c, "CreateOrder", &req) {
		return
	}
	createdOrder, err := h.orderService.CreateOrder(c.Request.Context(), middleware.RestaurantID(c), req, middleware.ActorID(c))
	if err != nil {
		respondServiceError(c, "CreateOrder", err)
		return
	}
	c.JSON(http.StatusCreated, newOrderResponse(createdOrder))
}

// GetOrders handles fetching all orders with filters
func (h *OrderHandler) GetOrders(c *gin.Context) {
	filters := models.OrderFilters{
		RestaurantID: middleware.RestaurantID(c),
		Status:       utils.NewNullString(c.Query("status")),
		Date:         utils.NewNullString(c.Query("date")),
	}
	if filters.Date != nil {
		if _, err := time.Parse("2006-01-02", *filters.Date); err != nil {
			utils.RespondValidationFailed(c, "Invalid date format. Use YYYY-MM-DD.")
			return
		}
	}
	page, pageSize, ok := pagination(c, 10)
	if !ok {
		return
	}
	filters.Page, filters.PageSize = page, pageSize

	orders, totalCount, err := h.orderService.ListOrders(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, "GetOrders", err)
		return
	}
	data := make([]orderResponse, 0, len(orders))
	for i := range orders {
		data = append(data, newOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      data,
		"total":     totalCount,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

// GetOrderByID handles fetching a single order by ID with its items
func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	orderID, ok := pathID(c, "orderID")
	if !ok {
		return
	}
	order, err := h.orderService.GetOrder(c.Request.Context(), middleware.RestaurantID(c), orderID)
	if err != nil {
		respondServiceError(c, "GetOrderByID", err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(order))
}

// UpdateOrderStatus handles PATCH /orders/:orderID/status
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	orderID, ok := pathID(c, "orderID")
	if !ok {
		return
	}
	var req services.UpdateOrderStatusRequest
	if !bindJSON(c, "UpdateOrderStatus", &req) {
		return
	}
	updatedOrder, err := h.orderService.TransitionOrder(c.Request.Context(), middleware.RestaurantID(c), orderID, req, middleware.ActorID(c))
	if err != nil {
		respondServiceError(c, "UpdateOrderStatus", err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(updatedOrder))
}

// RefundOrder handles POST /orders/:orderID/refund
func (h *OrderHandler) RefundOrder(c *gin.Context) {
	orderID, ok := pathID(c, "orderID")
	if !ok {
		return
	}
	refunded, err := h.orderService.RefundOrder(c.Request.Context(), middleware.RestaurantID(c), orderID, middleware.ActorID(c))
	if err != nil {
		respondServiceError(c, "RefundOrder", err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(refunded))
}
