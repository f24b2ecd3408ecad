package router

import (
	"commerce_backend/internal/handlers"
	"commerce_backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupCatalogRoutes sets up item, option and variant routes.
// Tracking changes and catalog writes are Admin only.
func SetupCatalogRoutes(restaurant *gin.RouterGroup, catalogHandler *handlers.CatalogHandler) {
	itemRoutes := restaurant.Group("/items")
	itemRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		itemRoutes.GET("", catalogHandler.ListItems)
		itemRoutes.GET("/:itemID", catalogHandler.GetItem)
		itemRoutes.GET("/:itemID/variants", catalogHandler.ListVariants)
	}

	adminItemRoutes := restaurant.Group("/items")
	adminItemRoutes.Use(middleware.RoleAuthMiddleware("Admin"))
	{
		adminItemRoutes.POST("", catalogHandler.CreateItem)
		adminItemRoutes.POST("/:itemID/option-groups", catalogHandler.CreateOptionGroup)
		adminItemRoutes.PUT("/:itemID/tracking", catalogHandler.ConfigureTracking)
		adminItemRoutes.POST("/:itemID/variants", catalogHandler.CreateVariant)
	}

	restaurant.POST("/option-groups/:groupID/options", middleware.RoleAuthMiddleware("Admin"), catalogHandler.CreateOption)
}

// SetupStockRoutes sets up the admin inventory routes.
func SetupStockRoutes(restaurant *gin.RouterGroup, stockHandler *handlers.StockHandler) {
	stockRoutes := restaurant.Group("/stock")
	stockRoutes.Use(middleware.RoleAuthMiddleware("Admin"))
	{
		stockRoutes.POST("/adjustments", stockHandler.AdjustStock)
		stockRoutes.POST("/damages", stockHandler.MarkDamaged)
	}
	restaurant.GET("/stock/audits", middleware.RoleAuthMiddleware("Admin", "Staff"), stockHandler.ListAudits)
}

// SetupOrderRoutes sets up the order routes.
func SetupOrderRoutes(restaurant *gin.RouterGroup, orderHandler *handlers.OrderHandler) {
	orderRoutes := restaurant.Group("/orders")
	orderRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		orderRoutes.POST("", orderHandler.CreateOrder)
		orderRoutes.GET("", orderHandler.GetOrders)
		orderRoutes.GET("/:orderID", orderHandler.GetOrderByID)
		orderRoutes.PATCH("/:orderID/status", orderHandler.UpdateOrderStatus)
	}
	restaurant.POST("/orders/:orderID/refund", middleware.RoleAuthMiddleware("Admin"), orderHandler.RefundOrder)
}
