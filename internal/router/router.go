package router

import (
	"net/http"

	"commerce_backend/internal/handlers"
	"commerce_backend/internal/middleware"
	"commerce_backend/internal/notify"
	"commerce_backend/internal/repositories"
	"commerce_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// Setup initializes the routing for the application. dispatcher may be nil.
func Setup(engine *gin.Engine, store repositories.Store, dispatcher notify.Dispatcher) {
	// Initialize Services
	reservationService := services.NewReservationService()
	catalogService := services.NewCatalogService(store)
	ledgerService := services.NewLedgerService(store)
	orderService := services.NewOrderService(store, reservationService, dispatcher)

	// Initialize Handlers
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	stockHandler := handlers.NewStockHandler(ledgerService)
	orderHandler := handlers.NewOrderHandler(orderService)

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := engine.Group("/api/v1")

	restaurant := apiV1.Group("/restaurants/:restaurantID")
	restaurant.Use(middleware.AuthMiddleware(), middleware.RestaurantScope())
	{
		SetupCatalogRoutes(restaurant, catalogHandler)
		SetupStockRoutes(restaurant, stockHandler)
		SetupOrderRoutes(restaurant, orderHandler)
	}
}
