package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"commerce_backend/internal/config"
	"commerce_backend/internal/database"
	"commerce_backend/internal/handlers"
	"commerce_backend/internal/notify"
	"commerce_backend/internal/repositories"
	"commerce_backend/internal/repositories/memstore"
	"commerce_backend/internal/router"
	"commerce_backend/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Initialize Logger
	utils.InitLogger()

	cfg, err := config.Load()
	if err != nil {
		utils.LogError(err, "Invalid configuration")
		log.Fatalf("Invalid configuration: %v", err)
	}
	utils.SetJWTSecret(cfg.JWTSecret)
	if err := handlers.RegisterValidators(); err != nil {
		log.Fatalf("Failed to register validators: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		utils.LogError(err, "Failed to open store")
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	dispatcher := openDispatcher(cfg)
	defer dispatcher.Close()

	engine := gin.New()
	engine.Use(gin.Recovery())
	// Add GinLogger middleware for request logging
	engine.Use(utils.GinLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	// Setup all application routes
	router.Setup(engine, store, dispatcher)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		utils.LogInfo("Server starting", map[string]interface{}{"port": cfg.Port, "store": cfg.StoreDriver})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.LogError(err, "Failed to start server")
			stop()
		}
	}()

	<-ctx.Done()
	utils.LogInfo("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.LogError(err, "Server shutdown did not complete")
	}
}

func openStore(cfg *config.Config) (repositories.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		utils.LogInfo("Using in-memory store; data is lost on restart")
		return memstore.New(), nil
	}
	db, err := database.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	return repositories.NewPostgresStore(db), nil
}

func openDispatcher(cfg *config.Config) notify.Dispatcher {
	if len(cfg.KafkaBrokers) == 0 {
		return notify.NewLogDispatcher()
	}
	utils.LogInfo("Publishing order events to Kafka", map[string]interface{}{
		"brokers": cfg.KafkaBrokers, "topic": cfg.KafkaOrderTopic,
	})
	return notify.NewKafkaDispatcher(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
}
