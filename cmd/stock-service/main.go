package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/stockflow/stockflow-backend/internal/stock/consumers"
	"github.com/stockflow/stockflow-backend/internal/stock/events"
	"github.com/stockflow/stockflow-backend/internal/stock/handler"
	"github.com/stockflow/stockflow-backend/internal/stock/repository"
	"github.com/stockflow/stockflow-backend/internal/stock/service"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stockflow/stockflow-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("stock-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("stock-service", cfg.Server.Environment)
	log.Info().Msg("starting Stock Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ. The broker is not load-bearing for stock
	// consistency: without it the service still serves requests, it just
	// skips event publishing (nil publisher is a no-op) and loses the
	// user-cache updates.
	var publisher *events.StockEventPublisher
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Warn().Err(err).Msg("RabbitMQ unavailable, events disabled")
		rmq = nil
	} else {
		defer rmq.Close()
		publisher, err = events.NewStockEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	}

	// Initialize repositories
	shopRepo := repository.NewShopRepository(db)
	productRepo := repository.NewProductRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	userCacheRepo := repository.NewUserCacheRepository(db)

	// Initialize services
	stockService := service.NewStockService(db, productRepo, batchRepo, movementRepo,
		shopRepo, publisher, cfg.Stock, log)
	inventoryService := service.NewInventoryService(db, inventoryRepo, productRepo,
		movementRepo, shopRepo, publisher, log)
	transferService := service.NewTransferService(db, transferRepo, productRepo,
		movementRepo, shopRepo, publisher, log)

	// Initialize handlers
	stockHandler := handler.NewStockHandler(stockService, log)
	inventoryHandler := handler.NewInventoryHandler(inventoryService, log)
	transferHandler := handler.NewTransferHandler(transferService, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start user event consumer
	if rmq != nil {
		userConsumer, err := consumers.NewUserEventConsumer(rmq, userCacheRepo, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create user event consumer")
		}
		if err := userConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start user event consumer")
		}
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))

	// CORS - supports subdomain-based multi-tenancy
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "http://localhost:3000" || origin == "http://localhost:5173" {
				return true
			}
			// Tenant subdomains in development and production
			if strings.HasSuffix(origin, ".localhost:3000") {
				return true
			}
			return strings.HasSuffix(origin, ".stockflow.io")
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Tenant-ID", "X-Tenant-Slug", "X-User-ID", "X-User-Name", "X-User-Email"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(httputil.TenantMiddleware) // Extract tenant context from headers
	r.Use(httputil.ActorMiddleware)  // Extract acting user from gateway headers

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		rabbitStatus := map[string]string{"status": "down", "error": "not connected"}
		if rmq != nil {
			rabbitStatus = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "stock-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rabbitStatus,
		})
	})

	// API routes
	r.Route("/api/v1/stock", func(r chi.Router) {
		r.Post("/receipts", stockHandler.ReceiveStock)
		r.Post("/adjustments", stockHandler.AdjustStock)
		r.Get("/movements", stockHandler.ListMovements)

		// Batch monitoring
		r.Route("/batches", func(r chi.Router) {
			r.Get("/expiring", stockHandler.ExpiringBatches)
			r.Get("/expired", stockHandler.ExpiredBatches)
			r.Get("/low-stock", stockHandler.LowStockBatches)
			r.Post("/alerts", stockHandler.PublishExpiryAlerts)
		})

		r.Get("/products/low-stock", stockHandler.LowStockProducts)

		// Inventory counts
		r.Route("/inventories", func(r chi.Router) {
			r.Get("/", inventoryHandler.List)
			r.Post("/", inventoryHandler.Create)
			r.Get("/{id}", inventoryHandler.Get)
			r.Post("/{id}/start", inventoryHandler.Start)
			r.Put("/{id}/items/{productId}", inventoryHandler.UpdateItemCount)
			r.Post("/{id}/validate", inventoryHandler.Validate)
			r.Post("/{id}/cancel", inventoryHandler.Cancel)
		})

		// Stock transfers
		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", transferHandler.List)
			r.Post("/", transferHandler.Create)
			r.Get("/{id}", transferHandler.Get)
			r.Post("/{id}/items", transferHandler.AddItem)
			r.Put("/{id}/items/{productId}", transferHandler.UpdateItemQuantity)
			r.Delete("/{id}/items/{productId}", transferHandler.RemoveItem)
			r.Post("/{id}/validate", transferHandler.Validate)
			r.Post("/{id}/cancel", transferHandler.Cancel)
		})

		// Dashboard
		r.Get("/dashboard/stats", stockHandler.GetDashboardStats)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
