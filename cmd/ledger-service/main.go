package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/medledger/medledger-backend/internal/ledger/consumers"
	"github.com/medledger/medledger-backend/internal/ledger/events"
	"github.com/medledger/medledger-backend/internal/ledger/handler"
	"github.com/medledger/medledger-backend/internal/ledger/repository"
	"github.com/medledger/medledger-backend/internal/ledger/service"
	"github.com/medledger/medledger-backend/pkg/config"
	"github.com/medledger/medledger-backend/pkg/database"
	"github.com/medledger/medledger-backend/pkg/httputil"
	"github.com/medledger/medledger-backend/pkg/logger"
	"github.com/medledger/medledger-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("ledger-service", cfg.Server.Environment)
	log.Info().Msg("starting Ledger Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewLedgerEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	medicineRepo := repository.NewMedicineRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	consumptionRepo := repository.NewConsumptionRepository(db)
	archiveRepo := repository.NewArchiveRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)

	// Initialize services
	notifier := service.NewNotifier(notificationRepo, log)
	stockService := service.NewStockService(db, batchRepo, consumptionRepo, medicineRepo, publisher, notifier, cfg.Ledger.LowStockThreshold, log)
	archiveService := service.NewArchiveService(db, batchRepo, archiveRepo, publisher, cfg.Ledger.DefaultExpiryDays, log)
	transferService := service.NewTransferService(db, transferRepo, batchRepo, stockService, medicineRepo, publisher, notifier, cfg.Ledger.DefaultExpiryDays, cfg.Ledger.MaterializeAlways, log)

	// Initialize handlers
	medicineHandler := handler.NewMedicineHandler(medicineRepo, log)
	batchHandler := handler.NewBatchHandler(stockService, batchRepo, log)
	stockHandler := handler.NewStockHandler(batchRepo, consumptionRepo, log)
	dispenseHandler := handler.NewDispenseHandler(stockService, log)
	archiveHandler := handler.NewArchiveHandler(archiveService, archiveRepo, log)
	transferHandler := handler.NewTransferHandler(transferService, directoryRepo, log)
	notificationHandler := handler.NewNotificationHandler(notificationRepo, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start directory event consumer
	directoryConsumer, err := consumers.NewDirectoryEventConsumer(rmq, directoryRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create directory event consumer")
	}
	if err := directoryConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start directory event consumer")
	}

	// Start low stock scanner
	scanner := service.NewLowStockScanner(batchRepo, notifier, publisher, cfg.Ledger.LowStockThreshold, log)
	scheduler := service.NewScanScheduler(scanner, cfg.Ledger.ScanInterval, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID", "X-Branch-ID", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.Actor)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "ledger-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/ledger", func(r chi.Router) {
		// Medicine catalog
		r.Route("/medicines", func(r chi.Router) {
			r.Get("/", medicineHandler.List)
			r.Post("/", medicineHandler.Create)
			r.Get("/{id}/batches", batchHandler.ListByMedicine)
		})

		// Stock
		r.Post("/batches", batchHandler.Create)
		r.Get("/stock", stockHandler.Overview)
		r.Get("/stock/expiring", stockHandler.Expiring)
		r.Post("/dispense", dispenseHandler.Dispense)
		r.Get("/dispense/history", stockHandler.History)

		// Archive
		r.Route("/archives", func(r chi.Router) {
			r.Get("/", archiveHandler.List)
			r.Post("/", archiveHandler.Create)
			r.Post("/{id}/restore", archiveHandler.Restore)
			r.Delete("/{id}", archiveHandler.Delete)
		})

		// Transfers
		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", transferHandler.Create)
			r.Get("/pending", transferHandler.ListPending)
			r.Get("/history", transferHandler.ListHistory)
			r.Post("/{id}/approve", transferHandler.Approve)
			r.Post("/{id}/reject", transferHandler.Reject)
		})

		// Notifications
		r.Get("/notifications", notificationHandler.List)
		r.Post("/notifications/read", notificationHandler.MarkAllRead)
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

	// Cancel context to stop consumers and the scanner
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
