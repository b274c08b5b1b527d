package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"settlement/internal/app"
	"settlement/internal/config"
	"settlement/internal/gateway"
	"settlement/internal/handler"
	internalRedis "settlement/internal/redis"
	"settlement/internal/repository/postgres"
	"settlement/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	server := wireServer(db, redisClient, nrApp, cfg)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) *http.Server {
	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	bookingRepo := postgres.NewBookingRepository(db)
	attemptRepo := postgres.NewPaymentAttemptRepository(db)
	waiveRepo := postgres.NewWaiveRepository(db)
	adjustmentRepo := postgres.NewAdjustmentRepository(db)
	refundRepo := postgres.NewRefundRequestRepository(db)
	ledgerRepo := postgres.NewLedgerRepository(db)

	// Initialize the payment gateway. Without credentials, captures and
	// refunds run against the in-memory simulator.
	var paymentGateway gateway.PaymentGateway
	if cfg.Stripe.SecretKey != "" {
		paymentGateway = gateway.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.Currency)
		log.Println("Payment gateway: stripe")
	} else {
		paymentGateway = gateway.NewSimulator()
		log.Println("Payment gateway: simulator (no STRIPE_SECRET_KEY)")
	}

	// Initialize services.
	notificationService := service.NewNotificationService()
	receiptService := service.NewReceiptService(notificationService)
	pricing := service.Pricing{
		IncludedMilesPerDay: cfg.Pricing.IncludedMilesPerDay,
		PerMileRate:         cfg.Pricing.PerMileRate,
		FullTankCost:        cfg.Pricing.FullTankCost,
		LateFeePerHour:      cfg.Pricing.LateFeePerHour,
	}
	settlementService := service.NewSettlementService(
		db, bookingRepo, attemptRepo, waiveRepo, adjustmentRepo,
		paymentGateway, lockStore, cacheStore, notificationService, receiptService, pricing,
	)
	refundService := service.NewRefundService(
		db, refundRepo, bookingRepo, ledgerRepo, paymentGateway, notificationService,
	)

	// Initialize handlers.
	settlementHandler := handler.NewSettlementHandler(settlementService)
	refundHandler := handler.NewRefundHandler(refundService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		SettlementHandler: settlementHandler,
		RefundHandler:     refundHandler,
		RedisClient:       redisClient,
		NewRelicApp:       nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
