package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/mayank-tagline555/sooq-billing/internal/config"
	"github.com/mayank-tagline555/sooq-billing/internal/database"
	"github.com/mayank-tagline555/sooq-billing/internal/gateway"
	"github.com/mayank-tagline555/sooq-billing/internal/handlers"
	"github.com/mayank-tagline555/sooq-billing/internal/logging"
	"github.com/mayank-tagline555/sooq-billing/internal/middleware"
	"github.com/mayank-tagline555/sooq-billing/internal/org"
	"github.com/mayank-tagline555/sooq-billing/internal/routes"
	"github.com/mayank-tagline555/sooq-billing/internal/scheduler"
	"github.com/mayank-tagline555/sooq-billing/internal/services"
	"github.com/mayank-tagline555/sooq-billing/internal/store"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// Org registry
	registry, err := org.LoadFromFile(cfg.OrgsConfigPath)
	if err != nil {
		slog.Error("failed to load org registry", "path", cfg.OrgsConfigPath, "error", err)
		os.Exit(1)
	}
	slog.Info("org registry loaded", "orgs", len(registry.All()))

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		pgLogHandler,
	)))

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cleanupDone)

	logger := slog.Default()

	// Payment gateway client
	provider := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayMerchantID, cfg.GatewayUser, cfg.GatewayPassword, cfg.GatewayTimeout)

	// Stores and services
	db := store.NewDB(database.DB)
	stores := db.Stores()

	billingService := services.NewBillingService(db, stores, provider, registry, logger)
	proRataService := services.NewProRataService(billingService, stores, registry, logger)
	reconcileService := services.NewReconcileService(db, stores, provider, logger)
	subscriptionService := services.NewSubscriptionService(stores, logger)

	// Handlers
	healthHandler := handlers.NewHealthHandler(registry)
	subscriptionHandler := handlers.NewSubscriptionHandler(database.DB, subscriptionService, stores)
	billingHandler := handlers.NewBillingHandler(billingService, proRataService)
	reconcileHandler := handlers.NewReconcileHandler(reconcileService, stores)
	webhookHandler := handlers.NewWebhookHandler(reconcileService, registry)

	// Scheduled passes: daily fees, annual pro-rata, reconciliation poll
	sched, err := scheduler.New(cfg, registry, billingService, proRataService, reconcileService, logger)
	if err != nil {
		slog.Error("scheduler setup failed", "error", err)
		os.Exit(1)
	}
	sched.Start()

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})
	app.Use(middleware.OrgMiddleware(registry))

	// Routes
	routes.Setup(app, cfg, healthHandler, subscriptionHandler, billingHandler, reconcileHandler, webhookHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	sched.Stop()
	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}
