package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/config"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/database"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/logging"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/routes"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/services"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
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

	// App registry
	registry, err := tenant.LoadFromFile(cfg.AppsConfigPath)
	if err != nil {
		slog.Error("failed to load app registry", "path", cfg.AppsConfigPath, "error", err)
		os.Exit(1)
	}
	slog.Info("app registry loaded", "apps", len(registry.All()))

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		logging.StdoutHandler(),
		pgLogHandler,
	)))

	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, cleanupDone)

	// Redis backs rate limiting and notifications when several instances run.
	// Without it every instance keeps its own limiter state.
	var rdb *redis.Client
	var limiterStorage fiber.Storage
	var notifier services.Notifier = services.LogNotifier{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		limiterStorage = middleware.NewRedisStorage(rdb)
		notifier = services.NewRedisNotifier(rdb, cfg.NotificationChannel)
		slog.Info("redis enabled", "addr", opts.Addr)
	} else {
		slog.Warn("REDIS_URL not set, running in single-instance mode")
	}

	// Classifier oracle; the keyword filter stands in when none is configured.
	keywords := services.NewKeywordClassifier()
	var classifier services.Classifier = keywords
	if cfg.ClassifierURL != "" {
		classifier = services.NewHTTPClassifier(cfg.ClassifierURL, cfg.ClassifierToken)
	}

	// Background work
	queue := services.NewTaskQueue(cfg.RescanWorkers, cfg.RescanQueueSize, cfg.TaskTimeout)
	queue.Start()
	go services.DrainTaskErrors(queue.Errors())

	// Services
	policyService := services.NewPolicyService(database.DB, cfg.Policy)
	recorder := services.NewDecisionRecorder(database.DB, policyService, queue, notifier)
	evaluator := services.NewEvaluator(database.DB, policyService, recorder)
	rescanService := services.NewRescanService(database.DB, classifier, recorder, registry, cfg.ClassifierTimeout)
	moderationService := services.NewModerationService(database.DB, evaluator, recorder, rescanService, queue)
	appealService := services.NewAppealService(database.DB, recorder, queue, notifier)
	strikeService := services.NewStrikeService(database.DB, policyService, recorder)
	accountService := services.NewAccountService(database.DB, cfg.DeletionGrace)
	contentService := services.NewContentService(database.DB, keywords)
	statusService := services.NewStatusService(database.DB)

	sweepDone := make(chan struct{})
	services.NewSLASweeper(database.DB, recorder, accountService, cfg.SLASweepInterval).Start(sweepDone)

	// Handlers
	h := routes.Handlers{
		Health:     handlers.NewHealthHandler(database.DB, rdb, registry),
		Moderation: handlers.NewModerationHandler(moderationService, recorder),
		Appeal:     handlers.NewAppealHandler(appealService),
		Status:     handlers.NewStatusHandler(statusService, accountService),
		Content:    handlers.NewContentHandler(contentService, accountService),
		Account:    handlers.NewAccountHandler(accountService, strikeService),
		Policy:     handlers.NewPolicyHandler(policyService, registry),
		Webhook:    handlers.NewWebhookHandler(strikeService, registry),
	}

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
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

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
	app.Use(middleware.Metrics())
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	routes.Setup(app, cfg, database.DB, registry, h, limiterStorage)

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

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(sweepDone)
	close(cleanupDone)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := queue.Shutdown(ctx); err != nil {
		slog.Warn("background tasks did not drain", "error", err)
	}
	cancel()

	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
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

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
