package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tilesheet/docs"
	"tilesheet/internal/config"
	"tilesheet/internal/database"
	"tilesheet/internal/database/migration"
	handlers "tilesheet/internal/http/handler"
	"tilesheet/internal/http/middleware"
	"tilesheet/internal/logging"
	"tilesheet/internal/otel"
	"tilesheet/internal/repository/postgres"
	"tilesheet/internal/service"
	"tilesheet/internal/storage"
)

// @title Tilesheet API
// @version 1.0
// @BasePath /
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	objStore, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	metrics, err := service.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register tilesheet metrics: %w", err)
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	tileRepo := postgres.NewTilePostgres(db)
	svc := service.NewTilesheetService(objStore, tileRepo, service.Options{
		Sizes:         cfg.Tilesheet.Sizes,
		PresignExpiry: time.Duration(cfg.Tilesheet.PresignExpirySec) * time.Second,
		Logger:        logger,
		Metrics:       metrics,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             cfg.Tilesheet.MaxUploadBytes,
		UnescapePath:          true,
		// Route params end up in per-sheet lock keys and metric labels.
		Immutable:             true,
		DisableStartupMessage: true,
	})

	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(promMiddleware.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	handlers.RegisterRoutes(app, db, svc)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", addr),
			zap.String("storage_backend", cfg.Tilesheet.Backend),
			zap.Ints("tile_sizes", cfg.Tilesheet.Sizes),
		)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}

func newStore(cfg *config.AppConfig) (storage.Storage, error) {
	switch cfg.Tilesheet.Backend {
	case config.BackendMinIO:
		return storage.NewMinIO(cfg.MinIO)
	case config.BackendLocal:
		return storage.NewLocal(cfg.Tilesheet.WorkDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Tilesheet.Backend)
	}
}
