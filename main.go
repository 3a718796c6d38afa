package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/northstar-hq/northstar-engine/pkg/config"
	"github.com/northstar-hq/northstar-engine/pkg/database"
	"github.com/northstar-hq/northstar-engine/pkg/handlers"
	"github.com/northstar-hq/northstar-engine/pkg/middleware"
	"github.com/northstar-hq/northstar-engine/pkg/repositories"
	"github.com/northstar-hq/northstar-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("bind_addr", cfg.BindAddr),
		zap.String("port", cfg.Port),
		zap.String("database", cfg.Database.Database),
		zap.String("database_host", cfg.Database.Host),
		zap.Bool("redis_enabled", cfg.Redis.Host != ""))

	ctx := context.Background()

	// Database
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations using database/sql (required by golang-migrate)
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	// Redis (optional dashboard cache)
	cache, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if cache != nil {
		defer func() { _ = cache.Close() }()
	}

	// Repositories
	cycleRepo := repositories.NewCycleRepository(db)
	objectiveRepo := repositories.NewObjectiveRepository(db)
	krRepo := repositories.NewKeyResultRepository(db)
	checkInRepo := repositories.NewCheckInRepository(db)
	linkRepo := repositories.NewOkrLinkRepository(db)

	// Services
	clock := services.SystemClock()
	progressService := services.NewProgressService(objectiveRepo, krRepo, checkInRepo, logger)
	linkService := services.NewLinkService(db, linkRepo, objectiveRepo, krRepo, clock, logger)
	treeService := services.NewTreeService(objectiveRepo, krRepo, linkRepo, progressService, logger)
	checkInService := services.NewCheckInService(db, checkInRepo, krRepo, logger)
	cycleService := services.NewCycleService(db, cycleRepo, objectiveRepo, progressService, clock, logger)
	objectiveService := services.NewObjectiveService(objectiveRepo, krRepo, progressService)
	dashboardService := services.NewDashboardService(
		cycleRepo, objectiveRepo, krRepo, checkInRepo, progressService, clock, cache,
		services.DashboardConfig{
			RiskThresholdPercent: cfg.OKR.RiskThresholdPercent,
			CacheTTL:             time.Duration(cfg.OKR.DashboardCacheTTLSeconds) * time.Second,
		},
		logger)

	mux := http.NewServeMux()
	requireActor := middleware.RequireActor(logger)

	// Register handlers
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewLinksHandler(linkService, logger).RegisterRoutes(mux, requireActor)
	handlers.NewTreeHandler(treeService, cfg.OKR.TreeMaxDepth, logger).RegisterRoutes(mux, requireActor)
	handlers.NewDashboardHandler(dashboardService, logger).RegisterRoutes(mux, requireActor)
	handlers.NewCyclesHandler(cycleService, dashboardService, logger).RegisterRoutes(mux, requireActor)
	handlers.NewCheckInsHandler(checkInService, logger).RegisterRoutes(mux, requireActor)
	handlers.NewObjectivesHandler(objectiveService, logger).RegisterRoutes(mux, requireActor)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting northstar-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal, then drain in-flight requests.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
