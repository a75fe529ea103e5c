package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/nadhif-app/nadhif-engine/pkg/config"
	"github.com/nadhif-app/nadhif-engine/pkg/database"
	"github.com/nadhif-app/nadhif-engine/pkg/handlers"
	"github.com/nadhif-app/nadhif-engine/pkg/middleware"
	"github.com/nadhif-app/nadhif-engine/pkg/repositories"
	"github.com/nadhif-app/nadhif-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("database", cfg.Database.Database),
		zap.String("db_host", cfg.Database.Host),
		zap.Bool("redis_enabled", cfg.Redis.Host != ""))

	ctx := context.Background()

	// Schema bootstrap via database/sql (required by golang-migrate)
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.Engine.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run schema migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	scopes := database.NewScopeProvider(db)

	// Repositories
	evaluationRepo := repositories.NewEvaluationRepository()
	checklistRepo := repositories.NewDailyChecklistRepository()
	unifiedRepo := repositories.NewUnifiedEvaluationRepository()
	locationRepo := repositories.NewLocationRepository()
	templateRepo := repositories.NewTemplateRepository()
	directoryRepo := repositories.NewDirectoryRepository()

	// Services
	bridge := services.NewEvaluationBridge(evaluationRepo, checklistRepo, locationRepo, directoryRepo, logger)
	migration := services.NewMigrationService(evaluationRepo, checklistRepo, unifiedRepo, locationRepo, directoryRepo, logger)
	integrity := services.NewIntegrityService(evaluationRepo, locationRepo, templateRepo, directoryRepo,
		redisClient, cfg.Engine.RepairLockTTL(), logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewEvaluationHandler(bridge, scopes, logger).RegisterRoutes(mux)
	handlers.NewAdminHandler(migration, integrity, scopes, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting nadhif-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
