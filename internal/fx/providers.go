package fx

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/ndelia/wren/config"
	"github.com/ndelia/wren/internal/application"
	"github.com/ndelia/wren/internal/domain"
	cacheImpl "github.com/ndelia/wren/internal/infrastructure/cache"
	memoryRepo "github.com/ndelia/wren/internal/infrastructure/memory"
	postgresRepo "github.com/ndelia/wren/internal/infrastructure/postgres"
	redisCache "github.com/ndelia/wren/internal/infrastructure/redis"
	sqliteRepo "github.com/ndelia/wren/internal/infrastructure/sqlite"
	"github.com/ndelia/wren/internal/pkg/metrics"
)

// ProvideLogger creates and configures the application logger
func ProvideLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// ProvideRepository creates the appropriate repository based on configuration
func ProvideRepository(cfg *config.Config, logger *slog.Logger) (domain.LinkRepository, error) {
	switch cfg.Database.Type {
	case "memory":
		logger.Info("Using in-memory repository")
		return memoryRepo.NewLinkRepository(), nil

	case "sqlite":
		dbURL := cfg.GetDatabaseURL()
		logger.Info("Using SQLite repository", "path", dbURL)

		// Create data directory if it doesn't exist
		if err := os.MkdirAll("./data", 0750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}

		db, err := sqlx.Connect("sqlite3", dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
		}

		if err := runMigrations(db, "sqlite3", "sqlite"); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		return sqliteRepo.NewLinkRepository(db), nil

	case "postgres":
		dbURL := cfg.GetDatabaseURL()
		logger.Info("Using PostgreSQL repository", "url", dbURL)

		db, err := sqlx.Connect("postgres", dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}

		if err := runMigrations(db, "postgres", "postgres"); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		return postgresRepo.NewLinkRepository(db), nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}
}

// runMigrations runs database migrations
func runMigrations(db interface{}, driverName, migrationDir string) error {
	var driver database.Driver
	var err error

	sqlDB, ok := db.(*sqlx.DB)
	if ok {
		db = sqlDB.DB
	}

	rawDB, ok := db.(*sql.DB)
	if !ok {
		return fmt.Errorf("expected *sql.DB, got %T", db)
	}

	switch driverName {
	case "sqlite3":
		driver, err = sqlite3.WithInstance(rawDB, &sqlite3.Config{})
	case "postgres":
		driver, err = postgres.WithInstance(rawDB, &postgres.Config{})
	default:
		return fmt.Errorf("unsupported driver: %s", driverName)
	}

	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	migrationPath := fmt.Sprintf("file://migrations/%s", migrationDir)
	m, err := migrate.NewWithDatabaseInstance(
		migrationPath,
		driverName,
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Migrations completed successfully")
	return nil
}

// ProvideRedisClient creates the redis client when caching is enabled.
// Returns nil when the cache is disabled by configuration.
func ProvideRedisClient(cfg *config.Config) *goredis.Client {
	if !cfg.Cache.Enabled {
		return nil
	}

	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPass,
		DB:       cfg.Cache.RedisDB,
	})
}

// ProvideCache selects the cache backend for the process lifetime: a single
// reachability probe against redis at startup decides between the live
// backend and the in-process fallback. No re-probing happens per call.
func ProvideCache(cfg *config.Config, client *goredis.Client, logger *slog.Logger) domain.Cache {
	if !cfg.Cache.Enabled || client == nil {
		logger.Info("Caching disabled")
		return cacheImpl.NewNoOp()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetProbeTimeout())
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis not reachable, using in-process cache", "addr", cfg.Cache.RedisAddr, "error", err)
		return cacheImpl.NewMemory()
	}

	logger.Info("Using redis cache", "addr", cfg.Cache.RedisAddr)
	return redisCache.NewCache(client, logger)
}

// ProvideMetricsRegistry creates the metrics registry based on configuration
func ProvideMetricsRegistry(cfg *config.Config) (metrics.Registry, error) {
	if !cfg.Metrics.Enabled {
		return metrics.NewNoOpRegistry(), nil
	}
	return metrics.NewPrometheusRegistry(cfg.Metrics)
}

// ProvideLinkService wires the application service with its tunables
func ProvideLinkService(cfg *config.Config, repo domain.LinkRepository, cache domain.Cache, registry metrics.Registry) *application.LinkService {
	return application.NewLinkService(repo, cache, registry, application.Options{
		CacheTTL:        cfg.GetCacheTTL(),
		ShortCodeLength: cfg.App.ShortCodeLength,
		MaxCodeAttempts: cfg.App.MaxCodeAttempts,
	})
}

// RepositoryParams holds the parameters needed for repository lifecycle management
type RepositoryParams struct {
	fx.In

	Repository domain.LinkRepository
	Logger     *slog.Logger
}

// RegisterRepositoryHooks registers repository lifecycle hooks with FX
func RegisterRepositoryHooks(lc fx.Lifecycle, params RepositoryParams) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := params.Repository.Close(); err != nil {
				params.Logger.Error("Failed to close repository resources", "error", err)
				return err
			}
			params.Logger.Info("Repository resources closed successfully")
			return nil
		},
	})
}

// CacheParams holds the parameters needed for cache lifecycle management
type CacheParams struct {
	fx.In

	Client *goredis.Client `optional:"true"`
	Logger *slog.Logger
}

// RegisterCacheHooks closes the redis client on shutdown. The in-process
// fallback is memory-only and needs no teardown.
func RegisterCacheHooks(lc fx.Lifecycle, params CacheParams) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if params.Client == nil {
				return nil
			}
			if err := params.Client.Close(); err != nil {
				params.Logger.Error("Failed to close redis client", "error", err)
				return err
			}
			return nil
		},
	})
}
