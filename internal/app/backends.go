package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/contentsearch/internal/cache"
	"github.com/utafrali/contentsearch/internal/config"
	"github.com/utafrali/contentsearch/internal/engine"
	bleveengine "github.com/utafrali/contentsearch/internal/engine/bleve"
	esengine "github.com/utafrali/contentsearch/internal/engine/elasticsearch"
	"github.com/utafrali/contentsearch/internal/engine/memory"
	"github.com/utafrali/contentsearch/internal/repository"
	memrepo "github.com/utafrali/contentsearch/internal/repository/memory"
	"github.com/utafrali/contentsearch/internal/repository/postgres"
	"github.com/utafrali/contentsearch/pkg/database"
)

// repositories bundles the persistence layer for query logs, suggestions
// and index jobs.
type repositories struct {
	queryLogs   repository.QueryLogRepository
	suggestions repository.SuggestionRepository
	jobs        repository.JobRepository
}

// newStore opens the document store selected by SEARCH_ENGINE.
func newStore(cfg *config.Config, logger *slog.Logger) (engine.Store, error) {
	switch cfg.SearchEngine {
	case config.EngineElasticsearch:
		es, err := esengine.New(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch engine: %w", err)
		}
		logger.Info("elasticsearch document store initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
		)
		return es, nil
	case config.EngineBleve:
		b, err := bleveengine.New(cfg.BleveIndexPath, logger)
		if err != nil {
			return nil, fmt.Errorf("init bleve engine: %w", err)
		}
		logger.Info("bleve document store initialized", slog.String("path", cfg.BleveIndexPath))
		return b, nil
	default:
		logger.Info("in-memory document store initialized")
		return memory.New(), nil
	}
}

// newRepositories returns the repositories selected by REPOSITORY_BACKEND.
// The pool is nil for the memory backend.
func newRepositories(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*repositories, *pgxpool.Pool, error) {
	if cfg.RepositoryBackend != config.BackendPostgres {
		logger.Info("in-memory repositories initialized")
		return &repositories{
			queryLogs:   memrepo.NewQueryLogRepository(),
			suggestions: memrepo.NewSuggestionRepository(nil),
			jobs:        memrepo.NewJobRepository(),
		}, nil, nil
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.Postgres.Host),
		slog.Int("port", cfg.Postgres.Port),
		slog.String("database", cfg.Postgres.DBName),
	)
	if err := database.RegisterPoolMetrics(reg, pool, serviceName); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("register pool metrics: %w", err)
	}

	if err := database.RunMigrations(ctx, pool, postgres.Migrations(), logger); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryLog > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryLog, logger)
	}

	return &repositories{
		queryLogs:   postgres.NewQueryLogRepository(pool),
		suggestions: postgres.NewSuggestionRepository(pool),
		jobs:        postgres.NewJobRepository(pool),
	}, pool, nil
}

// newSuggestionCache returns the cache selected by CACHE_BACKEND. The
// redis client is nil unless the redis backend is used.
func newSuggestionCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.SuggestionCache, *redis.Client, error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		client, err := database.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis.Addr()))
		return cache.NewRedis(client, cfg.SuggestionCacheTTL, logger), client, nil
	case config.CacheLRU:
		return cache.NewLRU(cfg.SuggestionCacheMax, cfg.SuggestionCacheTTL), nil, nil
	default:
		return cache.Noop{}, nil, nil
	}
}
