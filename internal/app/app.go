package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/contentsearch/internal/auth"
	"github.com/utafrali/contentsearch/internal/config"
	"github.com/utafrali/contentsearch/internal/engine"
	"github.com/utafrali/contentsearch/internal/event"
	handler "github.com/utafrali/contentsearch/internal/handler/http"
	"github.com/utafrali/contentsearch/internal/ranking"
	"github.com/utafrali/contentsearch/internal/service"
	"github.com/utafrali/contentsearch/internal/upstream"
	"github.com/utafrali/contentsearch/pkg/health"
	pkgkafka "github.com/utafrali/contentsearch/pkg/kafka"
	"github.com/utafrali/contentsearch/pkg/logger"
	"github.com/utafrali/contentsearch/pkg/middleware"
	"github.com/utafrali/contentsearch/pkg/tracing"
)

const serviceName = "content-search"

// App wires together all dependencies and runs the search service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	store       engine.Store
	pool        *pgxpool.Pool
	redis       *redis.Client
	indexing    *service.IndexingService
	recorder    *service.Recorder
	rateLimiter *middleware.RateLimiter

	producer  *pkgkafka.Producer
	dlq       *pkgkafka.DLQProducer
	consumers []*pkgkafka.Consumer

	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, log *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.closeBackends()
		}
	}()

	// Initialize OpenTelemetry tracing.
	tracingCfg := cfg.Tracing
	tracingCfg.ServiceName = serviceName
	tracingCfg.Environment = cfg.Environment
	a.tracerShutdown, err = tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(registry)

	// Storage backends.
	a.store, err = newStore(cfg, logger.Component(log, "store"))
	if err != nil {
		return nil, err
	}
	repos, pool, err := newRepositories(ctx, cfg, registry, log)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	suggestionCache, redisClient, err := newSuggestionCache(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.redis = redisClient

	analyzers, err := ranking.NewAnalyzers()
	if err != nil {
		return nil, fmt.Errorf("build analyzers: %w", err)
	}

	// Kafka: job events out, document events in.
	var observer service.JobObserver
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), log)
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, log)
		observer = event.NewJobPublisher(a.producer, logger.Component(log, "job-events"))
		log.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the service layer.
	searchCfg := service.SearchConfig{
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
		PreviewLength:   cfg.PreviewLength,
		MaxCandidates:   cfg.MaxCandidates,
		DefaultLanguage: cfg.DefaultLanguage,
	}
	autocompleteCfg := service.AutocompleteConfig{
		MinLength:           cfg.AutocompleteMinLength,
		MaxSuggestions:      cfg.AutocompleteMax,
		SimilarityThreshold: cfg.SimilarityThreshold,
		DefaultLanguage:     cfg.DefaultLanguage,
	}
	fetcher := upstream.NewHTTPFetcher(upstream.Config{
		BaseURLs:   cfg.UpstreamURLs(),
		PageSize:   cfg.UpstreamPageSize,
		Timeout:    cfg.UpstreamTimeout,
		MaxRetries: cfg.UpstreamMaxRetries,
	}, logger.Component(log, "upstream"))

	autocompleteService := service.NewAutocompleteService(repos.suggestions, repos.queryLogs, suggestionCache,
		autocompleteCfg, metrics, logger.Component(log, "autocomplete"))
	a.recorder = service.NewRecorder(repos.queryLogs, autocompleteService, metrics, logger.Component(log, "recorder"))
	jobTracker := service.NewJobTracker(repos.jobs, observer, logger.Component(log, "jobs"))
	a.indexing, err = service.NewIndexingService(a.store, analyzers, jobTracker, fetcher, cfg.IndexWorkers,
		metrics, logger.Component(log, "indexing"))
	if err != nil {
		return nil, err
	}

	services := handler.Services{
		Search: service.NewSearchService(a.store, analyzers, repos.queryLogs, a.recorder, searchCfg,
			metrics, logger.Component(log, "search")),
		Facets:       service.NewFacetService(a.store, analyzers, searchCfg),
		Autocomplete: autocompleteService,
		Indexing:     a.indexing,
		Analytics:    service.NewAnalyticsService(repos.queryLogs),
	}

	if cfg.KafkaEnabled {
		consumer := event.NewConsumer(a.indexing, logger.Component(log, "document-events"))
		idempotency := pkgkafka.NewMemoryIdempotencyStore(10000, time.Hour)
		for _, topic := range event.ConsumedTopics() {
			a.consumers = append(a.consumers, pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
				Brokers:  cfg.KafkaBrokers,
				GroupID:  cfg.KafkaGroupID,
				Topic:    topic,
				MinBytes: 1,
				MaxBytes: 10e6, // 10 MB
			}, consumer.Handle, log,
				pkgkafka.WithDLQ(a.dlq),
				pkgkafka.WithIdempotency(idempotency),
				pkgkafka.WithRetry(3, 500*time.Millisecond),
			))
		}
		log.Info("kafka consumers initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.Int("topic_count", len(a.consumers)),
		)
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("document_store", a.store.Ping)
	if a.pool != nil {
		healthHandler.Register("postgres", a.pool.Ping)
	}
	if a.redis != nil {
		healthHandler.Register("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.producer != nil {
		healthHandler.Register("kafka", a.producer.Ping)
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry)
	a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)

	routerCfg := handler.RouterConfig{
		Health:         healthHandler,
		TokenValidator: jwtManager.Validator(),
		RateLimiter:    a.rateLimiter,
		HTTPMetrics:    middleware.NewHTTPMetrics(registry),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		CORS:           corsConfig(cfg),
		RequestTimeout: cfg.RequestTimeout,
		Tracing:        cfg.Tracing.Enabled,
	}
	if cfg.PprofEnabled {
		routerCfg.PprofCIDRs = cfg.PprofAllowedIPs
	}

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler.NewRouter(services, routerCfg, log),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	c.AllowedOrigins = cfg.CORSAllowedOrigins
	return c
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and Kafka consumers, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	go a.rateLimiter.Run(ctx)

	// Start Kafka consumers in background goroutines.
	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Kafka consumers (stop feeding the indexer)
// 3. Background index jobs and pending query log writes
// 4. Tracer, Kafka producers and storage backends
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.indexing.Close()
	a.recorder.Flush()

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.closeBackends(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeBackends releases Kafka producers and storage connections. Nil
// members are skipped so it is safe on a partially built App.
func (a *App) closeBackends() error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dlq producer: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close document store: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}
