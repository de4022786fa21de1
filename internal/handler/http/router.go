package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/utafrali/contentsearch/internal/auth"
	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/service"
	"github.com/utafrali/contentsearch/pkg/health"
	"github.com/utafrali/contentsearch/pkg/middleware"
)

const serviceName = "search"

// Services groups the core services exposed over HTTP.
type Services struct {
	Search       *service.SearchService
	Facets       *service.FacetService
	Autocomplete *service.AutocompleteService
	Indexing     *service.IndexingService
	Analytics    *service.AnalyticsService
}

// RouterConfig holds the cross-cutting pieces mounted around the routes.
// Nil RateLimiter, HTTPMetrics and MetricsHandler are skipped.
type RouterConfig struct {
	Health         *health.Handler
	TokenValidator middleware.TokenValidator
	RateLimiter    *middleware.RateLimiter
	HTTPMetrics    *middleware.HTTPMetrics
	MetricsHandler http.Handler
	CORS           middleware.CORSConfig
	RequestTimeout time.Duration
	PprofCIDRs     []string
	Tracing        bool
}

// NewRouter creates a chi router with all search service routes registered.
func NewRouter(svc Services, cfg RouterConfig, logger *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	if cfg.Tracing {
		r.Use(middleware.Tracing(serviceName))
	}
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Middleware(serviceName))
	}

	// Health check endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.LivenessHandler())
		r.Get("/health/ready", cfg.Health.ReadinessHandler())
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if len(cfg.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	searchHandler := NewSearchHandler(svc.Search, logger)
	indexingHandler := NewIndexingHandler(svc.Indexing, logger)
	autocompleteHandler := NewAutocompleteHandler(svc.Autocomplete, logger)
	facetHandler := NewFacetHandler(svc.Facets, logger)
	analyticsHandler := NewAnalyticsHandler(svc.Analytics, logger)

	requireAuth := middleware.Auth(cfg.TokenValidator)
	requireAdmin := middleware.RequireRole(auth.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.TokenValidator))
		r.Use(middleware.RequestLogger(logger))

		r.Route("/search", func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Middleware)
			}
			r.Use(requireJSON)
			r.Post("/", searchHandler.Search)
			r.Post("/articles", searchHandler.SearchByType(domain.DocumentTypeArticle))
			r.Post("/projects", searchHandler.SearchByType(domain.DocumentTypeProject))
			r.Post("/people", searchHandler.SearchByType(domain.DocumentTypePerson))
			r.Post("/partners", searchHandler.SearchByType(domain.DocumentTypePartner))
			r.Post("/social", searchHandler.SearchByType(domain.DocumentTypeSocialPost))
			r.Post("/notifications", searchHandler.SearchByType(domain.DocumentTypeNotification))
			r.Post("/click", searchHandler.TrackClick)
		})

		r.Route("/indexing", func(r chi.Router) {
			r.Get("/stats", indexingHandler.Stats)
			r.Get("/jobs", indexingHandler.ListJobs)
			r.Get("/jobs/{job_id}", indexingHandler.GetJob)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.With(requireJSON).Post("/index", indexingHandler.IndexDocument)
				r.With(requireJSON).Post("/bulk", indexingHandler.BulkIndex)
				r.With(requireJSON).Put("/update/{document_id}", indexingHandler.UpdateDocument)
				r.Delete("/delete/{document_id}", indexingHandler.DeleteDocument)
				r.Post("/reindex", indexingHandler.ReindexAll)
				r.Post("/reindex/{service}", indexingHandler.Reindex)
				r.With(requireAdmin).Delete("/clear", indexingHandler.ClearIndex)
			})
		})

		r.Route("/autocomplete", func(r chi.Router) {
			r.Get("/suggestions", autocompleteHandler.Suggestions)
			r.Get("/popular", autocompleteHandler.Popular)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/recent", autocompleteHandler.Recent)
				r.With(requireJSON).Post("/suggestions", autocompleteHandler.Track)
				r.With(requireAdmin).Delete("/suggestions", autocompleteHandler.Cleanup)
			})
		})

		r.Route("/facets", func(r chi.Router) {
			r.Use(middleware.CacheControl(30))
			r.Get("/", facetHandler.Facets)
			r.Get("/document-types", facetHandler.FilterOptions(domain.FacetDocumentTypes))
			r.Get("/languages", facetHandler.FilterOptions(domain.FacetLanguages))
			r.Get("/authors", facetHandler.FilterOptions(domain.FacetAuthors))
			r.Get("/statuses", facetHandler.FilterOptions(domain.FacetStatuses))
			r.Post("/count", facetHandler.Count)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/popular-queries", analyticsHandler.PopularQueries)
			r.Get("/zero-results", analyticsHandler.ZeroResults)
			r.Get("/metrics", analyticsHandler.Metrics)
			r.Get("/performance", analyticsHandler.Performance)
		})
	})

	return r
}

// requireJSON answers 415 to non-empty bodies not sent as application/json.
func requireJSON(next http.Handler) http.Handler {
	return chimw.AllowContentType("application/json")(next)
}
