package config

import (
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/utafrali/contentsearch/pkg/config"
	"github.com/utafrali/contentsearch/pkg/database"
	"github.com/utafrali/contentsearch/pkg/tracing"
)

// Search engine backends.
const (
	EngineMemory        = "memory"
	EngineElasticsearch = "elasticsearch"
	EngineBleve         = "bleve"
)

// Repository backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Suggestion cache backends.
const (
	CacheNone  = "none"
	CacheLRU   = "lru"
	CacheRedis = "redis"
)

// Config holds all configuration for the content search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort           int           `env:"SEARCH_HTTP_PORT" envDefault:"8011"`
	RequestTimeout     time.Duration `env:"SEARCH_REQUEST_TIMEOUT" envDefault:"30s"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	RateLimitRPS       float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
	PprofEnabled       bool          `env:"PPROF_ENABLED" envDefault:"false"`
	PprofAllowedIPs    []string      `env:"PPROF_ALLOWED_IPS" envDefault:"127.0.0.1" envSeparator:","`

	// Auth
	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:""`
	JWTExpiry time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"1h"`

	// Search engine selection (memory, elasticsearch or bleve)
	SearchEngine       string `env:"SEARCH_ENGINE" envDefault:"memory"`
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"content_documents"`
	BleveIndexPath     string `env:"BLEVE_INDEX_PATH" envDefault:""`

	// Query logs, suggestions and jobs
	RepositoryBackend string                  `env:"REPOSITORY_BACKEND" envDefault:"memory"`
	Postgres          database.PostgresConfig
	SlowQueryLog      time.Duration           `env:"POSTGRES_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Suggestion cache
	CacheBackend       string               `env:"CACHE_BACKEND" envDefault:"lru"`
	Redis              database.RedisConfig
	SuggestionCacheTTL time.Duration        `env:"SUGGESTION_CACHE_TTL" envDefault:"30s"`
	SuggestionCacheMax int                  `env:"SUGGESTION_CACHE_SIZE" envDefault:"4096"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"content-search"`

	Tracing tracing.Config

	// Upstream content services
	ContentServiceURL      string        `env:"CONTENT_SERVICE_URL" envDefault:"http://localhost:8003"`
	ProjectsServiceURL     string        `env:"PROJECTS_SERVICE_URL" envDefault:"http://localhost:8006"`
	PeopleServiceURL       string        `env:"PEOPLE_SERVICE_URL" envDefault:"http://localhost:8004"`
	PartnersServiceURL     string        `env:"PARTNERS_CRM_SERVICE_URL" envDefault:"http://localhost:8005"`
	SocialServiceURL       string        `env:"SOCIAL_MEDIA_SERVICE_URL" envDefault:"http://localhost:8007"`
	NotificationServiceURL string        `env:"NOTIFICATION_SERVICE_URL" envDefault:"http://localhost:8008"`
	UpstreamPageSize       int           `env:"UPSTREAM_PAGE_SIZE" envDefault:"500"`
	UpstreamTimeout        time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`
	UpstreamMaxRetries     int           `env:"UPSTREAM_MAX_RETRIES" envDefault:"2"`

	// Search knobs
	DefaultPageSize       int     `env:"SEARCH_DEFAULT_PAGE_SIZE" envDefault:"20"`
	MaxPageSize           int     `env:"SEARCH_MAX_PAGE_SIZE" envDefault:"100"`
	PreviewLength         int     `env:"SEARCH_PREVIEW_LENGTH" envDefault:"200"`
	MaxCandidates         int     `env:"SEARCH_MAX_CANDIDATES" envDefault:"10000"`
	DefaultLanguage       string  `env:"SEARCH_DEFAULT_LANGUAGE" envDefault:"en"`
	AutocompleteMinLength int     `env:"AUTOCOMPLETE_MIN_LENGTH" envDefault:"2"`
	AutocompleteMax       int     `env:"AUTOCOMPLETE_MAX_SUGGESTIONS" envDefault:"50"`
	SimilarityThreshold   float64 `env:"SIMILARITY_THRESHOLD" envDefault:"0.3"`
	IndexWorkers          int     `env:"INDEX_WORKERS" envDefault:"8"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load search config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants. pkgconfig.Load calls it.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{EngineMemory, EngineElasticsearch, EngineBleve}, c.SearchEngine) {
		return fmt.Errorf("invalid SEARCH_ENGINE %q", c.SearchEngine)
	}
	if !slices.Contains([]string{BackendMemory, BackendPostgres}, c.RepositoryBackend) {
		return fmt.Errorf("invalid REPOSITORY_BACKEND %q", c.RepositoryBackend)
	}
	if !slices.Contains([]string{CacheNone, CacheLRU, CacheRedis}, c.CacheBackend) {
		return fmt.Errorf("invalid CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.MaxPageSize < 1 {
		return fmt.Errorf("SEARCH_MAX_PAGE_SIZE must be positive, got %d", c.MaxPageSize)
	}
	if c.DefaultPageSize < 1 || c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("SEARCH_DEFAULT_PAGE_SIZE must be between 1 and %d, got %d", c.MaxPageSize, c.DefaultPageSize)
	}
	if c.PreviewLength < 20 {
		return fmt.Errorf("SEARCH_PREVIEW_LENGTH must be at least 20, got %d", c.PreviewLength)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be within [0,1], got %g", c.SimilarityThreshold)
	}
	if c.AutocompleteMinLength < 1 {
		return fmt.Errorf("AUTOCOMPLETE_MIN_LENGTH must be positive, got %d", c.AutocompleteMinLength)
	}
	if c.AutocompleteMax < 1 {
		return fmt.Errorf("AUTOCOMPLETE_MAX_SUGGESTIONS must be positive, got %d", c.AutocompleteMax)
	}
	if c.IndexWorkers < 1 {
		return fmt.Errorf("INDEX_WORKERS must be positive, got %d", c.IndexWorkers)
	}
	if c.UpstreamPageSize < 1 {
		return fmt.Errorf("UPSTREAM_PAGE_SIZE must be positive, got %d", c.UpstreamPageSize)
	}
	if c.Environment == "production" && c.JWTSecret == "dev-secret-change-me" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

// UpstreamURLs maps upstream service names to their base URLs.
func (c *Config) UpstreamURLs() map[string]string {
	return map[string]string{
		"content":       c.ContentServiceURL,
		"projects":      c.ProjectsServiceURL,
		"people":        c.PeopleServiceURL,
		"partners":      c.PartnersServiceURL,
		"social":        c.SocialServiceURL,
		"notifications": c.NotificationServiceURL,
	}
}
