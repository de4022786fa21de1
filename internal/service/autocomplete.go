package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/utafrali/contentsearch/internal/cache"
	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/ranking"
	"github.com/utafrali/contentsearch/internal/repository"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

// DefaultSuggestionLimit is used when a caller does not ask for a limit.
const DefaultSuggestionLimit = 10

// AutocompleteConfig holds the autocomplete knobs.
type AutocompleteConfig struct {
	MinLength           int
	MaxSuggestions      int
	SimilarityThreshold float64
	DefaultLanguage     string
}

// DefaultAutocompleteConfig returns the production defaults.
func DefaultAutocompleteConfig() AutocompleteConfig {
	return AutocompleteConfig{
		MinLength:           2,
		MaxSuggestions:      50,
		SimilarityThreshold: 0.3,
		DefaultLanguage:     "en",
	}
}

// AutocompleteService ranks and maintains query suggestions.
type AutocompleteService struct {
	suggestions repository.SuggestionRepository
	queryLogs   repository.QueryLogRepository
	cache       cache.SuggestionCache
	cfg         AutocompleteConfig
	metrics     *Metrics
	logger      *slog.Logger
	now         func() time.Time
}

var _ SuggestionTracker = (*AutocompleteService)(nil)

// NewAutocompleteService creates an autocomplete service. A nil cache
// disables caching.
func NewAutocompleteService(
	suggestions repository.SuggestionRepository,
	queryLogs repository.QueryLogRepository,
	c cache.SuggestionCache,
	cfg AutocompleteConfig,
	metrics *Metrics,
	logger *slog.Logger,
) *AutocompleteService {
	if c == nil {
		c = cache.Noop{}
	}
	return &AutocompleteService{
		suggestions: suggestions,
		queryLogs:   queryLogs,
		cache:       c,
		cfg:         cfg,
		metrics:     metrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *AutocompleteService) limit(n int) int {
	if n <= 0 {
		n = DefaultSuggestionLimit
	}
	return min(n, s.cfg.MaxSuggestions)
}

// Suggest returns up to limit suggestion texts for prefix. Prefixes
// shorter than the minimum length yield an empty list.
func (s *AutocompleteService) Suggest(ctx context.Context, prefix, language string, limit int) ([]string, error) {
	prefix = domain.NormalizeText(prefix)
	if utf8.RuneCountInString(prefix) < s.cfg.MinLength {
		return []string{}, nil
	}
	language = normalizeLanguage(language, s.cfg.DefaultLanguage)
	limit = s.limit(limit)

	key := cache.Key{Prefix: prefix, Language: language, Limit: limit}
	if cached, ok := s.cache.Get(ctx, key); ok {
		s.metrics.suggestionCache.WithLabelValues("hit").Inc()
		return cached, nil
	}
	s.metrics.suggestionCache.WithLabelValues("miss").Inc()

	similar, err := s.suggestions.Similar(ctx, prefix, language, s.cfg.SimilarityThreshold, limit)
	if err != nil {
		return nil, fmt.Errorf("similar suggestions: %w", err)
	}
	prefixed, err := s.suggestions.WithPrefix(ctx, prefix, language, limit)
	if err != nil {
		return nil, fmt.Errorf("prefix suggestions: %w", err)
	}

	merged := make([]domain.Suggestion, 0, len(similar)+len(prefixed))
	seen := make(map[string]struct{}, cap(merged))
	for _, sg := range slices.Concat(similar, prefixed) {
		norm := domain.NormalizeText(sg.Text)
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		merged = append(merged, sg)
	}
	slices.SortFunc(merged, func(a, b domain.Suggestion) int {
		switch {
		case repository.SuggestionLess(a, b):
			return -1
		case repository.SuggestionLess(b, a):
			return 1
		}
		return 0
	})

	out := make([]string, 0, min(limit, len(merged)))
	for _, sg := range merged[:min(limit, len(merged))] {
		out = append(out, sg.Text)
	}

	s.cache.Set(ctx, key, out)
	return out, nil
}

// TrackSuggestion bumps the usage of text in language. Texts shorter than
// the minimum length are ignored.
func (s *AutocompleteService) TrackSuggestion(ctx context.Context, text, language string) error {
	text = domain.NormalizeText(text)
	if utf8.RuneCountInString(text) < s.cfg.MinLength {
		return nil
	}
	if utf8.RuneCountInString(text) > 500 {
		return apperrors.FieldError("text", "must be at most 500 characters")
	}
	language = normalizeLanguage(language, s.cfg.DefaultLanguage)

	if _, err := s.suggestions.Upsert(ctx, text, language, s.now()); err != nil {
		return fmt.Errorf("track suggestion: %w", err)
	}
	s.cache.InvalidateLanguage(ctx, language)
	return nil
}

// PopularSearches returns the most used suggestions. An empty language
// covers every language.
func (s *AutocompleteService) PopularSearches(ctx context.Context, language string, limit int) ([]domain.Suggestion, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	out, err := s.suggestions.Popular(ctx, language, s.limit(limit))
	if err != nil {
		return nil, fmt.Errorf("popular searches: %w", err)
	}
	return out, nil
}

// RecentSearches returns the caller's distinct recent query texts.
func (s *AutocompleteService) RecentSearches(ctx context.Context, userID string, limit int) ([]string, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("recent searches require an authenticated caller")
	}
	out, err := s.queryLogs.RecentByUser(ctx, userID, s.limit(limit))
	if err != nil {
		return nil, fmt.Errorf("recent searches: %w", err)
	}
	return out, nil
}

// CleanupSuggestions deletes suggestions used fewer than minUsage times.
func (s *AutocompleteService) CleanupSuggestions(ctx context.Context, minUsage int) (int, error) {
	if minUsage < 1 {
		return 0, apperrors.FieldError("min_usage", "must be at least 1")
	}
	n, err := s.suggestions.DeleteBelow(ctx, minUsage)
	if err != nil {
		return 0, fmt.Errorf("cleanup suggestions: %w", err)
	}
	// Entries of other languages expire with their TTL.
	for _, lang := range ranking.SupportedLanguages {
		s.cache.InvalidateLanguage(ctx, lang)
	}
	s.logger.InfoContext(ctx, "suggestions cleaned up",
		slog.Int("min_usage", minUsage),
		slog.Int("deleted", n),
	)
	return n, nil
}
