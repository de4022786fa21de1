package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/ranking"
	"github.com/utafrali/contentsearch/internal/repository"
)

type suggestionKey struct {
	text     string
	language string
}

// SuggestionRepository keeps suggestions in a map and scores similarity
// with a FuzzyMatcher.
type SuggestionRepository struct {
	mu      sync.RWMutex
	items   map[suggestionKey]domain.Suggestion
	matcher ranking.FuzzyMatcher
}

var _ repository.SuggestionRepository = (*SuggestionRepository)(nil)

// NewSuggestionRepository creates an empty repository. A nil matcher
// means Jaro-Winkler.
func NewSuggestionRepository(matcher ranking.FuzzyMatcher) *SuggestionRepository {
	if matcher == nil {
		matcher = ranking.DefaultFuzzy()
	}
	return &SuggestionRepository{
		items:   make(map[suggestionKey]domain.Suggestion),
		matcher: matcher,
	}
}

// Upsert implements repository.SuggestionRepository.
func (r *SuggestionRepository) Upsert(_ context.Context, text, language string, now time.Time) (*domain.Suggestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := suggestionKey{text, language}
	s, ok := r.items[key]
	if !ok {
		s = domain.Suggestion{
			ID:        uuid.New(),
			Text:      text,
			Language:  language,
			CreatedAt: now,
		}
	}
	s.UsageCount++
	s.LastUsedAt = now
	s.UpdatedAt = now
	r.items[key] = s
	return &s, nil
}

func (r *SuggestionRepository) collect(language string, limit int, keep func(domain.Suggestion) bool) []domain.Suggestion {
	r.mu.RLock()
	out := make([]domain.Suggestion, 0)
	for k, s := range r.items {
		if language != "" && k.language != language {
			continue
		}
		if keep(s) {
			out = append(out, s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return repository.SuggestionLess(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Similar implements repository.SuggestionRepository.
func (r *SuggestionRepository) Similar(_ context.Context, text, language string, threshold float64, limit int) ([]domain.Suggestion, error) {
	return r.collect(language, limit, func(s domain.Suggestion) bool {
		return r.matcher.Similarity(s.Text, text) >= threshold
	}), nil
}

// WithPrefix implements repository.SuggestionRepository.
func (r *SuggestionRepository) WithPrefix(_ context.Context, prefix, language string, limit int) ([]domain.Suggestion, error) {
	return r.collect(language, limit, func(s domain.Suggestion) bool {
		return strings.HasPrefix(s.Text, prefix)
	}), nil
}

// Popular implements repository.SuggestionRepository.
func (r *SuggestionRepository) Popular(_ context.Context, language string, limit int) ([]domain.Suggestion, error) {
	return r.collect(language, limit, func(domain.Suggestion) bool { return true }), nil
}

// DeleteBelow implements repository.SuggestionRepository.
func (r *SuggestionRepository) DeleteBelow(_ context.Context, minUsage int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for k, s := range r.items {
		if s.UsageCount < minUsage {
			delete(r.items, k)
			n++
		}
	}
	return n, nil
}
