package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/engine"
	"github.com/utafrali/contentsearch/internal/ranking"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
	"github.com/utafrali/contentsearch/pkg/validator"
)

// FacetRequest selects the result set facets are computed over.
type FacetRequest struct {
	Query    string         `json:"query" validate:"max=500"`
	Language string         `json:"language,omitempty" validate:"max=10"`
	Filters  map[string]any `json:"filters,omitempty"`
}

// FacetCountRequest counts the matches of Query, optionally narrowed to one
// facet value.
type FacetCountRequest struct {
	Query      string `json:"query" validate:"required,min=1,max=500"`
	Language   string `json:"language,omitempty" validate:"max=10"`
	FacetField string `json:"facet_field,omitempty" validate:"omitempty,oneof=document_type language author_name status"`
	FacetValue string `json:"facet_value,omitempty" validate:"required_with=FacetField,max=200"`
}

// FacetCount is the answer to a FacetCountRequest.
type FacetCount struct {
	Query      string `json:"query"`
	FacetField string `json:"facet_field,omitempty"`
	FacetValue string `json:"facet_value,omitempty"`
	Count      int    `json:"count"`
}

// FacetService computes grouped counts over search results.
type FacetService struct {
	store           engine.Store
	analyzers       *ranking.Analyzers
	matcher         ranking.TextMatcher
	defaultLanguage string
	maxCandidates   int
}

// NewFacetService creates a facet service.
func NewFacetService(store engine.Store, analyzers *ranking.Analyzers, cfg SearchConfig) *FacetService {
	return &FacetService{
		store:           store,
		analyzers:       analyzers,
		matcher:         ranking.DefaultMatcher(),
		defaultLanguage: cfg.DefaultLanguage,
		maxCandidates:   cfg.MaxCandidates,
	}
}

var facetDimensions = []domain.FacetDimension{
	domain.FacetDocumentTypes,
	domain.FacetLanguages,
	domain.FacetAuthors,
	domain.FacetStatuses,
}

// Facets counts each dimension with every filter applied except that
// dimension's own, so a facet shows what selecting another value would
// return. Total is the fully filtered result count.
func (s *FacetService) Facets(ctx context.Context, req FacetRequest) (*domain.Facets, error) {
	structErr := validator.Validate(req)
	filters, filterErr := domain.ParseFilters(req.Filters)
	if err := mergeValidation(structErr, filterErr); err != nil {
		return nil, err
	}

	query := strings.TrimSpace(req.Query)
	language := normalizeLanguage(req.Language, cmp.Or(filters.Language, s.defaultLanguage))
	terms := s.analyzers.Terms(language, query)

	counters := newFacetCounters()
	if query != "" && len(terms) == 0 {
		return counters.result(), nil
	}

	// Fetch with only the filters no dimension ignores.
	base := filters
	for _, dim := range facetDimensions {
		base = base.Without(dim)
	}
	docs, err := s.find(ctx, engine.Query{Terms: terms, Filters: base, Limit: s.maxCandidates})
	if err != nil {
		return nil, err
	}

	for i := range docs {
		doc := &docs[i]
		if !base.Match(doc) {
			continue
		}
		if _, ok := s.matcher.Match(terms, doc.SearchVector); !ok {
			continue
		}
		for _, dim := range facetDimensions {
			if filters.Without(dim).Match(doc) {
				counters.add(dim, doc)
			}
		}
		if filters.Match(doc) {
			counters.total++
		}
	}
	return counters.result(), nil
}

// Count returns how many documents match the query and, when a facet
// field is given, carry the facet value.
func (s *FacetService) Count(ctx context.Context, req FacetCountRequest) (*FacetCount, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.FacetValue = strings.TrimSpace(req.FacetValue)
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	var filters domain.Filters
	if req.FacetField != "" {
		f, err := domain.ParseFilters(map[string]any{req.FacetField: req.FacetValue})
		if err != nil {
			return nil, apperrors.FieldError("facet_value", fmt.Sprintf("is not a valid %s", req.FacetField))
		}
		filters = f
	}

	res := &FacetCount{Query: req.Query, FacetField: req.FacetField, FacetValue: req.FacetValue}
	language := normalizeLanguage(req.Language, cmp.Or(filters.Language, s.defaultLanguage))
	terms := s.analyzers.Terms(language, req.Query)
	if len(terms) == 0 {
		return res, nil
	}

	docs, err := s.find(ctx, engine.Query{Terms: terms, Filters: filters, Limit: s.maxCandidates})
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if !filters.Match(&docs[i]) {
			continue
		}
		if _, ok := s.matcher.Match(terms, docs[i].SearchVector); ok {
			res.Count++
		}
	}
	return res, nil
}

// FilterOptions returns one facet over the whole corpus.
func (s *FacetService) FilterOptions(ctx context.Context, dim domain.FacetDimension) ([]domain.FacetValue, error) {
	if !slices.Contains(facetDimensions, dim) {
		return nil, apperrors.FieldError("dimension", fmt.Sprintf("unknown facet %q", dim))
	}

	docs, err := s.find(ctx, engine.Query{Limit: s.maxCandidates})
	if err != nil {
		return nil, err
	}
	counters := newFacetCounters()
	for i := range docs {
		counters.add(dim, &docs[i])
	}
	return counters.values(dim), nil
}

func (s *FacetService) find(ctx context.Context, q engine.Query) ([]domain.Document, error) {
	docs, err := s.store.Find(ctx, q)
	if err != nil {
		if errors.Is(err, engine.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("find facet candidates: %w", err)
	}
	return docs, nil
}

type facetCounters struct {
	counts map[domain.FacetDimension]map[string]int
	total  int
}

func newFacetCounters() *facetCounters {
	c := &facetCounters{counts: make(map[domain.FacetDimension]map[string]int, len(facetDimensions))}
	for _, dim := range facetDimensions {
		c.counts[dim] = map[string]int{}
	}
	return c
}

func (c *facetCounters) add(dim domain.FacetDimension, doc *domain.Document) {
	var v string
	switch dim {
	case domain.FacetDocumentTypes:
		v = string(doc.DocumentType)
	case domain.FacetLanguages:
		v = strings.ToLower(doc.Language)
	case domain.FacetAuthors:
		v = strings.TrimSpace(doc.AuthorName)
	case domain.FacetStatuses:
		v = strings.TrimSpace(doc.Status)
	}
	if v == "" {
		return
	}
	c.counts[dim][v]++
}

func (c *facetCounters) values(dim domain.FacetDimension) []domain.FacetValue {
	out := make([]domain.FacetValue, 0, len(c.counts[dim]))
	for v, n := range c.counts[dim] {
		out = append(out, domain.FacetValue{Value: v, Label: facetLabel(dim, v), Count: n})
	}
	slices.SortFunc(out, func(a, b domain.FacetValue) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return strings.Compare(a.Value, b.Value)
	})
	if dim == domain.FacetAuthors && len(out) > domain.MaxAuthorFacets {
		out = out[:domain.MaxAuthorFacets]
	}
	return out
}

func (c *facetCounters) result() *domain.Facets {
	return &domain.Facets{
		DocumentTypes: c.values(domain.FacetDocumentTypes),
		Languages:     c.values(domain.FacetLanguages),
		Authors:       c.values(domain.FacetAuthors),
		Statuses:      c.values(domain.FacetStatuses),
		Total:         c.total,
	}
}

func facetLabel(dim domain.FacetDimension, v string) string {
	switch dim {
	case domain.FacetDocumentTypes:
		return domain.DocumentType(v).Label()
	case domain.FacetLanguages:
		return domain.LanguageLabel(v)
	case domain.FacetStatuses:
		return domain.TitleCase(v)
	default:
		return v
	}
}
