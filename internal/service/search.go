package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/engine"
	"github.com/utafrali/contentsearch/internal/ranking"
	"github.com/utafrali/contentsearch/internal/repository"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
	"github.com/utafrali/contentsearch/pkg/pagination"
	"github.com/utafrali/contentsearch/pkg/validator"
)

// SearchConfig holds the search knobs.
type SearchConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	PreviewLength   int
	// MaxCandidates caps how many documents one search ranks. 0 means no
	// cap.
	MaxCandidates   int
	DefaultLanguage string
}

// DefaultSearchConfig returns the production defaults.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		DefaultPageSize: pagination.DefaultPageSize,
		MaxPageSize:     pagination.MaxPageSize,
		PreviewLength:   ranking.DefaultPreviewLength,
		MaxCandidates:   10000,
		DefaultLanguage: "en",
	}
}

// SearchService runs queries against the document store and ranks the
// candidates.
type SearchService struct {
	store       engine.Store
	analyzers   *ranking.Analyzers
	matcher     ranking.TextMatcher
	highlighter *ranking.Highlighter
	queryLogs   repository.QueryLogRepository
	recorder    *Recorder
	cfg         SearchConfig
	metrics     *Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewSearchService creates a search service.
func NewSearchService(
	store engine.Store,
	analyzers *ranking.Analyzers,
	queryLogs repository.QueryLogRepository,
	recorder *Recorder,
	cfg SearchConfig,
	metrics *Metrics,
	logger *slog.Logger,
) *SearchService {
	return &SearchService{
		store:       store,
		analyzers:   analyzers,
		matcher:     ranking.DefaultMatcher(),
		highlighter: ranking.NewHighlighter(analyzers, cfg.PreviewLength),
		queryLogs:   queryLogs,
		recorder:    recorder,
		cfg:         cfg,
		metrics:     metrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// rankedDoc is a candidate that passed the text match.
type rankedDoc struct {
	doc   *domain.Document
	score float64
}

// Search validates req, ranks matching documents and returns one page.
// The query log is written asynchronously and never fails the search.
func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest, userID string) (*domain.SearchResponse, error) {
	start := time.Now()

	filters, params, err := s.validate(req)
	if err != nil {
		s.metrics.searches.WithLabelValues("invalid").Inc()
		return nil, err
	}

	query := strings.TrimSpace(req.Query)
	language := normalizeLanguage(req.Language, cmp.Or(filters.Language, s.cfg.DefaultLanguage))
	terms := s.analyzers.Terms(language, query)

	sortBy, order := resolveSort(req.SortBy, req.SortOrder, query != "")

	var ranked []rankedDoc
	// A query made only of stop words matches nothing.
	if query == "" || len(terms) > 0 {
		ranked, err = s.candidates(ctx, terms, filters)
		if err != nil {
			s.metrics.searches.WithLabelValues("error").Inc()
			return nil, err
		}
	}
	sortRanked(ranked, sortBy, order)

	total := len(ranked)
	lo, hi := params.Bounds(total)
	results := make([]domain.SearchResult, 0, hi-lo)
	for _, r := range ranked[lo:hi] {
		results = append(results, s.toResult(r, terms))
	}

	elapsed := time.Since(start)
	resp := &domain.SearchResponse{
		Results:         results,
		Total:           total,
		Page:            params.Page,
		PageSize:        params.PageSize,
		TotalPages:      pagination.TotalPages(total, params.PageSize),
		ExecutionTimeMs: elapsed.Milliseconds(),
		QueryID:         uuid.New(),
	}

	s.metrics.searches.WithLabelValues("ok").Inc()
	s.metrics.searchDuration.Observe(elapsed.Seconds())

	entry := &domain.QueryLog{
		ID:              resp.QueryID,
		QueryText:       query,
		Language:        language,
		Filters:         filters.Snapshot(),
		ResultsCount:    total,
		ExecutionTimeMs: resp.ExecutionTimeMs,
		CreatedAt:       s.now(),
	}
	if userID != "" {
		entry.UserID = &userID
	}
	s.recorder.Record(ctx, entry, query != "" && total > 0)

	s.logger.DebugContext(ctx, "search executed",
		slog.String("query", query),
		slog.String("language", language),
		slog.Int("total", total),
		slog.Int64("took_ms", resp.ExecutionTimeMs),
	)
	return resp, nil
}

// SearchByType is Search restricted to one document type. Any type filter
// in req is replaced.
func (s *SearchService) SearchByType(ctx context.Context, docType domain.DocumentType, req domain.SearchRequest, userID string) (*domain.SearchResponse, error) {
	if err := validateDocumentType("document_type", docType); err != nil {
		return nil, err
	}
	filters := make(map[string]any, len(req.Filters)+1)
	maps.Copy(filters, req.Filters)
	delete(filters, domain.FilterDocumentTypes)
	filters[domain.FilterDocumentType] = string(docType)
	req.Filters = filters
	return s.Search(ctx, req, userID)
}

// TrackClick records the result a caller opened from a search.
func (s *SearchService) TrackClick(ctx context.Context, queryID uuid.UUID, resultID string) error {
	resultID = strings.TrimSpace(resultID)
	if resultID == "" {
		return apperrors.FieldError("result_id", "is required")
	}
	if err := s.queryLogs.SetClickedResult(ctx, queryID, resultID); err != nil {
		return fmt.Errorf("track click: %w", err)
	}
	return nil
}

func (s *SearchService) validate(req domain.SearchRequest) (domain.Filters, pagination.Params, error) {
	structErr := validator.Validate(req)
	filters, filterErr := domain.ParseFilters(req.Filters)
	params, pageErr := pagination.Params{Page: req.Page, PageSize: req.PageSize}.
		Normalize(s.cfg.DefaultPageSize, s.cfg.MaxPageSize)

	if err := mergeValidation(structErr, filterErr, pageErr); err != nil {
		return domain.Filters{}, pagination.Params{}, err
	}
	return filters, params, nil
}

// candidates loads filtered documents from the store and keeps those
// matching every term.
func (s *SearchService) candidates(ctx context.Context, terms []string, filters domain.Filters) ([]rankedDoc, error) {
	docs, err := s.store.Find(ctx, engine.Query{Terms: terms, Filters: filters, Limit: s.cfg.MaxCandidates})
	if err != nil {
		if errors.Is(err, engine.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	if s.cfg.MaxCandidates > 0 && len(docs) >= s.cfg.MaxCandidates {
		s.logger.WarnContext(ctx, "search candidate window truncated", slog.Int("limit", s.cfg.MaxCandidates))
	}

	ranked := make([]rankedDoc, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		if !filters.Match(doc) {
			continue
		}
		score, ok := s.matcher.Match(terms, doc.SearchVector)
		if !ok {
			continue
		}
		ranked = append(ranked, rankedDoc{doc: doc, score: score})
	}
	return ranked, nil
}

func (s *SearchService) toResult(r rankedDoc, terms []string) domain.SearchResult {
	d := r.doc
	return domain.SearchResult{
		DocumentID:       d.DocumentID,
		DocumentType:     d.DocumentType,
		Title:            d.Title,
		HighlightedTitle: s.highlighter.Title(d.Language, d.Title, terms),
		ContentPreview:   s.highlighter.Preview(d.Language, d.Content, terms),
		Language:         d.Language,
		AuthorID:         d.AuthorID,
		AuthorName:       d.AuthorName,
		Status:           d.Status,
		Metadata:         d.Metadata,
		PublishedAt:      d.PublishedAt,
		IndexedAt:        d.IndexedAt,
		UpdatedAt:        d.UpdatedAt,
		RelevanceScore:   r.score,
	}
}

// resolveSort applies defaults. Relevance without a query becomes
// created_at desc.
func resolveSort(sortBy, order string, hasQuery bool) (string, string) {
	if sortBy == "" {
		sortBy = domain.SortRelevance
	}
	if order == "" {
		order = domain.SortDesc
	}
	if sortBy == domain.SortRelevance && !hasQuery {
		return domain.SortCreatedAt, domain.SortDesc
	}
	return sortBy, order
}

// sortRanked orders by the sort key, then published_at desc (missing last),
// then document_id asc.
func sortRanked(docs []rankedDoc, sortBy, order string) {
	slices.SortStableFunc(docs, func(a, b rankedDoc) int {
		var c int
		switch sortBy {
		case domain.SortRelevance:
			c = cmp.Compare(a.score, b.score)
		case domain.SortCreatedAt:
			c = a.doc.IndexedAt.Compare(b.doc.IndexedAt)
		case domain.SortUpdatedAt:
			c = a.doc.UpdatedAt.Compare(b.doc.UpdatedAt)
		case domain.SortTitle:
			c = strings.Compare(strings.ToLower(a.doc.Title), strings.ToLower(b.doc.Title))
		}
		if order == domain.SortDesc {
			c = -c
		}
		if c != 0 {
			return c
		}
		if c = comparePublishedDesc(a.doc.PublishedAt, b.doc.PublishedAt); c != 0 {
			return c
		}
		if c = strings.Compare(a.doc.DocumentID, b.doc.DocumentID); c != 0 {
			return c
		}
		return strings.Compare(string(a.doc.DocumentType), string(b.doc.DocumentType))
	})
}

func comparePublishedDesc(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return b.Compare(*a)
	}
}
