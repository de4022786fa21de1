package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/utafrali/contentsearch/internal/cache"
	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/engine"
	"github.com/utafrali/contentsearch/internal/engine/memory"
	"github.com/utafrali/contentsearch/internal/ranking"
	memrepo "github.com/utafrali/contentsearch/internal/repository/memory"
	"github.com/utafrali/contentsearch/internal/upstream"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

var analyzers = ranking.MustAnalyzers()

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testClock hands out strictly increasing timestamps.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type harness struct {
	store       engine.Store
	mem         *memory.Engine
	logs        *memrepo.QueryLogRepository
	suggestions *memrepo.SuggestionRepository
	jobRepo     *memrepo.JobRepository
	metrics     *Metrics
	recorder    *Recorder
	tracker     *JobTracker

	search       *SearchService
	facets       *FacetService
	autocomplete *AutocompleteService
	indexing     *IndexingService
	analytics    *AnalyticsService
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	store    func(*memory.Engine) engine.Store
	fetcher  upstream.Fetcher
	observer JobObserver
	cache    cache.SuggestionCache
	search   SearchConfig
}

func withStore(wrap func(*memory.Engine) engine.Store) harnessOption {
	return func(c *harnessConfig) { c.store = wrap }
}

func withFetcher(f upstream.Fetcher) harnessOption {
	return func(c *harnessConfig) { c.fetcher = f }
}

func withObserver(o JobObserver) harnessOption {
	return func(c *harnessConfig) { c.observer = o }
}

func withMaxCandidates(n int) harnessOption {
	return func(c *harnessConfig) { c.search.MaxCandidates = n }
}

func withCache(sc cache.SuggestionCache) harnessOption {
	return func(c *harnessConfig) { c.cache = sc }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{
		store:  func(e *memory.Engine) engine.Store { return e },
		search: DefaultSearchConfig(),
	}
	for _, o := range opts {
		o(&cfg)
	}

	clock := newTestClock()
	logger := newTestLogger()
	h := &harness{
		mem:         memory.New().WithClock(clock.Now),
		logs:        memrepo.NewQueryLogRepository(),
		suggestions: memrepo.NewSuggestionRepository(nil),
		jobRepo:     memrepo.NewJobRepository(),
		metrics:     NewMetrics(nil),
	}
	h.store = cfg.store(h.mem)

	h.autocomplete = NewAutocompleteService(h.suggestions, h.logs, cfg.cache, DefaultAutocompleteConfig(), h.metrics, logger)
	h.autocomplete.now = clock.Now
	h.recorder = NewRecorder(h.logs, h.autocomplete, h.metrics, logger)
	h.search = NewSearchService(h.store, analyzers, h.logs, h.recorder, cfg.search, h.metrics, logger)
	h.search.now = clock.Now
	h.facets = NewFacetService(h.store, analyzers, cfg.search)
	h.tracker = NewJobTracker(h.jobRepo, cfg.observer, logger)
	h.tracker.now = clock.Now

	var err error
	h.indexing, err = NewIndexingService(h.store, analyzers, h.tracker, cfg.fetcher, 4, h.metrics, logger)
	require.NoError(t, err)
	t.Cleanup(h.indexing.Close)

	h.analytics = NewAnalyticsService(h.logs)
	return h
}

func (h *harness) index(t *testing.T, docs ...domain.Document) {
	t.Helper()
	for _, d := range docs {
		_, err := h.indexing.IndexDocument(context.Background(), d)
		require.NoError(t, err)
	}
}

func article(id, title, content string) domain.Document {
	return domain.Document{
		DocumentID:   id,
		DocumentType: domain.DocumentTypeArticle,
		Title:        title,
		Content:      content,
		Language:     "en",
	}
}

// flakyStore fails writes or reads for selected documents.
type flakyStore struct {
	engine.Store
	failUpsert map[string]error
	failFind   error
}

func (f *flakyStore) Upsert(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	if err, ok := f.failUpsert[doc.DocumentID]; ok {
		return nil, err
	}
	return f.Store.Upsert(ctx, doc)
}

func (f *flakyStore) Find(ctx context.Context, q engine.Query) ([]domain.Document, error) {
	if f.failFind != nil {
		return nil, f.failFind
	}
	return f.Store.Find(ctx, q)
}

func storeDown() error {
	return apperrors.StoreUnavailable(io.ErrUnexpectedEOF)
}

// fakeFetcher serves canned documents per service.
type fakeFetcher struct {
	docs    map[string][]domain.Document
	skipped map[string][]domain.DocumentError
	err     error
	failFor string
}

func (f *fakeFetcher) Services() []string { return []string{"content", "projects"} }

func (f *fakeFetcher) DocumentTypes(service string) ([]domain.DocumentType, error) {
	switch service {
	case "content":
		return []domain.DocumentType{domain.DocumentTypeArticle}, nil
	case "projects":
		return []domain.DocumentType{domain.DocumentTypeProject}, nil
	}
	return nil, apperrors.FieldError("service", "unknown service")
}

func (f *fakeFetcher) Fetch(_ context.Context, service string) (*upstream.FetchResult, error) {
	if f.err != nil && (f.failFor == "" || f.failFor == service) {
		return nil, f.err
	}
	return &upstream.FetchResult{Documents: f.docs[service], Skipped: f.skipped[service]}, nil
}

// recordingObserver collects finished jobs.
type recordingObserver struct {
	mu   sync.Mutex
	jobs []*domain.IndexJob
}

func (o *recordingObserver) JobFinished(_ context.Context, job *domain.IndexJob) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs = append(o.jobs, job)
}

func (o *recordingObserver) finished() []*domain.IndexJob {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*domain.IndexJob(nil), o.jobs...)
}
