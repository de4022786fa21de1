package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/engine"
	"github.com/utafrali/contentsearch/internal/engine/memory"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

func TestSearch_RanksTitleMatchesFirst(t *testing.T) {
	h := newHarness(t)
	h.index(t,
		article("a1", "Water management", "Rivers and lakes in the valley"),
		article("a2", "Valley report", "Clean water for every village"),
		article("a3", "Unrelated", "Nothing to see here"),
	)

	resp, err := h.search.Search(context.Background(), domain.SearchRequest{Query: "water"}, "")
	require.NoError(t, err)

	require.Equal(t, 2, resp.Total)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "a1", resp.Results[0].DocumentID)
	assert.InDelta(t, 3.0/4.5, resp.Results[0].RelevanceScore, 1e-9)
	assert.Equal(t, "a2", resp.Results[1].DocumentID)
	assert.InDelta(t, 1.0/4.5, resp.Results[1].RelevanceScore, 1e-9)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.PageSize)
	assert.Equal(t, 1, resp.TotalPages)
	assert.NotEqual(t, uuid.Nil, resp.QueryID)
}

func TestSearch_HighlightsMatches(t *testing.T) {
	h := newHarness(t)
	h.index(t, article("a1", "Water management", "Drinking water & sanitation"))

	resp, err := h.search.Search(context.Background(), domain.SearchRequest{Query: "water"}, "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	assert.Equal(t, "<mark>Water</mark> management", resp.Results[0].HighlightedTitle)
	assert.Equal(t, "Drinking <mark>water</mark> &amp; sanitation", resp.Results[0].ContentPreview)
}

func TestSearch_PageBeyondTotal(t *testing.T) {
	h := newHarness(t)
	h.index(t,
		article("a1", "Solar one", "panels"),
		article("a2", "Solar two", "panels"),
		article("a3", "Solar three", "panels"),
	)

	resp, err := h.search.Search(context.Background(), domain.SearchRequest{Query: "solar", Page: 3, PageSize: 2}, "")
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.TotalPages)
	assert.Equal(t, 3, resp.Page)
	assert.Empty(t, resp.Results)
	assert.NotNil(t, resp.Results)
}

func TestSearch_HugePageReturnsEmptyPage(t *testing.T) {
	h := newHarness(t)
	h.index(t, article("a1", "Alpha report", "quarterly"))

	resp, err := h.search.Search(context.Background(),
		domain.SearchRequest{Query: "alpha", Page: math.MaxInt64 / 50, PageSize: 100}, "")
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 1, resp.TotalPages)
	assert.Empty(t, resp.Results)
}

func TestSearch_CandidateCapAppliesAfterTermMatching(t *testing.T) {
	h := newHarness(t, withMaxCandidates(2))
	h.index(t,
		article("a1", "Alpha report", "quarterly"),
		article("a2", "Beta report", "quarterly"),
		article("a3", "Zebra crossing", "road safety"),
	)

	resp, err := h.search.Search(context.Background(), domain.SearchRequest{Query: "zebra"}, "")
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "a3", resp.Results[0].DocumentID)

	facets, err := h.facets.Facets(context.Background(), FacetRequest{Query: "zebra"})
	require.NoError(t, err)
	assert.Equal(t, 1, facets.Total)
}

func TestSearch_EmptyQueryNewestFirst(t *testing.T) {
	h := newHarness(t)
	h.index(t,
		article("a1", "First", "one"),
		article("a2", "Second", "two"),
		article("a3", "Third", "three"),
	)

	resp, err := h.search.Search(context.Background(), domain.SearchRequest{}, "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	ids := []string{resp.Results[0].DocumentID, resp.Results[1].DocumentID, resp.Results[2].DocumentID}
	assert.Equal(t, []string{"a3", "a2", "a1"}, ids)
	for _, r := range resp.Results {
		assert.Zero(t, r.RelevanceScore)
	}
}

func TestSearch_SortByTitleAscending(t *testing.T) {
	h := newHarness(t)
	h.index(t,
		article("a1", "charlie river", "x"),
		article("a2", "Alpha river", "x"),
		article("a3", "bravo river", "x"),
	)

	resp, err := h.search.Search(context.Background(), domain.SearchRequest{
		Query: "river", SortBy: domain.SortTitle, SortOrder: domain.SortAsc,
	}, "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "a2", resp.Results[0].DocumentID)
	assert.Equal(t, "a3", resp.Results[1].DocumentID)
	assert.Equal(t, "a1", resp.Results[2].DocumentID)
}

func TestSearch_TiesBrokenByPublishedAt(t *testing.T) {
	h := newHarness(t)
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	d1 := article("a1", "Harvest", "grain")
	d1.PublishedAt = &older
	d2 := article("a2", "Harvest", "grain")
	d2.PublishedAt = &newer
	d3 := article("a0", "Harvest", "grain")
	h.index(t, d1, d2, d3)

	resp, err := h.search.Search(context.Background(), domain.SearchRequest{Query: "harvest"}, "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "a2", resp.Results[0].DocumentID)
	assert.Equal(t, "a1", resp.Results[1].DocumentID)
	assert.Equal(t, "a0", resp.Results[2].DocumentID)
}

func TestSearch_FiltersApply(t *testing.T) {
	h := newHarness(t)
	es := article("e1", "Agua limpia", "agua para todos")
	es.Language = "es"
	en := article("a1", "Agua project", "water")
	en.Status = "published"
	h.index(t, es, en)

	resp, err := h.search.Search(context.Background(), domain.SearchRequest{
		Filters: map[string]any{"language": "es"},
	}, "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "e1", resp.Results[0].DocumentID)

	resp, err = h.search.Search(context.Background(), domain.SearchRequest{
		Filters: map[string]any{"status": "published"},
	}, "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a1", resp.Results[0].DocumentID)
}

func TestSearch_ValidationReportsEveryField(t *testing.T) {
	h := newHarness(t)

	_, err := h.search.Search(context.Background(), domain.SearchRequest{
		Filters:  map[string]any{"colour": "red"},
		PageSize: 101,
		SortBy:   "popularity",
	}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "filters.colour")
	assert.Contains(t, appErr.Fields, "page_size")
	assert.Contains(t, appErr.Fields, "sort_by")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.searches.WithLabelValues("invalid")))
}

func TestSearch_StopWordOnlyQueryMatchesNothing(t *testing.T) {
	h := newHarness(t)
	h.index(t, article("a1", "The river", "and the sea"))

	resp, err := h.search.Search(context.Background(), domain.SearchRequest{Query: "the and"}, "")
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Results)
}

func TestSearch_RecordsQueryLog(t *testing.T) {
	h := newHarness(t)
	h.index(t, article("a1", "Water management", "rivers"))

	resp, err := h.search.Search(context.Background(), domain.SearchRequest{
		Query:   "  Water ",
		Filters: map[string]any{"language": "en"},
	}, "user-1")
	require.NoError(t, err)
	h.recorder.Flush()

	require.Equal(t, 1, h.logs.Len())
	var logged *domain.QueryLog
	require.NoError(t, h.logs.Stream(context.Background(), time.Time{}, func(l *domain.QueryLog) error {
		logged = l
		return nil
	}))
	require.NotNil(t, logged)
	assert.Equal(t, resp.QueryID, logged.ID)
	assert.Equal(t, "Water", logged.QueryText)
	assert.Equal(t, "en", logged.Language)
	assert.Equal(t, 1, logged.ResultsCount)
	require.NotNil(t, logged.UserID)
	assert.Equal(t, "user-1", *logged.UserID)
	assert.Equal(t, map[string]any{"language": "en"}, logged.Filters)

	popular, err := h.suggestions.Popular(context.Background(), "en", 10)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, "water", popular[0].Text)
}

func TestSearch_ZeroResultQueryNotPromoted(t *testing.T) {
	h := newHarness(t)
	h.index(t, article("a1", "Water", "rivers"))

	resp, err := h.search.Search(context.Background(), domain.SearchRequest{Query: "volcano"}, "")
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
	h.recorder.Flush()

	assert.Equal(t, 1, h.logs.Len())
	popular, err := h.suggestions.Popular(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, popular)
}

func TestSearchByType_ReplacesTypeFilter(t *testing.T) {
	h := newHarness(t)
	p := article("p1", "Solar farm", "panels")
	p.DocumentType = domain.DocumentTypeProject
	h.index(t, article("a1", "Solar news", "panels"), p)

	resp, err := h.search.SearchByType(context.Background(), domain.DocumentTypeProject, domain.SearchRequest{
		Query:   "solar",
		Filters: map[string]any{"document_type": "article"},
	}, "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "p1", resp.Results[0].DocumentID)
	assert.Equal(t, domain.DocumentTypeProject, resp.Results[0].DocumentType)
}

func TestSearchByType_InvalidType(t *testing.T) {
	h := newHarness(t)
	_, err := h.search.SearchByType(context.Background(), "recipe", domain.SearchRequest{}, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestTrackClick(t *testing.T) {
	h := newHarness(t)
	h.index(t, article("a1", "Water", "rivers"))

	resp, err := h.search.Search(context.Background(), domain.SearchRequest{Query: "water"}, "")
	require.NoError(t, err)
	h.recorder.Flush()

	require.NoError(t, h.search.TrackClick(context.Background(), resp.QueryID, "a1"))

	err = h.search.TrackClick(context.Background(), uuid.New(), "a1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = h.search.TrackClick(context.Background(), resp.QueryID, "  ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSearch_StoreUnavailable(t *testing.T) {
	h := newHarness(t, withStore(func(e *memory.Engine) engine.Store {
		return &flakyStore{Store: e, failFind: storeDown()}
	}))

	_, err := h.search.Search(context.Background(), domain.SearchRequest{Query: "water"}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.searches.WithLabelValues("error")))

	h.recorder.Flush()
	assert.Zero(t, h.logs.Len())
}

func TestResolveSort(t *testing.T) {
	tests := []struct {
		name, sortBy, order string
		hasQuery            bool
		wantBy, wantOrder   string
	}{
		{"defaults with query", "", "", true, domain.SortRelevance, domain.SortDesc},
		{"relevance without query", "", "", false, domain.SortCreatedAt, domain.SortDesc},
		{"explicit title", domain.SortTitle, domain.SortAsc, false, domain.SortTitle, domain.SortAsc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			by, order := resolveSort(tt.sortBy, tt.order, tt.hasQuery)
			assert.Equal(t, tt.wantBy, by)
			assert.Equal(t, tt.wantOrder, order)
		})
	}
}
