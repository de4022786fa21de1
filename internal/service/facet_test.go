package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/contentsearch/internal/domain"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

func facetDoc(id string, docType domain.DocumentType, lang, author, status string) domain.Document {
	d := article(id, "Community garden "+id, "Seeds and soil")
	d.DocumentType = docType
	d.Language = lang
	d.AuthorName = author
	d.Status = status
	return d
}

func seedFacets(t *testing.T, h *harness) {
	t.Helper()
	h.index(t,
		facetDoc("a1", domain.DocumentTypeArticle, "en", "Ana", "published"),
		facetDoc("a2", domain.DocumentTypeArticle, "es", "Ben", "draft"),
		facetDoc("p1", domain.DocumentTypeProject, "en", "Ana", "published"),
		facetDoc("n1", domain.DocumentTypeNotification, "en", "", ""),
	)
}

func TestFacets_IgnoreOwnDimension(t *testing.T) {
	h := newHarness(t)
	seedFacets(t, h)

	facets, err := h.facets.Facets(context.Background(), FacetRequest{
		Filters: map[string]any{"document_type": "article", "language": "en"},
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.FacetValue{
		{Value: "article", Label: "Article", Count: 1},
		{Value: "notification", Label: "Notification", Count: 1},
		{Value: "project", Label: "Project", Count: 1},
	}, facets.DocumentTypes)
	assert.Equal(t, []domain.FacetValue{
		{Value: "en", Label: "English", Count: 1},
		{Value: "es", Label: "Spanish", Count: 1},
	}, facets.Languages)
	assert.Equal(t, []domain.FacetValue{{Value: "Ana", Label: "Ana", Count: 1}}, facets.Authors)
	assert.Equal(t, []domain.FacetValue{{Value: "published", Label: "Published", Count: 1}}, facets.Statuses)
	assert.Equal(t, 1, facets.Total)
}

func TestFacets_QueryNarrowsCounts(t *testing.T) {
	h := newHarness(t)
	seedFacets(t, h)
	h.index(t, facetDoc("s1", domain.DocumentTypeSocialPost, "en", "Cleo", "published"))

	facets, err := h.facets.Facets(context.Background(), FacetRequest{Query: "s1"})
	require.NoError(t, err)

	assert.Equal(t, 1, facets.Total)
	assert.Equal(t, []domain.FacetValue{{Value: "social_post", Label: "Social Post", Count: 1}}, facets.DocumentTypes)
}

func TestFacets_NoFiltersCountsEverything(t *testing.T) {
	h := newHarness(t)
	seedFacets(t, h)

	facets, err := h.facets.Facets(context.Background(), FacetRequest{})
	require.NoError(t, err)

	assert.Equal(t, 4, facets.Total)
	assert.Equal(t, []domain.FacetValue{
		{Value: "en", Label: "English", Count: 3},
		{Value: "es", Label: "Spanish", Count: 1},
	}, facets.Languages)
	// Documents without an author or status contribute no bucket.
	assert.Equal(t, []domain.FacetValue{
		{Value: "Ana", Label: "Ana", Count: 2},
		{Value: "Ben", Label: "Ben", Count: 1},
	}, facets.Authors)
	assert.Len(t, facets.Statuses, 2)
}

func TestFacets_AuthorsCapped(t *testing.T) {
	h := newHarness(t)
	for i := range 25 {
		h.index(t, facetDoc(fmt.Sprintf("a%02d", i), domain.DocumentTypeArticle, "en", fmt.Sprintf("Author %02d", i), ""))
	}

	facets, err := h.facets.Facets(context.Background(), FacetRequest{})
	require.NoError(t, err)
	require.Len(t, facets.Authors, domain.MaxAuthorFacets)
	assert.Equal(t, "Author 00", facets.Authors[0].Value)
	assert.Equal(t, 25, facets.Total)
}

func TestFacets_InvalidFilter(t *testing.T) {
	h := newHarness(t)
	_, err := h.facets.Facets(context.Background(), FacetRequest{Filters: map[string]any{"colour": "red"}})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "filters.colour")
}

func TestFilterOptions(t *testing.T) {
	h := newHarness(t)
	seedFacets(t, h)

	langs, err := h.facets.FilterOptions(context.Background(), domain.FacetLanguages)
	require.NoError(t, err)
	assert.Equal(t, []domain.FacetValue{
		{Value: "en", Label: "English", Count: 3},
		{Value: "es", Label: "Spanish", Count: 1},
	}, langs)

	statuses, err := h.facets.FilterOptions(context.Background(), domain.FacetStatuses)
	require.NoError(t, err)
	assert.Equal(t, []domain.FacetValue{
		{Value: "published", Label: "Published", Count: 2},
		{Value: "draft", Label: "Draft", Count: 1},
	}, statuses)

	_, err = h.facets.FilterOptions(context.Background(), "colours")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestFacetCount(t *testing.T) {
	h := newHarness(t)
	h.index(t,
		facetDoc("c1", domain.DocumentTypeArticle, "en", "Ana", "published"),
		facetDoc("c2", domain.DocumentTypeArticle, "xx", "Ben", "draft"),
		facetDoc("c3", domain.DocumentTypeProject, "en", "Ana", "published"),
		facetDoc("c4", domain.DocumentTypeNotification, "en", "", ""),
	)

	tests := []struct {
		field, value string
		want         int
	}{
		{"", "", 4},
		{"document_type", "article", 2},
		{"language", "en", 3},
		{"language", "xx", 1},
		{"author_name", "Ana", 2},
		{"status", "draft", 1},
		{"status", "archived", 0},
	}
	for _, tc := range tests {
		t.Run(tc.field+"="+tc.value, func(t *testing.T) {
			res, err := h.facets.Count(context.Background(), FacetCountRequest{
				Query:      "garden",
				FacetField: tc.field,
				FacetValue: tc.value,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Count)
			assert.Equal(t, "garden", res.Query)
			assert.Equal(t, tc.field, res.FacetField)
			assert.Equal(t, tc.value, res.FacetValue)
		})
	}

	res, err := h.facets.Count(context.Background(), FacetCountRequest{Query: "c3"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

func TestFacetCount_Validation(t *testing.T) {
	h := newHarness(t)
	seedFacets(t, h)

	for name, req := range map[string]FacetCountRequest{
		"missing query":       {FacetField: "status", FacetValue: "draft"},
		"blank query":         {Query: "   "},
		"unknown field":       {Query: "garden", FacetField: "colour", FacetValue: "red"},
		"field without value": {Query: "garden", FacetField: "status"},
		"bad document type":   {Query: "garden", FacetField: "document_type", FacetValue: "spaceship"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.facets.Count(context.Background(), req)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}
