package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

func TestParseFilters_Valid(t *testing.T) {
	f, err := ParseFilters(map[string]any{
		"document_types": []any{"article", "project"},
		"language":       "EN",
		"author_name":    "Ana",
		"status":         "published",
		"published_from": "2024-01-01",
		"published_to":   "2024-12-31T23:59:59Z",
		"metadata":       map[string]any{"category": "water", "budget": float64(1500)},
	})
	require.NoError(t, err)

	assert.Equal(t, []DocumentType{DocumentTypeArticle, DocumentTypeProject}, f.DocumentTypes)
	assert.Equal(t, "en", f.Language)
	assert.Equal(t, "1500", f.Metadata["budget"])
	require.NotNil(t, f.PublishedFrom)
	assert.Equal(t, 2024, f.PublishedFrom.Year())
}

func TestParseFilters_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		raw   map[string]any
		field string
	}{
		{"unknown key", map[string]any{"colour": "red"}, "filters.colour"},
		{"unknown type", map[string]any{"document_type": "video"}, "filters.document_type"},
		{"non-string language", map[string]any{"language": 3.0}, "filters.language"},
		{"bad date", map[string]any{"published_from": "yesterday"}, "filters.published_from"},
		{"nested metadata", map[string]any{"metadata": map[string]any{"a": []any{1.0}}}, "filters.metadata.a"},
		{"inverted range", map[string]any{"published_from": "2024-02-01", "published_to": "2024-01-01"}, "filters.published_from"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilters(tt.raw)
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
}

func TestFilters_Match(t *testing.T) {
	published := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	doc := &Document{
		DocumentID:   "a1",
		DocumentType: DocumentTypeArticle,
		Language:     "en",
		AuthorName:   "Ana",
		Status:       "published",
		Metadata:     map[string]any{"category": "water"},
		PublishedAt:  &published,
	}

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, Filters{}.Match(doc))
	assert.True(t, Filters{DocumentTypes: []DocumentType{DocumentTypeProject, DocumentTypeArticle}}.Match(doc))
	assert.False(t, Filters{DocumentTypes: []DocumentType{DocumentTypeProject}}.Match(doc))
	assert.True(t, Filters{Language: "EN"}.Match(doc))
	assert.True(t, Filters{PublishedFrom: &from}.Match(doc))
	assert.False(t, Filters{PublishedTo: &to}.Match(doc))
	assert.True(t, Filters{Metadata: map[string]string{"category": "water"}}.Match(doc))
	assert.False(t, Filters{Metadata: map[string]string{"category": "food"}}.Match(doc))

	doc.PublishedAt = nil
	assert.False(t, Filters{PublishedFrom: &from}.Match(doc))
}

func TestFilters_Without(t *testing.T) {
	f := Filters{
		DocumentTypes: []DocumentType{DocumentTypeArticle},
		Language:      "en",
		AuthorID:      "u1",
		AuthorName:    "Ana",
		Status:        "draft",
	}

	assert.Nil(t, f.Without(FacetDocumentTypes).DocumentTypes)
	assert.Empty(t, f.Without(FacetLanguages).Language)
	authorless := f.Without(FacetAuthors)
	assert.Empty(t, authorless.AuthorID)
	assert.Empty(t, authorless.AuthorName)
	assert.Equal(t, "en", authorless.Language)
	assert.Empty(t, f.Without(FacetStatuses).Status)
	assert.Equal(t, "draft", f.Status)
}

func TestFilters_Snapshot(t *testing.T) {
	snap := Filters{DocumentTypes: []DocumentType{DocumentTypeProject, DocumentTypeArticle}, Status: "x"}.Snapshot()
	assert.Equal(t, []string{"article", "project"}, snap["document_types"])
	assert.Equal(t, "x", snap["status"])
	assert.Empty(t, Filters{}.Snapshot())
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Social Post", TitleCase("social_post"))
	assert.Equal(t, "In Review", TitleCase("in REVIEW"))
	assert.Equal(t, "Évènement", TitleCase("évènement"))
	assert.Equal(t, "", TitleCase(""))
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "clean water", NormalizeText("  Clean \t  WATER "))
	assert.Equal(t, "", NormalizeText("   "))
}

func TestLanguageLabel(t *testing.T) {
	assert.Equal(t, "Portuguese", LanguageLabel("pt"))
	assert.Equal(t, "SW", LanguageLabel("sw"))
}

func TestIndexJob_Transitions(t *testing.T) {
	now := time.Now().UTC()
	job := NewIndexJob(JobTypeBulk, "api", 4, now)
	assert.Equal(t, JobStatusPending, job.Status)

	require.NoError(t, job.Start(now))
	assert.ErrorIs(t, job.Start(now), ErrInvalidTransition)

	job.DocumentsProcessed = 2
	job.DocumentsFailed = 1
	assert.InDelta(t, 0.75, job.Progress(), 1e-9)

	require.NoError(t, job.Complete(now))
	require.NotNil(t, job.CompletedAt)
	assert.ErrorIs(t, job.Fail(now, "late"), ErrInvalidTransition)
	assert.Equal(t, JobStatusCompleted, job.Status)
}

func TestIndexJob_FailFromPending(t *testing.T) {
	job := NewIndexJob(JobTypeFullReindex, "content", 0, time.Now())
	require.NoError(t, job.Fail(time.Now(), "upstream down"))
	assert.Equal(t, "upstream down", job.ErrorMessage)
	assert.Equal(t, 1.0, job.Progress())
	assert.ErrorIs(t, job.Complete(time.Now()), ErrInvalidTransition)
}

func TestIndexJob_CloneIsDeep(t *testing.T) {
	now := time.Now()
	job := NewIndexJob(JobTypeBulk, "", 1, now)
	require.NoError(t, job.Start(now))
	job.Errors = append(job.Errors, DocumentError{DocumentID: "a"})

	c := job.Clone()
	c.Errors[0].DocumentID = "b"
	*c.StartedAt = now.Add(time.Hour)

	assert.Equal(t, "a", job.Errors[0].DocumentID)
	assert.Equal(t, now, *job.StartedAt)
}

func TestDocumentType_Label(t *testing.T) {
	assert.Equal(t, "Notification", DocumentTypeNotification.Label())
	assert.True(t, DocumentTypePerson.IsValid())
	assert.False(t, DocumentType("video").IsValid())
}

func TestSearchVector_HasPrefix(t *testing.T) {
	v := SearchVector{
		Title:   []string{"crossing", "zebra"},
		Content: []string{"road"},
		Author:  []string{"lima"},
	}
	assert.True(t, v.HasPrefix("zeb"))
	assert.True(t, v.HasPrefix("road"))
	assert.True(t, v.HasPrefix("li"))
	assert.False(t, v.HasPrefix("zebras"))
	assert.False(t, SearchVector{}.HasPrefix("a"))
}
