package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/engine"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

func newTestDoc(id string, typ domain.DocumentType, lang string) *domain.Document {
	return &domain.Document{
		DocumentID:   id,
		DocumentType: typ,
		Title:        "Title " + id,
		Content:      "Content " + id,
		Language:     lang,
		Status:       "published",
		Metadata:     map[string]any{"region": "north"},
	}
}

func TestEngine_UpsertKeepsIndexedAt(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	eng := New().WithClock(func() time.Time { return clock })

	first, err := eng.Upsert(ctx, newTestDoc("a1", domain.DocumentTypeArticle, "en"))
	require.NoError(t, err)
	assert.Equal(t, clock, first.IndexedAt)

	clock = clock.Add(time.Hour)
	doc := newTestDoc("a1", domain.DocumentTypeArticle, "en")
	doc.Title = "Changed"
	second, err := eng.Upsert(ctx, doc)
	require.NoError(t, err)

	assert.Equal(t, first.IndexedAt, second.IndexedAt)
	assert.Equal(t, clock, second.UpdatedAt)
	assert.Equal(t, 1, eng.Len())

	got, err := eng.Get(ctx, doc.Key())
	require.NoError(t, err)
	assert.Equal(t, "Changed", got.Title)
}

func TestEngine_SameIDDifferentTypes(t *testing.T) {
	ctx := context.Background()
	eng := New()

	_, err := eng.Upsert(ctx, newTestDoc("x", domain.DocumentTypeArticle, "en"))
	require.NoError(t, err)
	_, err = eng.Upsert(ctx, newTestDoc("x", domain.DocumentTypeProject, "en"))
	require.NoError(t, err)
	assert.Equal(t, 2, eng.Len())
}

func TestEngine_GetMissing(t *testing.T) {
	_, err := New().Get(context.Background(), domain.DocKey{ID: "nope", Type: domain.DocumentTypeArticle})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestEngine_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	eng := New()
	doc := newTestDoc("a1", domain.DocumentTypeArticle, "en")
	_, err := eng.Upsert(ctx, doc)
	require.NoError(t, err)

	require.NoError(t, eng.Delete(ctx, doc.Key()))
	require.NoError(t, eng.Delete(ctx, doc.Key()))
	assert.Zero(t, eng.Len())
}

func TestEngine_FindFiltersAndLimit(t *testing.T) {
	ctx := context.Background()
	eng := New()
	for _, d := range []*domain.Document{
		newTestDoc("a1", domain.DocumentTypeArticle, "en"),
		newTestDoc("a2", domain.DocumentTypeArticle, "es"),
		newTestDoc("p1", domain.DocumentTypeProject, "en"),
	} {
		_, err := eng.Upsert(ctx, d)
		require.NoError(t, err)
	}

	docs, err := eng.Find(ctx, engine.Query{Filters: domain.Filters{
		DocumentTypes: []domain.DocumentType{domain.DocumentTypeArticle},
		Language:      "en",
	}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a1", docs[0].DocumentID)

	docs, err = eng.Find(ctx, engine.Query{Filters: domain.Filters{Metadata: map[string]string{"region": "north"}}, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestEngine_FindNarrowsByTermsBeforeLimit(t *testing.T) {
	ctx := context.Background()
	eng := New()
	for _, v := range []struct {
		id    string
		title []string
	}{
		{"a1", []string{"alpha", "report"}},
		{"a2", []string{"beta", "report"}},
		{"a3", []string{"crossing", "zebra"}},
	} {
		d := newTestDoc(v.id, domain.DocumentTypeArticle, "en")
		d.SearchVector = domain.SearchVector{Title: v.title}
		_, err := eng.Upsert(ctx, d)
		require.NoError(t, err)
	}

	docs, err := eng.Find(ctx, engine.Query{Terms: []string{"zebra"}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a3", docs[0].DocumentID)

	docs, err = eng.Find(ctx, engine.Query{Terms: []string{"rep", "beta"}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a2", docs[0].DocumentID)
}

func TestEngine_DeleteAll(t *testing.T) {
	ctx := context.Background()
	eng := New()
	_, _ = eng.Upsert(ctx, newTestDoc("a1", domain.DocumentTypeArticle, "en"))
	_, _ = eng.Upsert(ctx, newTestDoc("a2", domain.DocumentTypeArticle, "en"))

	n, err := eng.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, eng.Len())
}
