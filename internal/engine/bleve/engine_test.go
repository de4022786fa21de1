package bleve

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/engine"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := New("", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func newTestDoc(id string, typ domain.DocumentType, titleTerms ...string) *domain.Document {
	published := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	return &domain.Document{
		DocumentID:   id,
		DocumentType: typ,
		Title:        "Title " + id,
		Content:      "Content " + id,
		Language:     "en",
		AuthorName:   "Ana Lima",
		Status:       "published",
		Metadata:     map[string]any{"region": "north", "year": float64(2024)},
		PublishedAt:  &published,
		SearchVector: domain.SearchVector{Title: titleTerms},
	}
}

func seed(t *testing.T, eng *Engine, docs ...*domain.Document) {
	t.Helper()
	for _, d := range docs {
		_, err := eng.Upsert(context.Background(), d)
		require.NoError(t, err)
	}
}

func keys(docs []domain.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Key().String()
	}
	return out
}

func TestEngine_UpsertKeepsIndexedAt(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	eng.now = func() time.Time { return clock }

	first, err := eng.Upsert(ctx, newTestDoc("a1", domain.DocumentTypeArticle, "water"))
	require.NoError(t, err)

	clock = clock.Add(time.Minute)
	second, err := eng.Upsert(ctx, newTestDoc("a1", domain.DocumentTypeArticle, "fire"))
	require.NoError(t, err)
	assert.True(t, first.IndexedAt.Equal(second.IndexedAt))
	assert.True(t, clock.Equal(second.UpdatedAt))

	got, err := eng.Get(ctx, second.Key())
	require.NoError(t, err)
	assert.Equal(t, []string{"fire"}, got.SearchVector.Title)
	assert.Equal(t, "north", got.Metadata["region"])

	docs, err := eng.Find(ctx, engine.Query{Terms: []string{"wat"}})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestEngine_FindPrefixTerms(t *testing.T) {
	eng := newTestEngine(t)
	seed(t, eng,
		newTestDoc("a1", domain.DocumentTypeArticle, "clean", "water"),
		newTestDoc("a2", domain.DocumentTypeArticle, "water"),
		newTestDoc("p1", domain.DocumentTypeProject, "fire"),
	)

	docs, err := eng.Find(context.Background(), engine.Query{Terms: []string{"wat", "cle"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"article/a1"}, keys(docs))

	docs, err = eng.Find(context.Background(), engine.Query{Terms: []string{"wat"}, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestEngine_FindFilters(t *testing.T) {
	eng := newTestEngine(t)
	other := newTestDoc("a2", domain.DocumentTypeArticle)
	other.Status = "draft"
	other.Metadata = map[string]any{"region": "south"}
	seed(t, eng,
		newTestDoc("a1", domain.DocumentTypeArticle),
		other,
		newTestDoc("p1", domain.DocumentTypeProject),
	)
	ctx := context.Background()

	docs, err := eng.Find(ctx, engine.Query{Filters: domain.Filters{
		DocumentTypes: []domain.DocumentType{domain.DocumentTypeArticle},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"article/a1", "article/a2"}, keys(docs))

	docs, err = eng.Find(ctx, engine.Query{Filters: domain.Filters{Status: "draft"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"article/a2"}, keys(docs))

	docs, err = eng.Find(ctx, engine.Query{Filters: domain.Filters{Metadata: map[string]string{"region": "north", "year": "2024"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"article/a1", "project/p1"}, keys(docs))

	after := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	docs, err = eng.Find(ctx, engine.Query{Filters: domain.Filters{PublishedFrom: &after}})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestEngine_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)
	seed(t, eng,
		newTestDoc("a1", domain.DocumentTypeArticle),
		newTestDoc("a2", domain.DocumentTypeArticle),
	)

	key := domain.DocKey{ID: "a1", Type: domain.DocumentTypeArticle}
	require.NoError(t, eng.Delete(ctx, key))
	require.NoError(t, eng.Delete(ctx, key))

	_, err := eng.Get(ctx, key)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	n, err := eng.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err := eng.Find(ctx, engine.Query{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestEngine_ReopensOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.bleve")
	eng, err := New(path, testLogger())
	require.NoError(t, err)
	seed(t, eng, newTestDoc("a1", domain.DocumentTypeArticle, "water"))
	require.NoError(t, eng.Close())

	eng, err = New(path, testLogger())
	require.NoError(t, err)
	defer eng.Close()

	docs, err := eng.Find(context.Background(), engine.Query{Terms: []string{"water"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"article/a1"}, keys(docs))
}

func TestEngine_ClosedRejectsWrites(t *testing.T) {
	eng, err := New("", testLogger())
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	_, err = eng.Upsert(context.Background(), newTestDoc("a1", domain.DocumentTypeArticle))
	assert.Error(t, err)
	assert.Error(t, eng.Ping(context.Background()))
}
