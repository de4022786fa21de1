package elasticsearch_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/engine"
	esengine "github.com/utafrali/contentsearch/internal/engine/elasticsearch"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine skips unless ELASTICSEARCH_URL is set.
func newTestEngine(t *testing.T) *esengine.Engine {
	t.Helper()

	esURL := os.Getenv("ELASTICSEARCH_URL")
	if esURL == "" {
		t.Skip("ELASTICSEARCH_URL not set, skipping Elasticsearch integration tests")
	}

	indexName := fmt.Sprintf("test_content_documents_%d", time.Now().UnixNano())
	eng, err := esengine.New(esURL, indexName, testLogger())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = eng.DeleteIndex(context.Background())
	})
	return eng
}

func newTestDoc(id string, terms ...string) *domain.Document {
	return &domain.Document{
		DocumentID:   id,
		DocumentType: domain.DocumentTypeArticle,
		Title:        "Title " + id,
		Content:      "Content",
		Language:     "en",
		Status:       "published",
		Metadata:     map[string]any{"region": "north"},
		SearchVector: domain.SearchVector{Title: terms},
	}
}

func TestIntegration_UpsertGetDelete(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	first, err := eng.Upsert(ctx, newTestDoc("a1", "water"))
	require.NoError(t, err)

	second, err := eng.Upsert(ctx, newTestDoc("a1", "water"))
	require.NoError(t, err)
	assert.True(t, first.IndexedAt.Equal(second.IndexedAt))

	got, err := eng.Get(ctx, first.Key())
	require.NoError(t, err)
	assert.Equal(t, "Title a1", got.Title)

	require.NoError(t, eng.Delete(ctx, first.Key()))
	require.NoError(t, eng.Delete(ctx, first.Key()))

	_, err = eng.Get(ctx, first.Key())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIntegration_FindByPrefixAndFilters(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	_, err := eng.Upsert(ctx, newTestDoc("a1", "water", "clean"))
	require.NoError(t, err)
	_, err = eng.Upsert(ctx, newTestDoc("a2", "fire"))
	require.NoError(t, err)

	docs, err := eng.Find(ctx, engine.Query{Terms: []string{"wat"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a1", docs[0].DocumentID)

	docs, err = eng.Find(ctx, engine.Query{Filters: domain.Filters{Metadata: map[string]string{"region": "north"}}})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	n, err := eng.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
