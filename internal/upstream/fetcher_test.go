package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/contentsearch/internal/domain"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFetcher(t *testing.T, service string, handler http.Handler) *HTTPFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPFetcher(Config{
		BaseURLs: map[string]string{service: srv.URL},
		PageSize: 2,
	}, testLogger())
}

func writePage(w http.ResponseWriter, totalPages int, items ...map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "total_pages": totalPages})
}

func TestHTTPFetcher_PaginatesAllPages(t *testing.T) {
	var calls atomic.Int32
	f := newFetcher(t, "content", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/v1/articles", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page_size"))
		n, _ := strconv.Atoi(r.URL.Query().Get("page"))
		writePage(w, 3, map[string]any{
			"id":          fmt.Sprintf("a%d", n),
			"title":       fmt.Sprintf("Article %d", n),
			"content":     "body",
			"tags":        []string{"water"},
			"author_name": "Ana",
		})
	}))

	res, err := f.Fetch(context.Background(), "content")
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	docs := res.Documents
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, docs, 3)

	// Page order is preserved.
	assert.Equal(t, "a1", docs[0].DocumentID)
	assert.Equal(t, "a3", docs[2].DocumentID)
	assert.Equal(t, domain.DocumentTypeArticle, docs[0].DocumentType)
	assert.Equal(t, "en", docs[0].Language)
	assert.Equal(t, "Ana", docs[0].AuthorName)
	assert.Equal(t, []string{"water"}, docs[0].Metadata["tags"])
	assert.NotContains(t, docs[0].Metadata, "category")
}

func TestHTTPFetcher_ReportsUndecodableItems(t *testing.T) {
	f := newFetcher(t, "projects", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(w, 1,
			map[string]any{"id": "p1", "name": "Well", "description": "Digging wells", "budget": 1200.5},
			map[string]any{"id": 42},
			map[string]any{"name": "no id"},
		)
	}))

	res, err := f.Fetch(context.Background(), "projects")
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "Well", res.Documents[0].Title)
	assert.Equal(t, 1200.5, res.Documents[0].Metadata["budget"])

	require.Len(t, res.Skipped, 2)
	assert.Equal(t, "42", res.Skipped[0].DocumentID)
	assert.Equal(t, domain.DocumentTypeProject, res.Skipped[0].DocumentType)
	assert.NotEmpty(t, res.Skipped[0].Error)
	assert.Empty(t, res.Skipped[1].DocumentID)
	assert.Equal(t, "item has no id", res.Skipped[1].Error)
}

func TestHTTPFetcher_ServerErrorIsUpstreamUnavailable(t *testing.T) {
	f := newFetcher(t, "people", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := f.Fetch(context.Background(), "people")
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
}

func TestHTTPFetcher_ClientErrorIsUpstreamUnavailable(t *testing.T) {
	f := newFetcher(t, "people", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))

	_, err := f.Fetch(context.Background(), "people")
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
}

func TestHTTPFetcher_LaterPageFailureFailsFetch(t *testing.T) {
	f := newFetcher(t, "notifications", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		writePage(w, 2, map[string]any{"id": "n1", "title": "Hi", "message": "Hello"})
	}))

	_, err := f.Fetch(context.Background(), "notifications")
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
}

func TestHTTPFetcher_UnknownService(t *testing.T) {
	f := NewHTTPFetcher(Config{BaseURLs: map[string]string{"content": "http://localhost:1"}}, testLogger())

	_, err := f.Fetch(context.Background(), "billing")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.DocumentTypes("social")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	types, err := f.DocumentTypes("content")
	require.NoError(t, err)
	assert.Equal(t, []domain.DocumentType{domain.DocumentTypeArticle}, types)
	assert.Equal(t, []string{"content"}, f.Services())
}

func TestConverters(t *testing.T) {
	t.Run("partner content combines fields", func(t *testing.T) {
		doc, err := convertPartner(json.RawMessage(`{"id":"x","name":"Acme","description":"We help","mission":"clean water","location":"Lima","status":"active"}`))
		require.NoError(t, err)
		assert.Equal(t, "We help clean water Lima", doc.Content)
		assert.Equal(t, "Lima", doc.Metadata["location"])
	})

	t.Run("social title is first 100 runes", func(t *testing.T) {
		long := ""
		for range 120 {
			long += "é"
		}
		raw, _ := json.Marshal(map[string]any{"id": "s1", "content": long, "platform": "x"})
		doc, err := convertSocialPost(raw)
		require.NoError(t, err)
		assert.Equal(t, 100, len([]rune(doc.Title)))
		assert.Equal(t, long, doc.Content)
	})

	t.Run("person bio becomes content", func(t *testing.T) {
		doc, err := convertPerson(json.RawMessage(`{"id":"u1","name":"Ana Diaz","bio":"Hydrologist","language":"es"}`))
		require.NoError(t, err)
		assert.Equal(t, "Ana Diaz", doc.Title)
		assert.Equal(t, "Hydrologist", doc.Content)
		assert.Equal(t, "es", doc.Language)
	})

	t.Run("notification priority may be numeric", func(t *testing.T) {
		doc, err := convertNotification(json.RawMessage(`{"id":"n1","title":"T","message":"M","priority":2}`))
		require.NoError(t, err)
		assert.Equal(t, float64(2), doc.Metadata["priority"])
	})
}
