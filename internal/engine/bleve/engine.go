// Package bleve is an embedded document store backed by a bleve index.
// Documents are kept whole in the index's internal key space; the mapped
// fields only serve filtering and term prefix lookups.
package bleve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/engine"
)

// Indexed field names.
const (
	fieldType          = "document_type"
	fieldLanguage      = "language"
	fieldAuthorID      = "author_id"
	fieldAuthorName    = "author_name"
	fieldStatus        = "status"
	fieldPublishedAt   = "published_at"
	fieldMetadataPairs = "metadata_pairs"
	fieldVectorTitle   = "vector_title"
	fieldVectorContent = "vector_content"
	fieldVectorAuthor  = "vector_author"
)

var errClosed = errors.New("bleve: index is closed")

// Engine implements engine.Store on a bleve index.
type Engine struct {
	mu     sync.Mutex // serializes writes
	index  bleve.Index
	path   string
	logger *slog.Logger
	now    func() time.Time
	closed bool
}

var _ engine.Store = (*Engine)(nil)

// New opens the index at path, creating it when missing. An empty path
// creates an in-memory index.
func New(path string, logger *slog.Logger) (*Engine, error) {
	im := buildIndexMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("bleve: create directory: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, im)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("bleve: open index: %w", err)
	}

	logger.Info("bleve index ready", slog.String("path", path))
	return &Engine{
		index:  idx,
		path:   path,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func buildIndexMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	dm := bleve.NewDocumentMapping()
	dm.Dynamic = false

	keyword := func() *mapping.FieldMapping {
		fm := bleve.NewKeywordFieldMapping()
		fm.Store = false
		fm.IncludeInAll = false
		return fm
	}
	for _, f := range []string{
		fieldType, fieldLanguage, fieldAuthorID, fieldAuthorName, fieldStatus,
		fieldMetadataPairs, fieldVectorTitle, fieldVectorContent, fieldVectorAuthor,
	} {
		dm.AddFieldMappingsAt(f, keyword())
	}

	published := bleve.NewDateTimeFieldMapping()
	published.Store = false
	published.IncludeInAll = false
	dm.AddFieldMappingsAt(fieldPublishedAt, published)

	im.DefaultMapping = dm
	return im
}

func fields(doc *domain.Document) map[string]any {
	f := map[string]any{
		fieldType:          string(doc.DocumentType),
		fieldLanguage:      doc.Language,
		fieldAuthorID:      doc.AuthorID,
		fieldAuthorName:    doc.AuthorName,
		fieldStatus:        doc.Status,
		fieldMetadataPairs: engine.MetadataPairs(doc),
		fieldVectorTitle:   doc.SearchVector.Title,
		fieldVectorContent: doc.SearchVector.Content,
		fieldVectorAuthor:  doc.SearchVector.Author,
	}
	if doc.PublishedAt != nil {
		f[fieldPublishedAt] = *doc.PublishedAt
	}
	return f
}

// Upsert implements engine.Store.
func (e *Engine) Upsert(_ context.Context, doc *domain.Document) (*domain.Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errClosed
	}

	key := doc.Key().String()
	prev, err := e.load(key)
	if err != nil {
		return nil, err
	}

	stored := *doc
	engine.Stamp(&stored, prev, e.now())
	raw, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("bleve: marshal document: %w", err)
	}

	batch := e.index.NewBatch()
	if err := batch.Index(key, fields(&stored)); err != nil {
		return nil, fmt.Errorf("bleve: index %s: %w", key, err)
	}
	batch.SetInternal([]byte(key), raw)
	if err := e.index.Batch(batch); err != nil {
		return nil, fmt.Errorf("bleve: batch %s: %w", key, err)
	}
	return &stored, nil
}

func (e *Engine) load(key string) (*domain.Document, error) {
	raw, err := e.index.GetInternal([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("bleve: read %s: %w", key, err)
	}
	if raw == nil {
		return nil, nil
	}
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("bleve: decode %s: %w", key, err)
	}
	return &doc, nil
}

// Get implements engine.Store.
func (e *Engine) Get(_ context.Context, key domain.DocKey) (*domain.Document, error) {
	doc, err := e.load(key.String())
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, engine.NotFound(key)
	}
	return doc, nil
}

// Delete implements engine.Store.
func (e *Engine) Delete(_ context.Context, key domain.DocKey) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}

	id := key.String()
	batch := e.index.NewBatch()
	batch.Delete(id)
	batch.DeleteInternal([]byte(id))
	if err := e.index.Batch(batch); err != nil {
		return fmt.Errorf("bleve: delete %s: %w", id, err)
	}
	return nil
}

// DeleteAll implements engine.Store.
func (e *Engine) DeleteAll(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, errClosed
	}

	ids, err := e.ids(ctx, bleve.NewMatchAllQuery(), 0)
	if err != nil {
		return 0, err
	}
	batch := e.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
		batch.DeleteInternal([]byte(id))
	}
	if err := e.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("bleve: clear: %w", err)
	}
	e.logger.InfoContext(ctx, "bleve index cleared", slog.Int("deleted", len(ids)))
	return len(ids), nil
}

// Find implements engine.Store.
func (e *Engine) Find(ctx context.Context, q engine.Query) ([]domain.Document, error) {
	ids, err := e.ids(ctx, buildQuery(q), q.Limit)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := e.load(id)
		if err != nil {
			return nil, err
		}
		// A concurrent delete may have removed the body after the search.
		if doc != nil {
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

func (e *Engine) ids(ctx context.Context, q query.Query, limit int) ([]string, error) {
	count, err := e.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("bleve: doc count: %w", err)
	}
	size := int(count)
	if limit > 0 && limit < size {
		size = limit
	}
	if size == 0 {
		return []string{}, nil
	}

	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	req.SortBy([]string{"_id"})
	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve: search: %w", err)
	}

	ids := make([]string, len(res.Hits))
	for i, hit := range res.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

func buildQuery(q engine.Query) query.Query {
	var must []query.Query

	for _, t := range q.Terms {
		var should []query.Query
		for _, f := range []string{fieldVectorTitle, fieldVectorContent, fieldVectorAuthor} {
			pq := bleve.NewPrefixQuery(t)
			pq.SetField(f)
			should = append(should, pq)
		}
		must = append(must, bleve.NewDisjunctionQuery(should...))
	}

	f := q.Filters
	if len(f.DocumentTypes) > 0 {
		var types []query.Query
		for _, t := range f.DocumentTypes {
			types = append(types, termQuery(fieldType, string(t)))
		}
		must = append(must, bleve.NewDisjunctionQuery(types...))
	}
	for field, value := range map[string]string{
		fieldLanguage:   f.Language,
		fieldAuthorID:   f.AuthorID,
		fieldAuthorName: f.AuthorName,
		fieldStatus:     f.Status,
	} {
		if value != "" {
			must = append(must, termQuery(field, value))
		}
	}
	if f.PublishedFrom != nil || f.PublishedTo != nil {
		var start, end time.Time
		if f.PublishedFrom != nil {
			start = *f.PublishedFrom
		}
		if f.PublishedTo != nil {
			end = *f.PublishedTo
		}
		inclusive := true
		dq := bleve.NewDateRangeInclusiveQuery(start, end, &inclusive, &inclusive)
		dq.SetField(fieldPublishedAt)
		must = append(must, dq)
	}
	for k, v := range f.Metadata {
		must = append(must, termQuery(fieldMetadataPairs, k+"="+v))
	}

	if len(must) == 0 {
		return bleve.NewMatchAllQuery()
	}
	return bleve.NewConjunctionQuery(must...)
}

func termQuery(field, value string) query.Query {
	tq := bleve.NewTermQuery(value)
	tq.SetField(field)
	return tq
}

// Ping implements engine.Store.
func (e *Engine) Ping(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	_, err := e.index.DocCount()
	return err
}

// Close implements engine.Store.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.index.Close()
}
