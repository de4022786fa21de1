package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/engine"
)

// Engine is an in-memory document store. Candidates are produced by a
// filter scan narrowed by prefix matches of the query terms, before any
// limit applies. Thread-safe via sync.RWMutex.
type Engine struct {
	mu   sync.RWMutex
	docs map[domain.DocKey]domain.Document
	now  func() time.Time
}

var _ engine.Store = (*Engine)(nil)

// New creates an empty in-memory store.
func New() *Engine {
	return &Engine{
		docs: make(map[domain.DocKey]domain.Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Upsert implements engine.Store.
func (e *Engine) Upsert(_ context.Context, doc *domain.Document) (*domain.Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stored := *doc
	var prev *domain.Document
	if p, ok := e.docs[doc.Key()]; ok {
		prev = &p
	}
	engine.Stamp(&stored, prev, e.now())
	e.docs[stored.Key()] = stored

	out := stored
	return &out, nil
}

// Get implements engine.Store.
func (e *Engine) Get(_ context.Context, key domain.DocKey) (*domain.Document, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	doc, ok := e.docs[key]
	if !ok {
		return nil, engine.NotFound(key)
	}
	return &doc, nil
}

// Delete implements engine.Store.
func (e *Engine) Delete(_ context.Context, key domain.DocKey) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.docs, key)
	return nil
}

// DeleteAll implements engine.Store.
func (e *Engine) DeleteAll(_ context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.docs)
	e.docs = make(map[domain.DocKey]domain.Document)
	return n, nil
}

// Find implements engine.Store. Results are ordered by key so repeated
// calls are stable.
func (e *Engine) Find(_ context.Context, q engine.Query) ([]domain.Document, error) {
	e.mu.RLock()
	matched := make([]domain.Document, 0)
	for _, doc := range e.docs {
		if q.Filters.Match(&doc) && matchesTerms(doc.SearchVector, q.Terms) {
			matched = append(matched, doc)
		}
	}
	e.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Key().String() < matched[j].Key().String()
	})
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// matchesTerms requires every term to prefix-match some field.
func matchesTerms(v domain.SearchVector, terms []string) bool {
	for _, t := range terms {
		if !v.HasPrefix(t) {
			return false
		}
	}
	return true
}

// Len returns the number of stored documents.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs)
}

// Ping implements engine.Store.
func (e *Engine) Ping(context.Context) error { return nil }

// Close implements engine.Store.
func (e *Engine) Close() error { return nil }
