// Package engine defines the document store behind the search pipeline.
// Stores hold documents keyed by (document_id, document_type) and return
// filtered candidates; ranking happens above them.
package engine

import (
	"context"
	"sort"
	"time"

	"github.com/utafrali/contentsearch/internal/domain"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

// ErrStoreUnavailable marks connectivity loss to the store. It is never
// retried inside the core.
var ErrStoreUnavailable = apperrors.ErrStoreUnavailable

// Query selects candidate documents.
type Query struct {
	// Terms are analyzed query terms. A store may use them to narrow the
	// candidate set by prefix; callers re-check matches themselves.
	Terms   []string
	Filters domain.Filters
	// Limit caps the number of candidates; 0 means no cap.
	Limit int
}

// Store is a document store. Implementations must be safe for concurrent
// use.
type Store interface {
	// Upsert stores doc. An existing document keeps its IndexedAt while
	// UpdatedAt is refreshed. The stored record is returned.
	Upsert(ctx context.Context, doc *domain.Document) (*domain.Document, error)

	// Get returns the document or a NOT_FOUND AppError.
	Get(ctx context.Context, key domain.DocKey) (*domain.Document, error)

	// Delete removes a document. Missing documents are not an error.
	Delete(ctx context.Context, key domain.DocKey) error

	// DeleteAll empties the store and reports how many documents it held.
	DeleteAll(ctx context.Context) (int, error)

	// Find returns documents passing q.Filters, possibly narrowed by
	// q.Terms, in no particular order.
	Find(ctx context.Context, q Query) ([]domain.Document, error)

	Ping(ctx context.Context) error
	Close() error
}

// NotFound builds the error Get returns for a missing key.
func NotFound(key domain.DocKey) error {
	return apperrors.NotFound("document", key.String())
}

// Stamp sets the upsert timestamps on doc: IndexedAt survives from prev,
// UpdatedAt is now.
func Stamp(doc, prev *domain.Document, now time.Time) {
	doc.IndexedAt = now
	if prev != nil && !prev.IndexedAt.IsZero() {
		doc.IndexedAt = prev.IndexedAt
	}
	doc.UpdatedAt = now
}

// MetadataPairs renders metadata as "key=value" strings for stores that
// filter on keyword fields.
func MetadataPairs(doc *domain.Document) []string {
	pairs := make([]string, 0, len(doc.Metadata))
	for k := range doc.Metadata {
		if v, ok := doc.MetadataString(k); ok {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)
	return pairs
}
