package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/engine"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
)

// findBatchSize is the page size used when walking candidates with
// search_after.
const findBatchSize = 1000

// Engine is an Elasticsearch-backed document store.
type Engine struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
	now       func() time.Time
}

var _ engine.Store = (*Engine)(nil)

// esDocument is the indexed source: the document plus keyword helpers.
type esDocument struct {
	domain.Document
	DocKey        string   `json:"doc_key"`
	MetadataPairs []string `json:"metadata_pairs,omitempty"`
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			Source esDocument `json:"_source"`
			Sort   []any      `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

type esGetResponse struct {
	Found  bool       `json:"found"`
	Source esDocument `json:"_source"`
}

type esDeleteByQueryResponse struct {
	Deleted int `json:"deleted"`
}

type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates an engine connected to esURL and ensures the index exists.
// An empty indexName means DefaultIndexName.
func New(esURL string, indexName string, logger *slog.Logger) (*Engine, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{esURL},
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}

	e := &Engine{
		client:    client,
		indexName: indexName,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if err := e.ensureIndex(); err != nil {
		return nil, fmt.Errorf("elasticsearch: ensure index: %w", err)
	}
	return e, nil
}

// Ping checks whether the cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return apperrors.StoreUnavailable(fmt.Errorf("elasticsearch ping: %w", err))
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return apperrors.StoreUnavailable(fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status()))
	}
	return nil
}

// Close implements engine.Store. The HTTP transport needs no teardown.
func (e *Engine) Close() error { return nil }

func (e *Engine) ensureIndex() error {
	res, err := e.client.Indices.Exists([]string{e.indexName})
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusOK {
		e.logger.Info("elasticsearch index already exists", slog.String("index", e.indexName))
		return nil
	}

	res, err = e.client.Indices.Create(
		e.indexName,
		e.client.Indices.Create.WithBody(strings.NewReader(buildIndexMapping())),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("create index", res)
	}

	e.logger.Info("elasticsearch index created", slog.String("index", e.indexName))
	return nil
}

// responseError decodes an error body. Server-side failures count as the
// store being unavailable.
func responseError(op string, res *esapi.Response) error {
	var err error
	var errResp esErrorResponse
	if decErr := json.NewDecoder(res.Body).Decode(&errResp); decErr == nil && errResp.Error.Type != "" {
		err = fmt.Errorf("elasticsearch %s: %s: %s", op, errResp.Error.Type, errResp.Error.Reason)
	} else {
		err = fmt.Errorf("elasticsearch %s: unexpected status %s", op, res.Status())
	}
	if res.StatusCode >= http.StatusInternalServerError {
		return apperrors.StoreUnavailable(err)
	}
	return err
}

func transportError(op string, err error) error {
	return apperrors.StoreUnavailable(fmt.Errorf("elasticsearch %s: %w", op, err))
}

// Upsert implements engine.Store.
func (e *Engine) Upsert(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	prev, err := e.Get(ctx, doc.Key())
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	stored := *doc
	engine.Stamp(&stored, prev, e.now())

	data, err := json.Marshal(esDocument{
		Document:      stored,
		DocKey:        stored.Key().String(),
		MetadataPairs: engine.MetadataPairs(&stored),
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch index: marshal document: %w", err)
	}

	res, err := e.client.Index(
		e.indexName,
		bytes.NewReader(data),
		e.client.Index.WithDocumentID(stored.Key().String()),
		e.client.Index.WithRefresh("true"),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return nil, transportError("index", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, responseError("index", res)
	}

	e.logger.Debug("indexed document", slog.String("key", stored.Key().String()))
	return &stored, nil
}

// Get implements engine.Store.
func (e *Engine) Get(ctx context.Context, key domain.DocKey) (*domain.Document, error) {
	res, err := e.client.Get(e.indexName, key.String(), e.client.Get.WithContext(ctx))
	if err != nil {
		return nil, transportError("get", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, engine.NotFound(key)
	}
	if res.IsError() {
		return nil, responseError("get", res)
	}

	var out esGetResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("elasticsearch get: decode response: %w", err)
	}
	if !out.Found {
		return nil, engine.NotFound(key)
	}
	doc := out.Source.Document
	return &doc, nil
}

// Delete implements engine.Store. A 404 is treated as success.
func (e *Engine) Delete(ctx context.Context, key domain.DocKey) error {
	res, err := e.client.Delete(
		e.indexName,
		key.String(),
		e.client.Delete.WithRefresh("true"),
		e.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return transportError("delete", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete", res)
	}

	e.logger.Debug("deleted document", slog.String("key", key.String()))
	return nil
}

// DeleteAll implements engine.Store.
func (e *Engine) DeleteAll(ctx context.Context) (int, error) {
	body := `{"query":{"match_all":{}}}`
	res, err := e.client.DeleteByQuery(
		[]string{e.indexName},
		strings.NewReader(body),
		e.client.DeleteByQuery.WithRefresh(true),
		e.client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return 0, transportError("delete by query", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return 0, responseError("delete by query", res)
	}

	var out esDeleteByQueryResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("elasticsearch delete by query: decode response: %w", err)
	}
	e.logger.Info("elasticsearch index cleared", slog.String("index", e.indexName), slog.Int("deleted", out.Deleted))
	return out.Deleted, nil
}

// Find implements engine.Store, walking matches in doc_key order with
// search_after until q.Limit or the end of the index.
func (e *Engine) Find(ctx context.Context, q engine.Query) ([]domain.Document, error) {
	query := buildFindQuery(q)
	docs := make([]domain.Document, 0)
	var after []any

	for {
		size := findBatchSize
		if q.Limit > 0 {
			size = min(size, q.Limit-len(docs))
		}
		if size <= 0 {
			break
		}

		body := map[string]any{
			"query":            query,
			"size":             size,
			"sort":             []any{map[string]any{"doc_key": "asc"}},
			"track_total_hits": false,
		}
		if after != nil {
			body["search_after"] = after
		}
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("elasticsearch search: marshal query: %w", err)
		}

		page, last, err := e.search(ctx, data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, page...)
		if len(page) < size {
			break
		}
		after = last
	}
	return docs, nil
}

func (e *Engine) search(ctx context.Context, body []byte) ([]domain.Document, []any, error) {
	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(body)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, nil, transportError("search", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, nil, responseError("search", res)
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, nil, fmt.Errorf("elasticsearch search: decode response: %w", err)
	}

	docs := make([]domain.Document, 0, len(esResp.Hits.Hits))
	var last []any
	for _, hit := range esResp.Hits.Hits {
		docs = append(docs, hit.Source.Document)
		last = hit.Sort
	}
	return docs, last, nil
}

// DeleteIndex removes the whole index. Used by tests and the admin CLI.
func (e *Engine) DeleteIndex(ctx context.Context) error {
	res, err := e.client.Indices.Delete(
		[]string{e.indexName},
		e.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return transportError("delete index", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete index", res)
	}

	e.logger.Info("elasticsearch index deleted", slog.String("index", e.indexName))
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}
