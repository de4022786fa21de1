// Package upstream pulls documents from the content services for full
// reindexing.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/contentsearch/internal/domain"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
	"github.com/utafrali/contentsearch/pkg/httpclient"
)

const (
	defaultPageSize = 500
	// maxPages bounds a single fetch against a misbehaving upstream.
	maxPages        = 10000
	pageConcurrency = 4
)

// Fetcher retrieves every document an upstream service owns.
type Fetcher interface {
	// Services lists the configured service names.
	Services() []string
	// DocumentTypes returns the document types owned by service.
	DocumentTypes(service string) ([]domain.DocumentType, error)
	// Fetch pulls all documents of service.
	Fetch(ctx context.Context, service string) (*FetchResult, error)
}

// FetchResult is the outcome of one full fetch. Skipped lists items the
// upstream returned but that could not be converted; DocumentID is empty
// when the item carried no readable id.
type FetchResult struct {
	Documents []domain.Document
	Skipped   []domain.DocumentError
}

// Config controls the HTTP fetcher.
type Config struct {
	// BaseURLs maps service names to base URLs. Services without a URL are
	// not fetchable.
	BaseURLs   map[string]string
	PageSize   int
	Timeout    time.Duration
	MaxRetries int
}

// page is the paginated list envelope every upstream returns.
type page struct {
	Items      []json.RawMessage `json:"items"`
	TotalPages int               `json:"total_pages"`
}

// HTTPFetcher fetches pages over HTTP, one circuit breaker per service.
type HTTPFetcher struct {
	baseURLs map[string]string
	clients  map[string]httpclient.Doer
	pageSize int
	logger   *slog.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher for the configured services.
func NewHTTPFetcher(cfg Config, logger *slog.Logger) *HTTPFetcher {
	clientCfg := httpclient.DefaultConfig()
	if cfg.Timeout > 0 {
		clientCfg.Timeout = cfg.Timeout
	}
	if cfg.MaxRetries >= 0 {
		clientCfg.MaxRetries = cfg.MaxRetries
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}

	f := &HTTPFetcher{
		baseURLs: make(map[string]string),
		clients:  make(map[string]httpclient.Doer),
		pageSize: cfg.PageSize,
		logger:   logger,
	}
	for _, s := range sources {
		base := strings.TrimRight(cfg.BaseURLs[s.name], "/")
		if base == "" {
			continue
		}
		f.baseURLs[s.name] = base
		f.clients[s.name] = httpclient.NewCircuitBreakerClient(
			httpclient.New(clientCfg),
			httpclient.DefaultCircuitBreakerConfig("upstream-"+s.name),
			logger,
		)
	}
	return f
}

// Services returns the configured service names in a stable order.
func (f *HTTPFetcher) Services() []string {
	out := make([]string, 0, len(f.baseURLs))
	for _, s := range sources {
		if _, ok := f.baseURLs[s.name]; ok {
			out = append(out, s.name)
		}
	}
	return out
}

func (f *HTTPFetcher) resolve(service string) (source, error) {
	s, ok := lookupSource(service)
	if !ok || f.baseURLs[service] == "" {
		return source{}, apperrors.FieldError("service", fmt.Sprintf("unknown service %q", service))
	}
	return s, nil
}

// DocumentTypes returns the document types owned by service.
func (f *HTTPFetcher) DocumentTypes(service string) ([]domain.DocumentType, error) {
	s, err := f.resolve(service)
	if err != nil {
		return nil, err
	}
	return []domain.DocumentType{s.docType}, nil
}

// Fetch pulls page 1, then the remaining pages concurrently. Any failure is
// reported as UpstreamUnavailable; items that cannot be decoded are
// reported in FetchResult.Skipped.
func (f *HTTPFetcher) Fetch(ctx context.Context, service string) (*FetchResult, error) {
	s, err := f.resolve(service)
	if err != nil {
		return nil, err
	}

	first, err := f.fetchPage(ctx, s, 1)
	if err != nil {
		return nil, err
	}

	totalPages := min(max(first.TotalPages, 1), maxPages)
	pages := make([]page, totalPages)
	pages[0] = first

	if totalPages > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(pageConcurrency)
		for n := 2; n <= totalPages; n++ {
			g.Go(func() error {
				p, err := f.fetchPage(gctx, s, n)
				if err != nil {
					return err
				}
				pages[n-1] = p
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	res := &FetchResult{Documents: []domain.Document{}, Skipped: []domain.DocumentError{}}
	for _, p := range pages {
		for _, raw := range p.Items {
			doc, err := s.convert(raw)
			if err == nil && doc.DocumentID == "" {
				err = errors.New("item has no id")
			}
			if err != nil {
				res.Skipped = append(res.Skipped, domain.DocumentError{
					DocumentID:   itemID(raw),
					DocumentType: s.docType,
					Error:        err.Error(),
				})
				continue
			}
			res.Documents = append(res.Documents, doc)
		}
	}
	if len(res.Skipped) > 0 {
		f.logger.WarnContext(ctx, "skipped undecodable upstream items",
			slog.String("service", service),
			slog.Int("skipped", len(res.Skipped)),
		)
	}

	f.logger.InfoContext(ctx, "fetched upstream documents",
		slog.String("service", service),
		slog.Int("pages", totalPages),
		slog.Int("documents", len(res.Documents)),
	)
	return res, nil
}

// itemID reads the "id" of a raw item that failed conversion, accepting
// strings and numbers. It returns "" when no id can be read.
func itemID(raw json.RawMessage) string {
	var item struct {
		ID any `json:"id"`
	}
	if json.Unmarshal(raw, &item) != nil {
		return ""
	}
	switch v := item.ID.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func (f *HTTPFetcher) fetchPage(ctx context.Context, s source, n int) (page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(n))
	q.Set("page_size", strconv.Itoa(f.pageSize))
	target := f.baseURLs[s.name] + s.path + "?" + q.Encode()

	var p page
	if err := httpclient.GetJSON(ctx, f.clients[s.name], target, s.name, &p); err != nil {
		if errors.Is(err, apperrors.ErrUpstreamUnavailable) {
			return page{}, err
		}
		return page{}, apperrors.UpstreamUnavailable(s.name, fmt.Errorf("page %d: %w", n, err))
	}
	return p, nil
}
