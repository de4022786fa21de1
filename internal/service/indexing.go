package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/engine"
	"github.com/utafrali/contentsearch/internal/ranking"
	"github.com/utafrali/contentsearch/internal/repository"
	"github.com/utafrali/contentsearch/internal/upstream"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
	"github.com/utafrali/contentsearch/pkg/validator"
)

// DefaultIndexWorkers is the worker pool size when none is configured.
const DefaultIndexWorkers = 8

// reindexConcurrency bounds how many upstream services ReindexAll fetches
// at once.
const reindexConcurrency = 3

// BulkResult summarizes a bulk or incremental indexing run.
type BulkResult struct {
	JobID   uuid.UUID              `json:"job_id"`
	Status  domain.JobStatus       `json:"status"`
	Indexed int                    `json:"indexed"`
	Failed  int                    `json:"failed"`
	Errors  []domain.DocumentError `json:"errors"`
}

// ReindexResult is returned once the upstream fetch has finished and
// processing has moved to the background.
type ReindexResult struct {
	JobID              uuid.UUID        `json:"job_id"`
	Service            string           `json:"service"`
	Status             domain.JobStatus `json:"status"`
	EstimatedDocuments int              `json:"estimated_documents"`
}

// IndexingService drives document indexing as tracked jobs.
type IndexingService struct {
	store     engine.Store
	analyzers *ranking.Analyzers
	jobs      *JobTracker
	fetcher   upstream.Fetcher
	pool      *ants.Pool
	metrics   *Metrics
	logger    *slog.Logger

	background sync.WaitGroup
}

// NewIndexingService creates the indexing engine with a pool of workers.
// fetcher may be nil, which disables Reindex.
func NewIndexingService(
	store engine.Store,
	analyzers *ranking.Analyzers,
	jobs *JobTracker,
	fetcher upstream.Fetcher,
	workers int,
	metrics *Metrics,
	logger *slog.Logger,
) (*IndexingService, error) {
	if workers <= 0 {
		workers = DefaultIndexWorkers
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p any) {
		logger.Error("index worker panic", slog.Any("panic", p))
	}))
	if err != nil {
		return nil, fmt.Errorf("create index worker pool: %w", err)
	}
	return &IndexingService{
		store:     store,
		analyzers: analyzers,
		jobs:      jobs,
		fetcher:   fetcher,
		pool:      pool,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Close waits for background jobs and releases the worker pool.
func (s *IndexingService) Close() {
	s.Wait()
	s.pool.Release()
}

// Wait blocks until every background reindex has finished.
func (s *IndexingService) Wait() {
	s.background.Wait()
}

// prepare validates doc and derives its normalized fields and search
// vector.
func (s *IndexingService) prepare(doc *domain.Document) error {
	doc.DocumentID = strings.TrimSpace(doc.DocumentID)
	doc.Language = strings.ToLower(strings.TrimSpace(doc.Language))
	if err := validator.Validate(doc); err != nil {
		return err
	}
	doc.SearchVector = s.analyzers.Vector(doc)
	return nil
}

// IndexDocument validates and upserts one document inside a
// single_document job. The stored record is returned.
func (s *IndexingService) IndexDocument(ctx context.Context, doc domain.Document) (*domain.Document, error) {
	if err := s.prepare(&doc); err != nil {
		return nil, err
	}
	return s.indexOne(ctx, doc)
}

// UpdateDocument re-indexes an existing document. The path ID wins; a
// conflicting body ID is rejected.
func (s *IndexingService) UpdateDocument(ctx context.Context, documentID string, doc domain.Document) (*domain.Document, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, apperrors.FieldError("document_id", "is required")
	}
	if doc.DocumentID != "" && strings.TrimSpace(doc.DocumentID) != documentID {
		return nil, apperrors.FieldError("document_id", "must match the path parameter")
	}
	doc.DocumentID = documentID
	if err := s.prepare(&doc); err != nil {
		return nil, err
	}

	if _, err := s.store.Get(ctx, doc.Key()); err != nil {
		return nil, err
	}
	return s.indexOne(ctx, doc)
}

func (s *IndexingService) indexOne(ctx context.Context, doc domain.Document) (*domain.Document, error) {
	run := s.jobs.begin(ctx, domain.JobTypeSingleDocument, "", 1)
	if err := s.jobs.start(ctx, run, 1); err != nil {
		return nil, err
	}

	stored, err := s.store.Upsert(ctx, &doc)
	if err != nil {
		s.metrics.indexDocuments.WithLabelValues("failed").Inc()
		run.failedDoc(0, documentError(&doc, err))
		s.jobs.finish(ctx, run, err)
		if errors.Is(err, engine.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("index document: %w", err)
	}

	s.metrics.indexDocuments.WithLabelValues("indexed").Inc()
	run.succeeded()
	s.jobs.finish(ctx, run, nil)

	s.logger.InfoContext(ctx, "document indexed",
		slog.String("document_id", stored.DocumentID),
		slog.String("document_type", string(stored.DocumentType)),
	)
	return stored, nil
}

// BulkIndex indexes docs in one bulk job. Per-document failures are
// reported in the result; only loss of the store fails the job, and then
// the StoreUnavailable error is returned alongside the result.
func (s *IndexingService) BulkIndex(ctx context.Context, docs []domain.Document, sourceService string) (*BulkResult, error) {
	return s.runBatch(ctx, domain.JobTypeBulk, docs, sourceService)
}

// IndexIncremental applies a batch of pushed upstream changes. It behaves
// like BulkIndex under an incremental job.
func (s *IndexingService) IndexIncremental(ctx context.Context, docs []domain.Document, sourceService string) (*BulkResult, error) {
	return s.runBatch(ctx, domain.JobTypeIncremental, docs, sourceService)
}

func (s *IndexingService) runBatch(ctx context.Context, jobType domain.JobType, docs []domain.Document, source string) (*BulkResult, error) {
	run := s.jobs.begin(ctx, jobType, source, len(docs))
	if err := s.jobs.start(ctx, run, len(docs)); err != nil {
		return nil, err
	}

	fatal := s.process(ctx, run, docs)
	job := s.jobs.finish(ctx, run, fatal)

	result := &BulkResult{
		JobID:   job.ID,
		Status:  job.Status,
		Indexed: job.DocumentsProcessed,
		Failed:  job.DocumentsFailed,
		Errors:  job.Errors,
	}
	return result, fatal
}

// process upserts docs on the worker pool. Documents sharing a key run in
// submission order inside one task. The first store connectivity error
// stops all further attempts and is returned.
func (s *IndexingService) process(ctx context.Context, run *jobRun, docs []domain.Document) error {
	groups, order := groupByKey(docs)

	var (
		wg       sync.WaitGroup
		stopped  atomic.Bool
		fatalMu  sync.Mutex
		fatalErr error
	)
	setFatal := func(err error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		fatalMu.Unlock()
		stopped.Store(true)
	}

	task := func(indexes []int) {
		defer wg.Done()
		for _, i := range indexes {
			if stopped.Load() {
				return
			}
			doc := docs[i]
			if err := s.prepare(&doc); err != nil {
				s.metrics.indexDocuments.WithLabelValues("failed").Inc()
				run.failedDoc(i, documentError(&doc, err))
				continue
			}
			if _, err := s.store.Upsert(ctx, &doc); err != nil {
				s.metrics.indexDocuments.WithLabelValues("failed").Inc()
				run.failedDoc(i, documentError(&doc, err))
				if errors.Is(err, engine.ErrStoreUnavailable) {
					setFatal(err)
					return
				}
				continue
			}
			s.metrics.indexDocuments.WithLabelValues("indexed").Inc()
			run.succeeded()
		}
	}

	for _, key := range order {
		indexes := groups[key]
		wg.Add(1)
		if err := s.pool.Submit(func() { task(indexes) }); err != nil {
			// Pool released: run inline so the job still terminates.
			task(indexes)
		}
	}
	wg.Wait()

	return fatalErr
}

// groupByKey groups document indexes by identity, preserving submission
// order within and across groups.
func groupByKey(docs []domain.Document) (map[domain.DocKey][]int, []domain.DocKey) {
	groups := make(map[domain.DocKey][]int, len(docs))
	order := make([]domain.DocKey, 0, len(docs))
	for i := range docs {
		key := domain.DocKey{ID: strings.TrimSpace(docs[i].DocumentID), Type: docs[i].DocumentType}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}
	return groups, order
}

func documentError(doc *domain.Document, err error) domain.DocumentError {
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	return domain.DocumentError{
		DocumentID:   doc.DocumentID,
		DocumentType: doc.DocumentType,
		Error:        msg,
	}
}

// Reindex fetches every document of service and replaces that service's
// documents in the store. It returns after the fetch; processing continues
// in the background. A failed fetch fails the job and leaves the store
// untouched.
func (s *IndexingService) Reindex(ctx context.Context, service string) (*ReindexResult, error) {
	if s.fetcher == nil {
		return nil, apperrors.FieldError("service", "no upstream services are configured")
	}
	res, err := s.reindex(ctx, service)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReindexAll reindexes every configured upstream service, or only source
// when it is set. Each service runs as its own full_reindex job; a failed
// fetch is reported in its entry and does not stop the others.
func (s *IndexingService) ReindexAll(ctx context.Context, source string) ([]ReindexResult, error) {
	source = strings.TrimSpace(source)
	if source != "" {
		res, err := s.Reindex(ctx, source)
		if err != nil {
			return nil, err
		}
		return []ReindexResult{*res}, nil
	}

	var services []string
	if s.fetcher != nil {
		services = s.fetcher.Services()
	}
	if len(services) == 0 {
		return nil, apperrors.FieldError("source_service", "no upstream services are configured")
	}

	results := make([]ReindexResult, len(services))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reindexConcurrency)
	for i, svc := range services {
		g.Go(func() error {
			res, err := s.reindex(gctx, svc)
			switch {
			case res != nil:
				results[i] = *res
			case err != nil:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// reindex runs one service. On a failed fetch the failed job is returned
// together with the error.
func (s *IndexingService) reindex(ctx context.Context, service string) (*ReindexResult, error) {
	types, err := s.fetcher.DocumentTypes(service)
	if err != nil {
		return nil, err
	}

	run := s.jobs.begin(ctx, domain.JobTypeFullReindex, service, 0)

	fetched, err := s.fetcher.Fetch(ctx, service)
	if err != nil {
		if !errors.Is(err, apperrors.ErrUpstreamUnavailable) {
			err = apperrors.UpstreamUnavailable(service, err)
		}
		job := s.jobs.finish(ctx, run, err)
		s.logger.ErrorContext(ctx, "reindex fetch failed",
			slog.String("service", service),
			slog.String("error", err.Error()),
		)
		return &ReindexResult{JobID: job.ID, Service: service, Status: job.Status}, err
	}

	docs := fetched.Documents
	total := len(docs) + len(fetched.Skipped)
	if err := s.jobs.start(ctx, run, total); err != nil {
		return nil, err
	}
	// Skipped items count as failed documents, after the fetched ones.
	for i, skipped := range fetched.Skipped {
		s.metrics.indexDocuments.WithLabelValues("failed").Inc()
		run.failedDoc(len(docs)+i, skipped)
	}
	jobID := run.id()

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx := context.WithoutCancel(ctx)

		fatal := s.process(ctx, run, docs)
		if fatal == nil {
			fatal = s.sweep(ctx, service, types, docs, fetched.Skipped)
		}
		s.jobs.finish(ctx, run, fatal)
	}()

	s.logger.InfoContext(ctx, "reindex started",
		slog.String("service", service),
		slog.String("job_id", jobID.String()),
		slog.Int("documents", len(docs)),
		slog.Int("skipped", len(fetched.Skipped)),
	)
	return &ReindexResult{
		JobID:              jobID,
		Service:            service,
		Status:             domain.JobStatusRunning,
		EstimatedDocuments: total,
	}, nil
}

// sweep deletes documents of types that are absent from the fetched set.
// Skipped items keep their existing entries; when one has no readable id
// nothing is deleted, since its entry cannot be told apart from a stale
// one.
func (s *IndexingService) sweep(ctx context.Context, service string, types []domain.DocumentType, fetched []domain.Document, skipped []domain.DocumentError) error {
	keep := make(map[domain.DocKey]struct{}, len(fetched)+len(skipped))
	for i := range fetched {
		keep[domain.DocKey{ID: strings.TrimSpace(fetched[i].DocumentID), Type: fetched[i].DocumentType}] = struct{}{}
	}
	for _, sk := range skipped {
		if sk.DocumentID == "" {
			s.logger.WarnContext(ctx, "reindex sweep skipped: upstream items without id",
				slog.String("service", service),
			)
			return nil
		}
		keep[domain.DocKey{ID: sk.DocumentID, Type: sk.DocumentType}] = struct{}{}
	}

	existing, err := s.store.Find(ctx, engine.Query{Filters: domain.Filters{DocumentTypes: types}})
	if err != nil {
		return fmt.Errorf("reindex sweep: %w", err)
	}

	deleted := 0
	for i := range existing {
		key := existing[i].Key()
		if _, ok := keep[key]; ok {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			if errors.Is(err, engine.ErrStoreUnavailable) {
				return err
			}
			s.logger.WarnContext(ctx, "reindex sweep delete failed",
				slog.String("document", key.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		s.metrics.indexDocuments.WithLabelValues("deleted").Add(float64(deleted))
		s.logger.InfoContext(ctx, "reindex removed stale documents",
			slog.String("service", service),
			slog.Int("deleted", deleted),
		)
	}
	return nil
}

// DeleteFromIndex removes a document. Missing documents are not an error.
func (s *IndexingService) DeleteFromIndex(ctx context.Context, documentID string, docType domain.DocumentType) error {
	documentID = strings.TrimSpace(documentID)
	var idErr error
	if documentID == "" {
		idErr = apperrors.FieldError("document_id", "is required")
	}
	if err := mergeValidation(idErr, validateDocumentType("document_type", docType)); err != nil {
		return err
	}

	key := domain.DocKey{ID: documentID, Type: docType}
	if err := s.store.Delete(ctx, key); err != nil {
		if errors.Is(err, engine.ErrStoreUnavailable) {
			return err
		}
		return fmt.Errorf("delete document: %w", err)
	}
	s.metrics.indexDocuments.WithLabelValues("deleted").Inc()
	s.logger.InfoContext(ctx, "document deleted from index", slog.String("document", key.String()))
	return nil
}

// ClearIndex removes every document and reports how many were removed.
func (s *IndexingService) ClearIndex(ctx context.Context) (int, error) {
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		if errors.Is(err, engine.ErrStoreUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("clear index: %w", err)
	}
	s.logger.WarnContext(ctx, "index cleared", slog.Int("deleted", n))
	return n, nil
}

// Stats counts stored documents by type and language.
func (s *IndexingService) Stats(ctx context.Context) (*domain.IndexStats, error) {
	docs, err := s.store.Find(ctx, engine.Query{})
	if err != nil {
		if errors.Is(err, engine.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("index stats: %w", err)
	}
	stats := &domain.IndexStats{
		TotalDocuments: len(docs),
		ByType:         map[string]int{},
		ByLanguage:     map[string]int{},
	}
	for i := range docs {
		stats.ByType[string(docs[i].DocumentType)]++
		stats.ByLanguage[strings.ToLower(docs[i].Language)]++
	}
	return stats, nil
}

// GetJob returns a job with live progress while it runs.
func (s *IndexingService) GetJob(ctx context.Context, id uuid.UUID) (*domain.IndexJob, error) {
	return s.jobs.Get(ctx, id)
}

// ListJobs returns jobs newest first with the total matching count.
func (s *IndexingService) ListJobs(ctx context.Context, filter repository.JobFilter) ([]domain.IndexJob, int, error) {
	return s.jobs.List(ctx, filter)
}
