package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/repository"
	"github.com/utafrali/contentsearch/internal/service"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
	"github.com/utafrali/contentsearch/pkg/httputil"
	"github.com/utafrali/contentsearch/pkg/pagination"
	"github.com/utafrali/contentsearch/pkg/validator"
)

// IndexingHandler handles HTTP requests for indexing endpoints.
type IndexingHandler struct {
	service *service.IndexingService
	logger  *slog.Logger
}

// NewIndexingHandler creates a new indexing HTTP handler.
func NewIndexingHandler(svc *service.IndexingService, logger *slog.Logger) *IndexingHandler {
	return &IndexingHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// DocumentRequest is the JSON body describing one document. Field rules
// are enforced by the indexing service so bulk requests can report them
// per document.
type DocumentRequest struct {
	DocumentID   string         `json:"document_id"`
	DocumentType string         `json:"document_type"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	Language     string         `json:"language"`
	AuthorID     string         `json:"author_id"`
	AuthorName   string         `json:"author_name"`
	Status       string         `json:"status"`
	Metadata     map[string]any `json:"metadata"`
	PublishedAt  *time.Time     `json:"published_at"`
}

func (d DocumentRequest) toDomain() domain.Document {
	return domain.Document{
		DocumentID:   d.DocumentID,
		DocumentType: domain.DocumentType(strings.ToLower(strings.TrimSpace(d.DocumentType))),
		Title:        d.Title,
		Content:      d.Content,
		Language:     d.Language,
		AuthorID:     d.AuthorID,
		AuthorName:   d.AuthorName,
		Status:       d.Status,
		Metadata:     d.Metadata,
		PublishedAt:  d.PublishedAt,
	}
}

// BulkIndexRequest is the JSON request body for bulk indexing.
type BulkIndexRequest struct {
	Documents     []DocumentRequest `json:"documents" validate:"required,min=1,max=1000"`
	SourceService string            `json:"source_service" validate:"max=100"`
}

// --- Handlers ---

// IndexDocument handles POST /api/v1/indexing/index
func (h *IndexingHandler) IndexDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	doc, err := h.service.IndexDocument(r.Context(), req.toDomain())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, doc)
}

// BulkIndex handles POST /api/v1/indexing/bulk
func (h *IndexingHandler) BulkIndex(w http.ResponseWriter, r *http.Request) {
	var req BulkIndexRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	docs := make([]domain.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = d.toDomain()
	}

	result, err := h.service.BulkIndex(r.Context(), docs, req.SourceService)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// UpdateDocument handles PUT /api/v1/indexing/update/{document_id}
func (h *IndexingHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	doc, err := h.service.UpdateDocument(r.Context(), chi.URLParam(r, "document_id"), req.toDomain())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/v1/indexing/delete/{document_id}?document_type=
func (h *IndexingHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")
	docType := domain.DocumentType(strings.ToLower(r.URL.Query().Get("document_type")))

	if err := h.service.DeleteFromIndex(r.Context(), documentID, docType); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reindex handles POST /api/v1/indexing/reindex/{service}. The fetch runs
// inline; processing continues after the response.
func (h *IndexingHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Reindex(r.Context(), chi.URLParam(r, "service"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusAccepted, result)
}

// ReindexAll handles POST /api/v1/indexing/reindex. Without source_service
// every configured upstream service is reindexed.
func (h *IndexingHandler) ReindexAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.ReindexAll(r.Context(), r.URL.Query().Get("source_service"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusAccepted, results)
}

// ClearIndex handles DELETE /api/v1/indexing/clear
func (h *IndexingHandler) ClearIndex(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.ClearIndex(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]int{"deleted": n})
}

// Stats handles GET /api/v1/indexing/stats
func (h *IndexingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, stats)
}

// ListJobs handles GET /api/v1/indexing/jobs
func (h *IndexingHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r, pagination.DefaultPageSize, pagination.MaxPageSize)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	filter := repository.JobFilter{
		SourceService: r.URL.Query().Get("source_service"),
		Page:          params.Page,
		PageSize:      params.PageSize,
	}
	fields := map[string]string{}
	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.JobStatus(v)
		switch status {
		case domain.JobStatusPending, domain.JobStatusRunning, domain.JobStatusCompleted, domain.JobStatusFailed:
			filter.Status = &status
		default:
			fields["status"] = "must be one of: pending running completed failed"
		}
	}
	if v := r.URL.Query().Get("job_type"); v != "" {
		jobType := domain.JobType(v)
		switch jobType {
		case domain.JobTypeSingleDocument, domain.JobTypeBulk, domain.JobTypeIncremental, domain.JobTypeFullReindex:
			filter.Type = &jobType
		default:
			fields["job_type"] = "must be one of: single_document bulk incremental full_reindex"
		}
	}
	if len(fields) > 0 {
		httputil.WriteError(w, r, apperrors.Validation(fields), h.logger)
		return
	}

	jobs, total, err := h.service.ListJobs(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, pagination.NewResult(jobs, total, params))
}

// GetJob handles GET /api/v1/indexing/jobs/{job_id}
func (h *IndexingHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParseUUID("job_id", chi.URLParam(r, "job_id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	job, err := h.service.GetJob(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, job)
}
