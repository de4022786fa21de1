package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/service"
	"github.com/utafrali/contentsearch/pkg/httputil"
	"github.com/utafrali/contentsearch/pkg/middleware"
	"github.com/utafrali/contentsearch/pkg/validator"
)

// SearchHandler handles HTTP requests for search endpoints.
type SearchHandler struct {
	service *service.SearchService
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *service.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// TrackClickRequest is the JSON request body for recording a result click.
type TrackClickRequest struct {
	QueryID  string `json:"query_id" validate:"required,uuid"`
	ResultID string `json:"result_id" validate:"required,max=255"`
}

// --- Handlers ---

// Search handles POST /api/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp, err := h.service.Search(r.Context(), req, middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, resp)
}

// SearchByType returns a handler for POST /api/v1/search/{articles|projects|...}
// that restricts results to docType.
func (h *SearchHandler) SearchByType(docType domain.DocumentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.SearchRequest
		if err := validator.DecodeJSON(w, r, &req); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}

		resp, err := h.service.SearchByType(r.Context(), docType, req, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		httputil.WriteData(w, http.StatusOK, resp)
	}
}

// TrackClick handles POST /api/v1/search/click
func (h *SearchHandler) TrackClick(w http.ResponseWriter, r *http.Request) {
	var req TrackClickRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	queryID, err := httputil.ParseUUID("query_id", req.QueryID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.service.TrackClick(r.Context(), queryID, req.ResultID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]string{
		"query_id":  queryID.String(),
		"result_id": req.ResultID,
	})
}
