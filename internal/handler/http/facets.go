package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/utafrali/contentsearch/internal/domain"
	"github.com/utafrali/contentsearch/internal/service"
	apperrors "github.com/utafrali/contentsearch/pkg/errors"
	"github.com/utafrali/contentsearch/pkg/httputil"
)

// FacetHandler handles HTTP requests for facet endpoints.
type FacetHandler struct {
	service *service.FacetService
	logger  *slog.Logger
}

// NewFacetHandler creates a new facet HTTP handler.
func NewFacetHandler(svc *service.FacetService, logger *slog.Logger) *FacetHandler {
	return &FacetHandler{
		service: svc,
		logger:  logger,
	}
}

// Facets handles GET /api/v1/facets?query=&language=&filters=
// filters is a JSON object using the same keys as a search request.
func (h *FacetHandler) Facets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.FacetRequest{
		Query:    q.Get("query"),
		Language: q.Get("language"),
	}
	if raw := q.Get("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Filters); err != nil {
			httputil.WriteError(w, r, apperrors.FieldError("filters", "must be a JSON object"), h.logger)
			return
		}
	}

	facets, err := h.service.Facets(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, facets)
}

// FilterOptions returns a handler listing every value of one facet
// dimension across the whole index.
func (h *FacetHandler) FilterOptions(dim domain.FacetDimension) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		values, err := h.service.FilterOptions(r.Context(), dim)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		httputil.WriteData(w, http.StatusOK, values)
	}
}

// Count handles POST /api/v1/facets/count?query=&facet_field=&facet_value=
func (h *FacetHandler) Count(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.service.Count(r.Context(), service.FacetCountRequest{
		Query:      q.Get("query"),
		Language:   q.Get("language"),
		FacetField: q.Get("facet_field"),
		FacetValue: q.Get("facet_value"),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}
