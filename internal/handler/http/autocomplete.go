package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/contentsearch/internal/service"
	"github.com/utafrali/contentsearch/pkg/httputil"
	"github.com/utafrali/contentsearch/pkg/middleware"
	"github.com/utafrali/contentsearch/pkg/validator"
)

// AutocompleteHandler handles HTTP requests for suggestion endpoints.
type AutocompleteHandler struct {
	service *service.AutocompleteService
	logger  *slog.Logger
}

// NewAutocompleteHandler creates a new autocomplete HTTP handler.
func NewAutocompleteHandler(svc *service.AutocompleteService, logger *slog.Logger) *AutocompleteHandler {
	return &AutocompleteHandler{
		service: svc,
		logger:  logger,
	}
}

// TrackSuggestionRequest is the JSON request body for recording a
// suggestion use.
type TrackSuggestionRequest struct {
	Text     string `json:"text" validate:"required,max=500"`
	Language string `json:"language" validate:"max=10"`
}

// Suggestions handles GET /api/v1/autocomplete/suggestions?query=&language=&limit=
func (h *AutocompleteHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	q := r.URL.Query()

	suggestions, err := h.service.Suggest(r.Context(), q.Get("query"), q.Get("language"), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]any{
		"query":       q.Get("query"),
		"suggestions": suggestions,
	})
}

// Popular handles GET /api/v1/autocomplete/popular?language=&limit=
func (h *AutocompleteHandler) Popular(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	popular, err := h.service.PopularSearches(r.Context(), r.URL.Query().Get("language"), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, popular)
}

// Recent handles GET /api/v1/autocomplete/recent?limit=
func (h *AutocompleteHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	recent, err := h.service.RecentSearches(r.Context(), middleware.UserIDFromContext(r.Context()), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, recent)
}

// Track handles POST /api/v1/autocomplete/suggestions
func (h *AutocompleteHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req TrackSuggestionRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.service.TrackSuggestion(r.Context(), req.Text, req.Language); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cleanup handles DELETE /api/v1/autocomplete/suggestions?min_usage=
func (h *AutocompleteHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	minUsage, err := httputil.QueryInt(r, "min_usage", 2)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	n, err := h.service.CleanupSuggestions(r.Context(), minUsage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]int{"deleted": n})
}
