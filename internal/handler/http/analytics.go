package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/contentsearch/internal/service"
	"github.com/utafrali/contentsearch/pkg/httputil"
)

// AnalyticsHandler handles HTTP requests for search analytics.
type AnalyticsHandler struct {
	service *service.AnalyticsService
	logger  *slog.Logger
}

// NewAnalyticsHandler creates a new analytics HTTP handler.
func NewAnalyticsHandler(svc *service.AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: svc,
		logger:  logger,
	}
}

// window reads days and limit. Zero values are replaced with defaults by
// the service, which also range-checks them.
func window(r *http.Request) (int, int, error) {
	days, err := httputil.QueryInt(r, "days", 0)
	if err != nil {
		return 0, 0, err
	}
	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		return 0, 0, err
	}
	return days, limit, nil
}

// PopularQueries handles GET /api/v1/analytics/popular-queries
func (h *AnalyticsHandler) PopularQueries(w http.ResponseWriter, r *http.Request) {
	days, limit, err := window(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	out, err := h.service.PopularQueries(r.Context(), days, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, out)
}

// ZeroResults handles GET /api/v1/analytics/zero-results
func (h *AnalyticsHandler) ZeroResults(w http.ResponseWriter, r *http.Request) {
	days, limit, err := window(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	out, err := h.service.ZeroResultQueries(r.Context(), days, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, out)
}

// Metrics handles GET /api/v1/analytics/metrics
func (h *AnalyticsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	days, err := httputil.QueryInt(r, "days", 0)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	out, err := h.service.Metrics(r.Context(), days)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, out)
}

// Performance handles GET /api/v1/analytics/performance
func (h *AnalyticsHandler) Performance(w http.ResponseWriter, r *http.Request) {
	days, err := httputil.QueryInt(r, "days", 0)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	out, err := h.service.Performance(r.Context(), days)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, out)
}
