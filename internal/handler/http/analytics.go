package http

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ttemp-link/internal/analytics"
)

// AnalyticsHandler serves the dashboard and analytics reports.
type AnalyticsHandler struct {
	aggregator *analytics.Aggregator
	log        *zap.Logger
}

func NewAnalyticsHandler(aggregator *analytics.Aggregator, log *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		aggregator: aggregator,
		log:        log.With(zap.String("component", "http.analytics")),
	}
}

// Dashboard returns the most clicked links in the range and the lifetime total.
//
//	@Summary	Dashboard
//	@Tags		Analytics
//	@Produce	json
//	@Security	BearerAuth
//	@Param		range	query		int	false	"Days (7, 15, 30)"
//	@Success	200		{object}	analytics.Dashboard
//	@Router		/api/dashboard [get]
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	days := analytics.ParseRange(r.URL.Query().Get("range"), analytics.DashboardRanges, analytics.DefaultDashboardRange)

	dashboard, err := h.aggregator.Dashboard(r.Context(), days)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, dashboard, http.StatusOK)
}

// Analytics returns the click series and breakdowns for the range, optionally for one
// link. An invalid range falls back to 30 days; an unknown link id is ignored.
//
//	@Summary	Analytics report
//	@Tags		Analytics
//	@Produce	json
//	@Security	BearerAuth
//	@Param		range	query		int		false	"Days (7, 15, 30, 90)"
//	@Param		link_id	query		string	false	"Link ID"
//	@Success	200		{object}	analytics.Report
//	@Router		/api/analytics [get]
func (h *AnalyticsHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	days := analytics.ParseRange(query.Get("range"), analytics.AnalyticsRanges, analytics.DefaultAnalyticsRange)

	var linkID *uuid.UUID
	if raw := strings.TrimSpace(query.Get("link_id")); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			linkID = &id
		}
	}

	report, err := h.aggregator.Analytics(r.Context(), days, linkID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, report, http.StatusOK)
}
