package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/northstar-hq/northstar-engine/pkg/middleware"
	"github.com/northstar-hq/northstar-engine/pkg/services"
)

// DashboardHandler serves the per-user OKR dashboard.
type DashboardHandler struct {
	dashboardService services.DashboardService
	logger           *zap.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(dashboardService services.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// RegisterRoutes registers the dashboard handler's routes on the given mux.
func (h *DashboardHandler) RegisterRoutes(mux *http.ServeMux, requireActor middleware.ActorMiddleware) {
	mux.HandleFunc("GET /api/dashboard", requireActor(h.Dashboard))
}

// Dashboard handles GET /api/dashboard?date=
// The optional date parameter (RFC 3339 or 2006-01-02) pins "now" for
// reproducible compliance windows.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var at time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_date", "date must be RFC 3339 or YYYY-MM-DD"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		at = parsed
	}

	dashboard, err := h.dashboardService.GetDashboard(r.Context(), actor.UserID, at)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: dashboard}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
