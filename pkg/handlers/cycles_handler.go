package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/northstar-hq/northstar-engine/pkg/middleware"
	"github.com/northstar-hq/northstar-engine/pkg/services"
)

// CyclesHandler handles cycle close and lookup requests.
type CyclesHandler struct {
	cycleService     services.CycleService
	dashboardService services.DashboardService
	logger           *zap.Logger
}

// NewCyclesHandler creates a new cycles handler.
func NewCyclesHandler(cycleService services.CycleService, dashboardService services.DashboardService, logger *zap.Logger) *CyclesHandler {
	return &CyclesHandler{
		cycleService:     cycleService,
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// RegisterRoutes registers the cycles handler's routes on the given mux.
func (h *CyclesHandler) RegisterRoutes(mux *http.ServeMux, requireActor middleware.ActorMiddleware) {
	mux.HandleFunc("GET /api/cycles/{cyid}", requireActor(h.Get))
	mux.HandleFunc("POST /api/cycles/{cyid}/close", requireActor(h.Close))
}

// Get handles GET /api/cycles/{cyid}
func (h *CyclesHandler) Get(w http.ResponseWriter, r *http.Request) {
	cycleID, ok := ParseCycleID(w, r, h.logger)
	if !ok {
		return
	}

	cycle, err := h.cycleService.GetCycle(r.Context(), cycleID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: cycle}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Close handles POST /api/cycles/{cyid}/close?force=
func (h *CyclesHandler) Close(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	cycleID, ok := ParseCycleID(w, r, h.logger)
	if !ok {
		return
	}

	force := r.URL.Query().Get("force") == "true"

	cycle, err := h.cycleService.Close(r.Context(), actor, cycleID, force)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	// The org rollup changed; drop the cached summary.
	h.dashboardService.InvalidateOrgCache(r.Context(), cycleID)

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: cycle}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
