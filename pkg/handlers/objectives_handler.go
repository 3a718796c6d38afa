package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/northstar-hq/northstar-engine/pkg/middleware"
	"github.com/northstar-hq/northstar-engine/pkg/models"
	"github.com/northstar-hq/northstar-engine/pkg/services"
)

// ObjectivesHandler handles objective read requests.
type ObjectivesHandler struct {
	objectiveService services.ObjectiveService
	logger           *zap.Logger
}

// NewObjectivesHandler creates a new objectives handler.
func NewObjectivesHandler(objectiveService services.ObjectiveService, logger *zap.Logger) *ObjectivesHandler {
	return &ObjectivesHandler{
		objectiveService: objectiveService,
		logger:           logger,
	}
}

// RegisterRoutes registers the objectives handler's routes on the given mux.
func (h *ObjectivesHandler) RegisterRoutes(mux *http.ServeMux, requireActor middleware.ActorMiddleware) {
	mux.HandleFunc("GET /api/objectives/{oid}", requireActor(h.Get))
	mux.HandleFunc("GET /api/objectives", requireActor(h.List))
}

// Get handles GET /api/objectives/{oid}
func (h *ObjectivesHandler) Get(w http.ResponseWriter, r *http.Request) {
	objectiveID, ok := ParseObjectiveID(w, r, h.logger)
	if !ok {
		return
	}

	detail, err := h.objectiveService.Get(r.Context(), objectiveID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: detail}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/objectives?cycle_id=&level=
func (h *ObjectivesHandler) List(w http.ResponseWriter, r *http.Request) {
	cycleID, err := uuid.Parse(r.URL.Query().Get("cycle_id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_cycle_id", "cycle_id must be a valid UUID"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var level *models.Level
	if raw := r.URL.Query().Get("level"); raw != "" {
		l := models.Level(raw)
		if !models.IsValidLevel(l) {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_level", "level must be one of person, team, unit, company"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		level = &l
	}

	summaries, err := h.objectiveService.List(r.Context(), cycleID, level)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: summaries}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
