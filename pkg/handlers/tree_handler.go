package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/northstar-hq/northstar-engine/pkg/middleware"
	"github.com/northstar-hq/northstar-engine/pkg/services"
)

// TreeHandler serves the alignment tree view.
type TreeHandler struct {
	treeService  services.TreeService
	defaultDepth int
	logger       *zap.Logger
}

// NewTreeHandler creates a new tree handler. defaultDepth caps traversal when
// the request does not ask for a depth; zero selects the service default.
func NewTreeHandler(treeService services.TreeService, defaultDepth int, logger *zap.Logger) *TreeHandler {
	return &TreeHandler{
		treeService:  treeService,
		defaultDepth: defaultDepth,
		logger:       logger,
	}
}

// RegisterRoutes registers the tree handler's routes on the given mux.
func (h *TreeHandler) RegisterRoutes(mux *http.ServeMux, requireActor middleware.ActorMiddleware) {
	mux.HandleFunc("GET /api/okr-tree", requireActor(h.Tree))
}

// Tree handles GET /api/okr-tree?objective_id=&cycle_id=&max_depth=
func (h *TreeHandler) Tree(w http.ResponseWriter, r *http.Request) {
	objectiveID, err := uuid.Parse(r.URL.Query().Get("objective_id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_objective_id", "objective_id query parameter is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var cycleID *uuid.UUID
	if raw := r.URL.Query().Get("cycle_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_cycle_id", "Invalid cycle_id query parameter"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		cycleID = &id
	}

	maxDepth := h.defaultDepth
	if raw := r.URL.Query().Get("max_depth"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			maxDepth = v
		}
	}

	tree, err := h.treeService.BuildTree(r.Context(), objectiveID, cycleID, maxDepth)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: tree}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
