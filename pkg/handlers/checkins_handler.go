package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/northstar-hq/northstar-engine/pkg/middleware"
	"github.com/northstar-hq/northstar-engine/pkg/models"
	"github.com/northstar-hq/northstar-engine/pkg/services"
)

// CheckInsHandler handles check-in create, delete and list requests.
type CheckInsHandler struct {
	checkInService services.CheckInService
	logger         *zap.Logger
}

// NewCheckInsHandler creates a new check-ins handler.
func NewCheckInsHandler(checkInService services.CheckInService, logger *zap.Logger) *CheckInsHandler {
	return &CheckInsHandler{
		checkInService: checkInService,
		logger:         logger,
	}
}

// RegisterRoutes registers the check-ins handler's routes on the given mux.
func (h *CheckInsHandler) RegisterRoutes(mux *http.ServeMux, requireActor middleware.ActorMiddleware) {
	mux.HandleFunc("POST /api/key-results/{krid}/check-ins", requireActor(h.Create))
	mux.HandleFunc("GET /api/key-results/{krid}/check-ins", requireActor(h.List))
	mux.HandleFunc("DELETE /api/check-ins/{cid}", requireActor(h.Delete))
}

// CreateCheckInRequest is the body for POST /api/key-results/{krid}/check-ins
type CreateCheckInRequest struct {
	ProgressValue float64  `json:"progress_value"`
	CheckInType   string   `json:"check_in_type"`
	Confidence    *float64 `json:"confidence,omitempty"`
	IsCompleted   bool     `json:"is_completed"`
	Note          string   `json:"note,omitempty"`
}

// Create handles POST /api/key-results/{krid}/check-ins
func (h *CheckInsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	keyResultID, ok := ParseKeyResultID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateCheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	checkIn, err := h.checkInService.Create(r.Context(), actor, keyResultID, services.CheckInInput{
		ProgressValue: req.ProgressValue,
		CheckInType:   models.CheckInType(req.CheckInType),
		Confidence:    req.Confidence,
		IsCompleted:   req.IsCompleted,
		Note:          req.Note,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: checkIn}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/key-results/{krid}/check-ins
func (h *CheckInsHandler) List(w http.ResponseWriter, r *http.Request) {
	keyResultID, ok := ParseKeyResultID(w, r, h.logger)
	if !ok {
		return
	}

	checkIns, err := h.checkInService.ListByKeyResult(r.Context(), keyResultID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: checkIns}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/check-ins/{cid}
func (h *CheckInsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	checkInID, ok := ParseCheckInID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.checkInService.Delete(r.Context(), actor, checkInID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: map[string]string{"status": "deleted"}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
