package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/northstar-hq/northstar-engine/pkg/middleware"
	"github.com/northstar-hq/northstar-engine/pkg/models"
	"github.com/northstar-hq/northstar-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// RequestLinkRequest for POST /api/links
type RequestLinkRequest struct {
	SourceType string    `json:"source_type"`
	SourceID   uuid.UUID `json:"source_id"`
	TargetType string    `json:"target_type"`
	TargetID   uuid.UUID `json:"target_id"`
	Note       string    `json:"note,omitempty"`
}

// DecideLinkRequest for POST /api/links/{lid}/decision
type DecideLinkRequest struct {
	Decision          string `json:"decision"`
	Note              string `json:"note,omitempty"`
	TransferOwnership bool   `json:"transfer_ownership,omitempty"`
}

// CancelLinkRequest for POST /api/links/{lid}/cancel
type CancelLinkRequest struct {
	KeepOwnership bool `json:"keep_ownership,omitempty"`
}

// ResubmitLinkRequest for POST /api/links/{lid}/resubmit
type ResubmitLinkRequest struct {
	Note string `json:"note,omitempty"`
}

// LinkEventsResponse for GET /api/links/{lid}/events
type LinkEventsResponse struct {
	Events []*models.LinkEvent `json:"events"`
	Total  int                 `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// LinksHandler handles alignment link HTTP requests.
type LinksHandler struct {
	linkService services.LinkService
	logger      *zap.Logger
}

// NewLinksHandler creates a new links handler.
func NewLinksHandler(linkService services.LinkService, logger *zap.Logger) *LinksHandler {
	return &LinksHandler{
		linkService: linkService,
		logger:      logger,
	}
}

// RegisterRoutes registers the links handler's routes on the given mux.
func (h *LinksHandler) RegisterRoutes(mux *http.ServeMux, requireActor middleware.ActorMiddleware) {
	mux.HandleFunc("POST /api/links", requireActor(h.Request))
	mux.HandleFunc("GET /api/links/{lid}", requireActor(h.Get))
	mux.HandleFunc("POST /api/links/{lid}/decision", requireActor(h.Decide))
	mux.HandleFunc("POST /api/links/{lid}/cancel", requireActor(h.Cancel))
	mux.HandleFunc("POST /api/links/{lid}/resubmit", requireActor(h.Resubmit))
	mux.HandleFunc("GET /api/links/{lid}/events", requireActor(h.Events))
}

// Request handles POST /api/links
func (h *LinksHandler) Request(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req RequestLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	source := models.LinkEndpoint{Kind: models.EndpointKind(req.SourceType), ID: req.SourceID}
	target := models.LinkEndpoint{Kind: models.EndpointKind(req.TargetType), ID: req.TargetID}

	link, err := h.linkService.RequestLink(r.Context(), actor, source, target, req.Note)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: link}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/links/{lid}
func (h *LinksHandler) Get(w http.ResponseWriter, r *http.Request) {
	linkID, ok := ParseLinkID(w, r, h.logger)
	if !ok {
		return
	}

	link, err := h.linkService.GetLink(r.Context(), linkID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: link}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Decide handles POST /api/links/{lid}/decision
func (h *LinksHandler) Decide(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	linkID, ok := ParseLinkID(w, r, h.logger)
	if !ok {
		return
	}

	var req DecideLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	link, err := h.linkService.Decide(r.Context(), actor, linkID, models.LinkStatus(req.Decision), req.Note, req.TransferOwnership)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: link}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Cancel handles POST /api/links/{lid}/cancel
func (h *LinksHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	linkID, ok := ParseLinkID(w, r, h.logger)
	if !ok {
		return
	}

	var req CancelLinkRequest
	if r.Body != nil {
		// Body is optional; keep_ownership defaults to false.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	link, err := h.linkService.Cancel(r.Context(), actor, linkID, req.KeepOwnership)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: link}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Resubmit handles POST /api/links/{lid}/resubmit
func (h *LinksHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	linkID, ok := ParseLinkID(w, r, h.logger)
	if !ok {
		return
	}

	var req ResubmitLinkRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	link, err := h.linkService.Resubmit(r.Context(), actor, linkID, req.Note)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: link}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Events handles GET /api/links/{lid}/events
func (h *LinksHandler) Events(w http.ResponseWriter, r *http.Request) {
	linkID, ok := ParseLinkID(w, r, h.logger)
	if !ok {
		return
	}

	events, err := h.linkService.GetEvents(r.Context(), linkID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	response := LinkEventsResponse{Events: events, Total: len(events)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// requireActor pulls the actor set by the middleware from context, writing a
// 401 when absent.
func requireActor(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.Actor, bool) {
	actor, ok := models.GetActor(r.Context())
	if !ok {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Missing user identity"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return models.Actor{}, false
	}
	return actor, true
}
