package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/northstar-hq/northstar-engine/pkg/apperrors"
)

// ApiResponse wraps data in the envelope the frontend expects.
type ApiResponse struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(ApiResponse{
		Success: false,
		Error:   errorCode,
		Message: message,
	})
}

// WriteServiceError maps a service-layer error onto the HTTP surface.
// Validation failures carry field-level annotations.
func WriteServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	statusCode := http.StatusInternalServerError
	errorCode := "internal_error"

	if ve, ok := apperrors.AsValidation(err); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		if encErr := json.NewEncoder(w).Encode(ApiResponse{
			Success: false,
			Error:   "validation_error",
			Message: ve.Error(),
			Errors:  ve.Fields,
		}); encErr != nil {
			logger.Error("Failed to write error response", zap.Error(encErr))
		}
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		statusCode, errorCode = http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrNotAuthorized):
		statusCode, errorCode = http.StatusForbidden, "not_authorized"
	case errors.Is(err, apperrors.ErrInvalidLevelOrdering):
		statusCode, errorCode = http.StatusUnprocessableEntity, "invalid_level_ordering"
	case errors.Is(err, apperrors.ErrDuplicateLink):
		statusCode, errorCode = http.StatusUnprocessableEntity, "duplicate_link"
	case errors.Is(err, apperrors.ErrAlignmentCycle):
		statusCode, errorCode = http.StatusUnprocessableEntity, "alignment_cycle"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		statusCode, errorCode = http.StatusConflict, "invalid_transition"
	case errors.Is(err, apperrors.ErrCycleNotEnded):
		statusCode, errorCode = http.StatusUnprocessableEntity, "cycle_not_ended"
	}

	message := err.Error()
	if statusCode == http.StatusInternalServerError {
		// Unmapped errors can carry driver or query text; keep that in the
		// logs and send the caller a generic failure.
		logger.Error("Request failed", zap.Error(err))
		message = "Internal server error"
	}

	if encErr := ErrorResponse(w, statusCode, errorCode, message); encErr != nil {
		logger.Error("Failed to write error response", zap.Error(encErr))
	}
}
