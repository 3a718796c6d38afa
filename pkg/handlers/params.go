package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseLinkID extracts and validates the link ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: lid
func ParseLinkID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "lid", "invalid_link_id", "Invalid link ID format", logger)
}

// ParseObjectiveID extracts and validates the objective ID from the request path.
// Expects path parameter: oid
func ParseObjectiveID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "oid", "invalid_objective_id", "Invalid objective ID format", logger)
}

// ParseKeyResultID extracts and validates the key result ID from the request path.
// Expects path parameter: krid
func ParseKeyResultID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "krid", "invalid_key_result_id", "Invalid key result ID format", logger)
}

// ParseCheckInID extracts and validates the check-in ID from the request path.
// Expects path parameter: cid
func ParseCheckInID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "cid", "invalid_check_in_id", "Invalid check-in ID format", logger)
}

// ParseCycleID extracts and validates the cycle ID from the request path.
// Expects path parameter: cyid
func ParseCycleID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "cyid", "invalid_cycle_id", "Invalid cycle ID format", logger)
}

func parseUUID(w http.ResponseWriter, r *http.Request, param, errorCode, message string, logger *zap.Logger) (uuid.UUID, bool) {
	raw := r.PathValue(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, message); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
