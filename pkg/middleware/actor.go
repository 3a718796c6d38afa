package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/northstar-hq/northstar-engine/pkg/models"
)

// Header names the web layer uses to hand over the authenticated user.
// Identity verification happens upstream; this service trusts its gateway.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// ActorMiddleware wraps a handler with actor extraction.
type ActorMiddleware func(http.HandlerFunc) http.HandlerFunc

// RequireActor extracts the acting user from the trusted gateway headers and
// stores it in the request context. Requests without a valid user id are
// rejected with 401.
func RequireActor(logger *zap.Logger) ActorMiddleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			userID, err := uuid.Parse(r.Header.Get(HeaderUserID))
			if err != nil {
				writeUnauthorized(w, logger)
				return
			}

			role := r.Header.Get(HeaderUserRole)
			if !models.IsValidRole(role) {
				role = models.RoleMember
			}

			ctx := models.WithActor(r.Context(), models.Actor{UserID: userID, Role: role})
			next(w, r.WithContext(ctx))
		}
	}
}

func writeUnauthorized(w http.ResponseWriter, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": "Missing or invalid user identity",
	}); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
