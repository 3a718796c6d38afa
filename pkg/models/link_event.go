package models

import (
	"time"

	"github.com/google/uuid"
)

// Link event action constants, one per state transition.
const (
	LinkActionCreated      = "created"
	LinkActionApproved     = "approved"
	LinkActionRejected     = "rejected"
	LinkActionNeedsChanges = "needs_changes"
	LinkActionResubmitted  = "resubmitted"
	LinkActionCancelled    = "cancelled"
	LinkActionRevoked      = "revoked"
)

// LinkEvent is an append-only audit record for an OkrLink. Rows are written
// in the same transaction as the link mutation they describe and are never
// updated or deleted.
type LinkEvent struct {
	ID        uuid.UUID `json:"id"`
	LinkID    uuid.UUID `json:"link_id"`
	Action    string    `json:"action"`
	ActorID   uuid.UUID `json:"actor_id"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
