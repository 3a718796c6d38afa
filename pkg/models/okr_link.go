package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Link Endpoints
// ============================================================================

// EndpointKind tags whether a link endpoint is an Objective or a Key Result.
type EndpointKind string

const (
	EndpointObjective EndpointKind = "objective"
	EndpointKeyResult EndpointKind = "kr"
)

// IsValidEndpointKind checks if the given endpoint kind is valid.
func IsValidEndpointKind(k EndpointKind) bool {
	return k == EndpointObjective || k == EndpointKeyResult
}

// LinkEndpoint identifies one side of an alignment link. Modeling the pair
// as a tagged value keeps "both objective and kr set" unrepresentable.
type LinkEndpoint struct {
	Kind EndpointKind `json:"kind"`
	ID   uuid.UUID    `json:"id"`
}

// ObjectiveEndpoint builds an Objective-side endpoint.
func ObjectiveEndpoint(id uuid.UUID) LinkEndpoint {
	return LinkEndpoint{Kind: EndpointObjective, ID: id}
}

// KeyResultEndpoint builds a Key-Result-side endpoint.
func KeyResultEndpoint(id uuid.UUID) LinkEndpoint {
	return LinkEndpoint{Kind: EndpointKeyResult, ID: id}
}

// ============================================================================
// Link Status
// ============================================================================

// LinkStatus is the approval status of an alignment link.
type LinkStatus string

const (
	LinkStatusPending      LinkStatus = "pending"
	LinkStatusApproved     LinkStatus = "approved"
	LinkStatusRejected     LinkStatus = "rejected"
	LinkStatusNeedsChanges LinkStatus = "needs_changes"
	LinkStatusCancelled    LinkStatus = "cancelled"
)

// ValidLinkStatuses contains all valid link status values.
var ValidLinkStatuses = []LinkStatus{
	LinkStatusPending,
	LinkStatusApproved,
	LinkStatusRejected,
	LinkStatusNeedsChanges,
	LinkStatusCancelled,
}

// linkTransitions is the permitted status graph. Revocation of an approved
// link is not a status change; it clears is_active and stamps revoked_at.
var linkTransitions = map[LinkStatus][]LinkStatus{
	LinkStatusPending:      {LinkStatusApproved, LinkStatusRejected, LinkStatusNeedsChanges, LinkStatusCancelled},
	LinkStatusNeedsChanges: {LinkStatusPending, LinkStatusApproved, LinkStatusRejected, LinkStatusCancelled},
}

// CanTransition reports whether a link may move from one status to another.
func CanTransition(from, to LinkStatus) bool {
	for _, t := range linkTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ============================================================================
// OkrLink
// ============================================================================

// OkrLink is a directed alignment relationship from a lower-level
// Objective/KR to a higher-level Objective/KR, subject to approval by the
// target's owner. PreviousOwnerID is captured at ownership transfer so a
// later revocation can restore it without guessing.
type OkrLink struct {
	ID                     uuid.UUID    `json:"id"`
	Source                 LinkEndpoint `json:"source"`
	Target                 LinkEndpoint `json:"target"`
	Status                 LinkStatus   `json:"status"`
	IsActive               bool         `json:"is_active"`
	RequestedBy            uuid.UUID    `json:"requested_by"`
	TargetOwnerID          uuid.UUID    `json:"target_owner_id"`
	ApprovedBy             *uuid.UUID   `json:"approved_by,omitempty"`
	PreviousOwnerID        *uuid.UUID   `json:"previous_owner_id,omitempty"`
	PreviousDepartmentID   *uuid.UUID   `json:"previous_department_id,omitempty"`
	OwnershipTransferredAt *time.Time   `json:"ownership_transferred_at,omitempty"`
	RevokedAt              *time.Time   `json:"revoked_at,omitempty"`
	RequestNote            string       `json:"request_note,omitempty"`
	DecisionNote           string       `json:"decision_note,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

// IsTerminal reports whether the link can accept no further transitions.
// Rejected and cancelled links are terminal by status; approved links become
// terminal once revoked.
func (l *OkrLink) IsTerminal() bool {
	switch l.Status {
	case LinkStatusRejected, LinkStatusCancelled:
		return true
	case LinkStatusApproved:
		return !l.IsActive
	}
	return false
}

// IsApprovedActive reports whether the link currently contributes to the
// alignment graph.
func (l *OkrLink) IsApprovedActive() bool {
	return l.Status == LinkStatusApproved && l.IsActive
}
