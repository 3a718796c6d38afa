package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	// Pending accepts every decision plus cancellation.
	assert.True(t, CanTransition(LinkStatusPending, LinkStatusApproved))
	assert.True(t, CanTransition(LinkStatusPending, LinkStatusRejected))
	assert.True(t, CanTransition(LinkStatusPending, LinkStatusNeedsChanges))
	assert.True(t, CanTransition(LinkStatusPending, LinkStatusCancelled))

	// Needs-changes can be amended, decided or dropped.
	assert.True(t, CanTransition(LinkStatusNeedsChanges, LinkStatusPending))
	assert.True(t, CanTransition(LinkStatusNeedsChanges, LinkStatusApproved))
	assert.True(t, CanTransition(LinkStatusNeedsChanges, LinkStatusRejected))
	assert.True(t, CanTransition(LinkStatusNeedsChanges, LinkStatusCancelled))

	// Terminal statuses accept nothing.
	assert.False(t, CanTransition(LinkStatusRejected, LinkStatusPending))
	assert.False(t, CanTransition(LinkStatusCancelled, LinkStatusPending))
	assert.False(t, CanTransition(LinkStatusApproved, LinkStatusRejected))
	assert.False(t, CanTransition(LinkStatusApproved, LinkStatusPending))

	// No self-loops.
	assert.False(t, CanTransition(LinkStatusPending, LinkStatusPending))
}

func TestOkrLink_IsTerminal(t *testing.T) {
	assert.True(t, (&OkrLink{Status: LinkStatusRejected}).IsTerminal())
	assert.True(t, (&OkrLink{Status: LinkStatusCancelled}).IsTerminal())
	assert.True(t, (&OkrLink{Status: LinkStatusApproved, IsActive: false}).IsTerminal(), "revoked approval is terminal")

	assert.False(t, (&OkrLink{Status: LinkStatusApproved, IsActive: true}).IsTerminal())
	assert.False(t, (&OkrLink{Status: LinkStatusPending, IsActive: true}).IsTerminal())
	assert.False(t, (&OkrLink{Status: LinkStatusNeedsChanges, IsActive: true}).IsTerminal())
}

func TestOkrLink_IsApprovedActive(t *testing.T) {
	assert.True(t, (&OkrLink{Status: LinkStatusApproved, IsActive: true}).IsApprovedActive())
	assert.False(t, (&OkrLink{Status: LinkStatusApproved, IsActive: false}).IsApprovedActive())
	assert.False(t, (&OkrLink{Status: LinkStatusPending, IsActive: true}).IsApprovedActive())
}

func TestLinkEndpoint_Constructors(t *testing.T) {
	id := uuid.New()

	o := ObjectiveEndpoint(id)
	assert.Equal(t, EndpointObjective, o.Kind)
	assert.Equal(t, id, o.ID)

	k := KeyResultEndpoint(id)
	assert.Equal(t, EndpointKeyResult, k.Kind)
	assert.Equal(t, id, k.ID)
	assert.NotEqual(t, o, k, "same id, different kind")
}

func TestIsValidEndpointKind(t *testing.T) {
	assert.True(t, IsValidEndpointKind(EndpointObjective))
	assert.True(t, IsValidEndpointKind(EndpointKeyResult))
	assert.False(t, IsValidEndpointKind(EndpointKind("milestone")))
}
