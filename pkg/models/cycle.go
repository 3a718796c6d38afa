package models

import (
	"time"

	"github.com/google/uuid"
)

// CycleStatus is the lifecycle status of an OKR cycle.
type CycleStatus string

const (
	CycleStatusActive   CycleStatus = "active"
	CycleStatusInactive CycleStatus = "inactive"
)

// Cycle is a bounded time period (typically a quarter) that scopes
// Objectives and Key Results.
type Cycle struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	StartDate time.Time   `json:"start_date"`
	EndDate   time.Time   `json:"end_date"`
	Status    CycleStatus `json:"status"`
	ClosedAt  *time.Time  `json:"closed_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// HasEnded reports whether the cycle's end date has passed at the given time.
func (c *Cycle) HasEnded(now time.Time) bool {
	return !now.Before(c.EndDate)
}
