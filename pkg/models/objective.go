package models

import (
	"time"

	"github.com/google/uuid"
)

// ObjectiveStatus represents the lifecycle status of an Objective.
type ObjectiveStatus string

const (
	ObjectiveStatusDraft     ObjectiveStatus = "draft"
	ObjectiveStatusActive    ObjectiveStatus = "active"
	ObjectiveStatusCompleted ObjectiveStatus = "completed"
)

// Objective is a qualitative goal at a hierarchy level, scoped to a cycle.
// Company-level Objectives have no department and can never be a link source.
type Objective struct {
	ID              uuid.UUID       `json:"id"`
	Title           string          `json:"title"`
	Level           Level           `json:"level"`
	OwnerID         uuid.UUID       `json:"owner_id"`
	DepartmentID    *uuid.UUID      `json:"department_id,omitempty"`
	CycleID         uuid.UUID       `json:"cycle_id"`
	Status          ObjectiveStatus `json:"status"`
	ProgressPercent float64         `json:"progress_percent"`
	ArchivedAt      *time.Time      `json:"archived_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsArchived reports whether the Objective has been soft-deleted.
// Archived Objectives are excluded from aggregation and tree traversal.
func (o *Objective) IsArchived() bool {
	return o.ArchivedAt != nil
}
