package models

import (
	"time"

	"github.com/google/uuid"
)

// KeyResultUnit is the measurement unit of a Key Result.
type KeyResultUnit string

const (
	UnitNumber     KeyResultUnit = "number"
	UnitPercent    KeyResultUnit = "percent"
	UnitCompletion KeyResultUnit = "completion"
)

// ValidKeyResultUnits contains all valid measurement units.
var ValidKeyResultUnits = []KeyResultUnit{UnitNumber, UnitPercent, UnitCompletion}

// IsValidKeyResultUnit checks if the given unit is valid.
func IsValidKeyResultUnit(u KeyResultUnit) bool {
	for _, v := range ValidKeyResultUnits {
		if v == u {
			return true
		}
	}
	return false
}

// KeyResult is a measurable sub-goal belonging to one Objective.
// ProgressPercent is derived (see services.ProgressService) and only
// persisted as a display value; it is never authoritative on its own.
type KeyResult struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title"`
	ObjectiveID     uuid.UUID     `json:"objective_id"`
	AssigneeID      *uuid.UUID    `json:"assignee_id,omitempty"`
	TargetValue     float64       `json:"target_value"`
	CurrentValue    float64       `json:"current_value"`
	Unit            KeyResultUnit `json:"unit"`
	ProgressPercent *float64      `json:"progress_percent,omitempty"`
	Weight          float64       `json:"weight"`
	ArchivedAt      *time.Time    `json:"archived_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsArchived reports whether the Key Result has been soft-deleted.
func (kr *KeyResult) IsArchived() bool {
	return kr.ArchivedAt != nil
}
