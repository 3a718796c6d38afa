package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckInType distinguishes how a check-in reports progress.
type CheckInType string

const (
	CheckInTypePercentage CheckInType = "percentage"
	CheckInTypeQuantity   CheckInType = "quantity"
)

// IsValidCheckInType checks if the given check-in type is valid.
func IsValidCheckInType(t CheckInType) bool {
	return t == CheckInTypePercentage || t == CheckInTypeQuantity
}

// CheckIn is a timestamped progress update against a Key Result.
// Check-ins are immutable once created; the only permitted mutation is
// deletion, which rolls the Key Result back to the previous check-in.
type CheckIn struct {
	ID              uuid.UUID   `json:"id"`
	KeyResultID     uuid.UUID   `json:"key_result_id"`
	AuthorID        uuid.UUID   `json:"author_id"`
	ProgressValue   float64     `json:"progress_value"`
	ProgressPercent float64     `json:"progress_percent"`
	CheckInType     CheckInType `json:"check_in_type"`
	Confidence      *float64    `json:"confidence,omitempty"`
	IsCompleted     bool        `json:"is_completed"`
	Note            string      `json:"note,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}
