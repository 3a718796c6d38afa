package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrInvalidLevelOrdering = errors.New("link target must be at a higher level than its source")
	ErrDuplicateLink        = errors.New("an active link already exists for this source and target")
	ErrInvalidTransition    = errors.New("link status does not permit this transition")
	ErrAlignmentCycle       = errors.New("link would make the target a descendant of its own source")
	ErrCycleNotEnded        = errors.New("cycle end date has not passed")
)

// ValidationError carries field-level annotations for malformed input.
// Fields maps a field name to a human-readable problem description.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// AsValidation unwraps err into a *ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
