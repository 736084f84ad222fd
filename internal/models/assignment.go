package models

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentType distinguishes desk occupancy from remote work records.
const (
	AssignmentTypeDesk = "desk"
	AssignmentTypeWFH  = "wfh"
)

// Assignment represents a person occupying a desk, or working remotely when
// Type is wfh (in which case DeskID is nil).
type Assignment struct {
	ID           uuid.UUID
	DeskID       *uuid.UUID
	Type         string // "desk" or "wfh"
	AssigneeName string
	Span

	Note      string
	CreatedBy string
	CreatedAt time.Time
}

// IsDesk reports whether this is a desk-type assignment with a desk attached.
func (a *Assignment) IsDesk() bool {
	return a.Type == AssignmentTypeDesk && a.DeskID != nil
}
