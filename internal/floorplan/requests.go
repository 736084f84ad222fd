package floorplan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/seatwise/floorplan/internal/models"
)

// Action identifies the operation a layout batch performs. The assign action
// doubles as the combined layout+assignment operation when its payload
// carries an assignee name.
type Action string

const (
	ActionAssign     Action = "assign"
	ActionClear      Action = "clear"
	ActionBlock      Action = "block"
	ActionAssignment Action = "assignment"
)

// Duration choices shared by assignment and block-zone payloads.
const (
	DurationTemporary = "temporary"
	DurationPermanent = "permanent"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Cell addresses one grid position in a batch request.
type Cell struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// LayoutData is the payload of the assign action. Department references an
// existing department by ID. An embedded assignment payload with a
// non-blank assignee turns the batch into the combined layout+assignment
// operation.
type LayoutData struct {
	Department string `json:"department" validate:"required,uuid"`
	Label      string `json:"label"`
	FillColor  string `json:"fill_color"`
	Notes      string `json:"notes"`

	Assignment *AssignmentData `json:"assignment,omitempty"`
}

// AssignmentData is the assignment payload used by the assignment action,
// the combined assign action, and admin creation.
type AssignmentData struct {
	AssigneeName   string     `json:"assignee_name"`
	DurationChoice string     `json:"duration_choice" validate:"omitempty,oneof=temporary permanent"`
	Start          *time.Time `json:"start"`
	End            *time.Time `json:"end"`
	Note           string     `json:"note"`
	CreatedBy      string     `json:"created_by"`
}

// BlockZoneData is the payload of the block action.
type BlockZoneData struct {
	Name           string     `json:"name" validate:"required"`
	DurationChoice string     `json:"duration_choice" validate:"omitempty,oneof=temporary permanent"`
	Start          *time.Time `json:"start"`
	End            *time.Time `json:"end"`
	Reason         string     `json:"reason"`
	CreatedBy      string     `json:"created_by"`
}

// BatchRequest is one atomic multi-cell layout mutation. Exactly one of the
// payload fields matching the action must be set.
type BatchRequest struct {
	Action     Action          `json:"action"`
	Cells      []Cell          `json:"cells"`
	Layout     *LayoutData     `json:"-"`
	Assignment *AssignmentData `json:"-"`
	BlockZone  *BlockZoneData  `json:"-"`
}

// BatchResult reports the outcome of a successful batch.
type BatchResult struct {
	Updated []*DeskPayload `json:"updated"`
	Cleared []Cell         `json:"cleared"`
	Message string         `json:"message"`
}

// resolveSpan applies the shared duration-choice rule: permanent spans are
// open ended, temporary spans may carry an end that must be strictly after
// the start.
func resolveSpan(choice string, start time.Time, end *time.Time) (models.Span, error) {
	switch choice {
	case DurationPermanent:
		return models.Span{Start: start, IsPermanent: true}, nil
	case DurationTemporary, "":
		if end != nil && !end.After(start) {
			return models.Span{}, fieldError("end", "End time must be after the start time.")
		}
		return models.Span{Start: start, End: end}, nil
	default:
		return models.Span{}, fieldError("duration_choice", "Duration must be temporary or permanent.")
	}
}

// startOr returns the payload start or falls back to the reference time.
func startOr(start *time.Time, fallback time.Time) time.Time {
	if start != nil {
		return *start
	}
	return fallback
}

// validatePayload runs struct tag validation and converts the first failure
// into a ValidationError the caller can surface verbatim.
func validatePayload(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		fe := fieldErrors[0]
		return fieldError(strings.ToLower(fe.Field()), fmt.Sprintf("failed %s validation", fe.Tag()))
	}
	return err
}
