package floorplan

import (
	"fmt"
	"time"

	"github.com/seatwise/floorplan/internal/layout"
	"github.com/seatwise/floorplan/internal/models"
)

// Externally visible desk statuses. Blocked dominates occupied.
const (
	StatusFree     = "free"
	StatusOccupied = "occupied"
	StatusBlocked  = "blocked"
)

// Geometry is the desk rectangle as raw percentages.
type Geometry struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Style carries the same rectangle as CSS percentage strings, ready to apply
// to a positioned element.
type Style struct {
	Left   string `json:"left"`
	Top    string `json:"top"`
	Width  string `json:"width"`
	Height string `json:"height"`
}

func styleFromRect(r layout.Rect) Style {
	return Style{
		Left:   percent(r.Left),
		Top:    percent(r.Top),
		Width:  percent(r.Width),
		Height: percent(r.Height),
	}
}

func percent(v float64) string {
	return fmt.Sprintf("%g%%", v)
}

// AssignmentPayload is the serialized form of an assignment.
type AssignmentPayload struct {
	ID             string     `json:"id"`
	Assignee       string     `json:"assignee"`
	AssignmentType string     `json:"assignment_type"`
	Start          time.Time  `json:"start"`
	End            *time.Time `json:"end,omitempty"`
	Duration       string     `json:"duration"`
	Note           string     `json:"note"`

	// Desk fields, present for desk-type assignments only.
	Desk           string   `json:"desk,omitempty"`
	DeskIdentifier string   `json:"desk_identifier,omitempty"`
	Department     string   `json:"department,omitempty"`
	BlockedZones   []string `json:"blocked_zones,omitempty"`
}

// DeskPayload is the single source of truth for external rendering of desk
// state. It is recomputed fresh on every read; assignments and block zones
// change independently of desk records, so it must never be cached.
type DeskPayload struct {
	Identifier      string `json:"identifier"`
	Label           string `json:"label"`
	Department      string `json:"department"`
	DepartmentColor string `json:"department_color"`
	FillColor       string `json:"fill_color"`
	Notes           string `json:"notes"`

	Row        int `json:"row"`
	Column     int `json:"column"`
	RowSpan    int `json:"row_span"`
	ColumnSpan int `json:"column_span"`

	Geometry Geometry `json:"geometry"`
	Style    Style    `json:"style"`

	IsKiosk      bool `json:"is_kiosk"`
	IsAssignable bool `json:"is_assignable"`

	Status     string             `json:"status"`
	IsBlocked  bool               `json:"is_blocked"`
	BlockZones []string           `json:"block_zones"`
	Assignment *AssignmentPayload `json:"assignment"`
}

// Occupancy is the result of resolving a desk at a reference time.
type Occupancy struct {
	Assignment    *models.Assignment
	BlockingZones []*models.BlockOutZone
}

func serializeAssignment(a *models.Assignment, desk *models.Desk, departmentName string, blockedZones []string) *AssignmentPayload {
	if a == nil {
		return nil
	}
	payload := &AssignmentPayload{
		ID:             a.ID.String(),
		Assignee:       a.AssigneeName,
		AssignmentType: a.Type,
		Start:          a.Start,
		End:            a.End,
		Duration:       a.DurationDisplay(),
		Note:           a.Note,
	}
	if a.Type == models.AssignmentTypeDesk && desk != nil {
		payload.Desk = desk.Label
		payload.DeskIdentifier = desk.Identifier
		payload.Department = departmentName
		payload.BlockedZones = blockedZones
	}
	return payload
}
