package models

import (
	"strings"

	"github.com/google/uuid"
)

// Desk is a single seating location bound to one cell of the floor grid.
type Desk struct {
	ID           uuid.UUID
	Identifier   string // unique slug, doubles as the persistence key for grid cells
	Label        string
	DepartmentID uuid.UUID

	// Grid placement (1-indexed). At most one desk per (Row, Column).
	Row        int
	Column     int
	RowSpan    int
	ColumnSpan int

	// Rendered rectangle, percentages of the floor plan container.
	LeftPercent   float64
	TopPercent    float64
	WidthPercent  float64
	HeightPercent float64

	FillColor string // optional override of the department color
	Notes     string
}

// IsKiosk reports whether the desk is marked as a kiosk. Kiosks are always
// assignable regardless of department. The match is a case-insensitive
// substring check on the label, notes and identifier.
func (d *Desk) IsKiosk() bool {
	const marker = "kiosk"
	return strings.Contains(strings.ToLower(d.Label), marker) ||
		strings.Contains(strings.ToLower(d.Notes), marker) ||
		strings.Contains(strings.ToLower(d.Identifier), marker)
}
