package models

import "github.com/google/uuid"

// Department names that are never assignable unless the desk is a kiosk.
const (
	DepartmentUtility = "Utility/Resource"
	DepartmentWalkway = "Walkway"
)

// Department represents an area or functional group on the floor plan.
type Department struct {
	ID          uuid.UUID
	Name        string // unique
	Color       string // hex or CSS color used when rendering the department
	Description string
}

// Assignable reports whether desks in this department accept assignments.
// Utility/walkway space is reserved; kiosks override this at the desk level.
func (d *Department) Assignable() bool {
	return d.Name != DepartmentUtility && d.Name != DepartmentWalkway
}
