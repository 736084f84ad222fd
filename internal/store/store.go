package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/seatwise/floorplan/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrDepartmentNotFound = errors.New("department not found")
	ErrDeskNotFound       = errors.New("desk not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrBlockZoneNotFound  = errors.New("block-out zone not found")

	// ErrCellOccupied indicates two desks claiming the same grid cell. Row
	// locking makes this unreachable in correct operation; if it surfaces it
	// is a defect, not a retryable condition.
	ErrCellOccupied = errors.New("grid cell already occupied")
)

// FloorStore defines the interface for floor plan storage operations.
// Reads are plain snapshot reads; all mutation of the grid goes through
// Mutate so that every batch is atomic.
type FloorStore interface {
	// Departments
	CreateDepartment(ctx context.Context, department *models.Department) error
	GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error)
	GetDepartmentByName(ctx context.Context, name string) (*models.Department, error)
	ListDepartments(ctx context.Context) ([]*models.Department, error)

	// Desks
	GetDesk(ctx context.Context, identifier string) (*models.Desk, error)
	ListDesks(ctx context.Context) ([]*models.Desk, error)

	// Assignments
	GetAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	ListAssignments(ctx context.Context) ([]*models.Assignment, error)
	AssignmentsForDesk(ctx context.Context, deskID uuid.UUID) ([]*models.Assignment, error)
	AssignmentsForAssignee(ctx context.Context, name string) ([]*models.Assignment, error)
	EndAssignment(ctx context.Context, id uuid.UUID, at time.Time) error

	// Block-out zones
	ListBlockZones(ctx context.Context) ([]*models.BlockOutZone, error)
	ZonesForDesk(ctx context.Context, deskID uuid.UUID) ([]*models.BlockOutZone, error)
	DeleteBlockZone(ctx context.Context, id uuid.UUID) error

	// Mutate runs fn inside one atomic transaction holding exclusive locks
	// on the given grid rows. Either every write fn performs commits, or
	// none do. Implementations must acquire row locks in ascending order so
	// concurrent batches on disjoint rows proceed while overlapping ones
	// serialize.
	Mutate(ctx context.Context, rows []int, fn func(tx BatchTx) error) error

	// Lifecycle
	Start() error
	Stop() error
}

// BatchTx is the handle passed to Mutate callbacks. Reads through the
// handle observe the transaction's own writes.
type BatchTx interface {
	DeskAt(ctx context.Context, row, column int) (*models.Desk, error)
	DepartmentByID(ctx context.Context, id uuid.UUID) (*models.Department, error)
	AssignmentsForDesk(ctx context.Context, deskID uuid.UUID) ([]*models.Assignment, error)
	ZonesForDesk(ctx context.Context, deskID uuid.UUID) ([]*models.BlockOutZone, error)

	CreateDesk(ctx context.Context, desk *models.Desk) error
	UpdateDesk(ctx context.Context, desk *models.Desk) error
	// DeleteDesk removes a desk, cascading its assignments and block-zone
	// associations.
	DeleteDesk(ctx context.Context, id uuid.UUID) error

	CreateAssignment(ctx context.Context, assignment *models.Assignment) error
	// CloseActiveDeskAssignments ends every desk-type assignment for the
	// assignee (case-insensitive) that is active at the given instant,
	// except the one identified by except. Returns the number closed.
	CloseActiveDeskAssignments(ctx context.Context, assignee string, at time.Time, except uuid.UUID) (int, error)

	CreateBlockZone(ctx context.Context, zone *models.BlockOutZone) error
}
