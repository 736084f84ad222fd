// Package memory provides an in-memory FloorStore used by unit tests and
// the development server. Data is lost on restart.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seatwise/floorplan/internal/models"
	"github.com/seatwise/floorplan/internal/store"
)

type cellKey struct {
	row    int
	column int
}

// state holds every table. Mutate stages its writes on a deep copy and swaps
// it in on success, which gives the same all-or-nothing guarantee the
// Postgres store gets from transactions.
type state struct {
	departments       map[uuid.UUID]*models.Department
	departmentsByName map[string]uuid.UUID
	desks             map[uuid.UUID]*models.Desk
	desksByIdentifier map[string]uuid.UUID
	desksByCell       map[cellKey]uuid.UUID
	assignments       map[uuid.UUID]*models.Assignment
	zones             map[uuid.UUID]*models.BlockOutZone
}

func newState() *state {
	return &state{
		departments:       make(map[uuid.UUID]*models.Department),
		departmentsByName: make(map[string]uuid.UUID),
		desks:             make(map[uuid.UUID]*models.Desk),
		desksByIdentifier: make(map[string]uuid.UUID),
		desksByCell:       make(map[cellKey]uuid.UUID),
		assignments:       make(map[uuid.UUID]*models.Assignment),
		zones:             make(map[uuid.UUID]*models.BlockOutZone),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, d := range s.departments {
		c.departments[id] = cloneDepartment(d)
	}
	for name, id := range s.departmentsByName {
		c.departmentsByName[name] = id
	}
	for id, d := range s.desks {
		c.desks[id] = cloneDesk(d)
	}
	for ident, id := range s.desksByIdentifier {
		c.desksByIdentifier[ident] = id
	}
	for key, id := range s.desksByCell {
		c.desksByCell[key] = id
	}
	for id, a := range s.assignments {
		c.assignments[id] = cloneAssignment(a)
	}
	for id, z := range s.zones {
		c.zones[id] = cloneZone(z)
	}
	return c
}

func cloneDepartment(d *models.Department) *models.Department {
	clone := *d
	return &clone
}

func cloneDesk(d *models.Desk) *models.Desk {
	clone := *d
	return &clone
}

func cloneAssignment(a *models.Assignment) *models.Assignment {
	clone := *a
	if a.DeskID != nil {
		deskID := *a.DeskID
		clone.DeskID = &deskID
	}
	if a.End != nil {
		end := *a.End
		clone.End = &end
	}
	return &clone
}

func cloneZone(z *models.BlockOutZone) *models.BlockOutZone {
	clone := *z
	if z.End != nil {
		end := *z.End
		clone.End = &end
	}
	clone.DeskIDs = append([]uuid.UUID(nil), z.DeskIDs...)
	return &clone
}

// FloorStore implements store.FloorStore using in-memory storage.
type FloorStore struct {
	mu sync.RWMutex
	st *state
}

// NewFloorStore creates a new in-memory floor store.
func NewFloorStore() *FloorStore {
	return &FloorStore{st: newState()}
}

// Start is a no-op for the memory store.
func (s *FloorStore) Start() error { return nil }

// Stop is a no-op for the memory store.
func (s *FloorStore) Stop() error { return nil }

// CreateDepartment adds a new department.
func (s *FloorStore) CreateDepartment(ctx context.Context, department *models.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := cloneDepartment(department)
	s.st.departments[clone.ID] = clone
	s.st.departmentsByName[clone.Name] = clone.ID
	return nil
}

// GetDepartment retrieves a department by ID.
func (s *FloorStore) GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	department, exists := s.st.departments[id]
	if !exists {
		return nil, store.ErrDepartmentNotFound
	}
	return cloneDepartment(department), nil
}

// GetDepartmentByName retrieves a department by its unique name.
func (s *FloorStore) GetDepartmentByName(ctx context.Context, name string) (*models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.st.departmentsByName[name]
	if !exists {
		return nil, store.ErrDepartmentNotFound
	}
	return cloneDepartment(s.st.departments[id]), nil
}

// ListDepartments returns all departments.
func (s *FloorStore) ListDepartments(ctx context.Context) ([]*models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Department, 0, len(s.st.departments))
	for _, d := range s.st.departments {
		result = append(result, cloneDepartment(d))
	}
	return result, nil
}

// GetDesk retrieves a desk by identifier.
func (s *FloorStore) GetDesk(ctx context.Context, identifier string) (*models.Desk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.st.desksByIdentifier[identifier]
	if !exists {
		return nil, store.ErrDeskNotFound
	}
	return cloneDesk(s.st.desks[id]), nil
}

// ListDesks returns all desks.
func (s *FloorStore) ListDesks(ctx context.Context) ([]*models.Desk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Desk, 0, len(s.st.desks))
	for _, d := range s.st.desks {
		result = append(result, cloneDesk(d))
	}
	return result, nil
}

// GetAssignment retrieves an assignment by ID.
func (s *FloorStore) GetAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assignment, exists := s.st.assignments[id]
	if !exists {
		return nil, store.ErrAssignmentNotFound
	}
	return cloneAssignment(assignment), nil
}

// ListAssignments returns all assignments.
func (s *FloorStore) ListAssignments(ctx context.Context) ([]*models.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Assignment, 0, len(s.st.assignments))
	for _, a := range s.st.assignments {
		result = append(result, cloneAssignment(a))
	}
	return result, nil
}

// AssignmentsForDesk returns every assignment referencing the desk.
func (s *FloorStore) AssignmentsForDesk(ctx context.Context, deskID uuid.UUID) ([]*models.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.st.assignmentsForDesk(deskID), nil
}

// AssignmentsForAssignee returns every assignment for the given person,
// matched case-insensitively.
func (s *FloorStore) AssignmentsForAssignee(ctx context.Context, name string) ([]*models.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Assignment
	for _, a := range s.st.assignments {
		if strings.EqualFold(a.AssigneeName, name) {
			result = append(result, cloneAssignment(a))
		}
	}
	return result, nil
}

// EndAssignment closes an assignment at the given instant.
func (s *FloorStore) EndAssignment(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	assignment, exists := s.st.assignments[id]
	if !exists {
		return store.ErrAssignmentNotFound
	}
	assignment.Close(at)
	return nil
}

// ListBlockZones returns all block-out zones.
func (s *FloorStore) ListBlockZones(ctx context.Context) ([]*models.BlockOutZone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.BlockOutZone, 0, len(s.st.zones))
	for _, z := range s.st.zones {
		result = append(result, cloneZone(z))
	}
	return result, nil
}

// ZonesForDesk returns every zone covering the desk.
func (s *FloorStore) ZonesForDesk(ctx context.Context, deskID uuid.UUID) ([]*models.BlockOutZone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.st.zonesForDesk(deskID), nil
}

// DeleteBlockZone removes a zone and its desk associations.
func (s *FloorStore) DeleteBlockZone(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.zones[id]; !exists {
		return store.ErrBlockZoneNotFound
	}
	delete(s.st.zones, id)
	return nil
}

// Mutate runs fn against a staged copy of the store and swaps it in only if
// fn succeeds. The store-wide mutex is a superset of per-row exclusivity,
// so the rows argument is not needed here.
func (s *FloorStore) Mutate(ctx context.Context, rows []int, fn func(tx store.BatchTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.clone()
	if err := fn(&batchTx{st: staged}); err != nil {
		return err
	}
	s.st = staged
	return nil
}

func (s *state) assignmentsForDesk(deskID uuid.UUID) []*models.Assignment {
	var result []*models.Assignment
	for _, a := range s.assignments {
		if a.DeskID != nil && *a.DeskID == deskID {
			result = append(result, cloneAssignment(a))
		}
	}
	return result
}

func (s *state) zonesForDesk(deskID uuid.UUID) []*models.BlockOutZone {
	var result []*models.BlockOutZone
	for _, z := range s.zones {
		if z.Covers(deskID) {
			result = append(result, cloneZone(z))
		}
	}
	return result
}

// batchTx operates directly on the staged state; the FloorStore mutex is
// held for the whole Mutate call.
type batchTx struct {
	st *state
}

func (tx *batchTx) DeskAt(ctx context.Context, row, column int) (*models.Desk, error) {
	id, exists := tx.st.desksByCell[cellKey{row: row, column: column}]
	if !exists {
		return nil, store.ErrDeskNotFound
	}
	return cloneDesk(tx.st.desks[id]), nil
}

func (tx *batchTx) DepartmentByID(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	department, exists := tx.st.departments[id]
	if !exists {
		return nil, store.ErrDepartmentNotFound
	}
	return cloneDepartment(department), nil
}

func (tx *batchTx) AssignmentsForDesk(ctx context.Context, deskID uuid.UUID) ([]*models.Assignment, error) {
	return tx.st.assignmentsForDesk(deskID), nil
}

func (tx *batchTx) ZonesForDesk(ctx context.Context, deskID uuid.UUID) ([]*models.BlockOutZone, error) {
	return tx.st.zonesForDesk(deskID), nil
}

func (tx *batchTx) CreateDesk(ctx context.Context, desk *models.Desk) error {
	key := cellKey{row: desk.Row, column: desk.Column}
	if _, exists := tx.st.desksByCell[key]; exists {
		return store.ErrCellOccupied
	}
	clone := cloneDesk(desk)
	tx.st.desks[clone.ID] = clone
	tx.st.desksByIdentifier[clone.Identifier] = clone.ID
	tx.st.desksByCell[key] = clone.ID
	return nil
}

func (tx *batchTx) UpdateDesk(ctx context.Context, desk *models.Desk) error {
	existing, exists := tx.st.desks[desk.ID]
	if !exists {
		return store.ErrDeskNotFound
	}

	oldKey := cellKey{row: existing.Row, column: existing.Column}
	newKey := cellKey{row: desk.Row, column: desk.Column}
	if oldKey != newKey {
		if _, taken := tx.st.desksByCell[newKey]; taken {
			return store.ErrCellOccupied
		}
		delete(tx.st.desksByCell, oldKey)
		tx.st.desksByCell[newKey] = desk.ID
	}
	if existing.Identifier != desk.Identifier {
		delete(tx.st.desksByIdentifier, existing.Identifier)
		tx.st.desksByIdentifier[desk.Identifier] = desk.ID
	}

	tx.st.desks[desk.ID] = cloneDesk(desk)
	return nil
}

func (tx *batchTx) DeleteDesk(ctx context.Context, id uuid.UUID) error {
	desk, exists := tx.st.desks[id]
	if !exists {
		return store.ErrDeskNotFound
	}

	delete(tx.st.desks, id)
	delete(tx.st.desksByIdentifier, desk.Identifier)
	delete(tx.st.desksByCell, cellKey{row: desk.Row, column: desk.Column})

	// Cascade assignments and zone associations
	for assignmentID, a := range tx.st.assignments {
		if a.DeskID != nil && *a.DeskID == id {
			delete(tx.st.assignments, assignmentID)
		}
	}
	for _, z := range tx.st.zones {
		kept := z.DeskIDs[:0]
		for _, deskID := range z.DeskIDs {
			if deskID != id {
				kept = append(kept, deskID)
			}
		}
		z.DeskIDs = kept
	}
	return nil
}

func (tx *batchTx) CreateAssignment(ctx context.Context, assignment *models.Assignment) error {
	tx.st.assignments[assignment.ID] = cloneAssignment(assignment)
	return nil
}

func (tx *batchTx) CloseActiveDeskAssignments(ctx context.Context, assignee string, at time.Time, except uuid.UUID) (int, error) {
	closed := 0
	for _, a := range tx.st.assignments {
		if a.ID == except {
			continue
		}
		if a.Type != models.AssignmentTypeDesk || a.DeskID == nil {
			continue
		}
		if !strings.EqualFold(a.AssigneeName, assignee) {
			continue
		}
		// Open claims are closed regardless of their start: a future-dated
		// open-ended assignment would otherwise survive canonicalization.
		if !a.IsPermanent && a.End != nil && a.End.Before(at) {
			continue
		}
		a.Close(at)
		closed++
	}
	return closed, nil
}

func (tx *batchTx) CreateBlockZone(ctx context.Context, zone *models.BlockOutZone) error {
	tx.st.zones[zone.ID] = cloneZone(zone)
	return nil
}
