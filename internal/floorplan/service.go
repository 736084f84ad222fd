// Package floorplan implements the occupancy resolution engine and the
// layout mutation transactor over a FloorStore.
package floorplan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/seatwise/floorplan/internal/layout"
	"github.com/seatwise/floorplan/internal/models"
	"github.com/seatwise/floorplan/internal/store"
	"github.com/seatwise/floorplan/internal/telemetry"
)

// Service exposes the floor plan core operations. All reads are computed
// fresh against the store; mutation goes through the store's atomic batch
// transaction.
type Service struct {
	store   store.FloorStore
	grid    layout.Grid
	now     func() time.Time
	metrics *telemetry.Metrics
}

// NewService creates a service over the given store and grid. The clock is
// injectable for deterministic tests; pass nil for time.Now.
func NewService(st store.FloorStore, grid layout.Grid, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:   st,
		grid:    grid,
		now:     now,
		metrics: telemetry.GetMetrics(),
	}
}

// Grid returns the floor grid the service is configured with.
func (s *Service) Grid() layout.Grid {
	return s.grid
}

// activeAssignment selects the active desk-type assignment at the reference
// time. Multiple actives should not happen under correct conflict
// canonicalization, but are handled defensively: latest start wins, ties
// broken by latest creation time.
func activeAssignment(assignments []*models.Assignment, t time.Time) *models.Assignment {
	var best *models.Assignment
	for _, a := range assignments {
		if !a.IsDesk() || !a.ActiveAt(t) {
			continue
		}
		if best == nil ||
			a.Start.After(best.Start) ||
			(a.Start.Equal(best.Start) && a.CreatedAt.After(best.CreatedAt)) {
			best = a
		}
	}
	return best
}

// activeZones filters zones down to those active at the reference time,
// sorted by name for stable output.
func activeZones(zones []*models.BlockOutZone, t time.Time) []*models.BlockOutZone {
	var result []*models.BlockOutZone
	for _, z := range zones {
		if z.ActiveAt(t) {
			result = append(result, z)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func zoneNames(zones []*models.BlockOutZone) []string {
	names := make([]string, 0, len(zones))
	for _, z := range zones {
		names = append(names, z.Name)
	}
	return names
}

// ResolveOccupancy determines the active assignment and active block-out
// zones for a desk at the reference time. Pure read, no side effects.
func (s *Service) ResolveOccupancy(ctx context.Context, identifier string, at time.Time) (*Occupancy, error) {
	desk, err := s.store.GetDesk(ctx, identifier)
	if err != nil {
		return nil, err
	}

	assignments, err := s.store.AssignmentsForDesk(ctx, desk.ID)
	if err != nil {
		return nil, err
	}
	zones, err := s.store.ZonesForDesk(ctx, desk.ID)
	if err != nil {
		return nil, err
	}

	return &Occupancy{
		Assignment:    activeAssignment(assignments, at),
		BlockingZones: activeZones(zones, at),
	}, nil
}

// ProjectDesk builds the externally visible payload for one desk at the
// reference time. The zero time means "now".
func (s *Service) ProjectDesk(ctx context.Context, identifier string, at time.Time) (*DeskPayload, error) {
	if at.IsZero() {
		at = s.now()
	}
	desk, err := s.store.GetDesk(ctx, identifier)
	if err != nil {
		return nil, err
	}
	department, err := s.store.GetDepartment(ctx, desk.DepartmentID)
	if err != nil {
		return nil, err
	}
	return s.projectDesk(ctx, desk, department, at)
}

// ProjectFloor projects every desk on the floor at the reference time.
func (s *Service) ProjectFloor(ctx context.Context, at time.Time) ([]*DeskPayload, error) {
	if at.IsZero() {
		at = s.now()
	}
	started := time.Now()
	defer func() {
		s.metrics.FloorProjectionDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
	}()

	desks, err := s.store.ListDesks(ctx)
	if err != nil {
		return nil, err
	}
	departments, err := s.store.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.Department, len(departments))
	for _, d := range departments {
		byID[d.ID] = d
	}

	payloads := make([]*DeskPayload, 0, len(desks))
	for _, desk := range desks {
		department, ok := byID[desk.DepartmentID]
		if !ok {
			return nil, fmt.Errorf("desk %s references missing department %s: %w",
				desk.Identifier, desk.DepartmentID, store.ErrDepartmentNotFound)
		}
		payload, err := s.projectDesk(ctx, desk, department, at)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, payload)
	}
	return payloads, nil
}

func (s *Service) projectDesk(ctx context.Context, desk *models.Desk, department *models.Department, at time.Time) (*DeskPayload, error) {
	assignments, err := s.store.AssignmentsForDesk(ctx, desk.ID)
	if err != nil {
		return nil, err
	}
	zones, err := s.store.ZonesForDesk(ctx, desk.ID)
	if err != nil {
		return nil, err
	}

	blocking := activeZones(zones, at)
	active := activeAssignment(assignments, at)

	status := StatusFree
	if active != nil {
		status = StatusOccupied
	}
	if len(blocking) > 0 {
		status = StatusBlocked
	}

	isKiosk := desk.IsKiosk()
	rect := s.grid.CellRect(desk.Row, desk.Column, desk.RowSpan, desk.ColumnSpan)

	return &DeskPayload{
		Identifier:      desk.Identifier,
		Label:           desk.Label,
		Department:      department.Name,
		DepartmentColor: department.Color,
		FillColor:       desk.FillColor,
		Notes:           desk.Notes,
		Row:             desk.Row,
		Column:          desk.Column,
		RowSpan:         desk.RowSpan,
		ColumnSpan:      desk.ColumnSpan,
		Geometry:        Geometry{Left: rect.Left, Top: rect.Top, Width: rect.Width, Height: rect.Height},
		Style:           styleFromRect(rect),
		IsKiosk:         isKiosk,
		IsAssignable:    isKiosk || department.Assignable(),
		Status:          status,
		IsBlocked:       len(blocking) > 0,
		BlockZones:      zoneNames(blocking),
		Assignment:      serializeAssignment(active, desk, department.Name, zoneNames(blocking)),
	}, nil
}
