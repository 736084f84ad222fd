package floorplan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/seatwise/floorplan/internal/models"
	"github.com/seatwise/floorplan/internal/store"
)

const (
	selfServiceActor = "Self-service"
	selfServiceNote  = "Self-service assignment"
)

// BookDesk claims a free desk for the named person, by default until the
// end of the working day. An explicit until overrides the default and must
// lie in the future. The desk is re-checked under the row lock, so two
// kiosks racing for the same desk cannot both win.
func (s *Service) BookDesk(ctx context.Context, identifier, assigneeName string, until *time.Time) (*DeskPayload, error) {
	assigneeName = strings.TrimSpace(assigneeName)
	if assigneeName == "" {
		return nil, fieldError("assignee_name", "Assignee name is required.")
	}

	desk, err := s.store.GetDesk(ctx, identifier)
	if err != nil {
		return nil, err
	}

	now := s.now()
	end := endOfWorkingDay(now)
	if until != nil {
		if !until.After(now) {
			return nil, fieldError("end", "End time must be after the start time.")
		}
		end = *until
	}

	err = s.store.Mutate(ctx, []int{desk.Row}, func(tx store.BatchTx) error {
		desk, err = tx.DeskAt(ctx, desk.Row, desk.Column)
		if err != nil {
			return err
		}

		zones, err := tx.ZonesForDesk(ctx, desk.ID)
		if err != nil {
			return err
		}
		if len(activeZones(zones, now)) > 0 {
			return validationf("This desk is blocked out and cannot be booked.")
		}

		assignments, err := tx.AssignmentsForDesk(ctx, desk.ID)
		if err != nil {
			return err
		}
		if activeAssignment(assignments, now) != nil {
			return validationf("This desk is already assigned.")
		}

		eligible, err := s.assignable(ctx, tx, desk)
		if err != nil {
			return err
		}
		if !eligible {
			return validationf("This desk is not assignable.")
		}

		closed, err := tx.CloseActiveDeskAssignments(ctx, assigneeName, now, uuid.Nil)
		if err != nil {
			return err
		}
		if closed > 0 {
			log.Info().Str("assignee", assigneeName).Int("closed", closed).
				Msg("closed conflicting assignments during booking")
		}
		s.metrics.ConflictsClosedTotal.Add(ctx, int64(closed))

		assignment, err := s.newAssignment(desk, &AssignmentData{
			AssigneeName: assigneeName,
			Note:         selfServiceNote,
			CreatedBy:    selfServiceActor,
		}, models.Span{Start: now, End: &end})
		if err != nil {
			return err
		}
		return tx.CreateAssignment(ctx, assignment)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BookingsTotal.Add(ctx, 1)
	s.metrics.AssignmentsCreatedTotal.Add(ctx, 1)

	return s.ProjectDesk(ctx, desk.Identifier, s.now())
}

// endOfWorkingDay returns today's 23:59 in the reference time's location,
// rolling to tomorrow when that instant has already passed.
func endOfWorkingDay(now time.Time) time.Time {
	end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 0, 0, now.Location())
	if !end.After(now) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}

// AssignmentInfo describes where a person currently sits.
type AssignmentInfo struct {
	Found      bool               `json:"found"`
	Message    string             `json:"message"`
	Assignment *AssignmentPayload `json:"assignment,omitempty"`
}

// LookupAssignment reports the named person's active assignment, with a
// message suitable for showing on a kiosk.
func (s *Service) LookupAssignment(ctx context.Context, assigneeName string) (*AssignmentInfo, error) {
	now := s.now()

	assignments, err := s.store.AssignmentsForAssignee(ctx, assigneeName)
	if err != nil {
		return nil, err
	}

	active := latestActive(assignments, now)
	if active == nil {
		return &AssignmentInfo{
			Message: "You do not have an active assignment. Please select a free desk.",
		}, nil
	}

	if active.Type == models.AssignmentTypeWFH {
		return &AssignmentInfo{
			Found:      true,
			Message:    "You are scheduled to work from home.",
			Assignment: serializeAssignment(active, nil, "", nil),
		}, nil
	}

	desk, err := s.deskByID(ctx, *active.DeskID)
	if err != nil {
		return nil, err
	}
	department, err := s.store.GetDepartment(ctx, desk.DepartmentID)
	if err != nil {
		return nil, err
	}
	zones, err := s.store.ZonesForDesk(ctx, desk.ID)
	if err != nil {
		return nil, err
	}
	blocking := activeZones(zones, now)

	info := &AssignmentInfo{
		Found:      true,
		Assignment: serializeAssignment(active, desk, department.Name, zoneNames(blocking)),
	}
	if len(blocking) > 0 {
		info.Message = "Your workspace is under construction. Please select a new location."
	} else {
		info.Message = fmt.Sprintf("You are assigned to %s in %s.", desk.Label, department.Name)
	}
	return info, nil
}

// latestActive selects the active assignment of any type with the latest
// start, ties broken by creation time.
func latestActive(assignments []*models.Assignment, t time.Time) *models.Assignment {
	var best *models.Assignment
	for _, a := range assignments {
		if !a.ActiveAt(t) {
			continue
		}
		if a.Type == models.AssignmentTypeDesk && a.DeskID == nil {
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

func (s *Service) deskByID(ctx context.Context, id uuid.UUID) (*models.Desk, error) {
	desks, err := s.store.ListDesks(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range desks {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, store.ErrDeskNotFound
}

// EndAssignment closes an assignment at the current instant.
func (s *Service) EndAssignment(ctx context.Context, id uuid.UUID) error {
	if err := s.store.EndAssignment(ctx, id, s.now()); err != nil {
		return err
	}
	s.metrics.AssignmentsEndedTotal.Add(ctx, 1)
	return nil
}

// CreateAssignmentRequest is the administrative single-assignment payload.
// Desk assignments name the desk by identifier; wfh assignments carry no
// desk.
type CreateAssignmentRequest struct {
	Type           string `json:"assignment_type" validate:"required,oneof=desk wfh"`
	DeskIdentifier string `json:"desk_identifier"`
	AssignmentData
}

// CreateAssignment creates one assignment outside the layout editor. Desk
// assignments run under the desk's row lock and close the assignee's
// conflicting assignments, keeping the new one.
func (s *Service) CreateAssignment(ctx context.Context, req *CreateAssignmentRequest) (*AssignmentPayload, error) {
	if err := validatePayload(req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.AssigneeName) == "" {
		return nil, fieldError("assignee_name", "Assignee name is required.")
	}

	start := startOr(req.Start, s.now())
	span, err := resolveSpan(req.DurationChoice, start, req.End)
	if err != nil {
		return nil, err
	}

	if req.Type == models.AssignmentTypeWFH {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generating assignment id: %w", err)
		}
		assignment := &models.Assignment{
			ID:           id,
			Type:         models.AssignmentTypeWFH,
			AssigneeName: strings.TrimSpace(req.AssigneeName),
			Span:         span,
			Note:         req.Note,
			CreatedBy:    req.CreatedBy,
			CreatedAt:    s.now(),
		}
		err = s.store.Mutate(ctx, nil, func(tx store.BatchTx) error {
			return tx.CreateAssignment(ctx, assignment)
		})
		if err != nil {
			return nil, err
		}
		s.metrics.AssignmentsCreatedTotal.Add(ctx, 1)
		return serializeAssignment(assignment, nil, "", nil), nil
	}

	if req.DeskIdentifier == "" {
		return nil, fieldError("desk_identifier", "Desk assignments require selecting a desk.")
	}
	desk, err := s.store.GetDesk(ctx, req.DeskIdentifier)
	if err != nil {
		return nil, err
	}

	var assignment *models.Assignment
	err = s.store.Mutate(ctx, []int{desk.Row}, func(tx store.BatchTx) error {
		desk, err = tx.DeskAt(ctx, desk.Row, desk.Column)
		if err != nil {
			return err
		}
		assignment, err = s.newAssignment(desk, &req.AssignmentData, span)
		if err != nil {
			return err
		}
		if err := tx.CreateAssignment(ctx, assignment); err != nil {
			return err
		}
		closed, err := tx.CloseActiveDeskAssignments(ctx, assignment.AssigneeName, span.Start, assignment.ID)
		if err != nil {
			return err
		}
		s.metrics.ConflictsClosedTotal.Add(ctx, int64(closed))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AssignmentsCreatedTotal.Add(ctx, 1)

	department, err := s.store.GetDepartment(ctx, desk.DepartmentID)
	if err != nil {
		return nil, err
	}
	zones, err := s.store.ZonesForDesk(ctx, desk.ID)
	if err != nil {
		return nil, err
	}
	return serializeAssignment(assignment, desk, department.Name, zoneNames(activeZones(zones, s.now()))), nil
}

// CreateBlockZoneRequest names the desks a zone covers by identifier.
type CreateBlockZoneRequest struct {
	BlockZoneData
	DeskIdentifiers []string `json:"desk_identifiers" validate:"required,min=1"`
}

// CreateBlockZone creates a zone over the named desks, outside the layout
// editor's cell-selection flow.
func (s *Service) CreateBlockZone(ctx context.Context, req *CreateBlockZoneRequest) (*models.BlockOutZone, error) {
	if err := validatePayload(req); err != nil {
		return nil, err
	}
	span, err := resolveSpan(req.DurationChoice, startOr(req.Start, s.now()), req.End)
	if err != nil {
		return nil, err
	}

	cells := make([]Cell, 0, len(req.DeskIdentifiers))
	deskIDs := make([]uuid.UUID, 0, len(req.DeskIdentifiers))
	for _, identifier := range req.DeskIdentifiers {
		desk, err := s.store.GetDesk(ctx, identifier)
		if err != nil {
			return nil, err
		}
		cells = append(cells, Cell{Row: desk.Row, Column: desk.Column})
		deskIDs = append(deskIDs, desk.ID)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating zone id: %w", err)
	}
	zone := &models.BlockOutZone{
		ID:        id,
		Name:      req.Name,
		Span:      span,
		DeskIDs:   deskIDs,
		Reason:    req.Reason,
		CreatedBy: req.CreatedBy,
		CreatedAt: s.now(),
	}

	err = s.store.Mutate(ctx, rowsTouched(cells), func(tx store.BatchTx) error {
		return tx.CreateBlockZone(ctx, zone)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ZonesCreatedTotal.Add(ctx, 1)
	return zone, nil
}

// DeleteBlockZone removes a zone and its desk associations. The desks stay.
func (s *Service) DeleteBlockZone(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteBlockZone(ctx, id); err != nil {
		return err
	}
	s.metrics.ZonesDeletedTotal.Add(ctx, 1)
	return nil
}

// ActiveAssignments lists every assignment active at the reference time,
// newest first.
func (s *Service) ActiveAssignments(ctx context.Context, at time.Time) ([]*models.Assignment, error) {
	if at.IsZero() {
		at = s.now()
	}
	assignments, err := s.store.ListAssignments(ctx)
	if err != nil {
		return nil, err
	}
	var active []*models.Assignment
	for _, a := range assignments {
		if a.ActiveAt(at) {
			active = append(active, a)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].Start.Equal(active[j].Start) {
			return active[i].Start.After(active[j].Start)
		}
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return active, nil
}

// ActiveBlockZones lists every zone active at the reference time, sorted by
// name.
func (s *Service) ActiveBlockZones(ctx context.Context, at time.Time) ([]*models.BlockOutZone, error) {
	if at.IsZero() {
		at = s.now()
	}
	zones, err := s.store.ListBlockZones(ctx)
	if err != nil {
		return nil, err
	}
	return activeZones(zones, at), nil
}
