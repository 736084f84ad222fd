package floorplan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/seatwise/floorplan/internal/layout"
	"github.com/seatwise/floorplan/internal/models"
	"github.com/seatwise/floorplan/internal/store"
)

// batchOutcome accumulates what a batch changed inside the transaction so
// the result can be projected after commit.
type batchOutcome struct {
	touched []string // desk identifiers to project
	cleared []Cell
	message string

	desksCreated       int64
	desksUpdated       int64
	desksCleared       int64
	assignmentsCreated int64
	conflictsClosed    int64
	zonesCreated       int64
}

// ApplyLayoutBatch applies one atomic multi-cell mutation. Validation happens
// before the transaction opens, so a rejected batch never touches the store.
// On success every affected desk is re-projected and returned.
func (s *Service) ApplyLayoutBatch(ctx context.Context, req *BatchRequest) (*BatchResult, error) {
	started := s.now()

	cells, err := s.normalizeCells(req.Cells)
	if err != nil {
		return nil, err
	}
	if err := s.validateBatch(req); err != nil {
		return nil, err
	}

	outcome := &batchOutcome{}

	err = s.store.Mutate(ctx, rowsTouched(cells), func(tx store.BatchTx) error {
		switch req.Action {
		case ActionAssign:
			return s.applyAssign(ctx, tx, cells, req.Layout, outcome)
		case ActionClear:
			return s.applyClear(ctx, tx, cells, outcome)
		case ActionBlock:
			return s.applyBlockZone(ctx, tx, cells, req.BlockZone, outcome)
		case ActionAssignment:
			return s.applyAssignment(ctx, tx, cells, req.Assignment, outcome)
		default:
			return validationf("unknown action %q", req.Action)
		}
	})
	if err != nil {
		s.metrics.BatchesFailedTotal.Add(ctx, 1)
		return nil, err
	}

	s.recordBatchMetrics(ctx, started, outcome)

	result := &BatchResult{
		Updated: make([]*DeskPayload, 0, len(outcome.touched)),
		Cleared: outcome.cleared,
		Message: outcome.message,
	}
	if result.Cleared == nil {
		result.Cleared = []Cell{}
	}

	at := s.now()
	for _, identifier := range outcome.touched {
		payload, err := s.ProjectDesk(ctx, identifier, at)
		if err != nil {
			// The batch has already committed; a desk that cannot be read
			// back is dropped from the response rather than failing the call.
			log.Warn().Err(err).Str("identifier", identifier).
				Msg("desk not readable after batch commit")
			continue
		}
		result.Updated = append(result.Updated, payload)
	}

	log.Info().
		Str("action", string(req.Action)).
		Int("cells", len(cells)).
		Int("updated", len(result.Updated)).
		Int("cleared", len(result.Cleared)).
		Msg("layout batch applied")

	return result, nil
}

// normalizeCells deduplicates the requested cells preserving first-seen order
// and rejects anything outside the grid.
func (s *Service) normalizeCells(cells []Cell) ([]Cell, error) {
	if len(cells) == 0 {
		return nil, validationf("No cells selected.")
	}
	seen := make(map[Cell]struct{}, len(cells))
	normalized := make([]Cell, 0, len(cells))
	for _, c := range cells {
		if !s.grid.Contains(c.Row, c.Column) {
			return nil, validationf("Cell (%d, %d) is outside the floor grid.", c.Row, c.Column)
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		normalized = append(normalized, c)
	}
	return normalized, nil
}

// validateBatch checks that the payload matching the action is present and
// well formed.
func (s *Service) validateBatch(req *BatchRequest) error {
	switch req.Action {
	case ActionAssign:
		if req.Layout == nil {
			return validationf("Missing layout data.")
		}
		return validatePayload(req.Layout)
	case ActionClear:
		return nil
	case ActionBlock:
		if req.BlockZone == nil {
			return validationf("Missing block-out zone data.")
		}
		return validatePayload(req.BlockZone)
	case ActionAssignment:
		if req.Assignment == nil {
			return validationf("Missing assignment data.")
		}
		if strings.TrimSpace(req.Assignment.AssigneeName) == "" {
			return fieldError("assignee_name", "Assignee name is required.")
		}
		return validatePayload(req.Assignment)
	default:
		return validationf("unknown action %q", req.Action)
	}
}

// rowsTouched returns the distinct grid rows of the batch in ascending
// order, the order Mutate acquires row locks in.
func rowsTouched(cells []Cell) []int {
	seen := make(map[int]struct{}, len(cells))
	rows := make([]int, 0, len(cells))
	for _, c := range cells {
		if _, ok := seen[c.Row]; ok {
			continue
		}
		seen[c.Row] = struct{}{}
		rows = append(rows, c.Row)
	}
	sort.Ints(rows)
	return rows
}

// applyAssign creates or updates one desk per cell. New desks get the
// predictable cell identifier and a 1x1 span; existing desks are re-pointed
// at the department in place, keeping their identifier and history. A blank
// label never overwrites an existing one. When the payload embeds an
// assignment with an assignee, the same batch also assigns the touched
// desks.
func (s *Service) applyAssign(ctx context.Context, tx store.BatchTx, cells []Cell, data *LayoutData, outcome *batchOutcome) error {
	departmentID, err := uuid.Parse(data.Department)
	if err != nil {
		return fieldError("department", "Invalid department reference.")
	}
	department, err := tx.DepartmentByID(ctx, departmentID)
	if err != nil {
		if errors.Is(err, store.ErrDepartmentNotFound) {
			return fieldError("department", "Unknown department.")
		}
		return err
	}

	for _, cell := range cells {
		desk, err := tx.DeskAt(ctx, cell.Row, cell.Column)
		switch {
		case errors.Is(err, store.ErrDeskNotFound):
			desk, err = s.createDeskAt(ctx, tx, cell, departmentID, data)
			if err != nil {
				return err
			}
			outcome.desksCreated++
		case err != nil:
			return err
		default:
			s.updateDeskInPlace(desk, departmentID, data)
			if err := tx.UpdateDesk(ctx, desk); err != nil {
				return err
			}
			outcome.desksUpdated++
		}
		outcome.touched = append(outcome.touched, desk.Identifier)
	}

	outcome.message = fmt.Sprintf("Assigned %d cell(s) to %s.", len(cells), department.Name)

	if data.Assignment != nil && strings.TrimSpace(data.Assignment.AssigneeName) != "" {
		if err := s.applyAssignmentToCells(ctx, tx, cells, data.Assignment, outcome); err != nil {
			return err
		}
		outcome.message = fmt.Sprintf("%s Assigned %s.", outcome.message, data.Assignment.AssigneeName)
	}

	return nil
}

func (s *Service) createDeskAt(ctx context.Context, tx store.BatchTx, cell Cell, departmentID uuid.UUID, data *LayoutData) (*models.Desk, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating desk id: %w", err)
	}
	identifier := layout.CellIdentifier(cell.Row, cell.Column)
	label := data.Label
	if label == "" {
		label = identifier
	}
	desk := &models.Desk{
		ID:           id,
		Identifier:   identifier,
		Label:        label,
		DepartmentID: departmentID,
		Row:          cell.Row,
		Column:       cell.Column,
		RowSpan:      1,
		ColumnSpan:   1,
		FillColor:    data.FillColor,
		Notes:        data.Notes,
	}
	s.applyGeometry(desk)
	if err := tx.CreateDesk(ctx, desk); err != nil {
		return nil, err
	}
	return desk, nil
}

func (s *Service) updateDeskInPlace(desk *models.Desk, departmentID uuid.UUID, data *LayoutData) {
	desk.DepartmentID = departmentID
	if data.Label != "" {
		desk.Label = data.Label
	}
	desk.FillColor = data.FillColor
	desk.Notes = data.Notes
	// Layout edits address single cells, so any previous span collapses.
	desk.RowSpan = 1
	desk.ColumnSpan = 1
	s.applyGeometry(desk)
}

func (s *Service) applyGeometry(desk *models.Desk) {
	rect := s.grid.CellRect(desk.Row, desk.Column, desk.RowSpan, desk.ColumnSpan)
	desk.LeftPercent = rect.Left
	desk.TopPercent = rect.Top
	desk.WidthPercent = rect.Width
	desk.HeightPercent = rect.Height
}

// applyClear removes the desk at each cell, cascading assignments and zone
// associations. Empty cells are skipped without error so sweeping a region
// clean is idempotent.
func (s *Service) applyClear(ctx context.Context, tx store.BatchTx, cells []Cell, outcome *batchOutcome) error {
	for _, cell := range cells {
		desk, err := tx.DeskAt(ctx, cell.Row, cell.Column)
		if errors.Is(err, store.ErrDeskNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := tx.DeleteDesk(ctx, desk.ID); err != nil {
			return err
		}
		outcome.cleared = append(outcome.cleared, cell)
		outcome.desksCleared++
	}
	outcome.message = fmt.Sprintf("Cleared %d desk(s).", len(outcome.cleared))
	return nil
}

// applyBlockZone creates one zone covering every existing desk in the
// selection. A selection with no desks at all is rejected.
func (s *Service) applyBlockZone(ctx context.Context, tx store.BatchTx, cells []Cell, data *BlockZoneData, outcome *batchOutcome) error {
	span, err := resolveSpan(data.DurationChoice, startOr(data.Start, s.now()), data.End)
	if err != nil {
		return err
	}

	var deskIDs []uuid.UUID
	for _, cell := range cells {
		desk, err := tx.DeskAt(ctx, cell.Row, cell.Column)
		if errors.Is(err, store.ErrDeskNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		deskIDs = append(deskIDs, desk.ID)
		outcome.touched = append(outcome.touched, desk.Identifier)
	}
	if len(deskIDs) == 0 {
		return validationf("No desks in the selected cells to block out.")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating zone id: %w", err)
	}
	zone := &models.BlockOutZone{
		ID:        id,
		Name:      data.Name,
		Span:      span,
		DeskIDs:   deskIDs,
		Reason:    data.Reason,
		CreatedBy: data.CreatedBy,
		CreatedAt: s.now(),
	}
	if err := tx.CreateBlockZone(ctx, zone); err != nil {
		return err
	}
	outcome.zonesCreated++
	outcome.message = fmt.Sprintf("Created block-out zone %s covering %d desk(s).", zone.Name, len(deskIDs))
	return nil
}

// applyAssignment assigns one person to every eligible desk in the
// selection. Cells without a desk are skipped; desks that are not
// assignable (reserved departments without the kiosk override) are
// excluded. The assignee's conflicting assignments are closed once, before
// any new assignment is written, so the batch's own assignments never close
// each other.
func (s *Service) applyAssignment(ctx context.Context, tx store.BatchTx, cells []Cell, data *AssignmentData, outcome *batchOutcome) error {
	if err := s.applyAssignmentToCells(ctx, tx, cells, data, outcome); err != nil {
		return err
	}
	outcome.message = fmt.Sprintf("Assigned %s to %d desk(s).", data.AssigneeName, outcome.assignmentsCreated)
	return nil
}

func (s *Service) applyAssignmentToCells(ctx context.Context, tx store.BatchTx, cells []Cell, data *AssignmentData, outcome *batchOutcome) error {
	start := startOr(data.Start, s.now())
	span, err := resolveSpan(data.DurationChoice, start, data.End)
	if err != nil {
		return err
	}

	var desks []*models.Desk
	for _, cell := range cells {
		desk, err := tx.DeskAt(ctx, cell.Row, cell.Column)
		if errors.Is(err, store.ErrDeskNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		eligible, err := s.assignable(ctx, tx, desk)
		if err != nil {
			return err
		}
		if !eligible {
			continue
		}
		desks = append(desks, desk)
	}
	if len(desks) == 0 {
		return validationf("No assignable desks in the selected cells.")
	}

	closed, err := tx.CloseActiveDeskAssignments(ctx, data.AssigneeName, start, uuid.Nil)
	if err != nil {
		return err
	}
	outcome.conflictsClosed += int64(closed)

	for _, desk := range desks {
		assignment, err := s.newAssignment(desk, data, span)
		if err != nil {
			return err
		}
		if err := tx.CreateAssignment(ctx, assignment); err != nil {
			return err
		}
		outcome.assignmentsCreated++
		if !containsString(outcome.touched, desk.Identifier) {
			outcome.touched = append(outcome.touched, desk.Identifier)
		}
	}
	return nil
}

func (s *Service) assignable(ctx context.Context, tx store.BatchTx, desk *models.Desk) (bool, error) {
	if desk.IsKiosk() {
		return true, nil
	}
	department, err := tx.DepartmentByID(ctx, desk.DepartmentID)
	if err != nil {
		return false, err
	}
	return department.Assignable(), nil
}

func (s *Service) newAssignment(desk *models.Desk, data *AssignmentData, span models.Span) (*models.Assignment, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating assignment id: %w", err)
	}
	deskID := desk.ID
	return &models.Assignment{
		ID:           id,
		DeskID:       &deskID,
		Type:         models.AssignmentTypeDesk,
		AssigneeName: strings.TrimSpace(data.AssigneeName),
		Span:         span,
		Note:         data.Note,
		CreatedBy:    data.CreatedBy,
		CreatedAt:    s.now(),
	}, nil
}

func (s *Service) recordBatchMetrics(ctx context.Context, started time.Time, outcome *batchOutcome) {
	s.metrics.BatchesAppliedTotal.Add(ctx, 1)
	s.metrics.BatchApplyDuration.Record(ctx, float64(s.now().Sub(started).Milliseconds()))
	s.metrics.DesksCreatedTotal.Add(ctx, outcome.desksCreated)
	s.metrics.DesksUpdatedTotal.Add(ctx, outcome.desksUpdated)
	s.metrics.DesksClearedTotal.Add(ctx, outcome.desksCleared)
	s.metrics.AssignmentsCreatedTotal.Add(ctx, outcome.assignmentsCreated)
	s.metrics.ConflictsClosedTotal.Add(ctx, outcome.conflictsClosed)
	s.metrics.ZonesCreatedTotal.Add(ctx, outcome.zonesCreated)
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
