package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/seatwise/floorplan/internal/models"
	"github.com/seatwise/floorplan/internal/store"
)

func newTestStore(t *testing.T) *FloorStore {
	t.Helper()
	s := NewFloorStore()
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func createDesk(t *testing.T, s *FloorStore, identifier string, row, column int, departmentID uuid.UUID) *models.Desk {
	t.Helper()
	desk := &models.Desk{
		ID:           uuid.New(),
		Identifier:   identifier,
		Label:        identifier,
		DepartmentID: departmentID,
		Row:          row,
		Column:       column,
		RowSpan:      1,
		ColumnSpan:   1,
	}
	err := s.Mutate(context.Background(), []int{row}, func(tx store.BatchTx) error {
		return tx.CreateDesk(context.Background(), desk)
	})
	require.NoError(t, err)
	return desk
}

func TestDepartmentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	department := &models.Department{ID: uuid.New(), Name: "Engineering", Color: "#336699"}
	require.NoError(t, s.CreateDepartment(ctx, department))

	t.Run("get by id", func(t *testing.T) {
		got, err := s.GetDepartment(ctx, department.ID)
		require.NoError(t, err)
		require.Equal(t, "Engineering", got.Name)
	})

	t.Run("get by name", func(t *testing.T) {
		got, err := s.GetDepartmentByName(ctx, "Engineering")
		require.NoError(t, err)
		require.Equal(t, department.ID, got.ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.GetDepartment(ctx, uuid.New())
		require.ErrorIs(t, err, store.ErrDepartmentNotFound)
	})

	t.Run("clone on read", func(t *testing.T) {
		got, err := s.GetDepartment(ctx, department.ID)
		require.NoError(t, err)
		got.Name = "Mutated"

		again, err := s.GetDepartment(ctx, department.ID)
		require.NoError(t, err)
		require.Equal(t, "Engineering", again.Name)
	})
}

func TestDeskCellUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	departmentID := uuid.New()

	createDesk(t, s, "cell-r01c01", 1, 1, departmentID)

	err := s.Mutate(ctx, []int{1}, func(tx store.BatchTx) error {
		return tx.CreateDesk(ctx, &models.Desk{
			ID: uuid.New(), Identifier: "other", Row: 1, Column: 1,
		})
	})
	require.ErrorIs(t, err, store.ErrCellOccupied)
}

func TestMutateAtomicity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	departmentID := uuid.New()

	boom := errors.New("boom")
	err := s.Mutate(ctx, []int{1, 2}, func(tx store.BatchTx) error {
		require.NoError(t, tx.CreateDesk(ctx, &models.Desk{
			ID: uuid.New(), Identifier: "cell-r01c05", DepartmentID: departmentID, Row: 1, Column: 5,
		}))
		require.NoError(t, tx.CreateDesk(ctx, &models.Desk{
			ID: uuid.New(), Identifier: "cell-r02c05", DepartmentID: departmentID, Row: 2, Column: 5,
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Nothing from the failed batch is visible.
	desks, err := s.ListDesks(ctx)
	require.NoError(t, err)
	require.Empty(t, desks)
}

func TestMutateReadsSeeOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.Mutate(ctx, []int{4}, func(tx store.BatchTx) error {
		desk := &models.Desk{ID: uuid.New(), Identifier: "cell-r04c04", Row: 4, Column: 4}
		if err := tx.CreateDesk(ctx, desk); err != nil {
			return err
		}
		got, err := tx.DeskAt(ctx, 4, 4)
		if err != nil {
			return err
		}
		require.Equal(t, desk.ID, got.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteDeskCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	desk := createDesk(t, s, "cell-r02c02", 2, 2, uuid.New())
	other := createDesk(t, s, "cell-r02c03", 2, 3, uuid.New())

	deskID := desk.ID
	assignment := &models.Assignment{
		ID:           uuid.New(),
		DeskID:       &deskID,
		Type:         models.AssignmentTypeDesk,
		AssigneeName: "Jane Doe",
		Span:         models.Span{Start: time.Now()},
	}
	zone := &models.BlockOutZone{
		ID:      uuid.New(),
		Name:    "North wing",
		Span:    models.Span{Start: time.Now()},
		DeskIDs: []uuid.UUID{desk.ID, other.ID},
	}
	err := s.Mutate(ctx, []int{2}, func(tx store.BatchTx) error {
		if err := tx.CreateAssignment(ctx, assignment); err != nil {
			return err
		}
		return tx.CreateBlockZone(ctx, zone)
	})
	require.NoError(t, err)

	err = s.Mutate(ctx, []int{2}, func(tx store.BatchTx) error {
		return tx.DeleteDesk(ctx, desk.ID)
	})
	require.NoError(t, err)

	_, err = s.GetDesk(ctx, "cell-r02c02")
	require.ErrorIs(t, err, store.ErrDeskNotFound)

	_, err = s.GetAssignment(ctx, assignment.ID)
	require.ErrorIs(t, err, store.ErrAssignmentNotFound)

	// The zone survives, minus the deleted desk.
	zones, err := s.ListBlockZones(ctx)
	require.NoError(t, err)
	require.Len(t, zones, 1)
	require.Equal(t, []uuid.UUID{other.ID}, zones[0].DeskIDs)
}

func TestCloseActiveDeskAssignments(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	pastEnd := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	s := newTestStore(t)
	desk := createDesk(t, s, "cell-r01c01", 1, 1, uuid.New())
	deskID := desk.ID

	mkAssignment := func(name string, span models.Span) *models.Assignment {
		return &models.Assignment{
			ID:           uuid.New(),
			DeskID:       &deskID,
			Type:         models.AssignmentTypeDesk,
			AssigneeName: name,
			Span:         span,
		}
	}

	open := mkAssignment("Jane Doe", models.Span{Start: past})
	permanent := mkAssignment("jane doe", models.Span{Start: past, IsPermanent: true})
	expired := mkAssignment("Jane Doe", models.Span{Start: past, End: &pastEnd})
	futureOpen := mkAssignment("JANE DOE", models.Span{Start: future})
	someoneElse := mkAssignment("John Smith", models.Span{Start: past})
	wfh := &models.Assignment{
		ID:           uuid.New(),
		Type:         models.AssignmentTypeWFH,
		AssigneeName: "Jane Doe",
		Span:         models.Span{Start: past},
	}

	var closed int
	err := s.Mutate(ctx, []int{1}, func(tx store.BatchTx) error {
		for _, a := range []*models.Assignment{open, permanent, expired, futureOpen, someoneElse, wfh} {
			if err := tx.CreateAssignment(ctx, a); err != nil {
				return err
			}
		}
		var err error
		closed, err = tx.CloseActiveDeskAssignments(ctx, "Jane Doe", now, uuid.Nil)
		return err
	})
	require.NoError(t, err)

	// Open, permanent and future-dated open claims close; the already
	// expired one, the other person's and the wfh record do not.
	require.Equal(t, 3, closed)

	for _, id := range []uuid.UUID{open.ID, permanent.ID, futureOpen.ID} {
		got, err := s.GetAssignment(ctx, id)
		require.NoError(t, err)
		require.False(t, got.IsPermanent)
		require.NotNil(t, got.End)
		require.Equal(t, now, *got.End)
	}

	untouched, err := s.GetAssignment(ctx, someoneElse.ID)
	require.NoError(t, err)
	require.Nil(t, untouched.End)
}

func TestCloseActiveDeskAssignmentsExcept(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	s := newTestStore(t)
	desk := createDesk(t, s, "cell-r01c01", 1, 1, uuid.New())
	deskID := desk.ID

	keep := &models.Assignment{
		ID: uuid.New(), DeskID: &deskID, Type: models.AssignmentTypeDesk,
		AssigneeName: "Jane Doe", Span: models.Span{Start: now},
	}
	stale := &models.Assignment{
		ID: uuid.New(), DeskID: &deskID, Type: models.AssignmentTypeDesk,
		AssigneeName: "Jane Doe", Span: models.Span{Start: now.Add(-time.Hour)},
	}

	err := s.Mutate(ctx, []int{1}, func(tx store.BatchTx) error {
		if err := tx.CreateAssignment(ctx, keep); err != nil {
			return err
		}
		if err := tx.CreateAssignment(ctx, stale); err != nil {
			return err
		}
		closed, err := tx.CloseActiveDeskAssignments(ctx, "Jane Doe", now, keep.ID)
		require.Equal(t, 1, closed)
		return err
	})
	require.NoError(t, err)

	kept, err := s.GetAssignment(ctx, keep.ID)
	require.NoError(t, err)
	require.Nil(t, kept.End)
}

func TestEndAssignment(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := newTestStore(t)

	require.ErrorIs(t, s.EndAssignment(ctx, uuid.New(), now), store.ErrAssignmentNotFound)

	assignment := &models.Assignment{
		ID: uuid.New(), Type: models.AssignmentTypeWFH,
		AssigneeName: "Jane Doe", Span: models.Span{Start: now, IsPermanent: true},
	}
	err := s.Mutate(ctx, nil, func(tx store.BatchTx) error {
		return tx.CreateAssignment(ctx, assignment)
	})
	require.NoError(t, err)

	require.NoError(t, s.EndAssignment(ctx, assignment.ID, now))

	got, err := s.GetAssignment(ctx, assignment.ID)
	require.NoError(t, err)
	require.False(t, got.IsPermanent)
	require.NotNil(t, got.End)
}

func TestAssignmentsForAssigneeCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	assignment := &models.Assignment{
		ID: uuid.New(), Type: models.AssignmentTypeWFH,
		AssigneeName: "Jane Doe", Span: models.Span{Start: time.Now()},
	}
	err := s.Mutate(ctx, nil, func(tx store.BatchTx) error {
		return tx.CreateAssignment(ctx, assignment)
	})
	require.NoError(t, err)

	got, err := s.AssignmentsForAssignee(ctx, "jane doe")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestDeleteBlockZone(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	desk := createDesk(t, s, "cell-r01c01", 1, 1, uuid.New())

	zone := &models.BlockOutZone{
		ID: uuid.New(), Name: "Renovation",
		Span:    models.Span{Start: time.Now()},
		DeskIDs: []uuid.UUID{desk.ID},
	}
	err := s.Mutate(ctx, []int{1}, func(tx store.BatchTx) error {
		return tx.CreateBlockZone(ctx, zone)
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteBlockZone(ctx, zone.ID))
	require.ErrorIs(t, s.DeleteBlockZone(ctx, zone.ID), store.ErrBlockZoneNotFound)

	// The desk is untouched.
	_, err = s.GetDesk(ctx, "cell-r01c01")
	require.NoError(t, err)
}
