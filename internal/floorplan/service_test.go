package floorplan

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/seatwise/floorplan/internal/layout"
	"github.com/seatwise/floorplan/internal/models"
	"github.com/seatwise/floorplan/internal/store"
	memorystore "github.com/seatwise/floorplan/internal/store/memory"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	service *Service
	store   *memorystore.FloorStore

	engineering *models.Department
	walkway     *models.Department
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memorystore.NewFloorStore()
	require.NoError(t, st.Start())
	t.Cleanup(func() { _ = st.Stop() })

	f := &fixture{
		service: NewService(st, layout.Default(), func() time.Time { return testNow }),
		store:   st,
		engineering: &models.Department{
			ID: uuid.New(), Name: "Engineering", Color: "#336699",
		},
		walkway: &models.Department{
			ID: uuid.New(), Name: models.DepartmentWalkway, Color: "#cccccc",
		},
	}
	ctx := context.Background()
	require.NoError(t, st.CreateDepartment(ctx, f.engineering))
	require.NoError(t, st.CreateDepartment(ctx, f.walkway))
	return f
}

func (f *fixture) addDesk(t *testing.T, row, column int, departmentID uuid.UUID, label string) *models.Desk {
	t.Helper()
	identifier := layout.CellIdentifier(row, column)
	desk := &models.Desk{
		ID:           uuid.New(),
		Identifier:   identifier,
		Label:        label,
		DepartmentID: departmentID,
		Row:          row,
		Column:       column,
		RowSpan:      1,
		ColumnSpan:   1,
	}
	err := f.store.Mutate(context.Background(), []int{row}, func(tx store.BatchTx) error {
		return tx.CreateDesk(context.Background(), desk)
	})
	require.NoError(t, err)
	return desk
}

func (f *fixture) addAssignment(t *testing.T, desk *models.Desk, name string, span models.Span) *models.Assignment {
	t.Helper()
	deskID := desk.ID
	assignment := &models.Assignment{
		ID:           uuid.New(),
		DeskID:       &deskID,
		Type:         models.AssignmentTypeDesk,
		AssigneeName: name,
		Span:         span,
		CreatedAt:    testNow,
	}
	err := f.store.Mutate(context.Background(), []int{desk.Row}, func(tx store.BatchTx) error {
		return tx.CreateAssignment(context.Background(), assignment)
	})
	require.NoError(t, err)
	return assignment
}

func (f *fixture) addZone(t *testing.T, name string, span models.Span, desks ...*models.Desk) *models.BlockOutZone {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(desks))
	for _, d := range desks {
		ids = append(ids, d.ID)
	}
	zone := &models.BlockOutZone{
		ID:      uuid.New(),
		Name:    name,
		Span:    span,
		DeskIDs: ids,
	}
	err := f.store.Mutate(context.Background(), nil, func(tx store.BatchTx) error {
		return tx.CreateBlockZone(context.Background(), zone)
	})
	require.NoError(t, err)
	return zone
}

func TestProjectDeskStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("free desk", func(t *testing.T) {
		f := newFixture(t)
		desk := f.addDesk(t, 1, 1, f.engineering.ID, "Desk A")

		payload, err := f.service.ProjectDesk(ctx, desk.Identifier, time.Time{})
		require.NoError(t, err)
		require.Equal(t, StatusFree, payload.Status)
		require.False(t, payload.IsBlocked)
		require.Nil(t, payload.Assignment)
		require.True(t, payload.IsAssignable)
		require.Equal(t, "Engineering", payload.Department)
	})

	t.Run("occupied desk", func(t *testing.T) {
		f := newFixture(t)
		desk := f.addDesk(t, 1, 1, f.engineering.ID, "Desk A")
		f.addAssignment(t, desk, "Jane Doe", models.Span{Start: testNow.Add(-time.Hour)})

		payload, err := f.service.ProjectDesk(ctx, desk.Identifier, time.Time{})
		require.NoError(t, err)
		require.Equal(t, StatusOccupied, payload.Status)
		require.NotNil(t, payload.Assignment)
		require.Equal(t, "Jane Doe", payload.Assignment.Assignee)
		require.Equal(t, "Desk A", payload.Assignment.Desk)
	})

	t.Run("blocked dominates occupied", func(t *testing.T) {
		f := newFixture(t)
		desk := f.addDesk(t, 1, 1, f.engineering.ID, "Desk A")
		f.addAssignment(t, desk, "Jane Doe", models.Span{Start: testNow.Add(-time.Hour)})
		f.addZone(t, "Renovation", models.Span{Start: testNow.Add(-time.Hour)}, desk)

		payload, err := f.service.ProjectDesk(ctx, desk.Identifier, time.Time{})
		require.NoError(t, err)
		require.Equal(t, StatusBlocked, payload.Status)
		require.True(t, payload.IsBlocked)
		require.Equal(t, []string{"Renovation"}, payload.BlockZones)
		// The assignment is still reported underneath the block.
		require.NotNil(t, payload.Assignment)
	})

	t.Run("assignment ending exactly now is still active", func(t *testing.T) {
		f := newFixture(t)
		desk := f.addDesk(t, 1, 1, f.engineering.ID, "Desk A")
		end := testNow
		f.addAssignment(t, desk, "Jane Doe", models.Span{Start: testNow.Add(-time.Hour), End: &end})

		payload, err := f.service.ProjectDesk(ctx, desk.Identifier, time.Time{})
		require.NoError(t, err)
		require.Equal(t, StatusOccupied, payload.Status)
	})

	t.Run("expired assignment leaves desk free", func(t *testing.T) {
		f := newFixture(t)
		desk := f.addDesk(t, 1, 1, f.engineering.ID, "Desk A")
		end := testNow.Add(-time.Second)
		f.addAssignment(t, desk, "Jane Doe", models.Span{Start: testNow.Add(-time.Hour), End: &end})

		payload, err := f.service.ProjectDesk(ctx, desk.Identifier, time.Time{})
		require.NoError(t, err)
		require.Equal(t, StatusFree, payload.Status)
	})

	t.Run("walkway desk is not assignable", func(t *testing.T) {
		f := newFixture(t)
		desk := f.addDesk(t, 2, 2, f.walkway.ID, "Corridor")

		payload, err := f.service.ProjectDesk(ctx, desk.Identifier, time.Time{})
		require.NoError(t, err)
		require.False(t, payload.IsAssignable)
	})

	t.Run("kiosk overrides reserved department", func(t *testing.T) {
		f := newFixture(t)
		desk := f.addDesk(t, 2, 3, f.walkway.ID, "Check-in Kiosk")

		payload, err := f.service.ProjectDesk(ctx, desk.Identifier, time.Time{})
		require.NoError(t, err)
		require.True(t, payload.IsKiosk)
		require.True(t, payload.IsAssignable)
	})

	t.Run("future reference time sees future zone", func(t *testing.T) {
		f := newFixture(t)
		desk := f.addDesk(t, 1, 1, f.engineering.ID, "Desk A")
		f.addZone(t, "Next week works", models.Span{Start: testNow.Add(72 * time.Hour)}, desk)

		payload, err := f.service.ProjectDesk(ctx, desk.Identifier, time.Time{})
		require.NoError(t, err)
		require.Equal(t, StatusFree, payload.Status)

		payload, err = f.service.ProjectDesk(ctx, desk.Identifier, testNow.Add(96*time.Hour))
		require.NoError(t, err)
		require.Equal(t, StatusBlocked, payload.Status)
	})
}

func TestProjectDeskGeometry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	desk := f.addDesk(t, 3, 14, f.engineering.ID, "Desk A")

	payload, err := f.service.ProjectDesk(ctx, desk.Identifier, time.Time{})
	require.NoError(t, err)

	require.InDelta(t, 13.0*100.0/30.0, payload.Geometry.Left, 1e-9)
	require.InDelta(t, 2.0*100.0/13.0, payload.Geometry.Top, 1e-9)
	require.NotEmpty(t, payload.Style.Left)
	require.NotEmpty(t, payload.Style.Width)
}

func TestActiveAssignmentTieBreak(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	desk := f.addDesk(t, 1, 1, f.engineering.ID, "Desk A")

	older := f.addAssignment(t, desk, "Jane Doe", models.Span{Start: testNow.Add(-2 * time.Hour)})
	newer := f.addAssignment(t, desk, "John Smith", models.Span{Start: testNow.Add(-time.Hour)})
	_ = older

	payload, err := f.service.ProjectDesk(ctx, desk.Identifier, time.Time{})
	require.NoError(t, err)
	require.Equal(t, newer.ID.String(), payload.Assignment.ID)
}

func TestProjectFloor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addDesk(t, 1, 1, f.engineering.ID, "Desk A")
	f.addDesk(t, 2, 1, f.engineering.ID, "Desk B")
	desk := f.addDesk(t, 3, 1, f.engineering.ID, "Desk C")
	f.addAssignment(t, desk, "Jane Doe", models.Span{Start: testNow.Add(-time.Hour)})

	payloads, err := f.service.ProjectFloor(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, payloads, 3)

	occupied := 0
	for _, p := range payloads {
		if p.Status == StatusOccupied {
			occupied++
		}
	}
	require.Equal(t, 1, occupied)
}

func TestResolveOccupancy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	desk := f.addDesk(t, 1, 1, f.engineering.ID, "Desk A")
	assignment := f.addAssignment(t, desk, "Jane Doe", models.Span{Start: testNow.Add(-time.Hour)})
	f.addZone(t, "Renovation", models.Span{Start: testNow.Add(-time.Hour)}, desk)

	occupancy, err := f.service.ResolveOccupancy(ctx, desk.Identifier, testNow)
	require.NoError(t, err)
	require.NotNil(t, occupancy.Assignment)
	require.Equal(t, assignment.ID, occupancy.Assignment.ID)
	require.Len(t, occupancy.BlockingZones, 1)

	_, err = f.service.ResolveOccupancy(ctx, "no-such-desk", testNow)
	require.ErrorIs(t, err, store.ErrDeskNotFound)
}
