package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seatwise/floorplan/internal/layout"
	memorystore "github.com/seatwise/floorplan/internal/store/memory"
)

const testSeed = `departments:
  - name: Engineering
    color: "#336699"
    description: Product engineering
  - name: Walkway
    color: "#cccccc"
desks:
  - department: Engineering
    row: 1
    column: 1
  - identifier: window-desk
    label: Window Desk
    department: Engineering
    row: 2
    column: 5
    row_span: 1
    column_span: 2
`

func writeSeed(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	st := memorystore.NewFloorStore()
	grid := layout.Default()

	result, err := Seed(ctx, st, grid, writeSeed(t, testSeed))
	require.NoError(t, err)
	require.Equal(t, 2, result.DepartmentsCreated)
	require.Equal(t, 2, result.DesksCreated)

	t.Run("default identifier from cell", func(t *testing.T) {
		desk, err := st.GetDesk(ctx, "cell-r01c01")
		require.NoError(t, err)
		require.Equal(t, "cell-r01c01", desk.Label)
		require.Equal(t, 1, desk.RowSpan)
	})

	t.Run("explicit identifier and span", func(t *testing.T) {
		desk, err := st.GetDesk(ctx, "window-desk")
		require.NoError(t, err)
		require.Equal(t, "Window Desk", desk.Label)
		require.Equal(t, 2, desk.ColumnSpan)
		require.InDelta(t, 2.0*grid.CellWidth(), desk.WidthPercent, 1e-9)
	})

	t.Run("re-running is a no-op", func(t *testing.T) {
		again, err := Seed(ctx, st, grid, writeSeed(t, testSeed))
		require.NoError(t, err)
		require.Equal(t, 0, again.DepartmentsCreated)
		require.Equal(t, 0, again.DesksCreated)
	})
}

func TestSeedUnknownDepartment(t *testing.T) {
	seed := "desks:\n  - department: Ghost\n    row: 1\n    column: 1\n"
	st := memorystore.NewFloorStore()

	_, err := Seed(context.Background(), st, layout.Default(), writeSeed(t, seed))
	require.ErrorContains(t, err, "unknown department")
}

func TestSeedOutOfBounds(t *testing.T) {
	seed := "departments:\n  - name: Engineering\ndesks:\n  - department: Engineering\n    row: 99\n    column: 1\n"
	st := memorystore.NewFloorStore()

	_, err := Seed(context.Background(), st, layout.Default(), writeSeed(t, seed))
	require.ErrorContains(t, err, "outside")
}
