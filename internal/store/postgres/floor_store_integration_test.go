//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/seatwise/floorplan/internal/models"
	"github.com/seatwise/floorplan/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*FloorStore, func()) {
	// Start postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	// Create store with auto-migrate enabled
	cfg := &Config{
		ConnString:  connString,
		AutoMigrate: true,
	}

	floorStore, err := NewFloorStore(ctx, cfg)
	require.NoError(t, err)

	err = floorStore.Start()
	require.NoError(t, err)

	cleanup := func() {
		floorStore.Stop()
		_ = container.Terminate(ctx)
	}

	return floorStore, cleanup
}

func TestIntegration_FloorLifecycle(t *testing.T) {
	ctx := context.Background()
	floorStore, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	department := &models.Department{ID: uuid.New(), Name: "Engineering", Color: "#336699"}
	require.NoError(t, floorStore.CreateDepartment(ctx, department))

	var desk *models.Desk

	t.Run("create desk in batch", func(t *testing.T) {
		desk = &models.Desk{
			ID:           uuid.New(),
			Identifier:   "cell-r01c01",
			Label:        "Desk A",
			DepartmentID: department.ID,
			Row:          1,
			Column:       1,
			RowSpan:      1,
			ColumnSpan:   1,
		}
		err := floorStore.Mutate(ctx, []int{1}, func(tx store.BatchTx) error {
			return tx.CreateDesk(ctx, desk)
		})
		require.NoError(t, err)

		got, err := floorStore.GetDesk(ctx, "cell-r01c01")
		require.NoError(t, err)
		require.Equal(t, desk.ID, got.ID)
		require.Equal(t, department.ID, got.DepartmentID)
	})

	t.Run("cell uniqueness enforced", func(t *testing.T) {
		err := floorStore.Mutate(ctx, []int{1}, func(tx store.BatchTx) error {
			return tx.CreateDesk(ctx, &models.Desk{
				ID:           uuid.New(),
				Identifier:   "duplicate-cell",
				DepartmentID: department.ID,
				Row:          1,
				Column:       1,
				RowSpan:      1,
				ColumnSpan:   1,
			})
		})
		require.ErrorIs(t, err, store.ErrCellOccupied)
	})

	t.Run("batch rolls back on error", func(t *testing.T) {
		failErr := fmt.Errorf("forced failure")
		err := floorStore.Mutate(ctx, []int{2}, func(tx store.BatchTx) error {
			if err := tx.CreateDesk(ctx, &models.Desk{
				ID:           uuid.New(),
				Identifier:   "cell-r02c01",
				DepartmentID: department.ID,
				Row:          2,
				Column:       1,
				RowSpan:      1,
				ColumnSpan:   1,
			}); err != nil {
				return err
			}
			return failErr
		})
		require.ErrorIs(t, err, failErr)

		_, err = floorStore.GetDesk(ctx, "cell-r02c01")
		require.ErrorIs(t, err, store.ErrDeskNotFound)
	})

	t.Run("conflict canonicalization is case-insensitive", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		deskID := desk.ID

		conflict := &models.Assignment{
			ID:           uuid.New(),
			DeskID:       &deskID,
			Type:         models.AssignmentTypeDesk,
			AssigneeName: "jane doe",
			Span:         models.Span{Start: now.Add(-time.Hour), IsPermanent: true},
			CreatedAt:    now,
		}
		var closed int
		err := floorStore.Mutate(ctx, []int{1}, func(tx store.BatchTx) error {
			if err := tx.CreateAssignment(ctx, conflict); err != nil {
				return err
			}
			var err error
			closed, err = tx.CloseActiveDeskAssignments(ctx, "Jane Doe", now, uuid.Nil)
			return err
		})
		require.NoError(t, err)
		require.Equal(t, 1, closed)

		got, err := floorStore.GetAssignment(ctx, conflict.ID)
		require.NoError(t, err)
		require.False(t, got.IsPermanent)
		require.NotNil(t, got.End)
	})

	t.Run("zone associations load and cascade", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		zone := &models.BlockOutZone{
			ID:        uuid.New(),
			Name:      "Renovation",
			Span:      models.Span{Start: now},
			DeskIDs:   []uuid.UUID{desk.ID},
			Reason:    "new carpet",
			CreatedAt: now,
		}
		err := floorStore.Mutate(ctx, []int{1}, func(tx store.BatchTx) error {
			return tx.CreateBlockZone(ctx, zone)
		})
		require.NoError(t, err)

		zones, err := floorStore.ZonesForDesk(ctx, desk.ID)
		require.NoError(t, err)
		require.Len(t, zones, 1)
		require.Equal(t, []uuid.UUID{desk.ID}, zones[0].DeskIDs)

		// Deleting the desk drops the association but not the zone.
		err = floorStore.Mutate(ctx, []int{1}, func(tx store.BatchTx) error {
			return tx.DeleteDesk(ctx, desk.ID)
		})
		require.NoError(t, err)

		remaining, err := floorStore.ListBlockZones(ctx)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		require.Empty(t, remaining[0].DeskIDs)
	})
}

func TestIntegration_ConcurrentRowLocking(t *testing.T) {
	ctx := context.Background()
	floorStore, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	department := &models.Department{ID: uuid.New(), Name: "Engineering"}
	require.NoError(t, floorStore.CreateDepartment(ctx, department))

	// Two batches on the same row serialize; both desks must exist after.
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		column := i + 1
		go func() {
			errs <- floorStore.Mutate(ctx, []int{5}, func(tx store.BatchTx) error {
				return tx.CreateDesk(ctx, &models.Desk{
					ID:           uuid.New(),
					Identifier:   fmt.Sprintf("cell-r05c%02d", column),
					DepartmentID: department.ID,
					Row:          5,
					Column:       column,
					RowSpan:      1,
					ColumnSpan:   1,
				})
			})
		}()
	}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	desks, err := floorStore.ListDesks(ctx)
	require.NoError(t, err)
	require.Len(t, desks, 2)
}
