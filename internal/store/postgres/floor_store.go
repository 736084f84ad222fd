// Package postgres implements the floor store on PostgreSQL using pgx.
// Batch mutations run inside a single transaction holding per-grid-row
// advisory locks, which is what makes concurrent layout edits safe.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/seatwise/floorplan/internal/models"
	"github.com/seatwise/floorplan/internal/store"
)

// Advisory lock namespace for grid row locks. Must never change: concurrent
// deployments against the same database have to agree on it.
const gridLockNamespace = 4217

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the scan helpers
// can be shared between plain reads and batch transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FloorStore implements store.FloorStore using PostgreSQL as the backend.
type FloorStore struct {
	pool *pgxpool.Pool
	cfg  *Config

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewFloorStore creates a new PostgreSQL-backed floor store. It establishes
// a connection pool and optionally runs migrations.
func NewFloorStore(ctx context.Context, cfg *Config) (*FloorStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pool, err := NewPool(ctx, cfg.poolConfig())
	if err != nil {
		return nil, err
	}

	log.Info().
		Int32("max_conns", cfg.MaxConns).
		Msg("Connected to PostgreSQL")

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &FloorStore{
		pool:   pool,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins background pool monitoring.
func (s *FloorStore) Start() error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.monitorConnectionPool()
	}()
	return nil
}

// Stop gracefully shuts down the store and closes connections.
func (s *FloorStore) Stop() error {
	close(s.stopCh)
	s.wg.Wait()
	s.pool.Close()
	log.Info().Msg("PostgreSQL floor store stopped")
	return nil
}

// monitorConnectionPool logs connection pool statistics periodically.
func (s *FloorStore) monitorConnectionPool() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := s.pool.Stat()
			log.Debug().
				Int32("total_conns", stats.TotalConns()).
				Int32("idle_conns", stats.IdleConns()).
				Int32("acquired_conns", stats.AcquiredConns()).
				Msg("Connection pool stats")
		case <-s.stopCh:
			return
		}
	}
}

// --- Departments ---

// CreateDepartment adds a new department.
func (s *FloorStore) CreateDepartment(ctx context.Context, department *models.Department) error {
	query := `
		INSERT INTO departments (department_id, name, color, description)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.pool.Exec(ctx, query,
		department.ID, department.Name, department.Color, department.Description)
	if err != nil {
		return mapPostgresError(err)
	}
	return nil
}

const departmentColumns = `department_id, name, color, description`

func scanDepartment(row pgx.Row) (*models.Department, error) {
	var d models.Department
	err := row.Scan(&d.ID, &d.Name, &d.Color, &d.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrDepartmentNotFound
		}
		return nil, mapPostgresError(err)
	}
	return &d, nil
}

// GetDepartment retrieves a department by ID.
func (s *FloorStore) GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	return scanDepartment(s.pool.QueryRow(ctx,
		`SELECT `+departmentColumns+` FROM departments WHERE department_id = $1`, id))
}

// GetDepartmentByName retrieves a department by its unique name.
func (s *FloorStore) GetDepartmentByName(ctx context.Context, name string) (*models.Department, error) {
	return scanDepartment(s.pool.QueryRow(ctx,
		`SELECT `+departmentColumns+` FROM departments WHERE name = $1`, name))
}

// ListDepartments returns all departments ordered by name.
func (s *FloorStore) ListDepartments(ctx context.Context) ([]*models.Department, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+departmentColumns+` FROM departments ORDER BY name`)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var result []*models.Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// --- Desks ---

const deskColumns = `desk_id, identifier, label, department_id,
	row_index, column_index, row_span, column_span,
	left_percent, top_percent, width_percent, height_percent,
	fill_color, notes`

func scanDesk(row pgx.Row) (*models.Desk, error) {
	var d models.Desk
	err := row.Scan(
		&d.ID, &d.Identifier, &d.Label, &d.DepartmentID,
		&d.Row, &d.Column, &d.RowSpan, &d.ColumnSpan,
		&d.LeftPercent, &d.TopPercent, &d.WidthPercent, &d.HeightPercent,
		&d.FillColor, &d.Notes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrDeskNotFound
		}
		return nil, mapPostgresError(err)
	}
	return &d, nil
}

// GetDesk retrieves a desk by identifier.
func (s *FloorStore) GetDesk(ctx context.Context, identifier string) (*models.Desk, error) {
	return scanDesk(s.pool.QueryRow(ctx,
		`SELECT `+deskColumns+` FROM desks WHERE identifier = $1`, identifier))
}

// ListDesks returns all desks in grid order.
func (s *FloorStore) ListDesks(ctx context.Context) ([]*models.Desk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+deskColumns+` FROM desks ORDER BY row_index, column_index`)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var result []*models.Desk
	for rows.Next() {
		d, err := scanDesk(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// --- Assignments ---

const assignmentColumns = `assignment_id, desk_id, assignment_type, assignee_name,
	start_at, end_at, is_permanent, note, created_by, created_at`

func scanAssignment(row pgx.Row) (*models.Assignment, error) {
	var a models.Assignment
	err := row.Scan(
		&a.ID, &a.DeskID, &a.Type, &a.AssigneeName,
		&a.Start, &a.End, &a.IsPermanent, &a.Note, &a.CreatedBy, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrAssignmentNotFound
		}
		return nil, mapPostgresError(err)
	}
	return &a, nil
}

func queryAssignments(ctx context.Context, q querier, query string, args ...any) ([]*models.Assignment, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var result []*models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// GetAssignment retrieves an assignment by ID.
func (s *FloorStore) GetAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	return scanAssignment(s.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE assignment_id = $1`, id))
}

// ListAssignments returns all assignments, newest first.
func (s *FloorStore) ListAssignments(ctx context.Context) ([]*models.Assignment, error) {
	return queryAssignments(ctx, s.pool,
		`SELECT `+assignmentColumns+` FROM assignments ORDER BY start_at DESC, assignee_name`)
}

// AssignmentsForDesk returns every assignment referencing the desk.
func (s *FloorStore) AssignmentsForDesk(ctx context.Context, deskID uuid.UUID) ([]*models.Assignment, error) {
	return queryAssignments(ctx, s.pool,
		`SELECT `+assignmentColumns+` FROM assignments WHERE desk_id = $1`, deskID)
}

// AssignmentsForAssignee returns every assignment for the given person,
// matched case-insensitively.
func (s *FloorStore) AssignmentsForAssignee(ctx context.Context, name string) ([]*models.Assignment, error) {
	return queryAssignments(ctx, s.pool,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE LOWER(assignee_name) = LOWER($1)
		 ORDER BY start_at DESC`, name)
}

// EndAssignment closes an assignment at the given instant.
func (s *FloorStore) EndAssignment(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assignments SET end_at = $2, is_permanent = FALSE WHERE assignment_id = $1`,
		id, at)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrAssignmentNotFound
	}
	return nil
}

// --- Block-out zones ---

const zoneColumns = `zone_id, name, start_at, end_at, is_permanent, reason, created_by, created_at`

func scanZone(row pgx.Row) (*models.BlockOutZone, error) {
	var z models.BlockOutZone
	err := row.Scan(
		&z.ID, &z.Name, &z.Start, &z.End, &z.IsPermanent,
		&z.Reason, &z.CreatedBy, &z.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrBlockZoneNotFound
		}
		return nil, mapPostgresError(err)
	}
	return &z, nil
}

func queryZones(ctx context.Context, q querier, query string, args ...any) ([]*models.BlockOutZone, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var result []*models.BlockOutZone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, z)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err)
	}
	return result, attachZoneDesks(ctx, q, result)
}

// attachZoneDesks populates DeskIDs for the given zones.
func attachZoneDesks(ctx context.Context, q querier, zones []*models.BlockOutZone) error {
	if len(zones) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(zones))
	byID := make(map[uuid.UUID]*models.BlockOutZone, len(zones))
	for _, z := range zones {
		ids = append(ids, z.ID)
		byID[z.ID] = z
	}

	rows, err := q.Query(ctx,
		`SELECT zone_id, desk_id FROM block_out_zone_desks WHERE zone_id = ANY($1)`, ids)
	if err != nil {
		return mapPostgresError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var zoneID, deskID uuid.UUID
		if err := rows.Scan(&zoneID, &deskID); err != nil {
			return mapPostgresError(err)
		}
		if z, ok := byID[zoneID]; ok {
			z.DeskIDs = append(z.DeskIDs, deskID)
		}
	}
	return rows.Err()
}

// ListBlockZones returns all block-out zones, newest first.
func (s *FloorStore) ListBlockZones(ctx context.Context) ([]*models.BlockOutZone, error) {
	return queryZones(ctx, s.pool,
		`SELECT `+zoneColumns+` FROM block_out_zones ORDER BY start_at DESC, name`)
}

// ZonesForDesk returns every zone covering the desk.
func (s *FloorStore) ZonesForDesk(ctx context.Context, deskID uuid.UUID) ([]*models.BlockOutZone, error) {
	return queryZones(ctx, s.pool,
		`SELECT `+zoneColumns+` FROM block_out_zones
		 WHERE zone_id IN (SELECT zone_id FROM block_out_zone_desks WHERE desk_id = $1)`, deskID)
}

// DeleteBlockZone removes a zone; associations cascade, desks stay.
func (s *FloorStore) DeleteBlockZone(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM block_out_zones WHERE zone_id = $1`, id)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrBlockZoneNotFound
	}
	return nil
}

// --- Batch mutation ---

// Mutate runs fn in a single transaction holding advisory locks on the
// given grid rows. Locks are transaction scoped and taken in ascending
// order so overlapping batches serialize instead of deadlocking.
func (s *FloorStore) Mutate(ctx context.Context, rows []int, fn func(tx store.BatchTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapPostgresError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	sorted := make([]int, 0, len(rows))
	seen := make(map[int]bool, len(rows))
	for _, row := range rows {
		if !seen[row] {
			seen[row] = true
			sorted = append(sorted, row)
		}
	}
	sort.Ints(sorted)

	for _, row := range sorted {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, gridLockNamespace, row); err != nil {
			return mapPostgresError(err)
		}
	}

	if err := fn(&batchTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPostgresError(err)
	}

	log.Debug().Ints("rows", sorted).Msg("Committed layout batch")
	return nil
}

// batchTx implements store.BatchTx on a pgx transaction.
type batchTx struct {
	tx pgx.Tx
}

func (b *batchTx) DeskAt(ctx context.Context, row, column int) (*models.Desk, error) {
	return scanDesk(b.tx.QueryRow(ctx,
		`SELECT `+deskColumns+` FROM desks
		 WHERE row_index = $1 AND column_index = $2
		 FOR UPDATE`, row, column))
}

func (b *batchTx) DepartmentByID(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	return scanDepartment(b.tx.QueryRow(ctx,
		`SELECT `+departmentColumns+` FROM departments WHERE department_id = $1`, id))
}

func (b *batchTx) AssignmentsForDesk(ctx context.Context, deskID uuid.UUID) ([]*models.Assignment, error) {
	return queryAssignments(ctx, b.tx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE desk_id = $1`, deskID)
}

func (b *batchTx) ZonesForDesk(ctx context.Context, deskID uuid.UUID) ([]*models.BlockOutZone, error) {
	return queryZones(ctx, b.tx,
		`SELECT `+zoneColumns+` FROM block_out_zones
		 WHERE zone_id IN (SELECT zone_id FROM block_out_zone_desks WHERE desk_id = $1)`, deskID)
}

func (b *batchTx) CreateDesk(ctx context.Context, desk *models.Desk) error {
	query := `
		INSERT INTO desks (
			desk_id, identifier, label, department_id,
			row_index, column_index, row_span, column_span,
			left_percent, top_percent, width_percent, height_percent,
			fill_color, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := b.tx.Exec(ctx, query,
		desk.ID, desk.Identifier, desk.Label, desk.DepartmentID,
		desk.Row, desk.Column, desk.RowSpan, desk.ColumnSpan,
		desk.LeftPercent, desk.TopPercent, desk.WidthPercent, desk.HeightPercent,
		desk.FillColor, desk.Notes,
	)
	if err != nil {
		return mapPostgresError(err)
	}
	return nil
}

func (b *batchTx) UpdateDesk(ctx context.Context, desk *models.Desk) error {
	query := `
		UPDATE desks SET
			identifier = $2, label = $3, department_id = $4,
			row_index = $5, column_index = $6, row_span = $7, column_span = $8,
			left_percent = $9, top_percent = $10, width_percent = $11, height_percent = $12,
			fill_color = $13, notes = $14
		WHERE desk_id = $1
	`
	tag, err := b.tx.Exec(ctx, query,
		desk.ID, desk.Identifier, desk.Label, desk.DepartmentID,
		desk.Row, desk.Column, desk.RowSpan, desk.ColumnSpan,
		desk.LeftPercent, desk.TopPercent, desk.WidthPercent, desk.HeightPercent,
		desk.FillColor, desk.Notes,
	)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDeskNotFound
	}
	return nil
}

func (b *batchTx) DeleteDesk(ctx context.Context, id uuid.UUID) error {
	tag, err := b.tx.Exec(ctx, `DELETE FROM desks WHERE desk_id = $1`, id)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDeskNotFound
	}
	return nil
}

func (b *batchTx) CreateAssignment(ctx context.Context, assignment *models.Assignment) error {
	query := `
		INSERT INTO assignments (
			assignment_id, desk_id, assignment_type, assignee_name,
			start_at, end_at, is_permanent, note, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := b.tx.Exec(ctx, query,
		assignment.ID, assignment.DeskID, assignment.Type, assignment.AssigneeName,
		assignment.Start, assignment.End, assignment.IsPermanent,
		assignment.Note, assignment.CreatedBy, assignment.CreatedAt,
	)
	if err != nil {
		return mapPostgresError(err)
	}
	return nil
}

func (b *batchTx) CloseActiveDeskAssignments(ctx context.Context, assignee string, at time.Time, except uuid.UUID) (int, error) {
	// Closes open claims regardless of start so future-dated open-ended
	// assignments don't survive canonicalization.
	query := `
		UPDATE assignments
		SET end_at = $1, is_permanent = FALSE
		WHERE assignment_id <> $2
		  AND assignment_type = 'desk'
		  AND desk_id IS NOT NULL
		  AND LOWER(assignee_name) = LOWER($3)
		  AND (is_permanent OR end_at IS NULL OR end_at >= $1)
	`
	tag, err := b.tx.Exec(ctx, query, at, except, assignee)
	if err != nil {
		return 0, mapPostgresError(err)
	}
	return int(tag.RowsAffected()), nil
}

func (b *batchTx) CreateBlockZone(ctx context.Context, zone *models.BlockOutZone) error {
	query := `
		INSERT INTO block_out_zones (
			zone_id, name, start_at, end_at, is_permanent, reason, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := b.tx.Exec(ctx, query,
		zone.ID, zone.Name, zone.Start, zone.End, zone.IsPermanent,
		zone.Reason, zone.CreatedBy, zone.CreatedAt,
	)
	if err != nil {
		return mapPostgresError(err)
	}

	for _, deskID := range zone.DeskIDs {
		_, err := b.tx.Exec(ctx,
			`INSERT INTO block_out_zone_desks (zone_id, desk_id) VALUES ($1, $2)`,
			zone.ID, deskID)
		if err != nil {
			return mapPostgresError(err)
		}
	}
	return nil
}
