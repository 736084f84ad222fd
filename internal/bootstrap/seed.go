// Package bootstrap loads the initial floor layout from a YAML seed file
// into an empty store.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/seatwise/floorplan/internal/layout"
	"github.com/seatwise/floorplan/internal/models"
	"github.com/seatwise/floorplan/internal/store"
)

// SeedFile is the top-level structure of a layout seed file.
type SeedFile struct {
	Departments []SeedDepartment `yaml:"departments"`
	Desks       []SeedDesk       `yaml:"desks"`
}

type SeedDepartment struct {
	Name        string `yaml:"name"`
	Color       string `yaml:"color"`
	Description string `yaml:"description"`
}

type SeedDesk struct {
	Identifier string `yaml:"identifier"`
	Label      string `yaml:"label"`
	Department string `yaml:"department"`
	Row        int    `yaml:"row"`
	Column     int    `yaml:"column"`
	RowSpan    int    `yaml:"row_span"`
	ColumnSpan int    `yaml:"column_span"`
	FillColor  string `yaml:"fill_color"`
	Notes      string `yaml:"notes"`
}

// Result reports what the seed created. Entities that already existed are
// skipped, so re-running a seed is safe.
type Result struct {
	DepartmentsCreated int
	DesksCreated       int
}

// Seed loads the file at path and creates any departments and desks it
// names that do not already exist.
func Seed(ctx context.Context, st store.FloorStore, grid layout.Grid, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", path, err)
	}

	result := &Result{}

	departments := make(map[string]uuid.UUID, len(file.Departments))
	for _, sd := range file.Departments {
		if sd.Name == "" {
			return nil, errors.New("seed department missing name")
		}
		existing, err := st.GetDepartmentByName(ctx, sd.Name)
		if err == nil {
			departments[sd.Name] = existing.ID
			continue
		}
		if !errors.Is(err, store.ErrDepartmentNotFound) {
			return nil, err
		}

		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generating department id: %w", err)
		}
		department := &models.Department{
			ID:          id,
			Name:        sd.Name,
			Color:       sd.Color,
			Description: sd.Description,
		}
		if err := st.CreateDepartment(ctx, department); err != nil {
			return nil, fmt.Errorf("creating department %s: %w", sd.Name, err)
		}
		departments[sd.Name] = id
		result.DepartmentsCreated++
	}

	for _, sd := range file.Desks {
		desk, err := seedDesk(grid, sd, departments)
		if err != nil {
			return nil, err
		}

		err = st.Mutate(ctx, []int{desk.Row}, func(tx store.BatchTx) error {
			_, err := tx.DeskAt(ctx, desk.Row, desk.Column)
			if err == nil {
				return nil // cell already has a desk
			}
			if !errors.Is(err, store.ErrDeskNotFound) {
				return err
			}
			result.DesksCreated++
			return tx.CreateDesk(ctx, desk)
		})
		if err != nil {
			return nil, fmt.Errorf("seeding desk %s: %w", desk.Identifier, err)
		}
	}

	log.Info().
		Str("path", path).
		Int("departments", result.DepartmentsCreated).
		Int("desks", result.DesksCreated).
		Msg("seed applied")

	return result, nil
}

func seedDesk(grid layout.Grid, sd SeedDesk, departments map[string]uuid.UUID) (*models.Desk, error) {
	if !grid.Contains(sd.Row, sd.Column) {
		return nil, fmt.Errorf("seed desk at (%d, %d) is outside the %dx%d grid",
			sd.Row, sd.Column, grid.Rows, grid.Columns)
	}
	departmentID, ok := departments[sd.Department]
	if !ok {
		return nil, fmt.Errorf("seed desk at (%d, %d) references unknown department %q",
			sd.Row, sd.Column, sd.Department)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating desk id: %w", err)
	}

	identifier := sd.Identifier
	if identifier == "" {
		identifier = layout.CellIdentifier(sd.Row, sd.Column)
	}
	label := sd.Label
	if label == "" {
		label = identifier
	}
	rowSpan := sd.RowSpan
	if rowSpan < 1 {
		rowSpan = 1
	}
	columnSpan := sd.ColumnSpan
	if columnSpan < 1 {
		columnSpan = 1
	}

	desk := &models.Desk{
		ID:           id,
		Identifier:   identifier,
		Label:        label,
		DepartmentID: departmentID,
		Row:          sd.Row,
		Column:       sd.Column,
		RowSpan:      rowSpan,
		ColumnSpan:   columnSpan,
		FillColor:    sd.FillColor,
		Notes:        sd.Notes,
	}

	rect := grid.CellRect(desk.Row, desk.Column, desk.RowSpan, desk.ColumnSpan)
	desk.LeftPercent = rect.Left
	desk.TopPercent = rect.Top
	desk.WidthPercent = rect.Width
	desk.HeightPercent = rect.Height

	return desk, nil
}
