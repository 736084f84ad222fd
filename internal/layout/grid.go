// Package layout maps positions on the fixed floor grid to percentage-based
// rectangles and canonical cell identifiers.
package layout

import "fmt"

// Default floor grid dimensions.
const (
	DefaultRows    = 13
	DefaultColumns = 30
)

// Grid describes the fixed floor grid. Rows and columns are 1-indexed when
// addressing cells.
type Grid struct {
	Rows    int
	Columns int
}

// Default returns the standard 13x30 floor grid.
func Default() Grid {
	return Grid{Rows: DefaultRows, Columns: DefaultColumns}
}

// Rect is a rectangle expressed as percentages of the floor plan container.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Contains reports whether the cell lies within the grid bounds.
func (g Grid) Contains(row, column int) bool {
	return row >= 1 && row <= g.Rows && column >= 1 && column <= g.Columns
}

// CellWidth returns the width of one column as a percentage.
func (g Grid) CellWidth() float64 {
	return 100.0 / float64(g.Columns)
}

// CellHeight returns the height of one row as a percentage.
func (g Grid) CellHeight() float64 {
	return 100.0 / float64(g.Rows)
}

// CellRect maps a grid position and span to its rendered rectangle. The
// mapping is deterministic: the same inputs always yield the same
// percentages. Spans below 1 are treated as 1.
func (g Grid) CellRect(row, column, rowSpan, columnSpan int) Rect {
	if rowSpan < 1 {
		rowSpan = 1
	}
	if columnSpan < 1 {
		columnSpan = 1
	}
	return Rect{
		Left:   float64(column-1) * g.CellWidth(),
		Top:    float64(row-1) * g.CellHeight(),
		Width:  float64(columnSpan) * g.CellWidth(),
		Height: float64(rowSpan) * g.CellHeight(),
	}
}

// CellIdentifier generates the predictable identifier for a grid position,
// e.g. row 3 column 14 -> "cell-r03c14". Identifiers double as desk slugs
// for desks created through the layout editor, so the encoding must never
// change.
func CellIdentifier(row, column int) string {
	return fmt.Sprintf("cell-r%02dc%02d", row, column)
}
