// Package board maps grid cells to screen pixels for the viewer.
package board

import (
	"math"

	"github.com/kasuganosora/towerdefense/game/grid"
)

// Layout places a rows x cols board at (OriginX, OriginY) with square cells.
type Layout struct {
	Rows, Cols       int
	CellSize         float64
	OriginX, OriginY float64
}

// Size returns the board's pixel extent.
func (l Layout) Size() (w, h float64) {
	return float64(l.Cols) * l.CellSize, float64(l.Rows) * l.CellSize
}

// CellToPixel returns the centre of cell. Row 0 is drawn at the top.
func (l Layout) CellToPixel(c grid.Cell) (x, y float64) {
	return l.PointToPixel(float64(c.Row), float64(c.Col))
}

// PointToPixel maps a fractional grid position (cell centres at integers).
func (l Layout) PointToPixel(row, col float64) (x, y float64) {
	x = l.OriginX + (col+0.5)*l.CellSize
	y = l.OriginY + (row+0.5)*l.CellSize
	return x, y
}

// PixelToCell returns the cell under (x, y), or false outside the board.
func (l Layout) PixelToCell(x, y float64) (grid.Cell, bool) {
	if l.CellSize <= 0 {
		return grid.Cell{}, false
	}
	col := int(math.Floor((x - l.OriginX) / l.CellSize))
	row := int(math.Floor((y - l.OriginY) / l.CellSize))
	if row < 0 || col < 0 || row >= l.Rows || col >= l.Cols {
		return grid.Cell{}, false
	}
	return grid.Cell{Row: row, Col: col}, true
}
