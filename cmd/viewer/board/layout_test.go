package board

import (
	"testing"

	"github.com/kasuganosora/towerdefense/game/grid"
	"github.com/stretchr/testify/assert"
)

func TestLayout_RoundTrip(t *testing.T) {
	l := Layout{Rows: 10, Cols: 8, CellSize: 40, OriginX: 20, OriginY: 60}

	w, h := l.Size()
	assert.Equal(t, 320.0, w)
	assert.Equal(t, 400.0, h)

	for r := 0; r < l.Rows; r++ {
		for c := 0; c < l.Cols; c++ {
			cell := grid.Cell{Row: r, Col: c}
			x, y := l.CellToPixel(cell)
			got, ok := l.PixelToCell(x, y)
			assert.True(t, ok)
			assert.Equal(t, cell, got)
		}
	}
}

func TestLayout_PixelToCell(t *testing.T) {
	l := Layout{Rows: 3, Cols: 3, CellSize: 10, OriginX: 5, OriginY: 5}

	x, y := l.CellToPixel(grid.Cell{Row: 1, Col: 2})
	assert.Equal(t, 30.0, x)
	assert.Equal(t, 20.0, y)

	c, ok := l.PixelToCell(5, 5)
	assert.True(t, ok)
	assert.Equal(t, grid.Cell{}, c)

	c, ok = l.PixelToCell(34.9, 14.9)
	assert.True(t, ok)
	assert.Equal(t, grid.Cell{Row: 0, Col: 2}, c)

	for _, p := range [][2]float64{{4.9, 10}, {10, 4.9}, {35, 10}, {10, 35}} {
		_, ok := l.PixelToCell(p[0], p[1])
		assert.False(t, ok, p)
	}

	_, ok = Layout{Rows: 3, Cols: 3}.PixelToCell(1, 1)
	assert.False(t, ok)
}

func TestLayout_PointToPixel(t *testing.T) {
	l := Layout{Rows: 3, Cols: 3, CellSize: 10}
	x, y := l.PointToPixel(0.5, 1.25)
	assert.Equal(t, 17.5, x)
	assert.Equal(t, 10.0, y)
}
