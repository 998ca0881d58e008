package grid

import (
	"errors"
	"fmt"
)

// Cell is a grid coordinate.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Cell) String() string { return fmt.Sprintf("(%d,%d)", c.Row, c.Col) }

// Adjacent reports whether a and b share an edge.
func (c Cell) Adjacent(o Cell) bool {
	dr := c.Row - o.Row
	if dr < 0 {
		dr = -dr
	}
	dc := c.Col - o.Col
	if dc < 0 {
		dc = -dc
	}
	return dr+dc == 1
}

// neighbour offsets: up, down, left, right. The order is part of the
// contract because route search expands neighbours in this order.
var dirs = [4]Cell{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

var ErrInvalidGrid = errors.New("grid: invalid dimensions or endpoints")

// Grid is the occupancy map. A zero towerID means the cell is empty.
type Grid struct {
	rows, cols int
	spawn      Cell
	exit       Cell
	occupant   []int64 // row-major; 0 = empty
	towers     int
	version    uint64
}

// New creates an empty grid. spawn and exit must be distinct in-bounds cells.
func New(rows, cols int, spawn, exit Cell) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGrid, rows, cols)
	}
	g := &Grid{rows: rows, cols: cols, spawn: spawn, exit: exit}
	if !g.InBounds(spawn) || !g.InBounds(exit) || spawn == exit {
		return nil, fmt.Errorf("%w: spawn %s exit %s", ErrInvalidGrid, spawn, exit)
	}
	g.occupant = make([]int64, rows*cols)
	return g, nil
}

func (g *Grid) Rows() int       { return g.rows }
func (g *Grid) Cols() int       { return g.cols }
func (g *Grid) Spawn() Cell     { return g.spawn }
func (g *Grid) Exit() Cell      { return g.exit }
func (g *Grid) Version() uint64 { return g.version }
func (g *Grid) TowerCount() int { return g.towers }

// InBounds reports whether c lies inside the grid.
func (g *Grid) InBounds(c Cell) bool {
	return c.Row >= 0 && c.Row < g.rows && c.Col >= 0 && c.Col < g.cols
}

// Reserved reports whether c is the spawn or exit cell.
func (g *Grid) Reserved(c Cell) bool { return c == g.spawn || c == g.exit }

func (g *Grid) index(c Cell) int { return c.Row*g.cols + c.Col }

// Occupant returns the tower standing on c, or 0.
func (g *Grid) Occupant(c Cell) int64 {
	if !g.InBounds(c) {
		return 0
	}
	return g.occupant[g.index(c)]
}

// Passable reports whether a creature may stand on c.
func (g *Grid) Passable(c Cell) bool {
	return g.InBounds(c) && g.occupant[g.index(c)] == 0
}

// Neighbors appends the in-bounds 4-neighbours of c to dst in up, down,
// left, right order.
func (g *Grid) Neighbors(dst []Cell, c Cell) []Cell {
	for _, d := range dirs {
		n := Cell{c.Row + d.Row, c.Col + d.Col}
		if g.InBounds(n) {
			dst = append(dst, n)
		}
	}
	return dst
}

// CheckPlacement returns nil if a tower may be placed on c, otherwise a
// *PlacementError describing why not. The grid is never modified.
func (g *Grid) CheckPlacement(c Cell) error {
	switch {
	case !g.InBounds(c):
		return &PlacementError{Cell: c, Reason: ReasonOutOfBounds}
	case g.Reserved(c):
		return &PlacementError{Cell: c, Reason: ReasonReserved}
	case g.occupant[g.index(c)] != 0:
		return &PlacementError{Cell: c, Reason: ReasonOccupied}
	case !g.connectedWithout(c):
		return &PlacementError{Cell: c, Reason: ReasonBlocksPath}
	}
	return nil
}

// IsPlaceable is CheckPlacement as a predicate.
func (g *Grid) IsPlaceable(c Cell) bool { return g.CheckPlacement(c) == nil }

// Place puts towerID on c. Rejected placements leave the grid untouched.
func (g *Grid) Place(c Cell, towerID int64) error {
	if towerID <= 0 {
		return fmt.Errorf("grid: invalid tower id %d", towerID)
	}
	if err := g.CheckPlacement(c); err != nil {
		return err
	}
	g.occupant[g.index(c)] = towerID
	g.towers++
	g.version++
	return nil
}

// Remove frees c and returns the tower that stood there.
func (g *Grid) Remove(c Cell) (int64, bool) {
	if !g.InBounds(c) {
		return 0, false
	}
	i := g.index(c)
	id := g.occupant[i]
	if id == 0 {
		return 0, false
	}
	g.occupant[i] = 0
	g.towers--
	g.version++
	return id, true
}

// Clear frees every cell.
func (g *Grid) Clear() {
	if g.towers == 0 {
		return
	}
	for i := range g.occupant {
		g.occupant[i] = 0
	}
	g.towers = 0
	g.version++
}

// Connected reports whether the exit is reachable from the spawn.
func (g *Grid) Connected() bool {
	return g.connectedWithout(Cell{-1, -1})
}

// connectedWithout runs a BFS from spawn to exit treating extra as blocked.
func (g *Grid) connectedWithout(extra Cell) bool {
	visited := make([]bool, len(g.occupant))
	blocked := func(c Cell) bool {
		return c == extra || g.occupant[g.index(c)] != 0
	}
	queue := []Cell{g.spawn}
	visited[g.index(g.spawn)] = true
	var nb []Cell
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == g.exit {
			return true
		}
		nb = g.Neighbors(nb[:0], cur)
		for _, n := range nb {
			i := g.index(n)
			if visited[i] || blocked(n) {
				continue
			}
			visited[i] = true
			queue = append(queue, n)
		}
	}
	return false
}
