package entity

import (
	"github.com/kasuganosora/towerdefense/game/grid"
	"github.com/kasuganosora/towerdefense/game/path"
)

// CreatureState is the lifecycle state of a creature.
type CreatureState int

const (
	Alive CreatureState = iota
	Leaked
	Killed
	Evicted
)

func (s CreatureState) String() string {
	switch s {
	case Alive:
		return "alive"
	case Leaked:
		return "leaked"
	case Killed:
		return "killed"
	case Evicted:
		return "evicted"
	}
	return "unknown"
}

// Creature walks a route from the spawn to the exit.
type Creature struct {
	ID    int64
	Route path.Route
	Index int     // last cell reached
	Step  float64 // 0..1 along the edge Route[Index] -> Route[Index+1]
	// Walked counts cells travelled since spawn. Reroute keeps it.
	Walked float64

	HP    int
	MaxHP int

	BaseSpeed float64 // cells per second at speed x1
	Speed     float64
	State     CreatureState
	SpawnedAt float64
}

// NewCreature creates a live creature at the start of route.
func NewCreature(id int64, route path.Route, hp int, baseSpeed, speedFactor, now float64) *Creature {
	c := &Creature{
		ID:        id,
		Route:     route,
		HP:        hp,
		MaxHP:     hp,
		BaseSpeed: baseSpeed,
		State:     Alive,
		SpawnedAt: now,
	}
	c.ApplySpeed(speedFactor)
	return c
}

func (c *Creature) Alive() bool { return c.State == Alive }

// ApplySpeed rewrites Speed for a game speed factor.
func (c *Creature) ApplySpeed(factor float64) {
	if factor <= 0 {
		factor = 1
	}
	c.Speed = c.BaseSpeed * factor
}

// Cell returns the last cell the creature reached.
func (c *Creature) Cell() grid.Cell {
	if len(c.Route) == 0 {
		return grid.Cell{}
	}
	return c.Route[c.Index]
}

// NextCell returns the cell the creature is stepping into, if it is mid-edge.
func (c *Creature) NextCell() (grid.Cell, bool) {
	if c.Step <= 0 || c.Index+1 >= len(c.Route) {
		return grid.Cell{}, false
	}
	return c.Route[c.Index+1], true
}

// Occupies reports whether the creature stands on or is entering cell.
func (c *Creature) Occupies(cell grid.Cell) bool {
	if len(c.Route) == 0 {
		return false
	}
	if c.Cell() == cell {
		return true
	}
	next, ok := c.NextCell()
	return ok && next == cell
}

// Position returns the interpolated position in grid units.
func (c *Creature) Position() (row, col float64) {
	cur := c.Cell()
	row, col = float64(cur.Row), float64(cur.Col)
	if next, ok := c.NextCell(); ok {
		row += (float64(next.Row) - row) * c.Step
		col += (float64(next.Col) - col) * c.Step
	}
	return row, col
}

// Remaining is the distance left to the end of the current route.
func (c *Creature) Remaining() float64 {
	edges := len(c.Route) - 1
	if edges <= 0 {
		return 0
	}
	return float64(edges-c.Index) - c.Step
}

// Progress is the walked share of the whole trip, spanning every route the
// creature has been given.
func (c *Creature) Progress() float64 {
	rem := c.Remaining()
	if rem <= 0 {
		return 1
	}
	return c.Walked / (c.Walked + rem)
}

// Advance moves the creature dtMs along its route and reports whether it has
// arrived at the final cell. Non-live creatures never move.
func (c *Creature) Advance(dtMs float64) bool {
	if c.State != Alive || len(c.Route) == 0 {
		return false
	}
	dist := c.Speed * dtMs / 1000
	for dist > 0 && c.Index < len(c.Route)-1 {
		remain := 1 - c.Step
		if dist >= remain {
			c.Index++
			c.Step = 0
			c.Walked += remain
			dist -= remain
			continue
		}
		c.Step += dist
		c.Walked += dist
		dist = 0
	}
	return c.Index >= len(c.Route)-1
}

// TakeDamage subtracts dmg from HP (clamped at 0) and reports whether this
// hit killed the creature. Hits on non-live creatures are ignored.
func (c *Creature) TakeDamage(dmg int) bool {
	if c.State != Alive || dmg <= 0 {
		return false
	}
	c.HP -= dmg
	if c.HP < 0 {
		c.HP = 0
	}
	if c.HP == 0 {
		c.State = Killed
		return true
	}
	return false
}

// Reroute switches to r, which must start at Cell(). A creature caught
// mid-edge keeps heading into the cell it was entering if r goes that way,
// otherwise it turns around. An empty r is ignored.
func (c *Creature) Reroute(r path.Route) bool {
	if len(r) == 0 {
		return false
	}
	next, mid := c.NextCell()
	switch {
	case !mid:
		c.Step = 0
	case len(r) > 1 && r[1] == next:
		// same direction, keep Step
	default:
		back := make(path.Route, 0, len(r)+1)
		back = append(back, next)
		r = append(back, r...)
		c.Step = 1 - c.Step
	}
	c.Route = r
	c.Index = 0
	return true
}
