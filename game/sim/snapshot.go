package sim

import (
	"github.com/kasuganosora/towerdefense/game/economy"
	"github.com/kasuganosora/towerdefense/game/entity"
	"github.com/kasuganosora/towerdefense/game/grid"
	"github.com/kasuganosora/towerdefense/game/wave"
)

// TowerView is the renderer's view of a tower.
type TowerView struct {
	ID       int64        `json:"id"`
	Cell     grid.Cell    `json:"cell"`
	Kind     entity.Kind  `json:"kind"`
	Level    int          `json:"level"`
	Stats    entity.Stats `json:"stats"`
	Facing   float64      `json:"facing"`
	TargetID int64        `json:"target_id,omitempty"`
}

// CreatureView is the renderer's view of a creature.
type CreatureView struct {
	ID       int64   `json:"id"`
	Row      float64 `json:"row"`
	Col      float64 `json:"col"`
	HP       int     `json:"hp"`
	MaxHP    int     `json:"max_hp"`
	Progress float64 `json:"progress"`
}

// ProjectileView is the renderer's view of a projectile.
type ProjectileView struct {
	ID       int64   `json:"id"`
	Row      float64 `json:"row"`
	Col      float64 `json:"col"`
	Rotation float64 `json:"rotation"`
}

// Snapshot is a read-only copy of the session. Nothing in it aliases
// controller state.
type Snapshot struct {
	State       GameState        `json:"state"`
	Speed       float64          `json:"speed"`
	Now         float64          `json:"now"`
	Economy     economy.State    `json:"economy"`
	Rows        int              `json:"rows"`
	Cols        int              `json:"cols"`
	Spawn       grid.Cell        `json:"spawn"`
	Exit        grid.Cell        `json:"exit"`
	GridVersion uint64           `json:"grid_version"`
	Route       []grid.Cell      `json:"route"`
	Wave        int              `json:"wave"`
	Spawns      wave.Diagnostics `json:"spawns"`
	Towers      []TowerView      `json:"towers"`
	Creatures   []CreatureView   `json:"creatures"`
	Projectiles []ProjectileView `json:"projectiles"`
}

// Snapshot captures the current state for rendering.
func (c *Controller) Snapshot() Snapshot {
	reg := c.sim.Registry
	g := c.sim.Grid
	s := Snapshot{
		State:       c.state,
		Speed:       c.speed,
		Now:         c.sim.Clock.Now(),
		Economy:     c.sim.Ledger.State(),
		Rows:        g.Rows(),
		Cols:        g.Cols(),
		Spawn:       g.Spawn(),
		Exit:        g.Exit(),
		GridVersion: g.Version(),
		Route:       c.Route(),
		Wave:        c.spawner.Wave(),
		Spawns:      c.spawner.Diagnostics(),
		Towers:      make([]TowerView, 0, reg.TowerCount()),
		Creatures:   make([]CreatureView, 0, reg.CreatureCount()),
		Projectiles: make([]ProjectileView, 0, reg.ProjectileCount()),
	}
	for _, t := range reg.Towers() {
		s.Towers = append(s.Towers, TowerView{
			ID:       t.ID,
			Cell:     t.Cell,
			Kind:     t.Kind,
			Level:    t.Level,
			Stats:    t.Stats,
			Facing:   t.Facing,
			TargetID: t.TargetID,
		})
	}
	for _, cr := range reg.LiveCreatures() {
		row, col := cr.Position()
		s.Creatures = append(s.Creatures, CreatureView{
			ID:       cr.ID,
			Row:      row,
			Col:      col,
			HP:       cr.HP,
			MaxHP:    cr.MaxHP,
			Progress: cr.Progress(),
		})
	}
	for _, p := range reg.Projectiles() {
		s.Projectiles = append(s.Projectiles, ProjectileView{ID: p.ID, Row: p.Row, Col: p.Col, Rotation: p.Rotation})
	}
	return s
}

// TowerAt returns the tower at cell, if any.
func (c *Controller) TowerAt(cell grid.Cell) *entity.Tower {
	id := c.sim.Grid.Occupant(cell)
	if id == 0 {
		return nil
	}
	return c.sim.Registry.Tower(id)
}
