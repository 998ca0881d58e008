package entity

import (
	"maps"
	"slices"

	"github.com/kasuganosora/towerdefense/game/grid"
	"github.com/kasuganosora/towerdefense/game/path"
)

// RouteFinder is the part of the path finder the registry needs.
type RouteFinder interface {
	FindRoute(start, end grid.Cell) path.Route
}

// Registry owns every live tower, creature and projectile. Iteration is in
// ascending ID order so a tick is reproducible.
type Registry struct {
	nextID      int64
	towers      map[int64]*Tower
	creatures   map[int64]*Creature
	projectiles map[int64]*Projectile
	owned       map[int64]int // towerID -> projectiles in flight
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Reset drops all entities and restarts ID allocation.
func (r *Registry) Reset() {
	r.nextID = 1
	r.towers = make(map[int64]*Tower)
	r.creatures = make(map[int64]*Creature)
	r.projectiles = make(map[int64]*Projectile)
	r.owned = make(map[int64]int)
}

// NextID allocates a new entity ID.
func (r *Registry) NextID() int64 {
	id := r.nextID
	r.nextID++
	return id
}

// ---- Towers ----

func (r *Registry) AddTower(t *Tower)     { r.towers[t.ID] = t }
func (r *Registry) Tower(id int64) *Tower { return r.towers[id] }
func (r *Registry) TowerCount() int       { return len(r.towers) }

func (r *Registry) RemoveTower(id int64) *Tower {
	t := r.towers[id]
	delete(r.towers, id)
	return t
}

// Towers returns the towers in ID order.
func (r *Registry) Towers() []*Tower { return ordered(r.towers) }

// ---- Creatures ----

func (r *Registry) AddCreature(c *Creature)     { r.creatures[c.ID] = c }
func (r *Registry) Creature(id int64) *Creature { return r.creatures[id] }
func (r *Registry) CreatureCount() int          { return len(r.creatures) }

func (r *Registry) RemoveCreature(id int64) *Creature {
	c := r.creatures[id]
	delete(r.creatures, id)
	return c
}

// Creatures returns the creatures in ID order.
func (r *Registry) Creatures() []*Creature { return ordered(r.creatures) }

// LiveCreatures returns the Alive creatures in ID order.
func (r *Registry) LiveCreatures() []*Creature {
	all := r.Creatures()
	out := all[:0]
	for _, c := range all {
		if c.Alive() {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) LiveCreatureCount() int {
	n := 0
	for _, c := range r.creatures {
		if c.Alive() {
			n++
		}
	}
	return n
}

// CreatureOn returns a live creature standing on or entering cell.
func (r *Registry) CreatureOn(cell grid.Cell) *Creature {
	for _, c := range r.LiveCreatures() {
		if c.Occupies(cell) {
			return c
		}
	}
	return nil
}

// SweepCreatures removes every creature that is no longer Alive and returns them.
func (r *Registry) SweepCreatures() []*Creature {
	var gone []*Creature
	for _, c := range r.Creatures() {
		if !c.Alive() {
			delete(r.creatures, c.ID)
			gone = append(gone, c)
		}
	}
	return gone
}

// RecalculateCreatureRoutes reroutes every live creature from where it
// stands to exit. Creatures with no route keep their old one. It returns the
// number of creatures that received a new route.
func (r *Registry) RecalculateCreatureRoutes(f RouteFinder, exit grid.Cell) int {
	n := 0
	for _, c := range r.LiveCreatures() {
		if len(c.Route) == 0 {
			continue
		}
		if c.Reroute(f.FindRoute(c.Cell(), exit)) {
			n++
		}
	}
	return n
}

// ---- Projectiles ----

func (r *Registry) AddProjectile(p *Projectile) {
	r.projectiles[p.ID] = p
	r.owned[p.TowerID]++
}

func (r *Registry) RemoveProjectile(id int64) {
	p, ok := r.projectiles[id]
	if !ok {
		return
	}
	delete(r.projectiles, id)
	if r.owned[p.TowerID] <= 1 {
		delete(r.owned, p.TowerID)
	} else {
		r.owned[p.TowerID]--
	}
}

func (r *Registry) Projectile(id int64) *Projectile { return r.projectiles[id] }
func (r *Registry) ProjectileCount() int            { return len(r.projectiles) }

// ProjectilesOwnedBy returns how many projectiles towerID has in flight.
func (r *Registry) ProjectilesOwnedBy(towerID int64) int { return r.owned[towerID] }

// Projectiles returns the projectiles in ID order.
func (r *Registry) Projectiles() []*Projectile { return ordered(r.projectiles) }

func ordered[T any](m map[int64]*T) []*T {
	ids := slices.Sorted(maps.Keys(m))
	out := make([]*T, len(ids))
	for i, id := range ids {
		out[i] = m[id]
	}
	return out
}
