package combat

import (
	"math"

	"github.com/kasuganosora/towerdefense/game/entity"
	"github.com/kasuganosora/towerdefense/game/event"
	"go.uber.org/zap"
)

// Config bounds projectile behaviour. Distances are in cells.
type Config struct {
	HitRadius              float64 `mapstructure:"hit_radius"`
	ProjectileSpeed        float64 `mapstructure:"projectile_speed"` // cells per second at x1
	MaxLifetimeMs          float64 `mapstructure:"max_lifetime_ms"`
	MaxProjectiles         int     `mapstructure:"max_projectiles"`
	MaxProjectilesPerTower int     `mapstructure:"max_projectiles_per_tower"`
}

func DefaultConfig() Config {
	return Config{
		HitRadius:              0.3,
		ProjectileSpeed:        8,
		MaxLifetimeMs:          5000,
		MaxProjectiles:         200,
		MaxProjectilesPerTower: 5,
	}
}

// Rewarder is notified once per killed creature.
type Rewarder interface {
	OnKill()
}

// Kill is the payload of a creature_killed event.
type Kill struct {
	CreatureID int64 `json:"creature_id"`
	TowerID    int64 `json:"tower_id"`
}

// Resolver runs targeting, firing and projectile hits once per tick.
type Resolver struct {
	cfg    Config
	reg    *entity.Registry
	reward Rewarder
	bus    *event.Bus
	logger *zap.Logger
	speed  float64

	fired, hits, expired int
}

func NewResolver(cfg Config, reg *entity.Registry, reward Rewarder, bus *event.Bus, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cfg: cfg, reg: reg, reward: reward, bus: bus, logger: logger, speed: 1}
}

// SetSpeed rescales projectile speed, including projectiles in flight.
func (r *Resolver) SetSpeed(factor float64) {
	if factor <= 0 {
		return
	}
	r.speed = factor
	for _, p := range r.reg.Projectiles() {
		p.Speed = r.cfg.ProjectileSpeed * factor
	}
}

// Stats returns shots fired, projectile hits and expired projectiles.
func (r *Resolver) Stats() (fired, hits, expired int) { return r.fired, r.hits, r.expired }

func (r *Resolver) Reset() { r.fired, r.hits, r.expired = 0, 0, 0 }

// Tick resolves one frame: every tower picks and faces a target and fires
// when its cooldown allows, then every projectile moves and resolves.
func (r *Resolver) Tick(now, dtMs float64) {
	live := r.reg.LiveCreatures()
	for _, t := range r.reg.Towers() {
		target := Nearest(t, live)
		if target == nil {
			t.TargetID = 0
			continue
		}
		t.TargetID = target.ID
		t.Face(target.Position())
		if !t.Ready(now) || !r.canFire(t) {
			continue
		}
		r.fire(t, target, now)
	}
	r.moveProjectiles(now, dtMs)
}

// Nearest returns the closest live creature within t's range. On an exact
// tie the first one in slice order wins.
func Nearest(t *entity.Tower, creatures []*entity.Creature) *entity.Creature {
	tr, tc := t.Position()
	var best *entity.Creature
	bestDist := math.Inf(1)
	for _, c := range creatures {
		if !c.Alive() {
			continue
		}
		cr, cc := c.Position()
		d := math.Hypot(cr-tr, cc-tc)
		if d > t.Stats.Range {
			continue
		}
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func (r *Resolver) canFire(t *entity.Tower) bool {
	if t.Capability != entity.FireProjectile {
		return true
	}
	if r.cfg.MaxProjectiles > 0 && r.reg.ProjectileCount() >= r.cfg.MaxProjectiles {
		return false
	}
	if r.cfg.MaxProjectilesPerTower > 0 && r.reg.ProjectilesOwnedBy(t.ID) >= r.cfg.MaxProjectilesPerTower {
		return false
	}
	return true
}

func (r *Resolver) fire(t *entity.Tower, target *entity.Creature, now float64) {
	t.LastFiredAt = now
	r.fired++
	switch t.Capability {
	case entity.FireInstant:
		r.damage(target, t.Stats.Damage, t.ID, now)
	default:
		row, col := t.Position()
		r.reg.AddProjectile(&entity.Projectile{
			ID:        r.reg.NextID(),
			TowerID:   t.ID,
			TargetID:  target.ID,
			Row:       row,
			Col:       col,
			Speed:     r.cfg.ProjectileSpeed * r.speed,
			Damage:    t.Stats.Damage,
			SpawnedAt: now,
			Rotation:  t.Facing,
		})
	}
}

func (r *Resolver) moveProjectiles(now, dtMs float64) {
	lifetime := r.cfg.MaxLifetimeMs / r.speed
	for _, p := range r.reg.Projectiles() {
		if r.cfg.MaxLifetimeMs > 0 && now-p.SpawnedAt > lifetime {
			r.reg.RemoveProjectile(p.ID)
			r.expired++
			continue
		}
		target := r.reg.Creature(p.TargetID)
		if target == nil || !target.Alive() {
			r.reg.RemoveProjectile(p.ID)
			continue
		}
		row, col := target.Position()
		if p.MoveToward(row, col, p.Speed*dtMs/1000) < r.cfg.HitRadius {
			r.reg.RemoveProjectile(p.ID)
			r.hits++
			r.damage(target, p.Damage, p.TowerID, now)
		}
	}
}

func (r *Resolver) damage(c *entity.Creature, dmg int, towerID int64, now float64) {
	if !c.TakeDamage(dmg) {
		return
	}
	if r.reward != nil {
		r.reward.OnKill()
	}
	r.logger.Debug("creature killed", zap.Int64("creature_id", c.ID), zap.Int64("tower_id", towerID))
	r.bus.Emit(event.Event{Type: event.CreatureKilled, At: now, Data: Kill{CreatureID: c.ID, TowerID: towerID}})
}
