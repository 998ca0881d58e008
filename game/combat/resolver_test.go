package combat

import (
	"testing"

	"github.com/kasuganosora/towerdefense/game/entity"
	"github.com/kasuganosora/towerdefense/game/event"
	"github.com/kasuganosora/towerdefense/game/grid"
	"github.com/kasuganosora/towerdefense/game/path"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type counter struct{ kills int }

func (c *counter) OnKill() { c.kills++ }

type fixture struct {
	reg    *entity.Registry
	table  *entity.Table
	bus    *event.Bus
	reward *counter
	res    *Resolver
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	table, err := entity.NewTable(entity.DefaultKinds(), 3)
	require.NoError(t, err)
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	f := &fixture{reg: entity.NewRegistry(), table: table, bus: event.NewBus(), reward: &counter{}}
	f.res = NewResolver(cfg, f.reg, f.reward, f.bus, zap.NewNop())
	return f
}

func (f *fixture) tower(t *testing.T, row, col int, k entity.Kind) *entity.Tower {
	t.Helper()
	tw, err := entity.NewTower(f.reg.NextID(), grid.Cell{Row: row, Col: col}, k, f.table, 1)
	require.NoError(t, err)
	f.reg.AddTower(tw)
	return tw
}

func (f *fixture) creature(row, col, hp int) *entity.Creature {
	c := entity.NewCreature(f.reg.NextID(), path.Route{{Row: row, Col: col}}, hp, 1, 1, 0)
	f.reg.AddCreature(c)
	return c
}

func TestFireRate_Boundary(t *testing.T) {
	f := newFixture(t, nil)
	tw := f.tower(t, 3, 3, entity.KindCannon)
	f.creature(1, 3, 100)
	require.Equal(t, 3000.0, tw.FireRateMs)

	f.res.Tick(2999, 1)
	assert.Equal(t, 0, f.reg.ProjectileCount())
	assert.Equal(t, 0.0, tw.LastFiredAt)

	f.res.Tick(3000, 1)
	assert.Equal(t, 1, f.reg.ProjectileCount())
	assert.Equal(t, 3000.0, tw.LastFiredAt)

	f.res.Tick(3001, 1)
	assert.Equal(t, 1, f.reg.ProjectileCount())
}

func TestNearest(t *testing.T) {
	f := newFixture(t, nil)
	tw := f.tower(t, 3, 3, entity.KindCannon) // range 3
	far := f.creature(3, 0, 100)              // distance 3, on the boundary
	near := f.creature(1, 3, 100)             // distance 2
	f.creature(6, 6, 100)                     // out of range

	live := f.reg.LiveCreatures()
	assert.Same(t, near, Nearest(tw, live))

	near.TakeDamage(100)
	assert.Same(t, far, Nearest(f.reg.Tower(tw.ID), f.reg.LiveCreatures()))
}

func TestNearest_TieKeepsFirst(t *testing.T) {
	f := newFixture(t, nil)
	tw := f.tower(t, 3, 3, entity.KindCannon)
	a := f.creature(1, 3, 100)
	b := f.creature(5, 3, 100)
	assert.Same(t, a, Nearest(tw, []*entity.Creature{a, b}))
	assert.Same(t, b, Nearest(tw, []*entity.Creature{b, a}))
}

func TestNearest_NoneInRange(t *testing.T) {
	f := newFixture(t, nil)
	tw := f.tower(t, 0, 0, entity.KindGun)
	f.creature(6, 6, 100)
	assert.Nil(t, Nearest(tw, f.reg.LiveCreatures()))
}

func TestTick_FacingUpdatesWithoutFiring(t *testing.T) {
	f := newFixture(t, nil)
	tw := f.tower(t, 3, 3, entity.KindCannon)
	c := f.creature(3, 5, 100)

	f.res.Tick(10, 1)
	assert.Equal(t, c.ID, tw.TargetID)
	assert.InDelta(t, 0, tw.Facing, 1e-9)
	assert.Equal(t, 0, f.reg.ProjectileCount())

	f.reg.RemoveCreature(c.ID)
	f.creature(1, 3, 100)
	f.res.Tick(20, 1)
	assert.InDelta(t, -1.5707963, tw.Facing, 1e-6)

	for _, c := range f.reg.Creatures() {
		f.reg.RemoveCreature(c.ID)
	}
	f.res.Tick(30, 1)
	assert.Zero(t, tw.TargetID)
}

func TestProjectile_HitsAndDamages(t *testing.T) {
	f := newFixture(t, nil)
	f.tower(t, 3, 3, entity.KindCannon)
	c := f.creature(2, 3, 100)

	f.res.Tick(3000, 0)
	require.Equal(t, 1, f.reg.ProjectileCount())
	f.res.Tick(3500, 500) // 4 cells of travel
	assert.Equal(t, 0, f.reg.ProjectileCount())
	assert.Equal(t, 80, c.HP)
	_, hits, _ := f.res.Stats()
	assert.Equal(t, 1, hits)
	assert.Zero(t, f.reward.kills)
}

func TestKill_NotifiesOnce(t *testing.T) {
	f := newFixture(t, nil)
	a := f.tower(t, 3, 3, entity.KindCannon)
	b := f.tower(t, 3, 4, entity.KindCannon)
	c := f.creature(2, 3, 20)
	var kills []Kill
	f.bus.Register(event.CreatureKilled, 0, "test", func(ev event.Event) {
		kills = append(kills, ev.Data.(Kill))
	})

	f.res.Tick(3000, 0)
	require.Equal(t, 2, f.reg.ProjectileCount())
	f.res.Tick(4000, 1000)

	assert.Equal(t, entity.Killed, c.State)
	assert.Equal(t, 0, c.HP)
	assert.Equal(t, 1, f.reward.kills)
	require.Len(t, kills, 1)
	assert.Equal(t, Kill{CreatureID: c.ID, TowerID: a.ID}, kills[0])
	assert.Equal(t, 0, f.reg.ProjectileCount(), "second projectile lost its target")
	_ = b
}

func TestInstant_DamagesImmediately(t *testing.T) {
	f := newFixture(t, nil)
	f.tower(t, 3, 3, entity.KindLaser) // 12 dmg, 1500 ms
	c := f.creature(2, 3, 24)

	f.res.Tick(1500, 16)
	assert.Equal(t, 12, c.HP)
	assert.Equal(t, 0, f.reg.ProjectileCount())
	f.res.Tick(3000, 16)
	assert.Equal(t, entity.Killed, c.State)
	assert.Equal(t, 1, f.reward.kills)
}

func TestDeadCreaturesAreNeverTargeted(t *testing.T) {
	f := newFixture(t, nil)
	tw := f.tower(t, 3, 3, entity.KindLaser)
	c := f.creature(2, 3, 10)
	c.State = entity.Leaked
	f.res.Tick(5000, 16)
	assert.Zero(t, tw.TargetID)
	assert.Equal(t, 0.0, tw.LastFiredAt)
	assert.Equal(t, 10, c.HP)
}

func TestCaps_PerTowerHoldsFire(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxProjectilesPerTower = 1 })
	tw := f.tower(t, 3, 3, entity.KindGun) // 800 ms
	f.creature(1, 3, 1000)

	f.res.Tick(800, 0)
	assert.Equal(t, 1, f.reg.ProjectileCount())
	f.res.Tick(1600, 0)
	assert.Equal(t, 1, f.reg.ProjectileCount())
	assert.Equal(t, 800.0, tw.LastFiredAt, "cooldown is not consumed while capped")
}

func TestCaps_Global(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxProjectiles = 1 })
	f.tower(t, 3, 3, entity.KindGun)
	late := f.tower(t, 3, 2, entity.KindGun)
	f.creature(2, 3, 1000)

	f.res.Tick(800, 0)
	assert.Equal(t, 1, f.reg.ProjectileCount())
	assert.Equal(t, 0.0, late.LastFiredAt)
}

func TestProjectile_ExpiresAfterLifetime(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxLifetimeMs = 100; c.ProjectileSpeed = 0.001 })
	f.tower(t, 3, 3, entity.KindCannon)
	f.creature(1, 3, 100)

	f.res.Tick(3000, 0)
	require.Equal(t, 1, f.reg.ProjectileCount())
	f.res.Tick(3100, 100)
	assert.Equal(t, 1, f.reg.ProjectileCount())
	f.res.Tick(3101, 1)
	assert.Equal(t, 0, f.reg.ProjectileCount())
	_, _, expired := f.res.Stats()
	assert.Equal(t, 1, expired)
}

func TestProjectile_TargetGone(t *testing.T) {
	f := newFixture(t, nil)
	f.tower(t, 3, 3, entity.KindCannon)
	c := f.creature(1, 3, 100)
	f.res.Tick(3000, 0)
	require.Equal(t, 1, f.reg.ProjectileCount())

	f.reg.RemoveCreature(c.ID)
	f.res.Tick(3016, 16)
	assert.Equal(t, 0, f.reg.ProjectileCount())
}

func TestProjectile_SurvivesSoldTower(t *testing.T) {
	f := newFixture(t, nil)
	tw := f.tower(t, 3, 3, entity.KindCannon)
	c := f.creature(1, 3, 100)
	f.res.Tick(3000, 0)
	f.reg.RemoveTower(tw.ID)

	f.res.Tick(4000, 1000)
	assert.Equal(t, 80, c.HP)
}

func TestSetSpeed_RewritesProjectiles(t *testing.T) {
	f := newFixture(t, nil)
	f.tower(t, 3, 3, entity.KindCannon)
	f.creature(0, 3, 100)
	f.res.Tick(3000, 0)
	f.res.SetSpeed(2)
	for _, p := range f.reg.Projectiles() {
		assert.Equal(t, 16.0, p.Speed)
	}
}
