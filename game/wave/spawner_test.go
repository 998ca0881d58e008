package wave

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

var (
	spawnCell = grid.Cell{Row: 6, Col: 3}
	exitCell  = grid.Cell{Row: 0, Col: 3}
)

type fixture struct {
	g   *grid.Grid
	reg *entity.Registry
	bus *event.Bus
	sp  *Spawner
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	g, err := grid.New(7, 7, spawnCell, exitCell)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.SpawnOnStart = false
	if mutate != nil {
		mutate(&cfg)
	}
	reg := entity.NewRegistry()
	bus := event.NewBus()
	sp, err := NewSpawner(cfg, reg, path.NewFinder(g), spawnCell, exitCell, bus, zap.NewNop())
	require.NoError(t, err)
	return &fixture{g: g, reg: reg, bus: bus, sp: sp}
}

func TestNewSpawner_Validates(t *testing.T) {
	reg := entity.NewRegistry()
	cfg := DefaultConfig()
	cfg.PopulationPolicy = "random"
	_, err := NewSpawner(cfg, reg, nil, spawnCell, exitCell, nil, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.IntervalMs = 0
	_, err = NewSpawner(cfg, reg, nil, spawnCell, exitCell, nil, nil)
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, EvictLeastAdvanced, p)
	p, err = ParsePolicy("skip")
	require.NoError(t, err)
	assert.Equal(t, SkipSpawn, p)
}

func TestTick_Interval(t *testing.T) {
	f := newFixture(t, nil)
	var spawned []int64
	f.bus.Register(event.CreatureSpawned, 0, "test", func(ev event.Event) {
		spawned = append(spawned, ev.Data.(int64))
	})

	c, err := f.sp.Tick(9999)
	assert.NoError(t, err)
	assert.Nil(t, c)

	c, err = f.sp.Tick(10000)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, 10000.0, f.sp.LastSpawnAt())
	assert.Equal(t, spawnCell, c.Cell())
	assert.Equal(t, 7, c.Route.Len())
	assert.Equal(t, 100, c.HP)
	assert.Equal(t, 0.5, c.Speed)
	assert.Equal(t, []int64{c.ID}, spawned)

	c, _ = f.sp.Tick(19999)
	assert.Nil(t, c)
	c, _ = f.sp.Tick(20000)
	assert.NotNil(t, c)
}

func TestTick_SpawnOnStart(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.SpawnOnStart = true })
	c, err := f.sp.Tick(0)
	require.NoError(t, err)
	assert.NotNil(t, c)
	c, _ = f.sp.Tick(16)
	assert.Nil(t, c)
}

func TestSetSpeed_ScalesInterval(t *testing.T) {
	f := newFixture(t, nil)
	f.sp.SetSpeed(4)
	assert.Equal(t, 2500.0, f.sp.IntervalMs())
	c, _ := f.sp.Tick(2500)
	require.NotNil(t, c)
	assert.Equal(t, 2.0, c.Speed)

	f.sp.SetSpeed(0) // ignored
	assert.Equal(t, 2500.0, f.sp.IntervalMs())
}

func TestTick_Unreachable(t *testing.T) {
	f := newFixture(t, nil)
	// The grid never lets a placement seal the exit, so fake the finder.
	f.sp.finder = stubFinder{}

	c, err := f.sp.Tick(10000)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrUnreachableSpawn)
	assert.Equal(t, 1, f.sp.Diagnostics().Unreachable)
	assert.Equal(t, 0.0, f.sp.LastSpawnAt(), "skipped cycle keeps the timer")
	assert.Zero(t, f.reg.CreatureCount())
}

type stubFinder struct{}

func (stubFinder) FindRoute(_, _ grid.Cell) path.Route { return nil }

// fill spawns n creatures and walks creature i forward by progress[i] of its route.
func fill(t *testing.T, f *fixture, progress []float64) []*entity.Creature {
	t.Helper()
	var out []*entity.Creature
	now := 0.0
	for _, p := range progress {
		now += f.sp.IntervalMs()
		c, err := f.sp.Tick(now)
		require.NoError(t, err)
		require.NotNil(t, c)
		edges := float64(c.Route.Len() - 1)
		c.Advance(p * edges / c.Speed * 1000)
		out = append(out, c)
	}
	return out
}

func TestPopulation_EvictLeastAdvanced(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxPopulation = 3 })
	var evicted []int64
	f.bus.Register(event.CreatureEvicted, 0, "test", func(ev event.Event) {
		evicted = append(evicted, ev.Data.(int64))
	})
	cs := fill(t, f, []float64{0.5, 0.9, 0.2})

	c, err := f.sp.Tick(1e6)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, []int64{cs[2].ID}, evicted)
	assert.Equal(t, entity.Evicted, cs[2].State)
	assert.Nil(t, f.reg.Creature(cs[2].ID))
	assert.Equal(t, 3, f.reg.CreatureCount())
	assert.Equal(t, 1, f.sp.Diagnostics().Evicted)
}

func TestPopulation_AllNearGoalSkips(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxPopulation = 2 })
	fill(t, f, []float64{0.85, 0.95})
	last := f.sp.LastSpawnAt()

	c, err := f.sp.Tick(1e6)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrPopulationFull)
	assert.Equal(t, last, f.sp.LastSpawnAt())
	assert.Equal(t, 2, f.reg.CreatureCount())
	assert.Equal(t, 1, f.sp.Diagnostics().SkippedFull)
}

func TestPopulation_EvictOldest(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.MaxPopulation = 3
		c.PopulationPolicy = string(EvictOldest)
	})
	cs := fill(t, f, []float64{0.9, 0.1, 0.0})
	_, err := f.sp.Tick(1e6)
	require.NoError(t, err)
	assert.Equal(t, entity.Evicted, cs[1].State, "oldest not near the goal")
	assert.True(t, cs[0].Alive())
}

func TestPopulation_Skip(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.MaxPopulation = 1
		c.PopulationPolicy = string(SkipSpawn)
	})
	fill(t, f, []float64{0})
	_, err := f.sp.Tick(1e6)
	assert.ErrorIs(t, err, ErrPopulationFull)
	assert.Equal(t, 1, f.reg.CreatureCount())
}

func TestDifficultyScaling(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.WaveSize = 2
		c.HPGrowthPerWave = 0.5
		c.MaxPopulation = 0
	})
	cs := fill(t, f, []float64{0, 0, 0, 0, 0})
	var hps []int
	for _, c := range cs {
		hps = append(hps, c.MaxHP)
	}
	assert.Equal(t, []int{100, 100, 150, 150, 200}, hps)
	assert.Equal(t, 3, f.sp.Wave())
}

func TestReset(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.WaveSize = 1 })
	f.sp.SetSpeed(2)
	fill(t, f, []float64{0, 0})
	f.sp.Reset()
	assert.Equal(t, 0.0, f.sp.LastSpawnAt())
	assert.Equal(t, 1, f.sp.Wave())
	assert.Equal(t, Diagnostics{}, f.sp.Diagnostics())
	assert.Equal(t, 5000.0, f.sp.IntervalMs(), "speed survives reset")
}

func TestPopulation_RerouteKeepsProgress(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxPopulation = 2 })
	cs := fill(t, f, []float64{5.0 / 6, 2.0 / 6})
	near, far := cs[0], cs[1]

	require.NoError(t, f.g.Place(grid.Cell{Row: 6, Col: 0}, 99))
	require.Equal(t, 2, f.reg.RecalculateCreatureRoutes(path.NewFinder(f.g), exitCell))
	assert.InDelta(t, 5.0/6, near.Progress(), 1e-9)
	assert.InDelta(t, 2.0/6, far.Progress(), 1e-9)

	_, err := f.sp.Tick(1e6)
	require.NoError(t, err)
	assert.True(t, near.Alive(), "one cell from the exit")
	assert.Equal(t, entity.Evicted, far.State)
}

func TestPopulation_UnreachableEvictsNothing(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxPopulation = 1 })
	cs := fill(t, f, []float64{0.1})
	f.sp.finder = stubFinder{}

	_, err := f.sp.Tick(1e6)
	assert.ErrorIs(t, err, ErrUnreachableSpawn)
	assert.True(t, cs[0].Alive())
	assert.Equal(t, 1, f.reg.CreatureCount())
	assert.Zero(t, f.sp.Diagnostics().Evicted)
}
