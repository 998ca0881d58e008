package sim

import (
	"errors"
	"fmt"
	"slices"

	"github.com/kasuganosora/towerdefense/game/combat"
	"github.com/kasuganosora/towerdefense/game/entity"
	"github.com/kasuganosora/towerdefense/game/event"
	"github.com/kasuganosora/towerdefense/game/grid"
	"github.com/kasuganosora/towerdefense/game/wave"
	"go.uber.org/zap"
)

// Controller drives one game session. It is not safe for concurrent use;
// callers that share it across goroutines serialise access themselves.
type Controller struct {
	cfg      Config
	sim      *SimulationState
	table    *entity.Table
	spawner  *wave.Spawner
	resolver *combat.Resolver
	bus      *event.Bus
	logger   *zap.Logger

	state         GameState
	speed         float64
	recalcPending bool
}

// PathChange is the payload of a path_recalculated event.
type PathChange struct {
	GridVersion uint64 `json:"grid_version"`
	Rerouted    int    `json:"rerouted"`
	Deferred    bool   `json:"deferred,omitempty"`
}

// StateChange is the payload of a state_changed event.
type StateChange struct {
	From GameState `json:"from"`
	To   GameState `json:"to"`
}

// NewController builds a session in the NotStarted state. bus may be nil.
func NewController(cfg Config, bus *event.Bus, logger *zap.Logger) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = event.NewBus()
	}
	st, err := newSimulationState(cfg)
	if err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}
	table, err := entity.NewTable(cfg.Kinds, cfg.MaxLevel)
	if err != nil {
		return nil, fmt.Errorf("towers: %w", err)
	}
	spawner, err := wave.NewSpawner(cfg.Wave, st.Registry, st.Finder, cfg.Spawn, cfg.Exit, bus, logger.Named("wave"))
	if err != nil {
		return nil, fmt.Errorf("wave: %w", err)
	}
	c := &Controller{
		cfg:      cfg,
		sim:      st,
		table:    table,
		spawner:  spawner,
		resolver: combat.NewResolver(cfg.Combat, st.Registry, st.Ledger, bus, logger.Named("combat")),
		bus:      bus,
		logger:   logger,
		state:    NotStarted,
		speed:    1,
	}
	return c, nil
}

func (c *Controller) State() GameState                   { return c.state }
func (c *Controller) Speed() float64                     { return c.speed }
func (c *Controller) Now() float64                       { return c.sim.Clock.Now() }
func (c *Controller) Sim() *SimulationState              { return c.sim }
func (c *Controller) Table() *entity.Table               { return c.table }
func (c *Controller) Bus() *event.Bus                    { return c.bus }
func (c *Controller) Speeds() []float64                  { return slices.Clone(c.cfg.Speeds) }
func (c *Controller) Spawner() *wave.Spawner             { return c.spawner }
func (c *Controller) Resolver() *combat.Resolver         { return c.resolver }
func (c *Controller) Tower(id int64) *entity.Tower       { return c.sim.Registry.Tower(id) }
func (c *Controller) RecalcPolicy() RecalcPolicy         { return c.cfg.RouteRecalc }
func (c *Controller) GridVersion() uint64                { return c.sim.Grid.Version() }
func (c *Controller) Route() []grid.Cell                 { return c.sim.Finder.FindRoute(c.cfg.Spawn, c.cfg.Exit) }
func (c *Controller) Endpoints() (spawn, exit grid.Cell) { return c.cfg.Spawn, c.cfg.Exit }

// ---- Lifecycle ----

// Start begins a new game or resumes a paused one.
func (c *Controller) Start() error {
	switch c.state {
	case NotStarted, Paused:
		c.transition(Running)
		return nil
	}
	return fmt.Errorf("%w: start from %s", ErrInvalidTransition, c.state)
}

// Pause freezes a running game.
func (c *Controller) Pause() error {
	if c.state != Running {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, c.state)
	}
	c.transition(Paused)
	return nil
}

// Reset clears the board and balances and returns to NotStarted from any
// state. The selected speed is kept.
func (c *Controller) Reset() {
	c.sim.reset()
	c.spawner.Reset()
	c.resolver.Reset()
	c.recalcPending = false
	c.logger.Info("game reset")
	if c.state != NotStarted {
		c.transition(NotStarted)
	}
}

func (c *Controller) transition(to GameState) {
	from := c.state
	c.state = to
	c.logger.Info("state changed", zap.Stringer("from", from), zap.Stringer("to", to))
	c.emit(event.StateChanged, StateChange{From: from, To: to})
}

func (c *Controller) emit(typ event.Type, data any) {
	c.bus.Emit(event.Event{Type: typ, At: c.sim.Clock.Now(), Data: data})
}

// SetSpeed switches to one of the configured speed factors and rewrites the
// live creatures, towers, projectiles and spawn interval at once.
func (c *Controller) SetSpeed(factor float64) error {
	if !slices.Contains(c.cfg.Speeds, factor) {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, factor)
	}
	if factor == c.speed {
		return nil
	}
	c.speed = factor
	for _, cr := range c.sim.Registry.Creatures() {
		cr.ApplySpeed(factor)
	}
	for _, t := range c.sim.Registry.Towers() {
		t.ApplySpeed(factor)
	}
	c.spawner.SetSpeed(factor)
	c.resolver.SetSpeed(factor)
	c.logger.Info("speed changed", zap.Float64("factor", factor))
	c.emit(event.SpeedChanged, factor)
	return nil
}

// ---- Placement ----

// CheckPlacement reports whether a tower could be placed at cell right now,
// including the live-creature check the grid cannot make on its own.
func (c *Controller) CheckPlacement(cell grid.Cell) error {
	if err := c.sim.Grid.CheckPlacement(cell); err != nil {
		return err
	}
	if c.sim.Registry.CreatureOn(cell) != nil {
		return &grid.PlacementError{Cell: cell, Reason: grid.ReasonCreatureOnCell}
	}
	return nil
}

// PlaceTower buys a level-1 tower of kind k at cell. On any error nothing
// changes.
func (c *Controller) PlaceTower(cell grid.Cell, k entity.Kind) (*entity.Tower, error) {
	stats, err := c.table.Stats(k, 1)
	if err != nil {
		return nil, err
	}
	if err := c.CheckPlacement(cell); err != nil {
		return nil, err
	}
	if !c.sim.Ledger.Spend(stats.BuyCost) {
		return nil, fmt.Errorf("%w: %s costs %d", ErrInsufficientFunds, k, stats.BuyCost)
	}
	reg := c.sim.Registry
	t, err := entity.NewTower(reg.NextID(), cell, k, c.table, c.speed)
	if err == nil {
		err = c.sim.Grid.Place(cell, t.ID)
	}
	if err != nil {
		c.sim.Ledger.Earn(stats.BuyCost)
		return nil, err
	}
	t.PlacedAt = c.sim.Clock.Now()
	reg.AddTower(t)
	c.logger.Debug("tower placed", zap.Int64("tower_id", t.ID), zap.Stringer("cell", cell), zap.String("kind", string(k)))
	c.emit(event.TowerPlaced, t.ID)
	c.gridChanged()
	return t, nil
}

// SellTower removes a tower and refunds its sell value.
func (c *Controller) SellTower(id int64) (refund int, err error) {
	t := c.sim.Registry.Tower(id)
	if t == nil {
		return 0, fmt.Errorf("%w: %d", ErrTowerNotFound, id)
	}
	if _, ok := c.sim.Grid.Remove(t.Cell); !ok {
		return 0, fmt.Errorf("tower %d: cell %s not occupied", id, t.Cell)
	}
	c.sim.Registry.RemoveTower(id)
	refund = t.Stats.SellCost
	c.sim.Ledger.Earn(refund)
	c.logger.Debug("tower sold", zap.Int64("tower_id", id), zap.Int("refund", refund))
	c.emit(event.TowerSold, id)
	c.gridChanged()
	return refund, nil
}

// UpgradeTower raises a tower by one level.
func (c *Controller) UpgradeTower(id int64) (*entity.Tower, error) {
	t := c.sim.Registry.Tower(id)
	if t == nil {
		return nil, fmt.Errorf("%w: %d", ErrTowerNotFound, id)
	}
	if t.Level >= c.table.MaxLevel() {
		return nil, ErrMaxLevel
	}
	if !c.sim.Ledger.Spend(t.Stats.UpgradeCost) {
		return nil, fmt.Errorf("%w: upgrade costs %d", ErrInsufficientFunds, t.Stats.UpgradeCost)
	}
	if err := t.SetLevel(t.Level+1, c.table, c.speed); err != nil {
		c.sim.Ledger.Earn(t.Stats.UpgradeCost)
		return nil, err
	}
	c.emit(event.TowerUpgraded, id)
	return t, nil
}

// gridChanged invalidates cached routes and reroutes creatures, now or at
// the next tick depending on the policy.
func (c *Controller) gridChanged() {
	c.sim.Finder.Invalidate()
	if c.cfg.RouteRecalc == RecalcDeferred {
		c.recalcPending = true
		c.emit(event.PathRecalculated, PathChange{GridVersion: c.sim.Grid.Version(), Deferred: true})
		return
	}
	c.recalculate()
}

func (c *Controller) recalculate() {
	c.recalcPending = false
	n := c.sim.Registry.RecalculateCreatureRoutes(c.sim.Finder, c.cfg.Exit)
	c.emit(event.PathRecalculated, PathChange{GridVersion: c.sim.Grid.Version(), Rerouted: n})
}

// ---- Tick ----

// Tick advances the simulation by deltaMs. It does nothing unless Running.
func (c *Controller) Tick(deltaMs float64) {
	if c.state != Running {
		return
	}
	dt, ok := c.sim.Clock.Advance(deltaMs)
	if !ok {
		c.logger.Debug("tick rejected", zap.Float64("delta_ms", deltaMs))
		return
	}
	now := c.sim.Clock.Now()

	if c.recalcPending {
		c.recalculate()
	}
	c.resolver.Tick(now, dt)
	over := c.moveCreatures(now, dt)
	c.sim.Registry.SweepCreatures()
	if over {
		c.gameOver()
		return
	}
	if _, err := c.spawner.Tick(now); err != nil && !errors.Is(err, wave.ErrPopulationFull) {
		c.logger.Debug("spawn skipped", zap.Error(err))
	}
}

// moveCreatures walks every live creature and settles leaks. It stops at
// the leak that ends the game.
func (c *Controller) moveCreatures(now, dt float64) (gameOver bool) {
	for _, cr := range c.sim.Registry.LiveCreatures() {
		if !cr.Advance(dt) {
			continue
		}
		cr.State = entity.Leaked
		c.emit(event.CreatureLeaked, cr.ID)
		if c.sim.Ledger.OnLeak() {
			return true
		}
	}
	return false
}

func (c *Controller) gameOver() {
	st := c.sim.Ledger.State()
	c.logger.Info("game over", zap.Int("score", st.Score), zap.Float64("at_ms", c.sim.Clock.Now()))
	c.emit(event.GameOver, st)
	c.transition(GameOver)
}
