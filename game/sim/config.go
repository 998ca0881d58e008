package sim

import (
	"errors"
	"fmt"
	"slices"

	"github.com/kasuganosora/towerdefense/game/combat"
	"github.com/kasuganosora/towerdefense/game/economy"
	"github.com/kasuganosora/towerdefense/game/entity"
	"github.com/kasuganosora/towerdefense/game/grid"
	"github.com/kasuganosora/towerdefense/game/wave"
)

// RecalcPolicy controls when creature routes follow a grid change.
type RecalcPolicy string

const (
	RecalcImmediate RecalcPolicy = "immediate" // inside the placing call
	RecalcDeferred  RecalcPolicy = "deferred"  // at the start of the next tick
)

// Config is everything needed to build a Controller.
type Config struct {
	Rows, Cols  int
	Spawn, Exit grid.Cell
	MaxDeltaMs  float64
	Speeds      []float64
	RouteRecalc RecalcPolicy
	MaxLevel    int
	Kinds       map[entity.Kind]entity.KindDef
	Economy     economy.Rules
	Wave        wave.Config
	Combat      combat.Config
}

// DefaultEndpoints puts the spawn at the bottom middle and the exit at the
// top middle of the board.
func DefaultEndpoints(rows, cols int) (spawn, exit grid.Cell) {
	return grid.Cell{Row: rows - 1, Col: cols / 2}, grid.Cell{Row: 0, Col: cols / 2}
}

func DefaultConfig() Config {
	spawn, exit := DefaultEndpoints(10, 10)
	return Config{
		Rows:        10,
		Cols:        10,
		Spawn:       spawn,
		Exit:        exit,
		MaxDeltaMs:  250,
		Speeds:      []float64{1, 2, 4},
		RouteRecalc: RecalcImmediate,
		MaxLevel:    3,
		Kinds:       entity.DefaultKinds(),
		Economy:     economy.DefaultRules(),
		Wave:        wave.DefaultConfig(),
		Combat:      combat.DefaultConfig(),
	}
}

func (c Config) validate() error {
	switch c.RouteRecalc {
	case RecalcImmediate, RecalcDeferred:
	default:
		return fmt.Errorf("unknown route_recalc %q", c.RouteRecalc)
	}
	if len(c.Speeds) == 0 || !slices.Contains(c.Speeds, 1) {
		return errors.New("speeds must include 1")
	}
	for _, s := range c.Speeds {
		if s <= 0 {
			return fmt.Errorf("speed %v must be positive", s)
		}
	}
	return nil
}
