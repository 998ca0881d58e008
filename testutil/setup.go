package testutil

import (
	"testing"

	"github.com/kasuganosora/towerdefense/game/event"
	"github.com/kasuganosora/towerdefense/game/grid"
	"github.com/kasuganosora/towerdefense/game/room"
	"github.com/kasuganosora/towerdefense/game/sim"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Small board used across handler tests: spawn at the bottom middle, exit at
// the top middle.
var (
	Spawn = grid.Cell{Row: 6, Col: 3}
	Exit  = grid.Cell{Row: 0, Col: 3}
)

// SimConfig returns a 7x7 config with no creature on start.
func SimConfig() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.Rows, cfg.Cols = 7, 7
	cfg.Spawn, cfg.Exit = Spawn, Exit
	cfg.Wave.SpawnOnStart = false
	return cfg
}

// SetupController builds a controller on SimConfig, optionally mutated.
func SetupController(t *testing.T, mutate func(*sim.Config)) *sim.Controller {
	t.Helper()
	cfg := SimConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	ctrl, err := sim.NewController(cfg, event.NewBus(), zap.NewNop())
	require.NoError(t, err, "SetupController")
	return ctrl
}

// SetupRoom wraps SetupController in a room that is stopped on cleanup.
// The room's loop is not started; tests drive it through intents.
func SetupRoom(t *testing.T, mutate func(*sim.Config)) *room.Room {
	t.Helper()
	r := room.New(SetupController(t, mutate), room.DefaultConfig(), zap.NewNop())
	t.Cleanup(r.Stop)
	return r
}
