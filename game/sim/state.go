package sim

import (
	"fmt"

	"github.com/kasuganosora/towerdefense/game/economy"
	"github.com/kasuganosora/towerdefense/game/entity"
	"github.com/kasuganosora/towerdefense/game/grid"
	"github.com/kasuganosora/towerdefense/game/path"
)

// GameState is the controller's lifecycle state.
type GameState int

const (
	NotStarted GameState = iota
	Running
	Paused
	GameOver
)

func (s GameState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case GameOver:
		return "game_over"
	}
	return fmt.Sprintf("GameState(%d)", int(s))
}

func (s GameState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *GameState) UnmarshalText(b []byte) error {
	for _, v := range []GameState{NotStarted, Running, Paused, GameOver} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown game state %q", b)
}

// SimulationState is everything one game session mutates. The controller
// owns it and hands it to the subsystems by pointer.
type SimulationState struct {
	Grid     *grid.Grid
	Finder   *path.Finder
	Registry *entity.Registry
	Ledger   *economy.Ledger
	Clock    *Clock
}

func newSimulationState(cfg Config) (*SimulationState, error) {
	g, err := grid.New(cfg.Rows, cfg.Cols, cfg.Spawn, cfg.Exit)
	if err != nil {
		return nil, err
	}
	return &SimulationState{
		Grid:     g,
		Finder:   path.NewFinder(g),
		Registry: entity.NewRegistry(),
		Ledger:   economy.NewLedger(cfg.Economy),
		Clock:    NewClock(cfg.MaxDeltaMs),
	}, nil
}

// reset clears the board, the entities, the balances and the clock.
func (s *SimulationState) reset() {
	s.Grid.Clear()
	s.Finder.Invalidate()
	s.Registry.Reset()
	s.Ledger.Reset()
	s.Clock.Reset()
}
