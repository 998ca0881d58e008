package entity

import (
	"math"

	"github.com/kasuganosora/towerdefense/game/grid"
)

// Tower is a placed defense. Combat only touches LastFiredAt, Facing and
// TargetID; everything else changes through the controller.
type Tower struct {
	ID         int64
	Cell       grid.Cell
	Kind       Kind
	Capability Capability
	Level      int
	Stats      Stats

	// FireRateMs is Stats.FireRateMs divided by the game speed.
	FireRateMs  float64
	LastFiredAt float64
	Facing      float64 // radians, 0 = +col direction
	TargetID    int64
	PlacedAt    float64
}

// NewTower builds a level-1 tower of kind k.
func NewTower(id int64, cell grid.Cell, k Kind, table *Table, speed float64) (*Tower, error) {
	st, err := table.Stats(k, 1)
	if err != nil {
		return nil, err
	}
	t := &Tower{
		ID:         id,
		Cell:       cell,
		Kind:       k,
		Capability: table.Capability(k),
		Level:      1,
		Stats:      st,
	}
	t.ApplySpeed(speed)
	return t, nil
}

// Position returns the cell centre in grid units.
func (t *Tower) Position() (row, col float64) {
	return float64(t.Cell.Row), float64(t.Cell.Col)
}

// ApplySpeed rewrites the effective fire rate for a game speed factor.
func (t *Tower) ApplySpeed(factor float64) {
	if factor <= 0 {
		factor = 1
	}
	t.FireRateMs = t.Stats.FireRateMs / factor
}

// SetLevel moves the tower to level and reloads its stats.
func (t *Tower) SetLevel(level int, table *Table, speed float64) error {
	st, err := table.Stats(t.Kind, level)
	if err != nil {
		return err
	}
	t.Level = level
	t.Stats = st
	t.ApplySpeed(speed)
	return nil
}

// Face turns the tower toward (row, col).
func (t *Tower) Face(row, col float64) {
	tr, tc := t.Position()
	t.Facing = math.Atan2(row-tr, col-tc)
}

// Ready reports whether the cooldown has elapsed at now.
func (t *Tower) Ready(now float64) bool {
	return now-t.LastFiredAt >= t.FireRateMs
}
