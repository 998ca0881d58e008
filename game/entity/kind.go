package entity

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
)

// Kind names a tower type.
type Kind string

const (
	KindCannon Kind = "cannon"
	KindGun    Kind = "gun"
	KindLaser  Kind = "laser"
)

// Capability selects how a tower delivers damage.
type Capability int

const (
	FireProjectile Capability = iota // spawns a homing projectile
	FireInstant                      // damage lands on the target immediately
)

func (c Capability) String() string {
	switch c {
	case FireProjectile:
		return "projectile"
	case FireInstant:
		return "instant"
	}
	return "unknown"
}

// ParseCapability is the inverse of Capability.String.
func ParseCapability(s string) (Capability, error) {
	switch s {
	case "projectile", "":
		return FireProjectile, nil
	case "instant":
		return FireInstant, nil
	}
	return 0, fmt.Errorf("unknown capability %q", s)
}

// KindDef holds the level-1 stats of a kind and how they grow per upgrade.
type KindDef struct {
	Capability        Capability
	Damage            int
	FireRateMs        float64
	Range             float64 // in cells
	BuyCost           int
	UpgradeCost       int
	DamagePerLevel    int
	FireRateFactor    float64 // multiplier applied per level
	RangeFactor       float64
	UpgradeCostFactor float64
}

// Stats is one resolved row of the stat table.
type Stats struct {
	Damage      int     `json:"damage"`
	FireRateMs  float64 `json:"fire_rate_ms"`
	Range       float64 `json:"range"`
	BuyCost     int     `json:"buy_cost"`
	SellCost    int     `json:"sell_cost"`
	UpgradeCost int     `json:"upgrade_cost"` // 0 at max level
}

var ErrUnknownKind = errors.New("unknown tower kind")

// DefaultKinds returns the built-in tower definitions.
func DefaultKinds() map[Kind]KindDef {
	return map[Kind]KindDef{
		KindCannon: {
			Capability: FireProjectile, Damage: 20, FireRateMs: 3000, Range: 3,
			BuyCost: 50, UpgradeCost: 50,
			DamagePerLevel: 10, FireRateFactor: 0.8, RangeFactor: 1.2, UpgradeCostFactor: 1.5,
		},
		KindGun: {
			Capability: FireProjectile, Damage: 8, FireRateMs: 800, Range: 2,
			BuyCost: 40, UpgradeCost: 40,
			DamagePerLevel: 4, FireRateFactor: 0.8, RangeFactor: 1.2, UpgradeCostFactor: 1.5,
		},
		KindLaser: {
			Capability: FireInstant, Damage: 12, FireRateMs: 1500, Range: 2.5,
			BuyCost: 70, UpgradeCost: 60,
			DamagePerLevel: 6, FireRateFactor: 0.8, RangeFactor: 1.2, UpgradeCostFactor: 1.5,
		},
	}
}

// Table is the per-kind, per-level stat lookup. Immutable after NewTable.
type Table struct {
	maxLevel int
	levels   map[Kind][]Stats
	caps     map[Kind]Capability
}

// NewTable expands defs into maxLevel rows per kind.
func NewTable(defs map[Kind]KindDef, maxLevel int) (*Table, error) {
	if maxLevel < 1 {
		return nil, fmt.Errorf("max level must be >= 1, got %d", maxLevel)
	}
	if len(defs) == 0 {
		return nil, errors.New("no tower kinds defined")
	}
	t := &Table{
		maxLevel: maxLevel,
		levels:   make(map[Kind][]Stats, len(defs)),
		caps:     make(map[Kind]Capability, len(defs)),
	}
	for k, d := range defs {
		if d.Damage <= 0 || d.FireRateMs <= 0 || d.Range <= 0 {
			return nil, fmt.Errorf("kind %q: damage, fire rate and range must be positive", k)
		}
		if d.BuyCost < 0 || d.UpgradeCost < 0 {
			return nil, fmt.Errorf("kind %q: negative cost", k)
		}
		t.caps[k] = d.Capability
		t.levels[k] = expand(d, maxLevel)
	}
	return t, nil
}

func expand(d KindDef, maxLevel int) []Stats {
	rows := make([]Stats, maxLevel)
	dmg, rate, rng := d.Damage, d.FireRateMs, d.Range
	upgrade := d.UpgradeCost
	invested := d.BuyCost
	for i := 0; i < maxLevel; i++ {
		row := Stats{
			Damage:     dmg,
			FireRateMs: rate,
			Range:      rng,
			BuyCost:    d.BuyCost,
			SellCost:   invested / 2,
		}
		if i < maxLevel-1 {
			row.UpgradeCost = upgrade
			invested += upgrade
			upgrade = int(math.Floor(float64(upgrade) * orOne(d.UpgradeCostFactor)))
		}
		rows[i] = row
		dmg += d.DamagePerLevel
		rate *= orOne(d.FireRateFactor)
		rng *= orOne(d.RangeFactor)
	}
	return rows
}

func orOne(f float64) float64 {
	if f <= 0 {
		return 1
	}
	return f
}

// Stats returns the row for kind k at level (1-based).
func (t *Table) Stats(k Kind, level int) (Stats, error) {
	rows, ok := t.levels[k]
	if !ok {
		return Stats{}, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	if level < 1 || level > len(rows) {
		return Stats{}, fmt.Errorf("kind %q has no level %d", k, level)
	}
	return rows[level-1], nil
}

// Capability returns how kind k fires.
func (t *Table) Capability(k Kind) Capability { return t.caps[k] }

// Has reports whether k is a known kind.
func (t *Table) Has(k Kind) bool {
	_, ok := t.levels[k]
	return ok
}

func (t *Table) MaxLevel() int { return t.maxLevel }

// Kinds returns the known kinds in name order.
func (t *Table) Kinds() []Kind {
	return slices.Sorted(maps.Keys(t.levels))
}
