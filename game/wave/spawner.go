package wave

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kasuganosora/towerdefense/game/entity"
	"github.com/kasuganosora/towerdefense/game/event"
	"github.com/kasuganosora/towerdefense/game/grid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrUnreachableSpawn means no route exists from the spawn cell to the exit.
	ErrUnreachableSpawn = errors.New("no route from spawn to exit")
	// ErrPopulationFull means the cap was reached and nothing could be evicted.
	ErrPopulationFull = errors.New("population cap reached")
)

// Policy decides what happens when a spawn is due at the population cap.
type Policy string

const (
	EvictLeastAdvanced Policy = "evict_least_advanced"
	EvictOldest        Policy = "evict_oldest"
	SkipSpawn          Policy = "skip"
)

// ParsePolicy validates a configured policy name. Empty selects the default.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case "":
		return EvictLeastAdvanced, nil
	case EvictLeastAdvanced, EvictOldest, SkipSpawn:
		return p, nil
	}
	return "", fmt.Errorf("unknown population policy %q", s)
}

// Config holds spawn timing, population and difficulty settings.
type Config struct {
	IntervalMs       float64 `mapstructure:"interval_ms"`
	SpawnOnStart     bool    `mapstructure:"spawn_on_start"`
	MaxPopulation    int     `mapstructure:"max_population"`
	PopulationPolicy string  `mapstructure:"population_policy"`
	NearGoalFraction float64 `mapstructure:"near_goal_fraction"`
	BaseHP           int     `mapstructure:"base_hp"`
	BaseSpeed        float64 `mapstructure:"base_speed"` // cells per second
	WaveSize         int     `mapstructure:"wave_size"`
	HPGrowthPerWave  float64 `mapstructure:"hp_growth_per_wave"`
}

func DefaultConfig() Config {
	return Config{
		IntervalMs:       10000,
		SpawnOnStart:     true,
		MaxPopulation:    20,
		PopulationPolicy: string(EvictLeastAdvanced),
		NearGoalFraction: 0.8,
		BaseHP:           100,
		BaseSpeed:        0.5,
		WaveSize:         10,
		HPGrowthPerWave:  0.1,
	}
}

// Diagnostics counts spawn outcomes since the last Reset.
type Diagnostics struct {
	Spawned     int `json:"spawned"`
	Evicted     int `json:"evicted"`
	SkippedFull int `json:"skipped_full"`
	Unreachable int `json:"unreachable"`
}

// Spawner adds creatures at the spawn cell on a fixed interval.
type Spawner struct {
	cfg    Config
	policy Policy

	reg         *entity.Registry
	finder      entity.RouteFinder
	spawn, exit grid.Cell
	bus         *event.Bus
	logger      *zap.Logger

	speed       float64
	intervalMs  float64
	lastSpawnAt float64
	pending     bool // next Tick spawns regardless of the interval
	wave        int
	count       int
	diag        Diagnostics
	warn        rate.Sometimes
}

// NewSpawner validates cfg and creates a spawner feeding reg.
func NewSpawner(cfg Config, reg *entity.Registry, finder entity.RouteFinder,
	spawn, exit grid.Cell, bus *event.Bus, logger *zap.Logger) (*Spawner, error) {
	policy, err := ParsePolicy(cfg.PopulationPolicy)
	if err != nil {
		return nil, err
	}
	if cfg.IntervalMs <= 0 {
		return nil, fmt.Errorf("spawn interval must be positive, got %v", cfg.IntervalMs)
	}
	if cfg.BaseHP <= 0 || cfg.BaseSpeed <= 0 {
		return nil, errors.New("creature hp and speed must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Spawner{
		cfg:    cfg,
		policy: policy,
		reg:    reg,
		finder: finder,
		spawn:  spawn,
		exit:   exit,
		bus:    bus,
		logger: logger,
		warn:   rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	s.Reset()
	return s, nil
}

// Reset restores the initial timer, wave counter and diagnostics. Speed is
// kept.
func (s *Spawner) Reset() {
	if s.speed == 0 {
		s.speed = 1
	}
	s.intervalMs = s.cfg.IntervalMs / s.speed
	s.lastSpawnAt = 0
	s.pending = s.cfg.SpawnOnStart
	s.wave = 1
	s.count = 0
	s.diag = Diagnostics{}
}

// SetSpeed rescales the effective interval.
func (s *Spawner) SetSpeed(factor float64) {
	if factor <= 0 {
		return
	}
	s.speed = factor
	s.intervalMs = s.cfg.IntervalMs / factor
}

func (s *Spawner) IntervalMs() float64       { return s.intervalMs }
func (s *Spawner) LastSpawnAt() float64      { return s.lastSpawnAt }
func (s *Spawner) Wave() int                 { return s.wave }
func (s *Spawner) Diagnostics() Diagnostics  { return s.diag }
func (s *Spawner) Policy() Policy            { return s.policy }
func (s *Spawner) NearGoalFraction() float64 { return s.nearGoal() }

func (s *Spawner) nearGoal() float64 {
	if s.cfg.NearGoalFraction <= 0 || s.cfg.NearGoalFraction > 1 {
		return 0.8
	}
	return s.cfg.NearGoalFraction
}

// Due reports whether a spawn attempt would happen at now.
func (s *Spawner) Due(now float64) bool {
	return s.pending || now-s.lastSpawnAt >= s.intervalMs
}

// Tick spawns one creature if the interval has elapsed. It returns the new
// creature, or nil with ErrPopulationFull or ErrUnreachableSpawn when the
// cycle was skipped. Neither error is fatal and the timer is left untouched
// so the next tick retries.
func (s *Spawner) Tick(now float64) (*entity.Creature, error) {
	if !s.Due(now) {
		return nil, nil
	}
	// Route first: nothing is evicted for a spawn that cannot happen.
	route := s.finder.FindRoute(s.spawn, s.exit)
	if len(route) == 0 {
		s.diag.Unreachable++
		s.warn.Do(func() {
			s.logger.Warn("spawn skipped: exit unreachable",
				zap.Stringer("spawn", s.spawn),
				zap.Stringer("exit", s.exit),
				zap.Int("occurrences", s.diag.Unreachable))
		})
		return nil, ErrUnreachableSpawn
	}
	if s.cfg.MaxPopulation > 0 && s.reg.CreatureCount() >= s.cfg.MaxPopulation {
		if !s.makeRoom(now) {
			s.diag.SkippedFull++
			return nil, ErrPopulationFull
		}
	}

	hp := s.hpForWave()
	c := entity.NewCreature(s.reg.NextID(), route, hp, s.cfg.BaseSpeed, s.speed, now)
	s.reg.AddCreature(c)
	s.lastSpawnAt = now
	s.pending = false
	s.diag.Spawned++
	s.count++
	if s.cfg.WaveSize > 0 && s.count%s.cfg.WaveSize == 0 {
		s.wave++
		s.logger.Debug("wave advanced", zap.Int("wave", s.wave))
	}
	s.bus.Emit(event.Event{Type: event.CreatureSpawned, At: now, Data: c.ID})
	return c, nil
}

func (s *Spawner) hpForWave() int {
	growth := 1 + s.cfg.HPGrowthPerWave*float64(s.wave-1)
	if growth < 1 {
		growth = 1
	}
	return int(math.Round(float64(s.cfg.BaseHP) * growth))
}

// makeRoom evicts one creature according to the policy and reports whether
// a slot was freed.
func (s *Spawner) makeRoom(now float64) bool {
	var victim *entity.Creature
	switch s.policy {
	case SkipSpawn:
		return false
	case EvictOldest:
		victim = s.oldestEvictable()
	default:
		victim = s.leastAdvanced()
	}
	if victim == nil {
		return false
	}
	victim.State = entity.Evicted
	s.reg.RemoveCreature(victim.ID)
	s.diag.Evicted++
	s.logger.Debug("creature evicted",
		zap.Int64("creature_id", victim.ID),
		zap.Float64("progress", victim.Progress()))
	s.bus.Emit(event.Event{Type: event.CreatureEvicted, At: now, Data: victim.ID})
	return true
}

// leastAdvanced picks the lowest-progress creature below the near-goal
// fraction. Ties go to the lowest ID.
func (s *Spawner) leastAdvanced() *entity.Creature {
	limit := s.nearGoal()
	var best *entity.Creature
	for _, c := range s.reg.LiveCreatures() {
		p := c.Progress()
		if p >= limit {
			continue
		}
		if best == nil || p < best.Progress() {
			best = c
		}
	}
	return best
}

func (s *Spawner) oldestEvictable() *entity.Creature {
	limit := s.nearGoal()
	for _, c := range s.reg.LiveCreatures() {
		if c.Progress() < limit {
			return c
		}
	}
	return nil
}
