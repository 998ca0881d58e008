package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kasuganosora/towerdefense/audit"
	"github.com/kasuganosora/towerdefense/cache"
	"github.com/kasuganosora/towerdefense/game/combat"
	"github.com/kasuganosora/towerdefense/game/economy"
	"github.com/kasuganosora/towerdefense/game/entity"
	"github.com/kasuganosora/towerdefense/game/grid"
	"github.com/kasuganosora/towerdefense/game/room"
	"github.com/kasuganosora/towerdefense/game/sim"
	"github.com/kasuganosora/towerdefense/game/wave"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig           `mapstructure:"server"`
	Game    GameConfig             `mapstructure:"game"`
	Economy economy.Rules          `mapstructure:"economy"`
	Wave    wave.Config            `mapstructure:"wave"`
	Combat  combat.Config          `mapstructure:"combat"`
	Towers  map[string]TowerConfig `mapstructure:"towers"`
	Audit   audit.Config           `mapstructure:"audit"`
	Cache   cache.Config           `mapstructure:"cache"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
	// AllowedOrigins lists the WebSocket origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	RateLimitIdle  time.Duration `mapstructure:"rate_limit_idle"`
	// IntentAllowlist restricts state-changing endpoints to these CIDRs.
	// Empty means any address.
	IntentAllowlist []string      `mapstructure:"intent_allowlist"`
	StatsInterval   time.Duration `mapstructure:"stats_interval"`
}

type GameConfig struct {
	TickMs             int       `mapstructure:"tick_ms"`
	SnapshotEveryTicks int       `mapstructure:"snapshot_every_ticks"`
	SubscriberBuffer   int       `mapstructure:"subscriber_buffer"`
	MaxDeltaMs         float64   `mapstructure:"max_delta_ms"`
	Rows               int       `mapstructure:"rows"`
	Cols               int       `mapstructure:"cols"`
	Spawn              []int     `mapstructure:"spawn"` // [row, col]; empty = bottom middle
	Exit               []int     `mapstructure:"exit"`  // [row, col]; empty = top middle
	Speeds             []float64 `mapstructure:"speeds"`
	RouteRecalc        string    `mapstructure:"route_recalc"`
	MaxLevel           int       `mapstructure:"max_level"`
}

// TowerConfig is the level-1 definition of one tower kind.
type TowerConfig struct {
	Capability        string  `mapstructure:"capability"` // projectile | instant
	Damage            int     `mapstructure:"damage"`
	FireRateMs        float64 `mapstructure:"fire_rate_ms"`
	Range             float64 `mapstructure:"range"`
	BuyCost           int     `mapstructure:"buy_cost"`
	UpgradeCost       int     `mapstructure:"upgrade_cost"`
	DamagePerLevel    int     `mapstructure:"damage_per_level"`
	FireRateFactor    float64 `mapstructure:"fire_rate_factor"`
	RangeFactor       float64 `mapstructure:"range_factor"`
	UpgradeCostFactor float64 `mapstructure:"upgrade_cost_factor"`
}

// Load reads config from the given YAML file path. Environment variables
// prefixed with TD_ override file values (TD_SERVER_PORT=9000).
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return unmarshal(v)
}

// Default returns the built-in configuration without reading a file.
func Default() *Config {
	cfg, err := unmarshal(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	return cfg
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("td")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.rate_limit_idle", "10m")
	v.SetDefault("server.intent_allowlist", []string{})
	v.SetDefault("server.stats_interval", "1m")

	ad := audit.DefaultConfig()
	v.SetDefault("audit.buffer", ad.Buffer)
	v.SetDefault("audit.batch_size", ad.BatchSize)
	v.SetDefault("audit.flush_interval", ad.FlushInterval)
	v.SetDefault("audit.keep", ad.Keep)
	v.SetDefault("audit.store_key", ad.StoreKey)
	v.SetDefault("audit.store_max", ad.StoreMax)

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	rd := room.DefaultConfig()
	sd := sim.DefaultConfig()
	v.SetDefault("game.tick_ms", rd.TickMs)
	v.SetDefault("game.snapshot_every_ticks", rd.SnapshotEveryTicks)
	v.SetDefault("game.subscriber_buffer", rd.SubscriberBuffer)
	v.SetDefault("game.max_delta_ms", sd.MaxDeltaMs)
	v.SetDefault("game.rows", sd.Rows)
	v.SetDefault("game.cols", sd.Cols)
	v.SetDefault("game.spawn", []int{})
	v.SetDefault("game.exit", []int{})
	v.SetDefault("game.speeds", sd.Speeds)
	v.SetDefault("game.route_recalc", string(sd.RouteRecalc))
	v.SetDefault("game.max_level", sd.MaxLevel)

	v.SetDefault("economy.start_money", sd.Economy.StartMoney)
	v.SetDefault("economy.start_health", sd.Economy.StartHealth)
	v.SetDefault("economy.kill_score", sd.Economy.KillScore)
	v.SetDefault("economy.kill_money", sd.Economy.KillMoney)
	v.SetDefault("economy.leak_penalty", sd.Economy.LeakPenalty)

	v.SetDefault("wave.interval_ms", sd.Wave.IntervalMs)
	v.SetDefault("wave.spawn_on_start", sd.Wave.SpawnOnStart)
	v.SetDefault("wave.max_population", sd.Wave.MaxPopulation)
	v.SetDefault("wave.population_policy", sd.Wave.PopulationPolicy)
	v.SetDefault("wave.near_goal_fraction", sd.Wave.NearGoalFraction)
	v.SetDefault("wave.base_hp", sd.Wave.BaseHP)
	v.SetDefault("wave.base_speed", sd.Wave.BaseSpeed)
	v.SetDefault("wave.wave_size", sd.Wave.WaveSize)
	v.SetDefault("wave.hp_growth_per_wave", sd.Wave.HPGrowthPerWave)

	v.SetDefault("combat.hit_radius", sd.Combat.HitRadius)
	v.SetDefault("combat.projectile_speed", sd.Combat.ProjectileSpeed)
	v.SetDefault("combat.max_lifetime_ms", sd.Combat.MaxLifetimeMs)
	v.SetDefault("combat.max_projectiles", sd.Combat.MaxProjectiles)
	v.SetDefault("combat.max_projectiles_per_tower", sd.Combat.MaxProjectilesPerTower)

	for k, d := range sd.Kinds {
		p := "towers." + string(k) + "."
		v.SetDefault(p+"capability", d.Capability.String())
		v.SetDefault(p+"damage", d.Damage)
		v.SetDefault(p+"fire_rate_ms", d.FireRateMs)
		v.SetDefault(p+"range", d.Range)
		v.SetDefault(p+"buy_cost", d.BuyCost)
		v.SetDefault(p+"upgrade_cost", d.UpgradeCost)
		v.SetDefault(p+"damage_per_level", d.DamagePerLevel)
		v.SetDefault(p+"fire_rate_factor", d.FireRateFactor)
		v.SetDefault(p+"range_factor", d.RangeFactor)
		v.SetDefault(p+"upgrade_cost_factor", d.UpgradeCostFactor)
	}
	return v
}

// RoomConfig returns the real-time loop settings.
func (c *Config) RoomConfig() room.Config {
	return room.Config{
		TickMs:             c.Game.TickMs,
		SnapshotEveryTicks: c.Game.SnapshotEveryTicks,
		SubscriberBuffer:   c.Game.SubscriberBuffer,
	}
}

// SimConfig converts the file layout into a controller config.
func (c *Config) SimConfig() (sim.Config, error) {
	g := c.Game
	spawn, exit := sim.DefaultEndpoints(g.Rows, g.Cols)
	var err error
	if spawn, err = cellOr(g.Spawn, spawn, "game.spawn"); err != nil {
		return sim.Config{}, err
	}
	if exit, err = cellOr(g.Exit, exit, "game.exit"); err != nil {
		return sim.Config{}, err
	}
	kinds, err := c.Kinds()
	if err != nil {
		return sim.Config{}, err
	}
	return sim.Config{
		Rows:        g.Rows,
		Cols:        g.Cols,
		Spawn:       spawn,
		Exit:        exit,
		MaxDeltaMs:  g.MaxDeltaMs,
		Speeds:      g.Speeds,
		RouteRecalc: sim.RecalcPolicy(g.RouteRecalc),
		MaxLevel:    g.MaxLevel,
		Kinds:       kinds,
		Economy:     c.Economy,
		Wave:        c.Wave,
		Combat:      c.Combat,
	}, nil
}

// Kinds converts the towers section into kind definitions.
func (c *Config) Kinds() (map[entity.Kind]entity.KindDef, error) {
	out := make(map[entity.Kind]entity.KindDef, len(c.Towers))
	for name, t := range c.Towers {
		capability, err := entity.ParseCapability(t.Capability)
		if err != nil {
			return nil, fmt.Errorf("towers.%s: %w", name, err)
		}
		out[entity.Kind(name)] = entity.KindDef{
			Capability:        capability,
			Damage:            t.Damage,
			FireRateMs:        t.FireRateMs,
			Range:             t.Range,
			BuyCost:           t.BuyCost,
			UpgradeCost:       t.UpgradeCost,
			DamagePerLevel:    t.DamagePerLevel,
			FireRateFactor:    t.FireRateFactor,
			RangeFactor:       t.RangeFactor,
			UpgradeCostFactor: t.UpgradeCostFactor,
		}
	}
	return out, nil
}

func cellOr(v []int, def grid.Cell, key string) (grid.Cell, error) {
	switch len(v) {
	case 0:
		return def, nil
	case 2:
		return grid.Cell{Row: v[0], Col: v[1]}, nil
	}
	return grid.Cell{}, fmt.Errorf("%s must be [row, col], got %v", key, v)
}
