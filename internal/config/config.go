package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"

	"github.com/s2go/demos/internal/soft2d"
)

type Config struct {
	Logging   LoggingConfig   `toml:"logging"`
	Loop      LoopConfig      `toml:"loop"`
	World     WorldConfig     `toml:"world"`
	Scene     SceneConfig     `toml:"scene"`
	Scripting ScriptingConfig `toml:"scripting"`
	Database  DatabaseConfig  `toml:"database"`
	Profile   ProfileConfig   `toml:"profile"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type LoopConfig struct {
	TickRate  time.Duration `toml:"tick_rate"`  // 0 runs frames back to back
	MaxFrames int           `toml:"max_frames"` // 0 uses the scene's frame count
	Dt        float32       `toml:"dt"`         // seconds per frame unless the scene sets one
}

// WorldConfig holds engine limits shared by every scene. Scenes may still
// override gravity, offset, extent, grid resolution and boundary policy.
type WorldConfig struct {
	MaxParticles     uint32  `toml:"max_particles"`
	MaxBodies        uint32  `toml:"max_bodies"`
	MaxElements      uint32  `toml:"max_elements"`
	MaxTriggers      uint32  `toml:"max_triggers"`
	GridResolution   uint32  `toml:"grid_resolution"`
	SubstepDt        float32 `toml:"substep_dt"`
	EnableDebugging  bool    `toml:"enable_debugging"`
	EnableWorldQuery bool    `toml:"enable_world_query"`
}

type SceneConfig struct {
	Path string `toml:"path"`
	Name string `toml:"name"`
}

type ScriptingConfig struct {
	Dir string `toml:"dir"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables the journal
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	FlushInterval   int           `toml:"flush_interval"` // frames between journal writes
}

type ProfileConfig struct {
	Mode string `toml:"mode"` // "", "cpu" or "mem"
	Path string `toml:"path"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func defaults() *Config {
	w := soft2d.DefaultWorldConfig()
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Loop: LoopConfig{
			TickRate: 16 * time.Millisecond,
			Dt:       0.004,
		},
		World: WorldConfig{
			MaxParticles:     w.MaxParticles,
			MaxBodies:        w.MaxBodies,
			MaxElements:      w.MaxElements,
			MaxTriggers:      w.MaxTriggers,
			GridResolution:   w.GridResolution,
			SubstepDt:        w.SubstepDt,
			EnableDebugging:  w.EnableDebugging,
			EnableWorldQuery: w.EnableWorldQuery,
		},
		Scene: SceneConfig{
			Path: "data/yaml/scenes.yaml",
			Name: "emitters",
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			FlushInterval:   60,
		},
		Profile: ProfileConfig{
			Path: ".",
		},
	}
}

// Validate rejects values no scene can run with.
func (c *Config) Validate() error {
	var errs error
	if c.Loop.TickRate < 0 {
		errs = multierr.Append(errs, fmt.Errorf("loop.tick_rate %s is negative", c.Loop.TickRate))
	}
	if c.Loop.MaxFrames < 0 {
		errs = multierr.Append(errs, fmt.Errorf("loop.max_frames %d is negative", c.Loop.MaxFrames))
	}
	if c.Loop.Dt <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("loop.dt %g must be positive", c.Loop.Dt))
	}
	if err := c.World.Base().Validate(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("world: %w", err))
	}
	if c.Scene.Path == "" {
		errs = multierr.Append(errs, errors.New("scene.path is empty"))
	}
	if c.Database.DSN != "" && c.Database.FlushInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("database.flush_interval %d must be positive", c.Database.FlushInterval))
	}
	switch c.Profile.Mode {
	case "", "cpu", "mem":
	default:
		errs = multierr.Append(errs, fmt.Errorf("profile.mode %q is not cpu or mem", c.Profile.Mode))
	}
	return errs
}

// Base returns the engine configuration the scene overrides are applied to.
func (w WorldConfig) Base() soft2d.WorldConfig {
	cfg := soft2d.DefaultWorldConfig()
	cfg.MaxParticles = w.MaxParticles
	cfg.MaxBodies = w.MaxBodies
	cfg.MaxElements = w.MaxElements
	cfg.MaxTriggers = w.MaxTriggers
	cfg.GridResolution = w.GridResolution
	cfg.SubstepDt = w.SubstepDt
	cfg.EnableDebugging = w.EnableDebugging
	cfg.EnableWorldQuery = w.EnableWorldQuery
	return cfg
}
