package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s2go/demos/internal/soft2d"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "s2demo.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[logging]
level = "debug"

[loop]
tick_rate = "0s"
max_frames = 250

[world]
max_bodies = 64

[database]
dsn = "postgres://localhost/s2demo"
flush_interval = 10
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, time.Duration(0), cfg.Loop.TickRate)
	assert.Equal(t, 250, cfg.Loop.MaxFrames)
	assert.Equal(t, float32(0.004), cfg.Loop.Dt)
	assert.Equal(t, uint32(64), cfg.World.MaxBodies)
	assert.Equal(t, uint32(90000), cfg.World.MaxParticles)
	assert.Equal(t, "data/yaml/scenes.yaml", cfg.Scene.Path)
	assert.Equal(t, 10, cfg.Database.FlushInterval)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "read config")

	_, err = Load(writeConfig(t, "[loop\n"))
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative tick", func(c *Config) { c.Loop.TickRate = -time.Second }, "loop.tick_rate"},
		{"negative frames", func(c *Config) { c.Loop.MaxFrames = -1 }, "loop.max_frames"},
		{"zero dt", func(c *Config) { c.Loop.Dt = 0 }, "loop.dt"},
		{"zero bodies", func(c *Config) { c.World.MaxBodies = 0 }, soft2d.ErrInvalidWorldConfig.Error()},
		{"no scene file", func(c *Config) { c.Scene.Path = "" }, "scene.path"},
		{"journal without flush", func(c *Config) {
			c.Database.DSN = "postgres://localhost/x"
			c.Database.FlushInterval = 0
		}, "database.flush_interval"},
		{"profile mode", func(c *Config) { c.Profile.Mode = "trace" }, "profile.mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	assert.NoError(t, defaults().Validate())
}

func TestBaseWorldConfig(t *testing.T) {
	cfg := defaults()
	assert.Equal(t, soft2d.DefaultWorldConfig(), cfg.World.Base())

	cfg.World.EnableWorldQuery = true
	cfg.World.GridResolution = 64
	base := cfg.World.Base()
	assert.True(t, base.EnableWorldQuery)
	assert.Equal(t, uint32(64), base.GridResolution)
}

func TestShippedConfig(t *testing.T) {
	_, err := Load(filepath.Join("..", "..", "config", "s2demo.toml"))
	assert.NoError(t, err)
}
