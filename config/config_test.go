package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(FileEnvVar, "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DriverJSON, cfg.Store.Driver)
	assert.Equal(t, "leveling", cfg.Store.JSON.Name)
	assert.Equal(t, guild.PolicySingleStep, cfg.Policy())
	assert.Equal(t, guild.OverflowCarry, cfg.Overflow())
	assert.True(t, cfg.Engine.MutationEvents)
	assert.False(t, cfg.Engine.GuildLocks)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leveling.yaml")
	yamlDoc := `
store:
  driver: sqlite
  sqlite:
    path: /tmp/levels.db
  retry:
    initial_delay: 200ms
engine:
  policy: v2
  overflow: reset
  guild_locks: true
http:
  port: 9000
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	t.Setenv("LEVELING_HTTP_PORT", "9100")
	t.Setenv("LEVELING_STORE_SQLITE_PATH", "/var/lib/levels.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/var/lib/levels.db", cfg.Store.SQLite.Path)
	assert.Equal(t, 200*time.Millisecond, cfg.Store.Retry.InitialDelay)
	assert.Equal(t, 3, cfg.Store.Retry.MaxAttempts)
	assert.Equal(t, guild.PolicyCascade, cfg.Policy())
	assert.Equal(t, guild.OverflowReset, cfg.Overflow())
	assert.True(t, cfg.Engine.GuildLocks)
	assert.Equal(t, 9100, cfg.HTTP.Port)
}

func TestLoad_FileFromEnvVar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: memory\n"), 0o644))
	t.Setenv(FileEnvVar, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "enmap" }, "store driver must be one of"},
		{"postgres without url", func(c *Config) { c.Store.Driver = DriverPostgres }, "LEVELING_STORE_POSTGRES_URL"},
		{"json without name", func(c *Config) { c.Store.JSON.Name = "" }, "json name"},
		{"bad policy", func(c *Config) { c.Engine.Policy = "v3" }, "level-up policy"},
		{"bad overflow", func(c *Config) { c.Engine.Overflow = "spill" }, "overflow mode"},
		{"relay without addr", func(c *Config) {
			c.Events.RedisRelay = true
			c.Events.RedisAddr = ""
		}, "redis_addr"},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, "http port"},
		{"bad log level", func(c *Config) { c.Observability.LogLevel = "loud" }, "log level"},
		{"bad retries", func(c *Config) { c.Store.Retry.MaxAttempts = 0 }, "max_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "nope"
	cfg.HTTP.Port = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store driver")
	assert.Contains(t, err.Error(), "http port")
}
