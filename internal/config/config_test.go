package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.4, cfg.Validation.AcceptThreshold)
	assert.Equal(t, 0.6, cfg.Validation.CorrectionThreshold)
	assert.Equal(t, 5, cfg.Filter.MinSwitches)
	assert.Equal(t, 30, cfg.Filter.MaxSwitches)
	assert.Less(t, cfg.Cache.SearchTTL, cfg.Cache.ResearchTTL)
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "buildkeeb.yaml")
	yamlDoc := `
server:
  port: 9100
database:
  driver: sqlite
  sqlite:
    path: data/catalog.db
cache:
  search_ttl: 30m
validation:
  correction_threshold: 0.7
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	t.Setenv("LLM_MODEL", "openai/gpt-4o-mini")
	t.Setenv("REDIS_URL", "redis://cache:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "data/catalog.db"), cfg.Database.SQLite.Path)
	assert.Equal(t, 30*time.Minute, cfg.Cache.SearchTTL)
	assert.Equal(t, 0.7, cfg.Validation.CorrectionThreshold)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }},
		{"bad cache driver", func(c *Config) { c.Cache.Driver = "memcached" }},
		{"correction below accept", func(c *Config) { c.Validation.CorrectionThreshold = 0.3 }},
		{"zero cap", func(c *Config) { c.Filter.MaxBoards = 0 }},
		{"zero ttl", func(c *Config) { c.Cache.ResearchTTL = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolveRelativePath(t *testing.T) {
	assert.Equal(t, "/etc/bk/x.db", ResolveRelativePath("/etc/bk/config.yaml", "x.db"))
	assert.Equal(t, "/abs.db", ResolveRelativePath("/etc/bk/config.yaml", "/abs.db"))
	assert.Equal(t, ":memory:", ResolveRelativePath("/etc/bk/config.yaml", ":memory:"))
}
