package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/gates"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crewrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, domain.DefaultBrands, cfg.BrandList())
	assert.Equal(t, gates.ScopePair, cfg.Scope())
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
data:
  dir: /srv/crew
season: 26ss
brands: [MLB, DX]
assign:
  one_brand_per_month: false
  gate_scope: month
server:
  port: 9000
cache:
  ttl: 1m
`)
	t.Setenv("CREWRUN_PORT", "9100")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/crew", cfg.Data.Dir)
	assert.Equal(t, "influencer.csv", cfg.Data.Files.Roster, "unset keys keep defaults")
	assert.Equal(t, domain.Season("26SS"), cfg.SeasonAt(time.Now()))
	assert.Equal(t, []domain.Brand{"MLB", "DX"}, cfg.BrandList())
	assert.False(t, cfg.Assign.OneBrandPerMonth)
	assert.Equal(t, gates.ScopeMonth, cfg.Scope())
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadBrandsFromEnv(t *testing.T) {
	t.Setenv("CREWRUN_BRANDS", "mlb,st")
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)
	assert.Equal(t, []domain.Brand{"MLB", "ST"}, cfg.BrandList())
}

func TestSeasonAtFallsBackToToday(t *testing.T) {
	cfg := Default()
	now := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, domain.Season("25FW"), cfg.SeasonAt(now))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"season", func(c *Config) { c.Season = "2025" }},
		{"no brands", func(c *Config) { c.Brands = nil }},
		{"duplicate brand", func(c *Config) { c.Brands = []string{"MLB", "mlb"} }},
		{"gate scope", func(c *Config) { c.Assign.GateScope = "global" }},
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"mirror dsn", func(c *Config) { c.Mirror.Enabled = true }},
		{"remote", func(c *Config) { c.Remote.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
