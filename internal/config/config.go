// Package config loads crewrun settings from crewrun.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/gates"
	"github.com/sawpanic/crewrun/internal/infrastructure/db"
	"github.com/sawpanic/crewrun/internal/remote"
	"github.com/sawpanic/crewrun/internal/store"
)

// DefaultPath is read when no --config flag is given and the file exists.
const DefaultPath = "crewrun.yaml"

// Config is the complete crewrun configuration.
type Config struct {
	Data   DataConfig    `yaml:"data"`
	Season string        `yaml:"season" env:"CREWRUN_SEASON"` // empty: season of today
	Brands []string      `yaml:"brands" env:"CREWRUN_BRANDS" envSeparator:","`
	Assign AssignConfig  `yaml:"assign"`
	Server ServerConfig  `yaml:"server"`
	Cache  CacheConfig   `yaml:"cache"`
	Mirror db.Config     `yaml:"mirror"`
	Remote remote.Config `yaml:"remote"`
	Log    LogConfig     `yaml:"log"`
}

// DataConfig locates the CSV tables.
type DataConfig struct {
	Dir   string      `yaml:"dir" env:"CREWRUN_DATA_DIR"`
	Files store.Files `yaml:"files"`
}

// AssignConfig tunes the assignment engine.
type AssignConfig struct {
	OneBrandPerMonth bool   `yaml:"one_brand_per_month" env:"CREWRUN_ONE_BRAND_PER_MONTH"`
	GateScope        string `yaml:"gate_scope" env:"CREWRUN_GATE_SCOPE"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host           string        `yaml:"host" env:"CREWRUN_HOST"`
	Port           int           `yaml:"port" env:"CREWRUN_PORT"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	Watch          bool          `yaml:"watch" env:"CREWRUN_WATCH"`
}

// CacheConfig selects the view cache backend. An empty RedisAddr keeps the
// cache in memory.
type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	Namespace string        `yaml:"namespace"`
	TTL       time.Duration `yaml:"ttl"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level string `yaml:"level" env:"CREWRUN_LOG_LEVEL"`
	JSON  bool   `yaml:"json" env:"CREWRUN_LOG_JSON"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	brands := make([]string, len(domain.DefaultBrands))
	for i, b := range domain.DefaultBrands {
		brands[i] = string(b)
	}
	return Config{
		Data:   DataConfig{Dir: "data", Files: store.DefaultFiles()},
		Brands: brands,
		Assign: AssignConfig{OneBrandPerMonth: true, GateScope: string(gates.ScopePair)},
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 30 * time.Second,
			MaxUploadBytes: 10 << 20,
		},
		Cache:  CacheConfig{Namespace: "crewrun", TTL: 10 * time.Minute},
		Mirror: db.DefaultConfig(),
		Remote: remote.DefaultConfig(),
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path reads DefaultPath when it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate ensures the configuration is valid and consistent
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data dir cannot be empty")
	}
	if c.Season != "" {
		if _, err := domain.ParseSeason(c.Season); err != nil {
			return err
		}
	}
	if len(c.Brands) == 0 {
		return fmt.Errorf("at least one brand is required")
	}
	seen := make(map[string]bool, len(c.Brands))
	for _, b := range c.Brands {
		key := strings.ToUpper(strings.TrimSpace(b))
		if key == "" {
			return fmt.Errorf("brand codes cannot be empty")
		}
		if seen[key] {
			return fmt.Errorf("brand %s listed twice", key)
		}
		seen[key] = true
	}
	if _, err := gates.ParseScope(c.Assign.GateScope); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if err := c.Mirror.Validate(); err != nil {
		return err
	}
	return c.Remote.Validate()
}

// BrandList returns the configured brands in order.
func (c *Config) BrandList() []domain.Brand {
	out := make([]domain.Brand, len(c.Brands))
	for i, b := range c.Brands {
		out[i] = domain.Brand(strings.ToUpper(strings.TrimSpace(b)))
	}
	return out
}

// SeasonAt returns the configured season, or the season containing now.
func (c *Config) SeasonAt(now time.Time) domain.Season {
	if s, err := domain.ParseSeason(c.Season); err == nil {
		return s
	}
	s, _ := domain.SeasonFor(now.Year(), int(now.Month()))
	return s
}

// Scope returns the parsed gate scope.
func (c *Config) Scope() gates.Scope {
	s, _ := gates.ParseScope(c.Assign.GateScope)
	return s
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
