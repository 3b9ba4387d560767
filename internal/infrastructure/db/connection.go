// Package db opens the SQL mirror database and wires its repositories.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver, registered as "sqlite"

	"github.com/sawpanic/crewrun/internal/persistence"
	"github.com/sawpanic/crewrun/internal/persistence/sqlmirror"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Config selects the mirror database. The mirror is off unless Enabled.
type Config struct {
	Driver          string        `yaml:"driver" env:"MIRROR_DRIVER"`
	DSN             string        `yaml:"dsn" env:"PG_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"PG_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"PG_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"PG_CONN_MAX_LIFETIME"`
	QueryTimeout    time.Duration `yaml:"query_timeout" env:"PG_QUERY_TIMEOUT"`
	Enabled         bool          `yaml:"enabled" env:"MIRROR_ENABLED"`
}

// DefaultConfig returns a disabled PostgreSQL mirror configuration.
func DefaultConfig() Config {
	return Config{
		Driver:          "postgres",
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    30 * time.Second,
	}
}

// Validate checks the settings that matter when the mirror is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("mirror driver must be postgres or sqlite, got %q", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("mirror DSN is required when enabled")
	}
	return nil
}

// Manager owns the mirror connection and its repository.
type Manager struct {
	db     *sqlx.DB
	config Config
	repos  *persistence.Repository
	health *healthChecker
}

// NewManager opens, pings and migrates the mirror. A disabled configuration
// yields a manager with no repositories.
func NewManager(ctx context.Context, config Config) (*Manager, error) {
	if !config.Enabled {
		return &Manager{
			config: config,
			health: &healthChecker{enabled: false},
		}, nil
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sqlx.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s mirror: %w", config.Driver, err)
	}
	if config.Driver == "sqlite" {
		// one writer; a shared in-memory database lives as long as a connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s mirror: %w", config.Driver, err)
	}

	repos := &persistence.Repository{
		Mirror: sqlmirror.NewMirrorRepo(db, config.QueryTimeout),
	}
	if err := repos.Mirror.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{
		db:     db,
		config: config,
		repos:  repos,
		health: &healthChecker{enabled: true, db: db, timeout: config.QueryTimeout},
	}, nil
}

// Repository returns the repositories, nil when the mirror is disabled.
func (m *Manager) Repository() *persistence.Repository {
	return m.repos
}

func (m *Manager) Health() persistence.RepositoryHealth {
	return m.health
}

// IsEnabled returns whether the mirror is active
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled && m.db != nil
}

func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

type healthChecker struct {
	enabled bool
	db      *sqlx.DB
	timeout time.Duration
}

func (h *healthChecker) Health(ctx context.Context) persistence.HealthCheck {
	if !h.enabled {
		return persistence.HealthCheck{
			Healthy:        true,
			Errors:         []string{"SQL mirror disabled"},
			ConnectionPool: map[string]int{"status": 0},
			LastCheck:      time.Now(),
		}
	}

	start := time.Now()
	var errs []string
	healthy := true
	if err := h.Ping(ctx); err != nil {
		errs = append(errs, fmt.Sprintf("ping failed: %v", err))
		healthy = false
	}

	stats := h.db.Stats()
	return persistence.HealthCheck{
		Healthy: healthy,
		Errors:  errs,
		ConnectionPool: map[string]int{
			"max_open": stats.MaxOpenConnections,
			"open":     stats.OpenConnections,
			"in_use":   stats.InUse,
			"idle":     stats.Idle,
		},
		LastCheck:      time.Now(),
		ResponseTimeMS: time.Since(start).Milliseconds(),
	}
}

func (h *healthChecker) Ping(ctx context.Context) error {
	if !h.enabled {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.db.PingContext(pingCtx)
}
