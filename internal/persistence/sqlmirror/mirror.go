// Package sqlmirror implements persistence.MirrorRepo on PostgreSQL and
// SQLite through sqlx.
package sqlmirror

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/crewrun/internal/persistence"
)

// batchSize keeps multi-row inserts under the bind parameter limits of both
// engines.
const batchSize = 200

var schema = []string{
	`CREATE TABLE IF NOT EXISTS influencers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		followers INTEGER NOT NULL DEFAULT 0,
		unit_fee INTEGER NOT NULL DEFAULT 0,
		sec_usage TEXT NOT NULL DEFAULT '',
		sec_period TEXT NOT NULL DEFAULT '',
		contract_season TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS influencer_quotas (
		influencer_id TEXT NOT NULL,
		brand TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		PRIMARY KEY (influencer_id, brand)
	)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		season TEXT NOT NULL,
		month INTEGER NOT NULL,
		brand TEXT NOT NULL,
		influencer_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		followers INTEGER NOT NULL DEFAULT 0,
		unit_fee INTEGER NOT NULL DEFAULT 0,
		brand_contract INTEGER NOT NULL DEFAULT 0,
		brand_remaining INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT '',
		batch_id TEXT NOT NULL DEFAULT '',
		assigned_at TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (season, month, brand, influencer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS executions (
		season TEXT NOT NULL,
		month INTEGER NOT NULL,
		brand TEXT NOT NULL,
		influencer_id TEXT NOT NULL,
		executed INTEGER NOT NULL DEFAULT 0,
		url TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (season, month, brand, influencer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS monthly_targets (
		season TEXT NOT NULL,
		month INTEGER NOT NULL,
		brand TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (season, month, brand)
	)`,
}

// mirrorTables lists the tables in delete order.
var mirrorTables = []string{"influencer_quotas", "influencers", "assignments", "executions", "monthly_targets"}

type mirrorRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewMirrorRepo creates a mirror repository over db.
func NewMirrorRepo(db *sqlx.DB, timeout time.Duration) persistence.MirrorRepo {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &mirrorRepo{db: db, timeout: timeout}
}

func (r *mirrorRepo) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate mirror schema: %w", err)
		}
	}
	return nil
}

func (r *mirrorRepo) Replace(ctx context.Context, t persistence.Tables) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin mirror transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range mirrorTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := insertBatches(ctx, tx, `INSERT INTO influencers
		(id, name, followers, unit_fee, sec_usage, sec_period, contract_season)
		VALUES (:id, :name, :followers, :unit_fee, :sec_usage, :sec_period, :contract_season)`, t.Influencers); err != nil {
		return err
	}
	if err := insertBatches(ctx, tx, `INSERT INTO influencer_quotas (influencer_id, brand, quantity)
		VALUES (:influencer_id, :brand, :quantity)`, t.Quotas); err != nil {
		return err
	}
	if err := insertBatches(ctx, tx, `INSERT INTO assignments
		(season, month, brand, influencer_id, name, followers, unit_fee, brand_contract, brand_remaining, source, batch_id, assigned_at)
		VALUES (:season, :month, :brand, :influencer_id, :name, :followers, :unit_fee, :brand_contract, :brand_remaining, :source, :batch_id, :assigned_at)`, t.Assignments); err != nil {
		return err
	}
	if err := insertBatches(ctx, tx, `INSERT INTO executions
		(season, month, brand, influencer_id, executed, url, updated_at)
		VALUES (:season, :month, :brand, :influencer_id, :executed, :url, :updated_at)`, t.Executions); err != nil {
		return err
	}
	if err := insertBatches(ctx, tx, `INSERT INTO monthly_targets (season, month, brand, quantity)
		VALUES (:season, :month, :brand, :quantity)`, t.Targets); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mirror: %w", err)
	}
	return nil
}

func insertBatches[T any](ctx context.Context, tx *sqlx.Tx, query string, rows []T) error {
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if _, err := tx.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return fmt.Errorf("failed to insert mirror rows: %w", err)
		}
	}
	return nil
}

func (r *mirrorRepo) Counts(ctx context.Context) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out := make(map[string]int, len(mirrorTables))
	for _, table := range mirrorTables {
		var n int
		if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}

func (r *mirrorRepo) Assignments(ctx context.Context, season string) ([]persistence.AssignmentRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := r.db.Rebind(`
		SELECT season, month, brand, influencer_id, name, followers, unit_fee,
		       brand_contract, brand_remaining, source, batch_id, assigned_at
		FROM assignments
		WHERE season = ?
		ORDER BY (month + 3) % 12, brand, influencer_id`)

	var rows []persistence.AssignmentRow
	if err := r.db.SelectContext(ctx, &rows, query, season); err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	return rows, nil
}
