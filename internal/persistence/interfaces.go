// Package persistence describes the optional SQL mirror of the CSV tables.
package persistence

import (
	"context"
	"time"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/store"
)

// InfluencerRow is a roster entry as stored in the mirror.
type InfluencerRow struct {
	ID              string `json:"id" db:"id"`
	Name            string `json:"name" db:"name"`
	Followers       int    `json:"followers" db:"followers"`
	UnitFee         int    `json:"unit_fee" db:"unit_fee"`
	SecondaryUsage  string `json:"sec_usage" db:"sec_usage"`
	SecondaryPeriod string `json:"sec_period" db:"sec_period"`
	ContractSeason  string `json:"contract_season" db:"contract_season"`
}

// QuotaRow is one contracted count of the roster.
type QuotaRow struct {
	InfluencerID string `json:"id" db:"influencer_id"`
	Brand        string `json:"brand" db:"brand"`
	Quantity     int    `json:"quantity" db:"quantity"`
}

// AssignmentRow is one history row.
type AssignmentRow struct {
	Season         string `json:"season" db:"season"`
	Month          int    `json:"month" db:"month"`
	Brand          string `json:"brand" db:"brand"`
	InfluencerID   string `json:"id" db:"influencer_id"`
	Name           string `json:"name" db:"name"`
	Followers      int    `json:"followers" db:"followers"`
	UnitFee        int    `json:"unit_fee" db:"unit_fee"`
	BrandContract  int    `json:"brand_contract" db:"brand_contract"`
	BrandRemaining int    `json:"brand_remaining" db:"brand_remaining"`
	Source         string `json:"source" db:"source"`
	BatchID        string `json:"batch_id" db:"batch_id"`
	AssignedAt     string `json:"assigned_at" db:"assigned_at"`
}

// ExecutionRow is one execution status row.
type ExecutionRow struct {
	Season       string `json:"season" db:"season"`
	Month        int    `json:"month" db:"month"`
	Brand        string `json:"brand" db:"brand"`
	InfluencerID string `json:"id" db:"influencer_id"`
	Executed     int    `json:"executed" db:"executed"`
	URL          string `json:"url" db:"url"`
	UpdatedAt    string `json:"updated_at" db:"updated_at"`
}

// TargetRow is one monthly target.
type TargetRow struct {
	Season   string `json:"season" db:"season"`
	Month    int    `json:"month" db:"month"`
	Brand    string `json:"brand" db:"brand"`
	Quantity int    `json:"quantity" db:"quantity"`
}

// Tables is a full copy of the data set in mirror form.
type Tables struct {
	Influencers []InfluencerRow
	Quotas      []QuotaRow
	Assignments []AssignmentRow
	Executions  []ExecutionRow
	Targets     []TargetRow
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// FromSnapshot flattens a snapshot into mirror rows.
func FromSnapshot(snap *store.Snapshot) Tables {
	var t Tables
	for _, inf := range snap.Roster {
		t.Influencers = append(t.Influencers, InfluencerRow{
			ID:              inf.ID,
			Name:            inf.Name,
			Followers:       inf.Followers,
			UnitFee:         inf.UnitFee,
			SecondaryUsage:  inf.SecondaryUsage,
			SecondaryPeriod: inf.SecondaryPeriod,
			ContractSeason:  string(inf.ContractSeason),
		})
		for _, b := range snap.Brands {
			if q := inf.Quota(b); q != 0 {
				t.Quotas = append(t.Quotas, QuotaRow{InfluencerID: inf.ID, Brand: string(b), Quantity: q})
			}
		}
	}
	for _, a := range snap.History {
		t.Assignments = append(t.Assignments, AssignmentRow{
			Season:         string(a.Month.Season),
			Month:          a.Month.Number,
			Brand:          string(a.Brand),
			InfluencerID:   a.InfluencerID,
			Name:           a.Name,
			Followers:      a.Followers,
			UnitFee:        a.UnitFee,
			BrandContract:  a.Counters.BrandContract,
			BrandRemaining: a.Counters.BrandRemaining,
			Source:         string(a.Source),
			BatchID:        a.BatchID,
			AssignedAt:     formatTime(a.AssignedAt),
		})
	}
	for _, e := range snap.Executions {
		t.Executions = append(t.Executions, ExecutionRow{
			Season:       string(e.Month.Season),
			Month:        e.Month.Number,
			Brand:        string(e.Brand),
			InfluencerID: e.InfluencerID,
			Executed:     e.Count,
			URL:          e.URL,
			UpdatedAt:    formatTime(e.UpdatedAt),
		})
	}
	for _, tg := range snap.Targets {
		t.Targets = append(t.Targets, TargetRow{
			Season:   string(tg.Month.Season),
			Month:    tg.Month.Number,
			Brand:    string(tg.Brand),
			Quantity: tg.Quantity,
		})
	}
	return t
}

// Key rebuilds the domain key of an assignment row.
func (r AssignmentRow) Key() domain.Key {
	return domain.Key{
		InfluencerID: r.InfluencerID,
		Brand:        domain.Brand(r.Brand),
		Month:        domain.Month{Season: domain.Season(r.Season), Number: r.Month},
	}
}

// MirrorRepo keeps a SQL copy of the tables for reporting tools.
type MirrorRepo interface {
	// Migrate creates the mirror tables when they do not exist
	Migrate(ctx context.Context) error

	// Replace swaps the mirror content for t in one transaction
	Replace(ctx context.Context, t Tables) error

	// Counts returns the row count per mirror table
	Counts(ctx context.Context) (map[string]int, error)

	// Assignments lists mirrored assignments of a season, month order
	Assignments(ctx context.Context, season string) ([]AssignmentRow, error)
}

// Repository aggregates the repositories the mirror exposes.
type Repository struct {
	Mirror MirrorRepo
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for persistence layer
type RepositoryHealth interface {
	// Health returns current repository health status
	Health(ctx context.Context) HealthCheck

	// Ping tests basic connectivity to database
	Ping(ctx context.Context) error
}
