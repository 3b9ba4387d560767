package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/gates"
	"github.com/sawpanic/crewrun/internal/reconcile"
	"github.com/sawpanic/crewrun/internal/store"
	"github.com/sawpanic/crewrun/internal/views"
)

// ViewPrefix starts every cached view key.
const ViewPrefix = "view:"

// ViewKey is the cache key of a rendered view at a store revision.
func ViewKey(name, revision, filter string) string {
	return ViewPrefix + name + ":" + revision + ":" + filter
}

// cached serves build from the cache when the store revision is unchanged.
func cached[T any](ctx context.Context, s *Service, name, filter string, build func(*store.Snapshot) T) (T, error) {
	var zero T
	rev, err := s.store.Revision()
	if err != nil {
		return zero, err
	}
	key := ViewKey(name, rev, filter)
	if b, ok := s.cache.Get(ctx, key); ok {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			return v, nil
		}
		log.Debug().Str("key", key).Msg("discarding unreadable cache entry")
	}

	snap, err := s.store.Load(ctx)
	if err != nil {
		return zero, err
	}
	v := build(snap)
	if b, err := json.Marshal(v); err == nil {
		// the snapshot revision is taken after reading, so a concurrent write
		// lands under a newer key
		s.cache.Set(ctx, ViewKey(name, snap.Revision, filter), b, s.cacheTTL)
	}
	return v, nil
}

// Results lists assignments with live counters.
func (s *Service) Results(ctx context.Context, f views.Filter) ([]views.ResultRow, error) {
	return cached(ctx, s, "results", f.String(), func(snap *store.Snapshot) []views.ResultRow {
		return views.Results(snap, f)
	})
}

// Influencers summarises each influencer across the season.
func (s *Service) Influencers(ctx context.Context, f views.Filter) ([]views.InfluencerRow, error) {
	return cached(ctx, s, "influencers", f.String(), func(snap *store.Snapshot) []views.InfluencerRow {
		return views.Influencers(snap, f)
	})
}

// Months is the month by brand cross-tab of season.
func (s *Service) Months(ctx context.Context, season domain.Season) ([]views.MonthRow, error) {
	return cached(ctx, s, "months", string(season), func(snap *store.Snapshot) []views.MonthRow {
		return views.Months(snap, season)
	})
}

// BrandTotals totals each brand for season.
func (s *Service) BrandTotals(ctx context.Context, season domain.Season) ([]views.BrandRow, error) {
	return cached(ctx, s, "brands", string(season), func(snap *store.Snapshot) []views.BrandRow {
		return views.Brands(snap, season)
	})
}

// Template lists the execution template rows.
func (s *Service) Template(ctx context.Context, f views.Filter) ([]views.TemplateRow, error) {
	return cached(ctx, s, "template", f.String(), func(snap *store.Snapshot) []views.TemplateRow {
		return views.Template(snap, f)
	})
}

// Roster returns the influencer roster.
func (s *Service) Roster(ctx context.Context) ([]domain.Influencer, error) {
	return cached(ctx, s, "roster", "", func(snap *store.Snapshot) []domain.Influencer {
		return snap.Roster
	})
}

// GateReport lists the incomplete assignments that block month.
func (s *Service) GateReport(ctx context.Context, month domain.Month) (gates.Report, error) {
	return cached(ctx, s, "gate", month.String(), func(snap *store.Snapshot) gates.Report {
		return s.engine.Gate.Report(snap, month)
	})
}

// Doctor is a consistency report of the data directory.
type Doctor struct {
	Revision  string             `json:"revision"`
	Rows      map[string]int     `json:"rows"`
	Seasons   []domain.Season    `json:"seasons"`
	Orphans   []reconcile.Orphan `json:"orphans"`
	Unknown   []string           `json:"unknown_influencers,omitempty"`
	Blanks    int                `json:"blank_cells"`
	Healthy   bool               `json:"healthy"`
	CheckedAt time.Time          `json:"checked_at"`
}

// Doctor checks the tables for orphans, unknown influencers and cells a
// backfill would fill.
func (s *Service) Doctor(ctx context.Context) (Doctor, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return Doctor{}, err
	}
	now := s.now()
	d := Doctor{
		Revision: snap.Revision,
		Rows: map[string]int{
			store.Roster.String():     len(snap.Roster),
			store.History.String():    len(snap.History),
			store.Executions.String(): len(snap.Executions),
			store.Targets.String():    len(snap.Targets),
		},
		Seasons:   snap.Seasons(),
		Orphans:   reconcile.Orphans(snap, now),
		CheckedAt: now,
	}

	seen := make(map[string]bool)
	for _, a := range snap.History {
		if _, ok := snap.Influencer(a.InfluencerID); !ok && !seen[a.InfluencerID] {
			seen[a.InfluencerID] = true
			d.Unknown = append(d.Unknown, a.InfluencerID)
		}
	}

	// count on a copy so the check does not mutate anything
	probe := *snap
	probe.History = append([]domain.Assignment(nil), snap.History...)
	probe.Executions = append([]domain.Execution(nil), snap.Executions...)
	d.Blanks = store.Backfill(&probe)

	d.Healthy = len(d.Orphans) == 0 && len(d.Unknown) == 0
	return d, nil
}
