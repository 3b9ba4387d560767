// Package application runs crewrun operations against the data store: load a
// snapshot, apply one operation, save the touched tables, notify hooks.
package application

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/crewrun/internal/assign"
	"github.com/sawpanic/crewrun/internal/cache"
	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/gates"
	"github.com/sawpanic/crewrun/internal/reconcile"
	"github.com/sawpanic/crewrun/internal/roster"
	"github.com/sawpanic/crewrun/internal/store"
	"github.com/sawpanic/crewrun/internal/xlsx"
)

// ChangeKind names the operation that produced a Change.
type ChangeKind string

const (
	ChangeAssignAuto   ChangeKind = "assign_auto"
	ChangeAssignManual ChangeKind = "assign_manual"
	ChangeDelete       ChangeKind = "assign_delete"
	ChangeReset        ChangeKind = "reset"
	ChangeComplete     ChangeKind = "exec_complete"
	ChangeRevert       ChangeKind = "exec_revert"
	ChangeURL          ChangeKind = "exec_url"
	ChangeUpload       ChangeKind = "exec_upload"
	ChangeRoster       ChangeKind = "roster_import"
	ChangeTargets      ChangeKind = "targets_set"
	ChangePlan         ChangeKind = "plan"
	ChangeBackfill     ChangeKind = "backfill"
	ChangeExternal     ChangeKind = "external"
)

// Change describes one saved mutation.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	Tables   []string   `json:"tables"`
	Batch    string     `json:"batch,omitempty"`
	Count    int        `json:"count"`
	Revision string     `json:"revision"`
	At       time.Time  `json:"at"`

	// Snapshot is the state that was saved. Hooks must not modify it.
	Snapshot *store.Snapshot `json:"-"`
	// Paths are the files written.
	Paths []string `json:"-"`
}

// Hook runs after every saved mutation. Errors are logged, never returned to
// the caller of the operation.
type Hook interface {
	AfterSave(ctx context.Context, c Change) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, c Change) error

func (f HookFunc) AfterSave(ctx context.Context, c Change) error { return f(ctx, c) }

// Options wires a Service.
type Options struct {
	Store      *store.Store
	Engine     *assign.Engine
	Reconciler *reconcile.Reconciler
	Cache      cache.Cache
	CacheTTL   time.Duration
	Hooks      []Hook
}

// Service serialises mutations of one data directory.
type Service struct {
	mu         sync.Mutex
	store      *store.Store
	engine     *assign.Engine
	reconciler *reconcile.Reconciler
	cache      cache.Cache
	cacheTTL   time.Duration

	hookMu sync.RWMutex
	hooks  []Hook

	revMu   sync.Mutex
	lastRev string

	now func() time.Time
}

// New creates a service. Nil engine, reconciler and cache get defaults.
func New(opts Options) *Service {
	if opts.Engine == nil {
		opts.Engine = assign.NewEngine(nil, true)
	}
	if opts.Reconciler == nil {
		opts.Reconciler = reconcile.NewReconciler()
	}
	if opts.Cache == nil {
		opts.Cache = cache.New()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	return &Service{
		store:      opts.Store,
		engine:     opts.Engine,
		reconciler: opts.Reconciler,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		hooks:      opts.Hooks,
		now:        time.Now,
	}
}

// AddHook registers h for subsequent changes.
func (s *Service) AddHook(h Hook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hooks = append(s.hooks, h)
}

// Store returns the underlying store.
func (s *Service) Store() *store.Store { return s.store }

// Season is the default season of the store.
func (s *Service) Season() domain.Season { return s.store.Season }

// Brands is the configured brand order.
func (s *Service) Brands() []domain.Brand { return s.store.Brands }

// Gate is the sequential gate used by the engine.
func (s *Service) Gate() *gates.SequentialGate { return s.engine.Gate }

// Snapshot loads the current tables.
func (s *Service) Snapshot(ctx context.Context) (*store.Snapshot, error) {
	return s.store.Load(ctx)
}

// outcome is what a mutation reports back to mutate.
type outcome struct {
	tables []store.Table
	count  int
	batch  string
}

// mutate runs op under the lock and saves what it touched. A failing op
// still saves when it reports touched tables, so partial results persist.
func (s *Service) mutate(ctx context.Context, kind ChangeKind, load func(context.Context) (*store.Snapshot, error), op func(*store.Snapshot) (outcome, error)) error {
	s.mu.Lock()
	if load == nil {
		load = s.store.Load
	}
	snap, err := load(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	out, opErr := op(snap)
	if len(out.tables) == 0 {
		s.mu.Unlock()
		return opErr
	}
	out.tables = snap.Touched(out.tables...)
	if err := s.store.Save(ctx, snap, out.tables...); err != nil {
		s.mu.Unlock()
		return errors.Join(opErr, err)
	}
	s.setRevision(snap.Revision)
	s.mu.Unlock()

	change := Change{
		Kind:     kind,
		Count:    out.count,
		Batch:    out.batch,
		Revision: snap.Revision,
		At:       s.now(),
		Snapshot: snap,
	}
	for _, t := range out.tables {
		change.Tables = append(change.Tables, t.String())
		change.Paths = append(change.Paths, s.store.Path(t))
	}
	log.Info().Str("kind", string(kind)).Strs("tables", change.Tables).Int("count", out.count).
		Str("revision", snap.Revision).Msg("saved change")
	s.notify(ctx, change)
	return opErr
}

func (s *Service) notify(ctx context.Context, c Change) {
	s.hookMu.RLock()
	hooks := append([]Hook(nil), s.hooks...)
	s.hookMu.RUnlock()

	for _, h := range hooks {
		if err := h.AfterSave(ctx, c); err != nil {
			log.Warn().Err(err).Str("kind", string(c.Kind)).Msgf("post-save hook %T failed", h)
		}
	}
}

func (s *Service) setRevision(rev string) {
	s.revMu.Lock()
	s.lastRev = rev
	s.revMu.Unlock()
}

// ExternalChange handles files edited outside crewrun. Writes made by this
// service are recognised by revision and ignored.
func (s *Service) ExternalChange(ctx context.Context, files []string) {
	rev, err := s.store.Revision()
	if err != nil {
		log.Warn().Err(err).Msg("revision check failed")
		return
	}
	s.revMu.Lock()
	same := rev == s.lastRev
	s.lastRev = rev
	s.revMu.Unlock()
	if same {
		return
	}

	log.Info().Strs("files", files).Str("revision", rev).Msg("data files changed externally")
	snap, err := s.store.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("reload after external change failed")
		return
	}
	c := Change{Kind: ChangeExternal, Revision: rev, At: s.now(), Snapshot: snap}
	for _, f := range files {
		c.Tables = append(c.Tables, strings.TrimSuffix(f, filepath.Ext(f)))
		c.Paths = append(c.Paths, filepath.Join(s.store.Dir, f))
	}
	s.notify(ctx, c)
}

// AssignAuto runs one automatic assignment.
func (s *Service) AssignAuto(ctx context.Context, req assign.AutoRequest) (assign.AutoResult, error) {
	var res assign.AutoResult
	err := s.mutate(ctx, ChangeAssignAuto, nil, func(snap *store.Snapshot) (outcome, error) {
		var err error
		res, err = s.engine.Auto(snap, req)
		if err != nil || len(res.Assigned) == 0 {
			return outcome{}, err
		}
		return outcome{tables: []store.Table{store.History}, count: len(res.Assigned), batch: res.BatchID}, nil
	})
	return res, err
}

// AssignManual adds one assignment chosen by the user.
func (s *Service) AssignManual(ctx context.Context, req assign.ManualRequest) (domain.Assignment, error) {
	var a domain.Assignment
	err := s.mutate(ctx, ChangeAssignManual, nil, func(snap *store.Snapshot) (outcome, error) {
		var err error
		a, err = s.engine.Manual(snap, req)
		if err != nil {
			return outcome{}, err
		}
		return outcome{tables: []store.Table{store.History}, count: 1, batch: a.BatchID}, nil
	})
	return a, err
}

// DeleteAssignments removes pending assignments.
func (s *Service) DeleteAssignments(ctx context.Context, keys []domain.Key) (assign.DeleteResult, error) {
	var res assign.DeleteResult
	err := s.mutate(ctx, ChangeDelete, nil, func(snap *store.Snapshot) (outcome, error) {
		var err error
		res, err = s.engine.Delete(snap, keys)
		if len(res.Removed) == 0 {
			return outcome{}, err
		}
		return outcome{tables: []store.Table{store.History, store.Executions}, count: len(res.Removed)}, err
	})
	return res, err
}

// Reset clears assignments and executions of one month, or all of them.
func (s *Service) Reset(ctx context.Context, req assign.ResetRequest) (assign.ResetResult, error) {
	var res assign.ResetResult
	err := s.mutate(ctx, ChangeReset, nil, func(snap *store.Snapshot) (outcome, error) {
		res = s.engine.Reset(snap, req)
		if res.History+res.Executions == 0 {
			return outcome{}, nil
		}
		return outcome{tables: []store.Table{store.History, store.Executions}, count: res.History}, nil
	})
	return res, err
}

// MarkExecuted completes the executions of keys.
func (s *Service) MarkExecuted(ctx context.Context, keys []domain.Key) (int, error) {
	return s.executions(ctx, ChangeComplete, keys, s.reconciler.MarkExecuted)
}

// Revert reopens the executions of keys.
func (s *Service) Revert(ctx context.Context, keys []domain.Key) (int, error) {
	return s.executions(ctx, ChangeRevert, keys, s.reconciler.Revert)
}

func (s *Service) executions(ctx context.Context, kind ChangeKind, keys []domain.Key, fn func(*store.Snapshot, []domain.Key) (int, error)) (int, error) {
	var n int
	err := s.mutate(ctx, kind, nil, func(snap *store.Snapshot) (outcome, error) {
		var err error
		n, err = fn(snap, keys)
		if n == 0 {
			return outcome{}, err
		}
		return outcome{tables: []store.Table{store.Executions}, count: n}, err
	})
	return n, err
}

// SetURL records the proof URL of one execution.
func (s *Service) SetURL(ctx context.Context, key domain.Key, url string) (bool, error) {
	var changed bool
	err := s.mutate(ctx, ChangeURL, nil, func(snap *store.Snapshot) (outcome, error) {
		var err error
		changed, err = s.reconciler.SetURL(snap, key, url)
		if err != nil || !changed {
			return outcome{}, err
		}
		return outcome{tables: []store.Table{store.Executions}, count: 1}, nil
	})
	return changed, err
}

// Upload merges an uploaded execution file, CSV or XLSX, into the execution
// table. Nothing is saved when any row is invalid.
func (s *Service) Upload(ctx context.Context, data []byte, sheet string, mode reconcile.Mode) (reconcile.Report, error) {
	rep := reconcile.Report{Mode: mode}

	tbl, err := xlsx.ReadUpload(data, sheet)
	if err != nil {
		return rep, fmt.Errorf("read upload: %w", err)
	}

	err = s.mutate(ctx, ChangeUpload, nil, func(snap *store.Snapshot) (outcome, error) {
		records, rowErrs, err := reconcile.ParseRecords(tbl, snap.Brands, snap.Season)
		if err != nil {
			return outcome{}, err
		}
		if len(rowErrs) > 0 {
			rep.Errors = rowErrs
			return outcome{}, rep.Err()
		}
		rep, err = s.reconciler.Apply(snap, records, mode)
		if err != nil || !rep.Changed() {
			return outcome{}, err
		}
		return outcome{tables: []store.Table{store.Executions}, count: rep.Inserted + rep.Updated + rep.Removed}, nil
	})
	return rep, err
}

// ImportRoster replaces the roster with the influencers of a contract
// workbook or CSV. It works on an empty data directory.
func (s *Service) ImportRoster(ctx context.Context, path, sheet string) (int, error) {
	infs, err := roster.ImportFile(path, sheet, s.store.Brands)
	if err != nil {
		return 0, err
	}
	load := func(ctx context.Context) (*store.Snapshot, error) {
		snap, err := s.store.Load(ctx)
		if errors.Is(err, domain.ErrRosterMissing) {
			return &store.Snapshot{Brands: s.store.Brands, Season: s.store.Season}, nil
		}
		return snap, err
	}
	err = s.mutate(ctx, ChangeRoster, load, func(snap *store.Snapshot) (outcome, error) {
		snap.Roster = infs
		return outcome{tables: []store.Table{store.Roster}, count: len(infs)}, nil
	})
	return len(infs), err
}

// Targets returns the monthly targets of season, a zero grid when none are
// stored.
func (s *Service) Targets(ctx context.Context, season domain.Season) ([]domain.Target, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return seasonTargets(snap, season), nil
}

func seasonTargets(snap *store.Snapshot, season domain.Season) []domain.Target {
	var out []domain.Target
	for _, t := range snap.Targets {
		if t.Month.Season == season {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return domain.DefaultTargets(season, snap.Brands)
	}
	return out
}

// SetTarget stores one monthly target cell.
func (s *Service) SetTarget(ctx context.Context, t domain.Target) error {
	if t.Quantity < 0 {
		return fmt.Errorf("target quantity cannot be negative: %d", t.Quantity)
	}
	return s.mutate(ctx, ChangeTargets, nil, func(snap *store.Snapshot) (outcome, error) {
		if domain.BrandIndex(snap.Brands, t.Brand) < 0 {
			return outcome{}, fmt.Errorf("%w: %q", domain.ErrUnknownBrand, t.Brand)
		}
		if _, err := domain.NewMonth(t.Month.Season, t.Month.Number); err != nil {
			return outcome{}, err
		}
		for i := range snap.Targets {
			if snap.Targets[i].Month == t.Month && snap.Targets[i].Brand == t.Brand {
				if snap.Targets[i].Quantity == t.Quantity {
					return outcome{}, nil
				}
				snap.Targets[i].Quantity = t.Quantity
				return outcome{tables: []store.Table{store.Targets}, count: 1}, nil
			}
		}
		snap.Targets = append(snap.Targets, t)
		return outcome{tables: []store.Table{store.Targets}, count: 1}, nil
	})
}

// Plan assigns a season month by month from its targets.
func (s *Service) Plan(ctx context.Context, season domain.Season, only ...domain.Month) (assign.PlanResult, error) {
	var res assign.PlanResult
	err := s.mutate(ctx, ChangePlan, nil, func(snap *store.Snapshot) (outcome, error) {
		var err error
		res, err = s.engine.Plan(snap, season, seasonTargets(snap, season), only...)
		if res.Assigned() == 0 {
			return outcome{}, err
		}
		var batch string
		if len(res.Runs) == 1 {
			batch = res.Runs[0].BatchID
		}
		return outcome{tables: []store.Table{store.History}, count: res.Assigned(), batch: batch}, err
	})
	return res, err
}

// Backfill fills blank history cells from the roster.
func (s *Service) Backfill(ctx context.Context) (int, error) {
	var n int
	err := s.mutate(ctx, ChangeBackfill, nil, func(snap *store.Snapshot) (outcome, error) {
		n = store.Backfill(snap)
		if n == 0 {
			return outcome{}, nil
		}
		return outcome{tables: []store.Table{store.History, store.Executions}, count: n}, nil
	})
	return n, err
}
