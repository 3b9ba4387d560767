// Package reconcile merges execution edits and uploads into the execution
// status table.
package reconcile

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/store"
)

// Reconciler edits the execution table of a snapshot.
type Reconciler struct {
	Now func() time.Time
}

// NewReconciler returns a reconciler stamping rows with wall-clock time.
func NewReconciler() *Reconciler {
	return &Reconciler{Now: time.Now}
}

// ValidateURL accepts empty strings and absolute http(s) URLs.
func ValidateURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", domain.ErrInvalidURL, raw)
	}
	return nil
}

func (r *Reconciler) upsert(snap *store.Snapshot, key domain.Key, edit func(*domain.Execution)) (bool, error) {
	hi := snap.FindAssignment(key)
	if hi < 0 {
		return false, fmt.Errorf("%w: %s", domain.ErrAssignmentNotFound, key)
	}
	i := snap.FindExecution(key)
	if i < 0 {
		snap.Executions = append(snap.Executions, domain.Execution{Key: key, Name: snap.History[hi].Name})
		i = len(snap.Executions) - 1
	}
	before := snap.Executions[i]
	edit(&snap.Executions[i])
	after := snap.Executions[i]
	if after.Count == 0 && after.URL == "" {
		snap.Executions = append(snap.Executions[:i], snap.Executions[i+1:]...)
		return before.Count != 0 || before.URL != "", nil
	}
	if after == before {
		return false, nil
	}
	snap.Executions[i].UpdatedAt = r.Now()
	return true, nil
}

// MarkExecuted sets the execution count of each key to 1. Keys without an
// assignment are reported in the joined error; the others still apply.
func (r *Reconciler) MarkExecuted(snap *store.Snapshot, keys []domain.Key) (int, error) {
	return r.each(snap, keys, func(e *domain.Execution) { e.Count = 1 })
}

// Revert sets the execution count of each key back to 0. Rows left without a
// URL are removed.
func (r *Reconciler) Revert(snap *store.Snapshot, keys []domain.Key) (int, error) {
	return r.each(snap, keys, func(e *domain.Execution) { e.Count = 0 })
}

func (r *Reconciler) each(snap *store.Snapshot, keys []domain.Key, edit func(*domain.Execution)) (int, error) {
	changed := 0
	var errs []error
	for _, k := range keys {
		ok, err := r.upsert(snap, k, edit)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			changed++
		}
	}
	return changed, errors.Join(errs...)
}

// SetURL records the proof URL of an execution; an empty URL clears it.
func (r *Reconciler) SetURL(snap *store.Snapshot, key domain.Key, raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if err := ValidateURL(raw); err != nil {
		return false, err
	}
	return r.upsert(snap, key, func(e *domain.Execution) { e.URL = raw })
}

// Orphan is a row that has no counterpart in the other table.
type Orphan struct {
	Key  domain.Key `json:"key"`
	Kind string     `json:"kind"`
}

const (
	OrphanExecution        = "execution_without_assignment"
	OrphanMissingExecution = "assignment_without_execution"
)

// Orphans lists execution rows without an assignment and assignments of
// months before now that have no execution row.
func Orphans(snap *store.Snapshot, now time.Time) []Orphan {
	var out []Orphan
	for _, e := range snap.Executions {
		if snap.FindAssignment(e.Key) < 0 {
			out = append(out, Orphan{Key: e.Key, Kind: OrphanExecution})
		}
	}
	current := domain.MonthOf(now).Start(now.Location())
	execs := snap.ExecutionIndex()
	for _, a := range snap.History {
		if !a.Month.Start(now.Location()).Before(current) {
			continue
		}
		if _, ok := execs[a.Key]; !ok {
			out = append(out, Orphan{Key: a.Key, Kind: OrphanMissingExecution})
		}
	}
	return out
}
