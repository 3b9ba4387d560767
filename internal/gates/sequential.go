// Package gates holds the sequential gate: an influencer's next month for a
// brand opens only after the earlier months of the season were executed.
package gates

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/store"
)

// Scope selects which earlier assignments can block a new one.
type Scope string

const (
	// ScopePair blocks an influencer/brand pair on its own earlier months.
	ScopePair Scope = "pair"
	// ScopeMonth blocks a whole month while any earlier month of the season
	// has an incomplete assignment.
	ScopeMonth Scope = "month"
)

// ParseScope validates a scope name; empty means ScopePair.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopePair:
		return ScopePair, nil
	case ScopeMonth:
		return ScopeMonth, nil
	}
	return "", fmt.Errorf("unknown gate scope %q (want pair or month)", s)
}

// SequentialGate refuses assignments for a month while earlier months of the
// same season still have assignments without a completed execution.
type SequentialGate struct {
	Scope Scope
}

// NewSequentialGate returns a gate with the given scope.
func NewSequentialGate(scope Scope) *SequentialGate {
	if scope == "" {
		scope = ScopePair
	}
	return &SequentialGate{Scope: scope}
}

// Decision is the outcome of one gate check.
type Decision struct {
	Key      domain.Key   `json:"key"`
	Allowed  bool         `json:"allowed"`
	Blocking []domain.Key `json:"blocking,omitempty"`
}

// Reason summarises why the decision blocked.
func (d Decision) Reason() string {
	if d.Allowed {
		return "allowed"
	}
	parts := make([]string, len(d.Blocking))
	for i, k := range d.Blocking {
		parts[i] = k.String()
	}
	return "incomplete: " + strings.Join(parts, "; ")
}

// Err returns nil for an allowed decision and an error wrapping
// domain.ErrGateBlocked otherwise.
func Err(d Decision) error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s for %s", domain.ErrGateBlocked, d.Reason(), d.Key)
}

// Check evaluates key against the snapshot. The first month of a season is
// always allowed.
func (g *SequentialGate) Check(snap *store.Snapshot, key domain.Key) Decision {
	return g.check(snap.History, snap.ExecutionIndex(), key)
}

// Checker indexes the snapshot once for repeated checks. Assignments added to
// the snapshot afterwards are not seen.
func (g *SequentialGate) Checker(snap *store.Snapshot) func(domain.Key) Decision {
	history := append([]domain.Assignment(nil), snap.History...)
	execs := snap.ExecutionIndex()
	return func(key domain.Key) Decision {
		return g.check(history, execs, key)
	}
}

func (g *SequentialGate) check(history []domain.Assignment, execs map[domain.Key]domain.Execution, key domain.Key) Decision {
	d := Decision{Key: key, Allowed: true}
	if key.Month.Index() <= 0 {
		return d
	}
	for _, a := range history {
		if !a.Month.Before(key.Month) {
			continue
		}
		if g.Scope != ScopeMonth && a.Pair() != key.Pair() {
			continue
		}
		if execs[a.Key].Completed() {
			continue
		}
		d.Allowed = false
		d.Blocking = append(d.Blocking, a.Key)
	}
	sortKeys(d.Blocking)
	return d
}

// Report lists, per brand, the earlier-month assignments that are still
// incomplete for a target month.
type Report struct {
	Month    domain.Month                  `json:"month"`
	Scope    Scope                         `json:"scope"`
	Ready    bool                          `json:"ready"`
	Blocking map[domain.Brand][]domain.Key `json:"blocking"`
	Total    int                           `json:"total"`
}

// Report builds the incomplete-assignment report for month.
func (g *SequentialGate) Report(snap *store.Snapshot, month domain.Month) Report {
	r := Report{Month: month, Scope: g.Scope, Ready: true, Blocking: make(map[domain.Brand][]domain.Key)}
	execs := snap.ExecutionIndex()
	for _, a := range snap.History {
		if !a.Month.Before(month) || execs[a.Key].Completed() {
			continue
		}
		r.Blocking[a.Brand] = append(r.Blocking[a.Brand], a.Key)
		r.Total++
	}
	for b := range r.Blocking {
		sortKeys(r.Blocking[b])
	}
	r.Ready = r.Total == 0
	return r
}

func sortKeys(keys []domain.Key) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Month != b.Month {
			return a.Month.Index() < b.Month.Index()
		}
		if a.Brand != b.Brand {
			return a.Brand < b.Brand
		}
		return a.InfluencerID < b.InfluencerID
	})
}
