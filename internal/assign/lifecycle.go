package assign

import (
	"errors"
	"fmt"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/store"
)

// DeleteResult reports which keys were removed from the history.
type DeleteResult struct {
	Removed  []domain.Key `json:"removed"`
	Refused  []domain.Key `json:"refused,omitempty"`
	NotFound []domain.Key `json:"not_found,omitempty"`
}

// Delete removes the history rows for keys together with their pending
// execution rows. Keys whose execution is completed are kept and reported.
// The returned error joins one error per refused or unknown key; removals
// still apply.
func (e *Engine) Delete(snap *store.Snapshot, keys []domain.Key) (DeleteResult, error) {
	var res DeleteResult
	var errs []error
	drop := make(map[domain.Key]bool)
	for _, k := range keys {
		switch {
		case snap.FindAssignment(k) < 0:
			res.NotFound = append(res.NotFound, k)
			errs = append(errs, fmt.Errorf("%w: %s", domain.ErrAssignmentNotFound, k))
		case snap.Completed(k):
			res.Refused = append(res.Refused, k)
			errs = append(errs, fmt.Errorf("%w: %s", domain.ErrExecutionCompleted, k))
		case !drop[k]:
			drop[k] = true
			res.Removed = append(res.Removed, k)
		}
	}
	if len(drop) > 0 {
		snap.History = filterHistory(snap.History, func(a domain.Assignment) bool { return !drop[a.Key] })
		snap.Executions = filterExecutions(snap.Executions, func(x domain.Execution) bool { return !drop[x.Key] })
	}
	return res, errors.Join(errs...)
}

// ResetRequest clears one month, or everything when Month is nil. With
// Cascade the later months of the same season are cleared too.
type ResetRequest struct {
	Month   *domain.Month `json:"month,omitempty"`
	Cascade bool          `json:"cascade"`
}

// ResetResult counts removed rows.
type ResetResult struct {
	History    int            `json:"history"`
	Executions int            `json:"executions"`
	Months     []domain.Month `json:"months,omitempty"`
}

// Reset removes assignments and executions.
func (e *Engine) Reset(snap *store.Snapshot, req ResetRequest) ResetResult {
	if req.Month == nil {
		res := ResetResult{History: len(snap.History), Executions: len(snap.Executions), Months: snap.AssignedMonths()}
		snap.History = nil
		snap.Executions = nil
		return res
	}

	target := *req.Month
	hit := func(m domain.Month) bool {
		if m == target {
			return true
		}
		return req.Cascade && m.Season == target.Season && target.Before(m)
	}

	var res ResetResult
	for _, m := range snap.AssignedMonths() {
		if hit(m) {
			res.Months = append(res.Months, m)
		}
	}
	before := len(snap.History)
	snap.History = filterHistory(snap.History, func(a domain.Assignment) bool { return !hit(a.Month) })
	res.History = before - len(snap.History)

	before = len(snap.Executions)
	snap.Executions = filterExecutions(snap.Executions, func(x domain.Execution) bool { return !hit(x.Month) })
	res.Executions = before - len(snap.Executions)
	return res
}

// PlanRow compares a monthly target with what the plan assigned.
type PlanRow struct {
	Month      domain.Month `json:"month"`
	Brand      domain.Brand `json:"brand"`
	Target     int          `json:"target"`
	Assigned   int          `json:"assigned"`
	Difference int          `json:"difference"`
}

// PlanResult collects the automatic runs of a plan.
type PlanResult struct {
	Season domain.Season `json:"season"`
	Runs   []AutoResult  `json:"runs"`
	Rows   []PlanRow     `json:"rows"`
}

// Plan runs Auto month by month in season order using the monthly targets.
// Months without a positive target are skipped. When only is not empty the
// plan is limited to those months.
func (e *Engine) Plan(snap *store.Snapshot, season domain.Season, targets []domain.Target, only ...domain.Month) (PlanResult, error) {
	res := PlanResult{Season: season}
	if _, err := domain.ParseSeason(string(season)); err != nil {
		return res, err
	}
	want := make(map[domain.Month]bool, len(only))
	for _, m := range only {
		want[m] = true
	}

	for _, m := range season.MonthList() {
		if len(want) > 0 && !want[m] {
			continue
		}
		q := make(map[domain.Brand]int)
		for _, t := range targets {
			if t.Month == m && t.Quantity > 0 {
				q[t.Brand] += t.Quantity
			}
		}
		if len(q) == 0 {
			continue
		}
		run, err := e.Auto(snap, AutoRequest{Month: m, Quantities: q})
		if err != nil {
			return res, fmt.Errorf("plan %s: %w", m, err)
		}
		res.Runs = append(res.Runs, run)
		for _, b := range snap.Brands {
			if q[b] == 0 {
				continue
			}
			got := run.Count(b)
			res.Rows = append(res.Rows, PlanRow{Month: m, Brand: b, Target: q[b], Assigned: got, Difference: q[b] - got})
		}
	}
	return res, nil
}

// Assigned sums the assignments made by every run of the plan.
func (r PlanResult) Assigned() int {
	n := 0
	for _, run := range r.Runs {
		n += len(run.Assigned)
	}
	return n
}

func filterHistory(in []domain.Assignment, keep func(domain.Assignment) bool) []domain.Assignment {
	out := in[:0]
	for _, a := range in {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func filterExecutions(in []domain.Execution, keep func(domain.Execution) bool) []domain.Execution {
	out := in[:0]
	for _, x := range in {
		if keep(x) {
			out = append(out, x)
		}
	}
	return out
}
