package store

import (
	"sort"

	"github.com/sawpanic/crewrun/internal/domain"
)

// Snapshot is the in-memory copy of every table. Operations mutate it and the
// store writes back the tables they touched.
type Snapshot struct {
	Brands     []domain.Brand
	Season     domain.Season
	Roster     []domain.Influencer
	History    []domain.Assignment
	Executions []domain.Execution
	Targets    []domain.Target
	Revision   string

	carried  []domain.Execution
	migrated bool
}

// mergeCarried folds execution details found in history rows into the
// execution table. Rows already in the table keep their count.
func (s *Snapshot) mergeCarried() {
	for _, c := range s.carried {
		i := s.FindExecution(c.Key)
		if i < 0 {
			s.Executions = append(s.Executions, c)
			s.migrated = true
			continue
		}
		if s.Executions[i].URL == "" && c.URL != "" {
			s.Executions[i].URL = c.URL
			s.migrated = true
		}
	}
	s.carried = nil
}

// Touched widens tables to what a save must write. Once execution details
// were moved out of legacy history columns, history and executions are only
// written together; either alone would drop or resurrect those details.
func (s *Snapshot) Touched(tables ...Table) []Table {
	if !s.migrated {
		return tables
	}
	var history, execs bool
	for _, t := range tables {
		history = history || t == History
		execs = execs || t == Executions
	}
	switch {
	case history && !execs:
		return append(tables, Executions)
	case execs && !history:
		return append(tables, History)
	}
	return tables
}

// Influencer looks up a roster entry by ID.
func (s *Snapshot) Influencer(id string) (domain.Influencer, bool) {
	for _, inf := range s.Roster {
		if inf.ID == id {
			return inf, true
		}
	}
	return domain.Influencer{}, false
}

// FindAssignment returns the index of the history row for key, or -1.
func (s *Snapshot) FindAssignment(key domain.Key) int {
	for i, a := range s.History {
		if a.Key == key {
			return i
		}
	}
	return -1
}

// FindExecution returns the index of the execution row for key, or -1.
func (s *Snapshot) FindExecution(key domain.Key) int {
	for i, e := range s.Executions {
		if e.Key == key {
			return i
		}
	}
	return -1
}

// ExecutionIndex maps every execution key to its row.
func (s *Snapshot) ExecutionIndex() map[domain.Key]domain.Execution {
	idx := make(map[domain.Key]domain.Execution, len(s.Executions))
	for _, e := range s.Executions {
		idx[e.Key] = e
	}
	return idx
}

// Completed reports whether the execution for key is done.
func (s *Snapshot) Completed(key domain.Key) bool {
	i := s.FindExecution(key)
	return i >= 0 && s.Executions[i].Completed()
}

// Seasons lists the seasons present in the history plus the default season.
func (s *Snapshot) Seasons() []domain.Season {
	seen := make(map[domain.Season]bool)
	var out []domain.Season
	add := func(x domain.Season) {
		if x != "" && !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	add(s.Season)
	for _, a := range s.History {
		add(a.Month.Season)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AssignedMonths lists the months that have history rows, in season order.
func (s *Snapshot) AssignedMonths() []domain.Month {
	seen := make(map[domain.Month]bool)
	var out []domain.Month
	for _, a := range s.History {
		if !seen[a.Month] {
			seen[a.Month] = true
			out = append(out, a.Month)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Season != out[j].Season {
			return out[i].Season < out[j].Season
		}
		return out[i].Index() < out[j].Index()
	})
	return out
}

// Backfill fills blank identity and contract cells of history rows from the
// roster and returns the number of cells it filled.
func Backfill(s *Snapshot) int {
	filled := 0
	for i := range s.History {
		a := &s.History[i]
		inf, ok := s.Influencer(a.InfluencerID)
		if !ok {
			continue
		}
		if a.Name == "" && inf.Name != "" {
			a.Name = inf.Name
			filled++
		}
		if a.Followers == 0 && inf.Followers != 0 {
			a.Followers = inf.Followers
			filled++
		}
		if a.UnitFee == 0 && inf.UnitFee != 0 {
			a.UnitFee = inf.UnitFee
			filled++
		}
		if a.SecondaryUsage == "" && inf.SecondaryUsage != "" {
			a.SecondaryUsage = inf.SecondaryUsage
			filled++
		}
		if a.Counters.BrandContract == 0 && inf.Quota(a.Brand) != 0 {
			a.Counters.BrandContract = inf.Quota(a.Brand)
			filled++
		}
		if a.Counters.TotalContract == 0 && inf.TotalQuota(s.Brands) != 0 {
			a.Counters.TotalContract = inf.TotalQuota(s.Brands)
			filled++
		}
	}
	for i := range s.Executions {
		e := &s.Executions[i]
		if e.Name != "" {
			continue
		}
		if inf, ok := s.Influencer(e.InfluencerID); ok && inf.Name != "" {
			e.Name = inf.Name
			filled++
		}
	}
	return filled
}
