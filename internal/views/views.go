// Package views builds the read-only summaries: assignment results, the
// per-influencer season board, month and brand cross-tabs, and the execution
// template.
package views

import (
	"sort"
	"strings"
	"time"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/quota"
	"github.com/sawpanic/crewrun/internal/store"
)

// Filter narrows a view. Zero fields do not filter.
type Filter struct {
	Season domain.Season `json:"season,omitempty"`
	Month  domain.Month  `json:"month,omitempty"`
	Brand  domain.Brand  `json:"brand,omitempty"`
}

func (f Filter) season(snap *store.Snapshot) domain.Season {
	switch {
	case f.Season != "":
		return f.Season
	case !f.Month.IsZero():
		return f.Month.Season
	}
	return snap.Season
}

func (f Filter) match(k domain.Key) bool {
	if f.Season != "" && k.Month.Season != f.Season {
		return false
	}
	if !f.Month.IsZero() && k.Month != f.Month {
		return false
	}
	return f.Brand == "" || k.Brand == f.Brand
}

// String renders the filter as a cache key fragment.
func (f Filter) String() string {
	var m string
	if !f.Month.IsZero() {
		m = f.Month.String()
	}
	return strings.Join([]string{string(f.Season), m, string(f.Brand)}, "|")
}

// ResultRow is one assignment with live counters.
type ResultRow struct {
	Month          domain.Month    `json:"month"`
	Brand          domain.Brand    `json:"brand"`
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Followers      int             `json:"followers"`
	UnitFee        int             `json:"unit_fee"`
	SecondaryUsage string          `json:"sec_usage,omitempty"`
	Counters       domain.Counters `json:"counters"`
	Status         domain.Status   `json:"status"`
	URL            string          `json:"url,omitempty"`
	Source         domain.Source   `json:"source,omitempty"`
	AssignedAt     time.Time       `json:"assigned_at,omitempty"`
}

// Results lists assignments matching f ordered by month, brand and ID.
func Results(snap *store.Snapshot, f Filter) []ResultRow {
	calc := quota.New(snap)
	execs := snap.ExecutionIndex()
	rows := []ResultRow{}
	for _, a := range snap.History {
		if !f.match(a.Key) {
			continue
		}
		e := execs[a.Key]
		rows = append(rows, ResultRow{
			Month:          a.Month,
			Brand:          a.Brand,
			ID:             a.InfluencerID,
			Name:           a.Name,
			Followers:      a.Followers,
			UnitFee:        a.UnitFee,
			SecondaryUsage: a.SecondaryUsage,
			Counters:       calc.Counters(a.InfluencerID, a.Brand),
			Status:         e.Status(),
			URL:            e.URL,
			Source:         a.Source,
			AssignedAt:     a.AssignedAt,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Month != b.Month {
			return monthLess(a.Month, b.Month)
		}
		if a.Brand != b.Brand {
			return domain.BrandIndex(snap.Brands, a.Brand) < domain.BrandIndex(snap.Brands, b.Brand)
		}
		return a.ID < b.ID
	})
	return rows
}

func monthLess(a, b domain.Month) bool {
	if a.Season != b.Season {
		return a.Season < b.Season
	}
	return a.Index() < b.Index()
}

// MonthCell is one month column of the influencer board.
type MonthCell struct {
	Month domain.Month `json:"month"`
	Text  string       `json:"text"`
}

// InfluencerRow summarises one influencer over a season.
type InfluencerRow struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Followers       int                  `json:"followers"`
	UnitFee         int                  `json:"unit_fee"`
	SecondaryUsage  string               `json:"sec_usage,omitempty"`
	SecondaryPeriod string               `json:"sec_period,omitempty"`
	ContractSeason  domain.Season        `json:"contract_season,omitempty"`
	Contract        map[domain.Brand]int `json:"contract"`
	Remaining       map[domain.Brand]int `json:"remaining"`
	TotalContract   int                  `json:"total_contract"`
	TotalAssigned   int                  `json:"total_assigned"`
	TotalExecuted   int                  `json:"total_executed"`
	TotalRemaining  int                  `json:"total_remaining"`
	Months          []MonthCell          `json:"months"`
}

// Influencers builds the per-influencer board. Without a brand filter a month
// cell lists executed brands, then assigned-only brands in parentheses
// ("MLB, (DX)"). With a brand filter it shows that brand's status.
func Influencers(snap *store.Snapshot, f Filter) []InfluencerRow {
	season := f.season(snap)
	calc := quota.New(snap)
	execs := snap.ExecutionIndex()

	type cellKey struct {
		id    string
		month domain.Month
	}
	held := make(map[cellKey][]domain.Brand)
	for _, a := range snap.History {
		if a.Month.Season != season {
			continue
		}
		ck := cellKey{a.InfluencerID, a.Month}
		held[ck] = append(held[ck], a.Brand)
	}

	rows := []InfluencerRow{}
	for _, inf := range snap.Roster {
		if f.Season != "" && inf.ContractSeason != "" && inf.ContractSeason != f.Season {
			continue
		}
		if f.Brand != "" && inf.Quota(f.Brand) <= 0 {
			continue
		}
		row := InfluencerRow{
			ID:              inf.ID,
			Name:            inf.Name,
			Followers:       inf.Followers,
			UnitFee:         inf.UnitFee,
			SecondaryUsage:  inf.SecondaryUsage,
			SecondaryPeriod: inf.SecondaryPeriod,
			ContractSeason:  inf.ContractSeason,
			Contract:        make(map[domain.Brand]int, len(snap.Brands)),
			Remaining:       make(map[domain.Brand]int, len(snap.Brands)),
			TotalContract:   calc.TotalContracted(inf.ID),
			TotalAssigned:   calc.TotalAssigned(inf.ID),
			TotalExecuted:   calc.TotalExecuted(inf.ID),
			TotalRemaining:  calc.TotalRemaining(inf.ID),
		}
		for _, b := range snap.Brands {
			row.Contract[b] = calc.Contracted(inf.ID, b)
			row.Remaining[b] = calc.Remaining(inf.ID, b)
		}
		for _, m := range season.MonthList() {
			brands := held[cellKey{inf.ID, m}]
			row.Months = append(row.Months, MonthCell{Month: m, Text: cellText(snap.Brands, brands, f.Brand, func(b domain.Brand) bool {
				return execs[domain.Key{InfluencerID: inf.ID, Brand: b, Month: m}].Completed()
			})})
		}
		rows = append(rows, row)
	}
	return rows
}

func cellText(order, held []domain.Brand, only domain.Brand, done func(domain.Brand) bool) string {
	if only != "" {
		for _, b := range held {
			if b == only {
				if done(b) {
					return string(domain.StatusExecuted)
				}
				return string(domain.StatusAssigned)
			}
		}
		return ""
	}
	has := make(map[domain.Brand]bool, len(held))
	for _, b := range held {
		has[b] = true
	}
	var executed, pending []string
	for _, b := range order {
		if !has[b] {
			continue
		}
		if done(b) {
			executed = append(executed, string(b))
		} else {
			pending = append(pending, "("+string(b)+")")
		}
	}
	return strings.Join(append(executed, pending...), ", ")
}

// MonthRow is one month and brand of the season cross-tab.
type MonthRow struct {
	Month      domain.Month `json:"month"`
	Brand      domain.Brand `json:"brand"`
	Assigned   int          `json:"assigned"`
	Executed   int          `json:"executed"`
	Target     int          `json:"target"`
	Difference int          `json:"difference"`
}

// Months cross-tabulates assignments, executions and targets for a season.
func Months(snap *store.Snapshot, season domain.Season) []MonthRow {
	type mb struct {
		m domain.Month
		b domain.Brand
	}
	assigned := make(map[mb]int)
	executed := make(map[mb]int)
	targets := make(map[mb]int)
	for _, a := range snap.History {
		assigned[mb{a.Month, a.Brand}]++
	}
	for _, e := range snap.Executions {
		executed[mb{e.Month, e.Brand}] += e.Count
	}
	for _, t := range snap.Targets {
		targets[mb{t.Month, t.Brand}] = t.Quantity
	}

	rows := []MonthRow{}
	for _, m := range season.MonthList() {
		for _, b := range snap.Brands {
			k := mb{m, b}
			rows = append(rows, MonthRow{
				Month:      m,
				Brand:      b,
				Assigned:   assigned[k],
				Executed:   executed[k],
				Target:     targets[k],
				Difference: targets[k] - assigned[k],
			})
		}
	}
	return rows
}

// BrandRow totals one brand over a season.
type BrandRow struct {
	Brand      domain.Brand `json:"brand"`
	Contracted int          `json:"contracted"`
	Assigned   int          `json:"assigned"`
	Executed   int          `json:"executed"`
	Remaining  int          `json:"remaining"`
}

// Brands totals contract and usage per brand. Contracts count influencers
// whose contract season is season or unset.
func Brands(snap *store.Snapshot, season domain.Season) []BrandRow {
	calc := quota.New(snap)
	rows := make([]BrandRow, 0, len(snap.Brands))
	for _, b := range snap.Brands {
		row := BrandRow{Brand: b}
		for _, inf := range snap.Roster {
			if inf.ContractSeason != "" && inf.ContractSeason != season {
				continue
			}
			row.Contracted += calc.Contracted(inf.ID, b)
			row.Remaining += calc.Remaining(inf.ID, b)
		}
		for _, a := range snap.History {
			if a.Brand == b && a.Month.Season == season {
				row.Assigned++
			}
		}
		for _, e := range snap.Executions {
			if e.Brand == b && e.Month.Season == season {
				row.Executed += e.Count
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// TemplateRow is one line of the execution template handed to the team that
// records deliveries.
type TemplateRow struct {
	Brand    domain.Brand `json:"brand"`
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Month    domain.Month `json:"month"`
	Planned  int          `json:"planned"`
	Executed int          `json:"executed"`
	URL      string       `json:"url,omitempty"`
}

// Template lists matching assignments with their current execution values.
func Template(snap *store.Snapshot, f Filter) []TemplateRow {
	execs := snap.ExecutionIndex()
	rows := []TemplateRow{}
	for _, r := range Results(snap, f) {
		e := execs[domain.Key{InfluencerID: r.ID, Brand: r.Brand, Month: r.Month}]
		rows = append(rows, TemplateRow{
			Brand:    r.Brand,
			ID:       r.ID,
			Name:     r.Name,
			Month:    r.Month,
			Planned:  1,
			Executed: e.Count,
			URL:      e.URL,
		})
	}
	return rows
}
