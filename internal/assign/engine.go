// Package assign allocates influencers to brands month by month.
package assign

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/gates"
	"github.com/sawpanic/crewrun/internal/quota"
	"github.com/sawpanic/crewrun/internal/store"
)

// Engine runs automatic and manual assignment against a snapshot. Results are
// appended to the snapshot's history; saving is the caller's job.
type Engine struct {
	Gate *gates.SequentialGate
	// OneBrandPerMonth keeps automatic runs from giving an influencer two
	// brands in the same month.
	OneBrandPerMonth bool
	Now              func() time.Time
	NewBatchID       func() string
}

// NewEngine returns an engine with wall-clock time and random batch IDs.
func NewEngine(gate *gates.SequentialGate, oneBrandPerMonth bool) *Engine {
	if gate == nil {
		gate = gates.NewSequentialGate(gates.ScopePair)
	}
	return &Engine{
		Gate:             gate,
		OneBrandPerMonth: oneBrandPerMonth,
		Now:              time.Now,
		NewBatchID:       uuid.NewString,
	}
}

// SkipReason says why a roster entry was not picked.
type SkipReason string

const (
	SkipQuota      SkipReason = "quota"
	SkipDuplicate  SkipReason = "duplicate"
	SkipMonthTaken SkipReason = "month_taken"
	SkipGate       SkipReason = "gate"
)

// Skip records a passed-over candidate.
type Skip struct {
	InfluencerID string       `json:"id"`
	Brand        domain.Brand `json:"brand"`
	Reason       SkipReason   `json:"reason"`
}

// AutoRequest asks for Quantities[brand] assignments in Month.
type AutoRequest struct {
	Month      domain.Month         `json:"month"`
	Quantities map[domain.Brand]int `json:"quantities"`
}

// AutoResult describes one automatic run.
type AutoResult struct {
	BatchID   string               `json:"batch_id,omitempty"`
	Month     domain.Month         `json:"month"`
	Requested map[domain.Brand]int `json:"requested"`
	Assigned  []domain.Assignment  `json:"assigned"`
	Shortfall map[domain.Brand]int `json:"shortfall,omitempty"`
	Skipped   []Skip               `json:"skipped,omitempty"`
}

// Count returns the number of assignments made for brand.
func (r AutoResult) Count(b domain.Brand) int {
	n := 0
	for _, a := range r.Assigned {
		if a.Brand == b {
			n++
		}
	}
	return n
}

type candidate struct {
	inf       domain.Influencer
	remaining int
}

func validateMonth(m domain.Month) error {
	if m.Index() < 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidMonth, m)
	}
	return nil
}

// Auto assigns up to the requested quantity per brand, in brand order.
// Candidates need remaining quota for the brand, must not already hold the
// brand in the month, must pass the sequential gate and, with
// OneBrandPerMonth, must not hold any brand in the month. They are picked by
// remaining quota, then followers, then ID.
func (e *Engine) Auto(snap *store.Snapshot, req AutoRequest) (AutoResult, error) {
	res := AutoResult{Month: req.Month, Requested: make(map[domain.Brand]int), Shortfall: make(map[domain.Brand]int)}
	if err := validateMonth(req.Month); err != nil {
		return res, err
	}
	total := 0
	for b, q := range req.Quantities {
		if domain.BrandIndex(snap.Brands, b) < 0 {
			return res, fmt.Errorf("%w: %q", domain.ErrUnknownBrand, b)
		}
		if q < 0 {
			return res, fmt.Errorf("negative quantity %d for %s", q, b)
		}
		res.Requested[b] = q
		total += q
	}
	if total == 0 {
		return res, nil
	}

	res.BatchID = e.NewBatchID()
	now := e.Now()
	calc := quota.New(snap)
	check := e.Gate.Checker(snap)

	taken := make(map[string]bool)
	existing := make(map[domain.Key]bool)
	for _, a := range snap.History {
		if a.Month == req.Month {
			taken[a.InfluencerID] = true
			existing[a.Key] = true
		}
	}

	for _, b := range snap.Brands {
		want := req.Quantities[b]
		if want == 0 {
			continue
		}
		var pool []candidate
		for _, inf := range snap.Roster {
			if inf.Quota(b) <= 0 {
				continue
			}
			key := domain.Key{InfluencerID: inf.ID, Brand: b, Month: req.Month}
			var reason SkipReason
			switch {
			case existing[key]:
				reason = SkipDuplicate
			case calc.Remaining(inf.ID, b) <= 0:
				reason = SkipQuota
			case e.OneBrandPerMonth && taken[inf.ID]:
				reason = SkipMonthTaken
			case !check(key).Allowed:
				reason = SkipGate
			}
			if reason != "" {
				res.Skipped = append(res.Skipped, Skip{InfluencerID: inf.ID, Brand: b, Reason: reason})
				continue
			}
			pool = append(pool, candidate{inf: inf, remaining: calc.Remaining(inf.ID, b)})
		}

		sort.SliceStable(pool, func(i, j int) bool {
			if pool[i].remaining != pool[j].remaining {
				return pool[i].remaining > pool[j].remaining
			}
			if pool[i].inf.Followers != pool[j].inf.Followers {
				return pool[i].inf.Followers > pool[j].inf.Followers
			}
			return pool[i].inf.ID < pool[j].inf.ID
		})
		if len(pool) > want {
			pool = pool[:want]
		}

		for _, c := range pool {
			calc.Consume(c.inf.ID, b)
			taken[c.inf.ID] = true
			a := newAssignment(c.inf, domain.Key{InfluencerID: c.inf.ID, Brand: b, Month: req.Month}, calc)
			a.Source = domain.SourceAuto
			a.BatchID = res.BatchID
			a.AssignedAt = now
			existing[a.Key] = true
			snap.History = append(snap.History, a)
			res.Assigned = append(res.Assigned, a)
		}
		if short := want - len(pool); short > 0 {
			res.Shortfall[b] = short
		}
		log.Debug().Str("brand", string(b)).Int("requested", want).Int("assigned", len(pool)).
			Str("month", req.Month.String()).Msg("auto assignment")
	}
	return res, nil
}

// ManualRequest names one influencer for a brand and month.
type ManualRequest struct {
	Month        domain.Month `json:"month"`
	Brand        domain.Brand `json:"brand"`
	InfluencerID string       `json:"id"`
}

// Manual assigns one influencer explicitly.
func (e *Engine) Manual(snap *store.Snapshot, req ManualRequest) (domain.Assignment, error) {
	if err := validateMonth(req.Month); err != nil {
		return domain.Assignment{}, err
	}
	brand, err := domain.ParseBrand(string(req.Brand), snap.Brands)
	if err != nil {
		return domain.Assignment{}, err
	}
	inf, ok := snap.Influencer(req.InfluencerID)
	if !ok {
		return domain.Assignment{}, fmt.Errorf("%w: %q", domain.ErrUnknownInfluencer, req.InfluencerID)
	}
	key := domain.Key{InfluencerID: inf.ID, Brand: brand, Month: req.Month}
	if snap.FindAssignment(key) >= 0 {
		return domain.Assignment{}, fmt.Errorf("%w: %s", domain.ErrDuplicateAssignment, key)
	}
	if err := gates.Err(e.Gate.Check(snap, key)); err != nil {
		return domain.Assignment{}, err
	}
	calc := quota.New(snap)
	if calc.Remaining(inf.ID, brand) <= 0 {
		return domain.Assignment{}, fmt.Errorf("%w: %s %s contracted %d, executed %d, assigned %d",
			domain.ErrQuotaExhausted, inf.ID, brand,
			calc.Contracted(inf.ID, brand), calc.Executed(inf.ID, brand), calc.Assigned(inf.ID, brand))
	}

	calc.Consume(inf.ID, brand)
	a := newAssignment(inf, key, calc)
	a.Source = domain.SourceManual
	a.BatchID = e.NewBatchID()
	a.AssignedAt = e.Now()
	snap.History = append(snap.History, a)
	return a, nil
}

func newAssignment(inf domain.Influencer, key domain.Key, calc *quota.Calculator) domain.Assignment {
	return domain.Assignment{
		Key:            key,
		Name:           inf.Name,
		Followers:      inf.Followers,
		UnitFee:        inf.UnitFee,
		SecondaryUsage: inf.SecondaryUsage,
		Counters:       calc.Counters(inf.ID, key.Brand),
	}
}
