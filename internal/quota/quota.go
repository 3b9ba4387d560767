// Package quota computes contracted, assigned, executed and remaining counts
// per influencer and brand.
package quota

import (
	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/store"
)

// Calculator answers quota questions over one snapshot. It is not safe for
// concurrent use.
type Calculator struct {
	brands     []domain.Brand
	contracted map[domain.Pair]int
	assigned   map[domain.Pair]int
	executed   map[domain.Pair]int
}

// New indexes the roster, history and executions of snap.
func New(snap *store.Snapshot) *Calculator {
	c := &Calculator{
		brands:     snap.Brands,
		contracted: make(map[domain.Pair]int),
		assigned:   make(map[domain.Pair]int),
		executed:   make(map[domain.Pair]int),
	}
	for _, inf := range snap.Roster {
		for _, b := range snap.Brands {
			c.contracted[domain.Pair{InfluencerID: inf.ID, Brand: b}] = inf.Quota(b)
		}
	}
	for _, a := range snap.History {
		c.assigned[a.Pair()]++
	}
	for _, e := range snap.Executions {
		c.executed[e.Pair()] += e.Count
	}
	return c
}

// Contracted is the contracted count for the pair.
func (c *Calculator) Contracted(id string, b domain.Brand) int {
	return c.contracted[domain.Pair{InfluencerID: id, Brand: b}]
}

// Assigned counts assignments of the pair across every month.
func (c *Calculator) Assigned(id string, b domain.Brand) int {
	return c.assigned[domain.Pair{InfluencerID: id, Brand: b}]
}

// Executed sums execution counts of the pair.
func (c *Calculator) Executed(id string, b domain.Brand) int {
	return c.executed[domain.Pair{InfluencerID: id, Brand: b}]
}

// Remaining is contracted minus assigned, never below zero. Unknown
// influencers and brands have none.
func (c *Calculator) Remaining(id string, b domain.Brand) int {
	r := c.Contracted(id, b) - c.Assigned(id, b)
	if r < 0 {
		return 0
	}
	return r
}

// Consume records one more assignment of the pair, so later picks in the same
// run see the reduced quota.
func (c *Calculator) Consume(id string, b domain.Brand) {
	c.assigned[domain.Pair{InfluencerID: id, Brand: b}]++
}

func (c *Calculator) total(f func(string, domain.Brand) int, id string) int {
	n := 0
	for _, b := range c.brands {
		n += f(id, b)
	}
	return n
}

// TotalContracted sums Contracted over brands.
func (c *Calculator) TotalContracted(id string) int { return c.total(c.Contracted, id) }

// TotalAssigned sums Assigned over brands.
func (c *Calculator) TotalAssigned(id string) int { return c.total(c.Assigned, id) }

// TotalExecuted sums Executed over brands.
func (c *Calculator) TotalExecuted(id string) int { return c.total(c.Executed, id) }

// TotalRemaining sums Remaining over brands.
func (c *Calculator) TotalRemaining(id string) int { return c.total(c.Remaining, id) }

// Counters snapshots the six counters recorded on an assignment row.
func (c *Calculator) Counters(id string, b domain.Brand) domain.Counters {
	return domain.Counters{
		BrandContract:  c.Contracted(id, b),
		BrandExecuted:  c.Executed(id, b),
		BrandRemaining: c.Remaining(id, b),
		TotalContract:  c.TotalContracted(id),
		TotalExecuted:  c.TotalExecuted(id),
		TotalRemaining: c.TotalRemaining(id),
	}
}
