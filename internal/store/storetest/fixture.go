// Package storetest builds in-memory snapshots for tests.
package storetest

import (
	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/store"
)

// Season is the season fixtures live in.
const Season = domain.Season("25FW")

// M returns month n of Season.
func M(n int) domain.Month {
	return domain.Month{Season: Season, Number: n}
}

// Key builds a key in Season.
func Key(id string, b domain.Brand, month int) domain.Key {
	return domain.Key{InfluencerID: id, Brand: b, Month: M(month)}
}

// Influencer builds a roster entry in Season with the given brand quotas.
func Influencer(id string, followers int, quotas map[domain.Brand]int) domain.Influencer {
	if quotas == nil {
		quotas = map[domain.Brand]int{}
	}
	return domain.Influencer{
		ID:             id,
		Name:           "name-" + id,
		Followers:      followers,
		UnitFee:        100000,
		ContractSeason: Season,
		Quotas:         quotas,
	}
}

// Assignment builds a history row.
func Assignment(id string, b domain.Brand, month int) domain.Assignment {
	return domain.Assignment{Key: Key(id, b, month), Name: "name-" + id, Source: domain.SourceManual}
}

// Execution builds an execution row.
func Execution(id string, b domain.Brand, month, count int) domain.Execution {
	return domain.Execution{Key: Key(id, b, month), Name: "name-" + id, Count: count}
}

// Snapshot returns a snapshot over the default brands and Season.
func Snapshot(roster ...domain.Influencer) *store.Snapshot {
	return &store.Snapshot{
		Brands: domain.DefaultBrands,
		Season: Season,
		Roster: roster,
	}
}
