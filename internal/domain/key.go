package domain

import "fmt"

// Key identifies an assignment and its execution row.
type Key struct {
	InfluencerID string `json:"id"`
	Brand        Brand  `json:"brand"`
	Month        Month  `json:"month"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s %s %s", k.Month, k.Brand, k.InfluencerID)
}

// Pair is the influencer/brand half of a key; quotas and the sequential gate
// are tracked per pair.
type Pair struct {
	InfluencerID string
	Brand        Brand
}

// Pair drops the month from the key.
func (k Key) Pair() Pair {
	return Pair{InfluencerID: k.InfluencerID, Brand: k.Brand}
}
