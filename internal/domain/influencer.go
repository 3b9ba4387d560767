package domain

// Influencer is one row of the roster.
type Influencer struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Followers       int           `json:"followers"`
	UnitFee         int           `json:"unit_fee"`
	SecondaryUsage  string        `json:"sec_usage,omitempty"`
	SecondaryPeriod string        `json:"sec_period,omitempty"`
	ContractSeason  Season        `json:"contract_season,omitempty"`
	Quotas          map[Brand]int `json:"quotas"`
	Extra           []ExtraColumn `json:"-"`
}

// ExtraColumn is a roster column crewrun does not interpret; it is carried
// through rewrites unchanged.
type ExtraColumn struct {
	Header string
	Value  string
}

// Quota returns the contracted count for brand.
func (i Influencer) Quota(b Brand) int {
	return i.Quotas[b]
}

// TotalQuota sums the contracted counts over brands.
func (i Influencer) TotalQuota(brands []Brand) int {
	total := 0
	for _, b := range brands {
		total += i.Quotas[b]
	}
	return total
}
