package domain

// Target is the requested number of assignments for a brand in a month.
type Target struct {
	Month    Month `json:"month"`
	Brand    Brand `json:"brand"`
	Quantity int   `json:"target"`
}

// DefaultTargets returns a zero target for every month and brand of the season.
func DefaultTargets(season Season, brands []Brand) []Target {
	var out []Target
	for _, m := range season.MonthList() {
		for _, b := range brands {
			out = append(out, Target{Month: m, Brand: b})
		}
	}
	return out
}
