package application

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/views"
)

// ViewNames lists the views Grids can render.
var ViewNames = []string{"results", "influencers", "months", "brands", "template", "targets"}

// ErrUnknownView reports a view name outside ViewNames.
var ErrUnknownView = errors.New("unknown view")

// Grids renders a view for tabular output. The influencer view without a
// brand filter adds one sheet per brand.
func (s *Service) Grids(ctx context.Context, view string, f views.Filter) ([]views.Grid, error) {
	season := f.Season
	if season == "" {
		season = s.Season()
		if !f.Month.IsZero() {
			season = f.Month.Season
		}
	}

	switch view {
	case "results":
		rows, err := s.Results(ctx, f)
		if err != nil {
			return nil, err
		}
		return []views.Grid{views.ResultsGrid(rows)}, nil
	case "influencers":
		f.Season = season
		rows, err := s.Influencers(ctx, f)
		if err != nil {
			return nil, err
		}
		grids := []views.Grid{views.InfluencersGrid(rows, s.Brands(), season)}
		if f.Brand != "" {
			grids[0].Title = string(f.Brand)
			return grids, nil
		}
		for _, b := range s.Brands() {
			bf := f
			bf.Brand = b
			rows, err := s.Influencers(ctx, bf)
			if err != nil {
				return nil, err
			}
			g := views.InfluencersGrid(rows, s.Brands(), season)
			g.Title = string(b)
			grids = append(grids, g)
		}
		return grids, nil
	case "months":
		rows, err := s.Months(ctx, season)
		if err != nil {
			return nil, err
		}
		return []views.Grid{views.MonthsGrid(rows)}, nil
	case "brands":
		rows, err := s.BrandTotals(ctx, season)
		if err != nil {
			return nil, err
		}
		return []views.Grid{views.BrandsGrid(rows)}, nil
	case "template":
		rows, err := s.Template(ctx, f)
		if err != nil {
			return nil, err
		}
		return []views.Grid{views.TemplateGrid(rows)}, nil
	case "targets":
		targets, err := s.Targets(ctx, season)
		if err != nil {
			return nil, err
		}
		return []views.Grid{views.TargetsGrid(targets, s.Brands(), season)}, nil
	}
	return nil, fmt.Errorf("%w %q (want one of %v)", ErrUnknownView, view, ViewNames)
}

// ParseFilter builds a view filter from user input. Blank values do not
// filter; a month without a season uses the default season.
func (s *Service) ParseFilter(season, month, brand string) (views.Filter, error) {
	var f views.Filter
	fallback := s.Season()
	if season != "" {
		sv, err := domain.ParseSeason(season)
		if err != nil {
			return f, err
		}
		f.Season = sv
		fallback = sv
	}
	if month != "" {
		m, err := domain.ParseMonth(month, fallback)
		if err != nil {
			return f, err
		}
		f.Month = m
	}
	if brand != "" {
		b, err := domain.ParseBrand(brand, s.Brands())
		if err != nil {
			return f, err
		}
		f.Brand = b
	}
	return f, nil
}

// ParseKey resolves user input into an assignment key.
func (s *Service) ParseKey(id, brand, month string) (domain.Key, error) {
	if id == "" {
		return domain.Key{}, fmt.Errorf("%w: empty id", domain.ErrUnknownInfluencer)
	}
	b, err := domain.ParseBrand(brand, s.Brands())
	if err != nil {
		return domain.Key{}, err
	}
	m, err := domain.ParseMonth(month, s.Season())
	if err != nil {
		return domain.Key{}, err
	}
	return domain.Key{InfluencerID: id, Brand: b, Month: m}, nil
}

// ParseQuantities resolves brand codes of an automatic request.
func (s *Service) ParseQuantities(in map[string]int) (map[domain.Brand]int, error) {
	out := make(map[domain.Brand]int, len(in))
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := domain.ParseBrand(name, s.Brands())
		if err != nil {
			return nil, err
		}
		if in[name] < 0 {
			return nil, fmt.Errorf("quantity for %s cannot be negative", b)
		}
		out[b] += in[name]
	}
	return out, nil
}
