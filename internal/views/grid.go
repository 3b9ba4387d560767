package views

import (
	"strconv"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/tabular"
)

// Grid is a view flattened to strings for table, CSV and XLSX output.
type Grid struct {
	Title  string
	Header []string
	Rows   [][]string
}

func itoa(n int) string { return strconv.Itoa(n) }

// ResultsGrid flattens result rows.
func ResultsGrid(rows []ResultRow) Grid {
	g := Grid{Title: "results", Header: []string{
		tabular.ColSeason, tabular.ColMonth, tabular.ColBrand, tabular.ColID, tabular.ColName,
		tabular.ColFollowers, tabular.ColUnitFee, tabular.ColSecUsage,
		tabular.ColBrandContract, tabular.ColBrandExecuted, tabular.ColBrandRemaining,
		tabular.ColTotalContract, tabular.ColTotalExecuted, tabular.ColTotalRemaining,
		tabular.ColStatus, tabular.ColURL,
	}}
	for _, r := range rows {
		c := r.Counters
		g.Rows = append(g.Rows, []string{
			string(r.Month.Season), r.Month.Label(), string(r.Brand), r.ID, r.Name,
			itoa(r.Followers), itoa(r.UnitFee), r.SecondaryUsage,
			itoa(c.BrandContract), itoa(c.BrandExecuted), itoa(c.BrandRemaining),
			itoa(c.TotalContract), itoa(c.TotalExecuted), itoa(c.TotalRemaining),
			r.Status.Label(), r.URL,
		})
	}
	return g
}

// InfluencersGrid flattens the influencer board; brand and month columns
// follow the given order.
func InfluencersGrid(rows []InfluencerRow, brands []domain.Brand, season domain.Season) Grid {
	g := Grid{Title: "influencers", Header: []string{
		tabular.ColID, tabular.ColName, tabular.ColFollowers, tabular.ColUnitFee,
		tabular.ColSecUsage, tabular.ColSecPeriod,
	}}
	for _, b := range brands {
		g.Header = append(g.Header, b.QuotaColumn(), string(b)+"_remaining")
	}
	g.Header = append(g.Header, "total_contract", "total_assigned", "total_executed", "total_remaining")
	months := season.MonthList()
	for _, m := range months {
		g.Header = append(g.Header, m.Label())
	}

	for _, r := range rows {
		line := []string{r.ID, r.Name, itoa(r.Followers), itoa(r.UnitFee), r.SecondaryUsage, r.SecondaryPeriod}
		for _, b := range brands {
			line = append(line, itoa(r.Contract[b]), itoa(r.Remaining[b]))
		}
		line = append(line, itoa(r.TotalContract), itoa(r.TotalAssigned), itoa(r.TotalExecuted), itoa(r.TotalRemaining))
		cells := make(map[domain.Month]string, len(r.Months))
		for _, c := range r.Months {
			cells[c.Month] = c.Text
		}
		for _, m := range months {
			line = append(line, cells[m])
		}
		g.Rows = append(g.Rows, line)
	}
	return g
}

// MonthsGrid flattens the month cross-tab.
func MonthsGrid(rows []MonthRow) Grid {
	g := Grid{Title: "months", Header: []string{
		tabular.ColSeason, tabular.ColMonth, tabular.ColBrand, "assigned", tabular.ColExecuted, tabular.ColTarget, "difference",
	}}
	for _, r := range rows {
		g.Rows = append(g.Rows, []string{
			string(r.Month.Season), r.Month.Label(), string(r.Brand),
			itoa(r.Assigned), itoa(r.Executed), itoa(r.Target), itoa(r.Difference),
		})
	}
	return g
}

// BrandsGrid flattens the brand totals.
func BrandsGrid(rows []BrandRow) Grid {
	g := Grid{Title: "brands", Header: []string{tabular.ColBrand, "contracted", "assigned", tabular.ColExecuted, "remaining"}}
	for _, r := range rows {
		g.Rows = append(g.Rows, []string{
			string(r.Brand), itoa(r.Contracted), itoa(r.Assigned), itoa(r.Executed), itoa(r.Remaining),
		})
	}
	return g
}

// TemplateGrid flattens the execution template. Its header reads back
// through the upload parser.
func TemplateGrid(rows []TemplateRow) Grid {
	g := Grid{Title: "template", Header: []string{
		tabular.ColSeason, tabular.ColBrand, tabular.ColID, tabular.ColName, tabular.ColMonth,
		tabular.ColPlanned, tabular.ColExecuted, tabular.ColURL,
	}}
	for _, r := range rows {
		g.Rows = append(g.Rows, []string{
			string(r.Month.Season), string(r.Brand), r.ID, r.Name, r.Month.Label(),
			itoa(r.Planned), itoa(r.Executed), r.URL,
		})
	}
	return g
}

// TargetsGrid lays monthly targets out as month rows and brand columns.
func TargetsGrid(targets []domain.Target, brands []domain.Brand, season domain.Season) Grid {
	g := Grid{Title: "targets", Header: []string{tabular.ColMonth}}
	for _, b := range brands {
		g.Header = append(g.Header, string(b))
	}
	q := make(map[domain.Month]map[domain.Brand]int)
	for _, t := range targets {
		if q[t.Month] == nil {
			q[t.Month] = make(map[domain.Brand]int)
		}
		q[t.Month][t.Brand] = t.Quantity
	}
	for _, m := range season.MonthList() {
		line := []string{m.Label()}
		for _, b := range brands {
			line = append(line, itoa(q[m][b]))
		}
		g.Rows = append(g.Rows, line)
	}
	return g
}
