package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/tabular"
)

const timeLayout = time.RFC3339

var historyHeader = []string{
	tabular.ColSeason, tabular.ColMonth, tabular.ColBrand, tabular.ColID, tabular.ColName,
	tabular.ColFollowers, tabular.ColUnitFee, tabular.ColSecUsage,
	tabular.ColBrandContract, tabular.ColBrandExecuted, tabular.ColBrandRemaining,
	tabular.ColTotalContract, tabular.ColTotalExecuted, tabular.ColTotalRemaining,
	tabular.ColSource, tabular.ColBatchID, tabular.ColAssignedAt,
}

var executionHeader = []string{
	tabular.ColSeason, tabular.ColMonth, tabular.ColBrand, tabular.ColID, tabular.ColName,
	tabular.ColExecuted, tabular.ColURL, tabular.ColUpdatedAt,
}

var targetHeader = []string{tabular.ColSeason, tabular.ColMonth, tabular.ColBrand, tabular.ColTarget}

func rosterHeader(brands []domain.Brand) []string {
	h := []string{
		tabular.ColID, tabular.ColName, tabular.ColFollowers, tabular.ColUnitFee,
		tabular.ColSecUsage, tabular.ColSecPeriod, tabular.ColContractSeason,
	}
	for _, b := range brands {
		h = append(h, b.QuotaColumn())
	}
	return append(h, tabular.ColTotalQty)
}

func requireColumns(tbl *tabular.Table, cols ...string) error {
	if missing := tbl.Missing(cols...); len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// DecodeRoster reads roster rows from a table in either the store layout or
// an export carrying the same columns.
func DecodeRoster(tbl *tabular.Table, brands []domain.Brand) ([]domain.Influencer, error) {
	if err := requireColumns(tbl, tabular.ColID); err != nil {
		return nil, err
	}
	known := make(map[string]bool)
	for _, c := range rosterHeader(brands) {
		known[c] = true
	}
	extras := tbl.Columns(known)

	out := make([]domain.Influencer, 0, tbl.Len())
	for i := 0; i < tbl.Len(); i++ {
		id := tbl.Value(i, tabular.ColID)
		if id == "" {
			continue
		}
		inf := domain.Influencer{
			ID:              id,
			Name:            tbl.Value(i, tabular.ColName),
			SecondaryUsage:  tbl.Value(i, tabular.ColSecUsage),
			SecondaryPeriod: tbl.Value(i, tabular.ColSecPeriod),
			ContractSeason:  domain.Season(strings.ToUpper(tbl.Value(i, tabular.ColContractSeason))),
			Quotas:          make(map[domain.Brand]int, len(brands)),
		}
		var err error
		if inf.Followers, err = tbl.Int(i, tabular.ColFollowers); err != nil {
			return nil, err
		}
		if inf.UnitFee, err = tbl.Int(i, tabular.ColUnitFee); err != nil {
			return nil, err
		}
		for _, b := range brands {
			q, err := tbl.Int(i, b.QuotaColumn())
			if err != nil {
				return nil, err
			}
			inf.Quotas[b] = q
		}
		for _, col := range extras {
			if tbl.Header[col] == "" {
				continue
			}
			v := ""
			if col < len(tbl.Rows[i]) {
				v = tbl.Rows[i][col]
			}
			inf.Extra = append(inf.Extra, domain.ExtraColumn{Header: tbl.Raw[col], Value: v})
		}
		out = append(out, inf)
	}
	return out, nil
}

func encodeRoster(roster []domain.Influencer, brands []domain.Brand) ([]string, [][]string) {
	header := rosterHeader(brands)
	var extraHeaders []string
	seen := make(map[string]bool)
	for _, inf := range roster {
		for _, x := range inf.Extra {
			if !seen[x.Header] {
				seen[x.Header] = true
				extraHeaders = append(extraHeaders, x.Header)
			}
		}
	}

	rows := make([][]string, 0, len(roster))
	for _, inf := range roster {
		row := []string{
			inf.ID, inf.Name, itoa(inf.Followers), itoa(inf.UnitFee),
			inf.SecondaryUsage, inf.SecondaryPeriod, string(inf.ContractSeason),
		}
		for _, b := range brands {
			row = append(row, itoa(inf.Quotas[b]))
		}
		row = append(row, itoa(inf.TotalQuota(brands)))
		values := make(map[string]string, len(inf.Extra))
		for _, x := range inf.Extra {
			values[x.Header] = x.Value
		}
		for _, h := range extraHeaders {
			row = append(row, values[h])
		}
		rows = append(rows, row)
	}
	return append(header, extraHeaders...), rows
}

// rowKeys reads the season, month and brand cells of a row. A brand cell that
// lists several brands ("MLB, DX") yields one key per brand.
func rowKeys(tbl *tabular.Table, i int, brands []domain.Brand, season domain.Season) ([]domain.Key, error) {
	rowSeason := season
	if s := tbl.Value(i, tabular.ColSeason); s != "" {
		parsed, err := domain.ParseSeason(s)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rowSeason = parsed
	}
	month, err := domain.ParseMonth(tbl.Value(i, tabular.ColMonth), rowSeason)
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", i+2, err)
	}
	bs, err := domain.ParseBrandList(tbl.Value(i, tabular.ColBrand), brands)
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", i+2, err)
	}
	id := tbl.Value(i, tabular.ColID)
	if id == "" {
		return nil, fmt.Errorf("row %d: %w: empty id", i+2, domain.ErrUnknownInfluencer)
	}
	keys := make([]domain.Key, len(bs))
	for j, b := range bs {
		keys[j] = domain.Key{InfluencerID: id, Brand: b, Month: month}
	}
	return keys, nil
}

// decodeHistory also returns execution rows for history rows that carry a URL
// or an executed status, the layout older files used.
func decodeHistory(tbl *tabular.Table, brands []domain.Brand, season domain.Season) ([]domain.Assignment, []domain.Execution, error) {
	if err := requireColumns(tbl, tabular.ColID, tabular.ColBrand, tabular.ColMonth); err != nil {
		return nil, nil, err
	}
	out := make([]domain.Assignment, 0, tbl.Len())
	var carried []domain.Execution
	for i := 0; i < tbl.Len(); i++ {
		keys, err := rowKeys(tbl, i, brands, season)
		if err != nil {
			return nil, nil, err
		}
		ints := make([]int, 0, 8)
		for _, col := range []string{
			tabular.ColFollowers, tabular.ColUnitFee,
			tabular.ColBrandContract, tabular.ColBrandExecuted, tabular.ColBrandRemaining,
			tabular.ColTotalContract, tabular.ColTotalExecuted, tabular.ColTotalRemaining,
		} {
			n, err := tbl.Int(i, col)
			if err != nil {
				return nil, nil, err
			}
			ints = append(ints, n)
		}
		url := tbl.Value(i, tabular.ColURL)
		executed := false
		if st, err := domain.ParseStatus(tbl.Value(i, tabular.ColStatus)); err == nil {
			executed = st == domain.StatusExecuted
		}
		for _, k := range keys {
			if url != "" || executed {
				e := domain.Execution{Key: k, Name: tbl.Value(i, tabular.ColName), URL: url}
				if executed {
					e.Count = 1
				}
				carried = append(carried, e)
			}
			out = append(out, domain.Assignment{
				Key:            k,
				Name:           tbl.Value(i, tabular.ColName),
				Followers:      ints[0],
				UnitFee:        ints[1],
				SecondaryUsage: tbl.Value(i, tabular.ColSecUsage),
				Counters: domain.Counters{
					BrandContract:  ints[2],
					BrandExecuted:  ints[3],
					BrandRemaining: ints[4],
					TotalContract:  ints[5],
					TotalExecuted:  ints[6],
					TotalRemaining: ints[7],
				},
				Source:     domain.Source(tbl.Value(i, tabular.ColSource)),
				BatchID:    tbl.Value(i, tabular.ColBatchID),
				AssignedAt: parseTime(tbl.Value(i, tabular.ColAssignedAt)),
			})
		}
	}
	return out, carried, nil
}

func encodeHistory(history []domain.Assignment) ([]string, [][]string) {
	rows := make([][]string, 0, len(history))
	for _, a := range history {
		c := a.Counters
		rows = append(rows, []string{
			string(a.Month.Season), a.Month.Label(), string(a.Brand), a.InfluencerID, a.Name,
			itoa(a.Followers), itoa(a.UnitFee), a.SecondaryUsage,
			itoa(c.BrandContract), itoa(c.BrandExecuted), itoa(c.BrandRemaining),
			itoa(c.TotalContract), itoa(c.TotalExecuted), itoa(c.TotalRemaining),
			string(a.Source), a.BatchID, formatTime(a.AssignedAt),
		})
	}
	return historyHeader, rows
}

func decodeExecutions(tbl *tabular.Table, brands []domain.Brand, season domain.Season) ([]domain.Execution, error) {
	if err := requireColumns(tbl, tabular.ColID, tabular.ColBrand, tabular.ColMonth); err != nil {
		return nil, err
	}
	out := make([]domain.Execution, 0, tbl.Len())
	for i := 0; i < tbl.Len(); i++ {
		keys, err := rowKeys(tbl, i, brands, season)
		if err != nil {
			return nil, err
		}
		count, err := tbl.Int(i, tabular.ColExecuted)
		if err != nil {
			return nil, err
		}
		if !tbl.Has(tabular.ColExecuted) && tbl.Value(i, tabular.ColStatus) != "" {
			st, err := domain.ParseStatus(tbl.Value(i, tabular.ColStatus))
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
			if st == domain.StatusExecuted {
				count = 1
			}
		}
		for _, k := range keys {
			out = append(out, domain.Execution{
				Key:       k,
				Name:      tbl.Value(i, tabular.ColName),
				Count:     count,
				URL:       tbl.Value(i, tabular.ColURL),
				UpdatedAt: parseTime(tbl.Value(i, tabular.ColUpdatedAt)),
			})
		}
	}
	return out, nil
}

func encodeExecutions(execs []domain.Execution) ([]string, [][]string) {
	rows := make([][]string, 0, len(execs))
	for _, e := range execs {
		rows = append(rows, []string{
			string(e.Month.Season), e.Month.Label(), string(e.Brand), e.InfluencerID, e.Name,
			itoa(e.Count), e.URL, formatTime(e.UpdatedAt),
		})
	}
	return executionHeader, rows
}

func decodeTargets(tbl *tabular.Table, brands []domain.Brand, season domain.Season) ([]domain.Target, error) {
	if err := requireColumns(tbl, tabular.ColMonth, tabular.ColBrand, tabular.ColTarget); err != nil {
		return nil, err
	}
	out := make([]domain.Target, 0, tbl.Len())
	for i := 0; i < tbl.Len(); i++ {
		rowSeason := season
		if s := tbl.Value(i, tabular.ColSeason); s != "" {
			parsed, err := domain.ParseSeason(s)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
			rowSeason = parsed
		}
		month, err := domain.ParseMonth(tbl.Value(i, tabular.ColMonth), rowSeason)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		brand, err := domain.ParseBrand(tbl.Value(i, tabular.ColBrand), brands)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		qty, err := tbl.Int(i, tabular.ColTarget)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Target{Month: month, Brand: brand, Quantity: qty})
	}
	return out, nil
}

func encodeTargets(targets []domain.Target) ([]string, [][]string) {
	rows := make([][]string, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, []string{
			string(t.Month.Season), t.Month.Label(), string(t.Brand), itoa(t.Quantity),
		})
	}
	return targetHeader, rows
}

func itoa(n int) string { return strconv.Itoa(n) }

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{timeLayout, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}
