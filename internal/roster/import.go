// Package roster converts the contract workbook into the influencer roster.
package roster

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/crewrun/internal/domain"
	"github.com/sawpanic/crewrun/internal/store"
	"github.com/sawpanic/crewrun/internal/tabular"
	"github.com/sawpanic/crewrun/internal/xlsx"
)

// DefaultSheet is the sheet the contract workbook keeps its rows in.
const DefaultSheet = "fnfcrew"

const (
	colAmountIncl2nd = "total_amt_incl2nd"
	colAmountExc2nd  = "total_amt_exc2nd"
)

// RequiredColumns lists the canonical columns a contract sheet must carry.
func RequiredColumns(brands []domain.Brand) []string {
	cols := []string{tabular.ColID, tabular.ColName, tabular.ColFollowers}
	for _, b := range brands {
		cols = append(cols, b.QuotaColumn())
	}
	return append(cols,
		colAmountIncl2nd, colAmountExc2nd, tabular.ColTotalQty,
		tabular.ColContractSeason, tabular.ColSecUsage)
}

// UnitFee is the per-execution fee: both contract amounts over the total
// count, truncated. It is zero when the total count is not positive.
func UnitFee(incl2nd, exc2nd decimal.Decimal, totalQty int) int {
	if totalQty <= 0 {
		return 0
	}
	return int(incl2nd.Add(exc2nd).Div(decimal.NewFromInt(int64(totalQty))).Truncate(0).IntPart())
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || strings.EqualFold(s, "nan") {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// Import converts a contract sheet into roster entries.
func Import(tbl *tabular.Table, brands []domain.Brand) ([]domain.Influencer, error) {
	if missing := tbl.Missing(RequiredColumns(brands)...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingColumns, strings.Join(missing, ", "))
	}
	roster, err := store.DecodeRoster(tbl, brands)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]int, len(roster))
	for i, inf := range roster {
		byID[inf.ID] = i
	}
	for row := 0; row < tbl.Len(); row++ {
		i, ok := byID[tbl.Value(row, tabular.ColID)]
		if !ok {
			continue
		}
		incl, err := parseAmount(tbl.Value(row, colAmountIncl2nd))
		if err != nil {
			return nil, fmt.Errorf("row %d %s: %w", row+2, colAmountIncl2nd, err)
		}
		exc, err := parseAmount(tbl.Value(row, colAmountExc2nd))
		if err != nil {
			return nil, fmt.Errorf("row %d %s: %w", row+2, colAmountExc2nd, err)
		}
		total, err := tbl.Int(row, tabular.ColTotalQty)
		if err != nil {
			return nil, err
		}
		roster[i].UnitFee = UnitFee(incl, exc, total)
	}
	return roster, nil
}

// ImportFile reads a contract workbook (or a CSV export of it). When sheet is
// empty the DefaultSheet is used if present, otherwise the first sheet.
func ImportFile(path, sheet string, brands []domain.Brand) ([]domain.Influencer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tbl *tabular.Table
	if xlsx.IsWorkbook(data) && sheet == "" {
		tbl, err = xlsx.ReadUpload(data, DefaultSheet)
		if err != nil {
			tbl, err = xlsx.ReadUpload(data, "")
		}
	} else {
		tbl, err = xlsx.ReadUpload(data, sheet)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Import(tbl, brands)
}
