// Package xlsx moves tables in and out of Excel workbooks.
package xlsx

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sawpanic/crewrun/internal/tabular"
	"github.com/sawpanic/crewrun/internal/views"
)

// ContentType is the MIME type of generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var zipMagic = []byte("PK\x03\x04")

// IsWorkbook reports whether data looks like an XLSX file.
func IsWorkbook(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic)
}

// ReadTable reads one sheet of a workbook. An empty sheet name selects the
// first sheet. The first non-blank row is the header.
func ReadTable(r io.Reader, sheet string) (*tabular.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("workbook has no sheet %q", sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	for len(rows) > 0 && blank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return tabular.New(nil, nil), nil
	}
	header := rows[0]
	body := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		// GetRows trims trailing empty cells
		for len(row) < len(header) {
			row = append(row, "")
		}
		body = append(body, row)
	}
	return tabular.New(header, body), nil
}

// ReadUpload decodes an uploaded sheet, XLSX or CSV, by content.
func ReadUpload(data []byte, sheet string) (*tabular.Table, error) {
	if IsWorkbook(data) {
		return ReadTable(bytes.NewReader(data), sheet)
	}
	return tabular.ReadCSV(bytes.NewReader(data))
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Write renders each grid as a sheet named after its title.
func Write(w io.Writer, grids ...views.Grid) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for i, g := range grids {
		name := sheetName(g.Title, i)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}

		header := make([]interface{}, len(g.Header))
		for j, h := range g.Header {
			header[j] = h
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return err
		}
		if err := f.SetRowStyle(name, 1, 1, bold); err != nil {
			return err
		}
		for r, row := range g.Rows {
			cells := make([]interface{}, len(row))
			for j, v := range row {
				cells[j] = cellValue(v)
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(name, cell, &cells); err != nil {
				return err
			}
		}
		if err := f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)
	return f.Write(w)
}

// numbers become numeric cells so sums work in Excel
func cellValue(v string) interface{} {
	if n, err := strconv.Atoi(v); err == nil && (v == "0" || !strings.HasPrefix(v, "0")) {
		return n
	}
	return v
}

func sheetName(title string, i int) string {
	if title == "" {
		title = "Sheet" + strconv.Itoa(i+1)
	}
	if len([]rune(title)) > 31 {
		title = string([]rune(title)[:31])
	}
	return title
}
