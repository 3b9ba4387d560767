// Package tabular reads and writes the flat CSV tables crewrun keeps its data in.
package tabular

import (
	"fmt"
	"strconv"
	"strings"
)

// Table is a decoded sheet. Header holds canonical column names; Raw keeps the
// header cells as they appeared in the source.
type Table struct {
	Header []string
	Raw    []string
	Rows   [][]string

	index map[string]int
}

// New builds a table from a header row and data rows. Header cells are mapped
// to their canonical names.
func New(header []string, rows [][]string) *Table {
	t := &Table{
		Header: make([]string, len(header)),
		Raw:    append([]string(nil), header...),
		Rows:   rows,
		index:  make(map[string]int, len(header)),
	}
	for i, h := range header {
		c := Canonical(h)
		t.Header[i] = c
		if _, dup := t.index[c]; !dup && c != "" {
			t.index[c] = i
		}
	}
	return t
}

// Len is the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Has reports whether the table carries the canonical column.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Missing returns the columns of cols the table does not carry.
func (t *Table) Missing(cols ...string) []string {
	var out []string
	for _, c := range cols {
		if !t.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Value returns the trimmed cell of row for col, or "" when absent.
func (t *Table) Value(row int, col string) string {
	i, ok := t.index[col]
	if !ok || row < 0 || row >= len(t.Rows) || i >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][i])
}

// Int parses the cell of row for col with ParseInt.
func (t *Table) Int(row int, col string) (int, error) {
	n, err := ParseInt(t.Value(row, col))
	if err != nil {
		return 0, fmt.Errorf("row %d column %s: %w", row+2, col, err)
	}
	return n, nil
}

// Columns returns the positions of header cells whose canonical name is not
// in known, in source order.
func (t *Table) Columns(known map[string]bool) []int {
	var out []int
	for i, c := range t.Header {
		if !known[c] {
			out = append(out, i)
		}
	}
	return out
}

// ParseInt reads the numeric renderings found in the spreadsheets: blanks
// are zero, thousands separators are dropped and "3.0" reads as 3.
func ParseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return int(f), nil
}
