package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/width"

	atomicio "github.com/sawpanic/crewrun/internal/io"
	clog "github.com/sawpanic/crewrun/internal/log"
	"github.com/sawpanic/crewrun/internal/views"
	"github.com/sawpanic/crewrun/internal/xlsx"
)

// Output formats of the view commands.
const (
	formatAuto  = "auto"
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
	formatXLSX  = "xlsx"
)

// resolveFormat picks table on a terminal and CSV otherwise.
func resolveFormat(format string, w io.Writer) (string, error) {
	switch format {
	case "", formatAuto:
		if clog.IsTerminal(w) {
			return formatTable, nil
		}
		return formatCSV, nil
	case formatTable, formatCSV, formatJSON, formatXLSX:
		return format, nil
	}
	return "", fmt.Errorf("unknown format %q (want table, csv, json or xlsx)", format)
}

// writeGrids renders grids to w, or to outPath when it is set.
func writeGrids(w io.Writer, format, outPath string, grids []views.Grid) error {
	if outPath != "" {
		if format == "" || format == formatAuto {
			format = formatCSV
			if strings.HasSuffix(strings.ToLower(outPath), ".xlsx") {
				format = formatXLSX
			}
		}
		var buf bytes.Buffer
		if err := renderGrids(&buf, format, grids); err != nil {
			return err
		}
		return atomicio.WriteFileAtomic(outPath, buf.Bytes())
	}

	format, err := resolveFormat(format, w)
	if err != nil {
		return err
	}
	if format == formatXLSX && clog.IsTerminal(w) {
		return fmt.Errorf("refusing to write a workbook to the terminal, use --out")
	}
	return renderGrids(w, format, grids)
}

func renderGrids(w io.Writer, format string, grids []views.Grid) error {
	switch format {
	case formatXLSX:
		return xlsx.Write(w, grids...)
	case formatJSON:
		return writeGridJSON(w, grids)
	case formatCSV:
		for i, g := range grids {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if err := writeGridCSV(w, g); err != nil {
				return err
			}
		}
		return nil
	case formatTable:
		for i, g := range grids {
			if i > 0 {
				fmt.Fprintln(w)
			}
			writeGridTable(w, g)
		}
		return nil
	}
	return fmt.Errorf("unknown format %q", format)
}

func writeGridCSV(w io.Writer, g views.Grid) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(g.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(g.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// writeGridJSON emits one object per row keyed by header. Several grids
// become an object keyed by title.
func writeGridJSON(w io.Writer, grids []views.Grid) error {
	records := func(g views.Grid) []map[string]string {
		out := make([]map[string]string, len(g.Rows))
		for i, row := range g.Rows {
			rec := make(map[string]string, len(g.Header))
			for j, h := range g.Header {
				if j < len(row) {
					rec[h] = row[j]
				}
			}
			out[i] = rec
		}
		return out
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(grids) == 1 {
		return enc.Encode(records(grids[0]))
	}
	byTitle := make(map[string][]map[string]string, len(grids))
	for _, g := range grids {
		byTitle[g.Title] = records(g)
	}
	return enc.Encode(byTitle)
}

// displayWidth counts East Asian wide characters as two columns.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func pad(s string, w int) string {
	if d := w - displayWidth(s); d > 0 {
		return s + strings.Repeat(" ", d)
	}
	return s
}

// writeGridTable aligns columns by display width, so Hangul names line up.
func writeGridTable(w io.Writer, g views.Grid) {
	widths := make([]int, len(g.Header))
	for i, h := range g.Header {
		widths[i] = displayWidth(h)
	}
	for _, row := range g.Rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if dw := displayWidth(row[i]); dw > widths[i] {
				widths[i] = dw
			}
		}
	}

	line := func(cells []string) {
		parts := make([]string, len(widths))
		for i := range widths {
			var c string
			if i < len(cells) {
				c = cells[i]
			}
			parts[i] = pad(c, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	if g.Title != "" {
		fmt.Fprintf(w, "== %s ==\n", g.Title)
	}
	line(g.Header)
	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}
	line(rule)
	for _, row := range g.Rows {
		line(row)
	}
	fmt.Fprintf(w, "(%d rows)\n", len(g.Rows))
}

// printJSON writes v indented, used for command results.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
