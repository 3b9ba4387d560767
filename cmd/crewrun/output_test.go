package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/crewrun/internal/views"
	"github.com/sawpanic/crewrun/internal/xlsx"
)

var sampleGrid = views.Grid{
	Title:  "results",
	Header: []string{"ID", "이름", "배정월"},
	Rows: [][]string{
		{"a1", "김하나", "9월"},
		{"bob_long_id", "Bob", "10월"},
	},
}

func TestResolveFormat(t *testing.T) {
	var buf bytes.Buffer
	f, err := resolveFormat(formatAuto, &buf)
	require.NoError(t, err)
	assert.Equal(t, formatCSV, f, "non-terminal output defaults to CSV")

	f, err = resolveFormat(formatJSON, &buf)
	require.NoError(t, err)
	assert.Equal(t, formatJSON, f)

	_, err = resolveFormat("yaml", &buf)
	assert.Error(t, err)
}

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 2, displayWidth("a1"))
	assert.Equal(t, 6, displayWidth("김하나"))
	assert.Equal(t, "9월 ", pad("9월", 4))
}

func TestWriteGridTableAlignsHangul(t *testing.T) {
	var buf bytes.Buffer
	writeGridTable(&buf, sampleGrid)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "== results ==", lines[0])
	// the name column starts at the same display offset on every row
	assert.Equal(t, displayWidth("bob_long_id  "), strings.Index(lines[3], "김하나"))
	assert.Equal(t, "(2 rows)", lines[5])
}

func TestRenderCSVAndJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderGrids(&buf, formatCSV, []views.Grid{sampleGrid}))
	assert.Equal(t, "ID,이름,배정월\na1,김하나,9월\nbob_long_id,Bob,10월\n", buf.String())

	buf.Reset()
	require.NoError(t, renderGrids(&buf, formatJSON, []views.Grid{sampleGrid}))
	var got []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	want := []map[string]string{
		{"ID": "a1", "이름": "김하나", "배정월": "9월"},
		{"ID": "bob_long_id", "이름": "Bob", "배정월": "10월"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("json rows mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderGrids(&buf, formatXLSX, []views.Grid{sampleGrid}))
	assert.True(t, xlsx.IsWorkbook(buf.Bytes()))

	tbl, err := xlsx.ReadTable(bytes.NewReader(buf.Bytes()), "results")
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
}
