package xlsx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sawpanic/crewrun/internal/tabular"
	"github.com/sawpanic/crewrun/internal/views"
)

func TestWriteThenRead(t *testing.T) {
	grids := []views.Grid{
		{Title: "template", Header: []string{"brand", "id", "month", "executed"}, Rows: [][]string{
			{"MLB", "a1", "9월", "1"},
			{"DX", "007", "10월", "0"},
		}},
		{Title: "brands", Header: []string{"brand", "assigned"}, Rows: [][]string{{"MLB", "2"}}},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, grids...))
	require.True(t, IsWorkbook(buf.Bytes()))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"template", "brands"}, f.GetSheetList())
	require.NoError(t, f.Close())

	tbl, err := ReadTable(bytes.NewReader(buf.Bytes()), "")
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "007", tbl.Value(1, tabular.ColID), "leading zero ids stay text")
	assert.Equal(t, "1", tbl.Value(0, tabular.ColExecuted))

	second, err := ReadTable(bytes.NewReader(buf.Bytes()), "brands")
	require.NoError(t, err)
	assert.Equal(t, "2", second.Value(0, "assigned"))

	_, err = ReadTable(bytes.NewReader(buf.Bytes()), "missing")
	assert.Error(t, err)
}

func TestReadTableSkipsBlankRows(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "ID"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "브랜드"))
	require.NoError(t, f.SetCellValue("Sheet1", "A3", "a1"))
	require.NoError(t, f.SetCellValue("Sheet1", "A5", "b2"))
	require.NoError(t, f.SetCellValue("Sheet1", "B5", "DX"))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	tbl, err := ReadTable(&buf, "")
	require.NoError(t, err)
	assert.Equal(t, []string{tabular.ColID, tabular.ColBrand}, tbl.Header)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "", tbl.Value(0, tabular.ColBrand))
	assert.Equal(t, "DX", tbl.Value(1, tabular.ColBrand))
}

func TestReadUploadCSV(t *testing.T) {
	tbl, err := ReadUpload([]byte("ID,브랜드\na1,MLB\n"), "")
	require.NoError(t, err)
	assert.Equal(t, "MLB", tbl.Value(0, tabular.ColBrand))
}
