package rowsource

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dealmatch/internal/importer"
	"github.com/sells-group/dealmatch/internal/profile"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "import.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadCSV_MapsKeysAndLabels(t *testing.T) {
	data := "Company Name,origin_country,Reference Code,Unknown Column\n" +
		"PayViet,Vietnam,VN-S-1,ignored\n" +
		",,,\n" +
		"Lion Logistics,Singapore,SG-S-2,\n"

	rows, err := ReadCSV(strings.NewReader(data), importer.Columns(profile.KindTarget))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Index)
	assert.Equal(t, "PayViet", rows[0].Values["name"])
	assert.Equal(t, "Vietnam", rows[0].Values[importer.KeyOriginCountry])
	assert.Equal(t, "VN-S-1", rows[0].Values[importer.KeyReferenceCode])
	assert.NotContains(t, rows[0].Values, "Unknown Column")

	assert.Equal(t, 4, rows[1].Index, "blank rows keep their spreadsheet numbering")
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Buyers": {
			{"COMPANY NAME", "Origin Country", "Target Industries"},
			{"Lion Capital", "Singapore", "Fintech; Logistics"},
			{"", "", ""},
			{"Mekong Partners", "Vietnam", "Agriculture"},
		},
	})

	rows, err := ReadXLSX(path, importer.Columns(profile.KindInvestor), XLSXOptions{SheetName: "Buyers"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Lion Capital", rows[0].Values["name"])
	assert.Equal(t, "Fintech; Logistics", rows[0].Values["industries"])
	assert.Equal(t, 4, rows[1].Index)
}

func TestReadXLSX_MissingSheet(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"name"}}})

	_, err := ReadXLSX(path, importer.Columns(profile.KindInvestor), XLSXOptions{SheetName: "Nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Nope" not found`)

	_, err = ReadXLSX(path, importer.Columns(profile.KindInvestor), XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "targets.CSV")
	require.NoError(t, os.WriteFile(csvPath, []byte("name,origin_country\nPayViet,Vietnam\n"), 0o644))

	rows, err := ReadFile(csvPath, importer.Columns(profile.KindTarget))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = ReadFile(filepath.Join(dir, "targets.json"), importer.Columns(profile.KindTarget))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}
