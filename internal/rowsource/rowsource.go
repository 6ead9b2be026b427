// Package rowsource reads import rows from CSV and XLSX files, mapping
// headers onto column keys.
package rowsource

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dealmatch/internal/importer"
	"github.com/sells-group/dealmatch/internal/textnorm"
)

// firstDataRow is the spreadsheet row number of the first row after the header.
const firstDataRow = 2

// XLSXOptions selects the sheet to read.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadFile reads rows from a .csv or .xlsx file.
func ReadFile(path string, cols []importer.Column) ([]importer.Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "rowsource: open csv")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(f, cols)
	case ".xlsx":
		return ReadXLSX(path, cols, XLSXOptions{})
	default:
		return nil, eris.Errorf("rowsource: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV reads a CSV with a header row.
func ReadCSV(r io.Reader, cols []importer.Column) ([]importer.Row, error) {
	records, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, eris.Wrap(err, "rowsource: parse csv")
	}

	keys := headerIndex(cols)
	rows := make([]importer.Row, 0, len(records))
	for i, rec := range records {
		values := make(map[string]string, len(rec))
		for header, val := range rec {
			if key, ok := keys[textnorm.Fold(header)]; ok {
				values[key] = val
			}
		}
		if blank(values) {
			continue
		}
		rows = append(rows, importer.Row{Index: i + firstDataRow, Values: values})
	}
	return rows, nil
}

// ReadXLSX reads one sheet of an XLSX workbook whose first row is the header.
func ReadXLSX(path string, cols []importer.Column, opts XLSXOptions) ([]importer.Row, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "rowsource: open xlsx")
	}
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	keys := headerIndex(cols)
	header := rowToStrings(sheet.Rows[0])
	byPos := make(map[int]string, len(header))
	for j, h := range header {
		if key, ok := keys[textnorm.Fold(h)]; ok {
			byPos[j] = key
		}
	}

	var rows []importer.Row
	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		values := make(map[string]string, len(byPos))
		for j, cell := range cells {
			if key, ok := byPos[j]; ok {
				values[key] = cell
			}
		}
		if blank(values) {
			continue
		}
		rows = append(rows, importer.Row{Index: i + firstDataRow, Values: values})
	}
	return rows, nil
}

// headerIndex maps each column's folded key and folded label to its key.
func headerIndex(cols []importer.Column) map[string]string {
	idx := make(map[string]string, 2*len(cols))
	for _, c := range cols {
		idx[textnorm.Fold(c.Label)] = c.Key
		idx[textnorm.Fold(c.Key)] = c.Key
	}
	return idx
}

func blank(values map[string]string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("rowsource: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("rowsource: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
