package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\ufeff"

// CSVReader reads comma separated files with a header row.
type CSVReader struct{}

func (CSVReader) Extension() string { return ".csv" }

func (CSVReader) Read(_ context.Context, path string, _ ReadOptions) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("parse csv: %w", err)
	}
	return tableFromRows(records), nil
}

// XLSXReader reads one worksheet of an Excel workbook; the first sheet
// unless ReadOptions.Sheet names another.
type XLSXReader struct{}

func (XLSXReader) Extension() string { return ".xlsx" }

func (XLSXReader) Read(_ context.Context, path string, opts ReadOptions) (Table, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = wb.GetSheetName(0)
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return tableFromRows(rows), nil
}

// JSONReader reads an array of flat objects. Columns are the union of keys
// in sorted order; scalars are rendered as text.
type JSONReader struct{}

func (JSONReader) Extension() string { return ".json" }

func (JSONReader) Read(_ context.Context, path string, _ ReadOptions) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read json: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var objects []map[string]any
	if err := dec.Decode(&objects); err != nil && err != io.EOF {
		return Table{}, fmt.Errorf("parse json: %w", err)
	}

	keys := map[string]struct{}{}
	for _, obj := range objects {
		for k := range obj {
			keys[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(keys))
	for k := range keys {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	table := Table{Columns: columns, Rows: make([][]string, 0, len(objects))}
	for _, obj := range objects {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = scalar(obj[col])
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		out, _ := json.Marshal(val)
		return string(out)
	}
}

func tableFromRows(rows [][]string) Table {
	if len(rows) == 0 {
		return Table{}
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
	}
	return Table{Columns: header, Rows: rows[1:]}
}
