// Package tabular reads and writes the CSV and XLSX tables the matcher works on.
package tabular

import (
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrMissingColumn means a configured column is absent from a table header.
	ErrMissingColumn = eris.New("missing column")

	// ErrUnreadable means a file exists but cannot be decoded or parsed.
	ErrUnreadable = eris.New("unreadable file")
)

// missingMarkers are cell values treated as absent, matching the NA markers
// most spreadsheet exports and dataframe tools emit.
var missingMarkers = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-NaN":     {},
	"-nan":     {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// IsMissing reports whether a cell value should be treated as absent.
func IsMissing(v string) bool {
	_, ok := missingMarkers[strings.TrimSpace(v)]
	return ok
}

// Table is a header plus data rows. Rows may be shorter than the header.
type Table struct {
	Path   string
	Header []string
	Rows   [][]string

	colIdx map[string]int
}

// NewTable indexes header columns by their trimmed name. The first
// occurrence of a repeated column wins.
func NewTable(path string, header []string, rows [][]string) *Table {
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		if _, ok := colIdx[col]; !ok {
			colIdx[col] = i
		}
	}
	return &Table{Path: path, Header: header, Rows: rows, colIdx: colIdx}
}

// HasColumn reports whether the header contains col.
func (t *Table) HasColumn(col string) bool {
	_, ok := t.colIdx[strings.TrimSpace(col)]
	return ok
}

// RequireColumns returns ErrMissingColumn naming the first absent column.
func (t *Table) RequireColumns(cols ...string) error {
	for _, col := range cols {
		if !t.HasColumn(col) {
			return eris.Wrapf(ErrMissingColumn, "tabular: column %q not found in %s", col, t.Path)
		}
	}
	return nil
}

// Get returns the raw cell value; ok is false when the column is absent or
// the row is too short.
func (t *Table) Get(row []string, col string) (string, bool) {
	idx, ok := t.colIdx[strings.TrimSpace(col)]
	if !ok || idx >= len(row) {
		return "", false
	}
	return row[idx], true
}

// Value returns the cell value, trimmed; ok is false when the value is absent
// or one of the NA markers.
func (t *Table) Value(row []string, col string) (string, bool) {
	v, ok := t.Get(row, col)
	if !ok || IsMissing(v) {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// FirstPresent walks the fallback columns in order and returns the first
// non-missing value. Absent columns are skipped.
func (t *Table) FirstPresent(row []string, cols []string) (string, bool) {
	for _, col := range cols {
		if v, ok := t.Value(row, col); ok {
			return v, true
		}
	}
	return "", false
}

// Column returns every non-missing value of col, in row order.
func (t *Table) Column(col string) []string {
	var out []string
	for _, row := range t.Rows {
		if v, ok := t.Value(row, col); ok {
			out = append(out, v)
		}
	}
	return out
}

// SplitColumns parses a pipe-delimited fallback list ("Trading Name|Name").
func SplitColumns(list string) []string {
	var cols []string
	for _, col := range strings.Split(list, "|") {
		col = strings.TrimSpace(col)
		if col != "" {
			cols = append(cols, col)
		}
	}
	return cols
}
