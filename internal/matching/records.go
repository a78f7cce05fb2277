package matching

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-match/internal/model"
	"github.com/sells-group/company-match/internal/tabular"
)

// Fuzzy-candidates file columns.
const (
	ColumnID      = "id"
	ColumnName    = "name"
	ColumnMatches = "matches"
)

// Header is the fuzzy-candidates file header.
var Header = []string{ColumnID, ColumnName, ColumnMatches}

// FormatMatches joins target names the way the candidates file stores them:
// comma-separated, or as a JSON array when a name would not survive the
// comma split (it contains a comma or starts with "[").
func FormatMatches(matches []string) string {
	for _, m := range matches {
		if strings.Contains(m, ",") || strings.HasPrefix(strings.TrimSpace(m), "[") {
			return jsonList(matches)
		}
	}
	return strings.Join(matches, ",")
}

func jsonList(matches []string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(matches); err != nil {
		return strings.Join(matches, ",")
	}
	return strings.TrimSpace(buf.String())
}

// ParseMatches reads a matches cell back into a name list. A JSON array
// literal is accepted; anything else is split on commas.
func ParseMatches(cell string) []string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	if strings.HasPrefix(cell, "[") {
		var list []string
		if err := json.Unmarshal([]byte(cell), &list); err == nil {
			return list
		}
	}

	var out []string
	for _, m := range strings.Split(cell, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

func toRow(r model.FuzzyMatchRecord) []string {
	return []string{r.ID, r.Name, FormatMatches(r.Matches)}
}

// LoadFuzzyMatches reads the fuzzy-candidates file in file order. Duplicate
// ids keep their first occurrence.
func LoadFuzzyMatches(path string, d *tabular.Decoder) ([]model.FuzzyMatchRecord, error) {
	tbl, err := tabular.ReadCSV(path, d)
	if err != nil {
		return nil, eris.Wrap(err, "matching: load fuzzy matches")
	}
	if err := tbl.RequireColumns(Header...); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(tbl.Rows))
	records := make([]model.FuzzyMatchRecord, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		id, ok := tbl.Value(row, ColumnID)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		name, _ := tbl.Get(row, ColumnName)
		matches, _ := tbl.Get(row, ColumnMatches)
		records = append(records, model.FuzzyMatchRecord{
			ID:      id,
			Name:    name,
			Matches: ParseMatches(matches),
		})
	}
	return records, nil
}
