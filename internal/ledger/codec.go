package ledger

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-match/internal/model"
	"github.com/sells-group/company-match/internal/tabular"
)

// Ledger file columns.
const (
	ColumnID            = "id"
	ColumnName          = "name"
	ColumnStatus        = "status"
	ColumnLastBatchSize = "last_batch_size"
	ColumnAIMatch       = "ai_match"
	ColumnAIConfidence  = "ai_confidence"
	ColumnAIExplanation = "ai_explanation"
)

// Header is the ledger file header.
var Header = []string{
	ColumnID, ColumnName, ColumnStatus, ColumnLastBatchSize,
	ColumnAIMatch, ColumnAIConfidence, ColumnAIExplanation,
}

func encodeRecord(r *model.MatchStatusRecord) []string {
	status := "False"
	if r.Status {
		status = "True"
	}
	size := ""
	if r.LastBatchSize != nil {
		size = strconv.Itoa(*r.LastBatchSize)
	}
	return []string{
		r.ID, r.Name, status, size,
		deref(r.AIMatch), deref(r.AIConfidence), deref(r.AIExplanation),
	}
}

func decodeRecord(t *tabular.Table, row []string, line int) (*model.MatchStatusRecord, error) {
	id, ok := t.Value(row, ColumnID)
	if !ok {
		return nil, eris.Errorf("ledger: line %d has no id", line)
	}

	rawStatus, _ := t.Get(row, ColumnStatus)
	status, err := parseStatus(rawStatus)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: line %d (id %s)", line, id)
	}

	rawSize, _ := t.Get(row, ColumnLastBatchSize)
	size, err := parseBatchSize(rawSize)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: line %d (id %s)", line, id)
	}

	name, _ := t.Get(row, ColumnName)
	return &model.MatchStatusRecord{
		ID:            id,
		Name:          name,
		Status:        status,
		LastBatchSize: size,
		AIMatch:       optional(t, row, ColumnAIMatch),
		AIConfidence:  optional(t, row, ColumnAIConfidence),
		AIExplanation: optional(t, row, ColumnAIExplanation),
	}, nil
}

func parseStatus(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1":
		return true, nil
	case "false", "0", "":
		return false, nil
	default:
		return false, eris.Errorf("invalid status %q", v)
	}
}

// parseBatchSize accepts integers and their float renderings ("5.0"), which
// is how dataframe tools write a nullable integer column.
func parseBatchSize(v string) (*int, error) {
	v = strings.TrimSpace(v)
	if tabular.IsMissing(v) {
		return nil, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != float64(int(f)) {
		return nil, eris.Errorf("invalid last_batch_size %q", v)
	}
	n := int(f)
	return &n, nil
}

func optional(t *tabular.Table, row []string, col string) *string {
	v, ok := t.Get(row, col)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
