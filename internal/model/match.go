// Package model defines the records passed between the matching stages.
package model

// SourceRecord is a company read from the source table. Name is resolved from
// the configured fallback columns.
type SourceRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FuzzyMatchRecord is one row of the fuzzy-candidates file: a source company
// and every original target name that scored above the threshold.
type FuzzyMatchRecord struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Matches []string `json:"matches"`
}

// MatchStatusRecord tracks adjudication progress for one source id.
// Status=true means the id is resolved and must never be sent to the judge again.
type MatchStatusRecord struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Status        bool    `json:"status"`
	LastBatchSize *int    `json:"last_batch_size"`
	AIMatch       *string `json:"ai_match"`
	AIConfidence  *string `json:"ai_confidence"`
	AIExplanation *string `json:"ai_explanation"`
}

// EligibleFor reports whether the record may be attempted at batchSize:
// unresolved and never attempted at this size or smaller.
func (r *MatchStatusRecord) EligibleFor(batchSize int) bool {
	if r.Status {
		return false
	}
	return r.LastBatchSize == nil || *r.LastBatchSize > batchSize
}

// Verdict is a single judge decision echoed back against an input name.
// Match, Confidence and Explanation hold the JSON value as text; nil means
// the judge returned null.
type Verdict struct {
	InputName   string  `json:"input_name"`
	Match       *string `json:"match"`
	Confidence  *string `json:"confidence"`
	Explanation *string `json:"explanation"`
}
