package adjudicate

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-match/internal/model"
)

// ErrMalformedResponse means the judge answered, but not with the expected
// JSON array of verdicts.
var ErrMalformedResponse = eris.New("malformed judge response")

// Keys every verdict object must carry.
const (
	KeyInputName   = "Input Name Processed"
	KeyMatch       = "Match"
	KeyConfidence  = "Confidence"
	KeyExplanation = "Explanation"
)

var requiredKeys = []string{KeyInputName, KeyMatch, KeyConfidence, KeyExplanation}

// ParseVerdicts decodes the judge's answer. Markdown fences and prose around
// the array are ignored. An answer whose first JSON value is an object is
// malformed even if an array is nested inside it.
func ParseVerdicts(raw string) ([]model.Verdict, error) {
	text := cleanJSON(raw)
	if !strings.HasPrefix(text, "[") {
		return nil, eris.Wrap(ErrMalformedResponse, "adjudicate: answer is not a JSON array")
	}

	// Only the first value is read; prose after the array is ignored.
	var items []map[string]json.RawMessage
	if err := json.NewDecoder(strings.NewReader(text)).Decode(&items); err != nil {
		return nil, eris.Wrapf(ErrMalformedResponse, "adjudicate: decode verdicts: %v", err)
	}

	verdicts := make([]model.Verdict, 0, len(items))
	for i, item := range items {
		for _, key := range requiredKeys {
			if _, ok := item[key]; !ok {
				return nil, eris.Wrapf(ErrMalformedResponse, "adjudicate: verdict %d missing %q", i, key)
			}
		}

		var name *string
		if err := json.Unmarshal(item[KeyInputName], &name); err != nil {
			return nil, eris.Wrapf(ErrMalformedResponse, "adjudicate: verdict %d: %q is not a string", i, KeyInputName)
		}

		v := model.Verdict{
			Match:       scalarText(item[KeyMatch]),
			Confidence:  scalarText(item[KeyConfidence]),
			Explanation: scalarText(item[KeyExplanation]),
		}
		if name != nil {
			v.InputName = *name
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, nil
}

// scalarText renders a JSON value as ledger text: strings unquoted, null as
// nil, anything else verbatim.
func scalarText(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return &s
	}
	s = string(raw)
	return &s
}

// cleanJSON strips markdown code fences and any prose before the first JSON
// value. Text after the value is left for the decoder to ignore.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	if start := strings.IndexAny(text, "[{"); start >= 0 {
		text = text[start:]
	}

	return strings.TrimSpace(text)
}
