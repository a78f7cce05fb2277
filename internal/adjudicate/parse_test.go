//go:build !integration

package adjudicate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-match/internal/model"
)

func TestPromptTemplate_Render(t *testing.T) {
	p, err := NewPromptTemplate("Match these {{strictly}}:\n{batch_matching_tasks}\nDone.")
	require.NoError(t, err)

	out, err := p.Render(TasksFor([]model.FuzzyMatchRecord{
		{ID: "1", Name: "Acme & Sons", Matches: []string{"ACME AND SONS LTD"}},
		{ID: "2", Name: "Café", Matches: nil},
	}))
	require.NoError(t, err)

	want := "Match these {strictly}:\n" +
		"[\n" +
		"  {\n" +
		"    \"input_name\": \"Acme & Sons\",\n" +
		"    \"company_list\": [\n" +
		"      \"ACME AND SONS LTD\"\n" +
		"    ]\n" +
		"  },\n" +
		"  {\n" +
		"    \"input_name\": \"Café\",\n" +
		"    \"company_list\": []\n" +
		"  }\n" +
		"]\nDone."
	assert.Equal(t, want, out)
}

func TestPromptTemplate_Default(t *testing.T) {
	p, err := NewPromptTemplate("  ")
	require.NoError(t, err)

	out, err := p.Render(TasksFor([]model.FuzzyMatchRecord{{ID: "1", Name: "Acme", Matches: []string{"ACME"}}}))
	require.NoError(t, err)
	assert.Contains(t, out, `"input_name": "Acme"`)
	assert.Contains(t, out, `"Input Name Processed"`)
	assert.NotContains(t, out, "{{")
	assert.NotContains(t, out, Placeholder)
}

func TestPromptTemplate_MissingPlaceholder(t *testing.T) {
	_, err := NewPromptTemplate("no tasks here")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPlaceholder))
}

func TestParseVerdicts_Valid(t *testing.T) {
	raw := "Here you go:\n```json\n[\n" +
		`{"Input Name Processed": "Acme  Inc", "Match": "ACME INCORPORATED", "Confidence": 0.92, "Explanation": "Same company"},` +
		`{"Input Name Processed": "Globex", "Match": null, "Confidence": "Low", "Explanation": null}` +
		"\n]\n```"

	verdicts, err := ParseVerdicts(raw)
	require.NoError(t, err)
	require.Len(t, verdicts, 2)

	assert.Equal(t, "Acme  Inc", verdicts[0].InputName)
	assert.Equal(t, "ACME INCORPORATED", *verdicts[0].Match)
	assert.Equal(t, "0.92", *verdicts[0].Confidence)
	assert.Equal(t, "Same company", *verdicts[0].Explanation)

	assert.Nil(t, verdicts[1].Match)
	assert.Equal(t, "Low", *verdicts[1].Confidence)
	assert.Nil(t, verdicts[1].Explanation)
}

func TestParseVerdicts_NullEchoedName(t *testing.T) {
	verdicts, err := ParseVerdicts(`[{"Input Name Processed": null, "Match": null, "Confidence": null, "Explanation": null}]`)
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assert.Empty(t, verdicts[0].InputName)
}

func TestParseVerdicts_Empty(t *testing.T) {
	verdicts, err := ParseVerdicts("[]")
	require.NoError(t, err)
	assert.Empty(t, verdicts)
}

func TestParseVerdicts_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":       "I cannot help with that.",
		"object":         `{"Input Name Processed": "A", "Match": null, "Confidence": null, "Explanation": null}`,
		"missing key":    `[{"Input Name Processed": "A", "Match": null, "Confidence": null}]`,
		"numeric name":   `[{"Input Name Processed": 7, "Match": null, "Confidence": null, "Explanation": null}]`,
		"array of lists": `[[1, 2]]`,
		"truncated":      `[{"Input Name Processed": "A", "Match": "B"`,
		"wrapped array":  `{"results": [{"Input Name Processed": "A", "Match": null, "Confidence": null, "Explanation": null}]}`,
		"prose object":   "Result: {\"results\": []}",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseVerdicts(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedResponse))
		})
	}
}

func TestParseVerdicts_TrailingProseWithBrackets(t *testing.T) {
	raw := `[{"Input Name Processed": "Acme", "Match": "ACME LTD", "Confidence": "High", "Explanation": "same"}]` +
		"\nNote: see [1]. Other options {none}."

	verdicts, err := ParseVerdicts(raw)
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assert.Equal(t, "Acme", verdicts[0].InputName)
	assert.Equal(t, "ACME LTD", *verdicts[0].Match)
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, "[1]", cleanJSON("```json\n[1]\n```"))
	assert.Equal(t, "[1]", cleanJSON("```\n[1]\n```"))
	assert.Equal(t, "[1, [2]] suffix [3]", cleanJSON("prefix [1, [2]] suffix [3]"))
	assert.Equal(t, `{"results": [1]}`, cleanJSON(`Here: {"results": [1]}`))
	assert.Equal(t, "nothing", cleanJSON("  nothing  "))
}
