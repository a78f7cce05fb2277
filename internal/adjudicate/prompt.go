package adjudicate

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-match/internal/model"
)

// Placeholder is replaced by the indented JSON task list when a prompt is
// rendered.
const Placeholder = "{batch_matching_tasks}"

// ErrNoPlaceholder means a prompt template never mentions the task list.
var ErrNoPlaceholder = eris.New("prompt template has no " + Placeholder + " placeholder")

// DefaultPrompt is used when no prompt is configured.
const DefaultPrompt = `You reconcile company names. For each task below, decide which entry of
"company_list" (if any) refers to the same company as "input_name". Names may
differ in legal suffixes, punctuation, word order or abbreviations.

Tasks:
{batch_matching_tasks}

Answer with a JSON array only, one object per task, in this exact shape:
[
  {{
    "Input Name Processed": "<input_name exactly as given>",
    "Match": "<the matching entry from company_list, or null>",
    "Confidence": "<High, Medium or Low>",
    "Explanation": "<one short sentence>"
  }}
]
`

// Task is one input name and its fuzzy candidates, as sent to the judge.
type Task struct {
	InputName   string   `json:"input_name"`
	CompanyList []string `json:"company_list"`
}

// PromptTemplate renders judge prompts. Doubled braces render as literal
// braces, so JSON examples can appear in the template.
type PromptTemplate struct {
	text string
}

// NewPromptTemplate validates text; an empty text selects DefaultPrompt.
func NewPromptTemplate(text string) (*PromptTemplate, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultPrompt
	}
	if !strings.Contains(text, Placeholder) {
		return nil, eris.Wrap(ErrNoPlaceholder, "adjudicate: parse prompt")
	}
	return &PromptTemplate{text: text}, nil
}

// LoadPromptTemplate builds a template from an inline prompt, or from file
// when path is set.
func LoadPromptTemplate(inline, path string) (*PromptTemplate, error) {
	if path == "" {
		return NewPromptTemplate(inline)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "adjudicate: read prompt file %s", path)
	}
	return NewPromptTemplate(string(data))
}

// TasksFor builds the judge tasks for a group, in group order.
func TasksFor(group []model.FuzzyMatchRecord) []Task {
	tasks := make([]Task, len(group))
	for i, rec := range group {
		list := rec.Matches
		if list == nil {
			list = []string{}
		}
		tasks[i] = Task{InputName: rec.Name, CompanyList: list}
	}
	return tasks
}

// Render substitutes the task list into the template.
func (p *PromptTemplate) Render(tasks []Task) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tasks); err != nil {
		return "", eris.Wrap(err, "adjudicate: encode tasks")
	}
	payload := strings.TrimSuffix(buf.String(), "\n")

	var out strings.Builder
	text := p.text
	for len(text) > 0 {
		switch {
		case strings.HasPrefix(text, Placeholder):
			out.WriteString(payload)
			text = text[len(Placeholder):]
		case strings.HasPrefix(text, "{{"):
			out.WriteByte('{')
			text = text[2:]
		case strings.HasPrefix(text, "}}"):
			out.WriteByte('}')
			text = text[2:]
		default:
			out.WriteByte(text[0])
			text = text[1:]
		}
	}
	return out.String(), nil
}
