package judge

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-match/internal/resilience"
	"github.com/sells-group/company-match/pkg/anthropic"
)

// AnthropicJudge adjudicates through the Anthropic Messages API.
type AnthropicJudge struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropic wraps client as a Judge.
func NewAnthropic(client anthropic.Client, opts Options) *AnthropicJudge {
	return &AnthropicJudge{
		client:      client,
		model:       opts.Model,
		maxTokens:   int64(opts.MaxTokens),
		temperature: opts.Temperature,
	}
}

// Adjudicate sends prompt as a single user message and returns the text.
func (j *AnthropicJudge) Adjudicate(ctx context.Context, prompt string) (string, error) {
	temp := j.temperature
	resp, err := j.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       j.model,
		MaxTokens:   j.maxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", resilience.ClassifyStatus(eris.Wrap(err, "judge: anthropic"), anthropic.StatusCode(err))
	}

	resp.Usage.LogCost(j.model, "adjudicate")

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.Wrapf(ErrEmptyResponse, "judge: anthropic stop_reason=%s", resp.StopReason)
	}
	return text, nil
}
