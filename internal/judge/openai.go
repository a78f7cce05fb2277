package judge

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sells-group/company-match/internal/resilience"
)

// OpenAIJudge adjudicates through an OpenAI-compatible chat completions
// endpoint.
type OpenAIJudge struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAI builds an OpenAI judge. A non-empty BaseURL points it at a
// compatible endpoint.
func NewOpenAI(opts Options) *OpenAIJudge {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAIJudge{
		client:      openai.NewClientWithConfig(cfg),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: float32(opts.Temperature),
	}
}

// Adjudicate sends prompt as a single user message and returns the first
// choice's content.
func (j *OpenAIJudge) Adjudicate(ctx context.Context, prompt string) (string, error) {
	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       j.model,
		MaxTokens:   j.maxTokens,
		Temperature: j.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", resilience.ClassifyStatus(eris.Wrap(err, "judge: openai"), openAIStatus(err))
	}

	zap.L().Info("cost attribution",
		zap.String("model", j.model),
		zap.String("phase", "adjudicate"),
		zap.Int("input_tokens", resp.Usage.PromptTokens),
		zap.Int("output_tokens", resp.Usage.CompletionTokens),
	)

	if len(resp.Choices) == 0 {
		return "", eris.Wrap(ErrEmptyResponse, "judge: openai returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", eris.Wrapf(ErrEmptyResponse, "judge: openai finish_reason=%s", resp.Choices[0].FinishReason)
	}
	return text, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
