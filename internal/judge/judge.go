// Package judge sends rendered adjudication prompts to an LLM provider and
// returns the raw text answer.
package judge

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-match/internal/resilience"
	"github.com/sells-group/company-match/pkg/anthropic"
)

// Supported providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

var (
	// ErrUnknownProvider is returned by New for an unsupported provider name.
	ErrUnknownProvider = eris.New("unknown judge provider")

	// ErrEmptyResponse means the provider answered with no text.
	ErrEmptyResponse = eris.New("empty judge response")
)

// Judge answers one adjudication prompt.
type Judge interface {
	Adjudicate(ctx context.Context, prompt string) (string, error)
}

// Options selects and configures a provider.
type Options struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Retry       resilience.Policy
}

// New builds the judge for opts.Provider, wrapped with the retry policy.
func New(opts Options) (Judge, error) {
	var j Judge
	switch strings.ToLower(opts.Provider) {
	case ProviderAnthropic, "":
		j = NewAnthropic(anthropic.NewClient(opts.APIKey), opts)
	case ProviderOpenAI:
		j = NewOpenAI(opts)
	default:
		return nil, eris.Wrapf(ErrUnknownProvider, "judge: %q", opts.Provider)
	}
	return WithRetry(j, opts.Retry), nil
}

type retrying struct {
	next   Judge
	policy resilience.Policy
}

// WithRetry retries transient failures of next according to p.
func WithRetry(next Judge, p resilience.Policy) Judge {
	if p.OnRetry == nil {
		p.OnRetry = resilience.RetryLogger("judge", "adjudicate")
	}
	return &retrying{next: next, policy: p}
}

func (r *retrying) Adjudicate(ctx context.Context, prompt string) (string, error) {
	return resilience.Retry(ctx, r.policy, func(ctx context.Context) (string, error) {
		return r.next.Adjudicate(ctx, prompt)
	})
}
