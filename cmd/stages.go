package main

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-match/internal/adjudicate"
	"github.com/sells-group/company-match/internal/config"
	"github.com/sells-group/company-match/internal/judge"
	"github.com/sells-group/company-match/internal/ledger"
	"github.com/sells-group/company-match/internal/matching"
	"github.com/sells-group/company-match/internal/resilience"
	"github.com/sells-group/company-match/internal/tabular"
)

// newJudge builds the configured judge. Tests replace it.
var newJudge = func(c *config.Config) (judge.Judge, error) {
	opts := judge.Options{
		Provider:    c.Judge.Provider,
		Model:       c.Judge.Model,
		MaxTokens:   c.Judge.MaxTokens,
		Temperature: c.Judge.Temperature,
		Retry:       resilience.FromRetryConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs),
	}
	switch strings.ToLower(opts.Provider) {
	case judge.ProviderOpenAI:
		opts.APIKey = c.OpenAI.Key
		opts.BaseURL = c.OpenAI.BaseURL
	default:
		opts.APIKey = c.Anthropic.Key
	}
	return judge.New(opts)
}

func decoder(c *config.Config) *tabular.Decoder {
	return tabular.NewDecoder(c.Encoding.Legacy)
}

// runFuzzyStage writes the candidates file. An existing file is left alone.
func runFuzzyStage(ctx context.Context, c *config.Config) error {
	res, err := matching.PerformFuzzyMatching(ctx, matching.Options{
		SourcePath:        c.Source.Path,
		SourceIDColumn:    c.Source.IDColumn,
		SourceNameColumns: tabular.SplitColumns(c.Source.NameColumns),
		TargetPath:        c.Target.Path,
		TargetNameColumn:  c.Target.NameColumn,
		CommonTerms:       c.Match.CommonTerms,
		Threshold:         c.Match.Threshold,
		OutputPath:        c.Output.FuzzyPath,
		Decoder:           decoder(c),
	})
	if errors.Is(err, matching.ErrOutputExists) {
		zap.L().Warn("fuzzy output already exists, skipping fuzzy stage; delete it to recompute",
			zap.String("path", c.Output.FuzzyPath),
		)
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "fuzzy stage")
	}
	zap.L().Info("fuzzy stage finished",
		zap.Int("source_rows", res.SourceRows),
		zap.Int("records", res.Records),
		zap.String("path", c.Output.FuzzyPath),
	)
	return nil
}

// runAdjudicateStage sends the candidates to the judge and updates the ledger.
func runAdjudicateStage(ctx context.Context, c *config.Config) error {
	d := decoder(c)

	fuzzy, err := matching.LoadFuzzyMatches(c.Output.FuzzyPath, d)
	if errors.Is(err, os.ErrNotExist) {
		return eris.Wrapf(err, "adjudicate: %s not found, run the fuzzy stage first", c.Output.FuzzyPath)
	}
	if err != nil {
		return eris.Wrap(err, "adjudicate")
	}

	l, err := ledger.LoadOrInit(c.Output.LedgerPath, fuzzy, d)
	if err != nil {
		return eris.Wrap(err, "adjudicate: open ledger")
	}

	prompt, err := adjudicate.LoadPromptTemplate(c.Judge.Prompt, c.Judge.PromptFile)
	if err != nil {
		return err
	}

	j, err := newJudge(c)
	if err != nil {
		return err
	}

	sched := adjudicate.NewScheduler(j, l, prompt, adjudicate.Options{
		BatchSizes: c.Judge.BatchSizes,
		Pause:      c.Judge.Pause,
	})
	report, err := sched.Run(ctx, fuzzy)
	if report != nil {
		s := l.Summary()
		zap.L().Info("adjudication finished",
			zap.Int("calls", report.Calls()),
			zap.Int("resolved", s.Resolved),
			zap.Int("pending", s.Pending),
			zap.String("ledger", l.Path()),
		)
	}
	return err
}
