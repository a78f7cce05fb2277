// Package adjudicate runs the judge stage: it sends shrinking batches of
// fuzzy candidates to the judge and records each verdict in the ledger.
package adjudicate

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-match/internal/judge"
	"github.com/sells-group/company-match/internal/ledger"
	"github.com/sells-group/company-match/internal/model"
	"github.com/sells-group/company-match/internal/resilience"
)

// DefaultPause is the wait after every successful judge call.
const DefaultPause = 6 * time.Second

// DefaultBatchSizes are tried in order when none are configured.
var DefaultBatchSizes = []int{10, 5, 1}

// Options configures a Scheduler.
type Options struct {
	BatchSizes []int
	Pause      time.Duration
}

// SizeReport summarizes one batch size.
type SizeReport struct {
	BatchSize int
	Eligible  int
	Groups    int
	Resolved  int
	Failed    int
	Unmatched int
}

// Report summarizes a run, one entry per batch size attempted.
type Report struct {
	Sizes []SizeReport
}

// Calls returns the number of judge calls made.
func (r *Report) Calls() int {
	n := 0
	for _, s := range r.Sizes {
		n += s.Groups
	}
	return n
}

// Scheduler drives adjudication over the configured batch sizes.
type Scheduler struct {
	judge      judge.Judge
	ledger     *ledger.Ledger
	prompt     *PromptTemplate
	reconciler *Reconciler
	opts       Options
	sleep      func(context.Context, time.Duration) error
}

// NewScheduler wires a scheduler. Zero options take the defaults; a
// negative Pause disables pausing.
func NewScheduler(j judge.Judge, l *ledger.Ledger, p *PromptTemplate, opts Options) *Scheduler {
	if len(opts.BatchSizes) == 0 {
		opts.BatchSizes = DefaultBatchSizes
	}
	if opts.Pause == 0 {
		opts.Pause = DefaultPause
	}
	return &Scheduler{
		judge:      j,
		ledger:     l,
		prompt:     p,
		reconciler: NewReconciler(l),
		opts:       opts,
		sleep:      resilience.Sleep,
	}
}

// Run adjudicates fuzzy records in file order. Each batch size only sees
// rows that are unresolved and were never attempted at that size or smaller.
// The ledger is saved after every group. Cancelling ctx stops the run
// before the next call; an interrupted call leaves its group untouched.
func (s *Scheduler) Run(ctx context.Context, fuzzy []model.FuzzyMatchRecord) (*Report, error) {
	report := &Report{}
	for _, size := range s.opts.BatchSizes {
		sr, err := s.runSize(ctx, fuzzy, size)
		if sr.Eligible > 0 {
			report.Sizes = append(report.Sizes, sr)
		}
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *Scheduler) runSize(ctx context.Context, fuzzy []model.FuzzyMatchRecord, size int) (SizeReport, error) {
	sr := SizeReport{BatchSize: size}

	eligible := s.ledger.Eligible(size)
	var pending []model.FuzzyMatchRecord
	for _, rec := range fuzzy {
		if _, ok := eligible[rec.ID]; ok {
			pending = append(pending, rec)
		}
	}
	sr.Eligible = len(pending)
	if len(pending) == 0 {
		return sr, nil
	}

	log := zap.L().With(zap.Int("batch_size", size))
	log.Info("adjudicate: processing batch size", zap.Int("rows", len(pending)))

	for start := 0; start < len(pending); start += size {
		if err := ctx.Err(); err != nil {
			return sr, eris.Wrap(err, "adjudicate: interrupted")
		}

		end := min(start+size, len(pending))
		group := pending[start:end]

		out, err := s.adjudicate(ctx, group)
		if err != nil {
			return sr, err
		}

		res, err := s.reconciler.Apply(group, size, out)
		if err != nil {
			return sr, eris.Wrap(err, "adjudicate: reconcile")
		}
		if err := s.ledger.Save(); err != nil {
			return sr, err
		}

		sr.Groups++
		sr.Resolved += res.Resolved
		sr.Failed += res.Failed
		sr.Unmatched += res.Unmatched

		fields := []zap.Field{
			zap.Int("group", sr.Groups),
			zap.Int("rows", len(group)),
			zap.Stringer("outcome", out.Kind),
			zap.Int("resolved", res.Resolved),
			zap.Int("failed", res.Failed),
		}
		if out.Err != nil {
			log.Warn("adjudicate: group failed", append(fields, zap.Error(out.Err))...)
		} else {
			log.Info("adjudicate: group done", fields...)
		}

		if out.Kind != OutcomeCallFailed && s.opts.Pause > 0 {
			if err := s.sleep(ctx, s.opts.Pause); err != nil {
				return sr, eris.Wrap(err, "adjudicate: interrupted")
			}
		}
	}

	log.Info("adjudicate: batch size complete",
		zap.Int("groups", sr.Groups),
		zap.Int("resolved", sr.Resolved),
		zap.Int("failed", sr.Failed),
		zap.Int("unmatched", sr.Unmatched),
	)
	return sr, nil
}

// adjudicate calls the judge for one group. The error is non-nil only when
// ctx ended during the call. An empty answer counts as malformed output.
func (s *Scheduler) adjudicate(ctx context.Context, group []model.FuzzyMatchRecord) (Outcome, error) {
	prompt, err := s.prompt.Render(TasksFor(group))
	if err != nil {
		return Malformed(err), nil
	}

	raw, err := s.judge.Adjudicate(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, eris.Wrap(ctx.Err(), "adjudicate: interrupted")
		}
		if errors.Is(err, judge.ErrEmptyResponse) {
			return Malformed(err), nil
		}
		return CallFailed(err), nil
	}
	return outcomeFromResponse(raw), nil
}
