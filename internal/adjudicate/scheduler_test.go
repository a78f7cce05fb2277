//go:build !integration

package adjudicate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-match/internal/judge"
	"github.com/sells-group/company-match/internal/ledger"
	"github.com/sells-group/company-match/internal/model"
	"github.com/sells-group/company-match/internal/tabular"
)

// mockJudge implements judge.Judge.
type mockJudge struct {
	mock.Mock
	prompts []string
}

func (m *mockJudge) Adjudicate(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func verdictJSON(names ...string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf(`{"Input Name Processed": %q, "Match": "%s MATCH", "Confidence": "High", "Explanation": "same"}`, n, n)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func records(ids ...string) []model.FuzzyMatchRecord {
	out := make([]model.FuzzyMatchRecord, len(ids))
	for i, id := range ids {
		out[i] = model.FuzzyMatchRecord{ID: id, Name: "Company " + id, Matches: []string{"C" + id}}
	}
	return out
}

func newLedger(t *testing.T, fuzzy []model.FuzzyMatchRecord) *ledger.Ledger {
	t.Helper()
	l, err := ledger.LoadOrInit(filepath.Join(t.TempDir(), "match_status.csv"), fuzzy, tabular.NewDecoder(""))
	require.NoError(t, err)
	return l
}

func newScheduler(t *testing.T, j *mockJudge, l *ledger.Ledger, sizes ...int) *Scheduler {
	t.Helper()
	p, err := NewPromptTemplate("")
	require.NoError(t, err)
	return NewScheduler(j, l, p, Options{BatchSizes: sizes, Pause: -1})
}

func promptHas(name string) interface{} {
	return mock.MatchedBy(func(p string) bool { return strings.Contains(p, fmt.Sprintf("%q", name)) })
}

func TestRun_CallFailureMarksGroupAndPersists(t *testing.T) {
	fuzzy := records("1", "2")
	l := newLedger(t, fuzzy)

	j := new(mockJudge)
	j.On("Adjudicate", mock.Anything, mock.Anything).Return("", errors.New("connection refused by judge")).Once()
	j.On("Adjudicate", mock.Anything, mock.Anything).Return("", errors.New("still down"))

	report, err := newScheduler(t, j, l, 2).Run(context.Background(), fuzzy)
	require.NoError(t, err)
	require.Len(t, report.Sizes, 1)
	assert.Equal(t, 2, report.Sizes[0].Failed)
	assert.Equal(t, 1, report.Calls())

	reloaded, err := ledger.Load(l.Path(), tabular.NewDecoder(""))
	require.NoError(t, err)
	for _, id := range []string{"1", "2"} {
		rec, ok := reloaded.Get(id)
		require.True(t, ok)
		assert.False(t, rec.Status)
		require.NotNil(t, rec.LastBatchSize)
		assert.Equal(t, 2, *rec.LastBatchSize)
		assert.Nil(t, rec.AIMatch)
		assert.Nil(t, rec.AIConfidence)
		assert.Nil(t, rec.AIExplanation)
	}
}

func TestRun_OmittedVerdictFailsOnlyThatRow(t *testing.T) {
	fuzzy := records("A", "B")
	l := newLedger(t, fuzzy)

	j := new(mockJudge)
	j.On("Adjudicate", mock.Anything, mock.Anything).Return(verdictJSON("Company A"), nil).Once()

	report, err := newScheduler(t, j, l, 2).Run(context.Background(), fuzzy)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sizes[0].Resolved)
	assert.Equal(t, 1, report.Sizes[0].Failed)

	a, _ := l.Get("A")
	assert.True(t, a.Status)
	assert.Equal(t, 2, *a.LastBatchSize)
	assert.Equal(t, "Company A MATCH", *a.AIMatch)
	assert.Equal(t, "High", *a.AIConfidence)
	assert.Equal(t, "same", *a.AIExplanation)

	b, _ := l.Get("B")
	assert.False(t, b.Status)
	assert.Equal(t, 2, *b.LastBatchSize)
	j.AssertExpectations(t)
}

func TestRun_ResolvedIDsNeverSent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "match_status.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"id,name,status,last_batch_size,ai_match,ai_confidence,ai_explanation\n"+
			"5,Company 5,True,10,C5,High,done\n"), 0o644))

	fuzzy := records("4", "5", "6")
	l, err := ledger.LoadOrInit(path, fuzzy, tabular.NewDecoder(""))
	require.NoError(t, err)

	j := new(mockJudge)
	j.On("Adjudicate", mock.Anything, mock.Anything).Return("[]", nil)

	_, err = newScheduler(t, j, l, 10, 5, 1).Run(context.Background(), fuzzy)
	require.NoError(t, err)

	require.NotEmpty(t, j.prompts)
	for _, p := range j.prompts {
		assert.NotContains(t, p, `"Company 5"`)
	}
}

func TestRun_MonotonicNarrowing(t *testing.T) {
	fuzzy := records("1", "2", "3")
	l := newLedger(t, fuzzy)

	j := new(mockJudge)
	// Size 2: first group resolves row 1 only; second group (row 3) fails.
	j.On("Adjudicate", mock.Anything, promptHas("Company 1")).Return(verdictJSON("Company 1"), nil).Once()
	j.On("Adjudicate", mock.Anything, promptHas("Company 3")).Return("not json", nil).Once()
	// Size 1: rows 2 and 3 individually.
	j.On("Adjudicate", mock.Anything, promptHas("Company 2")).Return(verdictJSON("Company 2"), nil).Once()
	j.On("Adjudicate", mock.Anything, promptHas("Company 3")).Return(verdictJSON("Company 3"), nil).Once()

	report, err := newScheduler(t, j, l, 2, 2, 1).Run(context.Background(), fuzzy)
	require.NoError(t, err)

	require.Len(t, report.Sizes, 2, "repeated size has nothing eligible")
	assert.Equal(t, 2, report.Sizes[0].BatchSize)
	assert.Equal(t, 3, report.Sizes[0].Eligible)
	assert.Equal(t, 1, report.Sizes[1].BatchSize)
	assert.Equal(t, 2, report.Sizes[1].Eligible)
	assert.Equal(t, 4, report.Calls())

	for _, id := range []string{"1", "2", "3"} {
		rec, _ := l.Get(id)
		assert.True(t, rec.Status, id)
	}
	one, _ := l.Get("1")
	assert.Equal(t, 2, *one.LastBatchSize)
	three, _ := l.Get("3")
	assert.Equal(t, 1, *three.LastBatchSize)
	j.AssertExpectations(t)
}

func TestRun_ResumeSkipsAttemptedSizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "match_status.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"id,name,status,last_batch_size,ai_match,ai_confidence,ai_explanation\n"+
			"1,Company 1,False,5,,,\n"+
			"2,Company 2,False,,,,\n"), 0o644))

	fuzzy := records("1", "2")
	l, err := ledger.LoadOrInit(path, fuzzy, tabular.NewDecoder(""))
	require.NoError(t, err)

	j := new(mockJudge)
	j.On("Adjudicate", mock.Anything, mock.Anything).Return("[]", nil)

	report, err := newScheduler(t, j, l, 10, 5).Run(context.Background(), fuzzy)
	require.NoError(t, err)

	// Row 1 already failed at 5, so it is skipped at 10 and at 5.
	require.Len(t, report.Sizes, 2)
	assert.Equal(t, 1, report.Sizes[0].Eligible)
	assert.Equal(t, 1, report.Sizes[1].Eligible)
	for _, p := range j.prompts {
		assert.NotContains(t, p, `"Company 1"`)
	}

	one, _ := l.Get("1")
	assert.Equal(t, 5, *one.LastBatchSize)
	two, _ := l.Get("2")
	assert.Equal(t, 5, *two.LastBatchSize)
}

func TestRun_DuplicateClaimsFail(t *testing.T) {
	fuzzy := records("1", "2")
	l := newLedger(t, fuzzy)

	j := new(mockJudge)
	j.On("Adjudicate", mock.Anything, mock.Anything).
		Return(verdictJSON("Company 1", "Company  1", "Company 2", "Somebody Else"), nil).Once()

	report, err := newScheduler(t, j, l, 2).Run(context.Background(), fuzzy)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sizes[0].Resolved)
	assert.Equal(t, 1, report.Sizes[0].Failed)
	assert.Equal(t, 1, report.Sizes[0].Unmatched)

	one, _ := l.Get("1")
	assert.False(t, one.Status)
	two, _ := l.Get("2")
	assert.True(t, two.Status)
}

func TestRun_CancelledDuringCallLeavesGroupUntouched(t *testing.T) {
	fuzzy := records("1")
	l := newLedger(t, fuzzy)

	ctx, cancel := context.WithCancel(context.Background())
	j := new(mockJudge)
	j.On("Adjudicate", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("", context.Canceled)

	_, err := newScheduler(t, j, l, 1).Run(ctx, fuzzy)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	rec, _ := l.Get("1")
	assert.Nil(t, rec.LastBatchSize)
}

func TestRun_PausesAfterAnsweredCallsOnly(t *testing.T) {
	fuzzy := records("1", "2", "3", "4")
	l := newLedger(t, fuzzy)

	j := new(mockJudge)
	j.On("Adjudicate", mock.Anything, promptHas("Company 1")).Return(verdictJSON("Company 1"), nil).Once()
	j.On("Adjudicate", mock.Anything, promptHas("Company 2")).Return("I am not sure about these.", nil).Once()
	j.On("Adjudicate", mock.Anything, promptHas("Company 3")).
		Return("", fmt.Errorf("judge: anthropic stop_reason=max_tokens: %w", judge.ErrEmptyResponse)).Once()
	j.On("Adjudicate", mock.Anything, promptHas("Company 4")).Return("", errors.New("503 service unavailable")).Once()

	s := newScheduler(t, j, l, 1)
	s.opts.Pause = 50 * time.Millisecond
	var pauses []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	report, err := s.Run(context.Background(), fuzzy)
	require.NoError(t, err)
	require.Len(t, report.Sizes, 1)
	assert.Equal(t, 4, report.Calls())
	assert.Equal(t, 1, report.Sizes[0].Resolved)
	assert.Equal(t, 3, report.Sizes[0].Failed)

	// ok, malformed and empty answers pause; the failed call does not.
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond}, pauses)
	j.AssertExpectations(t)
}

func TestRun_EmptyAnswerIsMalformed(t *testing.T) {
	fuzzy := records("1")
	l := newLedger(t, fuzzy)
	p, err := NewPromptTemplate("")
	require.NoError(t, err)

	j := new(mockJudge)
	j.On("Adjudicate", mock.Anything, mock.Anything).Return("", judge.ErrEmptyResponse).Once()

	out, err := NewScheduler(j, l, p, Options{Pause: -1}).adjudicate(context.Background(), fuzzy)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMalformed, out.Kind)
	assert.True(t, errors.Is(out.Err, judge.ErrEmptyResponse))
}

func TestNewScheduler_PauseDefaults(t *testing.T) {
	l := newLedger(t, records("1"))
	p, err := NewPromptTemplate("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPause, NewScheduler(new(mockJudge), l, p, Options{}).opts.Pause)
	assert.Equal(t, -time.Second, NewScheduler(new(mockJudge), l, p, Options{Pause: -time.Second}).opts.Pause)
	assert.Equal(t, DefaultBatchSizes, NewScheduler(new(mockJudge), l, p, Options{}).opts.BatchSizes)
}

func TestRun_SameNameDifferentIDsResolveAtSizeOne(t *testing.T) {
	fuzzy := []model.FuzzyMatchRecord{
		{ID: "a", Name: "Acme", Matches: []string{"ACME LTD"}},
		{ID: "b", Name: "Acme", Matches: []string{"ACME INC"}},
	}
	l := newLedger(t, fuzzy)

	// Both echoes land on the first row with that name, so neither row has
	// exactly one claim while they share a group.
	j := new(mockJudge)
	j.On("Adjudicate", mock.Anything, mock.Anything).Return(verdictJSON("Acme", "Acme"), nil).Once()
	j.On("Adjudicate", mock.Anything, mock.Anything).Return(verdictJSON("Acme"), nil).Twice()

	report, err := newScheduler(t, j, l, 2, 1).Run(context.Background(), fuzzy)
	require.NoError(t, err)
	require.Len(t, report.Sizes, 2)
	assert.Equal(t, SizeReport{BatchSize: 2, Eligible: 2, Groups: 1, Failed: 2}, report.Sizes[0])
	assert.Equal(t, SizeReport{BatchSize: 1, Eligible: 2, Groups: 2, Resolved: 2}, report.Sizes[1])

	for _, id := range []string{"a", "b"} {
		rec, _ := l.Get(id)
		assert.True(t, rec.Status, id)
		assert.Equal(t, 1, *rec.LastBatchSize, id)
	}
	j.AssertExpectations(t)
}

func TestReconciler_NonOKFailsWholeGroup(t *testing.T) {
	fuzzy := records("1", "2")
	l := newLedger(t, fuzzy)

	res, err := NewReconciler(l).Apply(fuzzy, 5, Malformed(ErrMalformedResponse))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	for _, id := range []string{"1", "2"} {
		rec, _ := l.Get(id)
		assert.False(t, rec.Status)
		assert.Equal(t, 5, *rec.LastBatchSize)
	}
}

func TestOutcomeKind_String(t *testing.T) {
	assert.Equal(t, "ok", OutcomeOK.String())
	assert.Equal(t, "call_failed", OutcomeCallFailed.String())
	assert.Equal(t, "malformed", OutcomeMalformed.String())
}
