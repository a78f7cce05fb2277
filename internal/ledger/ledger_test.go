//go:build !integration

package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-match/internal/model"
	"github.com/sells-group/company-match/internal/tabular"
)

func strPtr(s string) *string { return &s }

func fuzzyRecords(ids ...string) []model.FuzzyMatchRecord {
	out := make([]model.FuzzyMatchRecord, len(ids))
	for i, id := range ids {
		out[i] = model.FuzzyMatchRecord{ID: id, Name: "Company " + id, Matches: []string{"T" + id}}
	}
	return out
}

func TestLoadOrInit_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match_status.csv")

	l, err := LoadOrInit(path, fuzzyRecords("1", "2"), tabular.NewDecoder(""))
	require.NoError(t, err)
	assert.Len(t, l.Records(), 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"id,name,status,last_batch_size,ai_match,ai_confidence,ai_explanation\n"+
			"1,Company 1,False,,,,\n"+
			"2,Company 2,False,,,,\n",
		string(data))
}

func TestLoadOrInit_ExistingIsGroundTruth(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "match_status.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"id,name,status,last_batch_size,ai_match,ai_confidence,ai_explanation\n"+
			"5,Five,true,10,FIVE LTD,High,Same company\n"+
			"6,Six,False,5.0,,,\n"), 0o644))

	l, err := LoadOrInit(path, fuzzyRecords("5", "6", "7"), tabular.NewDecoder(""))
	require.NoError(t, err)

	five, ok := l.Get("5")
	require.True(t, ok)
	assert.True(t, five.Status)
	require.NotNil(t, five.LastBatchSize)
	assert.Equal(t, 10, *five.LastBatchSize)
	assert.Equal(t, "FIVE LTD", *five.AIMatch)

	six, _ := l.Get("6")
	assert.Equal(t, 5, *six.LastBatchSize)
	assert.Nil(t, six.AIMatch)

	seven, ok := l.Get("7")
	require.True(t, ok, "fuzzy ids missing from the ledger are appended")
	assert.Nil(t, seven.LastBatchSize)

	_, finished := l.FinishedIDs()["5"]
	assert.True(t, finished)
	assert.Len(t, l.FinishedIDs(), 1)
}

func TestLoadOrInit_ResolvedNeverEligible(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "match_status.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"id,name,status,last_batch_size,ai_match,ai_confidence,ai_explanation\n"+
			"5,Five,True,,,,\n"), 0o644))

	l, err := LoadOrInit(path, fuzzyRecords("5", "8"), tabular.NewDecoder(""))
	require.NoError(t, err)

	for _, size := range []int{10, 5, 1} {
		_, ok := l.Eligible(size)["5"]
		assert.False(t, ok, "resolved id eligible at size %d", size)
	}
}

func TestLoadOrInit_Latin1Ledger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "match_status.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"id,name,status,last_batch_size,ai_match,ai_confidence,ai_explanation\n"+
			"1,Caf\xE9 R\xF6st,False,,,,\n"), 0o644))

	l, err := LoadOrInit(path, nil, tabular.NewDecoder("latin1"))
	require.NoError(t, err)
	rec, ok := l.Get("1")
	require.True(t, ok)
	assert.Equal(t, "Café Röst", rec.Name)
}

func TestLoadOrInit_MalformedAborts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "match_status.csv")
	original := "id,name,status,last_batch_size\n1,One,maybe,\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	_, err := LoadOrInit(path, fuzzyRecords("1"), tabular.NewDecoder(""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, tabular.ErrUnreadable))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data), "malformed ledger must not be overwritten")
}

func TestLoad_MissingStatusColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match_status.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,One\n"), 0o644))

	_, err := Load(path, tabular.NewDecoder(""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, tabular.ErrMissingColumn))
}

func TestEligible_MonotonicNarrowing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match_status.csv")
	l, err := LoadOrInit(path, fuzzyRecords("1"), tabular.NewDecoder(""))
	require.NoError(t, err)

	assert.Contains(t, l.Eligible(10), "1")
	require.NoError(t, l.MarkFailed("1", 10))
	assert.NotContains(t, l.Eligible(10), "1")
	assert.Contains(t, l.Eligible(5), "1")

	require.NoError(t, l.MarkFailed("1", 5))
	assert.NotContains(t, l.Eligible(5), "1")
	assert.NotContains(t, l.Eligible(10), "1")
	assert.Contains(t, l.Eligible(1), "1")
}

func TestMarkResolvedAndSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match_status.csv")
	l, err := LoadOrInit(path, fuzzyRecords("1", "2"), tabular.NewDecoder(""))
	require.NoError(t, err)

	require.NoError(t, l.MarkResolved("1", 5, model.Verdict{
		InputName:   "Company 1",
		Match:       strPtr("T1, Inc"),
		Confidence:  strPtr("0.9"),
		Explanation: strPtr("Same name"),
	}))
	require.NoError(t, l.MarkFailed("2", 5))
	require.NoError(t, l.Save())

	reloaded, err := Load(path, tabular.NewDecoder(""))
	require.NoError(t, err)

	one, _ := reloaded.Get("1")
	assert.True(t, one.Status)
	assert.Equal(t, 5, *one.LastBatchSize)
	assert.Equal(t, "T1, Inc", *one.AIMatch)
	assert.Equal(t, "0.9", *one.AIConfidence)

	two, _ := reloaded.Get("2")
	assert.False(t, two.Status)
	assert.Equal(t, 5, *two.LastBatchSize)
	assert.Nil(t, two.AIMatch)
}

func TestMark_UnknownID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match_status.csv")
	l, err := LoadOrInit(path, fuzzyRecords("1"), tabular.NewDecoder(""))
	require.NoError(t, err)

	assert.True(t, errors.Is(l.MarkFailed("nope", 1), ErrUnknownID))
	assert.True(t, errors.Is(l.MarkResolved("nope", 1, model.Verdict{}), ErrUnknownID))
}

func TestSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match_status.csv")
	l, err := LoadOrInit(path, fuzzyRecords("1", "2", "3", "4"), tabular.NewDecoder(""))
	require.NoError(t, err)

	require.NoError(t, l.MarkResolved("1", 10, model.Verdict{}))
	require.NoError(t, l.MarkFailed("2", 10))
	require.NoError(t, l.MarkFailed("3", 5))

	s := l.Summary()
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Resolved)
	assert.Equal(t, 3, s.Pending)
	assert.Equal(t, 1, s.Unattempted)
	assert.Equal(t, map[int]int{10: 1, 5: 1}, s.FailedAt)
	assert.Equal(t, map[int]int{10: 1}, s.ResolvedAt)
	assert.Equal(t, []int{10, 5}, s.Sizes())
}
