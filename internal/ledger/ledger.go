// Package ledger owns the match-status file that makes adjudication
// resumable. Every record says whether its id is resolved and the smallest
// batch size it was last attempted at.
package ledger

import (
	"errors"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-match/internal/model"
	"github.com/sells-group/company-match/internal/tabular"
)

// ErrUnknownID is returned when marking an id the ledger does not track.
var ErrUnknownID = eris.New("unknown ledger id")

// Ledger is the in-memory view of the match-status file. It is not safe for
// concurrent use.
type Ledger struct {
	path    string
	records []*model.MatchStatusRecord
	byID    map[string]*model.MatchStatusRecord
}

// LoadOrInit opens the ledger at path. An existing file is ground truth; ids
// from fuzzy that it lacks are appended as fresh rows. A missing file is
// created with one fresh row per fuzzy record and saved immediately.
func LoadOrInit(path string, fuzzy []model.FuzzyMatchRecord, d *tabular.Decoder) (*Ledger, error) {
	l, err := Load(path, d)
	switch {
	case err == nil:
		added := l.merge(fuzzy)
		zap.L().Info("ledger: loaded",
			zap.String("path", path),
			zap.Int("records", len(l.records)),
			zap.Int("added", added),
		)
		if added > 0 {
			if err := l.Save(); err != nil {
				return nil, err
			}
		}
		return l, nil
	case errors.Is(err, os.ErrNotExist):
		l = &Ledger{path: path, byID: make(map[string]*model.MatchStatusRecord, len(fuzzy))}
		l.merge(fuzzy)
		if err := l.Save(); err != nil {
			return nil, err
		}
		zap.L().Info("ledger: initialized", zap.String("path", path), zap.Int("records", len(l.records)))
		return l, nil
	default:
		return nil, err
	}
}

// Load reads an existing ledger file. A file that cannot be parsed is an
// error; it is never silently replaced.
func Load(path string, d *tabular.Decoder) (*Ledger, error) {
	tbl, err := tabular.ReadCSV(path, d)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: read")
	}
	if err := tbl.RequireColumns(ColumnID, ColumnStatus); err != nil {
		return nil, err
	}

	l := &Ledger{path: path, byID: make(map[string]*model.MatchStatusRecord, len(tbl.Rows))}
	for i, row := range tbl.Rows {
		rec, err := decodeRecord(tbl, row, i+2)
		if err != nil {
			return nil, eris.Wrapf(tabular.ErrUnreadable, "ledger: %s: %v", path, err)
		}
		if _, dup := l.byID[rec.ID]; dup {
			continue
		}
		l.add(rec)
	}
	return l, nil
}

func (l *Ledger) add(rec *model.MatchStatusRecord) {
	l.records = append(l.records, rec)
	l.byID[rec.ID] = rec
}

func (l *Ledger) merge(fuzzy []model.FuzzyMatchRecord) int {
	added := 0
	for _, f := range fuzzy {
		if _, ok := l.byID[f.ID]; ok {
			continue
		}
		l.add(&model.MatchStatusRecord{ID: f.ID, Name: f.Name})
		added++
	}
	return added
}

// Path returns the file the ledger saves to.
func (l *Ledger) Path() string { return l.path }

// Records returns the records in file order.
func (l *Ledger) Records() []model.MatchStatusRecord {
	out := make([]model.MatchStatusRecord, len(l.records))
	for i, r := range l.records {
		out[i] = *r
	}
	return out
}

// Get returns a copy of the record for id.
func (l *Ledger) Get(id string) (model.MatchStatusRecord, bool) {
	r, ok := l.byID[id]
	if !ok {
		return model.MatchStatusRecord{}, false
	}
	return *r, true
}

// FinishedIDs returns the set of resolved ids.
func (l *Ledger) FinishedIDs() map[string]struct{} {
	done := make(map[string]struct{})
	for _, r := range l.records {
		if r.Status {
			done[r.ID] = struct{}{}
		}
	}
	return done
}

// Eligible returns the set of ids that may be attempted at batchSize.
func (l *Ledger) Eligible(batchSize int) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, r := range l.records {
		if r.EligibleFor(batchSize) {
			ids[r.ID] = struct{}{}
		}
	}
	return ids
}

// MarkResolved records a verdict for id at batchSize.
func (l *Ledger) MarkResolved(id string, batchSize int, v model.Verdict) error {
	r, ok := l.byID[id]
	if !ok {
		return eris.Wrapf(ErrUnknownID, "ledger: resolve %s", id)
	}
	r.Status = true
	r.LastBatchSize = intPtr(batchSize)
	r.AIMatch = v.Match
	r.AIConfidence = v.Confidence
	r.AIExplanation = v.Explanation
	return nil
}

// MarkFailed records that id was attempted at batchSize without a usable
// verdict and clears any result fields.
func (l *Ledger) MarkFailed(id string, batchSize int) error {
	r, ok := l.byID[id]
	if !ok {
		return eris.Wrapf(ErrUnknownID, "ledger: fail %s", id)
	}
	r.Status = false
	r.LastBatchSize = intPtr(batchSize)
	r.AIMatch = nil
	r.AIConfidence = nil
	r.AIExplanation = nil
	return nil
}

// Save rewrites the whole ledger file atomically.
func (l *Ledger) Save() error {
	rows := make([][]string, len(l.records))
	for i, r := range l.records {
		rows[i] = encodeRecord(r)
	}
	if err := tabular.WriteCSVAtomic(l.path, Header, rows); err != nil {
		return eris.Wrap(err, "ledger: save")
	}
	return nil
}

// Summary counts records by outcome.
type Summary struct {
	Total    int
	Resolved int
	Pending  int
	// Unattempted counts pending records with no last batch size.
	Unattempted int
	// FailedAt counts pending records by the last size they failed at.
	FailedAt map[int]int
	// ResolvedAt counts resolved records by the size they resolved at.
	ResolvedAt map[int]int
}

// Sizes returns the batch sizes present in the summary, largest first.
func (s Summary) Sizes() []int {
	seen := make(map[int]struct{})
	for k := range s.FailedAt {
		seen[k] = struct{}{}
	}
	for k := range s.ResolvedAt {
		seen[k] = struct{}{}
	}
	sizes := make([]int, 0, len(seen))
	for k := range seen {
		sizes = append(sizes, k)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))
	return sizes
}

// Summary returns counts by status and last batch size.
func (l *Ledger) Summary() Summary {
	s := Summary{FailedAt: map[int]int{}, ResolvedAt: map[int]int{}}
	for _, r := range l.records {
		s.Total++
		switch {
		case r.Status:
			s.Resolved++
			if r.LastBatchSize != nil {
				s.ResolvedAt[*r.LastBatchSize]++
			}
		case r.LastBatchSize == nil:
			s.Pending++
			s.Unattempted++
		default:
			s.Pending++
			s.FailedAt[*r.LastBatchSize]++
		}
	}
	return s
}

func intPtr(n int) *int { return &n }
