package adjudicate

import (
	"go.uber.org/zap"

	"github.com/sells-group/company-match/internal/ledger"
	"github.com/sells-group/company-match/internal/model"
	"github.com/sells-group/company-match/internal/resolve"
)

// GroupResult counts what happened to one group's rows.
type GroupResult struct {
	Resolved  int
	Failed    int
	Unmatched int
}

// Reconciler applies group outcomes to the ledger.
type Reconciler struct {
	ledger *ledger.Ledger
}

// NewReconciler returns a Reconciler writing to l.
func NewReconciler(l *ledger.Ledger) *Reconciler {
	return &Reconciler{ledger: l}
}

// Apply marks every row of group as resolved or failed at batchSize. A row
// is resolved only when exactly one verdict echoes its name. The ledger is
// not saved.
func (r *Reconciler) Apply(group []model.FuzzyMatchRecord, batchSize int, out Outcome) (GroupResult, error) {
	var res GroupResult

	if out.Kind != OutcomeOK {
		for _, rec := range group {
			if err := r.ledger.MarkFailed(rec.ID, batchSize); err != nil {
				return res, err
			}
			res.Failed++
		}
		return res, nil
	}

	claims := make(map[string][]model.Verdict, len(group))
	for _, v := range out.Verdicts {
		echo := resolve.CollapseWhitespace(v.InputName)
		idx := -1
		for i, rec := range group {
			if resolve.CollapseWhitespace(rec.Name) == echo {
				idx = i
				break
			}
		}
		if idx < 0 {
			res.Unmatched++
			zap.L().Warn("adjudicate: verdict matches no input name, dropping",
				zap.String("input_name", v.InputName),
				zap.Int("batch_size", batchSize),
			)
			continue
		}
		id := group[idx].ID
		claims[id] = append(claims[id], v)
	}

	for _, rec := range group {
		vs := claims[rec.ID]
		if len(vs) == 1 {
			if err := r.ledger.MarkResolved(rec.ID, batchSize, vs[0]); err != nil {
				return res, err
			}
			res.Resolved++
			continue
		}
		if len(vs) > 1 {
			zap.L().Warn("adjudicate: several verdicts claim one input, failing it at this size",
				zap.String("id", rec.ID),
				zap.Int("verdicts", len(vs)),
				zap.Int("batch_size", batchSize),
			)
		}
		if err := r.ledger.MarkFailed(rec.ID, batchSize); err != nil {
			return res, err
		}
		res.Failed++
	}
	return res, nil
}
