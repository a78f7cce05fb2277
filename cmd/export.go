package main

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/company-match/internal/ledger"
	"github.com/sells-group/company-match/internal/matching"
	"github.com/sells-group/company-match/internal/model"
	"github.com/sells-group/company-match/internal/tabular"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write ledger results and candidates to an Excel workbook",
	Long:  "Joins the ledger with the fuzzy candidates so the verdicts can be reviewed by hand.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d := decoder(cfg)
		l, err := ledger.Load(cfg.Output.LedgerPath, d)
		if err != nil {
			return err
		}
		fuzzy, err := matching.LoadFuzzyMatches(cfg.Output.FuzzyPath, d)
		if err != nil {
			return err
		}

		if err := tabular.WriteXLSX(exportOutput, exportSheets(l, fuzzy)...); err != nil {
			return eris.Wrap(err, "export")
		}
		zap.L().Info("exported review workbook",
			zap.String("path", exportOutput),
			zap.Int("rows", len(l.Records())),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "review.xlsx", "workbook to write")
	rootCmd.AddCommand(exportCmd)
}

// exportSheets builds a Review sheet (one row per ledger record, with its
// candidates) and a Summary sheet.
func exportSheets(l *ledger.Ledger, fuzzy []model.FuzzyMatchRecord) []tabular.Sheet {
	candidates := make(map[string]string, len(fuzzy))
	for _, f := range fuzzy {
		candidates[f.ID] = matching.FormatMatches(f.Matches)
	}

	review := tabular.Sheet{
		Name: "Review",
		Header: []string{
			"id", "name", "status", "last_batch_size",
			"ai_match", "ai_confidence", "ai_explanation", "candidates",
		},
	}
	for _, r := range l.Records() {
		status := "pending"
		if r.Status {
			status = "resolved"
		}
		size := ""
		if r.LastBatchSize != nil {
			size = strconv.Itoa(*r.LastBatchSize)
		}
		review.Rows = append(review.Rows, []string{
			r.ID, r.Name, status, size,
			text(r.AIMatch), text(r.AIConfidence), text(r.AIExplanation),
			candidates[r.ID],
		})
	}

	s := l.Summary()
	summary := tabular.Sheet{
		Name:   "Summary",
		Header: []string{"metric", "value"},
		Rows: [][]string{
			{"total", strconv.Itoa(s.Total)},
			{"resolved", strconv.Itoa(s.Resolved)},
			{"pending", strconv.Itoa(s.Pending)},
			{"unattempted", strconv.Itoa(s.Unattempted)},
		},
	}
	for _, size := range s.Sizes() {
		summary.Rows = append(summary.Rows,
			[]string{"failed at " + strconv.Itoa(size), strconv.Itoa(s.FailedAt[size])},
			[]string{"resolved at " + strconv.Itoa(size), strconv.Itoa(s.ResolvedAt[size])},
		)
	}

	return []tabular.Sheet{review, summary}
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
