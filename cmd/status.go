package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/company-match/internal/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the match-status ledger",
	Long:  "Shows how many ids are resolved and at which batch size the pending ones last failed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		l, err := ledger.Load(cfg.Output.LedgerPath, decoder(cfg))
		if err != nil {
			return err
		}
		formatSummary(cmd.OutOrStdout(), l.Path(), l.Summary())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// formatSummary writes a tabular ledger summary to out.
func formatSummary(out io.Writer, path string, s ledger.Summary) {
	_, _ = fmt.Fprintf(out, "ledger: %s\n", path)
	_, _ = fmt.Fprintf(out, "total: %d  resolved: %d  pending: %d  unattempted: %d\n\n",
		s.Total, s.Resolved, s.Pending, s.Unattempted)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BATCH SIZE\tRESOLVED\tFAILED")
	_, _ = fmt.Fprintln(w, "----------\t--------\t------")
	for _, size := range s.Sizes() {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%d\n", size, s.ResolvedAt[size], s.FailedAt[size])
	}
	_ = w.Flush()
}
