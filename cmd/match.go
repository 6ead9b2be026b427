package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealmatch/internal/orchestrator"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Score and persist investor/target matches",
	Long:  "Rescores one investor (--investor), one target (--target), or every active pair (--all). Pairs below matching.min_score are not persisted; review status of existing matches is kept.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		invID, _ := cmd.Flags().GetInt64("investor")
		tgtID, _ := cmd.Flags().GetInt64("target")
		all, _ := cmd.Flags().GetBool("all")

		scopes := 0
		for _, set := range []bool{invID != 0, tgtID != 0, all} {
			if set {
				scopes++
			}
		}
		if scopes != 1 {
			return eris.New("match: exactly one of --investor, --target, or --all is required")
		}

		st, err := initStore(ctx, "match")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		scorer, err := newScorer()
		if err != nil {
			return err
		}
		orch := orchestrator.New(st, scorer, orchestrator.OptionsFromConfig(cfg))

		var report *orchestrator.Report
		switch {
		case invID != 0:
			report, err = orch.ForInvestor(ctx, invID)
		case tgtID != 0:
			report, err = orch.ForTarget(ctx, tgtID)
		default:
			report, err = orch.FullRescan(ctx)
		}
		if report != nil {
			formatReport(cmd.OutOrStdout(), report)
		}
		return err
	},
}

// formatReport prints the run summary and any skipped pairs.
func formatReport(out io.Writer, r *orchestrator.Report) {
	_, _ = fmt.Fprintln(out, r.String())
	if len(r.Skipped) == 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\nINVESTOR\tTARGET\tSTAGE\tERROR")
	for _, pe := range r.Skipped {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", pe.InvestorID, pe.TargetID, pe.Stage, pe.Message)
	}
	_ = w.Flush()
}

func init() {
	matchCmd.Flags().Int64("investor", 0, "rescore one investor against all active targets")
	matchCmd.Flags().Int64("target", 0, "rescore one target against all active investors")
	matchCmd.Flags().Bool("all", false, "rescore every active investor/target pair")
	rootCmd.AddCommand(matchCmd)
}
