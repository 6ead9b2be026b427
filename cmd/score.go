package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealmatch/internal/matching"
	"github.com/sells-group/dealmatch/internal/profile"
	"github.com/sells-group/dealmatch/internal/store"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one investor/target pair",
	Long:  "Scores a stored investor against a stored target (--investor/--target) or two profile documents on disk (--investor-file/--target-file). Nothing is persisted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		invID, _ := cmd.Flags().GetInt64("investor")
		tgtID, _ := cmd.Flags().GetInt64("target")
		invFile, _ := cmd.Flags().GetString("investor-file")
		tgtFile, _ := cmd.Flags().GetString("target-file")
		asJSON, _ := cmd.Flags().GetBool("json")

		if (invID == 0) == (invFile == "") {
			return eris.New("score: exactly one of --investor or --investor-file is required")
		}
		if (tgtID == 0) == (tgtFile == "") {
			return eris.New("score: exactly one of --target or --target-file is required")
		}

		var st store.Store
		if invID != 0 || tgtID != 0 {
			var err error
			if st, err = initStore(ctx, "match"); err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		invRec, err := loadProfile(ctx, st, profile.KindInvestor, invID, invFile)
		if err != nil {
			return err
		}
		tgtRec, err := loadProfile(ctx, st, profile.KindTarget, tgtID, tgtFile)
		if err != nil {
			return err
		}

		inv, err := profile.DecodeInvestor(invRec)
		if err != nil {
			return err
		}
		tgt, err := profile.DecodeTarget(tgtRec)
		if err != nil {
			return err
		}

		scorer, err := newScorer()
		if err != nil {
			return err
		}
		sc := scorer.Score(inv, tgt)

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(sc)
		}
		formatScore(out, inv.Name, tgt.Name, sc)
		return nil
	},
}

// loadProfile reads a profile from the store by id, or from a JSON file.
func loadProfile(ctx context.Context, st store.Store, kind profile.Kind, id int64, path string) (profile.Record, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return profile.Record{}, eris.Wrapf(err, "read %s file", kind)
		}
		if !json.Valid(data) {
			return profile.Record{}, eris.Errorf("%s file %s is not valid JSON", kind, path)
		}
		return profile.Record{Kind: kind, Data: data}, nil
	}
	rec, err := st.GetProfile(ctx, kind, id)
	if err != nil {
		return profile.Record{}, eris.Wrapf(err, "load %s %d", kind, id)
	}
	return *rec, nil
}

func formatScore(out io.Writer, investor, target string, sc matching.Score) {
	if investor == "" {
		investor = "(investor)"
	}
	if target == "" {
		target = "(target)"
	}
	_, _ = fmt.Fprintf(out, "%s x %s: %d/100\n\n", investor, target, sc.Total)

	d := sc.Dimensions
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DIMENSION\tSCORE")
	_, _ = fmt.Fprintf(w, "industry\t%.2f\n", d.Industry)
	_, _ = fmt.Fprintf(w, "geography\t%.2f\n", d.Geography)
	_, _ = fmt.Fprintf(w, "financial\t%.2f\n", d.Financial)
	_, _ = fmt.Fprintf(w, "profile\t%.2f\n", d.Profile)
	_, _ = fmt.Fprintf(w, "timeline\t%.2f\n", d.Timeline)
	_, _ = fmt.Fprintf(w, "ownership\t%.2f\n", d.Ownership)
	_ = w.Flush()
}

func init() {
	scoreCmd.Flags().Int64("investor", 0, "stored investor id")
	scoreCmd.Flags().Int64("target", 0, "stored target id")
	scoreCmd.Flags().String("investor-file", "", "investor profile JSON document")
	scoreCmd.Flags().String("target-file", "", "target profile JSON document")
	scoreCmd.Flags().Bool("json", false, "print the score as JSON")
	rootCmd.AddCommand(scoreCmd)
}
