package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealmatch/internal/catalog"
	"github.com/sells-group/dealmatch/internal/similarity"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <name>...",
	Short: "Suggest catalog industries for ad-hoc labels",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name, _ := cmd.Flags().GetString("catalog")
		explain, _ := cmd.Flags().GetBool("explain")

		st, err := tryStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		snap, err := loadSnapshot(ctx, st)
		if err != nil {
			return err
		}
		cat := snap.Get(name)
		if cat == nil {
			return eris.Errorf("suggest: unknown catalog %q", name)
		}

		formatSuggestions(cmd.OutOrStdout(), args, cat.Options(), explain)
		return nil
	},
}

// formatSuggestions scores every name against entries using the configured
// floor and cap.
func formatSuggestions(out io.Writer, names []string, entries []catalog.Option, explain bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := "INPUT\tSUGGESTION\tSCORE"
	if explain {
		header += "\tEDIT\tTOKEN\tSUBSTR\tPHONETIC"
	}
	_, _ = fmt.Fprintln(w, header)

	for _, n := range names {
		sugs := similarity.SuggestWith(n, entries, similarity.DefaultWeights(),
			cfg.Similarity.MinScore, cfg.Similarity.MaxResults)
		if len(sugs) == 0 {
			_, _ = fmt.Fprintf(w, "%s\t(none)\t-\n", n)
			continue
		}
		for _, sg := range sugs {
			if !explain {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", n, sg.Name, sg.Score)
				continue
			}
			c := similarity.Breakdown(n, sg.Name)
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\n",
				n, sg.Name, sg.Score, c.Edit, c.Token, c.Substring, c.Phonetic)
		}
	}
	_ = w.Flush()
}

func init() {
	suggestCmd.Flags().String("catalog", "industries", "catalog to rank against")
	suggestCmd.Flags().Bool("explain", false, "show the four sub-scores per suggestion")
	rootCmd.AddCommand(suggestCmd)
}
