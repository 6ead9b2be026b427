package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealmatch/internal/resolve"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <value>",
	Short: "Resolve a free-typed value against an option catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name, _ := cmd.Flags().GetString("catalog")

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
			return eris.Errorf("resolve: unknown catalog %q (known: %s)", name, strings.Join(snap.Names(), ", "))
		}

		res := resolve.New(snap.Aliases()).Resolve(args[0], cat.Names())
		formatResolution(cmd.OutOrStdout(), args[0], res)
		if !res.OK() {
			return eris.Errorf("resolve: no match for %q", args[0])
		}
		return nil
	},
}

func formatResolution(out io.Writer, input string, res resolve.Result) {
	if res.OK() {
		_, _ = fmt.Fprintf(out, "%q -> %q (%s, confidence %d)\n", input, res.Matched, res.Strategy, res.Confidence)
		return
	}
	_, _ = fmt.Fprintf(out, "%q: no match\n", input)
	if res.NearMatch {
		_, _ = fmt.Fprintf(out, "closest option is %d edit(s) away\n", res.Distance)
	}
	if len(res.Suggestions) > 0 {
		_, _ = fmt.Fprintf(out, "did you mean: %s\n", strings.Join(res.Suggestions, ", "))
	}
}

func init() {
	resolveCmd.Flags().String("catalog", "countries", "catalog to resolve against")
	rootCmd.AddCommand(resolveCmd)
}
