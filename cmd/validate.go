package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealmatch/internal/importer"
	"github.com/sells-group/dealmatch/internal/profile"
	"github.com/sells-group/dealmatch/internal/rowsource"
	"github.com/sells-group/dealmatch/internal/store"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a CSV or XLSX import file",
	Long:  "Resolves every dropdown and list cell against the option catalogs, checks reference codes, and reports per-row errors with suggestions.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("file")
		entity, _ := cmd.Flags().GetString("entity")
		format, _ := cmd.Flags().GetString("format")
		offline, _ := cmd.Flags().GetBool("offline")

		kind, err := profile.ParseKind(entity)
		if err != nil {
			return err
		}
		if format != "table" && format != "json" {
			return eris.Errorf("validate: unknown format %q (table|json)", format)
		}

		rows, err := rowsource.ReadFile(path, importer.Columns(kind))
		if err != nil {
			return eris.Wrap(err, "validate: read rows")
		}

		var st store.Store
		if !offline {
			if st, err = tryStore(ctx); err != nil {
				return err
			}
		}
		var codes importer.CodeChecker
		if st != nil {
			defer st.Close() //nolint:errcheck
			codes = st
		}

		snap, err := loadSnapshot(ctx, st)
		if err != nil {
			return err
		}
		v, err := importer.NewValidator(snap, codes)
		if err != nil {
			return err
		}

		res := v.ValidateAll(ctx, rows, kind)
		out := cmd.OutOrStdout()
		if format == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return eris.Wrap(err, "validate: encode result")
			}
		} else {
			formatValidation(out, res)
		}

		if res.Summary.Errors > 0 {
			return eris.Errorf("validate: %d of %d rows have errors", res.Summary.Errors, res.Summary.Total)
		}
		return nil
	},
}

// formatValidation writes one line per field error followed by the summary.
func formatValidation(out io.Writer, res importer.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if res.Summary.Errors > 0 {
		_, _ = fmt.Fprintln(w, "ROW\tFIELD\tVALUE\tMESSAGE\tSUGGESTIONS")
		_, _ = fmt.Fprintln(w, "---\t-----\t-----\t-------\t-----------")
	}
	for _, row := range res.Rows {
		for _, fe := range row.Errors {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				row.RowIndex,
				fe.Label,
				truncate(fe.Value, 30),
				fe.Message,
				strings.Join(fe.Suggestions, ", "),
			)
		}
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%d rows: %d valid, %d with errors\n",
		res.Summary.Total, res.Summary.Valid, res.Summary.Errors)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	validateCmd.Flags().String("file", "", "CSV or XLSX file to validate (required)")
	validateCmd.Flags().String("entity", "", "entity type: investor|target (required)")
	validateCmd.Flags().String("format", "table", "output format: table|json")
	validateCmd.Flags().Bool("offline", false, "skip the store; use built-in or file catalogs and no persisted-duplicate check")
	_ = validateCmd.MarkFlagRequired("file")
	_ = validateCmd.MarkFlagRequired("entity")
	rootCmd.AddCommand(validateCmd)
}
