package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealmatch/internal/catalog"
)

var migrateSkipSeed bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and seed option catalogs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, "migrate")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if migrateSkipSeed {
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		}

		snap := catalog.Default()
		if cfg.Catalog.Path != "" {
			if snap, err = catalog.LoadFile(cfg.Catalog.Path); err != nil {
				return eris.Wrap(err, "load catalog file")
			}
		}

		n, err := st.SeedCatalog(ctx, snap)
		if err != nil {
			return eris.Wrap(err, "seed catalogs")
		}
		zap.L().Info("migrate: catalogs seeded", zap.Int64("inserted", n))
		fmt.Fprintf(cmd.OutOrStdout(), "migrations applied, %d catalog options inserted\n", n)
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSkipSeed, "skip-seed", false, "apply migrations without seeding catalogs")
	rootCmd.AddCommand(migrateCmd)
}
