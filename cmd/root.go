package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealmatch/internal/config"
)

var (
	cfg *config.Config

	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "dealmatch",
	Short: "Investor/target matching and import validation",
	Long: `Resolves free-typed values against option catalogs, validates bulk
imports, and scores investor/target compatibility.

Settings come from --config (default ./config.yaml) and DEALMATCH_* variables.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// setup loads configuration and installs the global logger before any
// subcommand runs.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.LoadFrom(configPath)
	if err != nil {
		return eris.Wrap(err, "load config")
	}
	if cmd.Flags().Changed("log-level") {
		c.Log.Level = logLevel
	}
	cfg = c

	if err := config.InitLogger(cfg.Log); err != nil {
		return eris.Wrap(err, "init logger")
	}
	zap.L().Debug("config loaded", zap.String("command", cmd.Name()), zap.String("file", configPath))
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
