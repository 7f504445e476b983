package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"metricgate/internal/config"
	"metricgate/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "metricgate",
		Short:         "Semantic query gateway for governed metrics",
		Long:          "metricgate answers structured metric intents with SQL built only from the governed metric catalog.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file (variables already set win)")

	rootCmd.AddCommand(
		newServeCmd(&envFile),
		newCheckCatalogCmd(),
		newExplainCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig reads the .env file and the environment, applies flag
// overrides, and validates the result.
func loadConfig(flags *pflag.FlagSet, envFile string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	applyFlagOverrides(flags, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func applyFlagOverrides(flags *pflag.FlagSet, cfg *config.Config) {
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("listen", &cfg.ListenAddr)
	str("catalog-dir", &cfg.CatalogDir)
	str("db-driver", &cfg.DBDriver)
	str("db-dsn", &cfg.DBDSN)
	str("generator", &cfg.Generator)
	str("audit-db", &cfg.AuditDBPath)
	str("log-level", &cfg.LogLevel)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "metricgate %s (%s)\n", version, commit)
		},
	}
}

func init() {
	metrics.BuildInfo.WithLabelValues(version, commit).Set(1)
}
