package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/lethe/pkg/cli"
	"mercator-hq/lethe/pkg/config"
)

var (
	// Global flags
	cfgFile string
	envFile string
	dryRun  bool
	format  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "lethe",
	Short: "Lethe - data-lifecycle retention engine",
	Long: `Lethe enforces per-category retention policies on personal data.

Expired records are anonymized, soft-deleted or hard-deleted according to
their category policy, and users are notified ahead of deletion where the
policy asks for it.

Configuration is read from an optional YAML file, a .env file and LETHE_*
environment variables, in that order of increasing precedence.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the mapped exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults and environment when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file loaded before environment overrides")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "simulate jobs without changing any data")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "o", string(cli.FormatText), "output format (text, json, csv)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// outputFormatter validates --format and returns its formatter.
func outputFormatter() (cli.Formatter, error) {
	f, err := cli.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return cli.NewFormatter(f), nil
}
