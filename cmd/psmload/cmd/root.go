// Package cmd provides CLI command implementations
package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/psmload/pkg/config"
	"github.com/ChrisMcGann/psmload/pkg/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "psmload",
	Short: "psmload - peptide identification loader",
	Long: `psmload normalizes peptide-spectrum matches, linear and cross-linked, from
tabular CSV results or mzIdentML files into a relational SQLite database.

Spectra are looked up in the referenced peak lists (MGF, MS2, mzML), peptides
and identifications are deduplicated, and cross-link halves are paired into a
single identification.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, _, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Logging.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			loaded.Logging.Format = logFormat
		}
		l, err := logging.New(logging.Options{
			Level:  loaded.Logging.Level,
			Format: loaded.Logging.Format,
			Output: cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		cfg, logger = loaded, l
		return nil
	},
}

// Execute runs the root command. Cancelling ctx stops a load at the next
// batch boundary.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(resolveCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./psmload.toml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto", "Log format: auto, console, json")
}
