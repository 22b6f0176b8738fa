// =============================================================================
// Fiscal Report Transcriber - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands (like 'process', 'validate') are
// attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (transcriber)
//   ├── processCmd (transcriber process)
//   ├── validateCmd (transcriber validate)
//   └── versionCmd (transcriber version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Setting up logging before any subcommand runs
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ginjaninja78/fiscal-transcriber/internal/config"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// logger is built by the root command before any subcommand runs.
var logger = zap.NewNop()

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "transcriber",
	Short: "Fiscal Report Transcriber - Fill the blanks of accounting system exports",
	Long: `Fiscal Report Transcriber rewrites tax-apportionment reports exported by
accounting systems (CSV, XLS, XLSX or PDF) into a normalized spreadsheet.

For every report it:
  - Carries the "Percentual de recolhimento efetivo" of each section down to
    the item rows and totals below it
  - Joins the document code and product description into one identifier
  - Marks total rows

Every report layout is described by a YAML profile in the configs directory.

Example Usage:
  transcriber process                        # Process all files in the input directory
  transcriber process --file apuracao.csv    # Process a single file
  transcriber validate                       # Validate the profiles without processing`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger(os.Getenv("TRANSCRIBER_LOG_LEVEL"), verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// newLogger builds the production zap logger. verbose forces debug level;
// otherwise level is used, and an empty level means info.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch {
	case verbose:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case level != "":
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}

	return cfg.Build()
}

// applyConfigLogLevel rebuilds the logger from the level of the main
// configuration unless --verbose already selected debug.
func applyConfigLogLevel(mainConfig *config.MainConfig) error {
	if verbose {
		return nil
	}
	l, err := newLogger(mainConfig.LogLevel, false)
	if err != nil {
		return fmt.Errorf("invalid log_level %q: %w", mainConfig.LogLevel, err)
	}
	_ = logger.Sync()
	logger = l
	return nil
}
