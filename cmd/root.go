// =============================================================================
// Stop & Go Invoice Batch - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Called without a
// subcommand, the root command runs the batch once, the way the scheduled
// task invokes it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (stopgo)
//   ├── processCmd  (stopgo process)
//   ├── validateCmd (stopgo validate)
//   └── versionCmd  (stopgo version)
//
// EXIT STATUS:
//   0 when the run completed, 1 when it was aborted by a fatal error.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/stopgo-invoices/internal/config"
	"github.com/ginjaninja78/stopgo-invoices/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "stopgo",
	Short: "Stop & Go invoice batch - build the EXTRA01 and IVA0101 accounting exports",
	Long: `stopgo reads the newest Stop & Go supplier invoice workbook, looks up the
ledger account of every station and writes two semicolon-separated exports
for the accounting system:

  EXTRA01.csv   ledger lines, one invoice posting and one payment posting
                per invoice
  IVA0101.csv   one VAT register record per invoice number

Failures are mailed to the error recipients and a summary is mailed when the
run completes.

Example Usage:
  stopgo                        # Run the batch
  stopgo process --dry-run      # Build everything, write nothing
  stopgo validate               # Check the configuration and the folders
  stopgo --config ./prod.yaml   # Use a custom configuration file`,

	SilenceUsage:  true,
	SilenceErrors: true,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context(), false)
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. It is called by main.main().
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
		config.DefaultConfigFile,
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// loadConfig loads the configuration and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newLogger opens the run log file with a console mirror.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(logging.Options{
		Level:    cfg.LogLevel,
		FilePath: cfg.LogPath(),
		Console:  true,
	})
}
