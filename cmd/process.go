// =============================================================================
// Stop & Go Invoice Batch - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs the batch once.
//
// COMMAND USAGE:
//   stopgo process [flags]
//
// FLAGS:
//   --dry-run : Build the exports without writing them
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/stopgo-invoices/internal/converter"
	"github.com/ginjaninja78/stopgo-invoices/internal/logging"
	"github.com/ginjaninja78/stopgo-invoices/internal/notify"
)

// dryRun builds the exports without writing them.
var dryRun bool

// errRunFailed is returned when the batch ended with a fatal error. The error
// itself has already been logged and mailed.
var errRunFailed = errors.New("run failed, see the log for details")

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the invoice batch",
	Long: `The process command runs the batch once:

  1. Load the station account lookup
  2. Pick the newest workbook in the invoice folder
  3. Build and write EXTRA01.csv
  4. Build and write IVA0101.csv from the unique invoice numbers
  5. Log the summary and mail the outcome

With --dry-run every step runs but no export or summary file is written.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context(), dryRun)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Build the exports without writing any file",
	)
}

// runProcess runs the batch and maps its outcome to the command error.
func runProcess(ctx context.Context, dry bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return configFailure(consoleLogger(), err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to start logging: %w", err)
	}
	defer logger.Close()

	runID := uuid.NewString()
	runLogger := logger.With("run_id", runID)
	runner := converter.New(cfg, converter.Options{
		DryRun:   dry,
		Logger:   runLogger,
		Notifier: notify.New(cfg.Mail, runLogger),
		RunID:    runID,
	})

	result := runner.Run(ctx)
	if result.Error != nil {
		return errRunFailed
	}
	return nil
}

// consoleLogger logs to stdout only, for failures before the log file is
// known.
func consoleLogger() *logging.Logger {
	logger, err := logging.New(logging.Options{Level: "info", Console: true})
	if err != nil {
		return logging.Nop()
	}
	return logger
}

// configFailure logs a configuration error and returns it unchanged.
func configFailure(logger converter.Logger, err error) error {
	logger.Error("[Stop&Go] Configuration error: %v", err)
	return err
}
