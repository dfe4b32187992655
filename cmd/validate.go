// =============================================================================
// Stop & Go Invoice Batch - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which checks the configuration
// and the folder layout without building any export.
//
// COMMAND USAGE:
//   stopgo validate
//
// CHECKS:
//   - The configuration loads and validates
//   - The invoice folder exists and holds a workbook
//   - The station lookup exists and loads
//   - The output folder the exports would be written to
//   - Mail credentials and recipients
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/stopgo-invoices/internal/accounts"
	"github.com/ginjaninja78/stopgo-invoices/internal/invoices"
	"github.com/ginjaninja78/stopgo-invoices/pkg/utils"
)

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and the working folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files := utils.NewFileManager(cfg.BaseDir, cfg.InvoiceDir, cfg.LookupFile,
		cfg.LogDirPath(), cfg.OutputDirs)
	out := os.Stdout
	failed := false

	fmt.Fprintln(out, "=== Stop & Go Invoice Batch ===")
	fmt.Fprintf(out, "Base folder:    %s\n", files.BaseDir)

	if path, err := invoices.Discover(files.InvoiceDir); err != nil {
		failed = true
		fmt.Fprintf(out, "  ✗ invoices:   %v\n", err)
	} else {
		fmt.Fprintf(out, "  ✓ invoices:   %s\n", path)
	}

	if !utils.FileExists(files.LookupPath) {
		fmt.Fprintf(out, "  ! lookup:     %s not found, every station will post to %q\n",
			files.LookupPath, cfg.Accounts.Missing)
	} else if m, err := accounts.Load(files.LookupPath); err != nil {
		fmt.Fprintf(out, "  ! lookup:     %v\n", err)
	} else {
		fmt.Fprintf(out, "  ✓ lookup:     %d station account(s)\n", m.Len())
	}

	fmt.Fprintf(out, "  ✓ output:     %s\n", files.OutputDir())
	fmt.Fprintf(out, "  ✓ log file:   %s\n", cfg.LogPath())

	if cfg.Mail.HasCredentials() {
		fmt.Fprintf(out, "  ✓ mail:       %s:%d as %s\n", cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.From)
	} else {
		fmt.Fprintln(out, "  ! mail:       disabled or no credentials, notifications are logged only")
	}
	if len(cfg.Mail.ErrorRecipients) == 0 {
		fmt.Fprintln(out, "  ! mail:       no error recipients configured")
	}

	if failed {
		return fmt.Errorf("validation failed")
	}
	fmt.Fprintln(out, "Configuration OK")
	return nil
}
