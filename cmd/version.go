// =============================================================================
// Stop & Go Invoice Batch - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   stopgo version
//
// OUTPUT:
//   stopgo 1.2.0 (built 2024-05-02, go1.24.0 linux/amd64)
//   exports: EXTRA01.csv (16 columns), IVA0101.csv (25 columns)
//
// Version and BuildDate are set at build time:
//   go build -ldflags "-X 'github.com/ginjaninja78/stopgo-invoices/cmd.Version=1.2.0' \
//     -X 'github.com/ginjaninja78/stopgo-invoices/cmd.BuildDate=2024-05-02'"
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/stopgo-invoices/internal/csvwriter"
)

var (
	// Version is the application version.
	Version = "dev"

	// BuildDate is the date the binary was built.
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the version and the export formats",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "stopgo %s (built %s, %s %s/%s)\n",
			Version, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "exports: %s (%d columns), %s (%d columns)\n",
			csvwriter.LedgerFileName, csvwriter.LedgerColumns,
			csvwriter.TaxFileName, csvwriter.TaxColumns)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
