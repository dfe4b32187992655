// =============================================================================
// Stop & Go Invoice Batch - Main Entry Point
// =============================================================================
//
// USAGE:
//   stopgo                - Run the batch
//   stopgo process        - Run the batch (--dry-run to write nothing)
//   stopgo validate       - Check the configuration and the folders
//   stopgo version        - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Batch logic (lookup, invoices, ledger, tax, exports, mail)
//   - pkg/       : Shared file and summary utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/stopgo-invoices/cmd"
)

func main() {
	cmd.Execute()
}
