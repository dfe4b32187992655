// =============================================================================
// Stop & Go Invoice Batch - Batch Runner
// =============================================================================
//
// This module orchestrates one batch run, from the station lookup to the two
// accounting exports.
//
// PIPELINE:
//   1. Load the station account lookup (degrades to an empty map)
//   2. Discover and load the newest invoice workbook
//   3. Build the EXTRA01 ledger lines
//   4. Write EXTRA01.csv
//   5. Build the IVA0101 tax records from the unique invoices
//   6. Write IVA0101.csv
//   7. Log the run summary, write the summary file, notify
//
// ERROR HANDLING:
//   - Steps 2 to 4 abort the run: the error is logged and mailed
//   - Steps 5 and 6 fail alone: logged and mailed, the summary is still emitted
//   - A panic anywhere is recovered, logged with its stack and mailed
//   Run never panics; the outcome is carried by Result.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/stopgo-invoices/internal/accounts"
	"github.com/ginjaninja78/stopgo-invoices/internal/config"
	"github.com/ginjaninja78/stopgo-invoices/internal/csvwriter"
	"github.com/ginjaninja78/stopgo-invoices/internal/invoices"
	"github.com/ginjaninja78/stopgo-invoices/internal/ledger"
	"github.com/ginjaninja78/stopgo-invoices/internal/logging"
	"github.com/ginjaninja78/stopgo-invoices/internal/notify"
	"github.com/ginjaninja78/stopgo-invoices/internal/tax"
	"github.com/ginjaninja78/stopgo-invoices/internal/types"
	"github.com/ginjaninja78/stopgo-invoices/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of a batch run.
type Result struct {
	// RunID identifies the run in logs, mails and the summary file.
	RunID string

	// InputFile is the invoice workbook that was processed.
	InputFile string

	// LedgerFile and TaxFile are the written exports. Empty when the export
	// was not written.
	LedgerFile string
	TaxFile    string

	// SummaryFile is the run summary written into the log folder.
	SummaryFile string

	// Success indicates whether the run finished without error.
	Success bool

	// Error contains the first fatal error of the run.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the run.
type ProcessingStats struct {
	// AccountsLoaded is the number of stations in the lookup.
	AccountsLoaded int

	// RowsRead is the number of non-empty invoice rows.
	RowsRead int

	// Counters are the invoice, ledger and tax tallies.
	Counters types.RunCounters

	// ProcessingTime is the time taken by the run.
	ProcessingTime time.Duration
}

// =============================================================================
// RUNNER STRUCTURE
// =============================================================================

// Logger is an interface for logging.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Options configures a Runner.
type Options struct {
	// DryRun builds everything but writes no export.
	DryRun bool

	// Logger defaults to a no-op logger.
	Logger Logger

	// Notifier defaults to one built from the mail settings.
	Notifier notify.Notifier

	// RunID defaults to a random UUID.
	RunID string
}

// Runner executes the batch.
type Runner struct {
	cfg      *config.Config
	files    *utils.FileManager
	logger   Logger
	notifier notify.Notifier
	dryRun   bool
	runID    string
	started  time.Time
}

// New creates a Runner for cfg.
func New(cfg *config.Config, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.New(cfg.Mail, logger)
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	return &Runner{
		cfg: cfg,
		files: utils.NewFileManager(cfg.BaseDir, cfg.InvoiceDir, cfg.LookupFile,
			cfg.LogDirPath(), cfg.OutputDirs),
		logger:   logger,
		notifier: notifier,
		dryRun:   opts.DryRun,
		runID:    runID,
	}
}

// RunID returns the identifier of the run.
func (r *Runner) RunID() string {
	return r.runID
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the pipeline once.
func (r *Runner) Run(ctx context.Context) (result Result) {
	r.started = time.Now()
	result.RunID = r.runID

	defer func() {
		if p := recover(); p != nil {
			stack := string(debug.Stack())
			err := fmt.Errorf("unexpected failure: %v", p)
			r.logger.Error("[Stop&Go] Error in main process: %v\n%s", err, stack)
			r.notifyFailure(ctx, err, stack)
			result.Error = err
			result.Success = false
		}
		result.Stats.ProcessingTime = time.Since(r.started)
	}()

	r.logger.Info("--------------- START STOP & GO INVOICE PROCESS (run %s) ---------------", r.runID)
	r.logger.Info("Base folder: %s", r.cfg.BaseDir)
	r.logger.Info("Station lookup: %s", r.files.LookupPath)
	r.logger.Info("Output folder: %s", r.files.OutputDir())

	// =========================================================================
	// STEP 1: STATION ACCOUNTS
	// =========================================================================

	stations := r.loadAccounts(ctx)
	result.Stats.AccountsLoaded = stations.Len()

	// =========================================================================
	// STEP 2: INVOICE SOURCE
	// =========================================================================

	if err := ctx.Err(); err != nil {
		return r.abort(ctx, result, fmt.Errorf("run cancelled: %w", err))
	}

	inputPath, err := invoices.Discover(r.files.InvoiceDir)
	if err != nil {
		return r.abort(ctx, result, err)
	}
	result.InputFile = inputPath
	if modTime, err := utils.GetFileModTime(inputPath); err == nil {
		r.logger.Info("Invoice workbook detected: %s (modified %s)",
			inputPath, modTime.Format("2006-01-02 15:04:05"))
	}

	records, err := invoices.Load(inputPath)
	if err != nil {
		return r.abort(ctx, result, err)
	}
	result.Stats.RowsRead = len(records)
	r.logger.Info("Rows read from workbook: %d", len(records))

	// =========================================================================
	// STEP 3: LEDGER LINES
	// =========================================================================

	ledgerBuilder := &ledger.Builder{
		Vendor:         r.cfg.VendorInfo(),
		VATAccount:     r.cfg.Accounts.VAT,
		BankAccount:    r.cfg.Accounts.Bank,
		MissingAccount: r.cfg.Accounts.Missing,
		Logger:         r.logger,
	}
	ledgerResult := ledgerBuilder.Build(records, stations)
	result.Stats.Counters = ledgerResult.Counters

	if len(ledgerResult.Lines) == 0 {
		r.logger.Warn("No lines generated for %s, nothing is exported", csvwriter.LedgerFileName)
		r.finish(ctx, &result)
		return result
	}

	// =========================================================================
	// STEP 4: WRITE EXTRA01
	// =========================================================================

	if err := ctx.Err(); err != nil {
		return r.abort(ctx, result, fmt.Errorf("run cancelled: %w", err))
	}

	ledgerPath, err := r.export(csvwriter.LedgerFileName, ledgerResult.Records(), csvwriter.LedgerColumns)
	if err != nil {
		return r.abort(ctx, result, err)
	}
	result.LedgerFile = ledgerPath

	// =========================================================================
	// STEPS 5-6: IVA0101
	// =========================================================================

	taxPath, err := r.runTaxStage(ledgerResult.Unique, &result.Stats.Counters)
	if err != nil {
		r.logger.Error("[Stop&Go] Error in VAT stage: %v", err)
		r.notifyFailure(ctx, err, "")
		result.Error = err
	}
	result.TaxFile = taxPath

	// =========================================================================
	// STEP 7: SUMMARY
	// =========================================================================

	r.finish(ctx, &result)
	return result
}

// =============================================================================
// STAGES
// =============================================================================

// loadAccounts loads the station lookup. Failures never stop the run.
func (r *Runner) loadAccounts(ctx context.Context) types.StationAccountMap {
	stations, err := accounts.Load(r.files.LookupPath)
	switch {
	case err == nil:
		r.logger.Info("Station accounts loaded: %d", stations.Len())
	case accounts.IsDegraded(err):
		r.logger.Warn("Station lookup unavailable: %v", err)
	default:
		r.logger.Error("[Stop&Go] Error reading station accounts: %v", err)
		r.notifyFailure(ctx, fmt.Errorf("station accounts: %w", err), "")
	}

	if stations.Len() == 0 {
		r.logger.Warn("No station accounts loaded, base lines will post to %q", r.cfg.Accounts.Missing)
	}
	return stations
}

// runTaxStage builds and writes the tax export.
func (r *Runner) runTaxStage(unique *types.UniqueInvoices, counters *types.RunCounters) (path string, err error) {
	// The tax stage fails alone, a panic here must not lose the ledger result.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("unexpected failure in VAT stage: %v\n%s", p, debug.Stack())
		}
	}()

	r.logger.Info("Generating %s", csvwriter.TaxFileName)

	taxBuilder := &tax.Builder{
		Vendor:     r.cfg.VendorInfo(),
		VATAccount: r.cfg.Accounts.VAT,
		VATRate:    r.cfg.VATRate,
	}
	taxResult := taxBuilder.Build(unique)
	counters.TaxRecords = len(taxResult.Records)
	counters.TaxSkippedEmpty = taxResult.SkippedEmpty

	if len(taxResult.Records) == 0 {
		r.logger.Warn("No records generated for %s, nothing is exported", csvwriter.TaxFileName)
		return "", nil
	}

	path, err = r.export(csvwriter.TaxFileName, taxResult.Rows(), csvwriter.TaxColumns)
	if err != nil {
		return "", err
	}
	r.logger.Info("%s omitted with empty amounts: %d", csvwriter.TaxFileName, taxResult.SkippedEmpty)
	return path, nil
}

// export writes one export file into the output folder.
func (r *Runner) export(name string, records [][]string, columns int) (string, error) {
	path := filepath.Join(r.files.OutputDir(), name)

	if r.dryRun {
		r.logger.Info("Dry run: %s not written (%d records)", path, len(records))
		return "", nil
	}

	r.logger.Info("Exporting %s to: %s", name, path)
	opts := csvwriter.DefaultOptions()
	opts.UseCRLF = r.cfg.UseCRLF
	opts.Columns = columns
	if err := csvwriter.WriteFile(path, records, opts); err != nil {
		return "", fmt.Errorf("failed to export %s: %w", name, err)
	}
	r.logger.Info("%s generated. Lines: %d", name, len(records))
	return path, nil
}

// abort ends the run with a fatal error.
func (r *Runner) abort(ctx context.Context, result Result, err error) Result {
	r.logger.Error("[Stop&Go] Run aborted: %v", err)
	r.notifyFailure(ctx, err, describe(err))
	result.Error = err
	result.Success = false
	r.logSummary(&result)
	return result
}

// finish emits the summary and the success notification.
func (r *Runner) finish(ctx context.Context, result *Result) {
	result.Success = result.Error == nil
	summary := r.logSummary(result)

	if !result.Success {
		return
	}
	r.logger.Info("--------------- END STOP & GO INVOICE PROCESS ---------------")
	if err := r.notifier.Send(ctx, r.cfg.Mail.SuccessRecipients, notify.SuccessSubject, notify.SuccessBody(summary)); err != nil {
		r.logger.Warn("Success notification failed: %v", err)
	}
}

// logSummary logs the summary block and writes the summary file.
func (r *Runner) logSummary(result *Result) string {
	var errs []string
	if result.Error != nil {
		errs = append(errs, result.Error.Error())
	}
	summary := utils.RunSummary{
		RunID:      r.runID,
		StartTime:  r.started,
		EndTime:    time.Now(),
		InputFile:  result.InputFile,
		LedgerFile: result.LedgerFile,
		TaxFile:    result.TaxFile,
		Accounts:   result.Stats.AccountsLoaded,
		Rows:       result.Stats.RowsRead,
		Counters:   result.Stats.Counters,
		DryRun:     r.dryRun,
		Errors:     errs,
	}
	text := utils.FormatSummary(summary)

	r.logger.Info("------------------ STOP&GO SUMMARY ------------------")
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		r.logger.Info("%s", line)
	}
	r.logger.Info("-----------------------------------------------------")

	if r.cfg.SummaryEnabled() && !r.dryRun {
		if err := r.files.EnsureDirectories(); err != nil {
			r.logger.Warn("Summary file not written: %v", err)
			return text
		}
		path, err := utils.WriteSummaryLog(summary, r.files.LogDir)
		if err != nil {
			r.logger.Warn("Summary file not written: %v", err)
			return text
		}
		result.SummaryFile = path
	}
	return text
}

// notifyFailure mails err to the error recipients. A failed send is logged.
func (r *Runner) notifyFailure(ctx context.Context, err error, detail string) {
	body := notify.ErrorBody(r.runID, err, detail)
	if sendErr := r.notifier.Send(ctx, r.cfg.Mail.ErrorRecipients, notify.ErrorSubject, body); sendErr != nil {
		r.logger.Warn("Error notification failed: %v", sendErr)
	}
}

// describe adds a hint for the expected fatal errors.
func describe(err error) string {
	switch {
	case errors.Is(err, invoices.ErrFolderMissing):
		return "The invoice folder does not exist."
	case errors.Is(err, invoices.ErrNoInvoiceFile):
		return "No spreadsheet was found in the invoice folder."
	default:
		return ""
	}
}
