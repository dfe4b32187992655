// =============================================================================
// Stop & Go Invoice Batch - File Manager Utility
// =============================================================================
//
// This module provides the file plumbing around a batch run:
//   - Working folder layout (invoice folder, auxiliary folder, log folder)
//   - Latest-file discovery by modification time
//   - Output directory resolution
//   - File naming and run summary files
//
// OUTPUT STRATEGY:
//   - Exports go to the first existing accounting folder candidate
//   - When none exists they go to the base folder itself
//   - Nothing is archived or moved; a rerun overwrites the exports
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/stopgo-invoices/internal/types"
)

// lockFilePrefix marks temporary files created by open spreadsheet editors.
const lockFilePrefix = "~$"

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager knows the folder layout of a batch run.
type FileManager struct {
	// BaseDir is the working folder of the batch.
	BaseDir string

	// InvoiceDir is the folder holding the invoice workbooks.
	InvoiceDir string

	// LookupPath is the station account lookup file.
	LookupPath string

	// LogDir is the folder for the log and summary files.
	LogDir string

	// OutputCandidates are folder names under BaseDir tried in order for the
	// exports.
	OutputCandidates []string
}

// NewFileManager creates a FileManager with every folder relative to baseDir.
func NewFileManager(baseDir, invoiceDir, lookupPath, logDir string, outputCandidates []string) *FileManager {
	return &FileManager{
		BaseDir:          baseDir,
		InvoiceDir:       joinIfRelative(baseDir, invoiceDir),
		LookupPath:       joinIfRelative(baseDir, lookupPath),
		LogDir:           joinIfRelative(baseDir, logDir),
		OutputCandidates: outputCandidates,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the log folder if it does not exist. Input and
// output folders are owned by the users of the batch and are never created.
func (fm *FileManager) EnsureDirectories() error {
	if err := os.MkdirAll(fm.LogDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fm.LogDir, err)
	}
	return nil
}

// OutputDir returns the folder the exports are written to.
func (fm *FileManager) OutputDir() string {
	return ResolveOutputDir(fm.BaseDir, fm.OutputCandidates)
}

// ResolveOutputDir returns the first candidate under base that is an existing
// directory, or base itself.
func ResolveOutputDir(base string, candidates []string) string {
	for _, candidate := range candidates {
		dir := filepath.Join(base, candidate)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return base
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// LatestFile returns the most recently modified regular file directly under
// dir whose extension is in extensions (case-insensitive). Editor lock files
// are skipped. An empty path means no file matched.
func LatestFile(dir string, extensions []string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory: %w", err)
	}

	var (
		latest     string
		latestTime time.Time
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, lockFilePrefix) {
			continue
		}
		if !hasExtension(name, extensions) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// The file vanished between listing and stat.
			continue
		}
		if latest == "" || info.ModTime().After(latestTime) {
			latest = filepath.Join(dir, name)
			latestTime = info.ModTime()
		}
	}

	return latest, nil
}

// =============================================================================
// FILE NAMING
// =============================================================================

// GenerateFileName builds a file name from a format.
//
// Placeholders:
//
//	{uuid}      - A random UUID
//	{timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//	{date}      - Current date (YYYYMMDD)
//	{time}      - Current time (HHMMSS)
//	{key}       - Any key of params
//
// EXAMPLE:
//
//	format: "summary_{timestamp}_{run}.txt"
//	params: {"run": "1b4e28ba"}
//	output: "summary_20240115_143022_1b4e28ba.txt"
func GenerateFileName(format string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary contains summary information about a batch run.
type RunSummary struct {
	RunID      string
	StartTime  time.Time
	EndTime    time.Time
	InputFile  string
	LedgerFile string
	TaxFile    string
	Accounts   int
	Rows       int
	Counters   types.RunCounters
	DryRun     bool
	Errors     []string
}

// FormatSummary renders the summary block written to the log and the
// summary file.
func FormatSummary(summary RunSummary) string {
	var b strings.Builder

	c := summary.Counters
	fmt.Fprintf(&b, "Run:                              %s\n", summary.RunID)
	fmt.Fprintf(&b, "Input file:                       %s\n", orNone(summary.InputFile))
	fmt.Fprintf(&b, "Station accounts loaded:          %d\n", summary.Accounts)
	fmt.Fprintf(&b, "Rows read:                        %d\n", summary.Rows)
	fmt.Fprintf(&b, "Valid invoices processed:         %d\n", c.Valid)
	fmt.Fprintf(&b, "Invoices with payment:            %d\n", c.WithPayment)
	fmt.Fprintf(&b, "Invoices without due date:        %d\n", c.WithoutDueDate)
	fmt.Fprintf(&b, "Invoices without station account: %d\n", c.WithoutStationAccount)
	fmt.Fprintf(&b, "Skipped with empty amounts:       %d\n", c.SkippedEmpty)
	fmt.Fprintf(&b, "Duplicate invoice numbers:        %d\n", c.DuplicateNumbers)
	fmt.Fprintf(&b, "EXTRA01 lines:                    %d\n", c.LedgerLines)
	fmt.Fprintf(&b, "IVA0101 records:                  %d\n", c.TaxRecords)
	fmt.Fprintf(&b, "IVA0101 skipped empty:            %d\n", c.TaxSkippedEmpty)
	fmt.Fprintf(&b, "Ledger file:                      %s\n", orNone(summary.LedgerFile))
	fmt.Fprintf(&b, "Tax file:                         %s\n", orNone(summary.TaxFile))
	if summary.DryRun {
		b.WriteString("Dry run:                          no files written\n")
	}
	for _, msg := range summary.Errors {
		fmt.Fprintf(&b, "Error: %s\n", msg)
	}
	return b.String()
}

// WriteSummaryLog writes a run summary file into dir.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary RunSummary, dir string) (string, error) {
	name := GenerateFileName("summary_{timestamp}_{run}.txt", map[string]string{
		"run": shortID(summary.RunID),
	})
	summaryPath := filepath.Join(dir, name)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "Stop & Go Invoice Batch - Run Summary\n"+
		"================================================================================\n\n"+
		"Start Time: %s\n"+
		"End Time:   %s\n"+
		"Duration:   %s\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String())
	writer.WriteString(FormatSummary(summary))
	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetFileModTime returns the modification time of a file.
func GetFileModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func hasExtension(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, accepted := range extensions {
		if ext == strings.ToLower(accepted) {
			return true
		}
	}
	return false
}

func joinIfRelative(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// shortID returns the first block of a UUID.
func shortID(id string) string {
	if i := strings.Index(id, "-"); i > 0 {
		return id[:i]
	}
	if id == "" {
		return "run"
	}
	return id
}
