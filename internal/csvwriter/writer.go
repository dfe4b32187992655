// =============================================================================
// Stop & Go Invoice Batch - Export Writer
// =============================================================================
//
// This module writes the EXTRA01 and IVA0101 exports consumed by the
// accounting software.
//
// FORMAT:
//   - ";" delimited, no header row, no index column
//   - Fields quoted only when they contain the delimiter, quotes or newlines
//   - Records end with "\n" unless CRLF is requested
//
// WRITE STRATEGY:
//   The file is written to a temporary file in the target folder and renamed
//   over the target, so a rerun replaces the previous export completely and a
//   failed write leaves the previous export untouched.
//
// =============================================================================

package csvwriter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ginjaninja78/stopgo-invoices/internal/validation"
)

// Export file names.
const (
	LedgerFileName = "EXTRA01.csv"
	TaxFileName    = "IVA0101.csv"
)

// Column counts of the exports.
const (
	LedgerColumns = 16
	TaxColumns    = 25
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options controls how records are rendered.
type Options struct {
	// Delimiter is the field separator.
	// Default: ';'
	Delimiter rune

	// UseCRLF ends records with "\r\n".
	UseCRLF bool

	// Columns, when positive, is the column count every record must have.
	Columns int
}

// DefaultOptions returns the options of both exports.
func DefaultOptions() Options {
	return Options{Delimiter: ';'}
}

// =============================================================================
// GENERATION
// =============================================================================

// Generate renders records to bytes.
func Generate(records [][]string, opts Options) ([]byte, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ';'
	}
	if opts.Columns > 0 {
		if verr := validation.CheckRecordWidth("export", records, opts.Columns); verr != nil {
			return nil, verr
		}
	}

	var buffer bytes.Buffer
	w := csv.NewWriter(&buffer)
	w.Comma = opts.Delimiter
	w.UseCRLF = opts.UseCRLF

	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("failed to render records: %w", err)
	}
	return buffer.Bytes(), nil
}

// WriteFile renders records and replaces the file at path with them.
func WriteFile(path string, records [][]string, opts Options) error {
	data, err := Generate(records, opts)
	if err != nil {
		return fmt.Errorf("failed to generate %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
