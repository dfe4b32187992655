// =============================================================================
// Stop & Go Invoice Batch - CSV Table Reader
// =============================================================================
//
// This module reads small delimited lookup tables, such as a station account
// list exported as CSV instead of XLSX. The result has the same shape as an
// XLSX sheet read by xlsxparser so the account loader can treat both alike.
//
// FEATURES:
//   - Delimiter detection (";" or ",") from the header line
//   - Header trimming, UTF-8 BOM removal
//   - Missing trailing cells become ""
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// utf8BOM is written by spreadsheet tools at the start of exported CSV files.
const utf8BOM = "\ufeff"

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData represents the parsed CSV file.
type CSVData struct {
	// Headers contains the trimmed column headers.
	Headers []string

	// Rows contains the data rows as maps of header -> value.
	Rows []map[string]string

	// SourceFile is the path to the source CSV file.
	SourceFile string

	// Delimiter is the field separator that was used.
	Delimiter rune
}

// Settings controls CSV parsing.
type Settings struct {
	// Delimiter is the field separator. Zero means detect from the header line.
	Delimiter rune
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns the parsed data.
//
// PARSING PROCESS:
//  1. Read the header line and detect the delimiter when none is set
//  2. Read all remaining records with a lenient field count
//  3. Convert each non-blank record to a map of header -> value
func Parse(filePath string, settings Settings) (*CSVData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := ParseReader(bufio.NewReader(file), settings)
	if err != nil {
		return nil, err
	}
	data.SourceFile = filePath
	return data, nil
}

// ParseReader parses CSV content from r.
func ParseReader(r io.Reader, settings Settings) (*CSVData, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	text := strings.TrimPrefix(string(content), utf8BOM)

	delimiter := settings.Delimiter
	if delimiter == 0 {
		delimiter = detectDelimiter(text)
	}

	csvReader := csv.NewReader(strings.NewReader(text))
	configureReader(csvReader, delimiter)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	data := &CSVData{
		Headers:   []string{},
		Rows:      []map[string]string{},
		Delimiter: delimiter,
	}
	if len(allRows) == 0 {
		return data, nil
	}

	for _, header := range allRows[0] {
		data.Headers = append(data.Headers, strings.TrimSpace(header))
	}

	for _, row := range allRows[1:] {
		if isRowEmpty(row) {
			continue
		}
		rowMap := make(map[string]string, len(data.Headers))
		for i, header := range data.Headers {
			if i < len(row) {
				rowMap[header] = row[i]
			} else {
				rowMap[header] = ""
			}
		}
		data.Rows = append(data.Rows, rowMap)
	}

	return data, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// configureReader applies the parser's reader settings.
func configureReader(reader *csv.Reader, delimiter rune) {
	reader.Comma = delimiter
	reader.LazyQuotes = true
	// Lookup exports often drop trailing empty cells.
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
}

// detectDelimiter picks ";" when the first line contains one, "," otherwise.
func detectDelimiter(text string) rune {
	firstLine := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		firstLine = text[:i]
	}
	if strings.Contains(firstLine, ";") {
		return ';'
	}
	return ','
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
