// =============================================================================
// Stop & Go Invoice Batch - XLSX Sheet Reader
// =============================================================================
//
// This module reads a worksheet into a header-keyed table. It is used for both
// spreadsheets the batch consumes:
//   - the supplier invoice workbook ("Excel Facturas Stop & Go")
//   - the station account lookup ("Excel Auxiliares/CuentasEstaciones.xlsx")
//
// SHEET STRUCTURE:
//   Row 1 holds the column headers, data starts on row 2.
//
//   | Fecha      | Nfactura | Vencimiento | Concepto | Estacion | Base   | Iva   | TotalFactura |
//   |------------|----------|-------------|----------|----------|--------|-------|--------------|
//   | 10/01/2024 | 500      | 10/02/2024  | Gasoleo  | 12       | 100,00 | 21,00 | 121,00       |
//
// Every cell is returned as text. Missing cells become "" and headers are
// trimmed. Interpretation of the text is left to the normalizer.
//
// FORMATS:
//   - .xlsx / .xlsm: excelize
//   - .xls (BIFF8):  xlsReader, first sheet only
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// timestampLayout matches the textual form produced for date serials.
const timestampLayout = "2006-01-02 15:04:05"

// maxExcelSerial is the serial of 9999-12-31, the last date Excel can hold.
const maxExcelSerial = 2958465

// =============================================================================
// TABLE STRUCTURE
// =============================================================================

// Table is a worksheet read as text.
type Table struct {
	// SourceFile is the path of the workbook.
	SourceFile string

	// SheetName is the worksheet that was read.
	SheetName string

	// Headers are the trimmed column headers in sheet order.
	Headers []string

	// Rows holds one header -> cell map per data row.
	Rows []map[string]string

	// RowNumbers holds the 1-based sheet row of each entry in Rows.
	RowNumbers []int
}

// Options controls how a sheet is read.
type Options struct {
	// Sheet is the worksheet name. Empty selects the first sheet.
	Sheet string

	// HeaderRow is the 0-based row holding the headers.
	// Default: 0 (Row 1)
	HeaderRow int

	// RawCellValue returns stored values instead of display-formatted ones.
	// Raw values keep numbers unformatted ("1234.5" rather than "1,234.50"),
	// which is what the amount normalizer expects.
	RawCellValue bool

	// DateColumns lists headers whose numeric cells are date serials. They are
	// rendered as "yyyy-mm-dd hh:mm:ss" text.
	DateColumns []string
}

// DefaultOptions returns the options used for the invoice and lookup sheets.
func DefaultOptions() Options {
	return Options{
		HeaderRow:    0,
		RawCellValue: true,
	}
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads the first sheet of a workbook with the default options.
func Parse(path string) (*Table, error) {
	return ParseWithOptions(path, DefaultOptions())
}

// ParseWithOptions reads one sheet of a workbook. .xls files are read with
// the legacy reader, everything else with excelize.
//
// RETURNS:
//   - The table with headers trimmed and missing cells set to "".
//   - An error if the workbook cannot be opened or the sheet read.
func ParseWithOptions(path string, opts Options) (*Table, error) {
	var (
		rows      [][]string
		sheetName string
		err       error
	)
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		rows, sheetName, err = readLegacyRows(path, opts)
	} else {
		rows, sheetName, err = readRows(path, opts)
	}
	if err != nil {
		return nil, err
	}

	table := &Table{
		SourceFile: path,
		SheetName:  sheetName,
		Headers:    []string{},
		Rows:       []map[string]string{},
	}

	if len(rows) <= opts.HeaderRow {
		return table, nil
	}

	table.Headers = cleanHeaders(rows[opts.HeaderRow])

	dateColumns := make(map[string]bool, len(opts.DateColumns))
	for _, name := range opts.DateColumns {
		dateColumns[name] = true
	}

	for i := opts.HeaderRow + 1; i < len(rows); i++ {
		row := rows[i]

		// Skip empty rows.
		if isRowEmpty(row) {
			continue
		}

		rowMap := make(map[string]string, len(table.Headers))
		for col, header := range table.Headers {
			value := ""
			if col < len(row) {
				value = row[col]
			}
			if dateColumns[header] {
				value = SerialToTimestamp(value)
			}
			rowMap[header] = value
		}

		table.Rows = append(table.Rows, rowMap)
		table.RowNumbers = append(table.RowNumbers, i+1)
	}

	return table, nil
}

// readRows reads the sheet rows of an XLSX workbook.
func readRows(path string, opts Options) ([][]string, string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := opts.Sheet
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	if sheetName == "" {
		return nil, "", fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: opts.RawCellValue})
	if err != nil {
		return nil, "", fmt.Errorf("failed to read rows of sheet %q: %w", sheetName, err)
	}
	return rows, sheetName, nil
}

// readLegacyRows reads the first sheet of a BIFF8 .xls workbook. Cells are
// taken as their stored text.
func readLegacyRows(path string, opts Options) ([][]string, string, error) {
	if opts.Sheet != "" {
		return nil, "", fmt.Errorf("sheet selection is not supported for .xls workbooks")
	}

	workbook, err := xls.OpenFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open workbook: %w", err)
	}
	if len(workbook.GetSheets()) == 0 {
		return nil, "", fmt.Errorf("workbook has no sheets")
	}

	sheet, err := workbook.GetSheet(0)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read first sheet: %w", err)
	}

	var rows [][]string
	for _, row := range sheet.GetRows() {
		var cells []string
		for _, cell := range row.GetCols() {
			cells = append(cells, cell.GetString())
		}
		rows = append(rows, cells)
	}
	return rows, sheet.GetName(), nil
}

// =============================================================================
// TABLE METHODS
// =============================================================================

// RenameColumns renames headers using the given old -> new map. Headers not
// in the map keep their name.
func (t *Table) RenameColumns(renames map[string]string) {
	for i, header := range t.Headers {
		if renamed, ok := renames[header]; ok {
			t.Headers[i] = renamed
		}
	}
	for _, row := range t.Rows {
		for from, to := range renames {
			value, ok := row[from]
			if !ok {
				continue
			}
			delete(row, from)
			row[to] = value
		}
	}
}

// HasColumn reports whether a header is present.
func (t *Table) HasColumn(name string) bool {
	for _, header := range t.Headers {
		if header == name {
			return true
		}
	}
	return false
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// SerialToTimestamp converts an Excel date serial ("45301" or "45301.5") to
// "yyyy-mm-dd hh:mm:ss". Any other value is returned unchanged.
func SerialToTimestamp(value string) string {
	trimmed := strings.TrimSpace(value)
	serial, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || serial <= 0 || serial > maxExcelSerial {
		return value
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return value
	}
	return t.Format(timestampLayout)
}

// cleanHeaders trims headers and names blank ones by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
