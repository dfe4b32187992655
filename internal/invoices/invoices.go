// =============================================================================
// Stop & Go Invoice Batch - Invoice Source
// =============================================================================
//
// This module locates the supplier invoice workbook and turns its rows into
// RawInvoiceRecord values keyed by canonical field.
//
// SOURCE COLUMNS:
//   Fecha, Nfactura, Vencimiento, Concepto, Estacion, Base, Iva, TotalFactura
//
// RENAMING:
//   Fecha -> FechaFactura, Base -> BaseImponible; other headers pass through.
//
// =============================================================================

package invoices

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ginjaninja78/stopgo-invoices/internal/types"
	"github.com/ginjaninja78/stopgo-invoices/internal/validation"
	"github.com/ginjaninja78/stopgo-invoices/internal/xlsxparser"
	"github.com/ginjaninja78/stopgo-invoices/pkg/utils"
)

var (
	// ErrFolderMissing is returned when the invoice folder does not exist.
	ErrFolderMissing = errors.New("invoice folder not found")

	// ErrNoInvoiceFile is returned when the folder holds no spreadsheet.
	ErrNoInvoiceFile = errors.New("no invoice spreadsheet found")
)

// Extensions lists the spreadsheet extensions that are considered.
var Extensions = []string{".xlsx", ".xlsm", ".xls"}

// RenameMap maps source headers to canonical field names.
var RenameMap = map[string]string{
	"Fecha": types.FieldFechaFactura,
	"Base":  types.FieldBaseImponible,
}

// RequiredFields must be present after renaming.
var RequiredFields = []string{
	types.FieldFechaFactura,
	types.FieldNfactura,
	types.FieldBaseImponible,
	types.FieldIva,
	types.FieldTotalFactura,
	types.FieldEstacion,
}

// dateFields may hold spreadsheet date serials.
var dateFields = []string{types.FieldFechaFactura, types.FieldVencimiento}

// =============================================================================
// DISCOVERY
// =============================================================================

// Discover returns the most recently modified spreadsheet directly under
// folder. Lock files ("~$...") and directories are ignored.
func Discover(folder string) (string, error) {
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrFolderMissing, folder)
	}

	path, err := utils.LatestFile(folder, Extensions)
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", folder, err)
	}
	if path == "" {
		return "", fmt.Errorf("%w in %s", ErrNoInvoiceFile, folder)
	}
	return path, nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the first sheet of the workbook at path.
//
// RETURNS:
//   - One record per non-empty row, in sheet order.
//   - A *validation.ValidationError when a required field is missing.
//   - A wrapped read error when the workbook cannot be opened.
func Load(path string) ([]types.RawInvoiceRecord, error) {
	opts := xlsxparser.DefaultOptions()
	// Serials are detected on the source headers, before renaming.
	opts.DateColumns = sourceDateColumns()

	table, err := xlsxparser.ParseWithOptions(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices from %s: %w", filepath.Base(path), err)
	}

	table.RenameColumns(RenameMap)

	if verr := validation.RequireColumns(path, table.Headers, RequiredFields); verr != nil {
		return nil, verr
	}

	records := make([]types.RawInvoiceRecord, 0, len(table.Rows))
	for i, row := range table.Rows {
		records = append(records, toRecord(row, table.RowNumbers[i]))
	}
	return records, nil
}

// toRecord copies the canonical fields of a renamed row into a record.
func toRecord(row map[string]string, rowNumber int) types.RawInvoiceRecord {
	return types.RawInvoiceRecord{
		FechaFactura:  row[types.FieldFechaFactura],
		Nfactura:      row[types.FieldNfactura],
		Vencimiento:   row[types.FieldVencimiento],
		Estacion:      row[types.FieldEstacion],
		BaseImponible: row[types.FieldBaseImponible],
		Iva:           row[types.FieldIva],
		TotalFactura:  row[types.FieldTotalFactura],
		Concepto:      row[types.FieldConcepto],
		Row:           rowNumber,
	}
}

// sourceDateColumns returns the date fields under both their canonical and
// their source names.
func sourceDateColumns() []string {
	columns := append([]string(nil), dateFields...)
	for source, canonical := range RenameMap {
		for _, field := range dateFields {
			if canonical == field {
				columns = append(columns, source)
			}
		}
	}
	return columns
}
