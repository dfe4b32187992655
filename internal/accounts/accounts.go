// Package accounts loads the station -> ledger account lookup.
//
// The lookup is an auxiliary spreadsheet (or CSV export) with the columns
// "Estacion" and "Cuenta". A missing file or missing columns are not fatal:
// the loader returns an empty map and every station falls back to the
// missing-account sentinel during ledger expansion.
package accounts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/stopgo-invoices/internal/csvparser"
	"github.com/ginjaninja78/stopgo-invoices/internal/normalize"
	"github.com/ginjaninja78/stopgo-invoices/internal/types"
	"github.com/ginjaninja78/stopgo-invoices/internal/validation"
	"github.com/ginjaninja78/stopgo-invoices/internal/xlsxparser"
)

// Lookup column names.
const (
	ColumnStation = "Estacion"
	ColumnAccount = "Cuenta"
)

// ErrLookupMissing is returned when the lookup file does not exist.
var ErrLookupMissing = errors.New("station account lookup not found")

// Load reads the lookup at path. The returned map is always usable, also when
// an error is returned.
//
// Errors:
//   - ErrLookupMissing when the file is absent
//   - *validation.ValidationError when a required column is missing
//   - any other error when the file cannot be read
func Load(path string) (types.StationAccountMap, error) {
	empty := types.NewStationAccountMap(nil)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return empty, fmt.Errorf("%w: %s", ErrLookupMissing, path)
		}
		return empty, fmt.Errorf("failed to stat lookup: %w", err)
	}

	headers, rows, err := readTable(path)
	if err != nil {
		return empty, err
	}

	if verr := validation.RequireColumns(path, headers, []string{ColumnStation, ColumnAccount}); verr != nil {
		return empty, verr
	}

	return FromRows(rows), nil
}

// FromRows builds the map from header-keyed rows. Codes are cleaned and rows
// with an empty station are skipped. A repeated station keeps the last account.
func FromRows(rows []map[string]string) types.StationAccountMap {
	entries := make(map[string]string, len(rows))
	for _, row := range rows {
		station := normalize.CleanCode(row[ColumnStation])
		if station == "" {
			continue
		}
		entries[station] = normalize.CleanCode(row[ColumnAccount])
	}
	return types.NewStationAccountMap(entries)
}

// IsDegraded reports whether err is one of the expected, non-fatal lookup
// failures.
func IsDegraded(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrLookupMissing) {
		return true
	}
	var verr *validation.ValidationError
	return errors.As(err, &verr)
}

// readTable reads an XLSX or CSV table depending on the file extension.
func readTable(path string) ([]string, []map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		data, err := csvparser.Parse(path, csvparser.Settings{})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read lookup CSV: %w", err)
		}
		return data.Headers, data.Rows, nil
	default:
		table, err := xlsxparser.Parse(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read lookup workbook: %w", err)
		}
		return table.Headers, table.Rows, nil
	}
}
