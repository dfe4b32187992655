// =============================================================================
// Stop & Go Invoice Batch - Shared Types
// =============================================================================
//
// This package contains the data model shared by the loaders, the builders
// and the writers. Keeping it in one place avoids import cycles between:
//   - invoices / accounts (producers)
//   - ledger / tax        (builders)
//   - converter           (orchestrator)
//
// =============================================================================

package types

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CANONICAL FIELD NAMES
// =============================================================================

// Canonical column names of the invoice sheet after renaming.
const (
	FieldFechaFactura  = "FechaFactura"
	FieldNfactura      = "Nfactura"
	FieldVencimiento   = "Vencimiento"
	FieldEstacion      = "Estacion"
	FieldBaseImponible = "BaseImponible"
	FieldIva           = "Iva"
	FieldTotalFactura  = "TotalFactura"
	FieldConcepto      = "Concepto"
)

// =============================================================================
// VENDOR
// =============================================================================

// Vendor identifies the single supplier the batch posts invoices for.
type Vendor struct {
	Name      string
	ShortName string
	Account   string
	TaxID     string
}

// =============================================================================
// STATION ACCOUNTS
// =============================================================================

// StationAccountMap maps a station code to its ledger account code.
// It is built once per run by the account loader and never mutated afterwards.
type StationAccountMap struct {
	accounts map[string]string
}

// NewStationAccountMap copies the given entries into a new map.
func NewStationAccountMap(entries map[string]string) StationAccountMap {
	accounts := make(map[string]string, len(entries))
	for station, account := range entries {
		accounts[station] = account
	}
	return StationAccountMap{accounts: accounts}
}

// Lookup returns the account for a station. An empty account counts as missing.
func (m StationAccountMap) Lookup(station string) (string, bool) {
	account, ok := m.accounts[station]
	if !ok || account == "" {
		return "", false
	}
	return account, true
}

// Account returns the account for a station, or fallback when it is missing.
func (m StationAccountMap) Account(station, fallback string) string {
	if account, ok := m.Lookup(station); ok {
		return account
	}
	return fallback
}

// Len returns the number of stations loaded.
func (m StationAccountMap) Len() int {
	return len(m.accounts)
}

// =============================================================================
// INVOICE RECORDS
// =============================================================================

// RawInvoiceRecord is one spreadsheet row with its cells keyed by canonical
// field. All values are the cell text as read; normalization happens later.
type RawInvoiceRecord struct {
	FechaFactura  string
	Nfactura      string
	Vencimiento   string
	Estacion      string
	BaseImponible string
	Iva           string
	TotalFactura  string
	Concepto      string

	// Row is the 1-based row number in the source sheet.
	Row int
}

// NormalizedInvoice is a RawInvoiceRecord after value coercion.
type NormalizedInvoice struct {
	Number    string
	Station   string
	IssueDate string // dd/mm/yyyy
	DueDate   string // dd/mm/yyyy or empty
	Concept   string

	Base  decimal.Decimal
	VAT   decimal.Decimal
	Total decimal.Decimal

	// TotalComputed is set when Total was derived as Base+VAT.
	TotalComputed bool

	Row int
}

// IsEmpty reports whether base, VAT and total are all zero. Empty invoices
// are excluded from every output.
func (n NormalizedInvoice) IsEmpty() bool {
	return n.Base.IsZero() && n.VAT.IsZero() && n.Total.IsZero()
}

// HasPayment reports whether the invoice carries a due date.
func (n NormalizedInvoice) HasPayment() bool {
	return n.DueDate != ""
}

// UniqueInvoices keeps one record per invoice number in first-seen order.
// A repeated number replaces the stored record (last write wins).
type UniqueInvoices struct {
	order   []string
	records map[string]RawInvoiceRecord
}

// NewUniqueInvoices creates an empty collection.
func NewUniqueInvoices() *UniqueInvoices {
	return &UniqueInvoices{records: make(map[string]RawInvoiceRecord)}
}

// Put stores rec under number and reports whether number was already present.
func (u *UniqueInvoices) Put(number string, rec RawInvoiceRecord) bool {
	_, exists := u.records[number]
	if !exists {
		u.order = append(u.order, number)
	}
	u.records[number] = rec
	return exists
}

// Get returns the record stored for number.
func (u *UniqueInvoices) Get(number string) (RawInvoiceRecord, bool) {
	rec, ok := u.records[number]
	return rec, ok
}

// Len returns the number of distinct invoice numbers.
func (u *UniqueInvoices) Len() int {
	if u == nil {
		return 0
	}
	return len(u.order)
}

// Records returns the stored records in first-seen order of their numbers.
func (u *UniqueInvoices) Records() []RawInvoiceRecord {
	if u == nil {
		return nil
	}
	out := make([]RawInvoiceRecord, 0, len(u.order))
	for _, number := range u.order {
		out = append(out, u.records[number])
	}
	return out
}

// =============================================================================
// LEDGER LINES (EXTRA01)
// =============================================================================

// Side is the debit/credit marker of a ledger line.
type Side int

const (
	Debit  Side = 1
	Credit Side = 2
)

// Posting flags written in the last EXTRA01 column.
const (
	FlagInvoice = "10"
	FlagPayment = "0"
)

// LedgerLine is one row of the ledger export.
type LedgerLine struct {
	Date          string
	Account       string
	InvoiceNumber string
	Entry         int
	Description   string
	Side          Side
	Amount        string
	Flag          string
}

// Record returns the EXTRA01 columns for the line.
func (l LedgerLine) Record() []string {
	return []string{
		l.Date,
		l.Account,
		l.InvoiceNumber,
		"",
		"0",
		strconv.Itoa(l.Entry),
		l.Description,
		strconv.Itoa(int(l.Side)),
		l.Amount,
		"", "", "", "", "",
		"0",
		l.Flag,
	}
}

// =============================================================================
// TAX RECORDS (IVA0101)
// =============================================================================

// TaxRecord is one row of the tax declaration export.
type TaxRecord struct {
	VendorAccount string
	VendorName    string
	VendorTaxID   string
	InvoiceNumber string
	Base          string
	VAT           string
	Total         string
	VATAccount    string
	IssueDate     string
	VATRate       string
}

// Record returns the IVA0101 columns for the record.
func (r TaxRecord) Record() []string {
	return []string{
		r.VendorAccount,
		r.VendorName,
		r.VendorTaxID,
		r.InvoiceNumber,
		r.Base,
		"", "",
		"-2",
		r.VATAccount,
		"S",
		r.IssueDate,
		"",
		r.VATRate,
		"0",
		r.Total,
		r.VAT,
		"0",
		"283",
		r.IssueDate,
		"0",
		"1",
		"0",
		"",
		r.IssueDate,
		"0",
	}
}

// =============================================================================
// RUN COUNTERS
// =============================================================================

// RunCounters are the per-run tallies reported in the summary.
type RunCounters struct {
	Valid                 int
	WithPayment           int
	WithoutDueDate        int
	WithoutStationAccount int
	SkippedEmpty          int
	DuplicateNumbers      int

	LedgerLines     int
	TaxRecords      int
	TaxSkippedEmpty int
}
