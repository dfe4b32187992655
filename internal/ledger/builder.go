// =============================================================================
// Stop & Go Invoice Batch - Ledger Entry Builder
// =============================================================================
//
// This module expands every invoice row into EXTRA01 ledger lines.
//
// INVOICE POSTING (flag "10", dated on the issue date):
//   1. Vendor account, credit, -total
//   2. Station account, debit, +base   (only when base != 0)
//   3. VAT account, debit, +VAT        (only when VAT != 0)
//
// PAYMENT POSTING (flag "0", dated on the due date, only with a due date):
//   1. Vendor account, debit, +total
//   2. Bank account, credit, -total
//
// Each posting takes the next entry number, starting at 1. Rows whose
// base, VAT and total are all zero produce no lines.
//
// =============================================================================

package ledger

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/stopgo-invoices/internal/normalize"
	"github.com/ginjaninja78/stopgo-invoices/internal/types"
)

// Logger is the logging interface used by the builder.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Builder turns invoice records into ledger lines.
type Builder struct {
	// Vendor is the supplier whose account is credited.
	Vendor types.Vendor

	// VATAccount receives the VAT debit lines.
	VATAccount string

	// BankAccount is credited by payment postings.
	BankAccount string

	// MissingAccount is posted when a station has no account.
	MissingAccount string

	// Logger receives per-invoice anomalies. May be nil.
	Logger Logger
}

// Result is the outcome of a build.
type Result struct {
	// Lines holds the ledger lines in posting order.
	Lines []types.LedgerLine

	// Unique holds one record per invoice number for the tax export.
	Unique *types.UniqueInvoices

	// Counters holds the run tallies. TaxRecords and TaxSkippedEmpty are
	// left for the tax stage.
	Counters types.RunCounters
}

// Records returns the EXTRA01 columns of every line.
func (r Result) Records() [][]string {
	records := make([][]string, 0, len(r.Lines))
	for _, line := range r.Lines {
		records = append(records, line.Record())
	}
	return records
}

// Build expands records using accounts for the station lookup.
func (b *Builder) Build(records []types.RawInvoiceRecord, accounts types.StationAccountMap) Result {
	result := Result{Unique: types.NewUniqueInvoices()}
	entry := 0

	for _, rec := range records {
		inv := normalize.Invoice(rec)

		if inv.IsEmpty() {
			result.Counters.SkippedEmpty++
			continue
		}

		if inv.TotalComputed {
			b.info("TotalFactura empty for invoice %s (row %d), computed %s",
				inv.Number, inv.Row, inv.Total.StringFixed(2))
		}

		stationAccount, ok := accounts.Lookup(inv.Station)
		if !ok {
			result.Counters.WithoutStationAccount++
			stationAccount = b.MissingAccount
			b.warn("Station without account: station=%s | invoice=%s", inv.Station, inv.Number)
		}

		entry++
		result.Lines = append(result.Lines, b.invoicePosting(inv, stationAccount, entry)...)

		if result.Unique.Put(inv.Number, rec) {
			result.Counters.DuplicateNumbers++
			b.warn("Duplicate invoice number for VAT, earlier row replaced: %s", inv.Number)
		}
		result.Counters.Valid++

		if inv.HasPayment() {
			entry++
			result.Lines = append(result.Lines, b.paymentPosting(inv, entry)...)
			result.Counters.WithPayment++
		} else {
			result.Counters.WithoutDueDate++
			b.info("Invoice without due date: %s", inv.Number)
		}
	}

	result.Counters.LedgerLines = len(result.Lines)
	return result
}

// invoicePosting returns the vendor, base and VAT lines of an invoice.
func (b *Builder) invoicePosting(inv types.NormalizedInvoice, stationAccount string, entry int) []types.LedgerLine {
	desc := fmt.Sprintf("Fra. %s, %s", inv.Number, b.Vendor.Name)

	line := func(account string, side types.Side, amount string) types.LedgerLine {
		return types.LedgerLine{
			Date:          inv.IssueDate,
			Account:       account,
			InvoiceNumber: inv.Number,
			Entry:         entry,
			Description:   desc,
			Side:          side,
			Amount:        amount,
			Flag:          types.FlagInvoice,
		}
	}

	lines := []types.LedgerLine{
		line(b.Vendor.Account, types.Credit, normalize.FormatAmount(inv.Total, true)),
	}
	if !inv.Base.IsZero() {
		lines = append(lines, line(stationAccount, types.Debit, normalize.FormatAmount(inv.Base, false)))
	}
	if !inv.VAT.IsZero() {
		lines = append(lines, line(b.VATAccount, types.Debit, normalize.FormatAmount(inv.VAT, false)))
	}
	return lines
}

// paymentPosting returns the vendor debit and bank credit of a payment.
func (b *Builder) paymentPosting(inv types.NormalizedInvoice, entry int) []types.LedgerLine {
	desc := strings.TrimSpace(fmt.Sprintf("PAGO FRA. %s %s", b.Vendor.ShortName, inv.Number))

	line := func(account string, side types.Side, amount string) types.LedgerLine {
		return types.LedgerLine{
			Date:        inv.DueDate,
			Account:     account,
			Entry:       entry,
			Description: desc,
			Side:        side,
			Amount:      amount,
			Flag:        types.FlagPayment,
		}
	}

	return []types.LedgerLine{
		line(b.Vendor.Account, types.Debit, normalize.FormatAmount(inv.Total, false)),
		line(b.BankAccount, types.Credit, normalize.FormatAmount(inv.Total, true)),
	}
}

func (b *Builder) info(msg string, args ...interface{}) {
	if b.Logger != nil {
		b.Logger.Info(msg, args...)
	}
}

func (b *Builder) warn(msg string, args ...interface{}) {
	if b.Logger != nil {
		b.Logger.Warn(msg, args...)
	}
}
