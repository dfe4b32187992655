// Package tax derives the IVA0101 VAT declaration records.
//
// One record is produced per distinct invoice number, from the record kept by
// the ledger stage. Amounts are recomputed from the raw cells with the same
// zero-total rule the ledger uses.
package tax

import (
	"github.com/ginjaninja78/stopgo-invoices/internal/normalize"
	"github.com/ginjaninja78/stopgo-invoices/internal/types"
)

// DefaultVATRate is written in the rate column of every record.
const DefaultVATRate = "21"

// Builder turns unique invoices into tax records.
type Builder struct {
	Vendor     types.Vendor
	VATAccount string
	VATRate    string
}

// Result is the outcome of a build.
type Result struct {
	Records []types.TaxRecord

	// SkippedEmpty counts invoices whose base, VAT and total are all zero.
	SkippedEmpty int
}

// Rows returns the IVA0101 columns of every record.
func (r Result) Rows() [][]string {
	rows := make([][]string, 0, len(r.Records))
	for _, rec := range r.Records {
		rows = append(rows, rec.Record())
	}
	return rows
}

// Build produces one record per invoice in unique, in first-seen order.
func (b *Builder) Build(unique *types.UniqueInvoices) Result {
	var result Result

	rate := b.VATRate
	if rate == "" {
		rate = DefaultVATRate
	}

	for _, rec := range unique.Records() {
		inv := normalize.Invoice(rec)
		if inv.IsEmpty() {
			result.SkippedEmpty++
			continue
		}

		result.Records = append(result.Records, types.TaxRecord{
			VendorAccount: b.Vendor.Account,
			VendorName:    b.Vendor.Name,
			VendorTaxID:   b.Vendor.TaxID,
			InvoiceNumber: inv.Number,
			Base:          normalize.FormatAmount(inv.Base, false),
			VAT:           normalize.FormatAmount(inv.VAT, false),
			Total:         normalize.FormatAmount(inv.Total, false),
			VATAccount:    b.VATAccount,
			IssueDate:     inv.IssueDate,
			VATRate:       rate,
		})
	}

	return result
}
