// =============================================================================
// Stop & Go Invoice Batch - Value Normalizer
// =============================================================================
//
// This module coerces raw cell content into the canonical forms used by the
// ledger and tax builders:
//   - Codes (invoice numbers, station codes) as trimmed strings
//   - Amounts as decimal values
//   - Dates as dd/mm/yyyy strings
//
// Every function returns a definite value. A cell that cannot be understood
// becomes zero or the empty string; it never fails the row or the run.
//
// =============================================================================

package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/stopgo-invoices/internal/types"
)

// textTimestampLayout is the textual form of a timestamp cell.
const textTimestampLayout = "2006-01-02 15:04:05"

// outputDateLayout is the date layout written to both export files.
const outputDateLayout = "02/01/2006"

// maxAmountExponent bounds the decimal exponent of a parsed amount. Values
// outside it read as zero.
const maxAmountExponent = 20

// =============================================================================
// TEXT AND CODES
// =============================================================================

// ToText returns the textual form of a cell. Missing values (nil, NaN, the
// zero time) become the empty string.
func ToText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case float64:
		if math.IsNaN(v) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		if math.IsNaN(float64(v)) {
			return ""
		}
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case decimal.Decimal:
		return v.String()
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(textTimestampLayout)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.Format(textTimestampLayout)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// CleanCode returns the trimmed text of a code cell. A trailing ".0", left
// behind when a numeric code was stored as a float, is removed.
//
// EXAMPLE:
//
//	CleanCode("123.0") == "123"
//	CleanCode(" 45 ")  == "45"
func CleanCode(raw any) string {
	s := strings.TrimSpace(ToText(raw))
	return strings.TrimSuffix(s, ".0")
}

// =============================================================================
// AMOUNTS
// =============================================================================

// Amount converts a cell to a decimal amount.
//
// Numeric values are converted as they are. Text is cleaned of the euro sign
// and spaces, then:
//   - "1.234,56" (both separators): "." is the thousands separator
//   - "1234,56"  (comma only):      "," is the decimal separator
//   - anything else is parsed as written
//
// Unparseable input yields zero.
func Amount(raw any) decimal.Decimal {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero
		}
		return boundedAmount(decimal.NewFromFloat(v))
	case float32:
		return Amount(float64(v))
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	}

	s := strings.TrimSpace(ToText(raw))
	if s == "" {
		return decimal.Zero
	}

	s = strings.NewReplacer("€", "", " ", "", "\u00a0", "").Replace(s)

	hasComma := strings.Contains(s, ",")
	hasPeriod := strings.Contains(s, ".")
	switch {
	case hasComma && hasPeriod:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case hasComma:
		s = strings.ReplaceAll(s, ",", ".")
	}

	s = strings.TrimPrefix(s, "+")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return boundedAmount(d)
}

func boundedAmount(d decimal.Decimal) decimal.Decimal {
	if exp := d.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return decimal.Zero
	}
	return d
}

// FormatAmount renders an amount with two fraction digits and a comma as the
// decimal separator. With forceNegative a positive amount is written negated.
// This is the only place where amounts are rounded.
func FormatAmount(value decimal.Decimal, forceNegative bool) string {
	if forceNegative && value.IsPositive() {
		value = value.Neg()
	}
	return strings.Replace(value.StringFixed(2), ".", ",", 1)
}

// =============================================================================
// DATES
// =============================================================================

// Date converts a cell to a dd/mm/yyyy string.
//
// Time values are formatted directly. Text keeps only the part before the
// first space and is read as:
//   - dd.mm.yyyy when it holds two or more "."
//   - dd/mm/yyyy when it holds two or more "/"
//   - yyyy-mm-dd when it holds two or more "-"
//
// Day and month are zero-padded to two digits and the year is cut to four.
// Text matching none of these is returned trimmed, without validation.
func Date(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(outputDateLayout)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.Format(outputDateLayout)
	}

	s := strings.TrimSpace(ToText(raw))
	if s == "" {
		return ""
	}

	if i := strings.Index(s, " "); i >= 0 {
		s = s[:i]
	}

	switch {
	case strings.Count(s, ".") >= 2:
		p := strings.Split(s, ".")
		return joinDate(p[0], p[1], p[2])
	case strings.Count(s, "/") >= 2:
		p := strings.Split(s, "/")
		return joinDate(p[0], p[1], p[2])
	case strings.Count(s, "-") >= 2:
		p := strings.Split(s, "-")
		return joinDate(p[2], p[1], p[0])
	}

	return s
}

func joinDate(day, month, year string) string {
	if len(year) > 4 {
		year = year[:4]
	}
	return zeroPad(day) + "/" + zeroPad(month) + "/" + year
}

// zeroPad pads s with leading zeros to two characters.
func zeroPad(s string) string {
	if len(s) >= 2 {
		return s
	}
	return strings.Repeat("0", 2-len(s)) + s
}

// =============================================================================
// INVOICES
// =============================================================================

// Invoice normalizes every field of a raw record. When the total is zero and
// base or VAT is not, the total is computed as base + VAT.
func Invoice(rec types.RawInvoiceRecord) types.NormalizedInvoice {
	inv := types.NormalizedInvoice{
		Number:    CleanCode(rec.Nfactura),
		Station:   CleanCode(rec.Estacion),
		IssueDate: Date(rec.FechaFactura),
		DueDate:   Date(rec.Vencimiento),
		Concept:   strings.TrimSpace(rec.Concepto),
		Base:      Amount(rec.BaseImponible),
		VAT:       Amount(rec.Iva),
		Total:     Amount(rec.TotalFactura),
		Row:       rec.Row,
	}

	if inv.Total.IsZero() && (!inv.Base.IsZero() || !inv.VAT.IsZero()) {
		inv.Total = inv.Base.Add(inv.VAT)
		inv.TotalComputed = true
	}
	return inv
}
