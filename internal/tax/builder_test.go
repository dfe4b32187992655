package tax

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/stopgo-invoices/internal/types"
)

func newBuilder() *Builder {
	return &Builder{
		Vendor: types.Vendor{
			Name:      "REPSOL CIAL. P.P., S.A",
			ShortName: "REPSOL",
			Account:   "41000001",
			TaxID:     "A80298839",
		},
		VATAccount: "47200021",
	}
}

func TestBuild_RecordLayout(t *testing.T) {
	unique := types.NewUniqueInvoices()
	unique.Put("500", types.RawInvoiceRecord{
		FechaFactura:  "2024-01-10",
		Nfactura:      "500.0",
		BaseImponible: "100,00",
		Iva:           "21,00",
		TotalFactura:  "121,00",
	})

	result := newBuilder().Build(unique)

	require.Len(t, result.Records, 1)
	rows := result.Rows()
	require.Len(t, rows[0], 25)
	assert.Equal(t,
		"41000001;REPSOL CIAL. P.P., S.A;A80298839;500;100,00;;;-2;47200021;S;10/01/2024;;21;0;121,00;21,00;0;283;10/01/2024;0;1;0;;10/01/2024;0",
		strings.Join(rows[0], ";"))
	assert.Equal(t, 0, result.SkippedEmpty)
}

func TestBuild_LaterDuplicateWins(t *testing.T) {
	unique := types.NewUniqueInvoices()
	unique.Put("7", types.RawInvoiceRecord{Nfactura: "7", BaseImponible: "10", Iva: "2,1", TotalFactura: "12,1"})
	unique.Put("8", types.RawInvoiceRecord{Nfactura: "8", BaseImponible: "1", TotalFactura: "1"})
	unique.Put("7", types.RawInvoiceRecord{Nfactura: "7", BaseImponible: "20", Iva: "4,2", TotalFactura: "24,2"})

	result := newBuilder().Build(unique)

	require.Len(t, result.Records, 2)
	assert.Equal(t, "7", result.Records[0].InvoiceNumber)
	assert.Equal(t, "20,00", result.Records[0].Base)
	assert.Equal(t, "24,20", result.Records[0].Total)
	assert.Equal(t, "8", result.Records[1].InvoiceNumber)
}

func TestBuild_ComputedTotalAndSkips(t *testing.T) {
	unique := types.NewUniqueInvoices()
	unique.Put("1", types.RawInvoiceRecord{Nfactura: "1", BaseImponible: "100", Iva: "21", TotalFactura: "0"})
	unique.Put("2", types.RawInvoiceRecord{Nfactura: "2"})

	b := newBuilder()
	b.VATRate = "10"
	result := b.Build(unique)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "121,00", result.Records[0].Total)
	assert.Equal(t, "10", result.Records[0].VATRate)
	assert.Equal(t, 1, result.SkippedEmpty)
}

func TestBuild_Empty(t *testing.T) {
	result := newBuilder().Build(nil)
	assert.Empty(t, result.Records)
	assert.Empty(t, result.Rows())
}
