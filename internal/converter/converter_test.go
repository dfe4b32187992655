package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ginjaninja78/stopgo-invoices/internal/config"
	"github.com/ginjaninja78/stopgo-invoices/internal/invoices"
	"github.com/ginjaninja78/stopgo-invoices/internal/logging"
	"github.com/ginjaninja78/stopgo-invoices/internal/notify"
	"github.com/ginjaninja78/stopgo-invoices/internal/validation"
)

// =============================================================================
// FIXTURES
// =============================================================================

type sentMessage struct {
	recipients []string
	subject    string
	body       string
}

type fakeNotifier struct {
	sent []sentMessage
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, recipients []string, subject, body string) error {
	n.sent = append(n.sent, sentMessage{recipients: recipients, subject: subject, body: body})
	return n.err
}

func (n *fakeNotifier) subjects() []string {
	out := make([]string, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.subject)
	}
	return out
}

var invoiceHeader = []any{"Fecha", "Nfactura", "Vencimiento", "Concepto", "Estacion", "Base", "Iva", "TotalFactura"}

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

// newBase lays out a working folder with the lookup, the invoice folder and
// the first output folder.
func newBase(t *testing.T, invoiceRows [][]any) string {
	t.Helper()

	base := t.TempDir()
	writeWorkbook(t, filepath.Join(base, "Excel Auxiliares", "CuentasEstaciones.xlsx"), [][]any{
		{"Estacion", "Cuenta"},
		{"12", "60000012"},
	})
	require.NoError(t, os.MkdirAll(filepath.Join(base, "Contabilidad"), 0o755))
	if invoiceRows != nil {
		writeWorkbook(t, filepath.Join(base, "Excel Facturas Stop & Go", "facturas.xlsx"), invoiceRows)
	}
	return base
}

func testConfig(base string) *config.Config {
	return &config.Config{
		BaseDir:    base,
		InvoiceDir: "Excel Facturas Stop & Go",
		LookupFile: filepath.Join("Excel Auxiliares", "CuentasEstaciones.xlsx"),
		OutputDirs: []string{"Contabilidad", "Contabilidad Mes Actual"},
		LogDir:     "Log",
		LogFile:    "batch.log",
		LogLevel:   "info",
		Vendor: config.VendorSettings{
			Name:      "REPSOL CIAL. P.P., S.A",
			ShortName: "REPSOL",
			Account:   "41000001",
			TaxID:     "A80298839",
		},
		Accounts: config.AccountSettings{
			VAT:     "47200021",
			Bank:    "57200052",
			Missing: "Cuenta no encontrada",
		},
		VATRate: "21",
		Mail: config.MailSettings{
			ErrorRecipients:   []string{"ops@example.com"},
			SuccessRecipients: []string{"accounts@example.com"},
		},
	}
}

func observedRunner(cfg *config.Config, notifier notify.Notifier, dryRun bool) (*Runner, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	runner := New(cfg, Options{
		DryRun:   dryRun,
		Logger:   logging.FromZap(zap.New(core), nil),
		Notifier: notifier,
		RunID:    "11111111-2222-3333-4444-555555555555",
	})
	return runner, logs
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(content), "\r\n"), "\n")
}

func messagesAt(logs *observer.ObservedLogs, level zapcore.Level) []string {
	var out []string
	for _, entry := range logs.All() {
		if entry.Level == level {
			out = append(out, entry.Message)
		}
	}
	return out
}

// =============================================================================
// TESTS
// =============================================================================

func TestRun_EndToEnd(t *testing.T) {
	base := newBase(t, [][]any{
		invoiceHeader,
		{"2024-01-10", "500.0", "2024-02-10", "Gasoleo", "12", "100,00", "21,00", "121,00"},
		{"2024-01-11", "501", "", "Gasolina", "99", "50,00", "10,50", ""},
	})
	notifier := &fakeNotifier{}
	runner, logs := observedRunner(testConfig(base), notifier, false)

	result := runner.Run(context.Background())
	require.NoError(t, result.Error)
	assert.True(t, result.Success)

	out := filepath.Join(base, "Contabilidad")
	assert.Equal(t, filepath.Join(out, "EXTRA01.csv"), result.LedgerFile)
	assert.Equal(t, filepath.Join(out, "IVA0101.csv"), result.TaxFile)

	assert.Equal(t, []string{
		"10/01/2024;41000001;500;;0;1;Fra. 500, REPSOL CIAL. P.P., S.A;2;-121,00;;;;;;0;10",
		"10/01/2024;60000012;500;;0;1;Fra. 500, REPSOL CIAL. P.P., S.A;1;100,00;;;;;;0;10",
		"10/01/2024;47200021;500;;0;1;Fra. 500, REPSOL CIAL. P.P., S.A;1;21,00;;;;;;0;10",
		"10/02/2024;41000001;;;0;2;PAGO FRA. REPSOL 500;1;121,00;;;;;;0;0",
		"10/02/2024;57200052;;;0;2;PAGO FRA. REPSOL 500;2;-121,00;;;;;;0;0",
		"11/01/2024;41000001;501;;0;3;Fra. 501, REPSOL CIAL. P.P., S.A;2;-60,50;;;;;;0;10",
		"11/01/2024;Cuenta no encontrada;501;;0;3;Fra. 501, REPSOL CIAL. P.P., S.A;1;50,00;;;;;;0;10",
		"11/01/2024;47200021;501;;0;3;Fra. 501, REPSOL CIAL. P.P., S.A;1;10,50;;;;;;0;10",
	}, readLines(t, result.LedgerFile))

	taxLines := readLines(t, result.TaxFile)
	require.Len(t, taxLines, 2)
	for _, line := range taxLines {
		assert.Len(t, strings.Split(line, ";"), 25)
		assert.Contains(t, line, "A80298839")
	}

	c := result.Stats.Counters
	assert.Equal(t, 2, c.Valid)
	assert.Equal(t, 1, c.WithPayment)
	assert.Equal(t, 1, c.WithoutDueDate)
	assert.Equal(t, 1, c.WithoutStationAccount)
	assert.Equal(t, 8, c.LedgerLines)
	assert.Equal(t, 2, c.TaxRecords)
	assert.Equal(t, 1, result.Stats.AccountsLoaded)
	assert.Equal(t, 2, result.Stats.RowsRead)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, notify.SuccessSubject, notifier.sent[0].subject)
	assert.Equal(t, []string{"accounts@example.com"}, notifier.sent[0].recipients)
	assert.Contains(t, notifier.sent[0].body, "Valid invoices processed:         2")

	require.NotEmpty(t, result.SummaryFile)
	assert.FileExists(t, result.SummaryFile)
	assert.Equal(t, filepath.Join(base, "Log"), filepath.Dir(result.SummaryFile))

	assert.Contains(t, strings.Join(messagesAt(logs, zapcore.WarnLevel), "\n"),
		"Station without account: station=99 | invoice=501")
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	base := newBase(t, [][]any{
		invoiceHeader,
		{"2024-01-10", "500", "", "", "12", "100,00", "21,00", "121,00"},
	})
	notifier := &fakeNotifier{}
	runner, _ := observedRunner(testConfig(base), notifier, true)

	result := runner.Run(context.Background())
	require.NoError(t, result.Error)

	assert.Empty(t, result.LedgerFile)
	assert.Empty(t, result.TaxFile)
	assert.Empty(t, result.SummaryFile)
	assert.NoFileExists(t, filepath.Join(base, "Contabilidad", "EXTRA01.csv"))
	assert.NoFileExists(t, filepath.Join(base, "Contabilidad", "IVA0101.csv"))
	assert.Equal(t, 3, result.Stats.Counters.LedgerLines)
	assert.Equal(t, 1, result.Stats.Counters.TaxRecords)
}

func TestRun_OutputFallsBackToBase(t *testing.T) {
	base := newBase(t, [][]any{
		invoiceHeader,
		{"2024-01-10", "500", "", "", "12", "100,00", "21,00", "121,00"},
	})
	require.NoError(t, os.Remove(filepath.Join(base, "Contabilidad")))

	runner, _ := observedRunner(testConfig(base), &fakeNotifier{}, false)
	result := runner.Run(context.Background())
	require.NoError(t, result.Error)
	assert.Equal(t, filepath.Join(base, "EXTRA01.csv"), result.LedgerFile)
}

func TestRun_MissingInvoiceFolder(t *testing.T) {
	base := newBase(t, nil)
	notifier := &fakeNotifier{}
	runner, logs := observedRunner(testConfig(base), notifier, false)

	result := runner.Run(context.Background())
	require.Error(t, result.Error)
	assert.False(t, result.Success)
	assert.True(t, errors.Is(result.Error, invoices.ErrFolderMissing))

	assert.Equal(t, []string{notify.ErrorSubject}, notifier.subjects())
	assert.Equal(t, []string{"ops@example.com"}, notifier.sent[0].recipients)
	assert.Contains(t, notifier.sent[0].body, "The invoice folder does not exist.")
	assert.NotEmpty(t, messagesAt(logs, zapcore.ErrorLevel))
	assert.NoFileExists(t, filepath.Join(base, "Contabilidad", "EXTRA01.csv"))
}

func TestRun_MissingColumns(t *testing.T) {
	base := newBase(t, [][]any{
		{"Fecha", "Nfactura", "Estacion", "Base"},
		{"2024-01-10", "500", "12", "100,00"},
	})
	notifier := &fakeNotifier{}
	runner, _ := observedRunner(testConfig(base), notifier, false)

	result := runner.Run(context.Background())
	require.Error(t, result.Error)

	var verr *validation.ValidationError
	require.True(t, errors.As(result.Error, &verr))
	assert.Equal(t, []string{"Iva", "TotalFactura"}, verr.Missing)

	assert.Equal(t, []string{notify.ErrorSubject}, notifier.subjects())
	assert.Contains(t, notifier.sent[0].body, "TotalFactura")
	assert.NoFileExists(t, filepath.Join(base, "Contabilidad", "EXTRA01.csv"))
	assert.NoFileExists(t, filepath.Join(base, "Contabilidad", "IVA0101.csv"))
}

func TestRun_EmptyInput(t *testing.T) {
	base := newBase(t, [][]any{
		invoiceHeader,
		{"2024-01-10", "500", "", "", "12", "", "", ""},
	})
	notifier := &fakeNotifier{}
	runner, logs := observedRunner(testConfig(base), notifier, false)

	result := runner.Run(context.Background())
	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	assert.Empty(t, result.LedgerFile)
	assert.Empty(t, result.TaxFile)
	assert.Equal(t, 1, result.Stats.Counters.SkippedEmpty)

	assert.NoFileExists(t, filepath.Join(base, "Contabilidad", "EXTRA01.csv"))
	assert.NoFileExists(t, filepath.Join(base, "Contabilidad", "IVA0101.csv"))
	assert.Contains(t, strings.Join(messagesAt(logs, zapcore.WarnLevel), "\n"), "No lines generated for EXTRA01.csv")
	assert.Equal(t, []string{notify.SuccessSubject}, notifier.subjects())
}

func TestRun_MissingLookupDegrades(t *testing.T) {
	base := newBase(t, [][]any{
		invoiceHeader,
		{"2024-01-10", "500", "", "", "12", "100,00", "21,00", "121,00"},
	})
	require.NoError(t, os.RemoveAll(filepath.Join(base, "Excel Auxiliares")))

	notifier := &fakeNotifier{}
	runner, logs := observedRunner(testConfig(base), notifier, false)

	result := runner.Run(context.Background())
	require.NoError(t, result.Error)
	assert.Equal(t, 0, result.Stats.AccountsLoaded)
	assert.Equal(t, 1, result.Stats.Counters.WithoutStationAccount)

	lines := readLines(t, result.LedgerFile)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], ";Cuenta no encontrada;")

	warnings := strings.Join(messagesAt(logs, zapcore.WarnLevel), "\n")
	assert.Contains(t, warnings, "Station lookup unavailable")
	assert.Contains(t, warnings, "No station accounts loaded")
	assert.Equal(t, []string{notify.SuccessSubject}, notifier.subjects())
}

func TestRun_NotificationFailureIsLogged(t *testing.T) {
	base := newBase(t, [][]any{
		invoiceHeader,
		{"2024-01-10", "500", "", "", "12", "100,00", "21,00", "121,00"},
	})
	notifier := &fakeNotifier{err: errors.New("relay down")}
	runner, logs := observedRunner(testConfig(base), notifier, false)

	result := runner.Run(context.Background())
	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	assert.Contains(t, strings.Join(messagesAt(logs, zapcore.WarnLevel), "\n"), "Success notification failed: relay down")
}

func TestRun_Cancelled(t *testing.T) {
	base := newBase(t, [][]any{invoiceHeader})
	notifier := &fakeNotifier{}
	runner, _ := observedRunner(testConfig(base), notifier, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := runner.Run(ctx)
	require.Error(t, result.Error)
	assert.True(t, errors.Is(result.Error, context.Canceled))
	assert.Equal(t, []string{notify.ErrorSubject}, notifier.subjects())
}

func TestNew_Defaults(t *testing.T) {
	runner := New(testConfig(t.TempDir()), Options{})
	assert.Len(t, runner.RunID(), 36)
	_, isLog := runner.notifier.(*notify.LogNotifier)
	assert.True(t, isLog)
}

func TestRun_UnreadableLookupIsReported(t *testing.T) {
	base := newBase(t, [][]any{
		invoiceHeader,
		{"2024-01-10", "500", "", "", "12", "100,00", "21,00", "121,00"},
	})
	lookup := filepath.Join(base, "Excel Auxiliares", "CuentasEstaciones.xlsx")
	require.NoError(t, os.WriteFile(lookup, []byte("not a workbook"), 0o644))

	notifier := &fakeNotifier{}
	runner, logs := observedRunner(testConfig(base), notifier, false)

	result := runner.Run(context.Background())
	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.Stats.AccountsLoaded)

	assert.Equal(t, []string{notify.ErrorSubject, notify.SuccessSubject}, notifier.subjects())
	assert.Contains(t, notifier.sent[0].body, "station accounts")
	assert.Contains(t, strings.Join(messagesAt(logs, zapcore.ErrorLevel), "\n"), "Error reading station accounts")

	lines := readLines(t, result.LedgerFile)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], ";Cuenta no encontrada;")
}

func TestRun_TaxStageFailureKeepsLedger(t *testing.T) {
	base := newBase(t, [][]any{
		invoiceHeader,
		{"2024-01-10", "500", "", "", "12", "100,00", "21,00", "121,00"},
	})
	require.NoError(t, os.Mkdir(filepath.Join(base, "Contabilidad", "IVA0101.csv"), 0o755))

	notifier := &fakeNotifier{}
	runner, logs := observedRunner(testConfig(base), notifier, false)

	result := runner.Run(context.Background())
	require.Error(t, result.Error)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error.Error(), "failed to export IVA0101.csv")

	assert.Equal(t, filepath.Join(base, "Contabilidad", "EXTRA01.csv"), result.LedgerFile)
	assert.Len(t, readLines(t, result.LedgerFile), 3)
	assert.Empty(t, result.TaxFile)
	assert.Equal(t, 1, result.Stats.Counters.TaxRecords)

	assert.Equal(t, []string{notify.ErrorSubject}, notifier.subjects())
	assert.Contains(t, strings.Join(messagesAt(logs, zapcore.ErrorLevel), "\n"), "Error in VAT stage")
}

// panickingLogger panics on the first Info message containing trigger.
type panickingLogger struct {
	Logger
	trigger string
}

func (l panickingLogger) Info(msg string, args ...interface{}) {
	if strings.Contains(msg, l.trigger) {
		panic("boom")
	}
	l.Logger.Info(msg, args...)
}

func TestRun_PanicIsRecovered(t *testing.T) {
	tests := []struct {
		name       string
		trigger    string
		wantErr    string
		wantLog    string
		ledgerKept bool
	}{
		{"main process", "Rows read from workbook", "unexpected failure: boom", "Error in main process", false},
		{"VAT stage", "Generating", "unexpected failure in VAT stage: boom", "Error in VAT stage", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := newBase(t, [][]any{
				invoiceHeader,
				{"2024-01-10", "500", "", "", "12", "100,00", "21,00", "121,00"},
			})
			core, logs := observer.New(zapcore.DebugLevel)
			notifier := &fakeNotifier{}
			runner := New(testConfig(base), Options{
				Logger:   panickingLogger{Logger: logging.FromZap(zap.New(core), nil), trigger: tt.trigger},
				Notifier: notifier,
				RunID:    "11111111-2222-3333-4444-555555555555",
			})

			var result Result
			assert.NotPanics(t, func() { result = runner.Run(context.Background()) })

			require.Error(t, result.Error)
			assert.False(t, result.Success)
			assert.True(t, strings.HasPrefix(result.Error.Error(), tt.wantErr), result.Error.Error())
			assert.Equal(t, []string{notify.ErrorSubject}, notifier.subjects())
			assert.Contains(t, strings.Join(messagesAt(logs, zapcore.ErrorLevel), "\n"), tt.wantLog)

			ledgerPath := filepath.Join(base, "Contabilidad", "EXTRA01.csv")
			if tt.ledgerKept {
				assert.FileExists(t, ledgerPath)
				assert.Equal(t, ledgerPath, result.LedgerFile)
			} else {
				assert.NoFileExists(t, ledgerPath)
			}
			assert.NoFileExists(t, filepath.Join(base, "Contabilidad", "IVA0101.csv"))
		})
	}
}
