package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment does not
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STOPGO_BASE_DIR", "OneDrive", "ONEDRIVE", "LOG_LEVEL",
		"MAIL_HOST", "MAIL_PORT", "MAIL_USERNAME", "MAIL_PASSWORD", "MAIL_FROM",
		"MAIL_ERROR_TO", "MAIL_SUCCESS_TO",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_DefaultsFromOneDrive(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "Facturas Stop and Go"), 0o755))
	t.Setenv("OneDrive", root)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "Facturas Stop and Go"), cfg.BaseDir)
	assert.Equal(t, "Excel Facturas Stop & Go", cfg.InvoiceDir)
	assert.Equal(t, filepath.Join("Excel Auxiliares", "CuentasEstaciones.xlsx"), cfg.LookupFile)
	assert.Equal(t, []string{"Contabilidad", "Contabilidad Mes Actual"}, cfg.OutputDirs)
	assert.Equal(t, filepath.Join(cfg.BaseDir, "Log", "batchFacturasStopAndGo.log"), cfg.LogPath())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.SummaryEnabled())

	vendor := cfg.VendorInfo()
	assert.Equal(t, "REPSOL CIAL. P.P., S.A", vendor.Name)
	assert.Equal(t, "REPSOL", vendor.ShortName)
	assert.Equal(t, "41000001", vendor.Account)
	assert.Equal(t, "A80298839", vendor.TaxID)
	assert.Equal(t, "47200021", cfg.Accounts.VAT)
	assert.Equal(t, "57200052", cfg.Accounts.Bank)
	assert.Equal(t, "Cuenta no encontrada", cfg.Accounts.Missing)
	assert.Equal(t, "21", cfg.VATRate)

	assert.Equal(t, "smtp.office365.com", cfg.Mail.Host)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.False(t, cfg.Mail.HasCredentials())
}

func TestLoad_UppercaseOneDrive(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "Facturas Stop and Go"), 0o755))
	t.Setenv("ONEDRIVE", root)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Facturas Stop and Go"), cfg.BaseDir)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	clearEnv(t)
	base := t.TempDir()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_dir: /does/not/matter
log_level: debug
write_summary_file: false
vendor:
  account: "41000009"
accounts:
  vat: "47200010"
mail:
  port: 25
  timeout: 5s
  error_recipients: [ops@example.com]
`), 0o644))

	t.Setenv("STOPGO_BASE_DIR", base)
	t.Setenv("MAIL_USERNAME", "batch@example.com")
	t.Setenv("MAIL_PASSWORD", "secret")
	t.Setenv("MAIL_SUCCESS_TO", "a@example.com, b@example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, base, cfg.BaseDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.SummaryEnabled())
	assert.Equal(t, "41000009", cfg.Vendor.Account)
	assert.Equal(t, "REPSOL", cfg.Vendor.ShortName)
	assert.Equal(t, "47200010", cfg.Accounts.VAT)
	assert.Equal(t, 25, cfg.Mail.Port)
	assert.Equal(t, 5*time.Second, cfg.Mail.Timeout)
	assert.Equal(t, []string{"ops@example.com"}, cfg.Mail.ErrorRecipients)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Mail.SuccessRecipients)
	assert.Equal(t, "batch@example.com", cfg.Mail.From)
	assert.True(t, cfg.Mail.HasCredentials())
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base folder unresolved")

	t.Setenv("STOPGO_BASE_DIR", filepath.Join(t.TempDir(), "missing"))
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	t.Setenv("STOPGO_BASE_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "verbose")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_dir: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}
