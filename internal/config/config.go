// =============================================================================
// Stop & Go Invoice Batch - Configuration Module
// =============================================================================
//
// This module loads the batch configuration once at process start.
//
// SOURCES (later ones win):
//   1. Built-in defaults matching the reference deployment
//   2. config.yaml (optional, a missing file means defaults only)
//   3. .env in the working directory (optional)
//   4. Process environment
//
// ENVIRONMENT VARIABLES:
//   STOPGO_BASE_DIR   - working folder, overrides base_dir
//   OneDrive/ONEDRIVE - OneDrive root, used with onedrive_relative_path
//   MAIL_HOST, MAIL_PORT, MAIL_USERNAME, MAIL_PASSWORD, MAIL_FROM
//   MAIL_ERROR_TO, MAIL_SUCCESS_TO (comma separated)
//   LOG_LEVEL
//
// Mail credentials are only ever carried by Config.Mail and handed to the
// mailer constructor.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/stopgo-invoices/internal/types"
)

// DefaultConfigFile is the config file looked up when none is given.
const DefaultConfigFile = "config.yaml"

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the batch configuration.
type Config struct {
	// =========================================================================
	// FOLDER SETTINGS
	// =========================================================================

	// BaseDir is the working folder. When empty it is derived from the
	// OneDrive root and OneDriveRelativePath.
	BaseDir string `yaml:"base_dir"`

	// OneDriveRelativePath is the working folder below the OneDrive root.
	// Default: "Facturas Stop and Go"
	OneDriveRelativePath string `yaml:"onedrive_relative_path"`

	// InvoiceDir holds the invoice workbooks, relative to BaseDir.
	// Default: "Excel Facturas Stop & Go"
	InvoiceDir string `yaml:"invoice_dir"`

	// LookupFile is the station account lookup, relative to BaseDir.
	// Default: "Excel Auxiliares/CuentasEstaciones.xlsx"
	LookupFile string `yaml:"lookup_file"`

	// OutputDirs are tried in order for the exports; BaseDir is used when
	// none exists.
	// Default: ["Contabilidad", "Contabilidad Mes Actual"]
	OutputDirs []string `yaml:"output_dirs"`

	// UseCRLF ends export records with "\r\n".
	UseCRLF bool `yaml:"use_crlf"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogDir is the log folder, relative to BaseDir.
	// Default: "Log"
	LogDir string `yaml:"log_dir"`

	// LogFile is the log file name inside LogDir.
	// Default: "batchFacturasStopAndGo.log"
	LogFile string `yaml:"log_file"`

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// WriteSummaryFile writes a run summary file into LogDir.
	// Default: true
	WriteSummaryFile *bool `yaml:"write_summary_file"`

	// =========================================================================
	// ACCOUNTING SETTINGS
	// =========================================================================

	Vendor   VendorSettings  `yaml:"vendor"`
	Accounts AccountSettings `yaml:"accounts"`
	VATRate  string          `yaml:"vat_rate"`
	Mail     MailSettings    `yaml:"mail"`
}

// VendorSettings identifies the supplier.
type VendorSettings struct {
	Name      string `yaml:"name"`
	ShortName string `yaml:"short_name"`
	Account   string `yaml:"account"`
	TaxID     string `yaml:"tax_id"`
}

// AccountSettings holds the fixed ledger accounts.
type AccountSettings struct {
	// VAT receives the VAT debit lines. Default: "47200021"
	VAT string `yaml:"vat"`

	// Bank is credited by payments. Default: "57200052"
	Bank string `yaml:"bank"`

	// Missing is posted for stations without an account.
	// Default: "Cuenta no encontrada"
	Missing string `yaml:"missing"`
}

// MailSettings configures the outbound mail relay.
type MailSettings struct {
	// Enabled turns mail notifications on. Without credentials
	// notifications are only logged.
	Enabled bool `yaml:"enabled"`

	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	Timeout  time.Duration `yaml:"timeout"`

	// ErrorRecipients receive failure reports.
	ErrorRecipients []string `yaml:"error_recipients"`

	// SuccessRecipients receive the completion message.
	SuccessRecipients []string `yaml:"success_recipients"`
}

// HasCredentials reports whether the relay can be used.
func (m MailSettings) HasCredentials() bool {
	return m.Enabled && m.Username != "" && m.Password != ""
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// VendorInfo returns the vendor as used by the builders.
func (c *Config) VendorInfo() types.Vendor {
	return types.Vendor{
		Name:      c.Vendor.Name,
		ShortName: c.Vendor.ShortName,
		Account:   c.Vendor.Account,
		TaxID:     c.Vendor.TaxID,
	}
}

// LogPath returns the absolute path of the log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.resolve(c.LogDir), c.LogFile)
}

// LogDirPath returns the absolute path of the log folder.
func (c *Config) LogDirPath() string {
	return c.resolve(c.LogDir)
}

// SummaryEnabled reports whether a summary file is written.
func (c *Config) SummaryEnabled() bool {
	return c.WriteSummaryFile == nil || *c.WriteSummaryFile
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration from configPath, the .env file and the
// environment.
//
// RETURNS:
//   - The validated configuration.
//   - An error if the file cannot be parsed or the result is invalid.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// Defaults and environment only.
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	_ = godotenv.Load()

	applyEnvironment(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvironment overlays environment variables on the file values.
func applyEnvironment(cfg *Config) {
	cfg.BaseDir = getEnv("STOPGO_BASE_DIR", cfg.BaseDir)
	if cfg.BaseDir == "" {
		root := getEnv("OneDrive", getEnv("ONEDRIVE", ""))
		if root != "" {
			relative := cfg.OneDriveRelativePath
			if relative == "" {
				relative = defaultOneDriveRelativePath
			}
			cfg.BaseDir = filepath.Join(root, relative)
		}
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.Mail.Host = getEnv("MAIL_HOST", cfg.Mail.Host)
	cfg.Mail.Port = getEnvAsInt("MAIL_PORT", cfg.Mail.Port)
	cfg.Mail.Username = getEnv("MAIL_USERNAME", cfg.Mail.Username)
	cfg.Mail.Password = getEnv("MAIL_PASSWORD", cfg.Mail.Password)
	cfg.Mail.From = getEnv("MAIL_FROM", cfg.Mail.From)
	cfg.Mail.ErrorRecipients = getEnvAsCSV("MAIL_ERROR_TO", cfg.Mail.ErrorRecipients)
	cfg.Mail.SuccessRecipients = getEnvAsCSV("MAIL_SUCCESS_TO", cfg.Mail.SuccessRecipients)
	if getEnv("MAIL_USERNAME", "") != "" && getEnv("MAIL_PASSWORD", "") != "" {
		cfg.Mail.Enabled = true
	}
}

const defaultOneDriveRelativePath = "Facturas Stop and Go"

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.OneDriveRelativePath == "" {
		cfg.OneDriveRelativePath = defaultOneDriveRelativePath
	}
	if cfg.InvoiceDir == "" {
		cfg.InvoiceDir = "Excel Facturas Stop & Go"
	}
	if cfg.LookupFile == "" {
		cfg.LookupFile = filepath.Join("Excel Auxiliares", "CuentasEstaciones.xlsx")
	}
	if len(cfg.OutputDirs) == 0 {
		cfg.OutputDirs = []string{"Contabilidad", "Contabilidad Mes Actual"}
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "Log"
	}
	if cfg.LogFile == "" {
		cfg.LogFile = "batchFacturasStopAndGo.log"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Vendor.Name == "" {
		cfg.Vendor.Name = "REPSOL CIAL. P.P., S.A"
	}
	if cfg.Vendor.ShortName == "" {
		cfg.Vendor.ShortName = "REPSOL"
	}
	if cfg.Vendor.Account == "" {
		cfg.Vendor.Account = "41000001"
	}
	if cfg.Vendor.TaxID == "" {
		cfg.Vendor.TaxID = "A80298839"
	}
	if cfg.Accounts.VAT == "" {
		cfg.Accounts.VAT = "47200021"
	}
	if cfg.Accounts.Bank == "" {
		cfg.Accounts.Bank = "57200052"
	}
	if cfg.Accounts.Missing == "" {
		cfg.Accounts.Missing = "Cuenta no encontrada"
	}
	if cfg.VATRate == "" {
		cfg.VATRate = "21"
	}

	if cfg.Mail.Host == "" {
		cfg.Mail.Host = "smtp.office365.com"
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}
	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.Mail.Username
	}
	if cfg.Mail.Timeout == 0 {
		cfg.Mail.Timeout = 30 * time.Second
	}
}

// validate checks the configuration after defaults are applied.
func validate(cfg *Config) error {
	if cfg.BaseDir == "" {
		return errors.New("invalid config: base folder unresolved, set base_dir, STOPGO_BASE_DIR or OneDrive")
	}
	info, err := os.Stat(cfg.BaseDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("invalid config: base folder %s does not exist", cfg.BaseDir)
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid config: log_level %q must be debug, info, warn or error", cfg.LogLevel)
	}

	if cfg.Mail.Port <= 0 || cfg.Mail.Port > 65535 {
		return fmt.Errorf("invalid config: mail port %d out of range", cfg.Mail.Port)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT HELPERS
// =============================================================================

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsCSV(key string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
