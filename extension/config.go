package extension

import "time"

// Config holds the Tuition extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tuition" or "tuition" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Currency is the billing currency in lowercase ISO 4217 (default: "eur").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// DueDays is the payment term applied to generated invoices (default: 14).
	DueDays int `json:"due_days" mapstructure:"due_days" yaml:"due_days"`

	// InvoicePrefix is the number prefix for standard invoices (default: "INV").
	InvoicePrefix string `json:"invoice_prefix" mapstructure:"invoice_prefix" yaml:"invoice_prefix"`

	// CreditPrefix is the number prefix for credit invoices (default: "CRN").
	CreditPrefix string `json:"credit_prefix" mapstructure:"credit_prefix" yaml:"credit_prefix"`

	// OverdueSweepInterval controls how often sent invoices past their due
	// date are flipped to overdue (default: 1h). Zero disables the sweep.
	OverdueSweepInterval time.Duration `json:"overdue_sweep_interval" mapstructure:"overdue_sweep_interval" yaml:"overdue_sweep_interval"`

	// School is the billing header identity stamped on printable invoices.
	School SchoolConfig `json:"school" mapstructure:"school" yaml:"school"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the extension expects a postgres or sqlite store built from
	// that database and passed via WithStore.
	// When empty and WithGroveDatabase was called, the default (unnamed) DB is used.
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// SchoolConfig mirrors tuition.SchoolProfile for YAML binding.
type SchoolConfig struct {
	Name               string `json:"name" mapstructure:"name" yaml:"name"`
	Address            string `json:"address" mapstructure:"address" yaml:"address"`
	VATNumber          string `json:"vat_number" mapstructure:"vat_number" yaml:"vat_number"`
	RegistrationNumber string `json:"registration_number" mapstructure:"registration_number" yaml:"registration_number"`
	IBAN               string `json:"iban" mapstructure:"iban" yaml:"iban"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Currency:             "eur",
		DueDays:              14,
		InvoicePrefix:        "INV",
		CreditPrefix:         "CRN",
		OverdueSweepInterval: time.Hour,
	}
}
