package extension

import (
	"time"

	tuition "github.com/xraph/tuition"
	"github.com/xraph/tuition/plugin"
	"github.com/xraph/tuition/store"
)

// Option configures the Tuition Forge extension.
type Option func(*Extension)

// WithStore sets the store for the billing engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a tuition.Option through to the underlying engine.
func WithEngineOption(opt tuition.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a tuition plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, tuition.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithCurrency sets the billing currency (lowercase ISO 4217).
func WithCurrency(currency string) Option {
	return func(e *Extension) { e.config.Currency = currency }
}

// WithDueDays sets the payment term applied to generated invoices.
func WithDueDays(days int) Option {
	return func(e *Extension) { e.config.DueDays = days }
}

// WithNumberPrefixes sets the invoice and credit-invoice number prefixes.
func WithNumberPrefixes(invoicePrefix, creditPrefix string) Option {
	return func(e *Extension) {
		e.config.InvoicePrefix = invoicePrefix
		e.config.CreditPrefix = creditPrefix
	}
}

// WithOverdueSweepInterval sets how often the overdue sweep runs.
func WithOverdueSweepInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.OverdueSweepInterval = d }
}

// WithSchool sets the billing header identity for printable invoices.
func WithSchool(s SchoolConfig) Option {
	return func(e *Extension) { e.config.School = s }
}

// WithGroveDatabase sets the name of the grove.DB to resolve from the DI container.
// The extension expects the matching store backend (postgres/sqlite) to be
// constructed from that database and supplied via WithStore.
// Pass an empty string to use the default (unnamed) grove.DB.
func WithGroveDatabase(name string) Option {
	return func(e *Extension) {
		e.config.GroveDatabase = name
		e.useGrove = true
	}
}
