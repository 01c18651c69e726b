// Package extension provides the Forge extension adapter for Tuition.
//
// It implements the forge.Extension interface to integrate the Tuition
// billing engine into a Forge application with automatic dependency
// discovery, DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.tuition" or
// "tuition" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	tuition "github.com/xraph/tuition"
	"github.com/xraph/tuition/store"
	"github.com/xraph/tuition/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tuition"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Billing ledger and invoice lifecycle engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Tuition as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *tuition.Engine
	store      store.Store
	engineOpts []tuition.Option
	useGrove   bool
}

// New creates a new Tuition Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Tuition engine.
// This is nil until Register is called.
func (e *Extension) Engine() *tuition.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the billing engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		if e.useGrove {
			return errors.New("tuition: grove database configured but no store provided; " +
				"build a postgres or sqlite store from the grove.DB and pass it via WithStore")
		}
		// Fall back to the in-memory store when nothing was provided.
		e.store = memory.New()
	}

	// Build engine options from resolved config.
	opts := e.buildEngineOpts()

	eng := tuition.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*tuition.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("tuition: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("tuition: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs tuition.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []tuition.Option {
	opts := make([]tuition.Option, 0, len(e.engineOpts)+5)

	if e.config.Currency != "" {
		opts = append(opts, tuition.WithCurrency(e.config.Currency))
	}
	if e.config.DueDays > 0 {
		opts = append(opts, tuition.WithDueDays(e.config.DueDays))
	}
	if e.config.InvoicePrefix != "" || e.config.CreditPrefix != "" {
		inv := e.config.InvoicePrefix
		crn := e.config.CreditPrefix
		defaults := DefaultConfig()
		if inv == "" {
			inv = defaults.InvoicePrefix
		}
		if crn == "" {
			crn = defaults.CreditPrefix
		}
		opts = append(opts, tuition.WithNumberPrefixes(inv, crn))
	}
	if e.config.OverdueSweepInterval > 0 {
		opts = append(opts, tuition.WithOverdueSweepInterval(e.config.OverdueSweepInterval))
	}
	if e.config.School != (SchoolConfig{}) {
		opts = append(opts, tuition.WithSchoolProfile(tuition.SchoolProfile{
			Name:               e.config.School.Name,
			Address:            e.config.School.Address,
			VATNumber:          e.config.School.VATNumber,
			RegistrationNumber: e.config.School.RegistrationNumber,
			IBAN:               e.config.School.IBAN,
		}))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("tuition: configuration is required but not found in config files; " +
				"ensure 'extensions.tuition' or 'tuition' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("tuition: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("currency", e.config.Currency),
		forge.F("due_days", e.config.DueDays),
		forge.F("invoice_prefix", e.config.InvoicePrefix),
		forge.F("credit_prefix", e.config.CreditPrefix),
		forge.F("overdue_sweep_interval", e.config.OverdueSweepInterval),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.tuition" first (namespaced pattern).
	if cm.IsSet("extensions.tuition") {
		if err := cm.Bind("extensions.tuition", &cfg); err == nil {
			e.Logger().Debug("tuition: loaded config from file",
				forge.F("key", "extensions.tuition"),
			)
			return cfg, true
		}
		e.Logger().Warn("tuition: failed to bind extensions.tuition config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "tuition" key.
	if cm.IsSet("tuition") {
		if err := cm.Bind("tuition", &cfg); err == nil {
			e.Logger().Debug("tuition: loaded config from file",
				forge.F("key", "tuition"),
			)
			return cfg, true
		}
		e.Logger().Warn("tuition: failed to bind tuition config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.DueDays == 0 {
		cfg.DueDays = defaults.DueDays
	}
	if cfg.InvoicePrefix == "" {
		cfg.InvoicePrefix = defaults.InvoicePrefix
	}
	if cfg.CreditPrefix == "" {
		cfg.CreditPrefix = defaults.CreditPrefix
	}
	if cfg.OverdueSweepInterval == 0 {
		cfg.OverdueSweepInterval = defaults.OverdueSweepInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.Currency == "" && programmaticConfig.Currency != "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.InvoicePrefix == "" && programmaticConfig.InvoicePrefix != "" {
		yamlConfig.InvoicePrefix = programmaticConfig.InvoicePrefix
	}
	if yamlConfig.CreditPrefix == "" && programmaticConfig.CreditPrefix != "" {
		yamlConfig.CreditPrefix = programmaticConfig.CreditPrefix
	}
	if yamlConfig.GroveDatabase == "" && programmaticConfig.GroveDatabase != "" {
		yamlConfig.GroveDatabase = programmaticConfig.GroveDatabase
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.DueDays == 0 && programmaticConfig.DueDays != 0 {
		yamlConfig.DueDays = programmaticConfig.DueDays
	}
	if yamlConfig.OverdueSweepInterval == 0 && programmaticConfig.OverdueSweepInterval != 0 {
		yamlConfig.OverdueSweepInterval = programmaticConfig.OverdueSweepInterval
	}

	// School identity: YAML takes precedence wholesale.
	if yamlConfig.School == (SchoolConfig{}) && programmaticConfig.School != (SchoolConfig{}) {
		yamlConfig.School = programmaticConfig.School
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
