// Package plugin provides an extensible plugin system for Tuition.
// Plugins can hook into billing lifecycle events to extend functionality.
package plugin

import (
	"context"
	"io"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnEntryCreated is called when a ledger entry is created.
type OnEntryCreated interface {
	Plugin
	OnEntryCreated(ctx context.Context, e interface{}) error
}

// OnEntryReversed is called when an entry is reversed. Both the original
// and the offsetting entry are passed.
type OnEntryReversed interface {
	Plugin
	OnEntryReversed(ctx context.Context, original, offsetting interface{}) error
}

// OnCreditApplied is called when an allocation commits applications
// against an invoice.
type OnCreditApplied interface {
	Plugin
	OnCreditApplied(ctx context.Context, result interface{}) error
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceGenerated is called when an invoice draft is generated.
type OnInvoiceGenerated interface {
	Plugin
	OnInvoiceGenerated(ctx context.Context, inv interface{}) error
}

// OnInvoiceRecalculated is called when a draft's lines are re-derived.
type OnInvoiceRecalculated interface {
	Plugin
	OnInvoiceRecalculated(ctx context.Context, inv interface{}) error
}

// OnInvoiceSent is called when an invoice is issued to the student.
type OnInvoiceSent interface {
	Plugin
	OnInvoiceSent(ctx context.Context, inv interface{}) error
}

// OnInvoicePaid is called when an invoice reaches paid.
type OnInvoicePaid interface {
	Plugin
	OnInvoicePaid(ctx context.Context, inv interface{}) error
}

// OnInvoiceOverdue is called when a sent invoice passes its due date.
type OnInvoiceOverdue interface {
	Plugin
	OnInvoiceOverdue(ctx context.Context, inv interface{}) error
}

// OnInvoiceCancelled is called when an invoice is cancelled.
type OnInvoiceCancelled interface {
	Plugin
	OnInvoiceCancelled(ctx context.Context, inv interface{}, reason string) error
}

// ──────────────────────────────────────────────────
// Credit invoice hooks
// ──────────────────────────────────────────────────

// OnCreditInvoiceCreated is called when a credit invoice draft is created.
type OnCreditInvoiceCreated interface {
	Plugin
	OnCreditInvoiceCreated(ctx context.Context, credit, original interface{}) error
}

// OnCreditInvoiceConfirmed is called when a credit invoice is confirmed.
type OnCreditInvoiceConfirmed interface {
	Plugin
	OnCreditInvoiceConfirmed(ctx context.Context, credit interface{}) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded is called when a payment lands against an invoice.
type OnPaymentRecorded interface {
	Plugin
	OnPaymentRecorded(ctx context.Context, inv interface{}, payment interface{}) error
}

// ──────────────────────────────────────────────────
// Batch hooks
// ──────────────────────────────────────────────────

// OnBatchCompleted is called after a batch generation run finishes,
// successfully generated and skipped counts included.
type OnBatchCompleted interface {
	Plugin
	OnBatchCompleted(ctx context.Context, generated, skipped int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Invoice formatters
// ──────────────────────────────────────────────────

// InvoiceFormatter renders a print projection for export. The engine
// assembles the projection; the formatter owns the presentation.
type InvoiceFormatter interface {
	Plugin
	Format() string // "pdf", "html", "csv", etc.
	Render(ctx context.Context, view any, w io.Writer) error
}
