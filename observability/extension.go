// Package observability provides a metrics extension for Tuition that records
// lifecycle event counts through an injected MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                   = (*MetricsExtension)(nil)
	_ plugin.OnInit                   = (*MetricsExtension)(nil)
	_ plugin.OnEntryCreated           = (*MetricsExtension)(nil)
	_ plugin.OnEntryReversed          = (*MetricsExtension)(nil)
	_ plugin.OnCreditApplied          = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceGenerated       = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceRecalculated    = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceSent            = (*MetricsExtension)(nil)
	_ plugin.OnInvoicePaid            = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceOverdue         = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceCancelled       = (*MetricsExtension)(nil)
	_ plugin.OnCreditInvoiceCreated   = (*MetricsExtension)(nil)
	_ plugin.OnCreditInvoiceConfirmed = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRecorded        = (*MetricsExtension)(nil)
	_ plugin.OnBatchCompleted         = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Tuition plugin to automatically track billing metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Ledger metrics
	EntryCreated  Counter
	EntryReversed Counter
	CreditApplied Counter
	CreditAmount  Histogram

	// Invoice metrics
	InvoiceGenerated    Counter
	InvoiceRecalculated Counter
	InvoiceSent         Counter
	InvoicePaid         Counter
	InvoiceOverdue      Counter
	InvoiceCancelled    Counter
	InvoiceTotal        Histogram

	// Credit invoice metrics
	CreditInvoiceCreated   Counter
	CreditInvoiceConfirmed Counter

	// Payment metrics
	PaymentRecorded Counter
	PaymentAmount   Histogram

	// Batch metrics
	BatchGenerated Counter
	BatchSkipped   Counter
	BatchLatency   Histogram

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Ledger metrics
		EntryCreated:  factory.Counter("tuition.entry.created"),
		EntryReversed: factory.Counter("tuition.entry.reversed"),
		CreditApplied: factory.Counter("tuition.credit.applied"),
		CreditAmount:  factory.Histogram("tuition.credit.applied_amount"),

		// Invoice metrics
		InvoiceGenerated:    factory.Counter("tuition.invoice.generated"),
		InvoiceRecalculated: factory.Counter("tuition.invoice.recalculated"),
		InvoiceSent:         factory.Counter("tuition.invoice.sent"),
		InvoicePaid:         factory.Counter("tuition.invoice.paid"),
		InvoiceOverdue:      factory.Counter("tuition.invoice.overdue"),
		InvoiceCancelled:    factory.Counter("tuition.invoice.cancelled"),
		InvoiceTotal:        factory.Histogram("tuition.invoice.total_amount"),

		// Credit invoice metrics
		CreditInvoiceCreated:   factory.Counter("tuition.credit_invoice.created"),
		CreditInvoiceConfirmed: factory.Counter("tuition.credit_invoice.confirmed"),

		// Payment metrics
		PaymentRecorded: factory.Counter("tuition.payment.recorded"),
		PaymentAmount:   factory.Histogram("tuition.payment.amount"),

		// Batch metrics
		BatchGenerated: factory.Counter("tuition.batch.generated"),
		BatchSkipped:   factory.Counter("tuition.batch.skipped"),
		BatchLatency:   factory.Histogram("tuition.batch.latency_ms"),

		// Error metrics
		StoreErrors:  factory.Counter("tuition.store.errors"),
		PluginErrors: factory.Counter("tuition.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnEntryCreated implements plugin.OnEntryCreated.
func (m *MetricsExtension) OnEntryCreated(_ context.Context, _ interface{}) error {
	m.EntryCreated.Inc()
	return nil
}

// OnEntryReversed implements plugin.OnEntryReversed.
func (m *MetricsExtension) OnEntryReversed(_ context.Context, _, _ interface{}) error {
	m.EntryReversed.Inc()
	return nil
}

// OnCreditApplied implements plugin.OnCreditApplied.
func (m *MetricsExtension) OnCreditApplied(_ context.Context, _ interface{}) error {
	m.CreditApplied.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceGenerated implements plugin.OnInvoiceGenerated.
func (m *MetricsExtension) OnInvoiceGenerated(_ context.Context, v interface{}) error {
	m.InvoiceGenerated.Inc()
	if inv, ok := v.(*invoice.Invoice); ok {
		m.InvoiceTotal.Observe(float64(inv.Total.Amount))
	}
	return nil
}

// OnInvoiceRecalculated implements plugin.OnInvoiceRecalculated.
func (m *MetricsExtension) OnInvoiceRecalculated(_ context.Context, _ interface{}) error {
	m.InvoiceRecalculated.Inc()
	return nil
}

// OnInvoiceSent implements plugin.OnInvoiceSent.
func (m *MetricsExtension) OnInvoiceSent(_ context.Context, _ interface{}) error {
	m.InvoiceSent.Inc()
	return nil
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (m *MetricsExtension) OnInvoicePaid(_ context.Context, _ interface{}) error {
	m.InvoicePaid.Inc()
	return nil
}

// OnInvoiceOverdue implements plugin.OnInvoiceOverdue.
func (m *MetricsExtension) OnInvoiceOverdue(_ context.Context, _ interface{}) error {
	m.InvoiceOverdue.Inc()
	return nil
}

// OnInvoiceCancelled implements plugin.OnInvoiceCancelled.
func (m *MetricsExtension) OnInvoiceCancelled(_ context.Context, _ interface{}, _ string) error {
	m.InvoiceCancelled.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Credit invoice hooks
// ──────────────────────────────────────────────────

// OnCreditInvoiceCreated implements plugin.OnCreditInvoiceCreated.
func (m *MetricsExtension) OnCreditInvoiceCreated(_ context.Context, _, _ interface{}) error {
	m.CreditInvoiceCreated.Inc()
	return nil
}

// OnCreditInvoiceConfirmed implements plugin.OnCreditInvoiceConfirmed.
func (m *MetricsExtension) OnCreditInvoiceConfirmed(_ context.Context, _ interface{}) error {
	m.CreditInvoiceConfirmed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (m *MetricsExtension) OnPaymentRecorded(_ context.Context, _ interface{}, payment interface{}) error {
	m.PaymentRecorded.Inc()
	if p, ok := payment.(*invoice.Payment); ok {
		m.PaymentAmount.Observe(float64(p.Amount.Amount))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Batch hooks
// ──────────────────────────────────────────────────

// OnBatchCompleted implements plugin.OnBatchCompleted.
func (m *MetricsExtension) OnBatchCompleted(_ context.Context, generated, skipped int, elapsed time.Duration) error {
	m.BatchGenerated.Add(float64(generated))
	m.BatchSkipped.Add(float64(skipped))
	m.BatchLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
