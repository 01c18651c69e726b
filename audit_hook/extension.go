// Package audithook bridges Tuition lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                   = (*Extension)(nil)
	_ plugin.OnEntryCreated           = (*Extension)(nil)
	_ plugin.OnEntryReversed          = (*Extension)(nil)
	_ plugin.OnCreditApplied          = (*Extension)(nil)
	_ plugin.OnInvoiceGenerated       = (*Extension)(nil)
	_ plugin.OnInvoiceRecalculated    = (*Extension)(nil)
	_ plugin.OnInvoiceSent            = (*Extension)(nil)
	_ plugin.OnInvoicePaid            = (*Extension)(nil)
	_ plugin.OnInvoiceOverdue         = (*Extension)(nil)
	_ plugin.OnInvoiceCancelled       = (*Extension)(nil)
	_ plugin.OnCreditInvoiceCreated   = (*Extension)(nil)
	_ plugin.OnCreditInvoiceConfirmed = (*Extension)(nil)
	_ plugin.OnPaymentRecorded        = (*Extension)(nil)
	_ plugin.OnBatchCompleted         = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Tuition lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnEntryCreated implements plugin.OnEntryCreated.
func (e *Extension) OnEntryCreated(ctx context.Context, v interface{}) error {
	ent, ok := v.(*entry.Entry)
	if !ok {
		return nil
	}
	return e.record(ctx, ActionEntryCreated, SeverityInfo, OutcomeSuccess,
		ResourceEntry, ent.ID.String(), CategoryLedger, nil,
		"student_id", ent.StudentID,
		"type", string(ent.Type),
		"amount", ent.Amount.String(),
		"reference", ent.Reference,
		"created_by", ent.CreatedBy,
	)
}

// OnEntryReversed implements plugin.OnEntryReversed.
func (e *Extension) OnEntryReversed(ctx context.Context, original, offsetting interface{}) error {
	orig, ok := original.(*entry.Entry)
	if !ok {
		return nil
	}
	meta := []any{
		"student_id", orig.StudentID,
		"reference", orig.Reference,
	}
	if off, ok := offsetting.(*entry.Entry); ok {
		meta = append(meta,
			"offsetting_reference", off.Reference,
			"offsetting_amount", off.Amount.String(),
		)
	}
	return e.record(ctx, ActionEntryReversed, SeverityWarning, OutcomeSuccess,
		ResourceEntry, orig.ID.String(), CategoryLedger, nil, meta...)
}

// OnCreditApplied implements plugin.OnCreditApplied. The allocation result
// is recorded opaquely; per-application rows live in the store.
func (e *Extension) OnCreditApplied(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionCreditApplied, SeverityInfo, OutcomeSuccess,
		ResourceEntry, "", CategoryLedger, nil,
		"event", "credit_applied",
	)
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceGenerated implements plugin.OnInvoiceGenerated.
func (e *Extension) OnInvoiceGenerated(ctx context.Context, v interface{}) error {
	return e.recordInvoice(ctx, ActionInvoiceGenerated, SeverityInfo, v)
}

// OnInvoiceRecalculated implements plugin.OnInvoiceRecalculated.
func (e *Extension) OnInvoiceRecalculated(ctx context.Context, v interface{}) error {
	return e.recordInvoice(ctx, ActionInvoiceRecalculated, SeverityInfo, v)
}

// OnInvoiceSent implements plugin.OnInvoiceSent.
func (e *Extension) OnInvoiceSent(ctx context.Context, v interface{}) error {
	return e.recordInvoice(ctx, ActionInvoiceSent, SeverityInfo, v)
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (e *Extension) OnInvoicePaid(ctx context.Context, v interface{}) error {
	return e.recordInvoice(ctx, ActionInvoicePaid, SeverityInfo, v)
}

// OnInvoiceOverdue implements plugin.OnInvoiceOverdue.
func (e *Extension) OnInvoiceOverdue(ctx context.Context, v interface{}) error {
	return e.recordInvoice(ctx, ActionInvoiceOverdue, SeverityWarning, v)
}

// OnInvoiceCancelled implements plugin.OnInvoiceCancelled.
func (e *Extension) OnInvoiceCancelled(ctx context.Context, v interface{}, reason string) error {
	inv, ok := v.(*invoice.Invoice)
	if !ok {
		return nil
	}
	return e.record(ctx, ActionInvoiceCancelled, SeverityWarning, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, nil,
		"number", inv.Number,
		"student_id", inv.StudentID,
		"cancel_reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Credit invoice hooks
// ──────────────────────────────────────────────────

// OnCreditInvoiceCreated implements plugin.OnCreditInvoiceCreated.
func (e *Extension) OnCreditInvoiceCreated(ctx context.Context, credit, original interface{}) error {
	cr, ok := credit.(*invoice.Invoice)
	if !ok {
		return nil
	}
	meta := []any{
		"number", cr.Number,
		"student_id", cr.StudentID,
		"total", cr.Total.String(),
	}
	if orig, ok := original.(*invoice.Invoice); ok {
		meta = append(meta, "original_number", orig.Number)
	}
	return e.record(ctx, ActionCreditInvoiceCreated, SeverityInfo, OutcomeSuccess,
		ResourceCreditInvoice, cr.ID.String(), CategoryBilling, nil, meta...)
}

// OnCreditInvoiceConfirmed implements plugin.OnCreditInvoiceConfirmed.
func (e *Extension) OnCreditInvoiceConfirmed(ctx context.Context, credit interface{}) error {
	cr, ok := credit.(*invoice.Invoice)
	if !ok {
		return nil
	}
	return e.record(ctx, ActionCreditInvoiceConfirmed, SeverityInfo, OutcomeSuccess,
		ResourceCreditInvoice, cr.ID.String(), CategoryBilling, nil,
		"number", cr.Number,
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (e *Extension) OnPaymentRecorded(ctx context.Context, v interface{}, payment interface{}) error {
	inv, ok := v.(*invoice.Invoice)
	if !ok {
		return nil
	}
	meta := []any{
		"number", inv.Number,
		"student_id", inv.StudentID,
	}
	if p, ok := payment.(*invoice.Payment); ok {
		meta = append(meta,
			"amount", p.Amount.String(),
			"method", p.Method,
			"payment_reference", p.Reference,
		)
	}
	return e.record(ctx, ActionPaymentRecorded, SeverityInfo, OutcomeSuccess,
		ResourcePayment, inv.ID.String(), CategoryPayment, nil, meta...)
}

// ──────────────────────────────────────────────────
// Batch hooks
// ──────────────────────────────────────────────────

// OnBatchCompleted implements plugin.OnBatchCompleted.
func (e *Extension) OnBatchCompleted(ctx context.Context, generated, skipped int, elapsed time.Duration) error {
	outcome := OutcomeSuccess
	if skipped > 0 {
		outcome = OutcomePartial
	}
	return e.record(ctx, ActionBatchCompleted, SeverityInfo, outcome,
		ResourceBatch, "", CategoryBilling, nil,
		"generated", generated,
		"skipped", skipped,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func (e *Extension) recordInvoice(ctx context.Context, action, severity string, v interface{}) error {
	inv, ok := v.(*invoice.Invoice)
	if !ok {
		return nil
	}
	return e.record(ctx, action, severity, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, nil,
		"number", inv.Number,
		"student_id", inv.StudentID,
		"status", string(inv.Status),
		"total", inv.Total.String(),
	)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
