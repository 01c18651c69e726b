package audithook

// Action constants for audit events.
const (
	// Ledger actions
	ActionEntryCreated  = "entry.created"
	ActionEntryReversed = "entry.reversed"
	ActionCreditApplied = "credit.applied"

	// Invoice actions
	ActionInvoiceGenerated    = "invoice.generated"
	ActionInvoiceRecalculated = "invoice.recalculated"
	ActionInvoiceSent         = "invoice.sent"
	ActionInvoicePaid         = "invoice.paid"
	ActionInvoiceOverdue      = "invoice.overdue"
	ActionInvoiceCancelled    = "invoice.cancelled"

	// Credit invoice actions
	ActionCreditInvoiceCreated   = "credit_invoice.created"
	ActionCreditInvoiceConfirmed = "credit_invoice.confirmed"

	// Payment actions
	ActionPaymentRecorded = "payment.recorded"

	// Batch actions
	ActionBatchCompleted = "batch.completed"
)

// Resource constants for audit events.
const (
	ResourceEntry         = "entry"
	ResourceInvoice       = "invoice"
	ResourceCreditInvoice = "credit_invoice"
	ResourcePayment       = "payment"
	ResourceBatch         = "batch"
)

// Category constants for audit events.
const (
	CategoryLedger  = "ledger"
	CategoryBilling = "billing"
	CategoryPayment = "payment"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
