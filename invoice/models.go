// Package invoice holds the invoice lifecycle model: drafts assembled from
// billable lessons, the sent/paid/overdue/cancelled state machine, payments,
// and credit invoices that negate lines of an issued original.
package invoice

import (
	"time"

	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/types"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// CanTransition reports whether the lifecycle permits moving to next.
// Draft -> Sent or Cancelled; Sent -> Paid, Overdue or Cancelled;
// Overdue -> Paid or Cancelled. Paid and Cancelled are terminal.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusSent || next == StatusCancelled
	case StatusSent:
		return next == StatusPaid || next == StatusOverdue || next == StatusCancelled
	case StatusOverdue:
		return next == StatusPaid || next == StatusCancelled
	}
	return false
}

// NumberKind selects a per-year numbering sequence. Standard and credit
// invoices never share a sequence; ledger correction references draw from
// their own.
type NumberKind string

const (
	KindStandard NumberKind = "standard"
	KindCredit   NumberKind = "credit"
	KindLedger   NumberKind = "ledger"
)

type Invoice struct {
	types.Entity
	ID           id.InvoiceID     `json:"id"`
	Number       string           `json:"number"` // "INV-2026-00042", unique
	StudentID    string           `json:"student_id"`
	EnrollmentID string           `json:"enrollment_id,omitempty"`
	Status       Status           `json:"status"`
	IssueDate    time.Time        `json:"issue_date"`
	DueDate      time.Time        `json:"due_date"`
	Period       types.Period     `json:"period"`
	PeriodType   types.PeriodType `json:"period_type,omitempty"`
	Description  string           `json:"description"`
	Currency     string           `json:"currency"`
	Subtotal     types.Money      `json:"subtotal"`
	VATAmount    types.Money      `json:"vat_amount"`
	Total        types.Money      `json:"total"`
	Lines        []Line           `json:"lines"`
	Payments     []Payment        `json:"payments"`
	// AppliedAmount is the denormalized sum of ledger applications against
	// this invoice; the authoritative rows live in the entry store.
	AppliedAmount types.Money `json:"applied_amount"`
	// IsCreditInvoice marks a negated-lines invoice; OriginalInvoiceID
	// points at the invoice whose lines it credits.
	IsCreditInvoice   bool         `json:"is_credit_invoice"`
	OriginalInvoiceID id.InvoiceID `json:"original_invoice_id,omitempty"`
	SentAt            *time.Time   `json:"sent_at,omitempty"`
	PaidAt            *time.Time   `json:"paid_at,omitempty"`
	CancelledAt       *time.Time   `json:"cancelled_at,omitempty"`
	CancelReason      string       `json:"cancel_reason,omitempty"`
	Notes             string       `json:"notes,omitempty"`
	CreatedBy         string       `json:"created_by"`
	Version           int64        `json:"version"`
}

// RecalculateTotals rebuilds Subtotal, VATAmount and Total from the lines.
func (inv *Invoice) RecalculateTotals() {
	subtotal := types.Zero(inv.Currency)
	vat := types.Zero(inv.Currency)
	for i := range inv.Lines {
		line := &inv.Lines[i]
		line.Total = line.UnitPrice.Multiply(line.Quantity)
		subtotal = subtotal.Add(line.Total)
		vat = vat.Add(line.Total.ApplyBasisPoints(line.VATRate))
	}
	inv.Subtotal = subtotal
	inv.VATAmount = vat
	inv.Total = subtotal.Add(vat)
}

// PaymentsTotal sums the recorded payments.
func (inv *Invoice) PaymentsTotal() types.Money {
	total := types.Zero(inv.Currency)
	for _, p := range inv.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// BalanceDue is what remains after payments and ledger applications.
func (inv *Invoice) BalanceDue() types.Money {
	return inv.Total.Subtract(inv.PaymentsTotal()).Subtract(inv.AppliedAmount)
}

// IsSettled reports whether nothing is outstanding.
func (inv *Invoice) IsSettled() bool {
	return !inv.BalanceDue().IsPositive()
}

// Line is one billable position on an invoice. Line IDs are the selection
// keys for crediting.
type Line struct {
	ID          id.LineID   `json:"id"`
	Description string      `json:"description"`
	Quantity    int64       `json:"quantity"`
	UnitPrice   types.Money `json:"unit_price"`
	VATRate     int64       `json:"vat_rate"` // basis points, 2100 = 21%
	Total       types.Money `json:"total"`
	// LessonID ties the line back to the scheduled lesson it bills.
	LessonID string `json:"lesson_id,omitempty"`
	// CreditedLineID points at the original line when this line is the
	// negation on a credit invoice.
	CreditedLineID id.LineID `json:"credited_line_id,omitempty"`
}

// Negate returns the crediting counterpart of the line: same quantity and
// rate, negated unit price, a fresh ID and a backref to the original.
func (l Line) Negate() Line {
	return Line{
		ID:             id.NewLineID(),
		Description:    l.Description,
		Quantity:       l.Quantity,
		UnitPrice:      l.UnitPrice.Negate(),
		VATRate:        l.VATRate,
		Total:          l.Total.Negate(),
		LessonID:       l.LessonID,
		CreditedLineID: l.ID,
	}
}

// Payment is money received against an invoice.
type Payment struct {
	ID         id.PaymentID `json:"id"`
	Amount     types.Money  `json:"amount"` // always positive
	Method     string       `json:"method"` // "bank_transfer", "cash", ...
	Reference  string       `json:"reference,omitempty"`
	PaidAt     time.Time    `json:"paid_at"`
	RecordedBy string       `json:"recorded_by"`
}
