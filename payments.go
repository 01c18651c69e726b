package tuition

import (
	"context"
	"strings"

	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/types"
)

// RecordPaymentInput carries the fields of an incoming payment.
type RecordPaymentInput struct {
	InvoiceID id.InvoiceID
	Amount    types.Money
	Method    string // "bank_transfer", "cash", "direct_debit", ...
	Reference string // bank statement reference
}

// RecordPayment books money received against an issued invoice. When the
// payment settles the balance the invoice flips to paid in the same write.
func (e *Engine) RecordPayment(ctx context.Context, in RecordPaymentInput) (*invoice.Invoice, error) {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if !in.Amount.IsPositive() {
		return nil, ValidationError{Field: "amount", Message: "Amount must be greater than zero"}
	}
	if strings.TrimSpace(in.Method) == "" {
		return nil, ValidationError{Field: "method", Message: "A payment method is required"}
	}

	inv, err := e.store.GetInvoice(ctx, in.InvoiceID)
	if err != nil {
		return nil, err
	}

	unlock := e.lockStudent(inv.StudentID)
	defer unlock()

	inv, err = e.store.GetInvoice(ctx, in.InvoiceID)
	if err != nil {
		return nil, err
	}

	switch inv.Status {
	case invoice.StatusPaid:
		return nil, invalidOp("Invoice has already been paid")
	case invoice.StatusCancelled:
		return nil, invalidOp("Cannot record a payment on a cancelled invoice")
	case invoice.StatusDraft:
		return nil, invalidOp("Cannot record a payment on a draft invoice")
	}

	p := invoice.Payment{
		ID:         id.NewPaymentID(),
		Amount:     in.Amount,
		Method:     in.Method,
		Reference:  in.Reference,
		PaidAt:     e.now(),
		RecordedBy: actor,
	}

	var newStatus invoice.Status
	if !inv.BalanceDue().GreaterThan(in.Amount) {
		newStatus = invoice.StatusPaid
	}

	if err := e.store.AddPayment(ctx, inv.ID, inv.Version, p, newStatus); err != nil {
		return nil, err
	}

	updated, err := e.store.GetInvoice(ctx, inv.ID)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitPaymentRecorded(ctx, updated, &p)
	if newStatus == invoice.StatusPaid {
		e.plugins.EmitInvoicePaid(ctx, updated)
	}
	e.logger.Info("payment recorded",
		"invoice", updated.Number,
		"amount", p.Amount,
		"method", p.Method,
		"balance", updated.BalanceDue(),
	)
	return updated, nil
}

// MarkInvoiceSent issues a draft invoice to the student.
func (e *Engine) MarkInvoiceSent(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	if _, err := e.requireActor(ctx); err != nil {
		return nil, err
	}

	inv, err := e.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	unlock := e.lockStudent(inv.StudentID)
	defer unlock()

	inv, err = e.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.Status.CanTransition(invoice.StatusSent) {
		return nil, invalidOp("Only a draft invoice can be sent")
	}

	sentAt := e.now()
	if err := e.store.MarkInvoiceSent(ctx, inv.ID, inv.Version, sentAt); err != nil {
		return nil, err
	}
	inv.Status = invoice.StatusSent
	inv.SentAt = &sentAt
	inv.Version++

	e.plugins.EmitInvoiceSent(ctx, inv)
	e.logger.Info("invoice sent", "invoice", inv.Number, "due_date", inv.DueDate)
	return inv, nil
}

// CancelInvoice terminates an invoice. Paid invoices are settled history
// and cannot be cancelled.
func (e *Engine) CancelInvoice(ctx context.Context, invoiceID id.InvoiceID, reason string) (*invoice.Invoice, error) {
	if _, err := e.requireActor(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, ValidationError{Field: "reason", Message: "A reason is required to cancel an invoice"}
	}

	inv, err := e.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	unlock := e.lockStudent(inv.StudentID)
	defer unlock()

	inv, err = e.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case invoice.StatusPaid:
		return nil, invalidOp("Cannot cancel a paid invoice")
	case invoice.StatusCancelled:
		return nil, invalidOp("Invoice is already cancelled")
	}

	cancelledAt := e.now()
	if err := e.store.MarkInvoiceCancelled(ctx, inv.ID, inv.Version, cancelledAt, reason); err != nil {
		return nil, err
	}
	inv.Status = invoice.StatusCancelled
	inv.CancelledAt = &cancelledAt
	inv.CancelReason = reason
	inv.Version++

	e.plugins.EmitInvoiceCancelled(ctx, inv, reason)
	e.logger.Info("invoice cancelled", "invoice", inv.Number, "reason", reason)
	return inv, nil
}

// GetInvoice retrieves an invoice by ID.
func (e *Engine) GetInvoice(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	return e.store.GetInvoice(ctx, invoiceID)
}

// GetInvoiceByNumber retrieves an invoice by its formatted number.
func (e *Engine) GetInvoiceByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	return e.store.GetInvoiceByNumber(ctx, number)
}

// ListInvoices lists a student's invoices, oldest issue date first.
func (e *Engine) ListInvoices(ctx context.Context, studentID string, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	return e.store.ListInvoices(ctx, studentID, opts)
}

// InvoiceApplications lists the ledger applications recorded against an
// invoice.
func (e *Engine) InvoiceApplications(ctx context.Context, invoiceID id.InvoiceID) ([]*entry.Application, error) {
	if _, err := e.store.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	return e.store.ListApplicationsForInvoice(ctx, invoiceID)
}
