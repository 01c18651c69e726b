package tuition

import (
	"context"
	"fmt"

	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/types"
)

// CreateCreditInvoice builds a draft credit invoice that negates the
// selected lines of an issued original. The original is never mutated.
func (e *Engine) CreateCreditInvoice(ctx context.Context, originalInvoiceID id.InvoiceID, lineIDs []id.LineID) (*invoice.Invoice, error) {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if len(lineIDs) == 0 {
		return nil, ValidationError{Field: "lines", Message: "At least one invoice line must be selected for crediting"}
	}

	original, err := e.store.GetInvoice(ctx, originalInvoiceID)
	if err != nil {
		return nil, err
	}

	if original.Status == invoice.StatusDraft {
		return nil, invalidOp("Cannot create a credit invoice for a draft invoice")
	}
	if original.Status == invoice.StatusCancelled {
		return nil, invalidOp("Cannot create a credit invoice for a cancelled invoice")
	}
	if original.IsCreditInvoice {
		return nil, invalidOp("A credit invoice cannot be credited")
	}

	selected := make(map[string]bool, len(lineIDs))
	for _, lid := range lineIDs {
		selected[lid.String()] = true
	}

	lines := make([]invoice.Line, 0, len(lineIDs))
	for _, l := range original.Lines {
		if selected[l.ID.String()] {
			lines = append(lines, l.Negate())
			delete(selected, l.ID.String())
		}
	}
	if len(selected) > 0 {
		return nil, ValidationError{Field: "lines", Message: "Selected line does not belong to this invoice"}
	}

	unlock := e.lockStudent(original.StudentID)
	defer unlock()

	issueDate := e.now()
	number, err := e.nextInvoiceNumber(ctx, invoice.KindCredit, issueDate.Year())
	if err != nil {
		return nil, err
	}

	credit := &invoice.Invoice{
		Entity:            types.NewEntityAt(issueDate),
		ID:                id.NewInvoiceID(),
		Number:            number,
		StudentID:         original.StudentID,
		EnrollmentID:      original.EnrollmentID,
		Status:            invoice.StatusDraft,
		IssueDate:         issueDate,
		DueDate:           issueDate.AddDate(0, 0, e.dueDays),
		Period:            original.Period,
		PeriodType:        original.PeriodType,
		Description:       fmt.Sprintf("Credit invoice for %s", original.Number),
		Currency:          original.Currency,
		Lines:             lines,
		Payments:          []invoice.Payment{},
		AppliedAmount:     types.Zero(original.Currency),
		IsCreditInvoice:   true,
		OriginalInvoiceID: original.ID,
		CreatedBy:         actor,
		Version:           1,
	}
	credit.RecalculateTotals()

	if err := e.store.CreateInvoice(ctx, credit); err != nil {
		return nil, err
	}

	e.plugins.EmitCreditInvoiceCreated(ctx, credit, original)
	e.logger.Info("credit invoice created",
		"credit_invoice", credit.Number,
		"original", original.Number,
		"total", credit.Total,
		"lines", len(credit.Lines),
	)
	return credit, nil
}

// ConfirmCreditInvoice issues a draft credit invoice.
func (e *Engine) ConfirmCreditInvoice(ctx context.Context, creditInvoiceID id.InvoiceID) (*invoice.Invoice, error) {
	if _, err := e.requireActor(ctx); err != nil {
		return nil, err
	}

	credit, err := e.store.GetInvoice(ctx, creditInvoiceID)
	if err != nil {
		return nil, err
	}
	if !credit.IsCreditInvoice {
		return nil, invalidOp("This invoice is not a credit invoice")
	}

	unlock := e.lockStudent(credit.StudentID)
	defer unlock()

	credit, err = e.store.GetInvoice(ctx, creditInvoiceID)
	if err != nil {
		return nil, err
	}
	if credit.Status != invoice.StatusDraft {
		return nil, invalidOp("Credit invoice has already been confirmed")
	}

	sentAt := e.now()
	if err := e.store.MarkInvoiceSent(ctx, credit.ID, credit.Version, sentAt); err != nil {
		return nil, err
	}
	credit.Status = invoice.StatusSent
	credit.SentAt = &sentAt
	credit.Version++

	e.plugins.EmitCreditInvoiceConfirmed(ctx, credit)
	e.logger.Info("credit invoice confirmed", "credit_invoice", credit.Number)
	return credit, nil
}
