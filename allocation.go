package tuition

import (
	"context"
	"errors"

	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/types"
)

// AllocationResult reports what an allocation run did to an invoice.
type AllocationResult struct {
	InvoiceID        id.InvoiceID         `json:"invoice_id"`
	InvoiceNumber    string               `json:"invoice_number"`
	AmountApplied    types.Money          `json:"amount_applied"`
	RemainingBalance types.Money          `json:"remaining_balance"`
	Applications     []*entry.Application `json:"applications"`
}

// ApplyCreditsToInvoice consumes the student's Open credit entries against
// the invoice's outstanding balance, oldest credit first. An invoice with
// nothing outstanding yields a zero-effect result, not an error; calling
// twice in a row therefore never spends the same credit twice.
func (e *Engine) ApplyCreditsToInvoice(ctx context.Context, invoiceID id.InvoiceID) (*AllocationResult, error) {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return nil, err
	}

	inv, err := e.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	unlock := e.lockStudent(inv.StudentID)
	defer unlock()

	var result *AllocationResult
	for attempt := 0; ; attempt++ {
		result, err = e.allocateFIFO(ctx, invoiceID, actor)
		if err == nil {
			break
		}
		// Version conflicts come from writers outside this engine; the
		// per-student lock already serializes our own callers.
		if errors.Is(err, ErrVersionConflict) && attempt < e.maxRetries {
			continue
		}
		return nil, err
	}

	if result.AmountApplied.IsPositive() {
		e.plugins.EmitCreditApplied(ctx, result)
		e.logger.Info("credits applied",
			"invoice", result.InvoiceNumber,
			"applied", result.AmountApplied,
			"remaining", result.RemainingBalance,
			"applications", len(result.Applications),
		)
	}
	return result, nil
}

// allocateFIFO performs one read-compute-commit pass.
func (e *Engine) allocateFIFO(ctx context.Context, invoiceID id.InvoiceID, actor string) (*AllocationResult, error) {
	inv, err := e.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	outstanding := inv.BalanceDue()
	// Cancelled invoices and settled balances take no credit.
	if inv.Status == invoice.StatusCancelled || !outstanding.IsPositive() {
		return &AllocationResult{
			InvoiceID:        inv.ID,
			InvoiceNumber:    inv.Number,
			AmountApplied:    types.Zero(inv.Currency),
			RemainingBalance: outstanding,
			Applications:     []*entry.Application{},
		}, nil
	}

	credits, err := e.store.ListOpenCredits(ctx, inv.StudentID)
	if err != nil {
		return nil, err
	}

	commit := &entry.Commit{
		InvoiceID:      inv.ID,
		InvoiceVersion: inv.Version,
		AppliedTotal:   types.Zero(inv.Currency),
	}
	applied := types.Zero(inv.Currency)
	now := e.now()

	for _, credit := range credits {
		if !outstanding.IsPositive() {
			break
		}
		take := credit.RemainingAmount.Min(outstanding)

		commit.Deltas = append(commit.Deltas, entry.Delta{
			EntryID: credit.ID,
			Version: credit.Version,
			Amount:  take,
		})
		commit.Applications = append(commit.Applications, &entry.Application{
			ID:            id.NewApplicationID(),
			EntryID:       credit.ID,
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.Number,
			Amount:        take,
			AppliedAt:     now,
			AppliedBy:     actor,
		})

		applied = applied.Add(take)
		outstanding = outstanding.Subtract(take)
	}

	if applied.IsPositive() {
		commit.AppliedTotal = applied
		// Auto-pay only issued invoices: a fully offset draft stays a
		// draft until it is sent.
		commit.MarkPaid = outstanding.IsZero() &&
			(inv.Status == invoice.StatusSent || inv.Status == invoice.StatusOverdue)

		if err := e.store.CommitAllocation(ctx, commit); err != nil {
			return nil, err
		}
		if commit.MarkPaid {
			if paid, err := e.store.GetInvoice(ctx, inv.ID); err == nil {
				e.plugins.EmitInvoicePaid(ctx, paid)
			}
		}
	}

	return &AllocationResult{
		InvoiceID:        inv.ID,
		InvoiceNumber:    inv.Number,
		AmountApplied:    applied,
		RemainingBalance: outstanding,
		Applications:     commit.Applications,
	}, nil
}

// ApplyLedgerCorrection applies an explicit amount from one named credit
// entry to an invoice, for manual corrections where FIFO selection is not
// wanted.
func (e *Engine) ApplyLedgerCorrection(ctx context.Context, invoiceID id.InvoiceID, entryID id.EntryID, amount types.Money) (*AllocationResult, error) {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if !amount.IsPositive() {
		return nil, ValidationError{Field: "amount", Message: "Amount must be greater than zero"}
	}

	inv, err := e.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	unlock := e.lockStudent(inv.StudentID)
	defer unlock()

	// Re-read under the lock.
	inv, err = e.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	ent, err := e.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if ent.StudentID != inv.StudentID {
		return nil, invalidOp("Entry and invoice belong to different students")
	}
	if ent.Type != entry.TypeCredit {
		return nil, invalidOp("Only credit entries can be applied to an invoice")
	}
	if !ent.Allocatable() {
		return nil, invalidOp("Entry is not open for application")
	}
	if ent.RemainingAmount.LessThan(amount) {
		return nil, invalidOp("Entry has insufficient remaining credit")
	}

	outstanding := inv.BalanceDue()
	if inv.Status == invoice.StatusPaid || inv.Status == invoice.StatusCancelled || !outstanding.IsPositive() {
		return nil, invalidOp("Invoice has no outstanding balance")
	}
	if outstanding.LessThan(amount) {
		return nil, invalidOp("Amount exceeds the outstanding balance")
	}

	app := &entry.Application{
		ID:            id.NewApplicationID(),
		EntryID:       ent.ID,
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.Number,
		Amount:        amount,
		AppliedAt:     e.now(),
		AppliedBy:     actor,
	}
	commit := &entry.Commit{
		InvoiceID:      inv.ID,
		InvoiceVersion: inv.Version,
		AppliedTotal:   amount,
		MarkPaid: outstanding.Equal(amount) &&
			(inv.Status == invoice.StatusSent || inv.Status == invoice.StatusOverdue),
		Deltas: []entry.Delta{{
			EntryID: ent.ID,
			Version: ent.Version,
			Amount:  amount,
		}},
		Applications: []*entry.Application{app},
	}

	if err := e.store.CommitAllocation(ctx, commit); err != nil {
		return nil, err
	}

	result := &AllocationResult{
		InvoiceID:        inv.ID,
		InvoiceNumber:    inv.Number,
		AmountApplied:    amount,
		RemainingBalance: outstanding.Subtract(amount),
		Applications:     commit.Applications,
	}

	if commit.MarkPaid {
		if paid, err := e.store.GetInvoice(ctx, inv.ID); err == nil {
			e.plugins.EmitInvoicePaid(ctx, paid)
		}
	}
	e.plugins.EmitCreditApplied(ctx, result)
	e.logger.Info("ledger correction applied",
		"invoice", inv.Number,
		"entry", ent.Reference,
		"amount", amount,
	)
	return result, nil
}
