package tuition

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/types"
)

// CreateEntryInput carries the caller-supplied fields of a new ledger entry.
type CreateEntryInput struct {
	StudentID   string
	Type        entry.Type
	Amount      types.Money
	Description string
	// CourseID optionally ties the entry to a course.
	CourseID string
}

// CreateEntry records a credit or debit on a student's ledger. The entry
// starts Open with its full amount remaining.
func (e *Engine) CreateEntry(ctx context.Context, in CreateEntryInput) (*entry.Entry, error) {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if !in.Type.Valid() {
		return nil, ValidationError{Field: "type", Message: "Entry type must be credit or debit"}
	}
	if !in.Amount.IsPositive() {
		return nil, ValidationError{Field: "amount", Message: "Amount must be greater than zero"}
	}
	if in.Amount.Currency != e.currency {
		return nil, ValidationError{Field: "amount", Message: fmt.Sprintf("Amount must be in %s", strings.ToUpper(e.currency))}
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, ValidationError{Field: "description", Message: "A description is required"}
	}

	if err := e.requireSource(); err != nil {
		return nil, err
	}
	if _, err := e.source.GetStudent(ctx, in.StudentID); err != nil {
		return nil, ErrStudentNotFound
	}

	unlock := e.lockStudent(in.StudentID)
	defer unlock()

	reference, err := e.nextLedgerReference(ctx)
	if err != nil {
		return nil, err
	}

	ent := e.newEntry(in.StudentID, in.Type, in.Amount, in.Description, actor)
	ent.CourseID = in.CourseID
	ent.Reference = reference

	if err := e.store.CreateEntry(ctx, ent); err != nil {
		return nil, err
	}

	e.plugins.EmitEntryCreated(ctx, ent)
	e.logger.Info("ledger entry created",
		"entry", ent.ID,
		"student", ent.StudentID,
		"type", ent.Type,
		"amount", ent.Amount,
		"reference", ent.Reference,
	)
	return ent, nil
}

// newEntry builds an Open entry with the conservation invariant holding:
// applied zero, remaining equal to the amount.
func (e *Engine) newEntry(studentID string, typ entry.Type, amount types.Money, description, actor string) *entry.Entry {
	return &entry.Entry{
		Entity:          types.NewEntityAt(e.now()),
		ID:              id.NewEntryID(),
		StudentID:       studentID,
		Type:            typ,
		Status:          entry.StatusOpen,
		Amount:          amount,
		Description:     description,
		AppliedAmount:   types.Zero(amount.Currency),
		RemainingAmount: amount,
		CreatedBy:       actor,
		Version:         1,
	}
}

// nextLedgerReference allocates the next correction code, "LED-2026-00042".
func (e *Engine) nextLedgerReference(ctx context.Context) (string, error) {
	year := e.now().Year()
	seq, err := e.store.NextSequence(ctx, invoice.KindLedger, year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%05d", e.ledgerPrefix, year, seq), nil
}

// GetEntry retrieves a ledger entry by ID.
func (e *Engine) GetEntry(ctx context.Context, entryID id.EntryID) (*entry.Entry, error) {
	return e.store.GetEntry(ctx, entryID)
}

// ListEntries lists a student's ledger entries oldest-first.
func (e *Engine) ListEntries(ctx context.Context, studentID string, opts entry.ListOpts) ([]*entry.Entry, error) {
	return e.store.ListEntries(ctx, studentID, opts)
}

// EntryApplications lists the applications recorded against an entry.
func (e *Engine) EntryApplications(ctx context.Context, entryID id.EntryID) ([]*entry.Application, error) {
	if _, err := e.store.GetEntry(ctx, entryID); err != nil {
		return nil, err
	}
	return e.store.ListApplicationsForEntry(ctx, entryID)
}

// GetAvailableCredit returns the sum of remaining amounts over a student's
// Open credit entries.
func (e *Engine) GetAvailableCredit(ctx context.Context, studentID string) (types.Money, error) {
	return e.store.SumOpenCredit(ctx, studentID, e.currency)
}
