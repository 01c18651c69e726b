package tuition

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/id"
)

// ReverseEntry offsets a prior ledger entry with a new entry of the
// opposite type. The original is never deleted or amount-mutated; it is
// marked reversed and linked to the offsetting entry, which is what makes
// a second reversal rejectable. The offsetting entry covers the original's
// remaining unapplied amount and is itself Open.
func (e *Engine) ReverseEntry(ctx context.Context, entryID id.EntryID, reason string) (*entry.Entry, error) {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(reason) == "" {
		return nil, ValidationError{Field: "reason", Message: "A reason is required to reverse an entry"}
	}

	original, err := e.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	unlock := e.lockStudent(original.StudentID)
	defer unlock()

	// Re-read under the lock.
	original, err = e.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if original.IsReversed() {
		return nil, invalidOp("Entry has already been reversed")
	}
	if !original.RemainingAmount.IsPositive() {
		return nil, invalidOp("Cannot reverse a fully applied entry")
	}

	reference, err := e.nextLedgerReference(ctx)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Reversal of %s: %s", original.Reference, reason)
	offsetting := e.newEntry(original.StudentID, original.Type.Opposite(), original.RemainingAmount, description, actor)
	offsetting.CourseID = original.CourseID
	offsetting.Reference = reference
	offsetting.ReversalOf = original.ID

	if err := e.store.ReverseEntry(ctx, original, offsetting); err != nil {
		return nil, err
	}

	e.plugins.EmitEntryReversed(ctx, original, offsetting)
	e.logger.Info("ledger entry reversed",
		"original", original.Reference,
		"offsetting", offsetting.Reference,
		"amount", offsetting.Amount,
		"reason", reason,
	)
	return offsetting, nil
}
