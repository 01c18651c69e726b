package tuition_test

import (
	"errors"
	"testing"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/entry"
)

func TestReverseEntry(t *testing.T) {
	t.Run("OpenCredit", func(t *testing.T) {
		f := newBillingFixture(t)
		credit := f.addCredit(t, 10000)
		ctx := actorCtx()

		offsetting, err := f.eng.ReverseEntry(ctx, credit.ID, "Booked on the wrong student")
		if err != nil {
			t.Fatalf("ReverseEntry() error = %v", err)
		}

		if offsetting.Type != entry.TypeDebit {
			t.Errorf("offsetting type = %s, want debit", offsetting.Type)
		}
		if !offsetting.Amount.Equal(tuition.EUR(10000)) {
			t.Errorf("offsetting amount = %s, want €100.00", offsetting.Amount)
		}
		if offsetting.Status != entry.StatusOpen {
			t.Errorf("offsetting status = %s, want open", offsetting.Status)
		}
		if offsetting.ReversalOf != credit.ID {
			t.Error("offsetting entry does not point back at the original")
		}
		want := "Reversal of " + credit.Reference + ": Booked on the wrong student"
		if offsetting.Description != want {
			t.Errorf("description = %q, want %q", offsetting.Description, want)
		}

		original, err := f.eng.GetEntry(ctx, credit.ID)
		if err != nil {
			t.Fatalf("GetEntry() error = %v", err)
		}
		if original.Status != entry.StatusReversed {
			t.Errorf("original status = %s, want reversed", original.Status)
		}
		if original.ReversalID != offsetting.ID {
			t.Error("original does not link to the offsetting entry")
		}
		if !original.Amount.Equal(tuition.EUR(10000)) {
			t.Error("original amount was mutated")
		}
	})

	t.Run("PartiallyAppliedCredit", func(t *testing.T) {
		f := newBillingFixture(t)
		credit := f.addCredit(t, 20000) // invoice takes €121.00, €79.00 remains
		ctx := actorCtx()

		if _, err := f.eng.ApplyCreditsToInvoice(ctx, f.inv.ID); err != nil {
			t.Fatalf("ApplyCreditsToInvoice() error = %v", err)
		}

		offsetting, err := f.eng.ReverseEntry(ctx, credit.ID, "Credit granted in error")
		if err != nil {
			t.Fatalf("ReverseEntry() error = %v", err)
		}
		if !offsetting.Amount.Equal(tuition.EUR(7900)) {
			t.Errorf("offsetting amount = %s, want the €79.00 still unapplied", offsetting.Amount)
		}

		// The applied €121.00 stays applied; the invoice is untouched.
		original, err := f.eng.GetEntry(ctx, credit.ID)
		if err != nil {
			t.Fatalf("GetEntry() error = %v", err)
		}
		if !original.AppliedAmount.Equal(tuition.EUR(12100)) {
			t.Errorf("original applied = %s, want €121.00", original.AppliedAmount)
		}
	})

	t.Run("ReversedCreditTakesNoAllocation", func(t *testing.T) {
		f := newBillingFixture(t)
		credit := f.addCredit(t, 10000)
		ctx := actorCtx()

		if _, err := f.eng.ReverseEntry(ctx, credit.ID, "Wrong student"); err != nil {
			t.Fatalf("ReverseEntry() error = %v", err)
		}

		res, err := f.eng.ApplyCreditsToInvoice(ctx, f.inv.ID)
		if err != nil {
			t.Fatalf("ApplyCreditsToInvoice() error = %v", err)
		}
		if !res.AmountApplied.IsZero() {
			t.Errorf("applied = %s, reversed credit must be excluded", res.AmountApplied)
		}
	})

	t.Run("SecondReversalRejected", func(t *testing.T) {
		f := newBillingFixture(t)
		credit := f.addCredit(t, 10000)
		ctx := actorCtx()

		if _, err := f.eng.ReverseEntry(ctx, credit.ID, "First"); err != nil {
			t.Fatalf("ReverseEntry() error = %v", err)
		}
		_, err := f.eng.ReverseEntry(ctx, credit.ID, "Second")
		if !tuition.IsInvalidOperation(err) {
			t.Fatalf("error = %v, want invalid operation", err)
		}
	})

	t.Run("FullyAppliedRejected", func(t *testing.T) {
		f := newBillingFixture(t)
		credit := f.addCredit(t, 10000) // fully consumed by the €121.00 invoice
		ctx := actorCtx()

		if _, err := f.eng.ApplyCreditsToInvoice(ctx, f.inv.ID); err != nil {
			t.Fatalf("ApplyCreditsToInvoice() error = %v", err)
		}

		_, err := f.eng.ReverseEntry(ctx, credit.ID, "Too late")
		if !tuition.IsInvalidOperation(err) {
			t.Fatalf("error = %v, want invalid operation", err)
		}
		if err.Error() != "tuition: Cannot reverse a fully applied entry" {
			t.Errorf("message = %q", err.Error())
		}
	})

	t.Run("BlankReason", func(t *testing.T) {
		f := newBillingFixture(t)
		credit := f.addCredit(t, 10000)

		_, err := f.eng.ReverseEntry(actorCtx(), credit.ID, "  ")
		if !tuition.IsValidation(err) {
			t.Fatalf("error = %v, want validation error", err)
		}
	})

	t.Run("UnknownEntry", func(t *testing.T) {
		f := newBillingFixture(t)

		_, err := f.eng.ReverseEntry(actorCtx(), newEntryID(t), "Missing")
		if !errors.Is(err, tuition.ErrEntryNotFound) {
			t.Fatalf("error = %v, want ErrEntryNotFound", err)
		}
	})

	t.Run("DebitReversalCreatesCredit", func(t *testing.T) {
		f := newBillingFixture(t)
		ctx := actorCtx()
		debit, err := f.eng.CreateEntry(ctx, tuition.CreateEntryInput{
			StudentID:   f.student,
			Type:        entry.TypeDebit,
			Amount:      tuition.EUR(2500),
			Description: "Registration fee",
		})
		if err != nil {
			t.Fatalf("CreateEntry() error = %v", err)
		}

		offsetting, err := f.eng.ReverseEntry(ctx, debit.ID, "Fee waived")
		if err != nil {
			t.Fatalf("ReverseEntry() error = %v", err)
		}
		if offsetting.Type != entry.TypeCredit {
			t.Errorf("offsetting type = %s, want credit", offsetting.Type)
		}
	})
}
