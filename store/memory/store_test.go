package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/types"
)

func newTestEntry(studentID string, typ entry.Type, cents int64) *entry.Entry {
	amount := types.EUR(cents)
	return &entry.Entry{
		Entity:          types.NewEntity(),
		ID:              id.NewEntryID(),
		StudentID:       studentID,
		Type:            typ,
		Status:          entry.StatusOpen,
		Amount:          amount,
		Description:     "test entry",
		AppliedAmount:   types.Zero("eur"),
		RemainingAmount: amount,
		CreatedBy:       "test",
		Version:         1,
	}
}

func newTestInvoice(studentID, number string, cents int64) *invoice.Invoice {
	total := types.EUR(cents)
	return &invoice.Invoice{
		Entity:        types.NewEntity(),
		ID:            id.NewInvoiceID(),
		Number:        number,
		StudentID:     studentID,
		Status:        invoice.StatusSent,
		IssueDate:     time.Now().UTC(),
		DueDate:       time.Now().UTC().AddDate(0, 0, 14),
		Currency:      "eur",
		Subtotal:      total,
		Total:         total,
		AppliedAmount: types.Zero("eur"),
		Version:       1,
	}
}

func TestEntryCRUD(t *testing.T) {
	s := New()
	ctx := context.Background()

	e := newTestEntry("stu-1", entry.TypeCredit, 10000)
	e.Reference = "LED-2026-00001"
	if err := s.CreateEntry(ctx, e); err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}
	if err := s.CreateEntry(ctx, e); !errors.Is(err, tuition.ErrAlreadyExists) {
		t.Fatalf("duplicate create error = %v, want ErrAlreadyExists", err)
	}

	got, err := s.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got.ID != e.ID || !got.Amount.Equal(e.Amount) {
		t.Error("stored entry does not round-trip")
	}

	// The store hands out copies, not its own pointers.
	got.Description = "mutated"
	again, _ := s.GetEntry(ctx, e.ID)
	if again.Description == "mutated" {
		t.Error("store leaked an internal pointer")
	}

	byRef, err := s.GetEntryByReference(ctx, "stu-1", "LED-2026-00001")
	if err != nil {
		t.Fatalf("GetEntryByReference() error = %v", err)
	}
	if byRef.ID != e.ID {
		t.Error("reference lookup returned a different entry")
	}
	if _, err := s.GetEntryByReference(ctx, "stu-2", "LED-2026-00001"); !errors.Is(err, tuition.ErrEntryNotFound) {
		t.Fatalf("foreign student lookup error = %v, want ErrEntryNotFound", err)
	}
}

func TestListOpenCreditsFIFO(t *testing.T) {
	s := New()
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	oldest := newTestEntry("stu-1", entry.TypeCredit, 100)
	oldest.CreatedAt = base
	newest := newTestEntry("stu-1", entry.TypeCredit, 200)
	newest.CreatedAt = base.Add(time.Hour)
	debit := newTestEntry("stu-1", entry.TypeDebit, 300)
	debit.CreatedAt = base

	// Insert newest first to prove ordering comes from timestamps.
	for _, e := range []*entry.Entry{newest, oldest, debit} {
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatalf("CreateEntry() error = %v", err)
		}
	}

	credits, err := s.ListOpenCredits(ctx, "stu-1")
	if err != nil {
		t.Fatalf("ListOpenCredits() error = %v", err)
	}
	if len(credits) != 2 {
		t.Fatalf("len = %d, want 2 (debit excluded)", len(credits))
	}
	if credits[0].ID != oldest.ID {
		t.Error("oldest credit not first")
	}

	sum, err := s.SumOpenCredit(ctx, "stu-1", "eur")
	if err != nil {
		t.Fatalf("SumOpenCredit() error = %v", err)
	}
	if !sum.Equal(types.EUR(300)) {
		t.Errorf("sum = %s, want €3.00", sum)
	}
}

func TestCommitAllocation(t *testing.T) {
	t.Run("AtomicCommit", func(t *testing.T) {
		s := New()
		ctx := context.Background()

		e := newTestEntry("stu-1", entry.TypeCredit, 10000)
		inv := newTestInvoice("stu-1", "INV-2026-00001", 12100)
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
		if err := s.CreateInvoice(ctx, inv); err != nil {
			t.Fatal(err)
		}

		app := &entry.Application{
			ID:            id.NewApplicationID(),
			EntryID:       e.ID,
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.Number,
			Amount:        types.EUR(10000),
			AppliedAt:     time.Now().UTC(),
			AppliedBy:     "test",
		}
		c := &entry.Commit{
			InvoiceID:      inv.ID,
			InvoiceVersion: inv.Version,
			AppliedTotal:   types.EUR(10000),
			Deltas:         []entry.Delta{{EntryID: e.ID, Version: e.Version, Amount: types.EUR(10000)}},
			Applications:   []*entry.Application{app},
		}
		if err := s.CommitAllocation(ctx, c); err != nil {
			t.Fatalf("CommitAllocation() error = %v", err)
		}

		gotEntry, _ := s.GetEntry(ctx, e.ID)
		if gotEntry.Status != entry.StatusApplied {
			t.Errorf("entry status = %s, want applied", gotEntry.Status)
		}
		if gotEntry.Version != 2 {
			t.Errorf("entry version = %d, want 2", gotEntry.Version)
		}
		gotInv, _ := s.GetInvoice(ctx, inv.ID)
		if !gotInv.AppliedAmount.Equal(types.EUR(10000)) {
			t.Errorf("invoice applied = %s, want €100.00", gotInv.AppliedAmount)
		}
		apps, _ := s.ListApplicationsForInvoice(ctx, inv.ID)
		if len(apps) != 1 {
			t.Errorf("len(applications) = %d, want 1", len(apps))
		}
	})

	t.Run("StaleEntryVersionAbortsWhole", func(t *testing.T) {
		s := New()
		ctx := context.Background()

		e := newTestEntry("stu-1", entry.TypeCredit, 10000)
		inv := newTestInvoice("stu-1", "INV-2026-00001", 12100)
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
		if err := s.CreateInvoice(ctx, inv); err != nil {
			t.Fatal(err)
		}

		c := &entry.Commit{
			InvoiceID:      inv.ID,
			InvoiceVersion: inv.Version,
			AppliedTotal:   types.EUR(10000),
			Deltas:         []entry.Delta{{EntryID: e.ID, Version: 99, Amount: types.EUR(10000)}},
			Applications: []*entry.Application{{
				ID:        id.NewApplicationID(),
				EntryID:   e.ID,
				InvoiceID: inv.ID,
				Amount:    types.EUR(10000),
				AppliedAt: time.Now().UTC(),
			}},
		}
		if err := s.CommitAllocation(ctx, c); !errors.Is(err, tuition.ErrVersionConflict) {
			t.Fatalf("error = %v, want ErrVersionConflict", err)
		}

		// Nothing moved.
		gotInv, _ := s.GetInvoice(ctx, inv.ID)
		if !gotInv.AppliedAmount.IsZero() {
			t.Error("invoice applied amount moved despite aborted commit")
		}
		apps, _ := s.ListApplicationsForInvoice(ctx, inv.ID)
		if len(apps) != 0 {
			t.Error("applications inserted despite aborted commit")
		}
	})

	t.Run("OverdrawAborts", func(t *testing.T) {
		s := New()
		ctx := context.Background()

		e := newTestEntry("stu-1", entry.TypeCredit, 100)
		inv := newTestInvoice("stu-1", "INV-2026-00001", 12100)
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
		if err := s.CreateInvoice(ctx, inv); err != nil {
			t.Fatal(err)
		}

		c := &entry.Commit{
			InvoiceID:      inv.ID,
			InvoiceVersion: inv.Version,
			AppliedTotal:   types.EUR(200),
			Deltas:         []entry.Delta{{EntryID: e.ID, Version: e.Version, Amount: types.EUR(200)}},
		}
		if err := s.CommitAllocation(ctx, c); !errors.Is(err, tuition.ErrInsufficientCredit) {
			t.Fatalf("error = %v, want ErrInsufficientCredit", err)
		}
	})

	t.Run("MarkPaid", func(t *testing.T) {
		s := New()
		ctx := context.Background()

		e := newTestEntry("stu-1", entry.TypeCredit, 12100)
		inv := newTestInvoice("stu-1", "INV-2026-00001", 12100)
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
		if err := s.CreateInvoice(ctx, inv); err != nil {
			t.Fatal(err)
		}

		c := &entry.Commit{
			InvoiceID:      inv.ID,
			InvoiceVersion: inv.Version,
			AppliedTotal:   types.EUR(12100),
			MarkPaid:       true,
			Deltas:         []entry.Delta{{EntryID: e.ID, Version: e.Version, Amount: types.EUR(12100)}},
		}
		if err := s.CommitAllocation(ctx, c); err != nil {
			t.Fatalf("CommitAllocation() error = %v", err)
		}
		gotInv, _ := s.GetInvoice(ctx, inv.ID)
		if gotInv.Status != invoice.StatusPaid {
			t.Errorf("status = %s, want paid", gotInv.Status)
		}
		if gotInv.PaidAt == nil {
			t.Error("PaidAt not set")
		}
	})
}

func TestReverseEntryStore(t *testing.T) {
	s := New()
	ctx := context.Background()

	original := newTestEntry("stu-1", entry.TypeCredit, 10000)
	if err := s.CreateEntry(ctx, original); err != nil {
		t.Fatal(err)
	}
	offsetting := newTestEntry("stu-1", entry.TypeDebit, 10000)
	offsetting.ReversalOf = original.ID

	if err := s.ReverseEntry(ctx, original, offsetting); err != nil {
		t.Fatalf("ReverseEntry() error = %v", err)
	}

	got, _ := s.GetEntry(ctx, original.ID)
	if got.Status != entry.StatusReversed {
		t.Errorf("status = %s, want reversed", got.Status)
	}
	if got.ReversalID != offsetting.ID {
		t.Error("original not linked to the offsetting entry")
	}
	if _, err := s.GetEntry(ctx, offsetting.ID); err != nil {
		t.Fatalf("offsetting entry not stored: %v", err)
	}

	t.Run("SecondReversal", func(t *testing.T) {
		again := newTestEntry("stu-1", entry.TypeDebit, 10000)
		fresh, _ := s.GetEntry(ctx, original.ID)
		if err := s.ReverseEntry(ctx, fresh, again); !errors.Is(err, tuition.ErrEntryReversed) {
			t.Fatalf("error = %v, want ErrEntryReversed", err)
		}
	})

	t.Run("StaleVersion", func(t *testing.T) {
		e := newTestEntry("stu-2", entry.TypeCredit, 100)
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
		stale := *e
		stale.Version = 42
		off := newTestEntry("stu-2", entry.TypeDebit, 100)
		if err := s.ReverseEntry(ctx, &stale, off); !errors.Is(err, tuition.ErrVersionConflict) {
			t.Fatalf("error = %v, want ErrVersionConflict", err)
		}
	})
}

func TestInvoiceLifecycleStore(t *testing.T) {
	s := New()
	ctx := context.Background()

	inv := newTestInvoice("stu-1", "INV-2026-00001", 12100)
	inv.Status = invoice.StatusDraft
	if err := s.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice() error = %v", err)
	}

	t.Run("DuplicateNumber", func(t *testing.T) {
		dup := newTestInvoice("stu-2", "INV-2026-00001", 100)
		if err := s.CreateInvoice(ctx, dup); !errors.Is(err, tuition.ErrDuplicateNumber) {
			t.Fatalf("error = %v, want ErrDuplicateNumber", err)
		}
	})

	t.Run("MarkSentCAS", func(t *testing.T) {
		if err := s.MarkInvoiceSent(ctx, inv.ID, 99, time.Now()); !errors.Is(err, tuition.ErrVersionConflict) {
			t.Fatalf("stale version error = %v, want ErrVersionConflict", err)
		}
		if err := s.MarkInvoiceSent(ctx, inv.ID, 1, time.Now().UTC()); err != nil {
			t.Fatalf("MarkInvoiceSent() error = %v", err)
		}
		got, _ := s.GetInvoice(ctx, inv.ID)
		if got.Status != invoice.StatusSent || got.SentAt == nil || got.Version != 2 {
			t.Errorf("after send: status=%s sentAt=%v version=%d", got.Status, got.SentAt, got.Version)
		}
	})

	t.Run("AddPayment", func(t *testing.T) {
		p := invoice.Payment{
			ID:     id.NewPaymentID(),
			Amount: types.EUR(12100),
			Method: "bank_transfer",
			PaidAt: time.Now().UTC(),
		}
		if err := s.AddPayment(ctx, inv.ID, 2, p, invoice.StatusPaid); err != nil {
			t.Fatalf("AddPayment() error = %v", err)
		}
		got, _ := s.GetInvoice(ctx, inv.ID)
		if got.Status != invoice.StatusPaid || len(got.Payments) != 1 || got.PaidAt == nil {
			t.Errorf("after payment: status=%s payments=%d", got.Status, len(got.Payments))
		}
	})
}

func TestOverdueCandidates(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	due := newTestInvoice("stu-1", "INV-2026-00001", 100)
	due.DueDate = now.AddDate(0, 0, -2)
	notDue := newTestInvoice("stu-1", "INV-2026-00002", 100)
	notDue.DueDate = now.AddDate(0, 0, 5)
	draft := newTestInvoice("stu-1", "INV-2026-00003", 100)
	draft.Status = invoice.StatusDraft
	draft.DueDate = now.AddDate(0, 0, -2)

	for _, inv := range []*invoice.Invoice{due, notDue, draft} {
		if err := s.CreateInvoice(ctx, inv); err != nil {
			t.Fatal(err)
		}
	}

	candidates, err := s.ListOverdueCandidates(ctx, now)
	if err != nil {
		t.Fatalf("ListOverdueCandidates() error = %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != due.ID {
		t.Fatalf("candidates = %d, want exactly the sent past-due invoice", len(candidates))
	}

	if err := s.MarkInvoiceOverdue(ctx, due.ID, due.Version); err != nil {
		t.Fatalf("MarkInvoiceOverdue() error = %v", err)
	}
	got, _ := s.GetInvoice(ctx, due.ID)
	if got.Status != invoice.StatusOverdue {
		t.Errorf("status = %s, want overdue", got.Status)
	}
}

func TestNextSequence(t *testing.T) {
	s := New()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := s.NextSequence(ctx, invoice.KindStandard, 2026)
		if err != nil {
			t.Fatalf("NextSequence() error = %v", err)
		}
		if got != want {
			t.Errorf("sequence = %d, want %d", got, want)
		}
	}

	// Kinds and years never share a sequence.
	if got, _ := s.NextSequence(ctx, invoice.KindCredit, 2026); got != 1 {
		t.Errorf("credit sequence = %d, want 1", got)
	}
	if got, _ := s.NextSequence(ctx, invoice.KindStandard, 2027); got != 1 {
		t.Errorf("2027 sequence = %d, want 1", got)
	}
}
