package tuition_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/entry"
)

func TestCreateEntry(t *testing.T) {
	src := newFakeSource()
	student := src.addStudent("stu-1", "Anna Jansen")
	eng := newTestEngine(t, src)
	ctx := actorCtx()

	t.Run("CreditEntry", func(t *testing.T) {
		ent, err := eng.CreateEntry(ctx, tuition.CreateEntryInput{
			StudentID:   student,
			Type:        entry.TypeCredit,
			Amount:      tuition.EUR(10000),
			Description: "Goodwill credit for cancelled lessons",
		})
		if err != nil {
			t.Fatalf("CreateEntry() error = %v", err)
		}
		if ent.Status != entry.StatusOpen {
			t.Errorf("status = %s, want %s", ent.Status, entry.StatusOpen)
		}
		if !ent.RemainingAmount.Equal(tuition.EUR(10000)) {
			t.Errorf("remaining = %s, want full amount", ent.RemainingAmount)
		}
		if !ent.AppliedAmount.IsZero() {
			t.Errorf("applied = %s, want zero", ent.AppliedAmount)
		}
		if ent.Reference != "LED-2026-00001" {
			t.Errorf("reference = %q, want LED-2026-00001", ent.Reference)
		}
		if ent.Version != 1 {
			t.Errorf("version = %d, want 1", ent.Version)
		}
		if ent.CreatedBy != "anna@school.example" {
			t.Errorf("created by = %q", ent.CreatedBy)
		}
	})

	t.Run("SequentialReferences", func(t *testing.T) {
		ent, err := eng.CreateEntry(ctx, tuition.CreateEntryInput{
			StudentID:   student,
			Type:        entry.TypeDebit,
			Amount:      tuition.EUR(500),
			Description: "Lost sheet music",
		})
		if err != nil {
			t.Fatalf("CreateEntry() error = %v", err)
		}
		if ent.Reference != "LED-2026-00002" {
			t.Errorf("reference = %q, want LED-2026-00002", ent.Reference)
		}
	})

	t.Run("ZeroAmount", func(t *testing.T) {
		_, err := eng.CreateEntry(ctx, tuition.CreateEntryInput{
			StudentID:   student,
			Type:        entry.TypeCredit,
			Amount:      tuition.EUR(0),
			Description: "Nothing",
		})
		var verr tuition.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
		if verr.Message != "Amount must be greater than zero" {
			t.Errorf("message = %q", verr.Message)
		}
	})

	t.Run("NegativeAmount", func(t *testing.T) {
		_, err := eng.CreateEntry(ctx, tuition.CreateEntryInput{
			StudentID:   student,
			Type:        entry.TypeCredit,
			Amount:      tuition.EUR(-100),
			Description: "Negative",
		})
		if !tuition.IsValidation(err) {
			t.Fatalf("error = %v, want validation error", err)
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := eng.CreateEntry(ctx, tuition.CreateEntryInput{
			StudentID:   student,
			Type:        entry.Type("refund"),
			Amount:      tuition.EUR(100),
			Description: "Bad type",
		})
		if !tuition.IsValidation(err) {
			t.Fatalf("error = %v, want validation error", err)
		}
	})

	t.Run("CurrencyMismatch", func(t *testing.T) {
		_, err := eng.CreateEntry(ctx, tuition.CreateEntryInput{
			StudentID:   student,
			Type:        entry.TypeCredit,
			Amount:      tuition.USD(100),
			Description: "Wrong currency",
		})
		if !tuition.IsValidation(err) {
			t.Fatalf("error = %v, want validation error", err)
		}
	})

	t.Run("MissingDescription", func(t *testing.T) {
		_, err := eng.CreateEntry(ctx, tuition.CreateEntryInput{
			StudentID:   student,
			Type:        entry.TypeCredit,
			Amount:      tuition.EUR(100),
			Description: "   ",
		})
		if !tuition.IsValidation(err) {
			t.Fatalf("error = %v, want validation error", err)
		}
	})

	t.Run("UnknownStudent", func(t *testing.T) {
		_, err := eng.CreateEntry(ctx, tuition.CreateEntryInput{
			StudentID:   "stu-missing",
			Type:        entry.TypeCredit,
			Amount:      tuition.EUR(100),
			Description: "Nobody",
		})
		if !errors.Is(err, tuition.ErrStudentNotFound) {
			t.Fatalf("error = %v, want ErrStudentNotFound", err)
		}
	})

	t.Run("MissingActor", func(t *testing.T) {
		_, err := eng.CreateEntry(context.Background(), tuition.CreateEntryInput{
			StudentID:   student,
			Type:        entry.TypeCredit,
			Amount:      tuition.EUR(100),
			Description: "No actor",
		})
		if !errors.Is(err, tuition.ErrUnauthorized) {
			t.Fatalf("error = %v, want ErrUnauthorized", err)
		}
	})
}

func TestGetAvailableCredit(t *testing.T) {
	src := newFakeSource()
	student := src.addStudent("stu-1", "Anna Jansen")
	eng := newTestEngine(t, src)
	ctx := actorCtx()

	// Two credits and a debit; only open credit counts.
	for _, cents := range []int64{10000, 2500} {
		if _, err := eng.CreateEntry(ctx, tuition.CreateEntryInput{
			StudentID:   student,
			Type:        entry.TypeCredit,
			Amount:      tuition.EUR(cents),
			Description: "Credit",
		}); err != nil {
			t.Fatalf("CreateEntry() error = %v", err)
		}
	}
	if _, err := eng.CreateEntry(ctx, tuition.CreateEntryInput{
		StudentID:   student,
		Type:        entry.TypeDebit,
		Amount:      tuition.EUR(9999),
		Description: "Debit",
	}); err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}

	available, err := eng.GetAvailableCredit(ctx, student)
	if err != nil {
		t.Fatalf("GetAvailableCredit() error = %v", err)
	}
	if !available.Equal(tuition.EUR(12500)) {
		t.Errorf("available = %s, want €125.00", available)
	}
}

func TestListEntries(t *testing.T) {
	src := newFakeSource()
	student := src.addStudent("stu-1", "Anna Jansen")
	src.addStudent("stu-2", "Ben Visser")
	eng := newTestEngine(t, src)
	ctx := actorCtx()

	amounts := []int64{100, 200, 300}
	for _, cents := range amounts {
		if _, err := eng.CreateEntry(ctx, tuition.CreateEntryInput{
			StudentID:   student,
			Type:        entry.TypeCredit,
			Amount:      tuition.EUR(cents),
			Description: "Credit",
		}); err != nil {
			t.Fatalf("CreateEntry() error = %v", err)
		}
	}
	if _, err := eng.CreateEntry(ctx, tuition.CreateEntryInput{
		StudentID:   "stu-2",
		Type:        entry.TypeCredit,
		Amount:      tuition.EUR(999),
		Description: "Other student",
	}); err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}

	entries, err := eng.ListEntries(ctx, student, entry.ListOpts{})
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	// Oldest first
	for i, cents := range amounts {
		if entries[i].Amount.Amount != cents {
			t.Errorf("entries[%d].Amount = %d, want %d", i, entries[i].Amount.Amount, cents)
		}
	}

	t.Run("FilterByType", func(t *testing.T) {
		credits, err := eng.ListEntries(ctx, student, entry.ListOpts{Type: entry.TypeDebit})
		if err != nil {
			t.Fatalf("ListEntries() error = %v", err)
		}
		if len(credits) != 0 {
			t.Errorf("len = %d, want 0 debits", len(credits))
		}
	})

	t.Run("Limit", func(t *testing.T) {
		page, err := eng.ListEntries(ctx, student, entry.ListOpts{Limit: 2, Offset: 1})
		if err != nil {
			t.Fatalf("ListEntries() error = %v", err)
		}
		if len(page) != 2 {
			t.Errorf("len = %d, want 2", len(page))
		}
	})
}

func TestEntryApplicationsUnknownEntry(t *testing.T) {
	src := newFakeSource()
	eng := newTestEngine(t, src)

	_, err := eng.EntryApplications(actorCtx(), newEntryID(t))
	if !errors.Is(err, tuition.ErrEntryNotFound) {
		t.Fatalf("error = %v, want ErrEntryNotFound", err)
	}
}
