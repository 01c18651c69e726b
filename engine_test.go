package tuition_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/store/memory"
	"github.com/xraph/tuition/types"
)

func TestEngineLifecycle(t *testing.T) {
	eng := tuition.New(memory.New(),
		tuition.WithSource(newFakeSource()),
		tuition.WithOverdueSweepInterval(0),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := eng.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestEngineWithoutSource(t *testing.T) {
	// Ledger and invoice reads work without a billing source; operations
	// that need student or lesson data fail cleanly instead of panicking.
	eng := tuition.New(memory.New(), tuition.WithOverdueSweepInterval(0))
	ctx := actorCtx()

	_, err := eng.CreateEntry(ctx, tuition.CreateEntryInput{
		StudentID:   "stu-1",
		Type:        entry.TypeCredit,
		Amount:      tuition.EUR(1000),
		Description: "Goodwill credit",
	})
	if !errors.Is(err, tuition.ErrSourceNotConfigured) {
		t.Errorf("CreateEntry() error = %v, want ErrSourceNotConfigured", err)
	}

	_, err = eng.GenerateInvoice(ctx, "enr-1", testPeriod)
	if !errors.Is(err, tuition.ErrSourceNotConfigured) {
		t.Errorf("GenerateInvoice() error = %v, want ErrSourceNotConfigured", err)
	}

	_, err = eng.GenerateBatchInvoices(ctx, testPeriod, types.PeriodMonthly)
	if !errors.Is(err, tuition.ErrSourceNotConfigured) {
		t.Errorf("GenerateBatchInvoices() error = %v, want ErrSourceNotConfigured", err)
	}

	_, err = eng.RecalculateInvoice(ctx, id.NewInvoiceID())
	if !errors.Is(err, tuition.ErrSourceNotConfigured) {
		t.Errorf("RecalculateInvoice() error = %v, want ErrSourceNotConfigured", err)
	}
}

func TestOverdueSweep(t *testing.T) {
	src := newFakeSource()
	student := src.addStudent("stu-1", "Anna Jansen")
	src.addEnrollment("enr-1", student)
	src.addLessons("enr-1", 2, 2500, 2100)

	// Negative payment terms put the due date in the past immediately,
	// so the first sweep tick flips the sent invoice.
	eng := tuition.New(memory.New(),
		tuition.WithSource(src),
		tuition.WithClock(func() time.Time { return testClock }),
		tuition.WithDueDays(-1),
		tuition.WithOverdueSweepInterval(10*time.Millisecond),
	)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer eng.Stop() //nolint:errcheck

	ctx := actorCtx()
	inv, err := eng.GenerateInvoice(ctx, "enr-1", testPeriod)
	if err != nil {
		t.Fatalf("GenerateInvoice() error = %v", err)
	}
	if _, err := eng.MarkInvoiceSent(ctx, inv.ID); err != nil {
		t.Fatalf("MarkInvoiceSent() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		got, err := eng.GetInvoice(ctx, inv.ID)
		if err != nil {
			t.Fatalf("GetInvoice() error = %v", err)
		}
		if got.Status == invoice.StatusOverdue {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("invoice status = %s, sweep never marked it overdue", got.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
