package tuition_test

import (
	"errors"
	"testing"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/types"
)

func TestGenerateInvoice(t *testing.T) {
	t.Run("DraftFromLessons", func(t *testing.T) {
		src := newFakeSource()
		student := src.addStudent("stu-1", "Anna Jansen")
		src.addEnrollment("enr-1", student)
		src.addLessons("enr-1", 4, 2500, 2100)
		eng := newTestEngine(t, src)

		inv, err := eng.GenerateInvoice(actorCtx(), "enr-1", testPeriod)
		if err != nil {
			t.Fatalf("GenerateInvoice() error = %v", err)
		}

		if inv.Status != invoice.StatusDraft {
			t.Errorf("status = %s, want %s", inv.Status, invoice.StatusDraft)
		}
		if inv.Number != "INV-2026-00001" {
			t.Errorf("number = %q, want INV-2026-00001", inv.Number)
		}
		if len(inv.Lines) != 4 {
			t.Fatalf("len(lines) = %d, want 4", len(inv.Lines))
		}
		if !inv.Subtotal.Equal(tuition.EUR(10000)) {
			t.Errorf("subtotal = %s, want €100.00", inv.Subtotal)
		}
		if !inv.VATAmount.Equal(tuition.EUR(2100)) {
			t.Errorf("vat = %s, want €21.00", inv.VATAmount)
		}
		if !inv.Total.Equal(tuition.EUR(12100)) {
			t.Errorf("total = %s, want €121.00", inv.Total)
		}
		if !inv.DueDate.Equal(testClock.AddDate(0, 0, 14)) {
			t.Errorf("due date = %s, want issue + 14 days", inv.DueDate)
		}
		if inv.Description != "Piano, 01 Feb 2026 – 28 Feb 2026" {
			t.Errorf("description = %q", inv.Description)
		}
		if inv.StudentID != student {
			t.Errorf("student = %q, want %q", inv.StudentID, student)
		}
	})

	t.Run("SequentialNumbers", func(t *testing.T) {
		src := newFakeSource()
		student := src.addStudent("stu-1", "Anna Jansen")
		src.addEnrollment("enr-1", student)
		src.addLessons("enr-1", 2, 2500, 2100)
		eng := newTestEngine(t, src)
		ctx := actorCtx()

		first, err := eng.GenerateInvoice(ctx, "enr-1", testPeriod)
		if err != nil {
			t.Fatalf("GenerateInvoice() error = %v", err)
		}
		second, err := eng.GenerateInvoice(ctx, "enr-1", testPeriod)
		if err != nil {
			t.Fatalf("GenerateInvoice() error = %v", err)
		}
		if first.Number != "INV-2026-00001" || second.Number != "INV-2026-00002" {
			t.Errorf("numbers = %q, %q", first.Number, second.Number)
		}
	})

	t.Run("NoLessons", func(t *testing.T) {
		src := newFakeSource()
		student := src.addStudent("stu-1", "Anna Jansen")
		src.addEnrollment("enr-1", student)
		eng := newTestEngine(t, src)

		_, err := eng.GenerateInvoice(actorCtx(), "enr-1", testPeriod)
		if !tuition.IsInvalidOperation(err) {
			t.Fatalf("error = %v, want invalid operation", err)
		}
		if err.Error() != "tuition: No lessons found for this period." {
			t.Errorf("message = %q", err.Error())
		}
	})

	t.Run("NonBillableEnrollment", func(t *testing.T) {
		src := newFakeSource()
		student := src.addStudent("stu-1", "Anna Jansen")
		enr := src.addEnrollment("enr-1", student)
		enr.Billable = false
		src.addLessons("enr-1", 4, 2500, 2100)
		eng := newTestEngine(t, src)

		_, err := eng.GenerateInvoice(actorCtx(), "enr-1", testPeriod)
		if !tuition.IsInvalidOperation(err) {
			t.Fatalf("error = %v, want invalid operation", err)
		}
	})

	t.Run("UnknownEnrollment", func(t *testing.T) {
		src := newFakeSource()
		eng := newTestEngine(t, src)

		_, err := eng.GenerateInvoice(actorCtx(), "enr-missing", testPeriod)
		if !errors.Is(err, tuition.ErrEnrollmentNotFound) {
			t.Fatalf("error = %v, want ErrEnrollmentNotFound", err)
		}
	})

	t.Run("InvalidPeriod", func(t *testing.T) {
		src := newFakeSource()
		student := src.addStudent("stu-1", "Anna Jansen")
		src.addEnrollment("enr-1", student)
		eng := newTestEngine(t, src)

		_, err := eng.GenerateInvoice(actorCtx(), "enr-1", types.Period{})
		if !tuition.IsValidation(err) {
			t.Fatalf("error = %v, want validation error", err)
		}
	})

	t.Run("RegistrationFeeDebitedOnce", func(t *testing.T) {
		src := newFakeSource()
		student := src.addStudent("stu-1", "Anna Jansen")
		enr := src.addEnrollment("enr-1", student)
		enr.RegistrationFee = tuition.EUR(2500)
		src.addLessons("enr-1", 2, 2500, 2100)
		eng := newTestEngine(t, src)
		ctx := actorCtx()

		if _, err := eng.GenerateInvoice(ctx, "enr-1", testPeriod); err != nil {
			t.Fatalf("GenerateInvoice() error = %v", err)
		}
		// Regenerating must not debit the fee again.
		if _, err := eng.GenerateInvoice(ctx, "enr-1", testPeriod); err != nil {
			t.Fatalf("GenerateInvoice() error = %v", err)
		}

		debits, err := eng.ListEntries(ctx, student, entry.ListOpts{Type: entry.TypeDebit})
		if err != nil {
			t.Fatalf("ListEntries() error = %v", err)
		}
		if len(debits) != 1 {
			t.Fatalf("len(debits) = %d, want exactly one registration debit", len(debits))
		}
		if debits[0].Reference != "REG-enr-1" {
			t.Errorf("reference = %q, want REG-enr-1", debits[0].Reference)
		}
		if !debits[0].Amount.Equal(tuition.EUR(2500)) {
			t.Errorf("amount = %s, want €25.00", debits[0].Amount)
		}
	})
}

func TestRecalculateInvoice(t *testing.T) {
	t.Run("DraftPicksUpNewLessons", func(t *testing.T) {
		src := newFakeSource()
		student := src.addStudent("stu-1", "Anna Jansen")
		src.addEnrollment("enr-1", student)
		src.addLessons("enr-1", 2, 2500, 2100)
		eng := newTestEngine(t, src)
		ctx := actorCtx()

		inv, err := eng.GenerateInvoice(ctx, "enr-1", testPeriod)
		if err != nil {
			t.Fatalf("GenerateInvoice() error = %v", err)
		}

		// Two more lessons land in the period.
		src.addLessons("enr-1", 2, 2500, 2100)

		updated, err := eng.RecalculateInvoice(ctx, inv.ID)
		if err != nil {
			t.Fatalf("RecalculateInvoice() error = %v", err)
		}
		if len(updated.Lines) != 4 {
			t.Errorf("len(lines) = %d, want 4", len(updated.Lines))
		}
		if !updated.Total.Equal(tuition.EUR(12100)) {
			t.Errorf("total = %s, want €121.00", updated.Total)
		}
		if updated.Version != inv.Version+1 {
			t.Errorf("version = %d, want %d", updated.Version, inv.Version+1)
		}
		if updated.Number != inv.Number {
			t.Errorf("number changed: %q -> %q", inv.Number, updated.Number)
		}
	})

	t.Run("SentInvoiceRejected", func(t *testing.T) {
		src := newFakeSource()
		student := src.addStudent("stu-1", "Anna Jansen")
		src.addEnrollment("enr-1", student)
		src.addLessons("enr-1", 2, 2500, 2100)
		eng := newTestEngine(t, src)
		ctx := actorCtx()

		inv, err := eng.GenerateInvoice(ctx, "enr-1", testPeriod)
		if err != nil {
			t.Fatalf("GenerateInvoice() error = %v", err)
		}
		if _, err := eng.MarkInvoiceSent(ctx, inv.ID); err != nil {
			t.Fatalf("MarkInvoiceSent() error = %v", err)
		}

		_, err = eng.RecalculateInvoice(ctx, inv.ID)
		if !tuition.IsInvalidOperation(err) {
			t.Fatalf("error = %v, want invalid operation", err)
		}
		if err.Error() != "tuition: Cannot recalculate a paid invoice" {
			t.Errorf("message = %q", err.Error())
		}
	})

	t.Run("CreditInvoiceRejected", func(t *testing.T) {
		f := newBillingFixture(t)
		ctx := actorCtx()

		lineIDs := []id.LineID{f.inv.Lines[0].ID, f.inv.Lines[1].ID}
		credit, err := f.eng.CreateCreditInvoice(ctx, f.inv.ID, lineIDs)
		if err != nil {
			t.Fatalf("CreateCreditInvoice() error = %v", err)
		}

		// A draft credit invoice must not be re-derivable from lesson data.
		_, err = f.eng.RecalculateInvoice(ctx, credit.ID)
		if !tuition.IsInvalidOperation(err) {
			t.Fatalf("error = %v, want invalid operation", err)
		}
		if err.Error() != "tuition: Cannot recalculate a credit invoice" {
			t.Errorf("message = %q", err.Error())
		}

		// The credit invoice keeps its negated lines and negative total.
		got, err := f.eng.GetInvoice(ctx, credit.ID)
		if err != nil {
			t.Fatalf("GetInvoice() error = %v", err)
		}
		if !got.Total.Equal(tuition.EUR(-6050)) {
			t.Errorf("total = %s, want -€60.50", got.Total)
		}
		if len(got.Lines) != 2 {
			t.Errorf("len(lines) = %d, want 2", len(got.Lines))
		}
		if !got.IsCreditInvoice {
			t.Error("IsCreditInvoice = false")
		}
	})
}

func TestGenerateBatchInvoices(t *testing.T) {
	t.Run("SkipsDoNotFailTheRun", func(t *testing.T) {
		src := newFakeSource()
		for i, sid := range []string{"stu-1", "stu-2", "stu-3", "stu-4", "stu-5"} {
			src.addStudent(sid, "Student")
			enrID := "enr-" + sid
			src.addEnrollment(enrID, sid)
			// The fourth enrollment has no lessons this period.
			if i != 3 {
				src.addLessons(enrID, 2, 2500, 2100)
			}
		}
		eng := newTestEngine(t, src)

		res, err := eng.GenerateBatchInvoices(actorCtx(), testPeriod, types.PeriodMonthly)
		if err != nil {
			t.Fatalf("GenerateBatchInvoices() error = %v", err)
		}
		if len(res.Invoices) != 4 {
			t.Errorf("len(invoices) = %d, want 4", len(res.Invoices))
		}
		if len(res.Skipped) != 1 {
			t.Fatalf("len(skipped) = %d, want 1", len(res.Skipped))
		}
		if res.Skipped[0].EnrollmentID != "enr-stu-4" {
			t.Errorf("skipped = %q, want enr-stu-4", res.Skipped[0].EnrollmentID)
		}
	})

	t.Run("CadenceFilter", func(t *testing.T) {
		src := newFakeSource()
		src.addStudent("stu-1", "Anna Jansen")
		src.addEnrollment("enr-1", "stu-1")
		src.addLessons("enr-1", 2, 2500, 2100)

		src.addStudent("stu-2", "Ben Visser")
		quarterly := src.addEnrollment("enr-2", "stu-2")
		quarterly.InvoicingPreference = types.PeriodQuarterly
		src.addLessons("enr-2", 2, 2500, 2100)

		eng := newTestEngine(t, src)

		res, err := eng.GenerateBatchInvoices(actorCtx(), testPeriod, types.PeriodMonthly)
		if err != nil {
			t.Fatalf("GenerateBatchInvoices() error = %v", err)
		}
		if len(res.Invoices) != 1 {
			t.Fatalf("len(invoices) = %d, want only the monthly enrollment", len(res.Invoices))
		}
		if res.Invoices[0].EnrollmentID != "enr-1" {
			t.Errorf("enrollment = %q, want enr-1", res.Invoices[0].EnrollmentID)
		}
	})

	t.Run("NoQualifyingEnrollments", func(t *testing.T) {
		src := newFakeSource()
		eng := newTestEngine(t, src)

		_, err := eng.GenerateBatchInvoices(actorCtx(), testPeriod, types.PeriodYearly)
		if !tuition.IsInvalidOperation(err) {
			t.Fatalf("error = %v, want invalid operation", err)
		}
	})

	t.Run("UnknownPeriodType", func(t *testing.T) {
		src := newFakeSource()
		eng := newTestEngine(t, src)

		_, err := eng.GenerateBatchInvoices(actorCtx(), testPeriod, types.PeriodType("weekly"))
		if !tuition.IsValidation(err) {
			t.Fatalf("error = %v, want validation error", err)
		}
	})
}
