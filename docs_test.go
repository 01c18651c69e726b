package tuition_test

import (
	"log/slog"
	"testing"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/types"
)

// TestDocumentationExamples verifies that the examples in the documentation
// compile and behave as documented.
func TestDocumentationExamples(t *testing.T) {
	// Quick Start example from the package docs
	t.Run("QuickStartExample", func(t *testing.T) {
		src := newFakeSource()
		student := src.addStudent("stu-81", "Mia de Vries")
		src.addEnrollment("enr-4", student)
		src.addLessons("enr-4", 4, 2500, 2100) // 4 × €25.00 + 21% VAT

		eng := newTestEngine(t, src, tuition.WithLogger(slog.Default()))
		ctx := tuition.WithActor(actorCtx(), "docs@school.example")

		// Record a goodwill credit on the student's ledger
		ent, err := eng.CreateEntry(ctx, tuition.CreateEntryInput{
			StudentID:   student,
			Type:        entry.TypeCredit,
			Amount:      tuition.EUR(10000), // €100.00
			Description: "Goodwill credit for cancelled lessons",
		})
		if err != nil {
			t.Fatal(err)
		}
		if ent.Status != entry.StatusOpen {
			t.Fatalf("entry status = %s, want %s", ent.Status, entry.StatusOpen)
		}

		// Generate the monthly invoice from lesson data
		inv, err := eng.GenerateInvoice(ctx, "enr-4", testPeriod)
		if err != nil {
			t.Fatal(err)
		}
		if inv.Total.IsZero() {
			t.Fatal("generated invoice has zero total")
		}

		// Apply open credit oldest-first against the invoice
		res, err := eng.ApplyCreditsToInvoice(ctx, inv.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !res.AmountApplied.IsPositive() {
			t.Fatal("no credit applied")
		}
	})

	// Money type examples
	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.EUR(4900)   // €49.00
		_ = types.USD(9900)   // $99.00
		_ = types.Zero("eur") // €0.00

		// Arithmetic
		m1 := types.EUR(100)
		m2 := types.EUR(200)
		_ = m1.Add(m2)     // €3.00
		_ = m1.Multiply(3) // €3.00

		// VAT is carried in basis points: 2100 is 21%
		vat := types.EUR(10000).ApplyBasisPoints(2100)
		if vat.Amount != 2100 {
			t.Fatalf("21%% of €100.00 = %s, want €21.00", vat)
		}

		// Comparison
		if !m1.LessThan(m2) {
			t.Fatal("€1.00 should be less than €2.00")
		}

		// Formatting
		_ = m1.String()      // "€1.00"
		_ = m1.FormatMajor() // "1.00"
	})
}
