// Package tuition provides a billing ledger and invoice lifecycle engine for
// music school back-offices.
//
// Tuition is designed as a library, not a service. Import it directly into
// your Go application and wire it to your school administration system. It
// provides:
//
//   - A per-student credit/debit ledger with integer-cent arithmetic
//   - FIFO credit allocation against outstanding invoices
//   - Compensating reversals that never rewrite history
//   - Period-based invoice generation from lesson data, singly or in batch
//   - Credit invoices (credit notes) built from the lines of an original
//   - Payment recording with automatic settlement detection
//   - Pluggable lifecycle hooks and invoice formatters
//
// # Quick Start
//
// Create an engine with your preferred store and a billing source:
//
//	import (
//	    "github.com/xraph/tuition"
//	    "github.com/xraph/tuition/store/postgres"
//	)
//
//	// Initialize store over a grove database handle
//	store := postgres.New(db)
//
//	// Create engine
//	eng := tuition.New(store, tuition.WithSource(schoolAdmin))
//
//	// Start the engine (runs migrations, begins the overdue sweep)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Core Concepts
//
// Every mutating call carries an actor, the back-office user performing the
// operation:
//
//	ctx = tuition.WithActor(ctx, "anna@school.example")
//
// Ledger entries record money owed to a student (credit) or by a student
// (debit):
//
//	ent, err := eng.CreateEntry(ctx, tuition.CreateEntryInput{
//	    StudentID:   "stu-81",
//	    Type:        entry.TypeCredit,
//	    Amount:      tuition.EUR(10000), // €100.00
//	    Description: "Goodwill credit for cancelled lessons",
//	})
//
// Invoices are generated from lesson data per enrollment and period:
//
//	inv, err := eng.GenerateInvoice(ctx, "enr-4", tuition.MonthPeriod(time.Now()))
//
// Open credit is applied oldest-first against an invoice's outstanding
// balance:
//
//	res, err := eng.ApplyCreditsToInvoice(ctx, inv.ID)
//
// # Money
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in the smallest
// currency unit (cents for EUR, pence for GBP, etc). VAT rates are carried
// in basis points, so 2100 means 21%.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	ent_01h2xcejqtf2nbrexx3vqjhp41  // Ledger entry ID
//	inv_01h455vb4pex5vsknk084sn02q  // Invoice ID
//	app_01h455vb4pex5vsknk084sn02q  // Application ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities. Student, enrollment, course
// and lesson identifiers are opaque strings owned by the host system.
package tuition
