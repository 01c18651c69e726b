// Package entry holds the student ledger: credit and debit entries, the
// immutable applications linking them to invoices, and the atomic commit
// unit used by the allocation engine.
package entry

import (
	"time"

	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/types"
)

// Type distinguishes money owed to the student from money the student owes.
type Type string

const (
	TypeCredit Type = "credit" // reduces what the student owes
	TypeDebit  Type = "debit"  // increases what the student owes
)

// Valid returns true for a known entry type.
func (t Type) Valid() bool {
	return t == TypeCredit || t == TypeDebit
}

// Opposite returns the offsetting type, used when reversing an entry.
func (t Type) Opposite() Type {
	if t == TypeCredit {
		return TypeDebit
	}
	return TypeCredit
}

// Status is the lifecycle state of a ledger entry.
type Status string

const (
	StatusOpen     Status = "open"     // remaining amount > 0, allocatable
	StatusApplied  Status = "applied"  // fully consumed by applications
	StatusReversed Status = "reversed" // offset by a reversal entry
)

// Entry is a single row in a student's ledger. Entries are never edited or
// deleted after creation: applications consume them and reversals offset
// them with a new entry of the opposite type.
type Entry struct {
	types.Entity
	ID          id.EntryID  `json:"id"`
	StudentID   string      `json:"student_id"`
	Type        Type        `json:"type"`
	Status      Status      `json:"status"`
	Amount      types.Money `json:"amount"` // always positive
	Description string      `json:"description"`
	CourseID    string      `json:"course_id,omitempty"`
	// Reference is the human-readable correction code ("LED-2026-00042" or
	// "REG-<enrollment>") quoted in reversal descriptions and audit trails.
	Reference       string      `json:"reference"`
	AppliedAmount   types.Money `json:"applied_amount"`
	RemainingAmount types.Money `json:"remaining_amount"`
	// ReversalID links to the offsetting entry once this one is reversed.
	// A non-nil link is what makes a second reversal rejectable.
	ReversalID id.EntryID `json:"reversal_id,omitempty"`
	// ReversalOf points back at the original when this entry is itself the
	// offsetting side of a reversal.
	ReversalOf id.EntryID `json:"reversal_of,omitempty"`
	CreatedBy  string     `json:"created_by"`
	Version    int64      `json:"version"`
}

// Apply consumes amount from the entry's remainder and flips the status to
// applied when nothing is left. The conservation invariant
// AppliedAmount + RemainingAmount == Amount holds before and after.
func (e *Entry) Apply(amount types.Money) {
	e.AppliedAmount = e.AppliedAmount.Add(amount)
	e.RemainingAmount = e.RemainingAmount.Subtract(amount)
	if e.RemainingAmount.IsZero() {
		e.Status = StatusApplied
	}
}

// IsReversed reports whether the entry has been offset by a reversal.
func (e *Entry) IsReversed() bool {
	return e.Status == StatusReversed || !e.ReversalID.IsNil()
}

// Allocatable reports whether the entry can still fund applications.
func (e *Entry) Allocatable() bool {
	return e.Status == StatusOpen && e.Type == TypeCredit && e.RemainingAmount.IsPositive()
}

// Application records that part of an entry was applied against an invoice.
// Applications are append-only: corrections happen through reversals and
// new entries, never by editing or deleting an application.
type Application struct {
	ID            id.ApplicationID `json:"id"`
	EntryID       id.EntryID       `json:"entry_id"`
	InvoiceID     id.InvoiceID     `json:"invoice_id"`
	InvoiceNumber string           `json:"invoice_number"`
	Amount        types.Money      `json:"amount"` // always positive
	AppliedAt     time.Time        `json:"applied_at"`
	AppliedBy     string           `json:"applied_by"`
}

// Delta is the version-guarded mutation of one entry inside a commit.
type Delta struct {
	EntryID id.EntryID
	Version int64       // version the engine observed; the store rejects the commit if it moved
	Amount  types.Money // amount consumed from the entry's remainder
}

// Commit is the atomic unit handed to the store by the allocation engine:
// every entry delta, every application insert, and the invoice's
// applied-amount/status update land together or not at all.
type Commit struct {
	InvoiceID      id.InvoiceID
	InvoiceVersion int64
	// AppliedTotal is added to the invoice's denormalized applied amount.
	AppliedTotal types.Money
	// MarkPaid flips the invoice to paid in the same write when the
	// allocation settles the balance.
	MarkPaid     bool
	Deltas       []Delta
	Applications []*Application
}
