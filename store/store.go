package store

import (
	"context"
	"time"

	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/types"
)

// Store is the unified storage interface for all Tuition records.
// Instead of embedding the sub-interfaces, all methods are declared
// explicitly to avoid naming conflicts.
//
// Mutating methods that carry a version parameter are compare-and-swap: the
// store rejects the write with ErrVersionConflict when the stored version
// moved since the caller read it. CommitAllocation and ReverseEntry are
// multi-row and must land atomically.
type Store interface {
	// Ledger entry methods
	CreateEntry(ctx context.Context, e *entry.Entry) error
	GetEntry(ctx context.Context, entryID id.EntryID) (*entry.Entry, error)
	GetEntryByReference(ctx context.Context, studentID, reference string) (*entry.Entry, error)
	ListEntries(ctx context.Context, studentID string, opts entry.ListOpts) ([]*entry.Entry, error)
	ListOpenCredits(ctx context.Context, studentID string) ([]*entry.Entry, error)
	SumOpenCredit(ctx context.Context, studentID string, currency string) (types.Money, error)

	// ReverseEntry atomically marks the original entry reversed, links it
	// to the offsetting entry, and inserts the offsetting entry. The
	// original's version is CAS-checked.
	ReverseEntry(ctx context.Context, original *entry.Entry, offsetting *entry.Entry) error

	// Application methods
	ListApplicationsForEntry(ctx context.Context, entryID id.EntryID) ([]*entry.Application, error)
	ListApplicationsForInvoice(ctx context.Context, invoiceID id.InvoiceID) ([]*entry.Application, error)

	// CommitAllocation applies a whole allocation in one atomic write:
	// every entry delta (CAS on version, guarded by remaining >= delta),
	// every application insert, and the invoice applied-amount/status
	// update. Any guard failure aborts the whole commit.
	CommitAllocation(ctx context.Context, c *entry.Commit) error

	// Invoice methods
	CreateInvoice(ctx context.Context, inv *invoice.Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*invoice.Invoice, error)
	ListInvoices(ctx context.Context, studentID string, opts invoice.ListOpts) ([]*invoice.Invoice, error)
	ReplaceInvoiceLines(ctx context.Context, invID id.InvoiceID, version int64, lines []invoice.Line, subtotal, vat, total types.Money) error
	AddPayment(ctx context.Context, invID id.InvoiceID, version int64, p invoice.Payment, newStatus invoice.Status) error
	MarkInvoiceSent(ctx context.Context, invID id.InvoiceID, version int64, sentAt time.Time) error
	MarkInvoiceCancelled(ctx context.Context, invID id.InvoiceID, version int64, cancelledAt time.Time, reason string) error
	ListOverdueCandidates(ctx context.Context, cutoff time.Time) ([]*invoice.Invoice, error)
	MarkInvoiceOverdue(ctx context.Context, invID id.InvoiceID, version int64) error

	// NextSequence allocates the next number in the per-kind, per-year
	// invoice numbering sequence. Allocation is collision-free under
	// concurrency; numbers are never reused.
	NextSequence(ctx context.Context, kind invoice.NumberKind, year int) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
