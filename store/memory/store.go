// Package memory is the in-memory Store backend. It backs tests and
// single-process trials; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/types"
)

type Store struct {
	mu sync.RWMutex

	// Ledger storage
	entries      map[string]*entry.Entry
	applications map[string]*entry.Application

	// Invoice storage
	invoices        map[string]*invoice.Invoice
	invoiceByNumber map[string]string // number -> invoice ID

	// Numbering sequences, keyed "kind:year"
	sequences map[string]int64
}

func New() *Store {
	return &Store{
		entries:         make(map[string]*entry.Entry),
		applications:    make(map[string]*entry.Application),
		invoices:        make(map[string]*invoice.Invoice),
		invoiceByNumber: make(map[string]string),
		sequences:       make(map[string]int64),
	}
}

// Ledger entry methods

func (s *Store) CreateEntry(_ context.Context, e *entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[e.ID.String()]; exists {
		return tuition.ErrAlreadyExists
	}
	s.entries[e.ID.String()] = cloneEntry(e)
	return nil
}

func (s *Store) GetEntry(_ context.Context, entryID id.EntryID) (*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[entryID.String()]; ok {
		return cloneEntry(e), nil
	}
	return nil, tuition.ErrEntryNotFound
}

func (s *Store) GetEntryByReference(_ context.Context, studentID, reference string) (*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.StudentID == studentID && e.Reference == reference {
			return cloneEntry(e), nil
		}
	}
	return nil, tuition.ErrEntryNotFound
}

func (s *Store) ListEntries(_ context.Context, studentID string, opts entry.ListOpts) ([]*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entry.Entry, 0)
	for _, e := range s.entries {
		if e.StudentID != studentID {
			continue
		}
		if opts.Type != "" && e.Type != opts.Type {
			continue
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		result = append(result, cloneEntry(e))
	}
	sortEntriesFIFO(result)

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (s *Store) ListOpenCredits(_ context.Context, studentID string) ([]*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entry.Entry, 0)
	for _, e := range s.entries {
		if e.StudentID == studentID && e.Allocatable() {
			result = append(result, cloneEntry(e))
		}
	}
	sortEntriesFIFO(result)
	return result, nil
}

func (s *Store) SumOpenCredit(_ context.Context, studentID, currency string) (types.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := types.Zero(currency)
	for _, e := range s.entries {
		if e.StudentID == studentID && e.Allocatable() {
			total = total.Add(e.RemainingAmount)
		}
	}
	return total, nil
}

func (s *Store) ReverseEntry(_ context.Context, original, offsetting *entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entries[original.ID.String()]
	if !ok {
		return tuition.ErrEntryNotFound
	}
	if stored.Version != original.Version {
		return tuition.ErrVersionConflict
	}
	if stored.IsReversed() {
		return tuition.ErrEntryReversed
	}
	if _, exists := s.entries[offsetting.ID.String()]; exists {
		return tuition.ErrAlreadyExists
	}

	stored.Status = entry.StatusReversed
	stored.ReversalID = offsetting.ID
	stored.Version++
	stored.Touch()
	s.entries[offsetting.ID.String()] = cloneEntry(offsetting)
	return nil
}

// Application methods

func (s *Store) ListApplicationsForEntry(_ context.Context, entryID id.EntryID) ([]*entry.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entry.Application, 0)
	for _, a := range s.applications {
		if a.EntryID == entryID {
			result = append(result, cloneApplication(a))
		}
	}
	sortApplications(result)
	return result, nil
}

func (s *Store) ListApplicationsForInvoice(_ context.Context, invoiceID id.InvoiceID) ([]*entry.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entry.Application, 0)
	for _, a := range s.applications {
		if a.InvoiceID == invoiceID {
			result = append(result, cloneApplication(a))
		}
	}
	sortApplications(result)
	return result, nil
}

func (s *Store) CommitAllocation(_ context.Context, c *entry.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[c.InvoiceID.String()]
	if !ok {
		return tuition.ErrInvoiceNotFound
	}
	if inv.Version != c.InvoiceVersion {
		return tuition.ErrVersionConflict
	}

	// Validate every guard before touching anything: the commit is
	// all-or-nothing.
	for _, d := range c.Deltas {
		e, ok := s.entries[d.EntryID.String()]
		if !ok {
			return tuition.ErrEntryNotFound
		}
		if e.Version != d.Version {
			return tuition.ErrVersionConflict
		}
		if e.RemainingAmount.LessThan(d.Amount) {
			return tuition.ErrInsufficientCredit
		}
	}

	for _, d := range c.Deltas {
		e := s.entries[d.EntryID.String()]
		e.Apply(d.Amount)
		e.Version++
		e.Touch()
	}
	for _, a := range c.Applications {
		s.applications[a.ID.String()] = cloneApplication(a)
	}

	inv.AppliedAmount = inv.AppliedAmount.Add(c.AppliedTotal)
	if c.MarkPaid {
		inv.Status = invoice.StatusPaid
		now := time.Now().UTC()
		inv.PaidAt = &now
	}
	inv.Version++
	inv.Touch()
	return nil
}

// Invoice methods

func (s *Store) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[inv.ID.String()]; exists {
		return tuition.ErrAlreadyExists
	}
	if _, taken := s.invoiceByNumber[inv.Number]; taken {
		return tuition.ErrDuplicateNumber
	}
	s.invoices[inv.ID.String()] = cloneInvoice(inv)
	s.invoiceByNumber[inv.Number] = inv.ID.String()
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inv, ok := s.invoices[invID.String()]; ok {
		return cloneInvoice(inv), nil
	}
	return nil, tuition.ErrInvoiceNotFound
}

func (s *Store) GetInvoiceByNumber(_ context.Context, number string) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if invID, ok := s.invoiceByNumber[number]; ok {
		return cloneInvoice(s.invoices[invID]), nil
	}
	return nil, tuition.ErrInvoiceNotFound
}

func (s *Store) ListInvoices(_ context.Context, studentID string, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.Invoice, 0)
	for _, inv := range s.invoices {
		if studentID != "" && inv.StudentID != studentID {
			continue
		}
		if opts.Status != "" && inv.Status != opts.Status {
			continue
		}
		if opts.EnrollmentID != "" && inv.EnrollmentID != opts.EnrollmentID {
			continue
		}
		if opts.CreditOnly && !inv.IsCreditInvoice {
			continue
		}
		if !opts.Start.IsZero() && inv.IssueDate.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && inv.IssueDate.After(opts.End) {
			continue
		}
		result = append(result, cloneInvoice(inv))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].IssueDate.Equal(result[j].IssueDate) {
			return result[i].IssueDate.Before(result[j].IssueDate)
		}
		return result[i].Number < result[j].Number
	})

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (s *Store) ReplaceInvoiceLines(_ context.Context, invID id.InvoiceID, version int64, lines []invoice.Line, subtotal, vat, total types.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invID.String()]
	if !ok {
		return tuition.ErrInvoiceNotFound
	}
	if inv.Version != version {
		return tuition.ErrVersionConflict
	}

	inv.Lines = append([]invoice.Line(nil), lines...)
	inv.Subtotal = subtotal
	inv.VATAmount = vat
	inv.Total = total
	inv.Version++
	inv.Touch()
	return nil
}

func (s *Store) AddPayment(_ context.Context, invID id.InvoiceID, version int64, p invoice.Payment, newStatus invoice.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invID.String()]
	if !ok {
		return tuition.ErrInvoiceNotFound
	}
	if inv.Version != version {
		return tuition.ErrVersionConflict
	}

	inv.Payments = append(inv.Payments, p)
	if newStatus != "" {
		inv.Status = newStatus
		if newStatus == invoice.StatusPaid {
			paidAt := p.PaidAt
			inv.PaidAt = &paidAt
		}
	}
	inv.Version++
	inv.Touch()
	return nil
}

func (s *Store) MarkInvoiceSent(_ context.Context, invID id.InvoiceID, version int64, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invID.String()]
	if !ok {
		return tuition.ErrInvoiceNotFound
	}
	if inv.Version != version {
		return tuition.ErrVersionConflict
	}

	inv.Status = invoice.StatusSent
	inv.SentAt = &sentAt
	inv.Version++
	inv.Touch()
	return nil
}

func (s *Store) MarkInvoiceCancelled(_ context.Context, invID id.InvoiceID, version int64, cancelledAt time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invID.String()]
	if !ok {
		return tuition.ErrInvoiceNotFound
	}
	if inv.Version != version {
		return tuition.ErrVersionConflict
	}

	inv.Status = invoice.StatusCancelled
	inv.CancelledAt = &cancelledAt
	inv.CancelReason = reason
	inv.Version++
	inv.Touch()
	return nil
}

func (s *Store) ListOverdueCandidates(_ context.Context, cutoff time.Time) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.Invoice, 0)
	for _, inv := range s.invoices {
		if inv.Status == invoice.StatusSent && inv.DueDate.Before(cutoff) {
			result = append(result, cloneInvoice(inv))
		}
	}
	return result, nil
}

func (s *Store) MarkInvoiceOverdue(_ context.Context, invID id.InvoiceID, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invID.String()]
	if !ok {
		return tuition.ErrInvoiceNotFound
	}
	if inv.Version != version {
		return tuition.ErrVersionConflict
	}

	inv.Status = invoice.StatusOverdue
	inv.Version++
	inv.Touch()
	return nil
}

// NextSequence allocates the next number in the per-kind, per-year sequence.
func (s *Store) NextSequence(_ context.Context, kind invoice.NumberKind, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%s:%d", kind, year)
	s.sequences[key]++
	return s.sequences[key], nil
}

// Store management

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// Helper functions

// sortEntriesFIFO orders oldest-created first; entry IDs are K-sortable so
// they break creation-time ties deterministically.
func sortEntriesFIFO(entries []*entry.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID.String() < entries[j].ID.String()
	})
}

func sortApplications(apps []*entry.Application) {
	sort.Slice(apps, func(i, j int) bool {
		if !apps[i].AppliedAt.Equal(apps[j].AppliedAt) {
			return apps[i].AppliedAt.Before(apps[j].AppliedAt)
		}
		return apps[i].ID.String() < apps[j].ID.String()
	})
}

// Callers own the copies they get back; the store never hands out its own
// pointers.
func cloneEntry(e *entry.Entry) *entry.Entry {
	cp := *e
	return &cp
}

func cloneApplication(a *entry.Application) *entry.Application {
	cp := *a
	return &cp
}

func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	cp := *inv
	cp.Lines = append([]invoice.Line(nil), inv.Lines...)
	cp.Payments = append([]invoice.Payment(nil), inv.Payments...)
	if inv.SentAt != nil {
		t := *inv.SentAt
		cp.SentAt = &t
	}
	if inv.PaidAt != nil {
		t := *inv.PaidAt
		cp.PaidAt = &t
	}
	if inv.CancelledAt != nil {
		t := *inv.CancelledAt
		cp.CancelledAt = &t
	}
	return &cp
}
