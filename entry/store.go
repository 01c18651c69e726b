package entry

import (
	"context"

	"github.com/xraph/tuition/id"
)

type Store interface {
	Create(ctx context.Context, e *Entry) error
	Get(ctx context.Context, entryID id.EntryID) (*Entry, error)
	// GetByReference looks an entry up by its correction code. Used for
	// idempotent registration-fee debits.
	GetByReference(ctx context.Context, studentID, reference string) (*Entry, error)
	List(ctx context.Context, studentID string, opts ListOpts) ([]*Entry, error)
	// ListOpenCredits returns a student's allocatable credit entries in
	// FIFO order (oldest created first).
	ListOpenCredits(ctx context.Context, studentID string) ([]*Entry, error)
	ListApplicationsForEntry(ctx context.Context, entryID id.EntryID) ([]*Application, error)
	ListApplicationsForInvoice(ctx context.Context, invoiceID id.InvoiceID) ([]*Application, error)
}

type ListOpts struct {
	Type   Type
	Status Status
	Limit  int
	Offset int
}
