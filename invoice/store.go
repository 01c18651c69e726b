package invoice

import (
	"context"
	"time"

	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/types"
)

type Store interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	GetByNumber(ctx context.Context, number string) (*Invoice, error)
	List(ctx context.Context, studentID string, opts ListOpts) ([]*Invoice, error)
	// ReplaceLines swaps a draft's lines and totals under a version guard.
	ReplaceLines(ctx context.Context, invID id.InvoiceID, version int64, lines []Line, subtotal, vat, total types.Money) error
	// AddPayment appends a payment and optionally flips the status in the
	// same write.
	AddPayment(ctx context.Context, invID id.InvoiceID, version int64, p Payment, newStatus Status) error
	MarkSent(ctx context.Context, invID id.InvoiceID, version int64, sentAt time.Time) error
	MarkCancelled(ctx context.Context, invID id.InvoiceID, version int64, cancelledAt time.Time, reason string) error
	// ListOverdueCandidates returns sent invoices whose due date passed
	// before the cutoff.
	ListOverdueCandidates(ctx context.Context, cutoff time.Time) ([]*Invoice, error)
	MarkOverdue(ctx context.Context, invID id.InvoiceID, version int64) error
}

type ListOpts struct {
	Status       Status
	EnrollmentID string
	CreditOnly   bool
	Start        time.Time
	End          time.Time
	Limit        int
	Offset       int
}
