package tuition

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tuition/enrollment"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/plugin"
	"github.com/xraph/tuition/store"
)

// Engine is the billing core: it owns the student ledger, the invoice
// lifecycle, credit allocation and reversals. Reference data (students,
// enrollments, lessons) is read through an enrollment.Source.
type Engine struct {
	store   store.Store
	source  enrollment.Source
	plugins *plugin.Registry
	logger  *slog.Logger
	now     func() time.Time

	// Background workers
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Configuration
	currency      string
	dueDays       int
	invoicePrefix string
	creditPrefix  string
	ledgerPrefix  string
	school        SchoolProfile
	sweepInterval time.Duration
	maxRetries    int

	// Per-student write serialization. Every mutating ledger or invoice
	// operation runs under the owning student's lock, so the engine is
	// the single writer for that student's rows.
	students studentLocks
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		now:           func() time.Time { return time.Now().UTC() },
		stopChan:      make(chan struct{}),
		currency:      "eur",
		dueDays:       14,
		invoicePrefix: "INV",
		creditPrefix:  "CRN",
		ledgerPrefix:  "LED",
		sweepInterval: time.Hour,
		maxRetries:    3,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithSource wires the enrollment/billable-activity source.
func WithSource(src enrollment.Source) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// WithCurrency sets the billing currency (ISO 4217 lowercase).
func WithCurrency(currency string) Option {
	return func(e *Engine) {
		e.currency = currency
	}
}

// WithDueDays sets the payment term applied to generated invoices.
func WithDueDays(days int) Option {
	return func(e *Engine) {
		e.dueDays = days
	}
}

// WithNumberPrefixes sets the invoice and credit-invoice number prefixes.
func WithNumberPrefixes(invoicePrefix, creditPrefix string) Option {
	return func(e *Engine) {
		e.invoicePrefix = invoicePrefix
		e.creditPrefix = creditPrefix
	}
}

// WithSchoolProfile sets the billing header metadata used by the print
// projection.
func WithSchoolProfile(p SchoolProfile) Option {
	return func(e *Engine) {
		e.school = p
	}
}

// WithOverdueSweepInterval sets how often sent invoices past their due date
// are flipped to overdue. Zero disables the sweep.
func WithOverdueSweepInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.sweepInterval = d
	}
}

// WithClock overrides the engine clock. Tests use this to pin issue and
// due dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Start migrates the store, initializes plugins and begins background
// workers.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	e.plugins.EmitInit(ctx, e)

	if e.sweepInterval > 0 {
		e.wg.Add(1)
		go e.overdueSweepWorker(ctx)
	}

	e.logger.Info("tuition engine started",
		"currency", e.currency,
		"due_days", e.dueDays,
		"sweep_interval", e.sweepInterval,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// overdueSweepWorker periodically flips sent invoices past their due date
// to overdue.
func (e *Engine) overdueSweepWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.sweepOverdue(ctx)
		}
	}
}

func (e *Engine) sweepOverdue(ctx context.Context) {
	candidates, err := e.store.ListOverdueCandidates(ctx, e.now())
	if err != nil {
		e.logger.Error("overdue sweep failed", "error", err)
		return
	}

	for _, inv := range candidates {
		if err := e.store.MarkInvoiceOverdue(ctx, inv.ID, inv.Version); err != nil {
			if IsRetryable(err) {
				continue // someone else touched it; next sweep picks it up
			}
			e.logger.Error("failed to mark invoice overdue",
				"invoice", inv.Number,
				"error", err,
			)
			continue
		}
		inv.Status = invoice.StatusOverdue
		e.plugins.EmitInvoiceOverdue(ctx, inv)
		e.logger.Info("invoice overdue", "invoice", inv.Number, "due_date", inv.DueDate)
	}
}

// studentLocks serializes mutating work per student.
type studentLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (s *studentLocks) get(studentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	l, ok := s.locks[studentID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[studentID] = l
	}
	return l
}

// lockStudent acquires the per-student write lock and returns the unlock.
func (e *Engine) lockStudent(studentID string) func() {
	l := e.students.get(studentID)
	l.Lock()
	return l.Unlock
}

// requireSource fails when the engine was wired without WithSource.
// Operations that read student, enrollment, or lesson data call it before
// touching the store.
func (e *Engine) requireSource() error {
	if e.source == nil {
		return ErrSourceNotConfigured
	}
	return nil
}
