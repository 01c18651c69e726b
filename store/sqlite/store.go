package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	tuition "github.com/xraph/tuition"
	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	tuitionstore "github.com/xraph/tuition/store"
	"github.com/xraph/tuition/types"
)

// compile-time interface check
var _ tuitionstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
//
// Multi-row writes (CommitAllocation, ReverseEntry) are serialized by the
// engine's per-student lock; the version guards on every conditional update
// catch writers from other processes.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("tuition/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tuition/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Entry Store ====================

func (s *Store) CreateEntry(ctx context.Context, e *entry.Entry) error {
	m := toEntryModel(e)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetEntry(ctx context.Context, entryID id.EntryID) (*entry.Entry, error) {
	m := new(entryModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", entryID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tuition.ErrEntryNotFound
		}
		return nil, err
	}
	return fromEntryModel(m)
}

func (s *Store) GetEntryByReference(ctx context.Context, studentID, reference string) (*entry.Entry, error) {
	m := new(entryModel)
	err := s.sdb.NewSelect(m).
		Where("student_id = ?", studentID).
		Where("reference = ?", reference).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tuition.ErrEntryNotFound
		}
		return nil, err
	}
	return fromEntryModel(m)
}

func (s *Store) ListEntries(ctx context.Context, studentID string, opts entry.ListOpts) ([]*entry.Entry, error) {
	var models []entryModel
	q := s.sdb.NewSelect(&models).Where("student_id = ?", studentID)

	if opts.Type != "" {
		q = q.Where("type = ?", string(opts.Type))
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*entry.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) ListOpenCredits(ctx context.Context, studentID string) ([]*entry.Entry, error) {
	var models []entryModel
	err := s.sdb.NewSelect(&models).
		Where("student_id = ?", studentID).
		Where("type = ?", string(entry.TypeCredit)).
		Where("status = ?", string(entry.StatusOpen)).
		Where("remaining_amount_cents > 0").
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*entry.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) SumOpenCredit(ctx context.Context, studentID, currency string) (types.Money, error) {
	var total int64
	err := s.sdb.NewRaw(`
		SELECT COALESCE(SUM(remaining_amount_cents), 0) FROM tuition_entries
		WHERE student_id = ? AND type = ? AND status = ?
	`, studentID, string(entry.TypeCredit), string(entry.StatusOpen)).Scan(ctx, &total)
	if err != nil {
		return types.Money{}, err
	}
	return types.New(total, currency), nil
}

func (s *Store) ReverseEntry(ctx context.Context, original, offsetting *entry.Entry) error {
	t := now()
	res, err := s.sdb.NewUpdate((*entryModel)(nil)).
		Set("status = ?", string(entry.StatusReversed)).
		Set("reversal_id = ?", offsetting.ID.String()).
		Set("version = version + 1").
		Set("updated_at = ?", t).
		Where("id = ?", original.ID.String()).
		Where("version = ?", original.Version).
		Where("reversal_id = ''").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.classifyEntryWriteFailure(ctx, original.ID)
	}

	_, err = s.sdb.NewInsert(toEntryModel(offsetting)).Exec(ctx)
	return err
}

// ==================== Application Store ====================

func (s *Store) ListApplicationsForEntry(ctx context.Context, entryID id.EntryID) ([]*entry.Application, error) {
	return s.listApplications(ctx, "entry_id", entryID.String())
}

func (s *Store) ListApplicationsForInvoice(ctx context.Context, invoiceID id.InvoiceID) ([]*entry.Application, error) {
	return s.listApplications(ctx, "invoice_id", invoiceID.String())
}

func (s *Store) listApplications(ctx context.Context, column, value string) ([]*entry.Application, error) {
	var models []applicationModel
	err := s.sdb.NewSelect(&models).
		Where(fmt.Sprintf("%s = ?", column), value).
		OrderExpr("applied_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*entry.Application, len(models))
	for i := range models {
		a, err := fromApplicationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

func (s *Store) CommitAllocation(ctx context.Context, c *entry.Commit) error {
	// Read the invoice up front so a post-gate failure can be compensated
	// with the prior values.
	prior, err := s.GetInvoice(ctx, c.InvoiceID)
	if err != nil {
		return err
	}
	if prior.Version != c.InvoiceVersion {
		return tuition.ErrVersionConflict
	}

	// The invoice CAS is the commit gate: concurrent committers read the
	// same invoice version, so at most one passes it.
	t := now()
	q := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("applied_cents = applied_cents + ?", c.AppliedTotal.Amount).
		Set("version = version + 1").
		Set("updated_at = ?", t)
	if c.MarkPaid {
		q = q.
			Set("status = ?", string(invoice.StatusPaid)).
			Set("paid_at = ?", t)
	}
	res, err := q.
		Where("id = ?", c.InvoiceID.String()).
		Where("version = ?", c.InvoiceVersion).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.classifyInvoiceWriteFailure(ctx, c.InvoiceID)
	}

	for i, d := range c.Deltas {
		res, err := s.sdb.NewUpdate((*entryModel)(nil)).
			Set("applied_amount_cents = applied_amount_cents + ?", d.Amount.Amount).
			Set("remaining_amount_cents = remaining_amount_cents - ?", d.Amount.Amount).
			Set("status = CASE WHEN remaining_amount_cents - ? <= 0 THEN 'applied' ELSE status END", d.Amount.Amount).
			Set("version = version + 1").
			Set("updated_at = ?", t).
			Where("id = ?", d.EntryID.String()).
			Where("version = ?", d.Version).
			Where("remaining_amount_cents >= ?", d.Amount.Amount).
			Exec(ctx)
		if err != nil {
			return s.compensateCommit(ctx, c, prior, c.Deltas[:i], err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return s.compensateCommit(ctx, c, prior, c.Deltas[:i], err)
		}
		if rows == 0 {
			return s.compensateCommit(ctx, c, prior, c.Deltas[:i], s.classifyDeltaFailure(ctx, d))
		}
	}

	if len(c.Applications) > 0 {
		models := make([]applicationModel, len(c.Applications))
		for i, a := range c.Applications {
			models[i] = *toApplicationModel(a)
		}
		if _, err := s.sdb.NewInsert(&models).Exec(ctx); err != nil {
			return s.compensateCommit(ctx, c, prior, c.Deltas, err)
		}
	}
	return nil
}

// compensateCommit undoes the invoice commit gate and any entry deltas that
// landed before a post-gate write failed, so an aborted allocation leaves no
// applied credit behind. Without a transaction surface this is best effort;
// a compensation failure is joined onto the cause.
func (s *Store) compensateCommit(ctx context.Context, c *entry.Commit, prior *invoice.Invoice, applied []entry.Delta, cause error) error {
	for _, d := range applied {
		// Only Open entries are allocatable, so Open is the prior status.
		_, err := s.sdb.NewUpdate((*entryModel)(nil)).
			Set("applied_amount_cents = applied_amount_cents - ?", d.Amount.Amount).
			Set("remaining_amount_cents = remaining_amount_cents + ?", d.Amount.Amount).
			Set("status = ?", string(entry.StatusOpen)).
			Set("version = version + 1").
			Set("updated_at = ?", now()).
			Where("id = ?", d.EntryID.String()).
			Where("version = ?", d.Version+1).
			Exec(ctx)
		if err != nil {
			cause = errors.Join(cause, fmt.Errorf("compensate entry delta: %w", err))
		}
	}

	_, err := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("applied_cents = ?", prior.AppliedAmount.Amount).
		Set("status = ?", string(prior.Status)).
		Set("paid_at = ?", prior.PaidAt).
		Set("version = version + 1").
		Set("updated_at = ?", now()).
		Where("id = ?", c.InvoiceID.String()).
		Where("version = ?", c.InvoiceVersion+1).
		Exec(ctx)
	if err != nil {
		cause = errors.Join(cause, fmt.Errorf("compensate invoice commit: %w", err))
	}
	return cause
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	m := toInvoiceModel(inv)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", invID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tuition.ErrInvoiceNotFound
		}
		return nil, err
	}
	return fromInvoiceModel(m)
}

func (s *Store) GetInvoiceByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.sdb.NewSelect(m).
		Where("number = ?", number).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tuition.ErrInvoiceNotFound
		}
		return nil, err
	}
	return fromInvoiceModel(m)
}

func (s *Store) ListInvoices(ctx context.Context, studentID string, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	q := s.sdb.NewSelect(&models)

	if studentID != "" {
		q = q.Where("student_id = ?", studentID)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.EnrollmentID != "" {
		q = q.Where("enrollment_id = ?", opts.EnrollmentID)
	}
	if opts.CreditOnly {
		q = q.Where("is_credit_invoice = 1")
	}
	if !opts.Start.IsZero() {
		q = q.Where("issue_date >= ?", opts.Start)
	}
	if !opts.End.IsZero() {
		q = q.Where("issue_date <= ?", opts.End)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("issue_date ASC, number ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*invoice.Invoice, len(models))
	for i := range models {
		inv, err := fromInvoiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inv
	}
	return result, nil
}

func (s *Store) ReplaceInvoiceLines(ctx context.Context, invID id.InvoiceID, version int64, lines []invoice.Line, subtotal, vat, total types.Money) error {
	linesJSON, err := marshalJSON(lines)
	if err != nil {
		return err
	}
	res, err := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("lines = ?", string(linesJSON)).
		Set("subtotal_cents = ?", subtotal.Amount).
		Set("vat_cents = ?", vat.Amount).
		Set("total_cents = ?", total.Amount).
		Set("version = version + 1").
		Set("updated_at = ?", now()).
		Where("id = ?", invID.String()).
		Where("version = ?", version).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.classifyInvoiceWriteFailure(ctx, invID)
	}
	return nil
}

func (s *Store) AddPayment(ctx context.Context, invID id.InvoiceID, version int64, p invoice.Payment, newStatus invoice.Status) error {
	paymentJSON, err := marshalJSON(p)
	if err != nil {
		return err
	}

	q := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("payments = json_insert(payments, '$[#]', json(?))", string(paymentJSON)).
		Set("version = version + 1").
		Set("updated_at = ?", now())
	if newStatus != "" {
		q = q.Set("status = ?", string(newStatus))
		if newStatus == invoice.StatusPaid {
			q = q.Set("paid_at = ?", p.PaidAt)
		}
	}
	res, err := q.
		Where("id = ?", invID.String()).
		Where("version = ?", version).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.classifyInvoiceWriteFailure(ctx, invID)
	}
	return nil
}

func (s *Store) MarkInvoiceSent(ctx context.Context, invID id.InvoiceID, version int64, sentAt time.Time) error {
	res, err := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("status = ?", string(invoice.StatusSent)).
		Set("sent_at = ?", sentAt).
		Set("version = version + 1").
		Set("updated_at = ?", now()).
		Where("id = ?", invID.String()).
		Where("version = ?", version).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.classifyInvoiceWriteFailure(ctx, invID)
	}
	return nil
}

func (s *Store) MarkInvoiceCancelled(ctx context.Context, invID id.InvoiceID, version int64, cancelledAt time.Time, reason string) error {
	res, err := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("status = ?", string(invoice.StatusCancelled)).
		Set("cancelled_at = ?", cancelledAt).
		Set("cancel_reason = ?", reason).
		Set("version = version + 1").
		Set("updated_at = ?", now()).
		Where("id = ?", invID.String()).
		Where("version = ?", version).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.classifyInvoiceWriteFailure(ctx, invID)
	}
	return nil
}

func (s *Store) ListOverdueCandidates(ctx context.Context, cutoff time.Time) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	err := s.sdb.NewSelect(&models).
		Where("status = ?", string(invoice.StatusSent)).
		Where("due_date < ?", cutoff).
		OrderExpr("due_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*invoice.Invoice, len(models))
	for i := range models {
		inv, err := fromInvoiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inv
	}
	return result, nil
}

func (s *Store) MarkInvoiceOverdue(ctx context.Context, invID id.InvoiceID, version int64) error {
	res, err := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("status = ?", string(invoice.StatusOverdue)).
		Set("version = version + 1").
		Set("updated_at = ?", now()).
		Where("id = ?", invID.String()).
		Where("version = ?", version).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.classifyInvoiceWriteFailure(ctx, invID)
	}
	return nil
}

// ==================== Sequence Store ====================

func (s *Store) NextSequence(ctx context.Context, kind invoice.NumberKind, year int) (int64, error) {
	key := fmt.Sprintf("%s:%d", kind, year)

	var next int64
	err := s.sdb.NewRaw(`
		INSERT INTO tuition_sequences (key, value) VALUES (?, 1)
		ON CONFLICT (key) DO UPDATE SET value = value + 1
		RETURNING value
	`, key).Scan(ctx, &next)
	if err != nil {
		return 0, err
	}
	return next, nil
}

// ==================== Helpers ====================

func (s *Store) classifyInvoiceWriteFailure(ctx context.Context, invID id.InvoiceID) error {
	if _, err := s.GetInvoice(ctx, invID); err != nil {
		return err
	}
	return tuition.ErrVersionConflict
}

func (s *Store) classifyEntryWriteFailure(ctx context.Context, entryID id.EntryID) error {
	e, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if e.IsReversed() {
		return tuition.ErrEntryReversed
	}
	return tuition.ErrVersionConflict
}

func (s *Store) classifyDeltaFailure(ctx context.Context, d entry.Delta) error {
	e, err := s.GetEntry(ctx, d.EntryID)
	if err != nil {
		return err
	}
	if e.Version == d.Version && e.RemainingAmount.LessThan(d.Amount) {
		return tuition.ErrInsufficientCredit
	}
	return tuition.ErrVersionConflict
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
