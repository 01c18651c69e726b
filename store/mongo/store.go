package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	tuition "github.com/xraph/tuition"
	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	tuitionstore "github.com/xraph/tuition/store"
	"github.com/xraph/tuition/types"
)

// Collection name constants.
const (
	colEntries      = "tuition_entries"
	colApplications = "tuition_applications"
	colInvoices     = "tuition_invoices"
	colSequences    = "tuition_sequences"
)

// compile-time interface check
var _ tuitionstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
//
// Multi-document writes (CommitAllocation, ReverseEntry) are serialized by
// the engine's per-student lock; the version filters on every conditional
// update catch writers from other processes.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all tuition collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("tuition/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return tuition.ErrAlreadyExists
		}
		return fmt.Errorf("tuition/mongo: create entry: %w", err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, entryID id.EntryID) (*entry.Entry, error) {
	var m entryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": entryID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tuition.ErrEntryNotFound
		}
		return nil, fmt.Errorf("tuition/mongo: get entry: %w", err)
	}
	return fromEntryModel(&m)
}

func (s *Store) GetEntryByReference(ctx context.Context, studentID, reference string) (*entry.Entry, error) {
	var m entryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"student_id": studentID, "reference": reference}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tuition.ErrEntryNotFound
		}
		return nil, fmt.Errorf("tuition/mongo: get entry by reference: %w", err)
	}
	return fromEntryModel(&m)
}

func (s *Store) ListEntries(ctx context.Context, studentID string, opts entry.ListOpts) ([]*entry.Entry, error) {
	filter := bson.M{"student_id": studentID}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	var models []entryModel
	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tuition/mongo: list entries: %w", err)
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
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"student_id":             studentID,
			"type":                   string(entry.TypeCredit),
			"status":                 string(entry.StatusOpen),
			"remaining_amount_cents": bson.M{"$gt": 0},
		}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("tuition/mongo: list open credits: %w", err)
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
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"student_id": studentID,
			"type":       string(entry.TypeCredit),
			"status":     string(entry.StatusOpen),
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$remaining_amount_cents"},
		}}},
	}

	cursor, err := s.mdb.Collection(colEntries).Aggregate(ctx, pipeline)
	if err != nil {
		return types.Money{}, fmt.Errorf("tuition/mongo: sum open credit: %w", err)
	}
	defer cursor.Close(ctx)

	var result struct {
		Total int64 `bson:"total"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&result); err != nil {
			return types.Money{}, fmt.Errorf("tuition/mongo: sum open credit decode: %w", err)
		}
	}
	return types.New(result.Total, currency), nil
}

func (s *Store) ReverseEntry(ctx context.Context, original, offsetting *entry.Entry) error {
	t := now()
	res, err := s.mdb.NewUpdate((*entryModel)(nil)).
		Filter(bson.M{
			"_id":         original.ID.String(),
			"version":     original.Version,
			"reversal_id": bson.M{"$in": bson.A{nil, ""}},
		}).
		Set("status", string(entry.StatusReversed)).
		Set("reversal_id", offsetting.ID.String()).
		Set("version", original.Version+1).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tuition/mongo: reverse entry: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.classifyEntryWriteFailure(ctx, original.ID)
	}

	_, err = s.mdb.NewInsert(toEntryModel(offsetting)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("tuition/mongo: insert offsetting entry: %w", err)
	}
	return nil
}

// ==================== Application Store ====================

func (s *Store) ListApplicationsForEntry(ctx context.Context, entryID id.EntryID) ([]*entry.Application, error) {
	return s.listApplications(ctx, bson.M{"entry_id": entryID.String()})
}

func (s *Store) ListApplicationsForInvoice(ctx context.Context, invoiceID id.InvoiceID) ([]*entry.Application, error) {
	return s.listApplications(ctx, bson.M{"invoice_id": invoiceID.String()})
}

func (s *Store) listApplications(ctx context.Context, filter bson.M) ([]*entry.Application, error) {
	var models []applicationModel
	err := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "applied_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("tuition/mongo: list applications: %w", err)
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
	// Read the invoice first so the applied amount can be recomputed; the
	// version filter below makes the read-modify-write safe.
	inv, err := s.GetInvoice(ctx, c.InvoiceID)
	if err != nil {
		return err
	}
	if inv.Version != c.InvoiceVersion {
		return tuition.ErrVersionConflict
	}

	// The invoice CAS is the commit gate: concurrent committers read the
	// same invoice version, so at most one passes it.
	t := now()
	q := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{"_id": c.InvoiceID.String(), "version": c.InvoiceVersion}).
		Set("applied_cents", inv.AppliedAmount.Add(c.AppliedTotal).Amount).
		Set("version", c.InvoiceVersion+1).
		Set("updated_at", t)
	if c.MarkPaid {
		q = q.
			Set("status", string(invoice.StatusPaid)).
			Set("paid_at", t)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("tuition/mongo: commit allocation: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.classifyInvoiceWriteFailure(ctx, c.InvoiceID)
	}

	for i, d := range c.Deltas {
		e, err := s.GetEntry(ctx, d.EntryID)
		if err != nil {
			return s.compensateCommit(ctx, c, inv, c.Deltas[:i], err)
		}
		if e.Version != d.Version {
			return s.compensateCommit(ctx, c, inv, c.Deltas[:i], tuition.ErrVersionConflict)
		}
		if e.RemainingAmount.LessThan(d.Amount) {
			return s.compensateCommit(ctx, c, inv, c.Deltas[:i], tuition.ErrInsufficientCredit)
		}

		newRemaining := e.RemainingAmount.Subtract(d.Amount)
		newStatus := e.Status
		if newRemaining.IsZero() {
			newStatus = entry.StatusApplied
		}
		res, err := s.mdb.NewUpdate((*entryModel)(nil)).
			Filter(bson.M{
				"_id":                    d.EntryID.String(),
				"version":                d.Version,
				"remaining_amount_cents": bson.M{"$gte": d.Amount.Amount},
			}).
			Set("applied_amount_cents", e.AppliedAmount.Add(d.Amount).Amount).
			Set("remaining_amount_cents", newRemaining.Amount).
			Set("status", string(newStatus)).
			Set("version", d.Version+1).
			Set("updated_at", t).
			Exec(ctx)
		if err != nil {
			return s.compensateCommit(ctx, c, inv, c.Deltas[:i],
				fmt.Errorf("tuition/mongo: commit entry delta: %w", err))
		}
		if res.MatchedCount() == 0 {
			return s.compensateCommit(ctx, c, inv, c.Deltas[:i], s.classifyDeltaFailure(ctx, d))
		}
	}

	for _, a := range c.Applications {
		if _, err := s.mdb.NewInsert(toApplicationModel(a)).Exec(ctx); err != nil {
			return s.compensateCommit(ctx, c, inv, c.Deltas,
				fmt.Errorf("tuition/mongo: insert application: %w", err))
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
		_, err := s.mdb.Collection(colEntries).UpdateOne(ctx,
			bson.M{"_id": d.EntryID.String(), "version": d.Version + 1},
			bson.M{
				"$inc": bson.M{
					"applied_amount_cents":   -d.Amount.Amount,
					"remaining_amount_cents": d.Amount.Amount,
					"version":                1,
				},
				"$set": bson.M{
					"status":     string(entry.StatusOpen),
					"updated_at": now(),
				},
			})
		if err != nil {
			cause = errors.Join(cause, fmt.Errorf("tuition/mongo: compensate entry delta: %w", err))
		}
	}

	_, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{"_id": c.InvoiceID.String(), "version": c.InvoiceVersion + 1}).
		Set("applied_cents", prior.AppliedAmount.Amount).
		Set("status", string(prior.Status)).
		Set("paid_at", prior.PaidAt).
		Set("version", c.InvoiceVersion+2).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		cause = errors.Join(cause, fmt.Errorf("tuition/mongo: compensate invoice commit: %w", err))
	}
	return cause
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	m := toInvoiceModel(inv)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return tuition.ErrDuplicateNumber
		}
		return fmt.Errorf("tuition/mongo: create invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var m invoiceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": invID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tuition.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("tuition/mongo: get invoice: %w", err)
	}
	return fromInvoiceModel(&m)
}

func (s *Store) GetInvoiceByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	var m invoiceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"number": number}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tuition.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("tuition/mongo: get invoice by number: %w", err)
	}
	return fromInvoiceModel(&m)
}

func (s *Store) ListInvoices(ctx context.Context, studentID string, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	filter := bson.M{}
	if studentID != "" {
		filter["student_id"] = studentID
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.EnrollmentID != "" {
		filter["enrollment_id"] = opts.EnrollmentID
	}
	if opts.CreditOnly {
		filter["is_credit_invoice"] = true
	}
	if !opts.Start.IsZero() || !opts.End.IsZero() {
		issued := bson.M{}
		if !opts.Start.IsZero() {
			issued["$gte"] = opts.Start
		}
		if !opts.End.IsZero() {
			issued["$lte"] = opts.End
		}
		filter["issue_date"] = issued
	}

	var models []invoiceModel
	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "issue_date", Value: 1}, {Key: "number", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tuition/mongo: list invoices: %w", err)
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
	models := make([]lineModel, len(lines))
	for i, l := range lines {
		models[i] = toLineModel(l)
	}

	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{"_id": invID.String(), "version": version}).
		Set("lines", models).
		Set("subtotal_cents", subtotal.Amount).
		Set("vat_cents", vat.Amount).
		Set("total_cents", total.Amount).
		Set("version", version+1).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tuition/mongo: replace invoice lines: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.classifyInvoiceWriteFailure(ctx, invID)
	}
	return nil
}

func (s *Store) AddPayment(ctx context.Context, invID id.InvoiceID, version int64, p invoice.Payment, newStatus invoice.Status) error {
	// Read-modify-write on the payments array; the version filter rejects
	// the write if the invoice moved since the read.
	inv, err := s.GetInvoice(ctx, invID)
	if err != nil {
		return err
	}
	if inv.Version != version {
		return tuition.ErrVersionConflict
	}

	payments := make([]paymentModel, 0, len(inv.Payments)+1)
	for _, existing := range inv.Payments {
		payments = append(payments, toPaymentModel(existing))
	}
	payments = append(payments, toPaymentModel(p))

	q := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{"_id": invID.String(), "version": version}).
		Set("payments", payments).
		Set("version", version+1).
		Set("updated_at", now())
	if newStatus != "" {
		q = q.Set("status", string(newStatus))
		if newStatus == invoice.StatusPaid {
			q = q.Set("paid_at", p.PaidAt)
		}
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("tuition/mongo: add payment: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.classifyInvoiceWriteFailure(ctx, invID)
	}
	return nil
}

func (s *Store) MarkInvoiceSent(ctx context.Context, invID id.InvoiceID, version int64, sentAt time.Time) error {
	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{"_id": invID.String(), "version": version}).
		Set("status", string(invoice.StatusSent)).
		Set("sent_at", sentAt).
		Set("version", version+1).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tuition/mongo: mark invoice sent: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.classifyInvoiceWriteFailure(ctx, invID)
	}
	return nil
}

func (s *Store) MarkInvoiceCancelled(ctx context.Context, invID id.InvoiceID, version int64, cancelledAt time.Time, reason string) error {
	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{"_id": invID.String(), "version": version}).
		Set("status", string(invoice.StatusCancelled)).
		Set("cancelled_at", cancelledAt).
		Set("cancel_reason", reason).
		Set("version", version+1).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tuition/mongo: mark invoice cancelled: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.classifyInvoiceWriteFailure(ctx, invID)
	}
	return nil
}

func (s *Store) ListOverdueCandidates(ctx context.Context, cutoff time.Time) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"status":   string(invoice.StatusSent),
			"due_date": bson.M{"$lt": cutoff},
		}).
		Sort(bson.D{{Key: "due_date", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("tuition/mongo: list overdue candidates: %w", err)
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
	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{"_id": invID.String(), "version": version}).
		Set("status", string(invoice.StatusOverdue)).
		Set("version", version+1).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tuition/mongo: mark invoice overdue: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.classifyInvoiceWriteFailure(ctx, invID)
	}
	return nil
}

// ==================== Sequence Store ====================

func (s *Store) NextSequence(ctx context.Context, kind invoice.NumberKind, year int) (int64, error) {
	key := fmt.Sprintf("%s:%d", kind, year)

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var m sequenceModel
	err := s.mdb.Collection(colSequences).
		FindOneAndUpdate(ctx,
			bson.M{"_id": key},
			bson.M{"$inc": bson.M{"value": int64(1)}},
			opts,
		).
		Decode(&m)
	if err != nil {
		return 0, fmt.Errorf("tuition/mongo: next sequence: %w", err)
	}
	return m.Value, nil
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all tuition collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colEntries: {
			{Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "type", Value: 1}, {Key: "status", Value: 1}}},
			{
				Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "reference", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"reference": bson.M{"$gt": ""}}),
			},
		},
		colApplications: {
			{Keys: bson.D{{Key: "entry_id", Value: 1}, {Key: "applied_at", Value: 1}}},
			{Keys: bson.D{{Key: "invoice_id", Value: 1}, {Key: "applied_at", Value: 1}}},
		},
		colInvoices: {
			{
				Keys:    bson.D{{Key: "number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "issue_date", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "due_date", Value: 1}}},
		},
		colSequences: {},
	}
}
