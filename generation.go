package tuition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/tuition/enrollment"
	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/types"
)

// GenerateInvoice builds a draft invoice for one enrollment over a period
// from the billable activity the source reports. An enrollment with no
// billable activity in the period is not invoiceable.
func (e *Engine) GenerateInvoice(ctx context.Context, enrollmentID string, period types.Period) (*invoice.Invoice, error) {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := period.Validate(); err != nil {
		return nil, ValidationError{Field: "period", Message: err.Error()}
	}
	if err := e.requireSource(); err != nil {
		return nil, err
	}

	enr, err := e.source.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, ErrEnrollmentNotFound
	}
	if !enr.Billable {
		return nil, invalidOp("Enrollment is not billable")
	}
	student, err := e.source.GetStudent(ctx, enr.StudentID)
	if err != nil {
		return nil, ErrStudentNotFound
	}

	billable, err := e.source.ListBillable(ctx, enrollmentID, period)
	if err != nil {
		return nil, err
	}
	if len(billable) == 0 {
		return nil, invalidOp("No lessons found for this period.")
	}

	unlock := e.lockStudent(student.ID)
	defer unlock()

	issueDate := e.now()
	number, err := e.nextInvoiceNumber(ctx, invoice.KindStandard, issueDate.Year())
	if err != nil {
		return nil, err
	}

	inv := &invoice.Invoice{
		Entity:        types.NewEntityAt(issueDate),
		ID:            id.NewInvoiceID(),
		Number:        number,
		StudentID:     student.ID,
		EnrollmentID:  enr.ID,
		Status:        invoice.StatusDraft,
		IssueDate:     issueDate,
		DueDate:       issueDate.AddDate(0, 0, e.dueDays),
		Period:        period,
		PeriodType:    enr.InvoicingPreference,
		Description:   fmt.Sprintf("%s, %s", enr.CourseName, period.Label()),
		Currency:      e.currency,
		Lines:         linesFromBillable(billable),
		Payments:      []invoice.Payment{},
		AppliedAmount: types.Zero(e.currency),
		CreatedBy:     actor,
		Version:       1,
	}
	inv.RecalculateTotals()

	if err := e.store.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	// One-time registration fee debit, keyed by reference so repeated
	// generation never debits twice.
	if err := e.ensureRegistrationDebit(ctx, enr, actor); err != nil {
		e.logger.Error("registration fee debit failed",
			"enrollment", enr.ID,
			"error", err,
		)
	}

	e.plugins.EmitInvoiceGenerated(ctx, inv)
	e.logger.Info("invoice generated",
		"invoice", inv.Number,
		"student", inv.StudentID,
		"enrollment", inv.EnrollmentID,
		"total", inv.Total,
		"lines", len(inv.Lines),
	)
	return inv, nil
}

func linesFromBillable(billable []enrollment.BillableLine) []invoice.Line {
	lines := make([]invoice.Line, 0, len(billable))
	for _, b := range billable {
		lines = append(lines, invoice.Line{
			ID:          id.NewLineID(),
			Description: b.Description,
			Quantity:    b.Quantity,
			UnitPrice:   b.UnitPrice,
			VATRate:     b.VATRate,
			LessonID:    b.LessonID,
		})
	}
	return lines
}

// ensureRegistrationDebit debits the enrollment's registration fee exactly
// once, using the correction reference as the idempotency key.
func (e *Engine) ensureRegistrationDebit(ctx context.Context, enr *enrollment.Enrollment, actor string) error {
	if !enr.RegistrationFee.IsPositive() {
		return nil
	}

	reference := "REG-" + enr.ID
	_, err := e.store.GetEntryByReference(ctx, enr.StudentID, reference)
	if err == nil {
		return nil // already debited
	}
	if !errors.Is(err, ErrEntryNotFound) {
		return err
	}

	debit := e.newEntry(enr.StudentID, entry.TypeDebit, enr.RegistrationFee,
		fmt.Sprintf("Registration fee %s", enr.CourseName), actor)
	debit.CourseID = enr.CourseID
	debit.Reference = reference

	if err := e.store.CreateEntry(ctx, debit); err != nil {
		return err
	}
	e.plugins.EmitEntryCreated(ctx, debit)
	return nil
}

// RecalculateInvoice re-derives a draft's lines and totals from the
// source. Only drafts can be recalculated.
func (e *Engine) RecalculateInvoice(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	if _, err := e.requireActor(ctx); err != nil {
		return nil, err
	}
	if err := e.requireSource(); err != nil {
		return nil, err
	}

	inv, err := e.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	unlock := e.lockStudent(inv.StudentID)
	defer unlock()

	inv, err = e.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != invoice.StatusDraft {
		return nil, invalidOp("Cannot recalculate a paid invoice")
	}
	// A credit invoice's lines are fixed by the original; re-deriving them
	// from lesson data would flip its total positive.
	if inv.IsCreditInvoice {
		return nil, invalidOp("Cannot recalculate a credit invoice")
	}

	billable, err := e.source.ListBillable(ctx, inv.EnrollmentID, inv.Period)
	if err != nil {
		return nil, err
	}
	if len(billable) == 0 {
		return nil, invalidOp("No lessons found for this period.")
	}

	inv.Lines = linesFromBillable(billable)
	inv.RecalculateTotals()

	if err := e.store.ReplaceInvoiceLines(ctx, inv.ID, inv.Version, inv.Lines, inv.Subtotal, inv.VATAmount, inv.Total); err != nil {
		return nil, err
	}
	inv.Version++

	e.plugins.EmitInvoiceRecalculated(ctx, inv)
	e.logger.Info("invoice recalculated", "invoice", inv.Number, "total", inv.Total)
	return inv, nil
}

// BatchSkip records one enrollment a batch run could not invoice.
type BatchSkip struct {
	EnrollmentID string `json:"enrollment_id"`
	Reason       string `json:"reason"`
}

// BatchResult aggregates a batch generation run. Per-enrollment failures
// never roll back other enrollments' invoices.
type BatchResult struct {
	Invoices []*invoice.Invoice `json:"invoices"`
	Skipped  []BatchSkip        `json:"skipped"`
}

// GenerateBatchInvoices generates invoices for every billable enrollment
// whose invoicing preference matches periodType. The run fails as a whole
// only when zero enrollments qualify; otherwise skipped enrollments are
// reported alongside the successes. The loop honors ctx cancellation
// between enrollments.
func (e *Engine) GenerateBatchInvoices(ctx context.Context, period types.Period, periodType types.PeriodType) (*BatchResult, error) {
	if _, err := e.requireActor(ctx); err != nil {
		return nil, err
	}
	if err := period.Validate(); err != nil {
		return nil, ValidationError{Field: "period", Message: err.Error()}
	}
	if !periodType.Valid() {
		return nil, ValidationError{Field: "period_type", Message: "Unknown invoicing period type"}
	}
	if err := e.requireSource(); err != nil {
		return nil, err
	}

	enrollments, err := e.source.ListActiveEnrollments(ctx, periodType)
	if err != nil {
		return nil, err
	}
	if len(enrollments) == 0 {
		return nil, invalidOp("No enrollments qualify for this billing period")
	}

	start := time.Now()
	result := &BatchResult{}

	for _, enr := range enrollments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		inv, err := e.GenerateInvoice(ctx, enr.ID, period)
		if err != nil {
			result.Skipped = append(result.Skipped, BatchSkip{
				EnrollmentID: enr.ID,
				Reason:       err.Error(),
			})
			e.logger.Warn("enrollment skipped in batch",
				"enrollment", enr.ID,
				"error", err,
			)
			continue
		}
		result.Invoices = append(result.Invoices, inv)
	}

	e.plugins.EmitBatchCompleted(ctx, len(result.Invoices), len(result.Skipped), time.Since(start))
	e.logger.Info("batch generation completed",
		"period_type", periodType,
		"generated", len(result.Invoices),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

// nextInvoiceNumber formats the next number in a sequence: "INV-2026-00042".
func (e *Engine) nextInvoiceNumber(ctx context.Context, kind invoice.NumberKind, year int) (string, error) {
	seq, err := e.store.NextSequence(ctx, kind, year)
	if err != nil {
		return "", err
	}
	prefix := e.invoicePrefix
	if kind == invoice.KindCredit {
		prefix = e.creditPrefix
	}
	return fmt.Sprintf("%s-%d-%05d", prefix, year, seq), nil
}
