package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
	"github.com/xraph/tuition/types"
)

// ==================== Entry models ====================

type entryModel struct {
	grove.BaseModel `grove:"table:tuition_entries"`

	ID                   string    `grove:"id,pk"`
	StudentID            string    `grove:"student_id"`
	Type                 string    `grove:"type"`
	Status               string    `grove:"status"`
	AmountCents          int64     `grove:"amount_cents"`
	Currency             string    `grove:"currency"`
	Description          string    `grove:"description"`
	CourseID             string    `grove:"course_id"`
	Reference            string    `grove:"reference"`
	AppliedAmountCents   int64     `grove:"applied_amount_cents"`
	RemainingAmountCents int64     `grove:"remaining_amount_cents"`
	ReversalID           string    `grove:"reversal_id"`
	ReversalOf           string    `grove:"reversal_of"`
	CreatedBy            string    `grove:"created_by"`
	Version              int64     `grove:"version"`
	CreatedAt            time.Time `grove:"created_at"`
	UpdatedAt            time.Time `grove:"updated_at"`
}

func toEntryModel(e *entry.Entry) *entryModel {
	m := &entryModel{
		ID:                   e.ID.String(),
		StudentID:            e.StudentID,
		Type:                 string(e.Type),
		Status:               string(e.Status),
		AmountCents:          e.Amount.Amount,
		Currency:             e.Amount.Currency,
		Description:          e.Description,
		CourseID:             e.CourseID,
		Reference:            e.Reference,
		AppliedAmountCents:   e.AppliedAmount.Amount,
		RemainingAmountCents: e.RemainingAmount.Amount,
		CreatedBy:            e.CreatedBy,
		Version:              e.Version,
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.UpdatedAt,
	}
	if !e.ReversalID.IsNil() {
		m.ReversalID = e.ReversalID.String()
	}
	if !e.ReversalOf.IsNil() {
		m.ReversalOf = e.ReversalOf.String()
	}
	return m
}

func fromEntryModel(m *entryModel) (*entry.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, err
	}

	e := &entry.Entry{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              entryID,
		StudentID:       m.StudentID,
		Type:            entry.Type(m.Type),
		Status:          entry.Status(m.Status),
		Amount:          types.Money{Amount: m.AmountCents, Currency: m.Currency},
		Description:     m.Description,
		CourseID:        m.CourseID,
		Reference:       m.Reference,
		AppliedAmount:   types.Money{Amount: m.AppliedAmountCents, Currency: m.Currency},
		RemainingAmount: types.Money{Amount: m.RemainingAmountCents, Currency: m.Currency},
		CreatedBy:       m.CreatedBy,
		Version:         m.Version,
	}

	if m.ReversalID != "" {
		revID, err := id.ParseEntryID(m.ReversalID)
		if err != nil {
			return nil, err
		}
		e.ReversalID = revID
	}
	if m.ReversalOf != "" {
		revOf, err := id.ParseEntryID(m.ReversalOf)
		if err != nil {
			return nil, err
		}
		e.ReversalOf = revOf
	}
	return e, nil
}

// ==================== Application models ====================

type applicationModel struct {
	grove.BaseModel `grove:"table:tuition_applications"`

	ID            string    `grove:"id,pk"`
	EntryID       string    `grove:"entry_id"`
	InvoiceID     string    `grove:"invoice_id"`
	InvoiceNumber string    `grove:"invoice_number"`
	AmountCents   int64     `grove:"amount_cents"`
	Currency      string    `grove:"currency"`
	AppliedAt     time.Time `grove:"applied_at"`
	AppliedBy     string    `grove:"applied_by"`
}

func toApplicationModel(a *entry.Application) *applicationModel {
	return &applicationModel{
		ID:            a.ID.String(),
		EntryID:       a.EntryID.String(),
		InvoiceID:     a.InvoiceID.String(),
		InvoiceNumber: a.InvoiceNumber,
		AmountCents:   a.Amount.Amount,
		Currency:      a.Amount.Currency,
		AppliedAt:     a.AppliedAt,
		AppliedBy:     a.AppliedBy,
	}
}

func fromApplicationModel(m *applicationModel) (*entry.Application, error) {
	appID, err := id.ParseApplicationID(m.ID)
	if err != nil {
		return nil, err
	}
	entryID, err := id.ParseEntryID(m.EntryID)
	if err != nil {
		return nil, err
	}
	invID, err := id.ParseInvoiceID(m.InvoiceID)
	if err != nil {
		return nil, err
	}

	return &entry.Application{
		ID:            appID,
		EntryID:       entryID,
		InvoiceID:     invID,
		InvoiceNumber: m.InvoiceNumber,
		Amount:        types.Money{Amount: m.AmountCents, Currency: m.Currency},
		AppliedAt:     m.AppliedAt,
		AppliedBy:     m.AppliedBy,
	}, nil
}

// ==================== Invoice models ====================

type invoiceModel struct {
	grove.BaseModel `grove:"table:tuition_invoices"`

	ID                string          `grove:"id,pk"`
	Number            string          `grove:"number"`
	StudentID         string          `grove:"student_id"`
	EnrollmentID      string          `grove:"enrollment_id"`
	Status            string          `grove:"status"`
	IssueDate         time.Time       `grove:"issue_date"`
	DueDate           time.Time       `grove:"due_date"`
	PeriodStart       time.Time       `grove:"period_start"`
	PeriodEnd         time.Time       `grove:"period_end"`
	PeriodType        string          `grove:"period_type"`
	Description       string          `grove:"description"`
	Currency          string          `grove:"currency"`
	SubtotalCents     int64           `grove:"subtotal_cents"`
	VATCents          int64           `grove:"vat_cents"`
	TotalCents        int64           `grove:"total_cents"`
	Lines             json.RawMessage `grove:"lines,type:jsonb"`
	Payments          json.RawMessage `grove:"payments,type:jsonb"`
	AppliedCents      int64           `grove:"applied_cents"`
	IsCreditInvoice   bool            `grove:"is_credit_invoice"`
	OriginalInvoiceID string          `grove:"original_invoice_id"`
	SentAt            *time.Time      `grove:"sent_at"`
	PaidAt            *time.Time      `grove:"paid_at"`
	CancelledAt       *time.Time      `grove:"cancelled_at"`
	CancelReason      string          `grove:"cancel_reason"`
	Notes             string          `grove:"notes"`
	CreatedBy         string          `grove:"created_by"`
	Version           int64           `grove:"version"`
	CreatedAt         time.Time       `grove:"created_at"`
	UpdatedAt         time.Time       `grove:"updated_at"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	lines, _ := json.Marshal(inv.Lines)       //nolint:errcheck // best-effort
	payments, _ := json.Marshal(inv.Payments) //nolint:errcheck // best-effort

	m := &invoiceModel{
		ID:              inv.ID.String(),
		Number:          inv.Number,
		StudentID:       inv.StudentID,
		EnrollmentID:    inv.EnrollmentID,
		Status:          string(inv.Status),
		IssueDate:       inv.IssueDate,
		DueDate:         inv.DueDate,
		PeriodStart:     inv.Period.Start,
		PeriodEnd:       inv.Period.End,
		PeriodType:      string(inv.PeriodType),
		Description:     inv.Description,
		Currency:        inv.Currency,
		SubtotalCents:   inv.Subtotal.Amount,
		VATCents:        inv.VATAmount.Amount,
		TotalCents:      inv.Total.Amount,
		Lines:           lines,
		Payments:        payments,
		AppliedCents:    inv.AppliedAmount.Amount,
		IsCreditInvoice: inv.IsCreditInvoice,
		SentAt:          inv.SentAt,
		PaidAt:          inv.PaidAt,
		CancelledAt:     inv.CancelledAt,
		CancelReason:    inv.CancelReason,
		Notes:           inv.Notes,
		CreatedBy:       inv.CreatedBy,
		Version:         inv.Version,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
	}
	if !inv.OriginalInvoiceID.IsNil() {
		m.OriginalInvoiceID = inv.OriginalInvoiceID.String()
	}
	return m
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}

	var lines []invoice.Line
	if len(m.Lines) > 0 {
		_ = json.Unmarshal(m.Lines, &lines) //nolint:errcheck // best-effort
	}
	var payments []invoice.Payment
	if len(m.Payments) > 0 {
		_ = json.Unmarshal(m.Payments, &payments) //nolint:errcheck // best-effort
	}

	inv := &invoice.Invoice{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              invID,
		Number:          m.Number,
		StudentID:       m.StudentID,
		EnrollmentID:    m.EnrollmentID,
		Status:          invoice.Status(m.Status),
		IssueDate:       m.IssueDate,
		DueDate:         m.DueDate,
		Period:          types.Period{Start: m.PeriodStart, End: m.PeriodEnd},
		PeriodType:      types.PeriodType(m.PeriodType),
		Description:     m.Description,
		Currency:        m.Currency,
		Subtotal:        types.Money{Amount: m.SubtotalCents, Currency: m.Currency},
		VATAmount:       types.Money{Amount: m.VATCents, Currency: m.Currency},
		Total:           types.Money{Amount: m.TotalCents, Currency: m.Currency},
		Lines:           lines,
		Payments:        payments,
		AppliedAmount:   types.Money{Amount: m.AppliedCents, Currency: m.Currency},
		IsCreditInvoice: m.IsCreditInvoice,
		SentAt:          m.SentAt,
		PaidAt:          m.PaidAt,
		CancelledAt:     m.CancelledAt,
		CancelReason:    m.CancelReason,
		Notes:           m.Notes,
		CreatedBy:       m.CreatedBy,
		Version:         m.Version,
	}

	if m.OriginalInvoiceID != "" {
		origID, err := id.ParseInvoiceID(m.OriginalInvoiceID)
		if err != nil {
			return nil, err
		}
		inv.OriginalInvoiceID = origID
	}
	return inv, nil
}

// marshalJSON renders a JSONB column value for conditional updates.
func marshalJSON(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

// ==================== Sequence models ====================

type sequenceModel struct {
	grove.BaseModel `grove:"table:tuition_sequences"`

	Key   string `grove:"key,pk"`
	Value int64  `grove:"value"`
}
