package mongo

import (
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

	ID                   string    `grove:"id,pk"                  bson:"_id"`
	StudentID            string    `grove:"student_id"             bson:"student_id"`
	Type                 string    `grove:"type"                   bson:"type"`
	Status               string    `grove:"status"                 bson:"status"`
	AmountCents          int64     `grove:"amount_cents"           bson:"amount_cents"`
	Currency             string    `grove:"currency"               bson:"currency"`
	Description          string    `grove:"description"            bson:"description"`
	CourseID             string    `grove:"course_id"              bson:"course_id,omitempty"`
	Reference            string    `grove:"reference"              bson:"reference"`
	AppliedAmountCents   int64     `grove:"applied_amount_cents"   bson:"applied_amount_cents"`
	RemainingAmountCents int64     `grove:"remaining_amount_cents" bson:"remaining_amount_cents"`
	ReversalID           string    `grove:"reversal_id"            bson:"reversal_id,omitempty"`
	ReversalOf           string    `grove:"reversal_of"            bson:"reversal_of,omitempty"`
	CreatedBy            string    `grove:"created_by"             bson:"created_by"`
	Version              int64     `grove:"version"                bson:"version"`
	CreatedAt            time.Time `grove:"created_at"             bson:"created_at"`
	UpdatedAt            time.Time `grove:"updated_at"             bson:"updated_at"`
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

	ID            string    `grove:"id,pk"          bson:"_id"`
	EntryID       string    `grove:"entry_id"       bson:"entry_id"`
	InvoiceID     string    `grove:"invoice_id"     bson:"invoice_id"`
	InvoiceNumber string    `grove:"invoice_number" bson:"invoice_number"`
	AmountCents   int64     `grove:"amount_cents"   bson:"amount_cents"`
	Currency      string    `grove:"currency"       bson:"currency"`
	AppliedAt     time.Time `grove:"applied_at"     bson:"applied_at"`
	AppliedBy     string    `grove:"applied_by"     bson:"applied_by"`
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

	ID                string         `grove:"id,pk"               bson:"_id"`
	Number            string         `grove:"number"              bson:"number"`
	StudentID         string         `grove:"student_id"          bson:"student_id"`
	EnrollmentID      string         `grove:"enrollment_id"       bson:"enrollment_id,omitempty"`
	Status            string         `grove:"status"              bson:"status"`
	IssueDate         time.Time      `grove:"issue_date"          bson:"issue_date"`
	DueDate           time.Time      `grove:"due_date"            bson:"due_date"`
	PeriodStart       time.Time      `grove:"period_start"        bson:"period_start"`
	PeriodEnd         time.Time      `grove:"period_end"          bson:"period_end"`
	PeriodType        string         `grove:"period_type"         bson:"period_type,omitempty"`
	Description       string         `grove:"description"         bson:"description"`
	Currency          string         `grove:"currency"            bson:"currency"`
	SubtotalCents     int64          `grove:"subtotal_cents"      bson:"subtotal_cents"`
	VATCents          int64          `grove:"vat_cents"           bson:"vat_cents"`
	TotalCents        int64          `grove:"total_cents"         bson:"total_cents"`
	Lines             []lineModel    `grove:"lines"               bson:"lines"`
	Payments          []paymentModel `grove:"payments"            bson:"payments"`
	AppliedCents      int64          `grove:"applied_cents"       bson:"applied_cents"`
	IsCreditInvoice   bool           `grove:"is_credit_invoice"   bson:"is_credit_invoice"`
	OriginalInvoiceID string         `grove:"original_invoice_id" bson:"original_invoice_id,omitempty"`
	SentAt            *time.Time     `grove:"sent_at"             bson:"sent_at,omitempty"`
	PaidAt            *time.Time     `grove:"paid_at"             bson:"paid_at,omitempty"`
	CancelledAt       *time.Time     `grove:"cancelled_at"        bson:"cancelled_at,omitempty"`
	CancelReason      string         `grove:"cancel_reason"       bson:"cancel_reason,omitempty"`
	Notes             string         `grove:"notes"               bson:"notes,omitempty"`
	CreatedBy         string         `grove:"created_by"          bson:"created_by"`
	Version           int64          `grove:"version"             bson:"version"`
	CreatedAt         time.Time      `grove:"created_at"          bson:"created_at"`
	UpdatedAt         time.Time      `grove:"updated_at"          bson:"updated_at"`
}

type lineModel struct {
	ID             string `bson:"id"`
	Description    string `bson:"description"`
	Quantity       int64  `bson:"quantity"`
	UnitPriceCents int64  `bson:"unit_price_cents"`
	Currency       string `bson:"currency"`
	VATRate        int64  `bson:"vat_rate"`
	TotalCents     int64  `bson:"total_cents"`
	LessonID       string `bson:"lesson_id,omitempty"`
	CreditedLineID string `bson:"credited_line_id,omitempty"`
}

type paymentModel struct {
	ID          string    `bson:"id"`
	AmountCents int64     `bson:"amount_cents"`
	Currency    string    `bson:"currency"`
	Method      string    `bson:"method"`
	Reference   string    `bson:"reference,omitempty"`
	PaidAt      time.Time `bson:"paid_at"`
	RecordedBy  string    `bson:"recorded_by"`
}

func toLineModel(l invoice.Line) lineModel {
	m := lineModel{
		ID:             l.ID.String(),
		Description:    l.Description,
		Quantity:       l.Quantity,
		UnitPriceCents: l.UnitPrice.Amount,
		Currency:       l.UnitPrice.Currency,
		VATRate:        l.VATRate,
		TotalCents:     l.Total.Amount,
		LessonID:       l.LessonID,
	}
	if !l.CreditedLineID.IsNil() {
		m.CreditedLineID = l.CreditedLineID.String()
	}
	return m
}

func fromLineModel(m lineModel) (invoice.Line, error) {
	lineID, err := id.ParseLineID(m.ID)
	if err != nil {
		return invoice.Line{}, err
	}

	l := invoice.Line{
		ID:          lineID,
		Description: m.Description,
		Quantity:    m.Quantity,
		UnitPrice:   types.Money{Amount: m.UnitPriceCents, Currency: m.Currency},
		VATRate:     m.VATRate,
		Total:       types.Money{Amount: m.TotalCents, Currency: m.Currency},
		LessonID:    m.LessonID,
	}
	if m.CreditedLineID != "" {
		creditedID, err := id.ParseLineID(m.CreditedLineID)
		if err != nil {
			return invoice.Line{}, err
		}
		l.CreditedLineID = creditedID
	}
	return l, nil
}

func toPaymentModel(p invoice.Payment) paymentModel {
	return paymentModel{
		ID:          p.ID.String(),
		AmountCents: p.Amount.Amount,
		Currency:    p.Amount.Currency,
		Method:      p.Method,
		Reference:   p.Reference,
		PaidAt:      p.PaidAt,
		RecordedBy:  p.RecordedBy,
	}
}

func fromPaymentModel(m paymentModel) (invoice.Payment, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return invoice.Payment{}, err
	}

	return invoice.Payment{
		ID:         payID,
		Amount:     types.Money{Amount: m.AmountCents, Currency: m.Currency},
		Method:     m.Method,
		Reference:  m.Reference,
		PaidAt:     m.PaidAt,
		RecordedBy: m.RecordedBy,
	}, nil
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	lines := make([]lineModel, len(inv.Lines))
	for i, l := range inv.Lines {
		lines[i] = toLineModel(l)
	}
	payments := make([]paymentModel, len(inv.Payments))
	for i, p := range inv.Payments {
		payments[i] = toPaymentModel(p)
	}

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

	lines := make([]invoice.Line, len(m.Lines))
	for i, lm := range m.Lines {
		l, err := fromLineModel(lm)
		if err != nil {
			return nil, err
		}
		lines[i] = l
	}
	payments := make([]invoice.Payment, len(m.Payments))
	for i, pm := range m.Payments {
		p, err := fromPaymentModel(pm)
		if err != nil {
			return nil, err
		}
		payments[i] = p
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

// ==================== Sequence models ====================

type sequenceModel struct {
	Key   string `bson:"_id"`
	Value int64  `bson:"value"`
}
