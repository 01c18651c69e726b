// Package enrollment defines the read-only boundary to the school
// administration system. Students, enrollments and scheduled lessons are
// owned over there; the billing engine only consumes them through the
// Source interface and never mints their identifiers.
package enrollment

import (
	"context"

	"github.com/xraph/tuition/types"
)

// Student is the billing-relevant projection of a student record.
type Student struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// Enrollment ties a student to a course with an invoicing cadence.
type Enrollment struct {
	ID         string           `json:"id"`
	StudentID  string           `json:"student_id"`
	CourseID   string           `json:"course_id"`
	CourseName string           `json:"course_name"`
	// InvoicingPreference selects which batch runs pick this enrollment up.
	InvoicingPreference types.PeriodType `json:"invoicing_preference"`
	// Billable is false for scholarship or staff enrollments that never
	// produce invoices.
	Billable bool `json:"billable"`
	// RegistrationFee, when positive, is debited to the student's ledger
	// once, on first invoice generation.
	RegistrationFee types.Money `json:"registration_fee"`
}

// BillableLine is one invoiceable position derived from the schedule:
// a lesson given, a room rental, an instrument hire.
type BillableLine struct {
	Description string      `json:"description"`
	Quantity    int64       `json:"quantity"`
	UnitPrice   types.Money `json:"unit_price"`
	VATRate     int64       `json:"vat_rate"` // basis points
	LessonID    string      `json:"lesson_id,omitempty"`
}

// Source is implemented by the host system. Every read the engine needs
// crosses this boundary; an enrollment with no billable lines for a period
// is simply not invoiceable for that period.
type Source interface {
	GetStudent(ctx context.Context, studentID string) (*Student, error)
	GetEnrollment(ctx context.Context, enrollmentID string) (*Enrollment, error)
	// ListBillable returns the invoiceable lines an enrollment accrued
	// inside the period.
	ListBillable(ctx context.Context, enrollmentID string, period types.Period) ([]BillableLine, error)
	// ListActiveEnrollments returns the billable enrollments invoiced on
	// the given cadence, for batch generation.
	ListActiveEnrollments(ctx context.Context, periodType types.PeriodType) ([]*Enrollment, error)
}
