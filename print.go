package tuition

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xraph/tuition/enrollment"
	"github.com/xraph/tuition/entry"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/invoice"
)

// SchoolProfile carries the letterhead metadata printed on every invoice.
type SchoolProfile struct {
	Name               string `json:"name"               yaml:"name"`
	Address            string `json:"address"            yaml:"address"`
	VATNumber          string `json:"vat_number"         yaml:"vat_number"`
	RegistrationNumber string `json:"registration_number" yaml:"registration_number"`
	IBAN               string `json:"iban"               yaml:"iban"`
}

// PrintView is the fully resolved projection of an invoice for rendering.
// Formatters receive it as-is and own the presentation.
type PrintView struct {
	School       SchoolProfile        `json:"school"`
	Invoice      *invoice.Invoice     `json:"invoice"`
	Student      *enrollment.Student  `json:"student"`
	Applications []*entry.Application `json:"applications,omitempty"`
}

// PrintInvoice assembles the print projection for an invoice: letterhead,
// the invoice itself, the student it bills, and any ledger credit applied
// against it.
func (e *Engine) PrintInvoice(ctx context.Context, invoiceID id.InvoiceID) (*PrintView, error) {
	if _, err := e.requireActor(ctx); err != nil {
		return nil, err
	}

	inv, err := e.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	view := &PrintView{
		School:  e.school,
		Invoice: inv,
	}

	if e.source != nil {
		student, err := e.source.GetStudent(ctx, inv.StudentID)
		if err != nil {
			return nil, ErrStudentNotFound
		}
		view.Student = student
	}

	apps, err := e.store.ListApplicationsForInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	view.Applications = apps

	return view, nil
}

// RenderInvoice writes the invoice to w using the formatter plugin
// registered for the given format.
func (e *Engine) RenderInvoice(ctx context.Context, invoiceID id.InvoiceID, format string, w io.Writer) error {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return ValidationError{Field: "format", Message: "A render format is required"}
	}

	formatter := e.plugins.GetFormatter(format)
	if formatter == nil {
		return invalidOp(fmt.Sprintf("No formatter registered for format %q", format))
	}

	view, err := e.PrintInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}

	return formatter.Render(ctx, view, w)
}
