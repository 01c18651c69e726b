package tuition_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/xraph/tuition"
)

// jsonFormatter is a minimal invoice formatter used to exercise the
// registry dispatch.
type jsonFormatter struct{}

func (jsonFormatter) Name() string   { return "json-formatter" }
func (jsonFormatter) Format() string { return "json" }

func (jsonFormatter) Render(_ context.Context, view any, w io.Writer) error {
	return json.NewEncoder(w).Encode(view)
}

func TestPrintInvoice(t *testing.T) {
	src := newFakeSource()
	student := src.addStudent("stu-1", "Anna Jansen")
	src.addEnrollment("enr-1", student)
	src.addLessons("enr-1", 4, 2500, 2100)

	school := tuition.SchoolProfile{
		Name:      "Muziekschool Amstel",
		Address:   "Amstelveenseweg 12, Amsterdam",
		VATNumber: "NL123456789B01",
		IBAN:      "NL02ABNA0123456789",
	}
	eng := newTestEngine(t, src,
		tuition.WithSchoolProfile(school),
		tuition.WithPlugin(jsonFormatter{}),
	)
	ctx := actorCtx()

	inv, err := eng.GenerateInvoice(ctx, "enr-1", testPeriod)
	if err != nil {
		t.Fatalf("GenerateInvoice() error = %v", err)
	}

	t.Run("View", func(t *testing.T) {
		view, err := eng.PrintInvoice(ctx, inv.ID)
		if err != nil {
			t.Fatalf("PrintInvoice() error = %v", err)
		}
		if view.School.Name != school.Name {
			t.Errorf("school = %q, want %q", view.School.Name, school.Name)
		}
		if view.Invoice.ID != inv.ID {
			t.Error("view carries the wrong invoice")
		}
		if view.Student == nil || view.Student.Name != "Anna Jansen" {
			t.Error("view missing the student projection")
		}
	})

	t.Run("Render", func(t *testing.T) {
		var buf bytes.Buffer
		if err := eng.RenderInvoice(ctx, inv.ID, "json", &buf); err != nil {
			t.Fatalf("RenderInvoice() error = %v", err)
		}
		if !bytes.Contains(buf.Bytes(), []byte(inv.Number)) {
			t.Errorf("rendered output does not mention the invoice number")
		}
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		var buf bytes.Buffer
		err := eng.RenderInvoice(ctx, inv.ID, "pdf", &buf)
		if !tuition.IsInvalidOperation(err) {
			t.Fatalf("error = %v, want invalid operation", err)
		}
	})
}
