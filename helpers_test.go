package tuition_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/enrollment"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/store/memory"
	"github.com/xraph/tuition/types"
)

// fakeSource is an in-memory enrollment.Source for tests. Populate the maps
// before handing it to the engine; the engine only reads.
type fakeSource struct {
	students    map[string]*enrollment.Student
	enrollments map[string]*enrollment.Enrollment
	billable    map[string][]enrollment.BillableLine
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		students:    make(map[string]*enrollment.Student),
		enrollments: make(map[string]*enrollment.Enrollment),
		billable:    make(map[string][]enrollment.BillableLine),
	}
}

func (f *fakeSource) GetStudent(_ context.Context, studentID string) (*enrollment.Student, error) {
	s, ok := f.students[studentID]
	if !ok {
		return nil, errors.New("student not found")
	}
	return s, nil
}

func (f *fakeSource) GetEnrollment(_ context.Context, enrollmentID string) (*enrollment.Enrollment, error) {
	e, ok := f.enrollments[enrollmentID]
	if !ok {
		return nil, errors.New("enrollment not found")
	}
	return e, nil
}

func (f *fakeSource) ListBillable(_ context.Context, enrollmentID string, _ types.Period) ([]enrollment.BillableLine, error) {
	return f.billable[enrollmentID], nil
}

func (f *fakeSource) ListActiveEnrollments(_ context.Context, periodType types.PeriodType) ([]*enrollment.Enrollment, error) {
	var out []*enrollment.Enrollment
	for _, e := range f.enrollments {
		if e.Billable && e.InvoicingPreference == periodType {
			out = append(out, e)
		}
	}
	return out, nil
}

// addStudent registers a student and returns its ID.
func (f *fakeSource) addStudent(id, name string) string {
	f.students[id] = &enrollment.Student{ID: id, Name: name, Email: id + "@school.example"}
	return id
}

// addEnrollment registers a billable monthly piano enrollment for a student.
func (f *fakeSource) addEnrollment(id, studentID string) *enrollment.Enrollment {
	e := &enrollment.Enrollment{
		ID:                  id,
		StudentID:           studentID,
		CourseID:            "crs-piano",
		CourseName:          "Piano",
		InvoicingPreference: types.PeriodMonthly,
		Billable:            true,
	}
	f.enrollments[id] = e
	return e
}

// addLessons records n billable lessons at unitPrice cents with VAT in
// basis points.
func (f *fakeSource) addLessons(enrollmentID string, n, unitPrice, vatBps int64) {
	for i := int64(0); i < n; i++ {
		f.billable[enrollmentID] = append(f.billable[enrollmentID], enrollment.BillableLine{
			Description: "Piano lesson 30 min",
			Quantity:    1,
			UnitPrice:   types.EUR(unitPrice),
			VATRate:     vatBps,
		})
	}
}

// testClock is the fixed engine time used across tests: mid-February 2026.
var testClock = time.Date(2026, time.February, 16, 10, 0, 0, 0, time.UTC)

// testPeriod is the billing period matching testClock's month.
var testPeriod = types.MonthPeriod(testClock)

// newTestEngine wires a memory store, the given source and a pinned clock.
// The overdue sweep is disabled so tests control every transition.
func newTestEngine(t *testing.T, src enrollment.Source, opts ...tuition.Option) *tuition.Engine {
	t.Helper()

	base := []tuition.Option{
		tuition.WithSource(src),
		tuition.WithClock(func() time.Time { return testClock }),
		tuition.WithOverdueSweepInterval(0),
	}
	eng := tuition.New(memory.New(), append(base, opts...)...)

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		if err := eng.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	return eng
}

// actorCtx returns a context carrying a back-office actor.
func actorCtx() context.Context {
	return tuition.WithActor(context.Background(), "anna@school.example")
}

// newEntryID mints an entry ID that is in no store, for not-found paths.
func newEntryID(t *testing.T) id.EntryID {
	t.Helper()
	return id.NewEntryID()
}

// newInvoiceID mints an invoice ID that is in no store.
func newInvoiceID(t *testing.T) id.InvoiceID {
	t.Helper()
	return id.NewInvoiceID()
}
