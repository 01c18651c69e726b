package types

import (
	"fmt"
	"time"
)

// PeriodType is the cadence an enrollment is invoiced on.
type PeriodType string

const (
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodYearly    PeriodType = "yearly"
)

// Valid returns true if the period type is one of the known cadences.
func (t PeriodType) Valid() bool {
	switch t {
	case PeriodMonthly, PeriodQuarterly, PeriodYearly:
		return true
	}
	return false
}

// Period is a closed date range [Start, End] covered by an invoice.
// Times are stored at UTC midnight; only the date part is meaningful.
type Period struct {
	Start time.Time `json:"start" bun:"period_start"`
	End   time.Time `json:"end" bun:"period_end"`
}

// NewPeriod builds a Period from two dates, normalized to UTC midnight.
func NewPeriod(start, end time.Time) Period {
	return Period{Start: dateOnly(start), End: dateOnly(end)}
}

// MonthPeriod returns the calendar-month Period containing the given date.
func MonthPeriod(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, -1)}
}

// Validate returns an error if the range is inverted or unset.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("period: start and end are required")
	}
	if p.End.Before(p.Start) {
		return fmt.Errorf("period: end %s precedes start %s",
			p.End.Format("2006-01-02"), p.Start.Format("2006-01-02"))
	}
	return nil
}

// Contains reports whether the date falls inside the period, inclusive.
func (p Period) Contains(t time.Time) bool {
	d := dateOnly(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Overlaps reports whether two periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	return !p.End.Before(other.Start) && !other.End.Before(p.Start)
}

// Year returns the calendar year of the period start. Invoice numbering
// sequences are partitioned by this year.
func (p Period) Year() int {
	return p.Start.Year()
}

// Label renders the period for invoice descriptions:
// "01 Feb 2026 – 28 Feb 2026".
func (p Period) Label() string {
	return p.Start.Format("02 Jan 2006") + " – " + p.End.Format("02 Jan 2006")
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
