// Package daterange provides half-open intervals of whole calendar days.
//
// All dates are normalized to midnight UTC so that a night is always exactly
// one day and day arithmetic never crosses a DST boundary.
package daterange

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for dates in URLs, JSON and SQL parameters.
const DateLayout = "2006-01-02"

const day = 24 * time.Hour

// Range is the half-open interval [Start, End) of whole days.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a normalized date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s", s, DateLayout)
	}
	return t, nil
}

// Format renders a date as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(DateLayout)
}

// New builds [start, end) and fails unless end is strictly after start.
func New(start, end time.Time) (Range, error) {
	r := Range{Start: Day(start), End: Day(end)}
	if !r.End.After(r.Start) {
		return Range{}, fmt.Errorf("end date %s must be after start date %s", Format(r.End), Format(r.Start))
	}
	return r, nil
}

// Inclusive builds the range covering start through end, both included.
func Inclusive(start, end time.Time) (Range, error) {
	s, e := Day(start), Day(end)
	if e.Before(s) {
		return Range{}, fmt.Errorf("end date %s must not be before start date %s", Format(e), Format(s))
	}
	return Range{Start: s, End: e.Add(day)}, nil
}

// Nights is the number of whole days in the range.
func (r Range) Nights() int {
	return int(r.End.Sub(r.Start) / day)
}

// Dates lists every date in [Start, End) in ascending order.
func (r Range) Dates() []time.Time {
	n := r.Nights()
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	for d := r.Start; d.Before(r.End); d = d.Add(day) {
		out = append(out, d)
	}
	return out
}

// Overlaps reports whether two half-open ranges share at least one night.
// A range ending on day X and another starting on day X do not overlap.
func (r Range) Overlaps(other Range) bool {
	return r.Start.Before(other.End) && r.End.After(other.Start)
}

// Contains reports whether d falls in [Start, End).
func (r Range) Contains(d time.Time) bool {
	d = Day(d)
	return !d.Before(r.Start) && d.Before(r.End)
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", Format(r.Start), Format(r.End))
}

// NextDay returns the date after d.
func NextDay(d time.Time) time.Time {
	return Day(d).Add(day)
}
