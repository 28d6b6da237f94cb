package booking

import "time"

// =============================================================================
// PERIOD - A slot interval
// =============================================================================

// Period is a time interval. Booking treats it as half-open [Start, End);
// ContainsInstant treats it as closed.
type Period struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether p and other intersect as half-open intervals.
// Touching endpoints (p.End == other.Start) do not overlap.
func (p Period) Overlaps(other Period) bool {
	return p.Start.Before(other.End) && p.End.After(other.Start)
}

// ContainsInstant returns true if Start <= t <= End.
func (p Period) ContainsInstant(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Valid returns true if End is strictly after Start.
func (p Period) Valid() bool {
	return p.End.After(p.Start)
}

// Hours returns the number of whole hours in the period.
func (p Period) Hours() int {
	return WholeHours(p.Start, p.End)
}

func (p Period) String() string {
	return "[" + p.Start.Format(time.RFC3339) + ", " + p.End.Format(time.RFC3339) + ")"
}
