package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CLOCK / DURATION HELPERS
// =============================================================================

// Clock returns the current instant. Services take one so tests can pin time.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// MinBookingLead is how far ahead of now a slot must start.
const MinBookingLead = 24 * time.Hour

var msPerHour = decimal.NewFromInt(int64(time.Hour / time.Millisecond))

// Hours returns the exact number of hours between start and end.
// Negative when end is before start.
func Hours(start, end time.Time) decimal.Decimal {
	return decimal.NewFromInt(end.Sub(start).Milliseconds()).Div(msPerHour)
}

// WholeHours returns floor(Hours(start, end)), never below zero.
func WholeHours(start, end time.Time) int {
	h := Hours(start, end).Floor()
	if h.IsNegative() {
		return 0
	}
	return int(h.IntPart())
}

// Cost is the token price of [start, end) at costPerHour.
// Fractional hours round up to the next whole token.
func Cost(start, end time.Time, costPerHour int) int {
	c := Hours(start, end).Mul(decimal.NewFromInt(int64(costPerHour))).Ceil()
	if c.IsNegative() {
		return 0
	}
	return int(c.IntPart())
}

// IsHourAligned returns true if t falls exactly on an hour boundary.
func IsHourAligned(t time.Time) bool {
	return t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// ValidateSlot checks the booking window rules for a new slot:
// hour aligned, end after start, and start at least MinBookingLead after now.
func ValidateSlot(start, end, now time.Time) *ValidationError {
	v := &ValidationError{}
	if !IsHourAligned(start) {
		v.Add("start", "must be aligned to the hour")
	}
	if !IsHourAligned(end) {
		v.Add("end", "must be aligned to the hour")
	}
	if !end.After(start) {
		v.Add("end", "must be after start")
	}
	if start.Before(now.Add(MinBookingLead)) {
		v.Add("start", "must be at least 24 hours from now")
	}
	if v.Empty() {
		return nil
	}
	return v
}
