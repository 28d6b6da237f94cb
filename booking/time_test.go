package booking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/slot-engine/booking"
)

func TestHours(t *testing.T) {
	assert.Equal(t, "4", booking.Hours(at(10), at(14)).String())
	assert.Equal(t, "2.5", booking.Hours(at(11).Add(30*time.Minute), at(14)).String())
	assert.Equal(t, 2, booking.WholeHours(at(11).Add(30*time.Minute), at(14)))
	assert.Equal(t, 0, booking.WholeHours(at(14), at(10)), "never negative")
}

func TestCost(t *testing.T) {
	assert.Equal(t, 16, booking.Cost(at(10), at(14), 4))
	assert.Equal(t, 3, booking.Cost(at(10), at(11).Add(30*time.Minute), 2), "fractional rounds up")
	assert.Equal(t, 0, booking.Cost(at(14), at(10), 4))
}

func TestIsHourAligned(t *testing.T) {
	assert.True(t, booking.IsHourAligned(at(3)))
	assert.False(t, booking.IsHourAligned(at(3).Add(time.Minute)))
	assert.False(t, booking.IsHourAligned(at(3).Add(time.Nanosecond)))
}

func TestValidateSlot(t *testing.T) {
	now := at(0)

	assert.Nil(t, booking.ValidateSlot(at(24), at(26), now))

	v := booking.ValidateSlot(at(23), at(25), now)
	if assert.NotNil(t, v) {
		assert.Contains(t, v.Fields, "start")
	}

	v = booking.ValidateSlot(at(30), at(30), now)
	if assert.NotNil(t, v) {
		assert.Contains(t, v.Fields, "end")
	}

	v = booking.ValidateSlot(at(30).Add(15*time.Minute), at(32), now)
	if assert.NotNil(t, v) {
		assert.Equal(t, "must be aligned to the hour", v.Fields["start"])
	}
}
