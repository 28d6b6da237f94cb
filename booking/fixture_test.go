package booking_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/slot-engine/booking"
	"github.com/warp/slot-engine/booking/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Set(t time.Time) { c.now = t }

// reverseHasher stores passwords reversed so tests can assert on hashes
// without pulling in bcrypt cost.
type reverseHasher struct{}

func (reverseHasher) Hash(password string) (string, error) {
	r := []rune(password)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return "rev:" + string(r), nil
}

func (h reverseHasher) Compare(hash, password string) error {
	want, _ := h.Hash(password)
	if want != hash {
		return errors.New("mismatch")
	}
	return nil
}

type fixture struct {
	ctx   context.Context
	svc   *booking.Service
	store *store.Memory
	clock *fakeClock
}

// bookingDay is the date used by most scenarios: slots are booked on
// 2025-09-01 while the clock sits a week earlier.
var bookingDay = time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time {
	return bookingDay.Add(time.Duration(hour) * time.Hour)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	clock := &fakeClock{now: time.Date(2025, time.August, 25, 9, 0, 0, 0, time.UTC)}
	seq := 0
	svc := booking.NewService(mem, booking.DefaultPolicy(),
		booking.WithClock(clock.Now),
		booking.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		}),
		booking.WithPasswordHasher(reverseHasher{}),
	)
	return &fixture{ctx: context.Background(), svc: svc, store: mem, clock: clock}
}

func (f *fixture) user(t *testing.T, username string, tokens int) booking.User {
	t.Helper()
	u, err := f.svc.CreateUser(f.ctx, booking.CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Name:     "Test",
		Surname:  "User",
		Password: "password123",
		Tokens:   &tokens,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) calendar(t *testing.T, name string, costPerHour int) booking.Calendar {
	t.Helper()
	res, err := f.svc.CreateResource(f.ctx, booking.CreateResourceInput{
		Model: "A100", Serial: "SN-" + name, Manufacturer: "NVIDIA", Type: booking.ResourceGPU,
	})
	require.NoError(t, err)
	cal, err := f.svc.CreateCalendar(f.ctx, booking.CreateCalendarInput{
		ResourceID:       res.ID,
		Name:             name,
		TokenCostPerHour: &costPerHour,
	})
	require.NoError(t, err)
	return cal
}

func (f *fixture) request(t *testing.T, userID booking.UserID, calID booking.CalendarID, startHour, endHour int) booking.SlotCreation {
	t.Helper()
	created, err := f.svc.CreateSlotRequest(f.ctx, userID, booking.CreateSlotInput{
		CalendarID: calID,
		Title:      "Training run",
		Reason:     "Fine-tune model",
		Start:      at(startHour),
		End:        at(endHour),
	})
	require.NoError(t, err)
	return created
}

func (f *fixture) balance(t *testing.T, id booking.UserID) int {
	t.Helper()
	u, err := f.svc.GetUser(f.ctx, id)
	require.NoError(t, err)
	return u.Tokens
}

func (f *fixture) approve(t *testing.T, id booking.RequestID) booking.SlotRequest {
	t.Helper()
	change, err := f.svc.UpdateRequestStatus(f.ctx, id, booking.StatusDecision{Approve: true})
	require.NoError(t, err)
	return change.Request
}
