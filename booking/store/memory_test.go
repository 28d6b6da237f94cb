package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/slot-engine/booking"
)

func TestMemory_WithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.CreateUser(ctx, booking.User{ID: "u1", Username: "alice", Tokens: 50}))

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx booking.Store) error {
		require.NoError(t, tx.AdjustTokens(ctx, "u1", -20, now))
		require.NoError(t, tx.CreateRequest(ctx, booking.SlotRequest{ID: "r1", UserID: "u1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	u, err := m.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, u.Tokens)
	r, err := m.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestMemory_WithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.CreateUser(ctx, booking.User{ID: "u1", Username: "alice", Tokens: 50}))

	assert.Panics(t, func() {
		_ = m.WithTx(ctx, func(tx booking.Store) error {
			_ = tx.SetTokens(ctx, "u1", 0, time.Now())
			panic("crash")
		})
	})

	u, err := m.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, u.Tokens)
}

func TestMemory_SoftDeleteHidesRows(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	require.NoError(t, m.CreateCalendar(ctx, booking.Calendar{ID: "c1", Name: "gpu"}))
	require.NoError(t, m.CreateRequest(ctx, booking.SlotRequest{ID: "r1", CalendarID: "c1"}))
	require.NoError(t, m.CreateRequest(ctx, booking.SlotRequest{ID: "r2", CalendarID: "c2"}))

	require.NoError(t, m.DeleteCalendar(ctx, "c1", now))
	require.NoError(t, m.DeleteCalendarRequests(ctx, "c1", now))

	cals, err := m.FindCalendars(ctx, booking.CalendarFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Empty(t, cals)

	reqs, err := m.FindRequests(ctx, booking.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, booking.RequestID("r2"), reqs[0].ID)
}

func TestMemory_ResetKeepsAdmins(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.CreateUser(ctx, booking.User{ID: "a1", Username: "root", Role: booking.RoleAdmin}))
	require.NoError(t, m.CreateUser(ctx, booking.User{ID: "u1", Username: "alice", Role: booking.RoleUser}))
	require.NoError(t, m.CreateResource(ctx, booking.ComputingResource{ID: "res1"}))
	require.NoError(t, m.CreateCalendar(ctx, booking.Calendar{ID: "c1", ResourceID: "res1", Name: "gpu"}))
	require.NoError(t, m.CreateRequest(ctx, booking.SlotRequest{ID: "r1", CalendarID: "c1", UserID: "u1"}))

	require.NoError(t, m.Reset(ctx))

	users, err := m.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, booking.UserID("a1"), users[0].ID)

	res, err := m.ListResources(ctx)
	require.NoError(t, err)
	assert.Empty(t, res)
	cals, err := m.FindCalendars(ctx, booking.CalendarFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Empty(t, cals)
	r, err := m.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, r)
}
