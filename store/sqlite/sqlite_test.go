package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/slot-engine/booking"
)

var t0 = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

func hour(h int) time.Time { return t0.Add(time.Duration(h) * time.Hour) }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seed creates one user, one resource and one calendar bound to it.
func seed(t *testing.T, s *Store) (booking.User, booking.Calendar) {
	t.Helper()
	ctx := context.Background()
	u := booking.User{ID: "u1", Username: "alice", Email: "alice@example.com", PasswordHash: "x",
		Role: booking.RoleUser, Tokens: 50, CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, s.CreateResource(ctx, booking.ComputingResource{ID: "res1", Model: "A100",
		Type: booking.ResourceGPU, CreatedAt: t0, UpdatedAt: t0}))
	c := booking.Calendar{ID: "c1", ResourceID: "res1", Name: "gpu-a", TokenCostPerHour: 2, CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, s.CreateCalendar(ctx, c))
	return u, c
}

func request(id booking.RequestID, status booking.RequestStatus, start, end int) booking.SlotRequest {
	return booking.SlotRequest{ID: id, UserID: "u1", CalendarID: "c1", Status: status,
		Start: hour(start), End: hour(end), Title: "train", Reason: "model run",
		CreatedAt: hour(start - 48), UpdatedAt: hour(start - 48)}
}

func TestStore_UserRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u, _ := seed(t, s)

	got, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u, *got)

	require.NoError(t, s.AdjustTokens(ctx, u.ID, -20, t0.Add(time.Hour)))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, got.Tokens)
	assert.Equal(t, t0.Add(time.Hour), got.UpdatedAt)

	require.NoError(t, s.SetTokens(ctx, u.ID, 500, t0))
	got, err = s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 500, got.Tokens)

	missing, err := s.GetUser(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_UniqueUserFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u, _ := seed(t, s)

	dupName := u
	dupName.ID, dupName.Email = "u2", "other@example.com"
	assert.ErrorIs(t, s.CreateUser(ctx, dupName), booking.ErrUsernameAlreadyInUse)

	dupEmail := u
	dupEmail.ID, dupEmail.Username = "u3", "bob"
	assert.ErrorIs(t, s.CreateUser(ctx, dupEmail), booking.ErrEmailAlreadyInUse)

	// A deleted user frees both.
	require.NoError(t, s.DeleteUser(ctx, u.ID, t0))
	again := u
	again.ID = "u4"
	assert.NoError(t, s.CreateUser(ctx, again))
}

func TestStore_TokensNeverNegative(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u, _ := seed(t, s)

	err := s.AdjustTokens(ctx, u.ID, -51, t0)
	assert.Error(t, err)
}

func TestStore_ActiveCalendarIndexes(t *testing.T) {
	// GIVEN: Active calendar "gpu-a" bound to res1
	// WHEN: Another active calendar claims the same resource or name
	// THEN: Rejected until the first is archived

	ctx := context.Background()
	s := newTestStore(t)
	_, c := seed(t, s)
	require.NoError(t, s.CreateResource(ctx, booking.ComputingResource{ID: "res2", Type: booking.ResourceCPU, CreatedAt: t0, UpdatedAt: t0}))

	sameResource := booking.Calendar{ID: "c2", ResourceID: "res1", Name: "other", TokenCostPerHour: 1, CreatedAt: t0, UpdatedAt: t0}
	assert.ErrorIs(t, s.CreateCalendar(ctx, sameResource), booking.ErrResourceUnavailable)

	sameName := booking.Calendar{ID: "c3", ResourceID: "res2", Name: "gpu-a", TokenCostPerHour: 1, CreatedAt: t0, UpdatedAt: t0}
	assert.ErrorIs(t, s.CreateCalendar(ctx, sameName), booking.ErrNameAlreadyInUse)

	c.Archived = true
	require.NoError(t, s.UpdateCalendar(ctx, c))
	assert.NoError(t, s.CreateCalendar(ctx, sameResource))
	assert.NoError(t, s.CreateCalendar(ctx, sameName))

	active, err := s.FindCalendars(ctx, booking.CalendarFilter{})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := s.FindCalendars(ctx, booking.CalendarFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	name := "gpu-a"
	byName, err := s.FindCalendars(ctx, booking.CalendarFilter{Name: &name, IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, byName, 2)
}

func TestStore_FindRequestsMatchesFilterSemantics(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)

	reqs := []booking.SlotRequest{
		request("r1", booking.StatusApproved, 10, 14),
		request("r2", booking.StatusPending, 12, 16),
		request("r3", booking.StatusApproved, 14, 18),
		request("r4", booking.StatusRefused, 20, 22),
	}
	reqs[3].RefusalReason = "maintenance"
	for _, r := range reqs {
		require.NoError(t, s.CreateRequest(ctx, r))
	}

	approved := booking.StatusApproved
	cal := booking.CalendarID("c1")
	exclude := booking.RequestID("r3")
	ws, we, instant := hour(13), hour(15), hour(14)
	createdFrom, createdTo := hour(10-48), hour(14-48)

	filters := []booking.RequestFilter{
		{},
		{CalendarID: &cal, Status: &approved},
		{WindowStart: &ws, WindowEnd: &we},
		{WindowStart: &ws, WindowEnd: &we, ExcludeID: &exclude},
		{WindowStart: &ws},
		{WindowEnd: &we},
		{At: &instant, Status: &approved},
		{CreatedFrom: &createdFrom, CreatedTo: &createdTo},
	}
	for i, f := range filters {
		got, err := s.FindRequests(ctx, f)
		require.NoError(t, err)

		var want []booking.RequestID
		for _, r := range reqs {
			if f.Matches(r) {
				want = append(want, r.ID)
			}
		}
		var ids []booking.RequestID
		for _, r := range got {
			ids = append(ids, r.ID)
		}
		assert.Equal(t, want, ids, "filter %d", i)
	}

	r4, err := s.GetRequest(ctx, "r4")
	require.NoError(t, err)
	assert.Equal(t, reqs[3], *r4)
}

func TestStore_SoftDeleteCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)
	require.NoError(t, s.CreateRequest(ctx, request("r1", booking.StatusPending, 10, 12)))
	require.NoError(t, s.CreateRequest(ctx, request("r2", booking.StatusPending, 12, 14)))

	require.NoError(t, s.DeleteCalendar(ctx, "c1", t0))
	require.NoError(t, s.DeleteCalendarRequests(ctx, "c1", t0))

	c, err := s.GetCalendar(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, c)

	list, err := s.FindRequests(ctx, booking.RequestFilter{})
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestStore_DeleteUserRequests(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)
	require.NoError(t, s.CreateUser(ctx, booking.User{ID: "u2", Username: "bob", Email: "bob@example.com",
		PasswordHash: "x", Role: booking.RoleUser, Tokens: 50, CreatedAt: t0, UpdatedAt: t0}))
	require.NoError(t, s.CreateRequest(ctx, request("r1", booking.StatusApproved, 10, 12)))
	require.NoError(t, s.CreateRequest(ctx, request("r2", booking.StatusPending, 12, 14)))
	other := request("r3", booking.StatusPending, 14, 16)
	other.UserID = "u2"
	require.NoError(t, s.CreateRequest(ctx, other))

	require.NoError(t, s.DeleteUserRequests(ctx, "u1", t0))

	list, err := s.FindRequests(ctx, booking.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, booking.RequestID("r3"), list[0].ID)
}

func TestService_ConcurrentApprovalsAdmitOne(t *testing.T) {
	// GIVEN: 20 pending requests on the same calendar window
	// WHEN: every one is approved from its own goroutine
	// THEN: exactly one approval lands; the rest see IntersectingRequests

	ctx := context.Background()
	s, err := New(filepath.Join(t.TempDir(), "slots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	seed(t, s)

	const n = 20
	ids := make([]booking.RequestID, n)
	for i := range ids {
		ids[i] = booking.RequestID(fmt.Sprintf("r%02d", i))
		require.NoError(t, s.CreateRequest(ctx, request(ids[i], booking.StatusPending, 10+i%3, 14+i%3)))
	}
	svc := booking.NewService(s, booking.DefaultPolicy(), booking.WithClock(func() time.Time { return t0 }))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
		kinds    = map[booking.Kind]int{}
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id booking.RequestID) {
			defer wg.Done()
			_, err := svc.UpdateRequestStatus(ctx, id, booking.StatusDecision{Approve: true})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				approved++
				return
			}
			kinds[booking.KindOf(err)]++
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, approved)
	assert.Equal(t, map[booking.Kind]int{booking.KindIntersectingRequests: n - 1}, kinds)

	list, err := s.FindRequests(ctx, booking.RequestFilter{Status: ptr(booking.StatusApproved)})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func ptr[T any](v T) *T { return &v }

func TestStore_WithTxCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u, _ := seed(t, s)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx booking.Store) error {
		require.NoError(t, tx.AdjustTokens(ctx, u.ID, -10, t0))
		require.NoError(t, tx.CreateRequest(ctx, request("r1", booking.StatusPending, 10, 15)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Tokens)
	r, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, r)

	err = s.WithTx(ctx, func(tx booking.Store) error {
		if err := tx.AdjustTokens(ctx, u.ID, -10, t0); err != nil {
			return err
		}
		return tx.CreateRequest(ctx, request("r1", booking.StatusPending, 10, 15))
	})
	require.NoError(t, err)
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Tokens)
}

func TestStore_WithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u, _ := seed(t, s)

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(tx booking.Store) error {
			_ = tx.SetTokens(ctx, u.ID, 0, t0)
			panic("crash")
		})
	})

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Tokens)
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s)
	require.NoError(t, s.CreateUser(ctx, booking.User{ID: "a1", Username: "root", Email: "root@example.com",
		PasswordHash: "x", Role: booking.RoleAdmin, CreatedAt: t0, UpdatedAt: t0}))
	require.NoError(t, s.Reset(ctx))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1, "admins survive")
	assert.Equal(t, booking.UserID("a1"), users[0].ID)
	resources, err := s.ListResources(ctx)
	require.NoError(t, err)
	assert.Empty(t, resources)
}

// =============================================================================
// TRANSACTION PROTOCOL (sqlmock)
// =============================================================================

func TestWithTx_RollsBackWhenFnFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET tokens = tokens").
		WithArgs(-5, sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = s.WithTx(context.Background(), func(tx booking.Store) error {
		require.NoError(t, tx.AdjustTokens(context.Background(), "u1", -5, t0))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_ReportsCommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE slot_requests SET deleted_at").
		WithArgs(sqlmock.AnyArg(), "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("disk I/O error"))

	err = s.WithTx(context.Background(), func(tx booking.Store) error {
		return tx.DeleteRequest(context.Background(), "r1", t0)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_BeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewWithDB(db)

	mock.ExpectBegin().WillReturnError(errors.New("locked"))

	called := false
	err = s.WithTx(context.Background(), func(booking.Store) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}
