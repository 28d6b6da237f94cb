package booking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/slot-engine/booking"
)

func TestCreateCalendar_DefaultsAndBinding(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.CreateResource(f.ctx, booking.CreateResourceInput{Model: "EPYC", Serial: "S1", Manufacturer: "AMD", Type: booking.ResourceCPU})
	require.NoError(t, err)

	cal, err := f.svc.CreateCalendar(f.ctx, booking.CreateCalendarInput{ResourceID: res.ID, Name: "cpu-pool"})
	require.NoError(t, err)
	assert.Equal(t, booking.DefaultTokenCostPerHour, cal.TokenCostPerHour)
	assert.False(t, cal.Archived)

	_, err = f.svc.CreateCalendar(f.ctx, booking.CreateCalendarInput{ResourceID: res.ID, Name: "cpu-pool-2"})
	assert.ErrorIs(t, err, booking.ErrResourceUnavailable)

	_, err = f.svc.CreateCalendar(f.ctx, booking.CreateCalendarInput{ResourceID: "missing", Name: "x"})
	assert.ErrorIs(t, err, booking.ErrResourceNotFound)
}

func TestCreateCalendar_ArchivedFreesResourceAndName(t *testing.T) {
	// GIVEN: Calendar bound to a resource, then archived
	// WHEN: A new calendar uses the same resource and name
	// THEN: Allowed, only non-archived calendars hold bindings

	f := newFixture(t)
	old := f.calendar(t, "gpu-a", 2)
	_, err := f.svc.ArchiveCalendar(f.ctx, old.ID)
	require.NoError(t, err)

	fresh, err := f.svc.CreateCalendar(f.ctx, booking.CreateCalendarInput{ResourceID: old.ResourceID, Name: "gpu-a"})
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)
}

func TestCreateCalendar_NameTaken(t *testing.T) {
	f := newFixture(t)
	f.calendar(t, "gpu-a", 2)
	res, err := f.svc.CreateResource(f.ctx, booking.CreateResourceInput{Model: "H100"})
	require.NoError(t, err)

	_, err = f.svc.CreateCalendar(f.ctx, booking.CreateCalendarInput{ResourceID: res.ID, Name: "gpu-a"})
	assert.ErrorIs(t, err, booking.ErrNameAlreadyInUse)
}

func TestCalendarCostMustBePositive(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.CreateResource(f.ctx, booking.CreateResourceInput{Model: "H100"})
	require.NoError(t, err)

	for _, cost := range []int{0, -3} {
		_, err := f.svc.CreateCalendar(f.ctx, booking.CreateCalendarInput{ResourceID: res.ID, Name: "gpu-free", TokenCostPerHour: &cost})
		var verr *booking.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "token_cost_per_hour")
	}
	cals, err := f.svc.ListCalendars(f.ctx, true)
	require.NoError(t, err)
	assert.Empty(t, cals)

	cal := f.calendar(t, "gpu-a", 2)
	zero := 0
	_, err = f.svc.UpdateCalendar(f.ctx, cal.ID, booking.UpdateCalendarInput{TokenCostPerHour: &zero})
	var verr *booking.ValidationError
	require.ErrorAs(t, err, &verr)

	got, err := f.svc.GetCalendar(f.ctx, cal.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TokenCostPerHour)
}

func TestUpdateCalendar(t *testing.T) {
	f := newFixture(t)
	a := f.calendar(t, "gpu-a", 2)
	b := f.calendar(t, "gpu-b", 2)

	t.Run("partial update keeps other fields", func(t *testing.T) {
		cost := 7
		updated, err := f.svc.UpdateCalendar(f.ctx, a.ID, booking.UpdateCalendarInput{TokenCostPerHour: &cost})
		require.NoError(t, err)
		assert.Equal(t, 7, updated.TokenCostPerHour)
		assert.Equal(t, "gpu-a", updated.Name)
		assert.Equal(t, a.ResourceID, updated.ResourceID)
	})

	t.Run("same name is not a collision", func(t *testing.T) {
		name := "gpu-a"
		_, err := f.svc.UpdateCalendar(f.ctx, a.ID, booking.UpdateCalendarInput{Name: &name})
		assert.NoError(t, err)
	})

	t.Run("name held by another calendar", func(t *testing.T) {
		name := "gpu-b"
		_, err := f.svc.UpdateCalendar(f.ctx, a.ID, booking.UpdateCalendarInput{Name: &name})
		assert.ErrorIs(t, err, booking.ErrNameAlreadyInUse)
	})

	t.Run("resource bound elsewhere", func(t *testing.T) {
		_, err := f.svc.UpdateCalendar(f.ctx, a.ID, booking.UpdateCalendarInput{ResourceID: &b.ResourceID})
		assert.ErrorIs(t, err, booking.ErrResourceUnavailable)
	})

	t.Run("move to free resource", func(t *testing.T) {
		res, err := f.svc.CreateResource(f.ctx, booking.CreateResourceInput{Model: "L4"})
		require.NoError(t, err)
		updated, err := f.svc.UpdateCalendar(f.ctx, a.ID, booking.UpdateCalendarInput{ResourceID: &res.ID})
		require.NoError(t, err)
		assert.Equal(t, res.ID, updated.ResourceID)
	})

	t.Run("archived is immutable", func(t *testing.T) {
		_, err := f.svc.ArchiveCalendar(f.ctx, b.ID)
		require.NoError(t, err)
		cost := 3
		_, err = f.svc.UpdateCalendar(f.ctx, b.ID, booking.UpdateCalendarInput{TokenCostPerHour: &cost})
		assert.ErrorIs(t, err, booking.ErrCalendarArchived)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := f.svc.UpdateCalendar(f.ctx, "nope", booking.UpdateCalendarInput{})
		assert.ErrorIs(t, err, booking.ErrCalendarNotFound)
	})
}

func TestArchiveCalendar_OngoingApprovedBlocks(t *testing.T) {
	// GIVEN: Approved request 10:00-14:00
	// WHEN: Archiving at exactly 14:00 (closed interval) and then at 14:01
	// THEN: First fails OngoingRequests, second succeeds

	f := newFixture(t)
	u := f.user(t, "alice", 50)
	cal := f.calendar(t, "gpu-a", 1)
	created := f.request(t, u.ID, cal.ID, 10, 14)
	f.approve(t, created.Request.ID)

	f.clock.Set(at(14))
	_, err := f.svc.ArchiveCalendar(f.ctx, cal.ID)
	assert.ErrorIs(t, err, booking.ErrOngoingRequests)

	f.clock.Set(at(14).Add(time.Minute))
	archived, err := f.svc.ArchiveCalendar(f.ctx, cal.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)

	again, err := f.svc.ArchiveCalendar(f.ctx, cal.ID)
	require.NoError(t, err)
	assert.True(t, again.Archived)
}

func TestArchiveCalendar_PendingDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice", 50)
	cal := f.calendar(t, "gpu-a", 1)
	f.request(t, u.ID, cal.ID, 10, 14)

	f.clock.Set(at(12))
	_, err := f.svc.ArchiveCalendar(f.ctx, cal.ID)
	assert.NoError(t, err)
}

func TestDeleteCalendar_CascadesToRequests(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice", 50)
	cal := f.calendar(t, "gpu-a", 1)
	r1 := f.request(t, u.ID, cal.ID, 10, 14)
	r2 := f.request(t, u.ID, cal.ID, 20, 22)

	deleted, err := f.svc.DeleteCalendar(f.ctx, cal.ID)
	require.NoError(t, err)
	assert.Equal(t, cal.ID, deleted.ID)

	_, err = f.svc.GetCalendar(f.ctx, cal.ID)
	assert.ErrorIs(t, err, booking.ErrCalendarNotFound)
	for _, id := range []booking.RequestID{r1.Request.ID, r2.Request.ID} {
		_, err = f.svc.GetSlotRequest(f.ctx, id)
		assert.ErrorIs(t, err, booking.ErrSlotRequestNotFound)
	}
}

func TestDeleteCalendar_OngoingBlocksAndKeepsData(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice", 50)
	cal := f.calendar(t, "gpu-a", 1)
	created := f.request(t, u.ID, cal.ID, 10, 14)
	f.approve(t, created.Request.ID)

	f.clock.Set(at(10))
	_, err := f.svc.DeleteCalendar(f.ctx, cal.ID)
	assert.ErrorIs(t, err, booking.ErrOngoingRequests)

	_, err = f.svc.GetCalendar(f.ctx, cal.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetSlotRequest(f.ctx, created.Request.ID)
	assert.NoError(t, err)
}

func TestResourceLocking(t *testing.T) {
	f := newFixture(t)
	cal := f.calendar(t, "gpu-a", 1)
	model := "A100-80GB"

	_, err := f.svc.UpdateResource(f.ctx, cal.ResourceID, booking.UpdateResourceInput{Model: &model})
	assert.ErrorIs(t, err, booking.ErrResourceInUse)
	assert.ErrorIs(t, f.svc.DeleteResource(f.ctx, cal.ResourceID), booking.ErrResourceInUse)

	_, err = f.svc.ArchiveCalendar(f.ctx, cal.ID)
	require.NoError(t, err)

	updated, err := f.svc.UpdateResource(f.ctx, cal.ResourceID, booking.UpdateResourceInput{Model: &model})
	require.NoError(t, err)
	assert.Equal(t, model, updated.Model)
	require.NoError(t, f.svc.DeleteResource(f.ctx, cal.ResourceID))

	_, err = f.svc.GetResource(f.ctx, cal.ResourceID)
	assert.ErrorIs(t, err, booking.ErrResourceNotFound)
}
