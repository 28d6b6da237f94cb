// Package store provides in-memory booking.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/slot-engine/booking"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps records in maps. Deleted rows stay in the maps with a
// deletion time and are skipped by every read.
type Memory struct {
	mu        sync.RWMutex
	users     map[booking.UserID]row[booking.User]
	resources map[booking.ResourceID]row[booking.ComputingResource]
	calendars map[booking.CalendarID]row[booking.Calendar]
	requests  map[booking.RequestID]row[booking.SlotRequest]
}

type row[T any] struct {
	rec       T
	deletedAt *time.Time
}

func (r row[T]) live() bool {
	return r.deletedAt == nil
}

func NewMemory() *Memory {
	return &Memory{
		users:     make(map[booking.UserID]row[booking.User]),
		resources: make(map[booking.ResourceID]row[booking.ComputingResource]),
		calendars: make(map[booking.CalendarID]row[booking.Calendar]),
		requests:  make(map[booking.RequestID]row[booking.SlotRequest]),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn under the write lock.
// This is simulated with a snapshot + rollback on error or panic.
func (m *Memory) WithTx(ctx context.Context, fn func(booking.Store) error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	defer func() {
		if p := recover(); p != nil {
			m.restore(snap)
			panic(p)
		}
		if err != nil {
			m.restore(snap)
		}
	}()
	return fn(&view{m: m})
}

type memorySnapshot struct {
	users     map[booking.UserID]row[booking.User]
	resources map[booking.ResourceID]row[booking.ComputingResource]
	calendars map[booking.CalendarID]row[booking.Calendar]
	requests  map[booking.RequestID]row[booking.SlotRequest]
}

func (m *Memory) snapshot() memorySnapshot {
	return memorySnapshot{
		users:     cloneMap(m.users),
		resources: cloneMap(m.resources),
		calendars: cloneMap(m.calendars),
		requests:  cloneMap(m.requests),
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.users = s.users
	m.resources = s.resources
	m.calendars = s.calendars
	m.requests = s.requests
}

// Reset drops every record except admin accounts.
func (m *Memory) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	admins := make(map[booking.UserID]row[booking.User])
	for id, r := range m.users {
		if r.rec.IsAdmin() {
			admins[id] = r
		}
	}
	m.restore(NewMemory().snapshot())
	m.users = admins
	return nil
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// =============================================================================
// LOCKED STORE METHODS
// =============================================================================
// Memory methods take the lock and delegate to view, which assumes the
// lock is held. WithTx hands fn a view directly.

func (m *Memory) read(fn func(v *view)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(&view{m: m})
}

func (m *Memory) write(fn func(v *view) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&view{m: m})
}

func (m *Memory) CreateUser(ctx context.Context, u booking.User) error {
	return m.write(func(v *view) error { return v.CreateUser(ctx, u) })
}

func (m *Memory) GetUser(ctx context.Context, id booking.UserID) (u *booking.User, err error) {
	m.read(func(v *view) { u, err = v.GetUser(ctx, id) })
	return
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (u *booking.User, err error) {
	m.read(func(v *view) { u, err = v.GetUserByUsername(ctx, username) })
	return
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (u *booking.User, err error) {
	m.read(func(v *view) { u, err = v.GetUserByEmail(ctx, email) })
	return
}

func (m *Memory) ListUsers(ctx context.Context) (list []booking.User, err error) {
	m.read(func(v *view) { list, err = v.ListUsers(ctx) })
	return
}

func (m *Memory) DeleteUser(ctx context.Context, id booking.UserID, at time.Time) error {
	return m.write(func(v *view) error { return v.DeleteUser(ctx, id, at) })
}

func (m *Memory) AdjustTokens(ctx context.Context, id booking.UserID, delta int, at time.Time) error {
	return m.write(func(v *view) error { return v.AdjustTokens(ctx, id, delta, at) })
}

func (m *Memory) SetTokens(ctx context.Context, id booking.UserID, amount int, at time.Time) error {
	return m.write(func(v *view) error { return v.SetTokens(ctx, id, amount, at) })
}

func (m *Memory) CreateResource(ctx context.Context, r booking.ComputingResource) error {
	return m.write(func(v *view) error { return v.CreateResource(ctx, r) })
}

func (m *Memory) GetResource(ctx context.Context, id booking.ResourceID) (r *booking.ComputingResource, err error) {
	m.read(func(v *view) { r, err = v.GetResource(ctx, id) })
	return
}

func (m *Memory) ListResources(ctx context.Context) (list []booking.ComputingResource, err error) {
	m.read(func(v *view) { list, err = v.ListResources(ctx) })
	return
}

func (m *Memory) UpdateResource(ctx context.Context, r booking.ComputingResource) error {
	return m.write(func(v *view) error { return v.UpdateResource(ctx, r) })
}

func (m *Memory) DeleteResource(ctx context.Context, id booking.ResourceID, at time.Time) error {
	return m.write(func(v *view) error { return v.DeleteResource(ctx, id, at) })
}

func (m *Memory) CreateCalendar(ctx context.Context, c booking.Calendar) error {
	return m.write(func(v *view) error { return v.CreateCalendar(ctx, c) })
}

func (m *Memory) GetCalendar(ctx context.Context, id booking.CalendarID) (c *booking.Calendar, err error) {
	m.read(func(v *view) { c, err = v.GetCalendar(ctx, id) })
	return
}

func (m *Memory) FindCalendars(ctx context.Context, f booking.CalendarFilter) (list []booking.Calendar, err error) {
	m.read(func(v *view) { list, err = v.FindCalendars(ctx, f) })
	return
}

func (m *Memory) UpdateCalendar(ctx context.Context, c booking.Calendar) error {
	return m.write(func(v *view) error { return v.UpdateCalendar(ctx, c) })
}

func (m *Memory) DeleteCalendar(ctx context.Context, id booking.CalendarID, at time.Time) error {
	return m.write(func(v *view) error { return v.DeleteCalendar(ctx, id, at) })
}

func (m *Memory) CreateRequest(ctx context.Context, r booking.SlotRequest) error {
	return m.write(func(v *view) error { return v.CreateRequest(ctx, r) })
}

func (m *Memory) GetRequest(ctx context.Context, id booking.RequestID) (r *booking.SlotRequest, err error) {
	m.read(func(v *view) { r, err = v.GetRequest(ctx, id) })
	return
}

func (m *Memory) FindRequests(ctx context.Context, f booking.RequestFilter) (list []booking.SlotRequest, err error) {
	m.read(func(v *view) { list, err = v.FindRequests(ctx, f) })
	return
}

func (m *Memory) UpdateRequest(ctx context.Context, r booking.SlotRequest) error {
	return m.write(func(v *view) error { return v.UpdateRequest(ctx, r) })
}

func (m *Memory) DeleteRequest(ctx context.Context, id booking.RequestID, at time.Time) error {
	return m.write(func(v *view) error { return v.DeleteRequest(ctx, id, at) })
}

func (m *Memory) DeleteCalendarRequests(ctx context.Context, id booking.CalendarID, at time.Time) error {
	return m.write(func(v *view) error { return v.DeleteCalendarRequests(ctx, id, at) })
}

func (m *Memory) DeleteUserRequests(ctx context.Context, id booking.UserID, at time.Time) error {
	return m.write(func(v *view) error { return v.DeleteUserRequests(ctx, id, at) })
}

// =============================================================================
// VIEW - Unlocked access, used inside WithTx
// =============================================================================

type view struct {
	m *Memory
}

func (v *view) CreateUser(_ context.Context, u booking.User) error {
	v.m.users[u.ID] = row[booking.User]{rec: u}
	return nil
}

func (v *view) GetUser(_ context.Context, id booking.UserID) (*booking.User, error) {
	r, ok := v.m.users[id]
	if !ok || !r.live() {
		return nil, nil
	}
	u := r.rec
	return &u, nil
}

func (v *view) GetUserByUsername(_ context.Context, username string) (*booking.User, error) {
	for _, r := range v.m.users {
		if r.live() && r.rec.Username == username {
			u := r.rec
			return &u, nil
		}
	}
	return nil, nil
}

func (v *view) GetUserByEmail(_ context.Context, email string) (*booking.User, error) {
	for _, r := range v.m.users {
		if r.live() && r.rec.Email == email {
			u := r.rec
			return &u, nil
		}
	}
	return nil, nil
}

func (v *view) ListUsers(_ context.Context) ([]booking.User, error) {
	list := []booking.User{}
	for _, r := range v.m.users {
		if r.live() {
			list = append(list, r.rec)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Username < list[j].Username })
	return list, nil
}

func (v *view) DeleteUser(_ context.Context, id booking.UserID, at time.Time) error {
	r, ok := v.m.users[id]
	if ok && r.live() {
		r.deletedAt = &at
		v.m.users[id] = r
	}
	return nil
}

func (v *view) AdjustTokens(_ context.Context, id booking.UserID, delta int, at time.Time) error {
	r, ok := v.m.users[id]
	if ok && r.live() {
		r.rec.Tokens += delta
		r.rec.UpdatedAt = at
		v.m.users[id] = r
	}
	return nil
}

func (v *view) SetTokens(_ context.Context, id booking.UserID, amount int, at time.Time) error {
	r, ok := v.m.users[id]
	if ok && r.live() {
		r.rec.Tokens = amount
		r.rec.UpdatedAt = at
		v.m.users[id] = r
	}
	return nil
}

func (v *view) CreateResource(_ context.Context, res booking.ComputingResource) error {
	v.m.resources[res.ID] = row[booking.ComputingResource]{rec: res}
	return nil
}

func (v *view) GetResource(_ context.Context, id booking.ResourceID) (*booking.ComputingResource, error) {
	r, ok := v.m.resources[id]
	if !ok || !r.live() {
		return nil, nil
	}
	res := r.rec
	return &res, nil
}

func (v *view) ListResources(_ context.Context) ([]booking.ComputingResource, error) {
	list := []booking.ComputingResource{}
	for _, r := range v.m.resources {
		if r.live() {
			list = append(list, r.rec)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (v *view) UpdateResource(_ context.Context, res booking.ComputingResource) error {
	r, ok := v.m.resources[res.ID]
	if ok && r.live() {
		r.rec = res
		v.m.resources[res.ID] = r
	}
	return nil
}

func (v *view) DeleteResource(_ context.Context, id booking.ResourceID, at time.Time) error {
	r, ok := v.m.resources[id]
	if ok && r.live() {
		r.deletedAt = &at
		v.m.resources[id] = r
	}
	return nil
}

func (v *view) CreateCalendar(_ context.Context, c booking.Calendar) error {
	v.m.calendars[c.ID] = row[booking.Calendar]{rec: c}
	return nil
}

func (v *view) GetCalendar(_ context.Context, id booking.CalendarID) (*booking.Calendar, error) {
	r, ok := v.m.calendars[id]
	if !ok || !r.live() {
		return nil, nil
	}
	c := r.rec
	return &c, nil
}

func (v *view) FindCalendars(_ context.Context, f booking.CalendarFilter) ([]booking.Calendar, error) {
	list := []booking.Calendar{}
	for _, r := range v.m.calendars {
		if r.live() && f.Matches(r.rec) {
			list = append(list, r.rec)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (v *view) UpdateCalendar(_ context.Context, c booking.Calendar) error {
	r, ok := v.m.calendars[c.ID]
	if ok && r.live() {
		r.rec = c
		v.m.calendars[c.ID] = r
	}
	return nil
}

func (v *view) DeleteCalendar(_ context.Context, id booking.CalendarID, at time.Time) error {
	r, ok := v.m.calendars[id]
	if ok && r.live() {
		r.deletedAt = &at
		v.m.calendars[id] = r
	}
	return nil
}

func (v *view) CreateRequest(_ context.Context, req booking.SlotRequest) error {
	v.m.requests[req.ID] = row[booking.SlotRequest]{rec: req}
	return nil
}

func (v *view) GetRequest(_ context.Context, id booking.RequestID) (*booking.SlotRequest, error) {
	r, ok := v.m.requests[id]
	if !ok || !r.live() {
		return nil, nil
	}
	req := r.rec
	return &req, nil
}

func (v *view) FindRequests(_ context.Context, f booking.RequestFilter) ([]booking.SlotRequest, error) {
	list := []booking.SlotRequest{}
	for _, r := range v.m.requests {
		if r.live() && f.Matches(r.rec) {
			list = append(list, r.rec)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Start.Equal(list[j].Start) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].Start.Before(list[j].Start)
	})
	return list, nil
}

func (v *view) UpdateRequest(_ context.Context, req booking.SlotRequest) error {
	r, ok := v.m.requests[req.ID]
	if ok && r.live() {
		r.rec = req
		v.m.requests[req.ID] = r
	}
	return nil
}

func (v *view) DeleteRequest(_ context.Context, id booking.RequestID, at time.Time) error {
	r, ok := v.m.requests[id]
	if ok && r.live() {
		r.deletedAt = &at
		v.m.requests[id] = r
	}
	return nil
}

func (v *view) DeleteCalendarRequests(_ context.Context, id booking.CalendarID, at time.Time) error {
	for key, r := range v.m.requests {
		if r.live() && r.rec.CalendarID == id {
			r.deletedAt = &at
			v.m.requests[key] = r
		}
	}
	return nil
}

func (v *view) DeleteUserRequests(_ context.Context, id booking.UserID, at time.Time) error {
	for key, r := range v.m.requests {
		if r.live() && r.rec.UserID == id {
			r.deletedAt = &at
			v.m.requests[key] = r
		}
	}
	return nil
}

var (
	_ booking.TxStore = (*Memory)(nil)
	_ booking.Store   = (*view)(nil)
)
