/*
store.go - Persistence interface for the booking engine

PURPOSE:
  Defines the boundary between the booking rules and the database.
  The engine never sees SQL; it reads and writes records through Store
  and groups multi-record mutations with TxStore.WithTx.

SOFT DELETE:
  Delete* methods mark rows deleted. Every Get/Find excludes deleted
  rows, so a deleted record behaves as absent everywhere.

NOT FOUND:
  Get* methods return (nil, nil) when the record does not exist. The
  engine turns that into the matching typed error.

ATOMICITY:
  WithTx runs fn with a Store bound to one transaction. fn returning an
  error (or panicking) rolls everything back; nil commits. A token
  debit and the request it pays for are always written through the same
  transactional Store.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - booking/store/memory.go: In-memory for tests and demos

SEE ALSO:
  - conflict.go: Uses FindRequests for overlap and ongoing checks
*/
package booking

import (
	"context"
	"time"
)

// =============================================================================
// FILTERS
// =============================================================================

// RequestFilter selects slot requests. Nil fields do not constrain.
//
// Window semantics:
//   - WindowStart and WindowEnd both set: half-open overlap
//     (start < WindowEnd AND end > WindowStart)
//   - only WindowStart: end > WindowStart
//   - only WindowEnd: start < WindowEnd
//
// At selects requests with start <= At <= end.
type RequestFilter struct {
	CalendarID  *CalendarID
	UserID      *UserID
	Status      *RequestStatus
	WindowStart *time.Time
	WindowEnd   *time.Time
	At          *time.Time
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	ExcludeID   *RequestID
}

// Matches applies the filter to one request. Stores may use it directly
// or translate the filter into a query with the same meaning.
func (f RequestFilter) Matches(r SlotRequest) bool {
	if f.CalendarID != nil && r.CalendarID != *f.CalendarID {
		return false
	}
	if f.UserID != nil && r.UserID != *f.UserID {
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.ExcludeID != nil && r.ID == *f.ExcludeID {
		return false
	}
	if f.WindowStart != nil && !r.End.After(*f.WindowStart) {
		return false
	}
	if f.WindowEnd != nil && !r.Start.Before(*f.WindowEnd) {
		return false
	}
	if f.At != nil && !r.Period().ContainsInstant(*f.At) {
		return false
	}
	if f.CreatedFrom != nil && r.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && r.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}

// CalendarFilter selects calendars. Archived calendars are excluded
// unless IncludeArchived is set.
type CalendarFilter struct {
	ResourceID      *ResourceID
	Name            *string
	IncludeArchived bool
}

func (f CalendarFilter) Matches(c Calendar) bool {
	if !f.IncludeArchived && c.Archived {
		return false
	}
	if f.ResourceID != nil && c.ResourceID != *f.ResourceID {
		return false
	}
	if f.Name != nil && c.Name != *f.Name {
		return false
	}
	return true
}

// =============================================================================
// STORE
// =============================================================================

type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id UserID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id UserID, at time.Time) error

	// AdjustTokens adds delta (possibly negative) to the balance.
	AdjustTokens(ctx context.Context, id UserID, delta int, at time.Time) error
	// SetTokens overwrites the balance.
	SetTokens(ctx context.Context, id UserID, amount int, at time.Time) error
}

type ResourceStore interface {
	CreateResource(ctx context.Context, r ComputingResource) error
	GetResource(ctx context.Context, id ResourceID) (*ComputingResource, error)
	ListResources(ctx context.Context) ([]ComputingResource, error)
	UpdateResource(ctx context.Context, r ComputingResource) error
	DeleteResource(ctx context.Context, id ResourceID, at time.Time) error
}

type CalendarStore interface {
	CreateCalendar(ctx context.Context, c Calendar) error
	GetCalendar(ctx context.Context, id CalendarID) (*Calendar, error)
	FindCalendars(ctx context.Context, f CalendarFilter) ([]Calendar, error)
	UpdateCalendar(ctx context.Context, c Calendar) error
	DeleteCalendar(ctx context.Context, id CalendarID, at time.Time) error
}

type RequestStore interface {
	CreateRequest(ctx context.Context, r SlotRequest) error
	GetRequest(ctx context.Context, id RequestID) (*SlotRequest, error)
	// FindRequests returns matches ordered by Start. Never nil.
	FindRequests(ctx context.Context, f RequestFilter) ([]SlotRequest, error)
	UpdateRequest(ctx context.Context, r SlotRequest) error
	DeleteRequest(ctx context.Context, id RequestID, at time.Time) error
	// DeleteCalendarRequests soft-deletes every request of a calendar.
	DeleteCalendarRequests(ctx context.Context, id CalendarID, at time.Time) error
	// DeleteUserRequests soft-deletes every request owned by a user.
	DeleteUserRequests(ctx context.Context, id UserID, at time.Time) error
}

// Store is the full persistence surface used by the engine.
type Store interface {
	UserStore
	ResourceStore
	CalendarStore
	RequestStore
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
