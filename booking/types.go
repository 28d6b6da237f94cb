/*
Package booking provides the slot-booking and token-accounting engine.

PURPOSE:
  This package holds the records and rules for booking time slots on
  shared computing resources. Users spend tokens to claim hour-aligned
  slots on a calendar; admins approve or refuse the claims and manage the
  calendars and the resources behind them.

KEY CONCEPTS IN THIS FILE (types.go):
  - User: account with a role and a bounded token balance
  - ComputingResource: a CPU or GPU that a calendar schedules
  - Calendar: bookable schedule bound to exactly one resource
  - SlotRequest: a claim on [Start, End) of a calendar
  - Policy: token limits and deletion penalties

STATUS TRANSITIONS:
  pending  -> approved   (admin, re-checked for approved overlaps)
  pending  -> refused    (admin, with a refusal reason)
  invalid                 recorded without funds, never debited

  Re-submitting the current decision (approve an approved request,
  refuse a refused one) is a no-op that returns the request unchanged.

USAGE:
  svc := booking.NewService(store, booking.DefaultPolicy())
  created, err := svc.CreateSlotRequest(ctx, userID, booking.CreateSlotInput{...})

SEE ALSO:
  - store.go: Persistence interfaces
  - request.go: Slot request lifecycle
  - ledger.go: Token accounting
*/
package booking

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type ResourceID string
type CalendarID string
type RequestID string

// =============================================================================
// ENUMS
// =============================================================================

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type ResourceType string

const (
	ResourceCPU ResourceType = "cpu"
	ResourceGPU ResourceType = "gpu"
)

func (t ResourceType) Valid() bool {
	return t == ResourceCPU || t == ResourceGPU
}

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusInvalid  RequestStatus = "invalid"
	StatusApproved RequestStatus = "approved"
	StatusRefused  RequestStatus = "refused"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInvalid, StatusApproved, StatusRefused:
		return true
	}
	return false
}

// =============================================================================
// RECORDS
// =============================================================================

// User owns its token balance. Tokens change only through the Ledger or
// an admin recharge.
type User struct {
	ID           UserID
	Username     string
	Email        string
	Name         string
	Surname      string
	PasswordHash string
	Role         Role
	Tokens       int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type ComputingResource struct {
	ID           ResourceID
	Model        string
	Serial       string
	Manufacturer string
	Type         ResourceType
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Calendar binds a resource to a bookable schedule.
// At most one non-archived calendar may reference a given resource.
type Calendar struct {
	ID               CalendarID
	ResourceID       ResourceID
	Name             string
	Archived         bool
	TokenCostPerHour int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SlotRequest claims the half-open interval [Start, End) on a calendar.
// RefusalReason is non-empty iff Status is StatusRefused.
type SlotRequest struct {
	ID            RequestID
	UserID        UserID
	CalendarID    CalendarID
	Status        RequestStatus
	Start         time.Time
	End           time.Time
	Title         string
	Reason        string
	RefusalReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r SlotRequest) Period() Period {
	return Period{Start: r.Start, End: r.End}
}

// Principal is the authenticated caller.
type Principal struct {
	UserID UserID
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// =============================================================================
// POLICY
// =============================================================================

// Policy carries the token rules. Zero values are not meaningful; start
// from DefaultPolicy.
type Policy struct {
	MaxTokens                 int
	DefaultTokens             int
	DefaultTokenCostPerHour   int
	UnusedDeletionPenalty     int
	PartialUseDeletionPenalty int
}

const (
	DefaultMaxTokens                 = 1000
	DefaultUserTokens                = 50
	DefaultTokenCostPerHour          = 1
	DefaultUnusedDeletionPenalty     = 2
	DefaultPartialUseDeletionPenalty = 5
)

func DefaultPolicy() Policy {
	return Policy{
		MaxTokens:                 DefaultMaxTokens,
		DefaultTokens:             DefaultUserTokens,
		DefaultTokenCostPerHour:   DefaultTokenCostPerHour,
		UnusedDeletionPenalty:     DefaultUnusedDeletionPenalty,
		PartialUseDeletionPenalty: DefaultPartialUseDeletionPenalty,
	}
}
