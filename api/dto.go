/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Booking records
  never cross the wire directly: password hashes stay server-side and
  timestamps are always RFC 3339 UTC.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Operation results wrapping a DTO

TYPES:
  Users:     UserDTO, CreateUserRequest, RechargeRequest, RechargeResponse
  Resources: ResourceDTO, CreateResourceRequest, UpdateResourceRequest
  Calendars: CalendarDTO, CreateCalendarRequest, UpdateCalendarRequest
  Requests:  SlotRequestDTO, CreateSlotRequest, SlotCreatedResponse,
             StatusDecisionRequest, SlotDeletedResponse
  Slots:     CheckSlotRequest, SlotAvailabilityDTO
  Auth:      LoginRequest, LoginResponse

VALIDATION:
  Validation is done in validate.go, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go, admin.go: Use these types
  - validate.go: Field rules
*/
package api

import (
	"time"

	"github.com/warp/slot-engine/booking"
)

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// =============================================================================
// USERS
// =============================================================================

type UserDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	Role      string `json:"role"`
	Tokens    int    `json:"tokens"`
	CreatedAt string `json:"created_at"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
	Tokens   *int   `json:"tokens,omitempty"`
}

type RechargeRequest struct {
	NewTokenAmount *int `json:"new_token_amount"`
}

type RechargeResponse struct {
	UserID    string `json:"user_id"`
	OldAmount int    `json:"old_amount"`
	NewAmount int    `json:"new_amount"`
}

// =============================================================================
// RESOURCES
// =============================================================================

type ResourceDTO struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Serial       string `json:"serial"`
	Manufacturer string `json:"manufacturer"`
	Type         string `json:"type"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type CreateResourceRequest struct {
	Model        string `json:"model"`
	Serial       string `json:"serial"`
	Manufacturer string `json:"manufacturer"`
	Type         string `json:"type"`
}

type UpdateResourceRequest struct {
	Model        *string `json:"model"`
	Serial       *string `json:"serial"`
	Manufacturer *string `json:"manufacturer"`
	Type         *string `json:"type"`
}

// =============================================================================
// CALENDARS
// =============================================================================

type CalendarDTO struct {
	ID               string `json:"id"`
	ResourceID       string `json:"resource_id"`
	Name             string `json:"name"`
	Archived         bool   `json:"archived"`
	TokenCostPerHour int    `json:"token_cost_per_hour"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

type CreateCalendarRequest struct {
	ResourceID       string `json:"resource_id"`
	Name             string `json:"name"`
	TokenCostPerHour *int   `json:"token_cost_per_hour"`
}

type UpdateCalendarRequest struct {
	ResourceID       *string `json:"resource_id"`
	Name             *string `json:"name"`
	TokenCostPerHour *int    `json:"token_cost_per_hour"`
}

// =============================================================================
// SLOT REQUESTS
// =============================================================================

type SlotRequestDTO struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	CalendarID    string `json:"calendar_id"`
	Status        string `json:"status"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Title         string `json:"title"`
	Reason        string `json:"reason"`
	RefusalReason string `json:"refusal_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// CreateSlotRequest is the body of POST /api/requests.
type CreateSlotRequest struct {
	CalendarID string    `json:"calendar_id"`
	Title      string    `json:"title"`
	Reason     string    `json:"reason"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

type SlotCreatedResponse struct {
	Request         SlotRequestDTO `json:"request"`
	Cost            int            `json:"cost"`
	RemainingTokens int            `json:"remaining_tokens"`
}

type StatusDecisionRequest struct {
	Approved      *bool  `json:"approved"`
	RefusalReason string `json:"refusal_reason,omitempty"`
}

type SlotDeletedResponse struct {
	Request          SlotRequestDTO `json:"request"`
	TokenCostPerHour int            `json:"token_cost_per_hour"`
	Penalty          int            `json:"penalty"`
	UnusedHours      int            `json:"unused_hours"`
	TotalHours       int            `json:"total_hours"`
	RefundedTokens   int            `json:"refunded_tokens"`
	RemainingTokens  int            `json:"remaining_tokens"`
}

type CheckSlotRequest struct {
	CalendarID string    `json:"calendar_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

type SlotAvailabilityDTO struct {
	CalendarID string `json:"calendar_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Available  bool   `json:"available"`
}

// =============================================================================
// SCENARIOS / MISC
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toUserDTO(u booking.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		Username:  u.Username,
		Email:     u.Email,
		Name:      u.Name,
		Surname:   u.Surname,
		Role:      string(u.Role),
		Tokens:    u.Tokens,
		CreatedAt: formatTime(u.CreatedAt),
	}
}

func toResourceDTO(r booking.ComputingResource) ResourceDTO {
	return ResourceDTO{
		ID:           string(r.ID),
		Model:        r.Model,
		Serial:       r.Serial,
		Manufacturer: r.Manufacturer,
		Type:         string(r.Type),
		CreatedAt:    formatTime(r.CreatedAt),
		UpdatedAt:    formatTime(r.UpdatedAt),
	}
}

func toCalendarDTO(c booking.Calendar) CalendarDTO {
	return CalendarDTO{
		ID:               string(c.ID),
		ResourceID:       string(c.ResourceID),
		Name:             c.Name,
		Archived:         c.Archived,
		TokenCostPerHour: c.TokenCostPerHour,
		CreatedAt:        formatTime(c.CreatedAt),
		UpdatedAt:        formatTime(c.UpdatedAt),
	}
}

func toSlotRequestDTO(r booking.SlotRequest) SlotRequestDTO {
	return SlotRequestDTO{
		ID:            string(r.ID),
		UserID:        string(r.UserID),
		CalendarID:    string(r.CalendarID),
		Status:        string(r.Status),
		Start:         formatTime(r.Start),
		End:           formatTime(r.End),
		Title:         r.Title,
		Reason:        r.Reason,
		RefusalReason: r.RefusalReason,
		CreatedAt:     formatTime(r.CreatedAt),
		UpdatedAt:     formatTime(r.UpdatedAt),
	}
}

// mapSlice converts a slice, returning [] rather than null for no items.
func mapSlice[T, D any](items []T, fn func(T) D) []D {
	out := make([]D, len(items))
	for i, item := range items {
		out[i] = fn(item)
	}
	return out
}
