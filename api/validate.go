package api

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/warp/slot-engine/booking"
)

// =============================================================================
// FIELD LIMITS
// =============================================================================

const (
	usernameMin, usernameMax           = 3, 32
	passwordMin, passwordMax           = 8, 64
	emailMax                           = 254
	personNameMin, personNameMax       = 1, 64
	calendarNameMin, calendarNameMax   = 3, 64
	titleMin, titleMax                 = 3, 100
	reasonMin, reasonMax               = 5, 500
	costPerHourMin, costPerHourMax     = 1, 100
	refusalReasonMin, refusalReasonMax = 5, 500
)

// validator accumulates field errors. Each check records only the first
// failure per field.
type validator struct {
	v booking.ValidationError
}

func (c *validator) length(field, value string, min, max int) {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < min || n > max {
		c.v.Add(field, fmt.Sprintf("must be between %d and %d characters", min, max))
	}
}

func (c *validator) intRange(field string, value, min, max int) {
	if value < min || value > max {
		c.v.Add(field, fmt.Sprintf("must be between %d and %d", min, max))
	}
}

func (c *validator) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		c.v.Add(field, "is required")
	}
}

func (c *validator) email(field, value string) {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > emailMax {
		c.v.Add(field, fmt.Sprintf("must be a valid address of at most %d characters", emailMax))
		return
	}
	if addr, err := mail.ParseAddress(value); err != nil || addr.Address != value {
		c.v.Add(field, "must be a valid email address")
	}
}

// slot merges the booking window rules.
func (c *validator) slot(start, end, now time.Time) {
	if start.IsZero() {
		c.v.Add("start", "is required")
	}
	if end.IsZero() {
		c.v.Add("end", "is required")
	}
	if verr := booking.ValidateSlot(start.UTC(), end.UTC(), now); verr != nil {
		for field, msg := range verr.Fields {
			c.v.Add(field, msg)
		}
	}
}

func (c *validator) err() error {
	if c.v.Empty() {
		return nil
	}
	return &c.v
}

// =============================================================================
// REQUEST VALIDATION
// =============================================================================

func (r LoginRequest) validate() error {
	var c validator
	c.required("username", r.Username)
	c.required("password", r.Password)
	return c.err()
}

func (r CreateUserRequest) validate(policy booking.Policy) error {
	var c validator
	c.length("username", r.Username, usernameMin, usernameMax)
	c.length("password", r.Password, passwordMin, passwordMax)
	c.email("email", r.Email)
	c.length("name", r.Name, personNameMin, personNameMax)
	c.length("surname", r.Surname, personNameMin, personNameMax)
	if r.Role != "" && !booking.Role(r.Role).Valid() {
		c.v.Add("role", "must be user or admin")
	}
	if r.Tokens != nil {
		c.intRange("tokens", *r.Tokens, 0, policy.MaxTokens)
	}
	return c.err()
}

func (r RechargeRequest) validate(policy booking.Policy) error {
	var c validator
	if r.NewTokenAmount == nil {
		c.v.Add("new_token_amount", "is required")
	} else {
		c.intRange("new_token_amount", *r.NewTokenAmount, 0, policy.MaxTokens)
	}
	return c.err()
}

func (r CreateResourceRequest) validate() error {
	var c validator
	if r.Type != "" && !booking.ResourceType(r.Type).Valid() {
		c.v.Add("type", "must be cpu or gpu")
	}
	return c.err()
}

func (r UpdateResourceRequest) validate() error {
	var c validator
	if r.Type != nil && !booking.ResourceType(*r.Type).Valid() {
		c.v.Add("type", "must be cpu or gpu")
	}
	return c.err()
}

func (r CreateCalendarRequest) validate() error {
	var c validator
	c.required("resource_id", r.ResourceID)
	c.length("name", r.Name, calendarNameMin, calendarNameMax)
	if r.TokenCostPerHour != nil {
		c.intRange("token_cost_per_hour", *r.TokenCostPerHour, costPerHourMin, costPerHourMax)
	}
	return c.err()
}

func (r UpdateCalendarRequest) validate() error {
	var c validator
	if r.ResourceID != nil {
		c.required("resource_id", *r.ResourceID)
	}
	if r.Name != nil {
		c.length("name", *r.Name, calendarNameMin, calendarNameMax)
	}
	if r.TokenCostPerHour != nil {
		c.intRange("token_cost_per_hour", *r.TokenCostPerHour, costPerHourMin, costPerHourMax)
	}
	return c.err()
}

func (r CreateSlotRequest) validate(now time.Time) error {
	var c validator
	c.required("calendar_id", r.CalendarID)
	c.length("title", r.Title, titleMin, titleMax)
	c.length("reason", r.Reason, reasonMin, reasonMax)
	c.slot(r.Start, r.End, now)
	return c.err()
}

func (r CheckSlotRequest) validate() error {
	var c validator
	c.required("calendar_id", r.CalendarID)
	if !r.End.After(r.Start) {
		c.v.Add("end", "must be after start")
	}
	return c.err()
}

// validate requires a refusal reason exactly when refusing.
func (r StatusDecisionRequest) validate() error {
	var c validator
	switch {
	case r.Approved == nil:
		c.v.Add("approved", "is required")
	case *r.Approved && r.RefusalReason != "":
		c.v.Add("refusal_reason", "must be empty when approving")
	case !*r.Approved:
		c.length("refusal_reason", r.RefusalReason, refusalReasonMin, refusalReasonMax)
	}
	return c.err()
}
