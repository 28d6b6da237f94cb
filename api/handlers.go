/*
handlers.go - HTTP API handlers for slot booking

PURPOSE:
  Exposes the booking engine via REST API. Handles HTTP request/response,
  JSON serialization and input validation, and delegates to
  booking.Service.

ENDPOINTS (this file):
  Public:
    GET    /api/health              Service status
    POST   /api/login               Exchange credentials for a bearer token

  Authenticated:
    GET    /api/me                  Caller profile and token balance
    GET    /api/calendars           Active calendars
    POST   /api/requests            Create a slot request
    GET    /api/requests            Caller's requests (?status&created_from&created_to)
    DELETE /api/requests/{id}       Delete own request with refund
    GET    /api/slots               Caller's requests on a calendar window
    POST   /api/slots/check         Is a window free of approved requests?

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (validate.go)
  3. Call booking.Service
  4. Serialize response
  5. Handle errors (errors.go)

SEE ALSO:
  - admin.go: Admin endpoints
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/slot-engine/auth"
	"github.com/warp/slot-engine/booking"
	"github.com/warp/slot-engine/metrics"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter clears all persisted data. Scenarios call it before seeding.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	svc    *booking.Service
	tokens *auth.Issuer
	store  Resetter

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler. store may be nil when scenarios are
// disabled.
func NewHandler(svc *booking.Service, tokens *auth.Issuer, store Resetter) *Handler {
	return &Handler{svc: svc, tokens: tokens, store: store}
}

// caller returns the authenticated principal. Routes using it sit behind
// authenticate.
func caller(r *http.Request) booking.Principal {
	p, _ := principalFrom(r.Context())
	return p
}

// =============================================================================
// PUBLIC
// =============================================================================

// Health reports that the service is up.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: formatTime(h.svc.Now())})
}

// Login exchanges credentials for a bearer token.
// POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.svc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := h.tokens.Issue(*user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresIn: int(h.tokens.TTL().Seconds())})
}

// =============================================================================
// CALLER
// =============================================================================

// Me returns the caller's profile.
// GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUser(r.Context(), caller(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// ListActiveCalendars lists bookable calendars.
// GET /api/calendars
func (h *Handler) ListActiveCalendars(w http.ResponseWriter, r *http.Request) {
	cals, err := h.svc.ListCalendars(r.Context(), false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(cals, toCalendarDTO))
}

// =============================================================================
// SLOT REQUESTS
// =============================================================================

// CreateSlotRequest books a slot for the caller. Insufficient funds still
// create the request, with status "invalid".
// POST /api/requests
func (h *Handler) CreateSlotRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateSlotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(h.svc.Now()); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.svc.CreateSlotRequest(r.Context(), caller(r).UserID, booking.CreateSlotInput{
		CalendarID: booking.CalendarID(req.CalendarID),
		Title:      req.Title,
		Reason:     req.Reason,
		Start:      req.Start,
		End:        req.End,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.RecordSlotRequestCreated(string(created.Request.Status))

	writeJSON(w, http.StatusCreated, SlotCreatedResponse{
		Request:         toSlotRequestDTO(created.Request),
		Cost:            created.Cost,
		RemainingTokens: created.RemainingTokens,
	})
}

// ListMyRequests lists the caller's requests.
// GET /api/requests?status=&created_from=&created_to=
func (h *Handler) ListMyRequests(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query())
	query := booking.UserRequestQuery{
		Status:      q.status("status"),
		CreatedFrom: q.time("created_from"),
		CreatedTo:   q.time("created_to"),
	}
	if err := q.err(); err != nil {
		writeError(w, r, err)
		return
	}

	reqs, err := h.svc.ListUserRequests(r.Context(), caller(r).UserID, query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(reqs, toSlotRequestDTO))
}

// DeleteSlotRequest deletes one of the caller's requests and refunds the
// unused hours minus the penalty.
// DELETE /api/requests/{id}
func (h *Handler) DeleteSlotRequest(w http.ResponseWriter, r *http.Request) {
	id := booking.RequestID(chi.URLParam(r, "id"))

	deleted, err := h.svc.DeleteSlotRequest(r.Context(), caller(r).UserID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.RecordSlotRequestDeleted(deleted.RefundedTokens)

	writeJSON(w, http.StatusOK, SlotDeletedResponse{
		Request:          toSlotRequestDTO(deleted.Request),
		TokenCostPerHour: deleted.TokenCostPerHour,
		Penalty:          deleted.Penalty,
		UnusedHours:      deleted.UnusedHours,
		TotalHours:       deleted.TotalHours,
		RefundedTokens:   deleted.RefundedTokens,
		RemainingTokens:  deleted.RemainingTokens,
	})
}

// ListMySlots lists the caller's requests on a calendar window.
// GET /api/slots?calendar_id=&status=&start=&end=
func (h *Handler) ListMySlots(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query())
	userID := caller(r).UserID
	query := booking.CalendarRequestQuery{
		CalendarID: q.calendarID("calendar_id"),
		Status:     q.status("status"),
		From:       q.time("start"),
		To:         q.time("end"),
		UserID:     &userID,
	}
	if err := q.err(); err != nil {
		writeError(w, r, err)
		return
	}

	reqs, err := h.svc.ListCalendarRequests(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(reqs, toSlotRequestDTO))
}

// CheckSlot reports whether a window is free of approved requests.
// POST /api/slots/check
func (h *Handler) CheckSlot(w http.ResponseWriter, r *http.Request) {
	var req CheckSlotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	avail, err := h.svc.CheckSlot(r.Context(), booking.CalendarID(req.CalendarID), req.Start, req.End)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SlotAvailabilityDTO{
		CalendarID: string(avail.CalendarID),
		Start:      formatTime(avail.Start),
		End:        formatTime(avail.End),
		Available:  avail.Available,
	})
}

// =============================================================================
// QUERY PARSING
// =============================================================================

// queryParser reads optional query parameters, collecting format errors
// as a ValidationError.
type queryParser struct {
	values url.Values
	c      validator
}

func newQueryParser(values url.Values) *queryParser {
	return &queryParser{values: values}
}

func (q *queryParser) time(key string) *time.Time {
	raw := q.values.Get(key)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		q.c.v.Add(key, "must be an RFC 3339 timestamp")
		return nil
	}
	t = t.UTC()
	return &t
}

func (q *queryParser) status(key string) *booking.RequestStatus {
	raw := q.values.Get(key)
	if raw == "" {
		return nil
	}
	s := booking.RequestStatus(raw)
	if !s.Valid() {
		q.c.v.Add(key, "must be one of pending, invalid, approved, refused")
		return nil
	}
	return &s
}

func (q *queryParser) calendarID(key string) *booking.CalendarID {
	raw := q.values.Get(key)
	if raw == "" {
		return nil
	}
	id := booking.CalendarID(raw)
	return &id
}

func (q *queryParser) userID(key string) *booking.UserID {
	raw := q.values.Get(key)
	if raw == "" {
		return nil
	}
	id := booking.UserID(raw)
	return &id
}

func (q *queryParser) boolean(key string) bool {
	switch q.values.Get(key) {
	case "", "false", "0":
		return false
	case "true", "1":
		return true
	}
	q.c.v.Add(key, "must be true or false")
	return false
}

func (q *queryParser) err() error {
	return q.c.err()
}
