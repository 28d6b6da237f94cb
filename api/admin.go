package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/warp/slot-engine/booking"
	"github.com/warp/slot-engine/metrics"
)

// =============================================================================
// ADMIN: USERS
// =============================================================================

// CreateUser registers an account.
// POST /api/admin/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(h.svc.Policy()); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.svc.CreateUser(r.Context(), booking.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Name:     req.Name,
		Surname:  req.Surname,
		Password: req.Password,
		Role:     booking.Role(req.Role),
		Tokens:   req.Tokens,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// GET /api/admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(users, toUserDTO))
}

// GET /api/admin/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUser(r.Context(), booking.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// DELETE /api/admin/users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteUser(r.Context(), booking.UserID(chi.URLParam(r, "id"))); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RechargeUser overwrites a user's balance.
// PUT /api/admin/users/{id}/tokens
func (h *Handler) RechargeUser(w http.ResponseWriter, r *http.Request) {
	var req RechargeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(h.svc.Policy()); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.svc.RechargeUser(r.Context(), booking.UserID(chi.URLParam(r, "id")), *req.NewTokenAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RechargeResponse{
		UserID:    string(result.UserID),
		OldAmount: result.OldAmount,
		NewAmount: result.NewAmount,
	})
}

// =============================================================================
// ADMIN: RESOURCES
// =============================================================================

// POST /api/admin/resources
func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req CreateResourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.svc.CreateResource(r.Context(), booking.CreateResourceInput{
		Model:        strings.TrimSpace(req.Model),
		Serial:       strings.TrimSpace(req.Serial),
		Manufacturer: strings.TrimSpace(req.Manufacturer),
		Type:         booking.ResourceType(req.Type),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResourceDTO(res))
}

// GET /api/admin/resources
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListResources(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, toResourceDTO))
}

// GET /api/admin/resources/{id}
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetResource(r.Context(), booking.ResourceID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResourceDTO(*res))
}

// UpdateResource edits a resource not bound to an active calendar.
// PUT /api/admin/resources/{id}
func (h *Handler) UpdateResource(w http.ResponseWriter, r *http.Request) {
	var req UpdateResourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	in := booking.UpdateResourceInput{Model: req.Model, Serial: req.Serial, Manufacturer: req.Manufacturer}
	if req.Type != nil {
		t := booking.ResourceType(*req.Type)
		in.Type = &t
	}
	res, err := h.svc.UpdateResource(r.Context(), booking.ResourceID(chi.URLParam(r, "id")), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResourceDTO(res))
}

// DELETE /api/admin/resources/{id}
func (h *Handler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteResource(r.Context(), booking.ResourceID(chi.URLParam(r, "id"))); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN: CALENDARS
// =============================================================================

// POST /api/admin/calendars
func (h *Handler) CreateCalendar(w http.ResponseWriter, r *http.Request) {
	var req CreateCalendarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	cal, err := h.svc.CreateCalendar(r.Context(), booking.CreateCalendarInput{
		ResourceID:       booking.ResourceID(req.ResourceID),
		Name:             req.Name,
		TokenCostPerHour: req.TokenCostPerHour,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCalendarDTO(cal))
}

// ListCalendars lists calendars, archived ones included on request.
// GET /api/admin/calendars?include_archived=true
func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query())
	includeArchived := q.boolean("include_archived")
	if err := q.err(); err != nil {
		writeError(w, r, err)
		return
	}

	cals, err := h.svc.ListCalendars(r.Context(), includeArchived)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(cals, toCalendarDTO))
}

// GET /api/admin/calendars/{id}
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	cal, err := h.svc.GetCalendar(r.Context(), booking.CalendarID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalendarDTO(*cal))
}

// PUT /api/admin/calendars/{id}
func (h *Handler) UpdateCalendar(w http.ResponseWriter, r *http.Request) {
	var req UpdateCalendarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	in := booking.UpdateCalendarInput{Name: req.Name, TokenCostPerHour: req.TokenCostPerHour}
	if req.ResourceID != nil {
		id := booking.ResourceID(*req.ResourceID)
		in.ResourceID = &id
	}
	cal, err := h.svc.UpdateCalendar(r.Context(), booking.CalendarID(chi.URLParam(r, "id")), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalendarDTO(cal))
}

// DeleteCalendar removes a calendar and all of its requests.
// DELETE /api/admin/calendars/{id}
func (h *Handler) DeleteCalendar(w http.ResponseWriter, r *http.Request) {
	cal, err := h.svc.DeleteCalendar(r.Context(), booking.CalendarID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalendarDTO(cal))
}

// POST /api/admin/calendars/{id}/archive
func (h *Handler) ArchiveCalendar(w http.ResponseWriter, r *http.Request) {
	cal, err := h.svc.ArchiveCalendar(r.Context(), booking.CalendarID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalendarDTO(cal))
}

// ListCalendarRequests lists requests of one calendar.
// GET /api/admin/calendars/{id}/requests?status=&start=&end=&user_id=
func (h *Handler) ListCalendarRequests(w http.ResponseWriter, r *http.Request) {
	id := booking.CalendarID(chi.URLParam(r, "id"))
	h.listRequests(w, r, &id)
}

// =============================================================================
// ADMIN: REQUESTS
// =============================================================================

// ListRequests lists requests across calendars.
// GET /api/admin/requests?calendar_id=&status=&start=&end=&user_id=
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, nil)
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request, calendarID *booking.CalendarID) {
	q := newQueryParser(r.URL.Query())
	query := booking.CalendarRequestQuery{
		CalendarID: calendarID,
		Status:     q.status("status"),
		From:       q.time("start"),
		To:         q.time("end"),
		UserID:     q.userID("user_id"),
	}
	if query.CalendarID == nil {
		query.CalendarID = q.calendarID("calendar_id")
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

// DecideRequest approves or refuses a request.
// PUT /api/admin/requests/{id}/status
func (h *Handler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	var req StatusDecisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	change, err := h.svc.UpdateRequestStatus(r.Context(), booking.RequestID(chi.URLParam(r, "id")), booking.StatusDecision{
		Approve:       *req.Approved,
		RefusalReason: req.RefusalReason,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if change.Changed {
		metrics.RecordDecision(*req.Approved)
	}
	writeJSON(w, http.StatusOK, toSlotRequestDTO(change.Request))
}
