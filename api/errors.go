package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/warp/slot-engine/auth"
	"github.com/warp/slot-engine/booking"
)

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps err to a status code. This is the only place booking
// errors become HTTP.
//
//	*ValidationError      400 with per-field messages
//	ClassNotFound         404
//	ClassConflict         409
//	ClassBadRequest       400
//	ClassUnauthorized     401
//	auth.ErrInvalidToken  401
//	anything else         500, message hidden and error logged
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *booking.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Kind: "validation", Fields: verr.Fields})
		return
	}
	if errors.Is(err, auth.ErrInvalidToken) {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Kind: "invalid_token"})
		return
	}

	kind := booking.KindOf(err)
	var status int
	switch kind.Class() {
	case booking.ClassNotFound:
		status = http.StatusNotFound
	case booking.ClassConflict:
		status = http.StatusConflict
	case booking.ClassBadRequest:
		status = http.StatusBadRequest
	case booking.ClassUnauthorized:
		status = http.StatusUnauthorized
	default:
		requestLogger(r).ErrorContext(r.Context(), "request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind.String()})
}

// writeStatus sends an error that has no booking kind (malformed body,
// missing token, wrong role).
func writeStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// decodeJSON reads a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
