/*
errors.go - Typed domain errors for the booking engine

PURPOSE:
  Every rule violation in the engine surfaces as an *Error carrying a
  Kind. The Kind decides the status class at the HTTP boundary; nothing
  inside the engine switches on it.

ERROR CLASSES:
  ClassNotFound     -> 404
  ClassConflict     -> 409
  ClassBadRequest   -> 400
  ClassUnauthorized -> 401

USAGE:
  if errors.Is(err, booking.ErrCalendarNotFound) { ... }

  var derr *booking.Error
  if errors.As(err, &derr) {
      switch derr.Kind.Class() { ... }
  }

  Insufficient funds on creation is NOT an error: the request is stored
  with StatusInvalid instead.

SEE ALSO:
  - api/errors.go: The single Kind -> HTTP status switch
*/
package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// KINDS
// =============================================================================

type Kind int

const (
	KindUnknown Kind = iota
	KindCalendarNotFound
	KindResourceNotFound
	KindResourceUnavailable
	KindResourceInUse
	KindNameAlreadyInUse
	KindCalendarArchived
	KindOngoingRequests
	KindCalendarSlotUnavailable
	KindIntersectingRequests
	KindSlotRequestNotFound
	KindRefusedRequestDeletion
	KindArchivedRequestDeletion
	KindFullyUsedRequestDeletion
	KindUserNotFound
	KindUsernameAlreadyInUse
	KindEmailAlreadyInUse
	KindInvalidCredentials
	KindUnfundedRequestApproval
)

var kindNames = map[Kind]string{
	KindUnknown:                  "unknown",
	KindCalendarNotFound:         "calendar_not_found",
	KindResourceNotFound:         "resource_not_found",
	KindResourceUnavailable:      "resource_unavailable",
	KindResourceInUse:            "resource_in_use",
	KindNameAlreadyInUse:         "name_already_in_use",
	KindCalendarArchived:         "calendar_archived",
	KindOngoingRequests:          "ongoing_requests",
	KindCalendarSlotUnavailable:  "calendar_slot_unavailable",
	KindIntersectingRequests:     "intersecting_requests",
	KindSlotRequestNotFound:      "slot_request_not_found",
	KindRefusedRequestDeletion:   "refused_request_deletion",
	KindArchivedRequestDeletion:  "archived_request_deletion",
	KindFullyUsedRequestDeletion: "fully_used_request_deletion",
	KindUserNotFound:             "user_not_found",
	KindUsernameAlreadyInUse:     "username_already_in_use",
	KindEmailAlreadyInUse:        "email_already_in_use",
	KindInvalidCredentials:       "invalid_credentials",
	KindUnfundedRequestApproval:  "unfunded_request_approval",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

type Class int

const (
	ClassInternal Class = iota
	ClassNotFound
	ClassConflict
	ClassBadRequest
	ClassUnauthorized
)

// Class returns the status class a caller should see for this kind.
func (k Kind) Class() Class {
	switch k {
	case KindCalendarNotFound, KindResourceNotFound, KindSlotRequestNotFound, KindUserNotFound:
		return ClassNotFound
	case KindResourceUnavailable, KindResourceInUse, KindNameAlreadyInUse, KindCalendarArchived,
		KindOngoingRequests, KindCalendarSlotUnavailable, KindIntersectingRequests,
		KindUsernameAlreadyInUse, KindEmailAlreadyInUse:
		return ClassConflict
	case KindRefusedRequestDeletion, KindArchivedRequestDeletion, KindFullyUsedRequestDeletion,
		KindUnfundedRequestApproval:
		return ClassBadRequest
	case KindInvalidCredentials:
		return ClassUnauthorized
	}
	return ClassInternal
}

// =============================================================================
// ERROR
// =============================================================================

// Error is a domain rule violation.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same Kind, so the sentinels below work
// with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// SENTINELS - Use with errors.Is()
// =============================================================================

var (
	ErrCalendarNotFound         = &Error{Kind: KindCalendarNotFound, Message: "calendar not found"}
	ErrResourceNotFound         = &Error{Kind: KindResourceNotFound, Message: "computing resource not found"}
	ErrResourceUnavailable      = &Error{Kind: KindResourceUnavailable, Message: "computing resource already bound to an active calendar"}
	ErrResourceInUse            = &Error{Kind: KindResourceInUse, Message: "computing resource referenced by an active calendar"}
	ErrNameAlreadyInUse         = &Error{Kind: KindNameAlreadyInUse, Message: "calendar name already in use"}
	ErrCalendarArchived         = &Error{Kind: KindCalendarArchived, Message: "calendar is archived"}
	ErrOngoingRequests          = &Error{Kind: KindOngoingRequests, Message: "calendar has ongoing approved requests"}
	ErrCalendarSlotUnavailable  = &Error{Kind: KindCalendarSlotUnavailable, Message: "slot overlaps an approved request"}
	ErrIntersectingRequests     = &Error{Kind: KindIntersectingRequests, Message: "request intersects an approved request"}
	ErrSlotRequestNotFound      = &Error{Kind: KindSlotRequestNotFound, Message: "slot request not found"}
	ErrRefusedRequestDeletion   = &Error{Kind: KindRefusedRequestDeletion, Message: "refused requests cannot be deleted"}
	ErrArchivedRequestDeletion  = &Error{Kind: KindArchivedRequestDeletion, Message: "requests on an archived calendar cannot be deleted"}
	ErrFullyUsedRequestDeletion = &Error{Kind: KindFullyUsedRequestDeletion, Message: "request window has fully elapsed"}
	ErrUserNotFound             = &Error{Kind: KindUserNotFound, Message: "user not found"}
	ErrUsernameAlreadyInUse     = &Error{Kind: KindUsernameAlreadyInUse, Message: "username already in use"}
	ErrEmailAlreadyInUse        = &Error{Kind: KindEmailAlreadyInUse, Message: "email already in use"}
	ErrInvalidCredentials       = &Error{Kind: KindInvalidCredentials, Message: "invalid username or password"}
	ErrUnfundedRequestApproval  = &Error{Kind: KindUnfundedRequestApproval, Message: "invalid requests were never paid for and cannot be approved"}
)

// =============================================================================
// VALIDATION ERRORS
// =============================================================================

// ValidationError lists invalid input fields. The first message recorded
// for a field wins.
type ValidationError struct {
	Fields map[string]string
}

func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string]string)
	}
	if _, exists := v.Fields[field]; !exists {
		v.Fields[field] = message
	}
}

func (v *ValidationError) Empty() bool {
	return v == nil || len(v.Fields) == 0
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	return KindUnknown
}

// ErrorKind names err for structured logs.
func ErrorKind(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return "validation"
	}
	return KindOf(err).String()
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return KindOf(err).Class() == ClassNotFound
}

// IsClientError returns true if the error is due to the caller's input
// or the current state of the records they addressed.
func IsClientError(err error) bool {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return true
	}
	return KindOf(err).Class() != ClassInternal
}
