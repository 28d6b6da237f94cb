/*
request.go - Slot request lifecycle

PURPOSE:
  Orchestrates creation, admin decisions and owner deletion of slot
  requests. Each operation composes the Resolver and the Ledger inside a
  single WithTx so the request and the token balance move together.

CREATION:
  1. Calendar missing or archived        -> CalendarNotFound (same error)
  2. Approved request overlaps the slot  -> CalendarSlotUnavailable
  3. cost = hours(start, end) * calendar.TokenCostPerHour
  4. balance >= cost ? debit, pending : no debit, invalid

  Only approved requests block creation, so two pending requests on the
  same slot may coexist. The overlap is re-checked at approval time.

DECISIONS:
  approve: approved already -> unchanged, no store calls beyond the read
           invalid -> UnfundedRequestApproval
           else any other approved overlap -> IntersectingRequests
  refuse:  refused already -> unchanged
           else status refused with the reason
  Decisions never touch the ledger.

DELETION (owner only):
  not found / not owned -> SlotRequestNotFound (same error)
  refused               -> RefusedRequestDeletion
  calendar archived     -> ArchivedRequestDeletion
  invalid               -> deleted, nothing refunded
  now < start           -> refund(total hours, unused penalty)
  start <= now < end    -> refund(floor(hours(now, end)), partial penalty)
  now >= end            -> FullyUsedRequestDeletion, nothing written

SEE ALSO:
  - conflict.go: Overlapping
  - ledger.go: Debit, Credit, Refund
*/
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// INPUTS / RESULTS
// =============================================================================

type CreateSlotInput struct {
	CalendarID CalendarID
	Title      string
	Reason     string
	Start      time.Time
	End        time.Time
}

type SlotCreation struct {
	Request         SlotRequest
	Cost            int
	RemainingTokens int
}

// StatusDecision is an admin verdict. RefusalReason is used only when
// Approve is false.
type StatusDecision struct {
	Approve       bool
	RefusalReason string
}

// StatusChange is the outcome of a decision. Changed is false when the
// request already had the decided status and nothing was written.
type StatusChange struct {
	Request SlotRequest
	Changed bool
}

type SlotDeletion struct {
	Request          SlotRequest
	TokenCostPerHour int
	Penalty          int
	UnusedHours      int
	TotalHours       int
	RefundedTokens   int
	RemainingTokens  int
}

type SlotAvailability struct {
	CalendarID CalendarID
	Start      time.Time
	End        time.Time
	Available  bool
}

// =============================================================================
// CREATE
// =============================================================================

// CreateSlotRequest records a slot request for userID. Insufficient
// funds do not fail: the request is stored as invalid and nothing is
// debited.
func (s *Service) CreateSlotRequest(ctx context.Context, userID UserID, in CreateSlotInput) (result SlotCreation, err error) {
	logger := s.opLogger(ctx, "CreateSlotRequest", "user_id", userID, "calendar_id", in.CalendarID)
	defer func() {
		logResult(ctx, logger, err, "slot request created",
			"request_id", result.Request.ID, "status", result.Request.Status,
			"cost", result.Cost, "remaining_tokens", result.RemainingTokens)
	}()

	start, end := in.Start.UTC(), in.End.UTC()
	period := Period{Start: start, End: end}
	if !period.Valid() {
		v := &ValidationError{}
		v.Add("end", "must be after start")
		return SlotCreation{}, v
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		cal, err := s.activeCalendar(ctx, tx, in.CalendarID)
		if err != nil {
			return err
		}

		overlapping, err := s.resolver.Overlapping(ctx, tx, cal.ID, StatusApproved, period, "")
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return newError(KindCalendarSlotUnavailable, "slot %s overlaps %d approved request(s)", period, len(overlapping))
		}

		cost := Cost(start, end, cal.TokenCostPerHour)
		debit, err := s.ledger.Debit(ctx, tx, userID, cost)
		if err != nil {
			return err
		}

		status := StatusPending
		if !debit.Debited {
			status = StatusInvalid
		}
		now := s.Now()
		req := SlotRequest{
			ID:         RequestID(s.newID()),
			UserID:     userID,
			CalendarID: cal.ID,
			Status:     status,
			Start:      start,
			End:        end,
			Title:      strings.TrimSpace(in.Title),
			Reason:     strings.TrimSpace(in.Reason),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.CreateRequest(ctx, req); err != nil {
			return fmt.Errorf("create slot request: %w", err)
		}
		result = SlotCreation{Request: req, Cost: cost, RemainingTokens: debit.Remaining}
		return nil
	})
	if err != nil {
		return SlotCreation{}, err
	}
	return result, nil
}

// CheckSlot reports whether [start, end) is free of approved requests.
func (s *Service) CheckSlot(ctx context.Context, calendarID CalendarID, start, end time.Time) (SlotAvailability, error) {
	cal, err := s.activeCalendar(ctx, s.store, calendarID)
	if err != nil {
		return SlotAvailability{}, err
	}
	period := Period{Start: start.UTC(), End: end.UTC()}
	overlapping, err := s.resolver.Overlapping(ctx, s.store, cal.ID, StatusApproved, period, "")
	if err != nil {
		return SlotAvailability{}, err
	}
	return SlotAvailability{
		CalendarID: cal.ID,
		Start:      period.Start,
		End:        period.End,
		Available:  len(overlapping) == 0,
	}, nil
}

// GetSlotRequest returns any live request. Admin use.
func (s *Service) GetSlotRequest(ctx context.Context, id RequestID) (*SlotRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load slot request: %w", err)
	}
	if req == nil {
		return nil, ErrSlotRequestNotFound
	}
	return req, nil
}

// =============================================================================
// DECIDE
// =============================================================================

// UpdateRequestStatus applies an admin decision.
func (s *Service) UpdateRequestStatus(ctx context.Context, id RequestID, decision StatusDecision) (change StatusChange, err error) {
	logger := s.opLogger(ctx, "UpdateRequestStatus", "request_id", id, "approve", decision.Approve)
	defer func() {
		logResult(ctx, logger, err, "slot request decided", "status", change.Request.Status, "changed", change.Changed)
	}()

	var req SlotRequest

	err = s.store.WithTx(ctx, func(tx Store) error {
		current, err := tx.GetRequest(ctx, id)
		if err != nil {
			return fmt.Errorf("load slot request: %w", err)
		}
		if current == nil {
			return ErrSlotRequestNotFound
		}
		req = *current

		if decision.Approve {
			if req.Status == StatusApproved {
				return nil
			}
			if req.Status == StatusInvalid {
				return ErrUnfundedRequestApproval
			}
			others, err := s.resolver.Overlapping(ctx, tx, req.CalendarID, StatusApproved, req.Period(), req.ID)
			if err != nil {
				return err
			}
			if len(others) > 0 {
				return newError(KindIntersectingRequests, "request %s intersects approved request %s", req.ID, others[0].ID)
			}
			req.Status = StatusApproved
			req.RefusalReason = ""
		} else {
			if req.Status == StatusRefused {
				return nil
			}
			req.Status = StatusRefused
			req.RefusalReason = strings.TrimSpace(decision.RefusalReason)
		}

		req.UpdatedAt = s.Now()
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return fmt.Errorf("update slot request: %w", err)
		}
		change.Changed = true
		return nil
	})
	if err != nil {
		return StatusChange{}, err
	}
	change.Request = req
	return change, nil
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteSlotRequest removes userID's request and refunds the unused part.
func (s *Service) DeleteSlotRequest(ctx context.Context, userID UserID, id RequestID) (result SlotDeletion, err error) {
	logger := s.opLogger(ctx, "DeleteSlotRequest", "user_id", userID, "request_id", id)
	defer func() {
		logResult(ctx, logger, err, "slot request deleted",
			"refunded_tokens", result.RefundedTokens, "penalty", result.Penalty,
			"remaining_tokens", result.RemainingTokens)
	}()

	err = s.store.WithTx(ctx, func(tx Store) error {
		req, err := tx.GetRequest(ctx, id)
		if err != nil {
			return fmt.Errorf("load slot request: %w", err)
		}
		if req == nil || req.UserID != userID {
			return ErrSlotRequestNotFound
		}
		if req.Status == StatusRefused {
			return ErrRefusedRequestDeletion
		}
		cal, err := s.loadCalendar(ctx, tx, req.CalendarID)
		if err != nil {
			return err
		}
		if cal.Archived {
			return ErrArchivedRequestDeletion
		}

		total := req.Period().Hours()
		result = SlotDeletion{
			Request:          *req,
			TokenCostPerHour: cal.TokenCostPerHour,
			TotalHours:       total,
		}

		if req.Status == StatusInvalid {
			user, err := tx.GetUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("load user: %w", err)
			}
			if user == nil {
				return ErrUserNotFound
			}
			if err := tx.DeleteRequest(ctx, req.ID, s.Now()); err != nil {
				return fmt.Errorf("delete slot request: %w", err)
			}
			result.UnusedHours = total
			result.RemainingTokens = user.Tokens
			return nil
		}

		now := s.Now()
		switch {
		case now.Before(req.Start):
			result.UnusedHours = total
			result.Penalty = s.policy.UnusedDeletionPenalty
		case now.Before(req.End):
			result.UnusedHours = WholeHours(now, req.End)
			result.Penalty = s.policy.PartialUseDeletionPenalty
		default:
			return ErrFullyUsedRequestDeletion
		}
		result.RefundedTokens = Refund(result.UnusedHours, cal.TokenCostPerHour, result.Penalty)

		remaining, err := s.ledger.Credit(ctx, tx, userID, result.RefundedTokens)
		if err != nil {
			return err
		}
		if err := tx.DeleteRequest(ctx, req.ID, now); err != nil {
			return fmt.Errorf("delete slot request: %w", err)
		}
		result.RemainingTokens = remaining
		return nil
	})
	if err != nil {
		return SlotDeletion{}, err
	}
	return result, nil
}
