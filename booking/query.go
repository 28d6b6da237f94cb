package booking

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// REQUEST QUERIES - Read only
// =============================================================================

// UserRequestQuery filters a user's own requests by status and by an
// inclusive creation-date range.
type UserRequestQuery struct {
	Status      *RequestStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// CalendarRequestQuery filters requests by calendar, status, slot window
// and creator. See RequestFilter for the window rules.
type CalendarRequestQuery struct {
	CalendarID *CalendarID
	Status     *RequestStatus
	From       *time.Time
	To         *time.Time
	UserID     *UserID
}

func (s *Service) ListUserRequests(ctx context.Context, userID UserID, q UserRequestQuery) ([]SlotRequest, error) {
	list, err := s.store.FindRequests(ctx, RequestFilter{
		UserID:      &userID,
		Status:      q.Status,
		CreatedFrom: q.CreatedFrom,
		CreatedTo:   q.CreatedTo,
	})
	if err != nil {
		return nil, fmt.Errorf("find user requests: %w", err)
	}
	return nonNil(list), nil
}

// ListCalendarRequests fails CalendarNotFound only when q names a
// calendar that does not exist. Archived calendars can still be queried.
func (s *Service) ListCalendarRequests(ctx context.Context, q CalendarRequestQuery) ([]SlotRequest, error) {
	if q.CalendarID != nil {
		if _, err := s.loadCalendar(ctx, s.store, *q.CalendarID); err != nil {
			return nil, err
		}
	}
	list, err := s.store.FindRequests(ctx, RequestFilter{
		CalendarID:  q.CalendarID,
		Status:      q.Status,
		WindowStart: q.From,
		WindowEnd:   q.To,
		UserID:      q.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("find calendar requests: %w", err)
	}
	return nonNil(list), nil
}

func nonNil(list []SlotRequest) []SlotRequest {
	if list == nil {
		return []SlotRequest{}
	}
	return list
}
