package booking

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// CONFLICT RESOLVER
// =============================================================================

// Resolver finds slot requests that collide with an interval or an instant.
//
// Two modes with different boundary rules:
//   - Overlapping: half-open [start, end). Touching endpoints do not collide.
//   - OngoingAt:   closed [start, end]. A request ending exactly now is
//     still ongoing.
//
// Both take the Store to read from so they can run inside WithTx.
type Resolver struct{}

// Overlapping returns the requests on calendarID with the given status
// whose interval intersects period. exclude, when non-empty, is left out
// of the result (used when re-validating a request against its peers).
func (Resolver) Overlapping(ctx context.Context, s Store, calendarID CalendarID, status RequestStatus, period Period, exclude RequestID) ([]SlotRequest, error) {
	filter := RequestFilter{
		CalendarID:  &calendarID,
		Status:      &status,
		WindowStart: &period.Start,
		WindowEnd:   &period.End,
	}
	if exclude != "" {
		filter.ExcludeID = &exclude
	}
	found, err := s.FindRequests(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find overlapping requests: %w", err)
	}
	if found == nil {
		found = []SlotRequest{}
	}
	return found, nil
}

// OngoingAt returns the requests on calendarID with the given status
// whose interval contains instant, endpoints included.
func (Resolver) OngoingAt(ctx context.Context, s Store, calendarID CalendarID, status RequestStatus, instant time.Time) ([]SlotRequest, error) {
	found, err := s.FindRequests(ctx, RequestFilter{
		CalendarID: &calendarID,
		Status:     &status,
		At:         &instant,
	})
	if err != nil {
		return nil, fmt.Errorf("find ongoing requests: %w", err)
	}
	if found == nil {
		found = []SlotRequest{}
	}
	return found, nil
}
