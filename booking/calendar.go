/*
calendar.go - Calendar lifecycle

PURPOSE:
  Creates, updates, archives and deletes calendars while keeping the
  binding rules intact.

INVARIANTS:
  - A resource is bound to at most one non-archived calendar.
  - Calendar names are unique among non-archived calendars.
  - Archived calendars are immutable and never un-archived.
  - Archive and delete are refused while an approved request is ongoing
    (start <= now <= end, endpoints included).

CASCADE:
  DeleteCalendar soft-deletes the calendar and then every slot request on
  it, in one transaction. There is no implicit hook; both writes are
  explicit here.

SEE ALSO:
  - conflict.go: OngoingAt
*/
package booking

import (
	"context"
	"fmt"
	"strings"
)

type CreateCalendarInput struct {
	ResourceID       ResourceID
	Name             string
	TokenCostPerHour *int
}

// UpdateCalendarInput is a partial update; nil fields are left alone.
type UpdateCalendarInput struct {
	ResourceID       *ResourceID
	Name             *string
	TokenCostPerHour *int
}

// =============================================================================
// CREATE / UPDATE
// =============================================================================

func (s *Service) CreateCalendar(ctx context.Context, in CreateCalendarInput) (cal Calendar, err error) {
	logger := s.opLogger(ctx, "CreateCalendar", "resource_id", in.ResourceID)
	defer func() { logResult(ctx, logger, err, "calendar created", "calendar_id", cal.ID) }()

	cost := s.policy.DefaultTokenCostPerHour
	if in.TokenCostPerHour != nil {
		cost = *in.TokenCostPerHour
	}
	if err := checkCostPerHour(cost); err != nil {
		return Calendar{}, err
	}
	name := strings.TrimSpace(in.Name)

	err = s.store.WithTx(ctx, func(tx Store) error {
		if err := s.checkResourceAvailable(ctx, tx, in.ResourceID, ""); err != nil {
			return err
		}
		if err := s.checkNameFree(ctx, tx, name, ""); err != nil {
			return err
		}
		now := s.Now()
		cal = Calendar{
			ID:               CalendarID(s.newID()),
			ResourceID:       in.ResourceID,
			Name:             name,
			TokenCostPerHour: cost,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.CreateCalendar(ctx, cal); err != nil {
			return fmt.Errorf("create calendar: %w", err)
		}
		return nil
	})
	if err != nil {
		return Calendar{}, err
	}
	return cal, nil
}

func (s *Service) UpdateCalendar(ctx context.Context, id CalendarID, in UpdateCalendarInput) (cal Calendar, err error) {
	logger := s.opLogger(ctx, "UpdateCalendar", "calendar_id", id)
	defer func() { logResult(ctx, logger, err, "calendar updated") }()

	if in.TokenCostPerHour != nil {
		if err := checkCostPerHour(*in.TokenCostPerHour); err != nil {
			return Calendar{}, err
		}
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		current, err := s.loadCalendar(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Archived {
			return ErrCalendarArchived
		}
		cal = *current

		if in.ResourceID != nil && *in.ResourceID != cal.ResourceID {
			if err := s.checkResourceAvailable(ctx, tx, *in.ResourceID, cal.ID); err != nil {
				return err
			}
			cal.ResourceID = *in.ResourceID
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name != cal.Name {
				if err := s.checkNameFree(ctx, tx, name, cal.ID); err != nil {
					return err
				}
				cal.Name = name
			}
		}
		if in.TokenCostPerHour != nil {
			cal.TokenCostPerHour = *in.TokenCostPerHour
		}
		cal.UpdatedAt = s.Now()
		if err := tx.UpdateCalendar(ctx, cal); err != nil {
			return fmt.Errorf("update calendar: %w", err)
		}
		return nil
	})
	if err != nil {
		return Calendar{}, err
	}
	return cal, nil
}

// =============================================================================
// READ
// =============================================================================

// GetCalendar returns a calendar, archived or not.
func (s *Service) GetCalendar(ctx context.Context, id CalendarID) (*Calendar, error) {
	return s.loadCalendar(ctx, s.store, id)
}

func (s *Service) ListCalendars(ctx context.Context, includeArchived bool) ([]Calendar, error) {
	list, err := s.store.FindCalendars(ctx, CalendarFilter{IncludeArchived: includeArchived})
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	return list, nil
}

// =============================================================================
// ARCHIVE / DELETE
// =============================================================================

// ArchiveCalendar sets the archived flag. Archiving an archived calendar
// returns it unchanged.
func (s *Service) ArchiveCalendar(ctx context.Context, id CalendarID) (cal Calendar, err error) {
	logger := s.opLogger(ctx, "ArchiveCalendar", "calendar_id", id)
	defer func() { logResult(ctx, logger, err, "calendar archived") }()

	err = s.store.WithTx(ctx, func(tx Store) error {
		current, err := s.loadCalendar(ctx, tx, id)
		if err != nil {
			return err
		}
		cal = *current
		if cal.Archived {
			return nil
		}
		if err := s.checkNoOngoing(ctx, tx, id); err != nil {
			return err
		}
		cal.Archived = true
		cal.UpdatedAt = s.Now()
		if err := tx.UpdateCalendar(ctx, cal); err != nil {
			return fmt.Errorf("archive calendar: %w", err)
		}
		return nil
	})
	if err != nil {
		return Calendar{}, err
	}
	return cal, nil
}

// DeleteCalendar soft-deletes the calendar and all of its slot requests.
func (s *Service) DeleteCalendar(ctx context.Context, id CalendarID) (cal Calendar, err error) {
	logger := s.opLogger(ctx, "DeleteCalendar", "calendar_id", id)
	defer func() { logResult(ctx, logger, err, "calendar deleted") }()

	err = s.store.WithTx(ctx, func(tx Store) error {
		current, err := s.loadCalendar(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.checkNoOngoing(ctx, tx, id); err != nil {
			return err
		}
		now := s.Now()
		if err := tx.DeleteCalendar(ctx, id, now); err != nil {
			return fmt.Errorf("delete calendar: %w", err)
		}
		if err := tx.DeleteCalendarRequests(ctx, id, now); err != nil {
			return fmt.Errorf("delete calendar requests: %w", err)
		}
		cal = *current
		return nil
	})
	if err != nil {
		return Calendar{}, err
	}
	return cal, nil
}

// =============================================================================
// CHECKS
// =============================================================================

func (s *Service) loadCalendar(ctx context.Context, st Store, id CalendarID) (*Calendar, error) {
	cal, err := st.GetCalendar(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load calendar: %w", err)
	}
	if cal == nil {
		return nil, ErrCalendarNotFound
	}
	return cal, nil
}

// activeCalendar loads id and reports an archived calendar as missing.
func (s *Service) activeCalendar(ctx context.Context, st Store, id CalendarID) (*Calendar, error) {
	cal, err := s.loadCalendar(ctx, st, id)
	if err != nil {
		return nil, err
	}
	if cal.Archived {
		return nil, ErrCalendarNotFound
	}
	return cal, nil
}

// checkResourceAvailable fails unless the resource exists and no
// non-archived calendar other than self is bound to it.
func (s *Service) checkResourceAvailable(ctx context.Context, tx Store, id ResourceID, self CalendarID) error {
	res, err := tx.GetResource(ctx, id)
	if err != nil {
		return fmt.Errorf("load resource: %w", err)
	}
	if res == nil {
		return ErrResourceNotFound
	}
	bound, err := tx.FindCalendars(ctx, CalendarFilter{ResourceID: &id})
	if err != nil {
		return fmt.Errorf("find calendars: %w", err)
	}
	for _, c := range bound {
		if c.ID != self {
			return newError(KindResourceUnavailable, "computing resource %s is already bound to calendar %q", id, c.Name)
		}
	}
	return nil
}

func (s *Service) checkNameFree(ctx context.Context, tx Store, name string, self CalendarID) error {
	taken, err := tx.FindCalendars(ctx, CalendarFilter{Name: &name})
	if err != nil {
		return fmt.Errorf("find calendars: %w", err)
	}
	for _, c := range taken {
		if c.ID != self {
			return newError(KindNameAlreadyInUse, "calendar name %q already in use", name)
		}
	}
	return nil
}

// checkCostPerHour rejects prices that would make bookings free.
func checkCostPerHour(cost int) error {
	if cost > 0 {
		return nil
	}
	v := &ValidationError{}
	v.Add("token_cost_per_hour", "must be positive")
	return v
}

func (s *Service) checkNoOngoing(ctx context.Context, tx Store, id CalendarID) error {
	ongoing, err := s.resolver.OngoingAt(ctx, tx, id, StatusApproved, s.Now())
	if err != nil {
		return err
	}
	if len(ongoing) > 0 {
		return newError(KindOngoingRequests, "calendar has %d ongoing approved request(s)", len(ongoing))
	}
	return nil
}
