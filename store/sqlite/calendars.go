package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/slot-engine/booking"
)

// =============================================================================
// CALENDAR STORE
// =============================================================================

const calendarColumns = `id, resource_id, name, archived, token_cost_per_hour, created_at, updated_at`

// calendarConflict maps the partial unique indexes on active calendars
// to the matching booking errors.
func calendarConflict(err error) error {
	switch {
	case uniqueViolation(err, "calendars.resource_id"):
		return booking.ErrResourceUnavailable
	case uniqueViolation(err, "calendars.name"):
		return booking.ErrNameAlreadyInUse
	}
	return err
}

func (q queries) CreateCalendar(ctx context.Context, c booking.Calendar) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO calendars (`+calendarColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ResourceID, c.Name, c.Archived, c.TokenCostPerHour, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert calendar: %w", calendarConflict(err))
	}
	return nil
}

func (q queries) GetCalendar(ctx context.Context, id booking.CalendarID) (*booking.Calendar, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+calendarColumns+` FROM calendars
		WHERE id = ? AND deleted_at IS NULL
	`, id)
	c, err := scanCalendar(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (q queries) FindCalendars(ctx context.Context, f booking.CalendarFilter) ([]booking.Calendar, error) {
	where := []string{"deleted_at IS NULL"}
	var args []any
	if !f.IncludeArchived {
		where = append(where, "archived = 0")
	}
	if f.ResourceID != nil {
		where = append(where, "resource_id = ?")
		args = append(args, *f.ResourceID)
	}
	if f.Name != nil {
		where = append(where, "name = ?")
		args = append(args, *f.Name)
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT `+calendarColumns+` FROM calendars
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY name, created_at
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}
	defer rows.Close()

	list := []booking.Calendar{}
	for rows.Next() {
		c, err := scanCalendar(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (q queries) UpdateCalendar(ctx context.Context, c booking.Calendar) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE calendars
		SET resource_id = ?, name = ?, archived = ?, token_cost_per_hour = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, c.ResourceID, c.Name, c.Archived, c.TokenCostPerHour, formatTime(c.UpdatedAt), c.ID)
	if err != nil {
		return fmt.Errorf("update calendar: %w", calendarConflict(err))
	}
	return nil
}

func (q queries) DeleteCalendar(ctx context.Context, id booking.CalendarID, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE calendars SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("delete calendar: %w", err)
	}
	return nil
}

func scanCalendar(s scanner) (booking.Calendar, error) {
	var c booking.Calendar
	var createdAt, updatedAt string
	if err := s.Scan(&c.ID, &c.ResourceID, &c.Name, &c.Archived, &c.TokenCostPerHour, &createdAt, &updatedAt); err != nil {
		return c, err
	}
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return c, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return c, err
	}
	return c, nil
}
