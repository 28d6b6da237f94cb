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
// SLOT REQUEST STORE
// =============================================================================

const requestColumns = `id, user_id, calendar_id, status, start_at, end_at, title, reason, refusal_reason, created_at, updated_at`

func (q queries) CreateRequest(ctx context.Context, r booking.SlotRequest) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO slot_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.UserID, r.CalendarID, r.Status, formatTime(r.Start), formatTime(r.End),
		r.Title, r.Reason, nullString(r.RefusalReason), formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert slot request: %w", err)
	}
	return nil
}

func (q queries) GetRequest(ctx context.Context, id booking.RequestID) (*booking.SlotRequest, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM slot_requests
		WHERE id = ? AND deleted_at IS NULL
	`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// requestWhere translates a RequestFilter into SQL. The fixed-width time
// encoding makes text comparison equivalent to time comparison.
func requestWhere(f booking.RequestFilter) (string, []any) {
	where := []string{"deleted_at IS NULL"}
	var args []any
	add := func(clause string, arg any) {
		where = append(where, clause)
		args = append(args, arg)
	}

	if f.CalendarID != nil {
		add("calendar_id = ?", *f.CalendarID)
	}
	if f.UserID != nil {
		add("user_id = ?", *f.UserID)
	}
	if f.Status != nil {
		add("status = ?", *f.Status)
	}
	if f.ExcludeID != nil {
		add("id <> ?", *f.ExcludeID)
	}
	if f.WindowStart != nil {
		add("end_at > ?", formatTime(*f.WindowStart))
	}
	if f.WindowEnd != nil {
		add("start_at < ?", formatTime(*f.WindowEnd))
	}
	if f.At != nil {
		at := formatTime(*f.At)
		add("start_at <= ?", at)
		add("end_at >= ?", at)
	}
	if f.CreatedFrom != nil {
		add("created_at >= ?", formatTime(*f.CreatedFrom))
	}
	if f.CreatedTo != nil {
		add("created_at <= ?", formatTime(*f.CreatedTo))
	}
	return strings.Join(where, " AND "), args
}

func (q queries) FindRequests(ctx context.Context, f booking.RequestFilter) ([]booking.SlotRequest, error) {
	where, args := requestWhere(f)
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM slot_requests
		WHERE `+where+`
		ORDER BY start_at, created_at
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("find slot requests: %w", err)
	}
	defer rows.Close()

	list := []booking.SlotRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

func (q queries) UpdateRequest(ctx context.Context, r booking.SlotRequest) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE slot_requests
		SET status = ?, start_at = ?, end_at = ?, title = ?, reason = ?, refusal_reason = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, r.Status, formatTime(r.Start), formatTime(r.End), r.Title, r.Reason,
		nullString(r.RefusalReason), formatTime(r.UpdatedAt), r.ID)
	if err != nil {
		return fmt.Errorf("update slot request: %w", err)
	}
	return nil
}

func (q queries) DeleteRequest(ctx context.Context, id booking.RequestID, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE slot_requests SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("delete slot request: %w", err)
	}
	return nil
}

func (q queries) DeleteCalendarRequests(ctx context.Context, id booking.CalendarID, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE slot_requests SET deleted_at = ? WHERE calendar_id = ? AND deleted_at IS NULL
	`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("delete calendar requests: %w", err)
	}
	return nil
}

func (q queries) DeleteUserRequests(ctx context.Context, id booking.UserID, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE slot_requests SET deleted_at = ? WHERE user_id = ? AND deleted_at IS NULL
	`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("delete user requests: %w", err)
	}
	return nil
}

func scanRequest(s scanner) (booking.SlotRequest, error) {
	var r booking.SlotRequest
	var start, end, createdAt, updatedAt string
	var refusal sql.NullString
	err := s.Scan(&r.ID, &r.UserID, &r.CalendarID, &r.Status, &start, &end,
		&r.Title, &r.Reason, &refusal, &createdAt, &updatedAt)
	if err != nil {
		return r, err
	}
	r.RefusalReason = refusal.String
	for _, p := range []struct {
		dst *time.Time
		src string
	}{
		{&r.Start, start}, {&r.End, end}, {&r.CreatedAt, createdAt}, {&r.UpdatedAt, updatedAt},
	} {
		if *p.dst, err = parseTime(p.src); err != nil {
			return r, err
		}
	}
	return r, nil
}
