package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/slot-engine/booking"
)

// =============================================================================
// RESOURCE STORE
// =============================================================================

const resourceColumns = `id, model, serial, manufacturer, type, created_at, updated_at`

func (q queries) CreateResource(ctx context.Context, r booking.ComputingResource) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO computing_resources (`+resourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Model, r.Serial, r.Manufacturer, r.Type, formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

func (q queries) GetResource(ctx context.Context, id booking.ResourceID) (*booking.ComputingResource, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+resourceColumns+` FROM computing_resources
		WHERE id = ? AND deleted_at IS NULL
	`, id)
	r, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (q queries) ListResources(ctx context.Context) ([]booking.ComputingResource, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+resourceColumns+` FROM computing_resources
		WHERE deleted_at IS NULL
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	list := []booking.ComputingResource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

func (q queries) UpdateResource(ctx context.Context, r booking.ComputingResource) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE computing_resources
		SET model = ?, serial = ?, manufacturer = ?, type = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, r.Model, r.Serial, r.Manufacturer, r.Type, formatTime(r.UpdatedAt), r.ID)
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	return nil
}

func (q queries) DeleteResource(ctx context.Context, id booking.ResourceID, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE computing_resources SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	return nil
}

func scanResource(s scanner) (booking.ComputingResource, error) {
	var r booking.ComputingResource
	var createdAt, updatedAt string
	if err := s.Scan(&r.ID, &r.Model, &r.Serial, &r.Manufacturer, &r.Type, &createdAt, &updatedAt); err != nil {
		return r, err
	}
	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return r, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return r, err
	}
	return r, nil
}
