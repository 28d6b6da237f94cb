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
// USER STORE
// =============================================================================

const userColumns = `id, username, email, name, surname, password_hash, role, tokens, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func (q queries) CreateUser(ctx context.Context, u booking.User) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.Email, u.Name, u.Surname, u.PasswordHash, u.Role, u.Tokens,
		formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	switch {
	case uniqueViolation(err, "users.username"):
		return booking.ErrUsernameAlreadyInUse
	case uniqueViolation(err, "users.email"):
		return booking.ErrEmailAlreadyInUse
	case err != nil:
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (q queries) GetUser(ctx context.Context, id booking.UserID) (*booking.User, error) {
	return q.getUser(ctx, `id = ?`, id)
}

func (q queries) GetUserByUsername(ctx context.Context, username string) (*booking.User, error) {
	return q.getUser(ctx, `username = ?`, username)
}

func (q queries) GetUserByEmail(ctx context.Context, email string) (*booking.User, error) {
	return q.getUser(ctx, `email = ?`, email)
}

func (q queries) getUser(ctx context.Context, where string, arg any) (*booking.User, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE `+where+` AND deleted_at IS NULL
	`, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (q queries) ListUsers(ctx context.Context) ([]booking.User, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE deleted_at IS NULL
		ORDER BY username
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []booking.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q queries) DeleteUser(ctx context.Context, id booking.UserID, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (q queries) AdjustTokens(ctx context.Context, id booking.UserID, delta int, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET tokens = tokens + ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, delta, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("adjust tokens: %w", err)
	}
	return nil
}

func (q queries) SetTokens(ctx context.Context, id booking.UserID, amount int, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET tokens = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, amount, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("set tokens: %w", err)
	}
	return nil
}

func scanUser(s scanner) (booking.User, error) {
	var u booking.User
	var createdAt, updatedAt string
	err := s.Scan(&u.ID, &u.Username, &u.Email, &u.Name, &u.Surname, &u.PasswordHash,
		&u.Role, &u.Tokens, &createdAt, &updatedAt)
	if err != nil {
		return u, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return u, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return u, err
	}
	return u, nil
}
