package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// USERS
// =============================================================================

// PasswordHasher turns passwords into stored credentials and checks them.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil when password matches hash.
	Compare(hash, password string) error
}

var errNoHasher = errors.New("password hasher not configured")

type CreateUserInput struct {
	Username string
	Email    string
	Name     string
	Surname  string
	Password string
	Role     Role
	Tokens   *int
}

// CreateUser registers an account. Username and email must be unused by
// live accounts. Email is stored lower-cased.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (user User, err error) {
	logger := s.opLogger(ctx, "CreateUser", "username", in.Username)
	defer func() { logResult(ctx, logger, err, "user created", "user_id", user.ID, "role", user.Role) }()

	if s.hasher == nil {
		return User{}, errNoHasher
	}
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	role := in.Role
	if role == "" {
		role = RoleUser
	}
	tokens := s.policy.DefaultTokens
	if in.Tokens != nil {
		tokens = *in.Tokens
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetUserByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("load user by username: %w", err)
		}
		if existing != nil {
			return ErrUsernameAlreadyInUse
		}
		existing, err = tx.GetUserByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("load user by email: %w", err)
		}
		if existing != nil {
			return ErrEmailAlreadyInUse
		}
		now := s.Now()
		user = User{
			ID:           UserID(s.newID()),
			Username:     username,
			Email:        email,
			Name:         strings.TrimSpace(in.Name),
			Surname:      strings.TrimSpace(in.Surname),
			PasswordHash: hash,
			Role:         role,
			Tokens:       tokens,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id UserID) (*User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// DeleteUser soft-deletes an account together with its slot requests, so
// slots it held become bookable again. Debited tokens are not refunded.
func (s *Service) DeleteUser(ctx context.Context, id UserID) (err error) {
	logger := s.opLogger(ctx, "DeleteUser", "user_id", id)
	defer func() { logResult(ctx, logger, err, "user deleted") }()

	return s.store.WithTx(ctx, func(tx Store) error {
		user, err := tx.GetUser(ctx, id)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user == nil {
			return ErrUserNotFound
		}
		now := s.Now()
		if err := tx.DeleteUserRequests(ctx, id, now); err != nil {
			return fmt.Errorf("delete user requests: %w", err)
		}
		if err := tx.DeleteUser(ctx, id, now); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords fail with the same error.
func (s *Service) Authenticate(ctx context.Context, username, password string) (user *User, err error) {
	logger := s.opLogger(ctx, "Authenticate", "username", username)
	defer func() { logResult(ctx, logger, err, "user authenticated") }()

	if s.hasher == nil {
		return nil, errNoHasher
	}
	user, err = s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("load user by username: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// EnsureAdmin creates an admin account when no user holds in.Username.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, in CreateUserInput) (bool, error) {
	existing, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(in.Username))
	if err != nil {
		return false, fmt.Errorf("load user by username: %w", err)
	}
	if existing != nil {
		return false, nil
	}
	in.Role = RoleAdmin
	if _, err := s.CreateUser(ctx, in); err != nil {
		return false, err
	}
	return true, nil
}
