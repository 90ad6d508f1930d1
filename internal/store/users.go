package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User is a registered account. The string form of ID is the owner id
// carried in bearer tokens and stamped onto every owned row.
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// OwnerID returns the user's id in the string form used for row scoping.
func (u *User) OwnerID() string {
	return fmt.Sprintf("%d", u.ID)
}

// CreateUser registers a new account. Emails are stored lowercased and
// must be unique; a duplicate returns ErrDuplicateEmail.
func (s *Store) CreateUser(ctx context.Context, email, hashedPassword string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, hashed_password, created_at)
		VALUES (?, ?, ?)
	`, email, hashedPassword, now)
	if err != nil {
		// modernc/sqlite reports constraint violations by message text;
		// there is no portable error code across database/sql drivers.
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}

	return &User{ID: id, Email: email, HashedPassword: hashedPassword, CreatedAt: now}, nil
}

// GetUserByEmail looks up an account by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, hashed_password, created_at FROM users WHERE email = ?", email)

	var u User
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
