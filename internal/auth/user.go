// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
)

// User is the account record. The persistence store owns its lifecycle;
// the Service only reads and mutates fields.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string

	FirstName          string
	LastName           string
	ProfilePicturePath string

	FailedLoginAttempts int
	LockoutEnd          *time.Time
	ResetTokenHash      *string
	ResetTokenExpiry    *time.Time

	CreatedAt   time.Time
	LastLoginAt time.Time

	// Version is bumped by every successful Save and guards against lost updates.
	Version int64
}

// NewUser creates a User with zeroed security fields and both audit
// timestamps set to now (UTC). The ID is assigned by the repository.
func NewUser(username, email, passwordHash string, now time.Time) (*User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, oops.Code("USER_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if strings.TrimSpace(email) == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, oops.Code("USER_INVALID_PASSWORD").Errorf("password hash cannot be empty")
	}

	now = now.UTC()
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		LastLoginAt:  now,
	}, nil
}

// Profile returns the public view of u.
func (u *User) Profile() *Profile {
	return &Profile{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		ProfilePicturePath: u.ProfilePicturePath,
		CreatedAt:          u.CreatedAt,
	}
}

// Identity returns the session identity for u.
func (u *User) Identity() *Identity {
	return &Identity{UserID: u.ID, Username: u.Username}
}

// SetResetToken stores the hash of a freshly issued reset token.
func (u *User) SetResetToken(tokenHash string, expiresAt time.Time) {
	expiresAt = expiresAt.UTC()
	u.ResetTokenHash = &tokenHash
	u.ResetTokenExpiry = &expiresAt
}

// ClearResetToken consumes the reset token so it cannot authorize another reset.
func (u *User) ClearResetToken() {
	u.ResetTokenHash = nil
	u.ResetTokenExpiry = nil
}

// ResetTokenExpired reports whether the stored token is absent or past its expiry.
func (u *User) ResetTokenExpired(now time.Time) bool {
	return u.ResetTokenExpiry == nil || !u.ResetTokenExpiry.After(now)
}

// UserRepository manages user persistence.
// Lookups return an error wrapping ErrNotFound when no record matches.
type UserRepository interface {
	// Create inserts a new user and assigns its ID and initial Version.
	// Returns an error wrapping ErrDuplicate if the username or email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByUsername retrieves a user by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByResetTokenHash retrieves the user holding the given reset token hash.
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*User, error)

	// EmailTaken reports whether a user other than excludeID has the email.
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)

	// Save writes every mutable field of user if its Version is current,
	// then increments user.Version. A stale Version yields ErrConflict;
	// a uniqueness violation yields ErrDuplicate.
	Save(ctx context.Context, user *User) error
}
