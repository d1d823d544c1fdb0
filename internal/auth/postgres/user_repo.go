// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

// Package postgres implements auth.UserRepository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/studentdiary/diary/internal/auth"
)

// DB is the subset of pgxpool.Pool used by UserRepository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

const selectUser = `
	SELECT id, username, email, password_hash,
	       first_name, last_name, profile_picture_path,
	       failed_login_attempts, lockout_end,
	       reset_token_hash, reset_token_expiry,
	       created_at, last_login_at, version
	FROM users
`

// Create inserts a new user and assigns its ID. Version starts at 1.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (
			username, email, password_hash,
			first_name, last_name, profile_picture_path,
			failed_login_attempts, lockout_end,
			reset_token_hash, reset_token_expiry,
			created_at, last_login_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
		RETURNING id, version
	`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.ProfilePicturePath,
		user.FailedLoginAttempts,
		user.LockoutEnd,
		user.ResetTokenHash,
		user.ResetTokenExpiry,
		user.CreatedAt,
		user.LastLoginAt,
	).Scan(&user.ID, &user.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_DUPLICATE").
				With("username", user.Username).
				Wrap(auth.ErrDuplicate)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	row := r.db.QueryRow(ctx, selectUser+`WHERE id = $1`, id)
	return r.get(row, "id", id)
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, selectUser+`WHERE LOWER(username) = LOWER($1)`, username)
	return r.get(row, "username", username)
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, selectUser+`WHERE LOWER(email) = LOWER($1)`, email)
	return r.get(row, "email", email)
}

// GetByResetTokenHash retrieves the user holding a reset token hash.
// The hash is never logged or attached to errors.
func (r *UserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*auth.User, error) {
	if tokenHash == "" {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	row := r.db.QueryRow(ctx, selectUser+`WHERE reset_token_hash = $1`, tokenHash)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by reset token").
			Wrap(err)
	}
	return user, nil
}

func (r *UserRepository) get(row pgx.Row, key string, value any) (*auth.User, error) {
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With(key, value).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by "+key).
			With(key, value).
			Wrap(err)
	}
	return user, nil
}

// EmailTaken reports whether a user other than excludeID has the email.
func (r *UserRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) AND id <> $2)
	`, email, excludeID).Scan(&taken)
	if err != nil {
		return false, oops.Code("USER_GET_FAILED").
			With("operation", "check email").
			With("email", email).
			Wrap(err)
	}
	return taken, nil
}

// Save writes every mutable field of user if user.Version matches the
// stored version, then increments user.Version.
func (r *UserRepository) Save(ctx context.Context, user *auth.User) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET
			username = $3,
			email = $4,
			password_hash = $5,
			first_name = $6,
			last_name = $7,
			profile_picture_path = $8,
			failed_login_attempts = $9,
			lockout_end = $10,
			reset_token_hash = $11,
			reset_token_expiry = $12,
			last_login_at = $13,
			version = version + 1
		WHERE id = $1 AND version = $2
	`,
		user.ID,
		user.Version,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.ProfilePicturePath,
		user.FailedLoginAttempts,
		user.LockoutEnd,
		user.ResetTokenHash,
		user.ResetTokenExpiry,
		user.LastLoginAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_DUPLICATE").
				With("id", user.ID).
				Wrap(auth.ErrDuplicate)
		}
		return oops.Code("USER_SAVE_FAILED").
			With("operation", "update user").
			With("id", user.ID).
			Wrap(err)
	}
	if result.RowsAffected() == 1 {
		user.Version++
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, user.ID).Scan(&exists); err != nil {
		return oops.Code("USER_SAVE_FAILED").
			With("operation", "check user exists").
			With("id", user.ID).
			Wrap(err)
	}
	if !exists {
		return oops.Code("USER_NOT_FOUND").
			With("id", user.ID).
			Wrap(auth.ErrNotFound)
	}
	return oops.Code("USER_VERSION_CONFLICT").
		With("id", user.ID).
		With("version", user.Version).
		Wrap(auth.ErrConflict)
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		u           auth.User
		lockoutEnd  *time.Time
		tokenExpiry *time.Time
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.ProfilePicturePath,
		&u.FailedLoginAttempts,
		&lockoutEnd,
		&u.ResetTokenHash,
		&tokenExpiry,
		&u.CreatedAt,
		&u.LastLoginAt,
		&u.Version,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with lookup context
	}

	u.CreatedAt = u.CreatedAt.UTC()
	u.LastLoginAt = u.LastLoginAt.UTC()
	if lockoutEnd != nil {
		t := lockoutEnd.UTC()
		u.LockoutEnd = &t
	}
	if tokenExpiry != nil {
		t := tokenExpiry.UTC()
		u.ResetTokenExpiry = &t
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

var _ auth.UserRepository = (*UserRepository)(nil)
